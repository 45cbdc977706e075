package events

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of event flowing through the system.
type EventType string

const (
	ConversationCreated EventType = "conversation.created"
	DialogStarted       EventType = "dialog.started"
	TurnReceived        EventType = "turn.received"
	FieldAccepted       EventType = "field.accepted"
	FieldRejected       EventType = "field.rejected"
	StateTransition     EventType = "state.transition"
	ProfileSaved        EventType = "profile.saved"
	ProfileDiscarded    EventType = "profile.discarded"
	DialogCompleted     EventType = "dialog.completed"
	HookResult          EventType = "hook.result"
	HookError           EventType = "hook.error"
	SystemError         EventType = "error"
)

// Envelope is the standard event wrapper published to the event bus.
type Envelope struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Source    string            `json:"source"`
	SessionID string            `json:"session_id"`
	Timestamp time.Time         `json:"timestamp"`
	Data      json.RawMessage   `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ConversationCreatedData is the payload for conversation.created events.
type ConversationCreatedData struct {
	ConversationID string `json:"conversation_id"`
}

// DialogStartedData is the payload for dialog.started events.
type DialogStartedData struct {
	DialogName string `json:"dialog_name"`
}

// TurnReceivedData is the payload for turn.received events.
type TurnReceivedData struct {
	DialogName string `json:"dialog_name"`
	State      string `json:"state"`
	Length     int    `json:"length"`
}

// FieldData is the payload for field.accepted and field.rejected events.
type FieldData struct {
	DialogName string `json:"dialog_name"`
	Field      string `json:"field"`
	Reason     string `json:"reason,omitempty"`
}

// StateTransitionData is the payload for state.transition events.
type StateTransitionData struct {
	FromState    string `json:"from_state"`
	ToState      string `json:"to_state"`
	TriggerEvent string `json:"trigger_event"`
	DialogName   string `json:"dialog_name"`
}

// ProfileData is the payload for profile.saved and profile.discarded events.
type ProfileData struct {
	DialogName string            `json:"dialog_name"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// DialogCompletedData is the payload for dialog.completed events.
type DialogCompletedData struct {
	DialogName  string `json:"dialog_name"`
	Saved       bool   `json:"saved"`
	Transitions int    `json:"transitions"`
}

// HookResultData is the payload for hook.result events.
type HookResultData struct {
	HookURL    string         `json:"hook_url"`
	StatusCode int            `json:"status_code"`
	Response   map[string]any `json:"response,omitempty"`
}

// HookErrorData is the payload for hook.error events.
type HookErrorData struct {
	HookURL string `json:"hook_url"`
	Error   string `json:"error"`
}

// ErrorData is the payload for error events.
type ErrorData struct {
	Op    string `json:"op"`
	Error string `json:"error"`
}
