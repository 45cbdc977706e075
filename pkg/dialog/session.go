package dialog

import (
	"strconv"
	"time"
)

// DefaultMaxHistory is the maximum number of state records before eviction.
const DefaultMaxHistory = 100

// Phase is the coarse position of a conversation in its waterfall.
type Phase string

const (
	PhaseAwaitingField        Phase = "awaiting_field"
	PhaseAwaitingConfirmation Phase = "awaiting_confirmation"
	PhaseCompleted            Phase = "completed"
)

// Answer is one accepted raw answer.
type Answer struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// StateRecord records a state transition for audit purposes.
type StateRecord struct {
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	Trigger   string    `json:"trigger"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationState is the per-conversation position in a waterfall.
// Answers holds exactly the fields of steps 0..StepIndex-1 in step order.
type ConversationState struct {
	Key       string        `json:"key"`
	Dialog    string        `json:"dialog"`
	Phase     Phase         `json:"phase"`
	StepIndex int           `json:"step_index"`
	Answers   []Answer      `json:"answers"`
	History   []StateRecord `json:"history,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewConversationState creates a state awaiting the first field.
func NewConversationState(key, dialogName string, now time.Time) ConversationState {
	return ConversationState{
		Key:       key,
		Dialog:    dialogName,
		Phase:     PhaseAwaitingField,
		Answers:   []Answer{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Label names the state the way it appears in transition history,
// e.g. "awaiting_field:2".
func (s ConversationState) Label() string {
	if s.Phase == PhaseAwaitingField {
		return string(s.Phase) + ":" + strconv.Itoa(s.StepIndex)
	}
	return string(s.Phase)
}

// Value returns the accepted answer for a field.
func (s ConversationState) Value(name string) (string, bool) {
	for _, a := range s.Answers {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// FieldMap returns a snapshot of the collected fields.
func (s ConversationState) FieldMap() map[string]string {
	m := make(map[string]string, len(s.Answers))
	for _, a := range s.Answers {
		m[a.Name] = a.Value
	}
	return m
}

// Clone returns a deep copy so transitions never alias the caller's slices.
func (s ConversationState) Clone() ConversationState {
	cp := s
	cp.Answers = make([]Answer, len(s.Answers))
	copy(cp.Answers, s.Answers)
	if s.History != nil {
		cp.History = make([]StateRecord, len(s.History))
		copy(cp.History, s.History)
	}
	return cp
}

// recordTransition appends to the audit history.
// Evicts oldest 10% of entries when the history cap is reached.
func (s *ConversationState) recordTransition(from, to, trigger string, at time.Time) {
	if len(s.History) >= DefaultMaxHistory {
		evict := DefaultMaxHistory / 10
		if evict < 1 {
			evict = 1
		}
		s.History = s.History[evict:]
	}
	s.History = append(s.History, StateRecord{
		FromState: from,
		ToState:   to,
		Trigger:   trigger,
		Timestamp: at,
	})
	s.UpdatedAt = at
}
