// Package directline holds the wire types of the Direct Line v3 subset
// spoken between the relay service and its clients.
package directline

import "time"

// ActivityTypeMessage is the only activity type the relay produces.
const ActivityTypeMessage = "message"

// ChannelAccount identifies the sender of an activity.
type ChannelAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ConversationAccount identifies the conversation an activity belongs to.
type ConversationAccount struct {
	ID string `json:"id"`
}

// Activity is one message in a conversation transcript.
type Activity struct {
	Type         string               `json:"type"`
	ID           string               `json:"id,omitempty"`
	Timestamp    *time.Time           `json:"timestamp,omitempty"`
	ChannelID    string               `json:"channelId,omitempty"`
	From         ChannelAccount       `json:"from"`
	Conversation *ConversationAccount `json:"conversation,omitempty"`
	Text         string               `json:"text,omitempty"`
	ReplyToID    string               `json:"replyToId,omitempty"`
}

// ActivitySet is the body of a GET activities response.
type ActivitySet struct {
	Activities []Activity `json:"activities"`
	Watermark  string     `json:"watermark"`
}

// Conversation is returned when a conversation or token is created.
type Conversation struct {
	ConversationID string `json:"conversationId"`
	Token          string `json:"token,omitempty"`
	ExpiresIn      int    `json:"expires_in,omitempty"`
}

// ResourceResponse is returned when an activity is posted.
type ResourceResponse struct {
	ID string `json:"id"`
}

// Error codes used in ErrorResponse.
const (
	CodeBadArgument  = "BadArgument"
	CodeUnauthorized = "Unauthorized"
	CodeForbidden    = "Forbidden"
	CodeNotFound     = "NotFound"
	CodeServerError  = "ServiceError"
)

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx relay response.
type ErrorResponse struct {
	Error APIError `json:"error"`
}
