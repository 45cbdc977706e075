package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNoConversation is returned by SendMessage before a conversation exists.
	ErrNoConversation = errors.New("directline: no conversation started")

	ErrStartFailed = errors.New("directline: start conversation failed")
	ErrSendFailed  = errors.New("directline: send message failed")
	ErrPollFailed  = errors.New("directline: poll activities failed")
)

// TransportError describes a failed relay call. StatusCode is zero when no
// response was received.
type TransportError struct {
	Op         error
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("%v: status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%v: status %d", e.Op, e.StatusCode)
	}
}

// Is matches the operation sentinel, so errors.Is(err, ErrPollFailed) works.
func (e *TransportError) Is(target error) bool {
	return e.Op == target
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
