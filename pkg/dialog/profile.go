package dialog

import (
	"context"
	"maps"
	"time"
)

// UserProfile is the record saved when a user confirms the collected data.
type UserProfile struct {
	Key       string            `json:"key"`
	Dialog    string            `json:"dialog"`
	Fields    map[string]string `json:"fields"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Merge overwrites the profile's fields with fields.
func (p *UserProfile) Merge(fields map[string]string, at time.Time) {
	if p.Fields == nil {
		p.Fields = make(map[string]string, len(fields))
	}
	maps.Copy(p.Fields, fields)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = at
	}
	p.UpdatedAt = at
}

// ProfileStore persists user profiles by conversation key.
type ProfileStore interface {
	// Get returns the stored profile. The bool is false when none exists.
	Get(ctx context.Context, key string) (*UserProfile, bool, error)
	Set(ctx context.Context, p *UserProfile) error
}

// StateStore keeps conversation state between turns.
type StateStore interface {
	// Load returns nil and no error when the key has no state.
	Load(ctx context.Context, key string) (*ConversationState, error)
	Save(ctx context.Context, state *ConversationState) error
	Delete(ctx context.Context, key string) error
}
