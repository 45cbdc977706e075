package profile

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/rs/xid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/voicetyped/profilebot/pkg/dialog"
)

// DBProvider hands out gorm sessions. frame's datastore pool satisfies it.
type DBProvider interface {
	DB(ctx context.Context, readOnly bool) *gorm.DB
}

// Repository stores user profiles in the user_profiles table.
type Repository struct {
	pool DBProvider
}

// NewRepository creates a new profile repository.
func NewRepository(pool DBProvider) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) db(ctx context.Context, readOnly bool) *gorm.DB {
	return r.pool.DB(ctx, readOnly)
}

// Migrate creates or updates the user_profiles table.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db(ctx, false).AutoMigrate(&Record{})
}

// Get returns the profile stored for a conversation key.
func (r *Repository) Get(ctx context.Context, key string) (*dialog.UserProfile, bool, error) {
	var rec Record
	err := r.db(ctx, true).Where("conversation_key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("profile: get %s: %w", key, err)
	}
	return rec.toProfile(), true, nil
}

// Set inserts the profile or overwrites the one stored under the same key.
func (r *Repository) Set(ctx context.Context, p *dialog.UserProfile) error {
	rec := Record{
		ID:              xid.New().String(),
		ConversationKey: p.Key,
		Dialog:          p.Dialog,
		Fields:          FieldsJSON(maps.Clone(p.Fields)),
		CreatedAt:       p.CreatedAt,
		ModifiedAt:      p.UpdatedAt,
	}

	err := r.db(ctx, false).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conversation_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"dialog", "fields", "modified_at"}),
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("profile: set %s: %w", p.Key, err)
	}
	return nil
}
