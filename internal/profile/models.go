package profile

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/voicetyped/profilebot/pkg/dialog"
)

// Record is the stored form of a user profile.
type Record struct {
	ID              string     `gorm:"type:varchar(50);primaryKey"                   json:"id"`
	ConversationKey string     `gorm:"type:varchar(255);not null;uniqueIndex"        json:"conversation_key"`
	Dialog          string     `gorm:"type:varchar(255)"                             json:"dialog"`
	Fields          FieldsJSON `gorm:"type:jsonb"                                    json:"fields"`
	CreatedAt       time.Time  `json:"created_at"`
	ModifiedAt      time.Time  `gorm:"autoUpdateTime"                                json:"modified_at"`
}

func (Record) TableName() string { return "user_profiles" }

func (r *Record) toProfile() *dialog.UserProfile {
	return &dialog.UserProfile{
		Key:       r.ConversationKey,
		Dialog:    r.Dialog,
		Fields:    map[string]string(r.Fields),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.ModifiedAt,
	}
}

// FieldsJSON is a custom GORM type for JSONB storage of collected fields.
type FieldsJSON map[string]string

var (
	_ driver.Valuer = FieldsJSON(nil)
	_ sql.Scanner   = (*FieldsJSON)(nil)
)

func (f FieldsJSON) Value() (driver.Value, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(f)
}

func (f *FieldsJSON) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	case nil:
		*f = FieldsJSON{}
		return nil
	default:
		return fmt.Errorf("profile: cannot scan %T into fields", src)
	}
}
