package profile

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/voicetyped/profilebot/pkg/dialog"
)

type gormProvider struct{ db *gorm.DB }

func (p gormProvider) DB(ctx context.Context, _ bool) *gorm.DB {
	return p.db.WithContext(ctx)
}

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewRepository(gormProvider{db: db}), mock
}

func TestRepositoryGet(t *testing.T) {
	repo, mock := newMockRepository(t)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "conversation_key", "dialog", "fields", "created_at", "modified_at"}).
		AddRow("cp1", "conv-1", "user-profile", []byte(`{"name":"Alice","location":"Paris"}`), created, created)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "user_profiles" WHERE conversation_key = $1`)).
		WillReturnRows(rows)

	p, ok, err := repo.Get(t.Context(), "conv-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "conv-1", p.Key)
	assert.Equal(t, "user-profile", p.Dialog)
	assert.Equal(t, map[string]string{"name": "Alice", "location": "Paris"}, p.Fields)
	assert.True(t, created.Equal(p.CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetMissing(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "user_profiles"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	p, ok, err := repo.Get(t.Context(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, p)
}

func TestRepositoryGetError(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "user_profiles"`)).
		WillReturnError(errors.New("connection reset"))

	_, _, err := repo.Get(t.Context(), "conv-1")
	assert.ErrorContains(t, err, "connection reset")
}

func TestRepositorySetUpserts(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO "user_profiles" .+ ON CONFLICT \("conversation_key"\) DO UPDATE SET`).
		WithArgs(sqlmock.AnyArg(), "conv-1", "user-profile", []byte(`{"name":"Alice"}`), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Set(t.Context(), &dialog.UserProfile{
		Key:       "conv-1",
		Dialog:    "user-profile",
		Fields:    map[string]string{"name": "Alice"},
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositorySetError(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec(`INSERT INTO "user_profiles"`).WillReturnError(errors.New("disk full"))

	err := repo.Set(t.Context(), &dialog.UserProfile{Key: "conv-1"})
	assert.ErrorContains(t, err, "disk full")
}

func TestFieldsJSONScan(t *testing.T) {
	var f FieldsJSON
	require.NoError(t, f.Scan(`{"a":"1"}`))
	assert.Equal(t, FieldsJSON{"a": "1"}, f)

	require.NoError(t, f.Scan(nil))
	assert.Empty(t, f)

	assert.Error(t, f.Scan(42))

	v, err := FieldsJSON(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), v)
}

func TestFieldsJSONIsDriverValue(t *testing.T) {
	var valuer driver.Valuer = FieldsJSON{"name": "Alice"}
	v, err := valuer.Value()
	require.NoError(t, err)
	assert.True(t, driver.IsValue(v), "Value must return a driver.Value, got %T", v)
	assert.JSONEq(t, `{"name":"Alice"}`, string(v.([]byte)))
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := t.Context()

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	in := &dialog.UserProfile{Key: "k", Fields: map[string]string{"name": "Alice"}}
	require.NoError(t, store.Set(ctx, in))
	in.Fields["name"] = "Mallory"

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Alice", got.Fields["name"])
	assert.Equal(t, 1, store.Len())
}

var (
	_ dialog.ProfileStore = (*Repository)(nil)
	_ dialog.ProfileStore = (*MemoryStore)(nil)
)
