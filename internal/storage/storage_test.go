package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"webtestflow/recorder/internal/models"
)

func sampleSteps() []models.Step {
	shot := "data:image/png;base64,AAAA"
	return []models.Step{
		models.NavigateStep("/login"),
		{
			Index:       2,
			URL:         "/login",
			Action:      models.ActionClick,
			Identifiers: models.Identifiers{{Kind: models.KindID, Selector: "#go"}, {Kind: models.KindNth, Selector: "body>button:nth-child(1)"}},
			ElementType: "button",
			Screenshot:  &shot,
		},
	}
}

func newGorm(t *testing.T) *Gorm {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store, err := NewGorm(db)
	require.NoError(t, err)
	return store
}

func backends(t *testing.T) map[string]Storage {
	return map[string]Storage{
		"memory": NewMemory(),
		"gorm":   newGorm(t),
	}
}

func TestStorage_TakeIsReadOnce(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Put(ctx, "recordedSteps", "s1", sampleSteps()))

			got, err := store.Take(ctx, "recordedSteps", "s1")
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, models.ActionNavigate, got[0].Action)
			assert.Equal(t, []string{models.KindID, models.KindNth}, got[1].Identifiers.Kinds())
			require.NotNil(t, got[1].Screenshot)

			_, err = store.Take(ctx, "recordedSteps", "s1")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStorage_PutReplaces(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Put(ctx, "k", "s1", sampleSteps()))
			require.NoError(t, store.Put(ctx, "k", "s2", nil))

			got, err := store.Take(ctx, "k", "s2")
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestStorage_TakeChecksSession(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Put(ctx, "recordedSteps", "s1", sampleSteps()))
			require.NoError(t, store.Put(ctx, "recordedSteps", "s2", sampleSteps()[:1]))

			_, err := store.Take(ctx, "recordedSteps", "s1")
			assert.ErrorIs(t, err, ErrSessionMismatch)

			got, err := store.Take(ctx, "recordedSteps", "s2")
			require.NoError(t, err, "a mismatched read leaves the recording in place")
			assert.Len(t, got, 1)
		})
	}
}

func TestStorage_Clear(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Put(ctx, "a", "s1", sampleSteps()))
			require.NoError(t, store.Put(ctx, "b", "s1", sampleSteps()))
			require.NoError(t, store.Clear(ctx))

			_, err := store.Take(ctx, "a", "s1")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = store.Take(ctx, "b", "s1")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMemory_Purge(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, "old", "s1", sampleSteps()))
	now = now.Add(2 * time.Hour)
	require.NoError(t, store.Put(ctx, "fresh", "s2", sampleSteps()))

	purged, err := store.Purge(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = store.Take(ctx, "old", "s1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Take(ctx, "fresh", "s2")
	assert.NoError(t, err)
}

func TestGorm_Purge(t *testing.T) {
	ctx := context.Background()
	store := newGorm(t)
	require.NoError(t, store.Put(ctx, "k", "s1", sampleSteps()))

	purged, err := store.Purge(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, purged)

	require.NoError(t, store.db.Model(&models.StoredRecording{}).
		Where("storage_key = ?", "k").
		Update("created_at", time.Now().Add(-2*time.Hour)).Error)

	purged, err = store.Purge(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
}

func TestMemory_PutCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	steps := sampleSteps()
	require.NoError(t, store.Put(ctx, "k", "s1", steps))
	steps[0].URL = "/mutated"

	got, err := store.Take(ctx, "k", "s1")
	require.NoError(t, err)
	assert.Equal(t, "/login", got[0].URL)
}
