package profile

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/mx-roomstats-go/internal/config"
	"github.com/mx-roomstats-go/internal/middleware"
	"github.com/mx-roomstats-go/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newMemoryManager(t *testing.T) *Manager {
	t.Helper()
	cfg := &config.Config{
		Storage: config.StorageConfig{
			Type: "memory",
			Memory: config.MemoryConfig{
				DefaultExpiration: time.Hour,
				CleanupInterval:   time.Hour,
			},
		},
	}
	manager, err := NewManager(cfg, middleware.NewMetrics(), testLogger())
	require.NoError(t, err)
	return manager
}

// countingFetcher records how often the homeserver was asked.
type countingFetcher struct {
	name   string
	avatar string
	err    error
	calls  int
}

func (f *countingFetcher) Profile(ctx context.Context, userID string) (string, string, error) {
	f.calls++
	if f.err != nil {
		return "", "", f.err
	}
	return f.name, f.avatar, nil
}

func TestManager_UnsupportedStorageType(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Type: "cassandra"}}
	_, err := NewManager(cfg, middleware.NewMetrics(), testLogger())
	assert.Error(t, err)
}

func TestManager_SaveAndLookup(t *testing.T) {
	manager := newMemoryManager(t)
	ctx := context.Background()

	err := manager.Save(ctx, &models.Profile{
		UserID:      "@alice:x.org",
		DisplayName: "Alice",
		AvatarURI:   "mxc://x.org/ava",
		UpdatedAt:   time.Now(),
	})
	require.NoError(t, err)

	name, ok := manager.DisplayName(ctx, "@alice:x.org")
	assert.True(t, ok)
	assert.Equal(t, "Alice", name)

	avatar, ok := manager.AvatarURI(ctx, "@alice:x.org")
	assert.True(t, ok)
	assert.Equal(t, "mxc://x.org/ava", avatar)
}

func TestManager_MissWithoutFetcher(t *testing.T) {
	manager := newMemoryManager(t)

	name, ok := manager.DisplayName(context.Background(), "@ghost:x.org")
	assert.False(t, ok)
	assert.Empty(t, name)
}

func TestManager_FetchPopulatesCache(t *testing.T) {
	manager := newMemoryManager(t)
	fetcher := &countingFetcher{name: "Bob", avatar: "mxc://x.org/bob"}
	manager.SetFetcher(fetcher)
	ctx := context.Background()

	name, ok := manager.DisplayName(ctx, "@bob:x.org")
	assert.True(t, ok)
	assert.Equal(t, "Bob", name)
	assert.Equal(t, 1, fetcher.calls)

	// Second lookup is served from the store.
	name, ok = manager.DisplayName(ctx, "@bob:x.org")
	assert.True(t, ok)
	assert.Equal(t, "Bob", name)
	assert.Equal(t, 1, fetcher.calls, "cached lookup must not refetch")

	// The fetched avatar landed in the same cached profile.
	avatar, ok := manager.AvatarURI(ctx, "@bob:x.org")
	assert.True(t, ok)
	assert.Equal(t, "mxc://x.org/bob", avatar)
	assert.Equal(t, 1, fetcher.calls)
}

func TestManager_FetchFailureIsAMiss(t *testing.T) {
	manager := newMemoryManager(t)
	fetcher := &countingFetcher{err: errors.New("boom")}
	manager.SetFetcher(fetcher)

	name, ok := manager.DisplayName(context.Background(), "@down:x.org")
	assert.False(t, ok)
	assert.Empty(t, name)
}

func TestMemoryStore_Delete(t *testing.T) {
	manager := newMemoryManager(t)
	ctx := context.Background()

	require.NoError(t, manager.Save(ctx, &models.Profile{UserID: "@a:x.org", DisplayName: "A"}))
	require.NoError(t, manager.store.Delete(ctx, "@a:x.org"))

	_, ok := manager.DisplayName(ctx, "@a:x.org")
	assert.False(t, ok)
}
