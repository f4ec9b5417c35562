package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/mx-roomstats-go/internal/config"
	"github.com/mx-roomstats-go/internal/middleware"
	"github.com/mx-roomstats-go/internal/models"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Store defines profile cache operations
type Store interface {
	Get(ctx context.Context, userID string) (*models.Profile, error)
	Save(ctx context.Context, profile *models.Profile) error
	Delete(ctx context.Context, userID string) error
}

// Fetcher retrieves a profile from the homeserver on a cache miss
type Fetcher interface {
	Profile(ctx context.Context, userID string) (displayName, avatarURI string, err error)
}

// Manager manages different profile store backends
type Manager struct {
	store       Store
	fetcher     Fetcher
	metrics     *middleware.Metrics
	logger      *logrus.Logger
	redisClient *redis.Client // Store redis client reference
}

// NewManager creates a new profile store manager
func NewManager(cfg *config.Config, metrics *middleware.Metrics, logger *logrus.Logger) (*Manager, error) {
	manager := &Manager{
		metrics: metrics,
		logger:  logger,
	}

	switch cfg.Storage.Type {
	case "redis":
		redisStore, err := NewRedisStore(cfg, logger)
		if err != nil {
			return nil, err
		}
		manager.store = redisStore
		manager.redisClient = redisStore.client
	case "memory":
		manager.store = NewMemoryStore(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	return manager, nil
}

// SetFetcher installs a homeserver profile fetcher used on cache misses
func (m *Manager) SetFetcher(f Fetcher) {
	m.fetcher = f
}

// DisplayName resolves a user's display name, fetching and caching it on a
// miss. The second return is false when no name could be resolved.
func (m *Manager) DisplayName(ctx context.Context, userID string) (string, bool) {
	profile, err := m.store.Get(ctx, userID)
	if err != nil {
		m.logger.WithError(err).WithField("user_id", userID).Warn("Profile lookup failed")
	}
	if profile != nil && profile.DisplayName != "" {
		if m.metrics != nil {
			m.metrics.RecordProfileLookup("cache")
		}
		return profile.DisplayName, true
	}

	if m.fetcher == nil {
		return "", false
	}

	name, avatar, err := m.fetcher.Profile(ctx, userID)
	if err != nil {
		m.logger.WithError(err).WithField("user_id", userID).Debug("Profile fetch failed")
		if m.metrics != nil {
			m.metrics.RecordProfileLookup("fallback")
		}
		return "", false
	}

	if m.metrics != nil {
		m.metrics.RecordProfileLookup("fetch")
	}

	saved := &models.Profile{
		UserID:      userID,
		DisplayName: name,
		AvatarURI:   avatar,
		UpdatedAt:   time.Now(),
	}
	if err := m.store.Save(ctx, saved); err != nil {
		m.logger.WithError(err).WithField("user_id", userID).Warn("Profile save failed")
	}

	return name, name != ""
}

// AvatarURI resolves a user's avatar content identifier
func (m *Manager) AvatarURI(ctx context.Context, userID string) (string, bool) {
	profile, err := m.store.Get(ctx, userID)
	if err != nil {
		m.logger.WithError(err).WithField("user_id", userID).Warn("Profile lookup failed")
	}
	if profile != nil && profile.AvatarURI != "" {
		return profile.AvatarURI, true
	}

	if m.fetcher == nil {
		return "", false
	}

	name, avatar, err := m.fetcher.Profile(ctx, userID)
	if err != nil {
		m.logger.WithError(err).WithField("user_id", userID).Debug("Profile fetch failed")
		return "", false
	}

	saved := &models.Profile{
		UserID:      userID,
		DisplayName: name,
		AvatarURI:   avatar,
		UpdatedAt:   time.Now(),
	}
	if err := m.store.Save(ctx, saved); err != nil {
		m.logger.WithError(err).WithField("user_id", userID).Warn("Profile save failed")
	}

	return avatar, avatar != ""
}

// Save stores a profile directly, bypassing the fetcher
func (m *Manager) Save(ctx context.Context, profile *models.Profile) error {
	return m.store.Save(ctx, profile)
}

// GetRedisClient returns the Redis client if available
func (m *Manager) GetRedisClient() *redis.Client {
	return m.redisClient
}

// MemoryStore implements the profile store with an in-process cache
type MemoryStore struct {
	cache  *cache.Cache
	logger *logrus.Logger
}

// NewMemoryStore creates an in-memory profile store
func NewMemoryStore(cfg *config.Config, logger *logrus.Logger) *MemoryStore {
	return &MemoryStore{
		cache:  cache.New(cfg.Storage.Memory.DefaultExpiration, cfg.Storage.Memory.CleanupInterval),
		logger: logger,
	}
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (*models.Profile, error) {
	if val, found := s.cache.Get(userID); found {
		return val.(*models.Profile), nil
	}
	return nil, nil
}

func (s *MemoryStore) Save(ctx context.Context, profile *models.Profile) error {
	s.cache.SetDefault(profile.UserID, profile)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID string) error {
	s.cache.Delete(userID)
	return nil
}

// RedisStore implements the profile store using Redis
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewRedisStore creates a Redis-backed profile store
func NewRedisStore(cfg *config.Config, logger *logrus.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.Redis.Addr,
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client: client,
		ttl:    cfg.Storage.Memory.DefaultExpiration,
		logger: logger,
	}, nil
}

func profileKey(userID string) string {
	return fmt.Sprintf("profile:%s", userID)
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*models.Profile, error) {
	data, err := s.client.Get(ctx, profileKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var profile models.Profile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *RedisStore) Save(ctx context.Context, profile *models.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, profileKey(profile.UserID), data, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	return s.client.Del(ctx, profileKey(userID)).Err()
}
