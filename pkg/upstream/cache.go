package upstream

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trialguard-server/internal/domain"
)

// VerdictCache wraps a Redis client with caching for assessment
// verdicts. Verdicts are deterministic inputs to the guardrail engine,
// so re-serving a cached verdict for an identical (profile, trial)
// pair is safe.
type VerdictCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewVerdictCache creates a new verdict cache and verifies the
// connection.
func NewVerdictCache(config domain.CacheConfig) (*VerdictCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &VerdictCache{
		redis:      client,
		defaultTTL: config.DefaultTTL,
	}, nil
}

// cachedVerdict wraps a verdict with cache metadata.
type cachedVerdict struct {
	Data      *domain.AIVerdict `json:"data"`
	CachedAt  time.Time         `json:"cached_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Get retrieves a cached verdict. A corrupted or expired entry is
// removed and reported as a miss.
func (c *VerdictCache) Get(ctx context.Context, key string) (*domain.AIVerdict, bool, error) {
	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get verdict cache: %w", err)
	}

	var cached cachedVerdict
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Data, true, nil
}

// Set caches a verdict under the given key.
func (c *VerdictCache) Set(ctx context.Context, key string, verdict *domain.AIVerdict, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	cached := cachedVerdict{
		Data:      verdict,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}

	payload, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict cache entry: %w", err)
	}

	return c.redis.Set(ctx, key, payload, ttl).Err()
}

// Ping checks if the Redis connection is alive.
func (c *VerdictCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *VerdictCache) Close() error {
	return c.redis.Close()
}

// VerdictKey builds a stable cache key for a (profile, trial) pair from
// a hash of their canonical JSON forms.
func VerdictKey(profile *domain.PatientProfile, trial *domain.TrialRecord) string {
	profileJSON, _ := json.Marshal(profile)
	trialJSON, _ := json.Marshal(trial)

	hash := sha256.Sum256(append(profileJSON, trialJSON...))
	return fmt.Sprintf("verdict:%x", hash[:12])
}
