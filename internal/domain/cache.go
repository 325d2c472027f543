package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching current profiles in front of the
// store. Supports two-phase caching: local LRU (Community) + Redis (Pro).
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetProfile retrieves a cached corridor profile.
	// Returns nil, nil on a miss.
	GetProfile(ctx context.Context, corridorCode string) (*CorridorProfile, error)

	// SetProfile caches a corridor profile.
	SetProfile(ctx context.Context, corridorCode string, profile *CorridorProfile, ttl time.Duration) error

	// InvalidateProfile drops a corridor's cached profile after a save or
	// rollback changes the current pointer.
	InvalidateProfile(ctx context.Context, corridorCode string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
