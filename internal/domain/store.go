package domain

import (
	"context"
	"time"
)

// ProfileStore is the versioned, per-corridor persistence layer.
//
// Each corridor has exactly one "current" profile and an append-only history
// of every profile that was ever current. Save archives the outgoing current
// profile before installing the new one, atomically. The store assumes a
// single writer per corridor; concurrent writers must serialize externally.
type ProfileStore interface {
	// Save installs profile as the corridor's current profile, archiving the
	// previous current (if any) into history first. Returns the saved version.
	Save(ctx context.Context, profile *CorridorProfile) (string, error)

	// GetCurrent returns the corridor's current profile, or ErrNotFound.
	GetCurrent(ctx context.Context, corridorCode string) (*CorridorProfile, error)

	// GetHistory returns up to limit archived profiles, most recently
	// archived first. A corridor with no history returns an empty slice.
	GetHistory(ctx context.Context, corridorCode string, limit int) ([]*CorridorProfile, error)

	// Rollback re-installs the profile archived `steps` saves ago as current.
	// The rollback is a forward save: the displaced current profile is
	// archived, so history only ever grows. Fails with ErrNotFound when
	// insufficient history exists.
	Rollback(ctx context.Context, corridorCode string, steps int) (*CorridorProfile, error)

	// ListCorridors returns the sorted codes of corridors with a current profile.
	ListCorridors(ctx context.Context) ([]string, error)

	// GetMetadata returns the cheap summary of a corridor's current profile
	// without decoding the statistical payload, or ErrNotFound.
	GetMetadata(ctx context.Context, corridorCode string) (*ProfileMetadata, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// StoreConfig holds configuration for store initialization.
type StoreConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
