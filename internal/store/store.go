// Package store provides the versioned corridor profile persistence layer.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLStore implements domain.ProfileStore using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// New creates a profile store based on configuration.
func New(cfg domain.StoreConfig) (domain.ProfileStore, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := &SQLStore{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

func (s *SQLStore) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := s.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// Save installs a profile as the corridor's current profile. The outgoing
// current profile (if any) is archived into history in the same transaction,
// so a reader never observes the archive without the install or vice versa.
func (s *SQLStore) Save(ctx context.Context, profile *domain.CorridorProfile) (string, error) {
	if profile == nil {
		return "", fmt.Errorf("%w: profile is required", ErrInvalidInput)
	}
	if profile.CorridorCode == "" {
		return "", fmt.Errorf("%w: corridor code is required", ErrInvalidInput)
	}
	if profile.Version == "" {
		return "", fmt.Errorf("%w: version is required", ErrInvalidInput)
	}

	payload, err := domain.MarshalProfile(profile)
	if err != nil {
		return "", fmt.Errorf("failed to serialize profile: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	// Archive the outgoing current profile, if one exists.
	var prevVersion, prevPayload string
	err = tx.QueryRowContext(ctx, s.rebind(`
		SELECT version, payload FROM corridor_current WHERE corridor_code = ?
	`), profile.CorridorCode).Scan(&prevVersion, &prevPayload)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First save for this corridor.
	case err != nil:
		return "", err
	default:
		now := time.Now().UTC()
		// The nanosecond suffix keeps keys unique when the same version is
		// archived more than once, which rollbacks make routine.
		archiveKey := prevVersion + "_" + now.Format("20060102150405.000000000")
		_, err = tx.ExecContext(ctx, s.rebind(`
			INSERT INTO corridor_history (corridor_code, archive_key, version, archived_at, payload)
			VALUES (?, ?, ?, ?, ?)
		`), profile.CorridorCode, archiveKey, prevVersion, now, prevPayload)
		if err != nil {
			return "", fmt.Errorf("failed to archive previous profile: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO corridor_current (
			corridor_code, version, profile_date, transaction_count,
			baseline_fraud_rate, payload, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(corridor_code) DO UPDATE SET
			version = excluded.version,
			profile_date = excluded.profile_date,
			transaction_count = excluded.transaction_count,
			baseline_fraud_rate = excluded.baseline_fraud_rate,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`),
		profile.CorridorCode, profile.Version, profile.ProfileDate,
		profile.TransactionCount, profile.BaselineFraudRate,
		string(payload), time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to install profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	return profile.Version, nil
}

// GetCurrent retrieves the corridor's current profile.
func (s *SQLStore) GetCurrent(ctx context.Context, corridorCode string) (*domain.CorridorProfile, error) {
	if corridorCode == "" {
		return nil, fmt.Errorf("%w: corridor code is required", ErrInvalidInput)
	}

	var payload string
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT payload FROM corridor_current WHERE corridor_code = ?
	`), corridorCode).Scan(&payload)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return domain.UnmarshalProfile([]byte(payload))
}

// GetHistory retrieves up to limit archived profiles, most recently archived
// first. The archive order is the save order, not the version order: after a
// rollback an older version legitimately sits on top of the history.
func (s *SQLStore) GetHistory(ctx context.Context, corridorCode string, limit int) ([]*domain.CorridorProfile, error) {
	if corridorCode == "" {
		return nil, fmt.Errorf("%w: corridor code is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT payload FROM corridor_history
		WHERE corridor_code = ?
		ORDER BY archived_at DESC, archive_key DESC
		LIMIT ?
	`), corridorCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := make([]*domain.CorridorProfile, 0, limit)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		profile, err := domain.UnmarshalProfile([]byte(payload))
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}

	return profiles, rows.Err()
}

// Rollback re-installs the profile archived steps saves ago. It is a forward
// save: the displaced current profile lands in history, so history only grows
// and a rollback can itself be rolled back.
func (s *SQLStore) Rollback(ctx context.Context, corridorCode string, steps int) (*domain.CorridorProfile, error) {
	if corridorCode == "" {
		return nil, fmt.Errorf("%w: corridor code is required", ErrInvalidInput)
	}
	if steps <= 0 {
		return nil, fmt.Errorf("%w: steps must be positive", ErrInvalidInput)
	}

	history, err := s.GetHistory(ctx, corridorCode, steps)
	if err != nil {
		return nil, err
	}
	if len(history) < steps {
		return nil, fmt.Errorf("%w: only %d archived profiles, need %d", ErrNotFound, len(history), steps)
	}

	target := history[steps-1]
	if _, err := s.Save(ctx, target); err != nil {
		return nil, err
	}

	return target, nil
}

// ListCorridors returns the sorted codes of corridors with a current profile.
func (s *SQLStore) ListCorridors(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT corridor_code FROM corridor_current ORDER BY corridor_code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}

	return codes, rows.Err()
}

// GetMetadata returns the summary columns of a corridor's current profile
// without decoding the payload.
func (s *SQLStore) GetMetadata(ctx context.Context, corridorCode string) (*domain.ProfileMetadata, error) {
	if corridorCode == "" {
		return nil, fmt.Errorf("%w: corridor code is required", ErrInvalidInput)
	}

	var md domain.ProfileMetadata
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT corridor_code, version, profile_date, transaction_count, baseline_fraud_rate
		FROM corridor_current
		WHERE corridor_code = ?
	`), corridorCode).Scan(
		&md.CorridorCode, &md.Version, &md.ProfileDate,
		&md.TransactionCount, &md.BaselineFraudRate,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &md, nil
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
