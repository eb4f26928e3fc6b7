package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/imagetrace/backend/internal/domain"
)

// Store persists per-image search counts and beta-signup leads in SQLite
type Store struct {
	conn *sql.DB
	log  zerolog.Logger
	now  func() time.Time
}

// Open opens (or creates) the database at dsn and applies migrations.
// Use ":memory:" for an ephemeral store.
func Open(ctx context.Context, dsn string, log zerolog.Logger) (*Store, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serialises writers; one connection also keeps ":memory:" databases shared
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{
		conn: conn,
		log:  log.With().Str("component", "tracking").Logger(),
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// RecordSearch increments the counter for imageKey and returns the new count
func (s *Store) RecordSearch(ctx context.Context, imageKey string) (int64, error) {
	now := s.now()
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO search_counts (image_key, count, first_seen, last_seen)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(image_key) DO UPDATE SET
			count = count + 1,
			last_seen = excluded.last_seen
	`, imageKey, now, now)
	if err != nil {
		return 0, fmt.Errorf("%w: record search: %v", domain.ErrTrackingFailure, err)
	}

	var count int64
	if err := s.conn.QueryRowContext(ctx, "SELECT count FROM search_counts WHERE image_key = ?", imageKey).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: read search count: %v", domain.ErrTrackingFailure, err)
	}
	return count, nil
}

// RecordSignup stores a lead; signing up twice with the same email updates name and company
func (s *Store) RecordSignup(ctx context.Context, signup domain.BetaSignup) error {
	createdAt := signup.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO beta_signups (email, name, company, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			name = excluded.name,
			company = excluded.company
	`, signup.Email, signup.Name, signup.Company, createdAt)
	if err != nil {
		return fmt.Errorf("%w: record signup: %v", domain.ErrTrackingFailure, err)
	}
	s.log.Info().Str("email", signup.Email).Msg("beta signup recorded")
	return nil
}

// Stats returns aggregate counts
func (s *Store) Stats(ctx context.Context) (*domain.SearchStats, error) {
	var stats domain.SearchStats
	err := s.conn.QueryRowContext(ctx, `
		SELECT
			COALESCE((SELECT SUM(count) FROM search_counts), 0),
			(SELECT COUNT(*) FROM search_counts),
			(SELECT COUNT(*) FROM beta_signups)
	`).Scan(&stats.TotalSearches, &stats.UniqueImages, &stats.BetaSignups)
	if err != nil {
		return nil, fmt.Errorf("%w: stats: %v", domain.ErrTrackingFailure, err)
	}
	return &stats, nil
}
