package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the journal operations.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// HasReplied reports whether a reply to mentionID was recorded.
	HasReplied(ctx context.Context, mentionID int64) (bool, error)

	// RecordReply stores a sent reply. Recording the same mention twice is a no-op.
	RecordReply(ctx context.Context, reply *Reply) error

	// RecordPost stores a sent daily post.
	RecordPost(ctx context.Context, post *Post) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) HasReplied(ctx context.Context, mentionID int64) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM replies WHERE mention_id = ?`, mentionID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to query reply journal", "mention_id", mentionID, "error", err)
		return false, fmt.Errorf("failed to check reply for mention %d: %w", mentionID, err)
	}
	return count > 0, nil
}

func (s *sqlxStore) RecordReply(ctx context.Context, reply *Reply) error {
	if reply == nil {
		return errors.New("cannot record nil reply")
	}
	if reply.MentionID <= 0 {
		return fmt.Errorf("reply must have a positive mention_id, got %d", reply.MentionID)
	}
	if reply.CreatedAt.IsZero() {
		reply.CreatedAt = time.Now().UTC()
	}

	query := `
        INSERT INTO replies (mention_id, command, location_key, post_id, created_at)
        VALUES (:mention_id, :command, :location_key, :post_id, :created_at)
        ON CONFLICT (mention_id) DO NOTHING;
    `
	if _, err := s.db.NamedExecContext(ctx, query, reply); err != nil {
		s.logger.ErrorContext(ctx, "Error recording reply", "mention_id", reply.MentionID, "error", err)
		return fmt.Errorf("failed to record reply for mention %d: %w", reply.MentionID, err)
	}

	s.logger.DebugContext(ctx, "Recorded reply", "mention_id", reply.MentionID, "command", reply.Command)
	return nil
}

func (s *sqlxStore) RecordPost(ctx context.Context, post *Post) error {
	if post == nil {
		return errors.New("cannot record nil post")
	}
	if post.LocationKey == "" {
		return errors.New("post must have a location key")
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}

	query := `
        INSERT INTO posts (location_key, post_id, created_at)
        VALUES (:location_key, :post_id, :created_at);
    `
	result, err := s.db.NamedExecContext(ctx, query, post)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error recording post", "location_key", post.LocationKey, "error", err)
		return fmt.Errorf("failed to record post for %s: %w", post.LocationKey, err)
	}
	if id, err := result.LastInsertId(); err == nil {
		post.ID = id
	}
	return nil
}

func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Running SQL maintenance (VACUUM)")
	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		s.logger.WarnContext(ctx, "PRAGMA optimize failed", "error", err)
	}
	return nil
}
