// Package sqlite provides a SQLite-backed convo.Store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/fableforge/fableforge/pkg/convo"
)

// Store implements convo.Store using SQLite.
type Store struct {
	db       *sql.DB
	preamble string
	logger   *zap.Logger
}

// Config holds configuration for the SQLite conversation store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Preamble, when non-empty, is recorded as the first system turn of
	// every new conversation.
	Preamble string
}

// NewStore creates a SQLite-backed conversation store and runs its schema
// migration.
func NewStore(c Config, logger *zap.Logger) (*Store, error) {
	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			campaign_id TEXT NOT NULL,
			player_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating conversations table: %w", err)
	}

	// seq preserves append order independent of timestamps, which may
	// collide at SQLite's timestamp resolution.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS turns (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating turns table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, seq)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating turns index: %w", err)
	}

	logger.Info("sqlite conversation store initialized",
		zap.String("db_path", c.DBPath),
	)

	return &Store{
		db:       db,
		preamble: c.Preamble,
		logger:   logger,
	}, nil
}

// Create allocates a fresh conversation row, recording the system preamble
// as its first turn when configured.
func (s *Store) Create(ctx context.Context, campaignID, playerID string) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (id, campaign_id, player_id, created_at) VALUES (?, ?, ?, ?)`,
		id, campaignID, playerID, now,
	); err != nil {
		return "", fmt.Errorf("inserting conversation: %w", err)
	}

	if s.preamble != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO turns (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
			id, convo.RoleSystem, s.preamble, now,
		); err != nil {
			return "", fmt.Errorf("inserting preamble turn: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing transaction: %w", err)
	}

	return id, nil
}

// Append records a turn at the end of the conversation's log.
func (s *Store) Append(ctx context.Context, conversationID, role, content string) error {
	if err := s.exists(ctx, conversationID); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		conversationID, role, content, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("inserting turn: %w", err)
	}

	return nil
}

// Turns returns the conversation's turns ordered by insertion sequence.
func (s *Store) Turns(ctx context.Context, conversationID string) ([]convo.Turn, error) {
	if err := s.exists(ctx, conversationID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM turns WHERE conversation_id = ? ORDER BY seq ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []convo.Turn
	for rows.Next() {
		var t convo.Turn
		if err := rows.Scan(&t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns: %w", err)
	}

	return turns, nil
}

// Get returns the full conversation record including its turn log.
func (s *Store) Get(ctx context.Context, conversationID string) (*convo.Conversation, error) {
	var c convo.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, campaign_id, player_id, created_at FROM conversations WHERE id = ?`,
		conversationID,
	).Scan(&c.ID, &c.CampaignID, &c.PlayerID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, convo.NotFoundError{ID: conversationID}
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	turns, err := s.Turns(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	c.Turns = turns

	return &c, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) exists(ctx context.Context, conversationID string) error {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM conversations WHERE id = ?`, conversationID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return convo.NotFoundError{ID: conversationID}
	}
	if err != nil {
		return fmt.Errorf("checking conversation: %w", err)
	}
	return nil
}

// Ensure Store implements convo.Store
var _ convo.Store = (*Store)(nil)
