// Package sqlitevec provides a SQLite-backed memory.Index using sqlite-vec
// for KNN retrieval of scenes and facts, with canon state in a plain table.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/fableforge/fableforge/pkg/embeddings"
	"github.com/fableforge/fableforge/pkg/memory"
)

// Index implements memory.Index using SQLite with sqlite-vec.
type Index struct {
	db       *sql.DB
	embedder embeddings.Embedder
	logger   *zap.Logger
}

// Config holds configuration for the sqlite-vec memory index.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	// Required; must match the configured embedding model.
	Dimensions uint
}

// tables maps a memory kind to its entry and vec0 table names. Each kind
// gets its own vec0 virtual table so KNN queries never cross kinds.
var tables = map[memory.Kind]struct{ entries, vec string }{
	memory.KindScene: {entries: "scene_entries", vec: "scene_embeddings"},
	memory.KindFact:  {entries: "fact_entries", vec: "fact_embeddings"},
}

// NewIndex creates a new sqlite-vec memory index.
func NewIndex(c Config, embedder embeddings.Embedder, logger *zap.Logger) (*Index, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", memory.ErrConnection, err)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: sqlite-vec not available: %v", memory.ErrConnection, err)
	}

	for _, t := range tables {
		// vec0 virtual tables use integer rowids, so each kind keeps a
		// mapping table from rowid to campaign id and text.
		_, err = db.Exec(fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				rowid INTEGER PRIMARY KEY AUTOINCREMENT,
				campaign_id TEXT NOT NULL,
				text TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL
			)
		`, t.entries))
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("creating %s table: %w", t.entries, err)
		}

		createVec := fmt.Sprintf(
			`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(embedding float[%d])`,
			t.vec, c.Dimensions,
		)
		if _, err := db.Exec(createVec); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating %s vec0 table: %w", t.vec, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS canons (
			campaign_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating canons table: %w", err)
	}

	logger.Info("sqlite-vec memory index initialized",
		zap.String("db_path", c.DBPath),
		zap.Uint("dimensions", c.Dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &Index{
		db:       db,
		embedder: embedder,
		logger:   logger,
	}, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// RecordScene embeds summary and appends it to the campaign's episodic memory.
func (i *Index) RecordScene(ctx context.Context, campaignID, summary string) error {
	return i.record(ctx, memory.KindScene, campaignID, summary)
}

// RecordFact embeds fact and appends it to the campaign's factual memory.
func (i *Index) RecordFact(ctx context.Context, campaignID, fact string) error {
	return i.record(ctx, memory.KindFact, campaignID, fact)
}

func (i *Index) record(ctx context.Context, kind memory.Kind, campaignID, text string) error {
	t := tables[kind]

	embedding, err := i.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding entry: %w", err)
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s(campaign_id, text, created_at) VALUES (?, ?, ?)`, t.entries),
		campaignID, text, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting entry: %w", err)
	}

	rowID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting rowid: %w", err)
	}

	// Insert embedding into the vec0 table with matching rowid
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s(rowid, embedding) VALUES (?, ?)`, t.vec),
		rowID, serializeFloat32(embedding),
	); err != nil {
		return fmt.Errorf("inserting embedding: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	i.logger.Debug("recorded memory entry",
		zap.String("kind", string(kind)),
		zap.String("campaign_id", campaignID),
	)

	return nil
}

// QueryRelevant embeds query and returns up to limit entries of the
// requested kind ranked by KNN distance, most relevant first.
func (i *Index) QueryRelevant(ctx context.Context, campaignID, query string, kind memory.Kind, limit int) ([]string, error) {
	t, ok := tables[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", memory.ErrUnknownKind, kind)
	}

	if limit <= 0 {
		limit = memory.DefaultLimit
	}

	// An empty campaign yields an empty result, not an error; skip the
	// embedding round trip entirely.
	var count int
	if err := i.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE campaign_id = ?`, t.entries),
		campaignID,
	).Scan(&count); err != nil {
		return nil, fmt.Errorf("counting entries: %w", err)
	}
	if count == 0 {
		return []string{}, nil
	}

	queryEmbedding, err := i.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// KNN via vec0 MATCH, joined back for campaign filtering. The KNN
	// candidate set is oversized because the campaign filter applies after
	// the vector match.
	rows, err := i.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT e.text
		FROM %s ve
		INNER JOIN %s e ON e.rowid = ve.rowid
		WHERE ve.embedding MATCH ?
			AND ve.k = ?
			AND e.campaign_id = ?
		ORDER BY ve.distance
		LIMIT ?
	`, t.vec, t.entries), serializeFloat32(queryEmbedding), limit*8, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	texts := []string{}
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		texts = append(texts, text)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	i.logger.Debug("queried memory index",
		zap.String("kind", string(kind)),
		zap.Int("results", len(texts)),
	)

	return texts, nil
}

// Canon returns the campaign's canon state, defaulting to an empty mapping.
func (i *Index) Canon(ctx context.Context, campaignID string) (memory.Canon, error) {
	var state string
	err := i.db.QueryRowContext(ctx,
		`SELECT state FROM canons WHERE campaign_id = ?`, campaignID,
	).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return memory.Canon{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying canon: %w", err)
	}

	var c memory.Canon
	if err := json.Unmarshal([]byte(state), &c); err != nil {
		return nil, fmt.Errorf("decoding canon: %w", err)
	}
	return c, nil
}

// SetCanon replaces the campaign's canon state wholesale.
func (i *Index) SetCanon(ctx context.Context, campaignID string, c memory.Canon) error {
	state, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding canon: %w", err)
	}

	if _, err := i.db.ExecContext(ctx, `
		INSERT INTO canons(campaign_id, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(campaign_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at
	`, campaignID, string(state), time.Now().UTC()); err != nil {
		return fmt.Errorf("upserting canon: %w", err)
	}

	return nil
}

// Close closes the underlying database.
func (i *Index) Close() error {
	return i.db.Close()
}

// Ensure Index implements memory.Index
var _ memory.Index = (*Index)(nil)
