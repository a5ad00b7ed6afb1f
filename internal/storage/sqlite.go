package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// SQLiteBackend stores checkpoints in a SQLite database file.
type SQLiteBackend struct {
	path string

	mu  sync.RWMutex
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteBackend opens (creating if needed) the database at path.
func NewSQLiteBackend(ctx context.Context, path string) (*SQLiteBackend, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one connection keeps ":memory:" databases coherent
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteBackend{path: path, db: db, now: time.Now}, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS checkpoints (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			params     TEXT NOT NULL,
			weights    BLOB NOT NULL,
			version    INTEGER NOT NULL,
			metadata   TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create checkpoints table: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errors.New("sqlite backend is closed")
	}
	return s.db, nil
}

// Create implements Backend.Create
func (s *SQLiteBackend) Create(ctx context.Context, checkpoint *Checkpoint) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	if checkpoint.ID == "" {
		checkpoint.ID = uuid.New().String()
	}
	now := s.now()
	if checkpoint.CreatedAt.IsZero() {
		checkpoint.CreatedAt = now
	}
	checkpoint.UpdatedAt = now
	if checkpoint.Version == 0 {
		checkpoint.Version = 1
	}

	params, err := json.Marshal(checkpoint.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	metadata, err := json.Marshal(checkpoint.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO checkpoints (id, name, params, weights, version, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, checkpoint.ID, checkpoint.Name, string(params), encodeWeights(checkpoint.Weights),
		int64(checkpoint.Version), string(metadata),
		checkpoint.CreatedAt.UnixNano(), checkpoint.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("checkpoint %s: %w", checkpoint.ID, ErrConflict)
	}
	return nil
}

const selectCheckpoint = `SELECT id, name, params, weights, version, metadata, created_at, updated_at FROM checkpoints`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row rowScanner) (*Checkpoint, error) {
	var (
		c                    Checkpoint
		params, metadata     sql.NullString
		weights              []byte
		version              int64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&c.ID, &c.Name, &params, &weights, &version, &metadata, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(params.String), &c.Params); err != nil {
		return nil, fmt.Errorf("decode params of %s: %w", c.ID, err)
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &c.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", c.ID, err)
		}
	}
	w, err := decodeWeights(weights)
	if err != nil {
		return nil, fmt.Errorf("decode weights of %s: %w", c.ID, err)
	}
	c.Weights = w
	c.Version = uint64(version)
	c.CreatedAt = time.Unix(0, createdAt)
	c.UpdatedAt = time.Unix(0, updatedAt)
	return &c, nil
}

// Get implements Backend.Get
func (s *SQLiteBackend) Get(ctx context.Context, id string) (*Checkpoint, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	c, err := scanCheckpoint(db.QueryRowContext(ctx, selectCheckpoint+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("checkpoint %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return c, nil
}

// List implements Backend.List
func (s *SQLiteBackend) List(ctx context.Context) ([]*Checkpoint, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, selectCheckpoint+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []*Checkpoint
	for rows.Next() {
		c, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateWeights implements Backend.UpdateWeights
func (s *SQLiteBackend) UpdateWeights(ctx context.Context, id string, weights []float64) (*Checkpoint, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	res, err := db.ExecContext(ctx, `
		UPDATE checkpoints SET weights = ?, version = version + 1, updated_at = ?
		WHERE id = ?
	`, encodeWeights(weights), s.now().UnixNano(), id)
	if err != nil {
		return nil, fmt.Errorf("update weights: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("checkpoint %s: %w", id, ErrNotFound)
	}
	return s.Get(ctx, id)
}

// Delete implements Backend.Delete
func (s *SQLiteBackend) Delete(ctx context.Context, id string) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM checkpoints WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("checkpoint %s: %w", id, ErrNotFound)
	}
	return nil
}

// Close implements Backend.Close
func (s *SQLiteBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func encodeWeights(weights []float64) []byte {
	out := make([]byte, 0, len(weights)*8)
	for _, w := range weights {
		out = binary.LittleEndian.AppendUint64(out, math.Float64bits(w))
	}
	return out
}

func decodeWeights(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("weights blob has %d bytes, not a multiple of 8", len(b))
	}
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out, nil
}
