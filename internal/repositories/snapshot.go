package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/renderkit/internal/shared"
)

// SnapshotRecord is a stored session dump.
type SnapshotRecord struct {
	ID            string
	Sequence      int
	RendererCount int
	Body          []byte
	CreatedAt     time.Time
}

// SnapshotRepository keeps the JSON documents written by the dump task.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new SnapshotRepository with the given database connection
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Create stores body and returns the new record.
func (r *SnapshotRepository) Create(rendererCount int, body []byte) (*SnapshotRecord, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty snapshot", shared.ErrInvalidInput)
	}

	sequence, err := NextSequence(r.db, "snapshots")
	if err != nil {
		return nil, fmt.Errorf("failed to generate sequence: %w", err)
	}

	rec := &SnapshotRecord{
		ID:            shared.GenerateID(),
		Sequence:      sequence,
		RendererCount: rendererCount,
		Body:          body,
		CreatedAt:     time.Now(),
	}

	query := `INSERT INTO snapshots (id, sequence, renderer_count, body, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := r.db.Exec(query, rec.ID, rec.Sequence, rec.RendererCount, string(rec.Body), rec.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return rec, nil
}

// Get retrieves a snapshot by ID.
func (r *SnapshotRepository) Get(id string) (*SnapshotRecord, error) {
	query := `SELECT id, sequence, renderer_count, body, created_at FROM snapshots WHERE id = ?`
	rec, err := scanSnapshot(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot not found: %s", id)
	}
	return rec, err
}

// Latest returns the most recent snapshot.
func (r *SnapshotRepository) Latest() (*SnapshotRecord, error) {
	query := `SELECT id, sequence, renderer_count, body, created_at FROM snapshots ORDER BY sequence DESC LIMIT 1`
	rec, err := scanSnapshot(r.db.QueryRow(query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no snapshots recorded")
	}
	return rec, err
}

// List returns up to limit snapshots, newest first, without their bodies.
func (r *SnapshotRepository) List(limit int) ([]*SnapshotRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(`SELECT id, sequence, renderer_count, '', created_at FROM snapshots ORDER BY sequence DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []*SnapshotRecord
	for rows.Next() {
		rec, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// Prune deletes all but the newest keep snapshots and reports how many were removed.
func (r *SnapshotRepository) Prune(keep int) (int, error) {
	result, err := r.db.Exec(`
		DELETE FROM snapshots
		WHERE id NOT IN (SELECT id FROM snapshots ORDER BY sequence DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(rows), nil
}

func scanSnapshot(s scanner) (*SnapshotRecord, error) {
	var (
		rec  SnapshotRecord
		body string
	)
	err := s.Scan(&rec.ID, &rec.Sequence, &rec.RendererCount, &body, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	if body != "" {
		rec.Body = []byte(body)
	}
	return &rec, nil
}
