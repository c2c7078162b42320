package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/shared"
)

const nodeColumns = `id, sequence, parent_id, title, subtitle, artwork_url, search_criteria, created_at, updated_at, deleted_at`

// NodeRecord is a persisted [models.CatalogNode] with its place in the library tree.
type NodeRecord struct {
	models.CatalogNode
	Sequence  int
	ParentID  string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// NodeRepository stores the browsable nodes of the local library.
//
// Node IDs are the catalog IDs clients browse by, so unlike items they are not generated unless empty.
type NodeRepository struct {
	db *sql.DB
}

// NewNodeRepository creates a new NodeRepository with the given database connection
func NewNodeRepository(db *sql.DB) *NodeRepository {
	return &NodeRepository{db: db}
}

// Create inserts node under parentID ("" for a root node).
func (r *NodeRepository) Create(node *models.CatalogNode, parentID string) error {
	if node.ID == "" {
		node.ID = shared.GenerateID()
	}
	if err := node.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "nodes")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	criteria, err := encodeCriteria(node.SearchCriteria)
	if err != nil {
		return err
	}

	now := time.Now()
	query := `
		INSERT INTO nodes (id, sequence, parent_id, title, subtitle, artwork_url, search_criteria, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query,
		node.ID,
		sequence,
		nullString(parentID),
		node.Title,
		node.Subtitle,
		artworkValue(node.Artwork),
		criteria,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert node: %w", err)
	}
	return nil
}

// Upsert creates node or overwrites the stored copy, restoring it if it was soft-deleted.
func (r *NodeRepository) Upsert(node *models.CatalogNode, parentID string) error {
	var exists bool
	if err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM nodes WHERE id = ?)`, node.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to look up node: %w", err)
	}
	if !exists {
		return r.Create(node, parentID)
	}

	if err := node.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	criteria, err := encodeCriteria(node.SearchCriteria)
	if err != nil {
		return err
	}

	query := `
		UPDATE nodes
		SET parent_id = ?, title = ?, subtitle = ?, artwork_url = ?, search_criteria = ?, updated_at = ?, deleted_at = NULL
		WHERE id = ?
	`
	if _, err := r.db.Exec(query,
		nullString(parentID),
		node.Title,
		node.Subtitle,
		artworkValue(node.Artwork),
		criteria,
		time.Now(),
		node.ID,
	); err != nil {
		return fmt.Errorf("failed to update node: %w", err)
	}
	return nil
}

// Get retrieves a node by ID, excluding soft-deleted nodes
func (r *NodeRepository) Get(id string) (*NodeRecord, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE id = ? AND deleted_at IS NULL`

	rec, err := scanNode(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrNodeNotFound, id)
	}
	return rec, err
}

// Children lists the nodes directly under parentID ("" for roots), in insertion order.
func (r *NodeRepository) Children(parentID string) ([]*NodeRecord, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE deleted_at IS NULL`
	var args []any
	if parentID == "" {
		query += ` AND parent_id IS NULL`
	} else {
		query += ` AND parent_id = ?`
		args = append(args, parentID)
	}
	return r.list(query+` ORDER BY sequence ASC`, args...)
}

// List retrieves every live node ordered by sequence.
func (r *NodeRepository) List() ([]*NodeRecord, error) {
	return r.list(`SELECT ` + nodeColumns + ` FROM nodes WHERE deleted_at IS NULL ORDER BY sequence ASC`)
}

// Delete soft-deletes a node and the items listed under it.
func (r *NodeRepository) Delete(id string) error {
	now := time.Now()

	result, err := r.db.Exec(`UPDATE nodes SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrNodeNotFound, id)
	}

	if _, err := r.db.Exec(`UPDATE items SET deleted_at = ? WHERE node_id = ? AND deleted_at IS NULL`, now, id); err != nil {
		return fmt.Errorf("failed to delete node items: %w", err)
	}
	return nil
}

func (r *NodeRepository) list(query string, args ...any) ([]*NodeRecord, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*NodeRecord
	for rows.Next() {
		rec, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return nodes, nil
}

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

func scanNode(s scanner) (*NodeRecord, error) {
	var (
		rec       NodeRecord
		parentID  sql.NullString
		artwork   string
		criteria  string
		deletedAt sql.NullTime
	)

	err := s.Scan(&rec.ID, &rec.Sequence, &parentID, &rec.Title, &rec.Subtitle, &artwork, &criteria,
		&rec.CreatedAt, &rec.UpdatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan node: %w", err)
	}

	rec.ParentID = parentID.String
	rec.Artwork = parseArtwork(artwork)
	if rec.SearchCriteria, err = decodeCriteria(criteria); err != nil {
		return nil, err
	}
	rec.IsActiveContainer = models.False
	rec.SupportsItemsHiding = true
	if deletedAt.Valid {
		rec.DeletedAt = &deletedAt.Time
	}
	return &rec, nil
}

func encodeCriteria(criteria []models.SearchCriterion) (string, error) {
	if len(criteria) == 0 {
		return "", nil
	}
	b, err := json.Marshal(criteria)
	if err != nil {
		return "", fmt.Errorf("failed to encode search criteria: %w", err)
	}
	return string(b), nil
}

func decodeCriteria(s string) ([]models.SearchCriterion, error) {
	if s == "" {
		return nil, nil
	}
	var criteria []models.SearchCriterion
	if err := json.Unmarshal([]byte(s), &criteria); err != nil {
		return nil, fmt.Errorf("failed to decode search criteria: %w", err)
	}
	return criteria, nil
}

// artworkValue stores remote artwork by URL and bundled artwork by name.
func artworkValue(a *models.Artwork) string {
	switch {
	case a == nil:
		return ""
	case a.Location != "":
		return a.Location
	default:
		return a.Name
	}
}

func parseArtwork(s string) *models.Artwork {
	switch {
	case s == "":
		return nil
	case strings.Contains(s, "://"):
		return &models.Artwork{Location: s}
	default:
		return &models.Artwork{Name: s}
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
