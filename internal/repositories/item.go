package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/shared"
)

const itemColumns = `id, sequence, item_id, node_id, position, kind, title, subtitle, artist, album, artwork_url, available, queueable, created_at, updated_at, deleted_at`

// ItemRecord is a persisted [models.Item] listed under a node.
//
// RowID identifies the row; the embedded Item keeps the catalog ID, which may be listed under
// several nodes.
type ItemRecord struct {
	models.Item
	RowID     string
	Sequence  int
	NodeID    string
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// ItemRepository stores the items listed under library nodes.
type ItemRepository struct {
	db *sql.DB
}

// NewItemRepository creates a new ItemRepository with the given database connection
func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create lists item under nodeID at position and returns the generated row ID.
func (r *ItemRepository) Create(nodeID string, position int, item models.Item) (string, error) {
	if err := item.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "items")
	if err != nil {
		return "", fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	kind := item.Kind
	if kind == "" {
		kind = models.KindUnknown
	}
	var artist, album string
	if item.Metadata != nil {
		artist, album = item.Metadata.Artist, item.Metadata.Album
	}

	now := time.Now()
	query := `
		INSERT INTO items (id, sequence, item_id, node_id, position, kind, title, subtitle, artist, album, artwork_url, available, queueable, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query,
		id,
		sequence,
		item.ID,
		nodeID,
		position,
		string(kind),
		item.Title,
		item.Subtitle,
		artist,
		album,
		artworkValue(item.Artwork),
		item.Available,
		item.Queueable,
		now,
		now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert item: %w", err)
	}
	return id, nil
}

// Get retrieves an item row by row ID, excluding soft-deleted rows
func (r *ItemRepository) Get(rowID string) (*ItemRecord, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = ? AND deleted_at IS NULL`

	rec, err := scanItem(r.db.QueryRow(query, rowID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item not found: %s", rowID)
	}
	return rec, err
}

// ListByNode returns every live item under nodeID ordered by position.
func (r *ItemRepository) ListByNode(nodeID string) ([]*ItemRecord, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE node_id = ? AND deleted_at IS NULL ORDER BY position ASC, sequence ASC`
	return r.list(context.Background(), query, nodeID)
}

// Count returns the number of live items under nodeID.
func (r *ItemRepository) Count(ctx context.Context, nodeID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE node_id = ? AND deleted_at IS NULL`, nodeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return n, nil
}

// Range returns up to limit items under nodeID starting at offset.
func (r *ItemRepository) Range(ctx context.Context, nodeID string, offset, limit int) ([]*ItemRecord, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE node_id = ? AND deleted_at IS NULL ORDER BY position ASC, sequence ASC LIMIT ? OFFSET ?`
	return r.list(ctx, query, nodeID, limit, offset)
}

// SearchColumn maps a search criterion key onto the column it matches.
//
// Unknown keys match titles.
func SearchColumn(key string) string {
	switch strings.ToLower(key) {
	case "artist":
		return "artist"
	case "album":
		return "album"
	default:
		return "title"
	}
}

// Search returns the page of items under nodeID whose column contains keyword, ignoring case,
// together with the total number of matches.
func (r *ItemRepository) Search(ctx context.Context, nodeID, column, keyword string, offset, limit int) ([]*ItemRecord, int, error) {
	column = SearchColumn(column)
	pattern := "%" + escapeLike(strings.ToLower(keyword)) + "%"
	where := ` FROM items WHERE node_id = ? AND deleted_at IS NULL AND lower(` + column + `) LIKE ? ESCAPE '\'`

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+where, nodeID, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count matches: %w", err)
	}
	if limit <= 0 || offset >= total {
		return []*ItemRecord{}, total, nil
	}

	query := `SELECT ` + itemColumns + where + ` ORDER BY position ASC, sequence ASC LIMIT ? OFFSET ?`
	items, err := r.list(ctx, query, nodeID, pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// DeleteByNode soft-deletes every item under nodeID and reports how many were removed.
func (r *ItemRepository) DeleteByNode(nodeID string) (int, error) {
	result, err := r.db.Exec(`UPDATE items SET deleted_at = ? WHERE node_id = ? AND deleted_at IS NULL`, time.Now(), nodeID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete items: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(rows), nil
}

// Delete soft-deletes one item row
func (r *ItemRepository) Delete(rowID string) error {
	result, err := r.db.Exec(`UPDATE items SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), rowID)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("item not found or already deleted: %s", rowID)
	}
	return nil
}

func (r *ItemRepository) list(ctx context.Context, query string, args ...any) ([]*ItemRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := []*ItemRecord{}
	for rows.Next() {
		rec, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

func scanItem(s scanner) (*ItemRecord, error) {
	var (
		rec       ItemRecord
		kind      string
		artist    string
		album     string
		artwork   string
		deletedAt sql.NullTime
	)

	err := s.Scan(&rec.RowID, &rec.Sequence, &rec.ID, &rec.NodeID, &rec.Position, &kind, &rec.Title, &rec.Subtitle,
		&artist, &album, &artwork, &rec.Available, &rec.Queueable, &rec.CreatedAt, &rec.UpdatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}

	rec.Kind = models.ParseItemKind(kind)
	rec.Artwork = parseArtwork(artwork)
	if artist != "" || album != "" {
		rec.Metadata = &models.ItemMetadata{Title: rec.Title, Artist: artist, Album: album}
	}
	if deletedAt.Valid {
		rec.DeletedAt = &deletedAt.Time
	}
	return &rec, nil
}

func itemsOf(records []*ItemRecord) []models.Item {
	items := make([]models.Item, len(records))
	for i, rec := range records {
		items[i] = rec.Item
	}
	return items
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
