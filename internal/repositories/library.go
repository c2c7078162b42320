package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/renderkit/internal/catalog"
	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/shared"
)

var _ catalog.Source = (*Library)(nil)

// DumpNode is one node of a catalog dump, with the items listed under it.
type DumpNode struct {
	models.CatalogNode
	Parent string        `json:"parent,omitempty"`
	Items  []models.Item `json:"items"`
}

// Dump is the JSON document accepted by [Library.Import].
type Dump struct {
	Nodes []DumpNode `json:"nodes"`
}

// ReadDump decodes a catalog dump.
func ReadDump(r io.Reader) (Dump, error) {
	var d Dump
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return Dump{}, fmt.Errorf("%w: catalog dump: %w", shared.ErrInvalidInput, err)
	}
	return d, nil
}

// ImportStats summarizes an import.
type ImportStats struct {
	Nodes    int
	Items    int
	Replaced int
}

// Library serves the SQLite library as a catalog source.
//
// Paging and search run as SQL against the items table. Each node has at most one search in
// flight; CancelSearch interrupts its query.
type Library struct {
	nodes  *NodeRepository
	items  *ItemRepository
	logger *log.Logger

	mu       sync.Mutex
	searches map[string]*searchHandle
}

// NewLibrary creates a Library over db, which must have been migrated.
func NewLibrary(db *sql.DB, logger *log.Logger) *Library {
	return &Library{
		nodes:    NewNodeRepository(db),
		items:    NewItemRepository(db),
		logger:   shared.WithLogger(logger, "component", "library"),
		searches: make(map[string]*searchHandle),
	}
}

// Nodes exposes the node repository.
func (l *Library) Nodes() *NodeRepository { return l.nodes }

// Items exposes the item repository.
func (l *Library) Items() *ItemRepository { return l.items }

// Node returns the browsable node with id.
func (l *Library) Node(ctx context.Context, id string) (models.CatalogNode, error) {
	if err := ctx.Err(); err != nil {
		return models.CatalogNode{}, err
	}
	rec, err := l.nodes.Get(id)
	if err != nil {
		return models.CatalogNode{}, err
	}
	return rec.CatalogNode, nil
}

// FetchRange returns the items of nodeID covered by r and the node's size.
func (l *Library) FetchRange(ctx context.Context, nodeID string, r models.Range) (models.ItemPage, error) {
	if _, err := l.nodes.Get(nodeID); err != nil {
		return models.ItemPage{}, err
	}

	total, err := l.items.Count(ctx, nodeID)
	if err != nil {
		return models.ItemPage{}, err
	}
	r = r.Clamp(total)
	if r.Empty() {
		return models.NewItemPage([]models.Item{}, total), nil
	}

	records, err := l.items.Range(ctx, nodeID, r.Lower, r.Len())
	if err != nil {
		return models.ItemPage{}, err
	}
	l.logger.Debug("fetched range", "node", nodeID, "range", r.String(), "total", total)
	return models.NewItemPage(itemsOf(records), total), nil
}

// Search matches keyword against the column named by criterion.
//
// Results are computed per call, so a continuation just asks for a later range of the same
// query.
func (l *Library) Search(ctx context.Context, nodeID, keyword string, criterion models.SearchCriterion, r models.Range, isFirstSearch bool) (models.ItemPage, error) {
	node, err := l.nodes.Get(nodeID)
	if err != nil {
		return models.ItemPage{}, err
	}
	if !node.HasCriterion(criterion) {
		return models.ItemPage{}, fmt.Errorf("%w: node %s has no criterion %s", shared.ErrInvalidArgument, nodeID, criterion.Key())
	}

	ctx, done := l.track(ctx, nodeID)
	defer done()

	if r.Lower < 0 {
		r.Lower = 0
	}
	records, total, err := l.items.Search(ctx, nodeID, criterion.Key(), keyword, r.Lower, r.Len())
	if err != nil {
		if cause := ctx.Err(); cause != nil {
			return models.ItemPage{}, fmt.Errorf("search %q: %w", keyword, cause)
		}
		return models.ItemPage{}, err
	}
	l.logger.Debug("search", "node", nodeID, "keyword", keyword, "criterion", criterion.Key(),
		"first", isFirstSearch, "matches", total)
	return models.NewItemPage(itemsOf(records), total), nil
}

// CancelSearch interrupts the query running for nodeID, if any.
func (l *Library) CancelSearch(nodeID string) {
	l.mu.Lock()
	h, ok := l.searches[nodeID]
	delete(l.searches, nodeID)
	l.mu.Unlock()

	if ok {
		l.logger.Debug("search cancelled", "node", nodeID)
		h.cancel()
	}
}

// track registers a cancellable context for the search running on nodeID.
func (l *Library) track(ctx context.Context, nodeID string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	h := &searchHandle{cancel: cancel}

	l.mu.Lock()
	if prev, ok := l.searches[nodeID]; ok {
		prev.cancel()
	}
	l.searches[nodeID] = h
	l.mu.Unlock()

	return ctx, func() {
		l.mu.Lock()
		if l.searches[nodeID] == h {
			delete(l.searches, nodeID)
		}
		l.mu.Unlock()
		cancel()
	}
}

type searchHandle struct {
	cancel context.CancelFunc
}

// Import loads d into the library. Nodes that already exist are overwritten and their item
// lists replaced. Parents are imported before their children whatever the order in d.
func (l *Library) Import(ctx context.Context, d Dump) (ImportStats, error) {
	var stats ImportStats

	pending := make([]DumpNode, len(d.Nodes))
	copy(pending, d.Nodes)
	known := make(map[string]bool)

	for len(pending) > 0 {
		var next []DumpNode
		for _, n := range pending {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if n.Parent != "" && !known[n.Parent] {
				if _, err := l.nodes.Get(n.Parent); err != nil {
					next = append(next, n)
					continue
				}
			}

			if err := l.importNode(n, &stats); err != nil {
				return stats, err
			}
			known[n.ID] = true
		}

		if len(next) == len(pending) {
			return stats, fmt.Errorf("%w: node %s has unknown parent %s", shared.ErrInvalidInput, next[0].ID, next[0].Parent)
		}
		pending = next
	}

	l.logger.Info("imported library", "nodes", stats.Nodes, "items", stats.Items, "replaced", stats.Replaced)
	return stats, nil
}

func (l *Library) importNode(n DumpNode, stats *ImportStats) error {
	node := n.CatalogNode
	if err := l.nodes.Upsert(&node, n.Parent); err != nil {
		return fmt.Errorf("node %s: %w", n.ID, err)
	}
	replaced, err := l.items.DeleteByNode(node.ID)
	if err != nil {
		return err
	}
	stats.Replaced += replaced

	for pos, item := range n.Items {
		if _, err := l.items.Create(node.ID, pos, item); err != nil {
			return fmt.Errorf("node %s item %d: %w", node.ID, pos, err)
		}
		stats.Items++
	}
	stats.Nodes++
	return nil
}

// Export returns the whole library as a dump that [Library.Import] accepts.
func (l *Library) Export() (Dump, error) {
	nodes, err := l.nodes.List()
	if err != nil {
		return Dump{}, err
	}

	d := Dump{Nodes: make([]DumpNode, 0, len(nodes))}
	for _, n := range nodes {
		records, err := l.items.ListByNode(n.ID)
		if err != nil {
			return Dump{}, err
		}
		d.Nodes = append(d.Nodes, DumpNode{CatalogNode: n.CatalogNode, Parent: n.ParentID, Items: itemsOf(records)})
	}
	return d, nil
}

// IsEmpty reports whether no node has been imported yet.
func (l *Library) IsEmpty() (bool, error) {
	nodes, err := l.nodes.List()
	if err != nil {
		return false, err
	}
	return len(nodes) == 0, nil
}
