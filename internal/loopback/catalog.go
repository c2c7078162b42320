package loopback

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/shared"
)

// Criteria understood by [Catalog.Search].
var (
	ByTitle  = models.NewSearchCriterion("title")
	ByArtist = models.NewSearchCriterion("artist")
	ByAlbum  = models.NewSearchCriterion("album")
)

// SearchCall records one call to [Catalog.Search].
type SearchCall struct {
	NodeID        string
	Keyword       string
	Criterion     models.SearchCriterion
	Range         models.Range
	IsFirstSearch bool
}

type catalogNode struct {
	node  models.CatalogNode
	items []models.Item
}

// Catalog is an in-memory catalog source with scriptable latency and failures.
type Catalog struct {
	mu      sync.Mutex
	nodes   map[string]*catalogNode
	order   []string
	delay   time.Duration
	fail    map[string]error
	results map[string][]models.Item
	gates   map[string]chan struct{}
	hide    bool

	searches []SearchCall
	cancels  []string
	fetches  int
}

func NewCatalog() *Catalog {
	return &Catalog{
		nodes:   make(map[string]*catalogNode),
		fail:    make(map[string]error),
		results: make(map[string][]models.Item),
		gates:   make(map[string]chan struct{}),
	}
}

// AddNode registers node with its items, replacing any node with the same ID.
func (c *Catalog) AddNode(node models.CatalogNode, items ...models.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.nodes[node.ID]; !ok {
		c.order = append(c.order, node.ID)
	}
	c.nodes[node.ID] = &catalogNode{node: node, items: slices.Clone(items)}
}

// Node returns a registered node.
func (c *Catalog) Node(ctx context.Context, id string) (models.CatalogNode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[id]
	if !ok {
		return models.CatalogNode{}, fmt.Errorf("%w: %s", shared.ErrNodeNotFound, id)
	}
	return n.node, nil
}

// Nodes lists registered nodes in registration order.
func (c *Catalog) Nodes() []models.CatalogNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.CatalogNode, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.nodes[id].node)
	}
	return out
}

// Items returns every item of a node.
func (c *Catalog) Items(id string) []models.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.nodes[id]; ok {
		return slices.Clone(n.items)
	}
	return nil
}

// SetDelay makes every call wait d before answering.
func (c *Catalog) SetDelay(d time.Duration) {
	c.mu.Lock()
	c.delay = d
	c.mu.Unlock()
}

// FailNode makes calls for nodeID return err. A nil err clears the failure.
func (c *Catalog) FailNode(nodeID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.fail, nodeID)
		return
	}
	c.fail[nodeID] = err
}

// SetResults makes searches for keyword return items instead of matching node items.
func (c *Catalog) SetResults(keyword string, items ...models.Item) {
	c.mu.Lock()
	c.results[strings.ToLower(keyword)] = slices.Clone(items)
	c.mu.Unlock()
}

// Gate holds searches for keyword until the returned function is called.
func (c *Catalog) Gate(keyword string) (release func()) {
	ch := make(chan struct{})
	c.mu.Lock()
	c.gates[strings.ToLower(keyword)] = ch
	c.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// HideTotals makes pages omit their total, as some backends do.
func (c *Catalog) HideTotals(hide bool) {
	c.mu.Lock()
	c.hide = hide
	c.mu.Unlock()
}

// Searches returns the recorded search calls.
func (c *Catalog) Searches() []SearchCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.searches)
}

// Cancels returns the node IDs passed to CancelSearch.
func (c *Catalog) Cancels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.cancels)
}

// Fetches returns how many range fetches were served.
func (c *Catalog) Fetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

func (c *Catalog) FetchRange(ctx context.Context, nodeID string, r models.Range) (models.ItemPage, error) {
	c.mu.Lock()
	c.fetches++
	n, ok := c.nodes[nodeID]
	delay, err, hide := c.delay, c.fail[nodeID], c.hide
	c.mu.Unlock()

	if err := wait(ctx, delay, nil); err != nil {
		return models.ItemPage{}, err
	}
	if err != nil {
		return models.ItemPage{}, err
	}
	if !ok {
		return models.ItemPage{}, fmt.Errorf("%w: %s", shared.ErrNodeNotFound, nodeID)
	}

	page := models.Slice(n.items, r)
	if hide {
		page.Total = nil
	}
	return page, nil
}

// Search matches keyword, case-insensitively, against the field named by criterion.
func (c *Catalog) Search(ctx context.Context, nodeID, keyword string, criterion models.SearchCriterion, r models.Range, isFirstSearch bool) (models.ItemPage, error) {
	key := strings.ToLower(keyword)

	c.mu.Lock()
	c.searches = append(c.searches, SearchCall{
		NodeID: nodeID, Keyword: keyword, Criterion: criterion, Range: r, IsFirstSearch: isFirstSearch,
	})
	n, ok := c.nodes[nodeID]
	delay, err, hide := c.delay, c.fail[nodeID], c.hide
	scripted, hasScript := c.results[key]
	gate := c.gates[key]
	c.mu.Unlock()

	if err := wait(ctx, delay, gate); err != nil {
		return models.ItemPage{}, err
	}
	if err != nil {
		return models.ItemPage{}, err
	}
	if !ok {
		return models.ItemPage{}, fmt.Errorf("%w: %s", shared.ErrNodeNotFound, nodeID)
	}

	matches := scripted
	if !hasScript {
		for _, item := range n.items {
			if matchItem(item, key, criterion) {
				matches = append(matches, item)
			}
		}
	}

	page := models.Slice(matches, r)
	if hide {
		page.Total = nil
	}
	return page, nil
}

func (c *Catalog) CancelSearch(nodeID string) {
	c.mu.Lock()
	c.cancels = append(c.cancels, nodeID)
	c.mu.Unlock()
}

func matchItem(item models.Item, keyword string, criterion models.SearchCriterion) bool {
	var fields []string
	switch criterion.Key() {
	case ByArtist.Key():
		if item.Metadata != nil {
			fields = append(fields, item.Metadata.Artist)
		}
	case ByAlbum.Key():
		if item.Metadata != nil {
			fields = append(fields, item.Metadata.Album)
		}
	default:
		fields = append(fields, item.Title)
		if item.Metadata != nil {
			fields = append(fields, item.Metadata.Title)
		}
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), keyword) {
			return true
		}
	}
	return false
}

// wait blocks for delay and until gate is closed, whichever is longer, or until ctx ends.
func wait(ctx context.Context, delay time.Duration, gate <-chan struct{}) error {
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}
