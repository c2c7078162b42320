package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/shared"
)

// Source is the remote catalog a [Container] reads from.
type Source interface {
	// FetchRange returns the items of node within r along with the node's total, if known.
	FetchRange(ctx context.Context, nodeID string, r models.Range) (models.ItemPage, error)

	// Search runs keyword against criterion. isFirstSearch resets any paging cursor the source
	// holds for node; false continues the previous query.
	Search(ctx context.Context, nodeID, keyword string, criterion models.SearchCriterion, r models.Range, isFirstSearch bool) (models.ItemPage, error)

	// CancelSearch asks the source to abandon in-flight work for node. Best effort; must not block.
	CancelSearch(nodeID string)
}

// Options configures a [Container].
type Options struct {
	Timeout time.Duration
	Cache   *PageCache
	Logger  *log.Logger
}

// SearchState is the last transition of a container's search state machine.
type SearchState int

const (
	Idle SearchState = iota
	Searching
	Delivered
	Cancelled
	Failed
)

func (s SearchState) String() string {
	switch s {
	case Searching:
		return "searching"
	case Delivered:
		return "delivered"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Stats counts search outcomes and range fetches.
type Stats struct {
	Started   uint64
	Delivered uint64
	Cancelled uint64
	Failed    uint64
	Fetches   uint64
	CacheHits uint64
}

type searchSession struct {
	keyword       string
	criterion     models.SearchCriterion
	r             models.Range
	isFirstSearch bool
	generation    uint64
}

// Container is a paged, searchable view over one catalog node.
type Container struct {
	node    models.CatalogNode
	source  Source
	timeout time.Duration
	cache   *PageCache
	logger  *log.Logger

	// known is the last total reported by the source, or -1.
	known atomic.Int64

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	session    *searchSession
	state      SearchState

	started, delivered, cancelled, failed, fetches, hits atomic.Uint64
}

// New creates a container for node backed by source.
func New(node models.CatalogNode, source Source, opts Options) *Container {
	c := &Container{
		node:    node,
		source:  source,
		timeout: opts.Timeout,
		cache:   opts.Cache,
		logger:  shared.WithLogger(opts.Logger, "component", "catalog", "node", node.ID),
	}
	c.known.Store(-1)
	return c
}

func (c *Container) Node() models.CatalogNode { return c.node }

// Searchable reports whether the node has at least one search criterion.
func (c *Container) Searchable() bool { return c.node.Searchable() }

// KnownTotal returns the last total reported by the source.
func (c *Container) KnownTotal() (int, bool) {
	n := c.known.Load()
	return int(n), n >= 0
}

// GetItems fetches the items in r.
//
// r is clamped to [0, total-1] when a total is known. A range that is empty after clamping
// returns an empty page without contacting the source.
func (c *Container) GetItems(ctx context.Context, r models.Range) (models.ItemPage, error) {
	known := int(c.known.Load())
	r = r.Clamp(known)
	if r.Empty() {
		return c.emptyPage(), nil
	}

	key := c.cache.key(c.node.ID, r)
	if page, ok := c.cache.Get(ctx, key); ok {
		c.hits.Add(1)
		c.recordTotal(page)
		c.logger.Debug("cache hit", "range", r)
		return page, nil
	}

	c.fetches.Add(1)
	callCtx, cancel := shared.WithCallTimeout(ctx, c.timeout)
	defer cancel()

	page, err := c.source.FetchRange(callCtx, c.node.ID, r)
	if err != nil {
		c.logger.Warn("fetch failed", "range", r, "error", err)
		return models.ItemPage{}, shared.Unavailable(fmt.Sprintf("fetch %s %s", c.node.ID, r), err)
	}

	if err := validatePage(page, r); err != nil {
		c.logger.Warn("rejected page", "range", r, "error", err)
		return models.ItemPage{}, err
	}

	if page.Items == nil {
		page.Items = []models.Item{}
	}
	c.recordTotal(page)
	c.cache.Put(ctx, key, page)
	c.logger.Debug("fetched", "range", r, "count", len(page.Items), "total", c.known.Load())
	return page, nil
}

// Invalidate forgets the known total and makes the node's cached pages unreachable, for every
// container sharing the cache.
func (c *Container) Invalidate() {
	c.known.Store(-1)
	c.cache.Invalidate(c.node.ID)
}

// Search runs a keyword search, superseding any search still in flight on this container.
//
// A superseded call returns an error wrapping [shared.ErrCancelled]. Continuations
// (isFirstSearch false) must repeat the keyword and criterion of the active session.
func (c *Container) Search(ctx context.Context, keyword string, criterion models.SearchCriterion, r models.Range, isFirstSearch bool) (models.ItemPage, error) {
	if !c.node.Searchable() {
		return models.ItemPage{Items: []models.Item{}}, nil
	}
	if !c.node.HasCriterion(criterion) {
		return models.ItemPage{}, fmt.Errorf("%w: node %s has no criterion %q", shared.ErrInvalidArgument, c.node.ID, criterion.Key())
	}

	r = r.Clamp(-1)
	if r.Empty() {
		return models.ItemPage{Items: []models.Item{}}, nil
	}

	callCtx, gen, err := c.beginSearch(ctx, keyword, criterion, r, isFirstSearch)
	if err != nil {
		return models.ItemPage{}, err
	}

	page, err := c.source.Search(callCtx, c.node.ID, keyword, criterion, r, isFirstSearch)
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)

	if !c.finishSearch(gen) {
		c.cancelled.Add(1)
		c.logger.Debug("dropped superseded search", "keyword", keyword, "generation", gen)
		return models.ItemPage{}, fmt.Errorf("%w: search %q superseded", shared.ErrCancelled, keyword)
	}

	switch {
	case err == nil:
		err = validatePage(page, r)
	case ctx.Err() != nil && !timedOut:
		c.setState(Cancelled)
		c.cancelled.Add(1)
		return models.ItemPage{}, fmt.Errorf("%w: %w", shared.ErrCancelled, ctx.Err())
	case timedOut:
		err = fmt.Errorf("%w: search %q timed out: %w", shared.ErrSourceUnavailable, keyword, err)
	default:
		err = fmt.Errorf("%w: %q: %w", shared.ErrSearchFailed, keyword, err)
	}

	if err != nil {
		c.setState(Failed)
		c.failed.Add(1)
		c.logger.Warn("search failed", "keyword", keyword, "error", err)
		return models.ItemPage{}, err
	}

	if page.Items == nil {
		page.Items = []models.Item{}
	}
	c.setState(Delivered)
	c.delivered.Add(1)
	c.logger.Debug("search delivered", "keyword", keyword, "count", len(page.Items))
	return page, nil
}

// beginSearch supersedes the in-flight search, if any, and registers a new session.
func (c *Container) beginSearch(ctx context.Context, keyword string, criterion models.SearchCriterion, r models.Range, isFirstSearch bool) (context.Context, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !isFirstSearch {
		s := c.session
		if s == nil || s.keyword != keyword || s.criterion != criterion {
			return nil, 0, fmt.Errorf("%w: continuation of %q does not match the active search", shared.ErrInvalidArgument, keyword)
		}
	}

	if c.cancel != nil {
		c.source.CancelSearch(c.node.ID)
		c.cancel()
		c.logger.Debug("cancelling in-flight search", "generation", c.generation)
	}

	c.generation++
	callCtx, cancel := shared.WithCallTimeout(ctx, c.timeout)
	c.cancel = cancel
	c.session = &searchSession{
		keyword:       keyword,
		criterion:     criterion,
		r:             r,
		isFirstSearch: isFirstSearch,
		generation:    c.generation,
	}
	c.state = Searching
	c.started.Add(1)
	return callCtx, c.generation, nil
}

// finishSearch releases the call's context and reports whether gen is still the newest search.
func (c *Container) finishSearch(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return false
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return true
}

func (c *Container) setState(s SearchState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// SearchState returns the last transition of the search state machine.
func (c *Container) SearchState() SearchState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ResetSearch returns the container to [Idle], cancelling an in-flight search.
func (c *Container) ResetSearch() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.source.CancelSearch(c.node.ID)
		c.cancel()
		c.cancel = nil
		c.generation++
	}
	c.session = nil
	c.state = Idle
}

// Stats returns a copy of the counters.
func (c *Container) Stats() Stats {
	return Stats{
		Started:   c.started.Load(),
		Delivered: c.delivered.Load(),
		Cancelled: c.cancelled.Load(),
		Failed:    c.failed.Load(),
		Fetches:   c.fetches.Load(),
		CacheHits: c.hits.Load(),
	}
}

func (c *Container) recordTotal(page models.ItemPage) {
	if page.Total != nil {
		c.known.Store(int64(*page.Total))
	}
}

func (c *Container) emptyPage() models.ItemPage {
	page := models.ItemPage{Items: []models.Item{}}
	if n, ok := c.KnownTotal(); ok {
		page.Total = &n
	}
	return page
}

func validatePage(page models.ItemPage, r models.Range) error {
	if len(page.Items) > r.Len() {
		return fmt.Errorf("%w: %d items for range %s", shared.ErrMalformedResponse, len(page.Items), r)
	}
	if page.Total != nil && *page.Total < 0 {
		return fmt.Errorf("%w: negative total %d", shared.ErrMalformedResponse, *page.Total)
	}
	return nil
}
