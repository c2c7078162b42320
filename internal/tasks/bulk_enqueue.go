package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/renderkit/internal/catalog"
	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/queue"
	"github.com/desertthunder/renderkit/internal/shared"
	"golang.org/x/time/rate"
)

// BulkEnqueueOpts contains configuration for adding a whole container to a queue.
type BulkEnqueueOpts struct {
	Option    models.AddToQueueOption // AddToEnd (default) or ReplaceAndPlay; applies to the first item
	PageSize  int                     // Items fetched per page (default: 50)
	RateLimit float64                 // Page fetches per second (default: unlimited)
	Limit     int                     // Maximum items to consider, 0 for all
}

// ItemFailure records an item the renderer refused.
type ItemFailure struct {
	Item  models.Item
	Error error
}

// BulkEnqueueResult summarizes a bulk enqueue.
type BulkEnqueueResult struct {
	NodeID     string
	RendererID string
	Seen       int
	Enqueued   int
	Skipped    []models.Item
	Failed     []ItemFailure
}

// BulkEnqueue pages through c and enqueues every queueable item on q, preserving container order.
//
// Pages are fetched by a producer goroutine paced by a token bucket while items are enqueued one
// at a time. Unqueueable items are skipped and refused items are recorded; the run stops early
// only when the renderer becomes unavailable, a page cannot be fetched or ctx ends.
func (e *SessionEngine) BulkEnqueue(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	c *catalog.Container,
	q *queue.Coordinator,
	opts BulkEnqueueOpts,
) (*BulkEnqueueResult, error) {
	if c == nil || q == nil {
		return nil, fmt.Errorf("%w: container and queue are required", shared.ErrMissingArgument)
	}

	if opts.Option == 0 {
		opts.Option = models.AddToEnd
	}
	if opts.Option != models.AddToEnd && opts.Option != models.ReplaceAndPlay {
		return nil, fmt.Errorf("%w: bulk enqueue supports addToEnd or replaceAndPlay, got %s", shared.ErrInvalidArgument, opts.Option)
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}

	result := &BulkEnqueueResult{NodeID: c.Node().ID, RendererID: q.RendererID()}
	logger := e.logger.With("node", result.NodeID, "renderer", result.RendererID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	items := make(chan models.Item, opts.PageSize)
	fetchErr := make(chan error, 1)
	go e.fetchPages(ctx, prog, c, opts, items, fetchErr)

	option := opts.Option
	for item := range items {
		result.Seen++

		if !item.IsQueueable() {
			result.Skipped = append(result.Skipped, item)
			e.sendProgress(prog, skippedUpdate(result.Seen, opts.Limit, item))
			continue
		}

		if err := q.Enqueue(ctx, item, option); err != nil {
			if errors.Is(err, shared.ErrSourceUnavailable) || ctx.Err() != nil {
				logger.Warn("bulk enqueue stopped", "enqueued", result.Enqueued, "error", err)
				return result, fmt.Errorf("bulk enqueue stopped after %d items: %w", result.Enqueued, err)
			}
			result.Failed = append(result.Failed, ItemFailure{Item: item, Error: err})
			e.sendProgress(prog, enqueueFailedUpdate(result.Seen, opts.Limit, item, err))
			continue
		}

		option = models.AddToEnd
		result.Enqueued++
		e.sendProgress(prog, enqueuedUpdate(result.Seen, opts.Limit, item))
	}

	if err := <-fetchErr; err != nil {
		return result, err
	}

	logger.Info("bulk enqueue complete", "seen", result.Seen, "enqueued", result.Enqueued,
		"skipped", len(result.Skipped), "failed", len(result.Failed))
	return result, nil
}

// fetchPages feeds items of c into out until the container is exhausted, opts.Limit is reached
// or ctx ends. It always closes out and sends exactly one value on errc.
func (e *SessionEngine) fetchPages(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	c *catalog.Container,
	opts BulkEnqueueOpts,
	out chan<- models.Item,
	errc chan<- error,
) {
	defer close(out)

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	limiter := rate.NewLimiter(limit, 1)

	sent := 0
	for start := 0; ; start += opts.PageSize {
		if err := limiter.Wait(ctx); err != nil {
			errc <- err
			return
		}

		r := models.NewRange(start, start+opts.PageSize-1)
		page, err := c.GetItems(ctx, r)
		if err != nil {
			errc <- fmt.Errorf("failed to fetch items %s: %w", r, err)
			return
		}
		e.sendProgress(prog, fetchPageUpdate(r, page))

		for _, item := range page.Items {
			if opts.Limit > 0 && sent >= opts.Limit {
				errc <- nil
				return
			}
			select {
			case out <- item:
				sent++
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}

		if len(page.Items) < opts.PageSize || (page.Total != nil && start+len(page.Items) >= *page.Total) {
			errc <- nil
			return
		}
	}
}
