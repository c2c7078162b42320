package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/shared"
)

// Source is the device-side queue of a renderer.
type Source interface {
	FetchQueue(ctx context.Context, rendererID string) ([]models.QueueEntry, error)
	MutateQueue(ctx context.Context, rendererID string, cmd models.MutationCommand) error
}

// Gate reports whether mutations may be sent right now. A non-nil error blocks the mutation.
type Gate func() error

// Options configures a [Coordinator].
type Options struct {
	Timeout time.Duration
	Logger  *log.Logger
	Gate    Gate
}

// Coordinator keeps the client-side mirror of one renderer's play queue.
//
// Local state only changes from a full device read: a [Coordinator.Refresh], the refresh that
// follows every confirmed mutation, or a pushed snapshot passed to [Coordinator.Replace].
// Mutations are serialized; callers wait their turn and may give up through their context.
type Coordinator struct {
	rendererID string
	source     Source
	timeout    time.Duration
	gate       Gate
	logger     *log.Logger

	sem chan struct{}

	mu      sync.Mutex
	entries []models.QueueEntry
	seq     uint64
	applied uint64
	loaded  bool

	feed shared.Feed[[]models.QueueEntry]
}

// New creates a coordinator for rendererID. The queue starts empty and unloaded.
func New(rendererID string, source Source, opts Options) *Coordinator {
	return &Coordinator{
		rendererID: rendererID,
		source:     source,
		timeout:    opts.Timeout,
		gate:       opts.Gate,
		logger:     shared.WithLogger(opts.Logger, "component", "queue", "renderer", rendererID),
		sem:        make(chan struct{}, 1),
		entries:    []models.QueueEntry{},
	}
}

func (c *Coordinator) RendererID() string { return c.rendererID }

// Entries returns a copy of the current queue.
func (c *Coordinator) Entries() []models.QueueEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.CloneEntries(c.entries)
}

// Loaded reports whether the queue has been read from the device at least once.
func (c *Coordinator) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Subscribe delivers every new queue snapshot. Slow subscribers miss intermediate snapshots.
func (c *Coordinator) Subscribe(buffer int) (<-chan []models.QueueEntry, func()) {
	return c.feed.Subscribe(buffer)
}

// Close ends all subscriptions.
func (c *Coordinator) Close() {
	c.feed.Close()
}

// Refresh re-reads the whole queue from the device. On failure the previous queue is kept.
func (c *Coordinator) Refresh(ctx context.Context) error {
	seq := c.nextSeq()

	callCtx, cancel := shared.WithCallTimeout(ctx, c.timeout)
	defer cancel()

	entries, err := c.source.FetchQueue(callCtx, c.rendererID)
	if err != nil {
		c.logger.Warn("refresh failed", "error", err)
		return shared.Unavailable("fetch queue", err)
	}

	if !c.apply(seq, entries) {
		c.logger.Debug("dropped stale queue read", "seq", seq)
	}
	return nil
}

// Replace overwrites the queue with a snapshot pushed by the device.
func (c *Coordinator) Replace(entries []models.QueueEntry) {
	c.apply(c.nextSeq(), entries)
}

// Enqueue adds item according to option.
func (c *Coordinator) Enqueue(ctx context.Context, item models.Item, option models.AddToQueueOption) error {
	if !option.Valid() {
		return fmt.Errorf("%w: %s", shared.ErrInvalidArgument, option)
	}
	if err := item.Validate(); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}
	if !item.IsQueueable() {
		return fmt.Errorf("%w: item %s cannot be queued", shared.ErrInvalidArgument, item.ID)
	}
	return c.mutate(ctx, models.EnqueueCommand(item, option))
}

// Remove deletes entries from the queue.
func (c *Coordinator) Remove(ctx context.Context, entries []models.QueueEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return c.mutate(ctx, models.RemoveCommand(entries))
}

// Clear empties the queue.
func (c *Coordinator) Clear(ctx context.Context) error {
	return c.mutate(ctx, models.ClearCommand())
}

// Move cuts entries out of the queue and pastes them, in queue order, at insertAt.
// See [ApplyMove].
func (c *Coordinator) Move(ctx context.Context, entries []models.QueueEntry, insertAt int) error {
	if len(entries) == 0 {
		return nil
	}
	return c.mutate(ctx, models.MoveCommand(entries, max(insertAt, 0)))
}

// Play starts playback at a queued entry.
func (c *Coordinator) Play(ctx context.Context, entry models.QueueEntry) error {
	return c.mutate(ctx, models.PlayEntryCommand(entry))
}

func (c *Coordinator) mutate(ctx context.Context, cmd models.MutationCommand) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}

	if err := c.acquire(ctx); err != nil {
		return fmt.Errorf("%w: waiting to %s: %w", shared.ErrCancelled, cmd.Kind, err)
	}
	defer c.release()

	if c.gate != nil {
		if err := c.gate(); err != nil {
			return fmt.Errorf("%w: %w", shared.ErrQueueMutationFailed, shared.Unavailable("renderer "+c.rendererID, err))
		}
	}

	// Entries can only be checked against a queue that has been read at least once.
	if len(cmd.Entries) > 0 && c.Loaded() {
		if missing := Missing(c.Entries(), cmd.Entries); len(missing) > 0 {
			return fmt.Errorf("%w: %w: %v", shared.ErrInvalidArgument, shared.ErrEntryNotFound, models.EntryIDs(missing))
		}
	}

	callCtx, cancel := shared.WithCallTimeout(ctx, c.timeout)
	err := c.source.MutateQueue(callCtx, c.rendererID, cmd)
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
	cancel()

	if err != nil {
		c.logger.Warn("mutation failed", "kind", cmd.Kind, "error", err)
		if timedOut || errors.Is(err, shared.ErrSourceUnavailable) {
			err = shared.Unavailable(string(cmd.Kind), err)
		}
		return fmt.Errorf("%w: %s: %w", shared.ErrQueueMutationFailed, cmd.Kind, err)
	}

	c.logger.Debug("mutation confirmed", "kind", cmd.Kind)
	if err := c.Refresh(ctx); err != nil {
		return fmt.Errorf("%s confirmed but queue refresh failed: %w", cmd.Kind, err)
	}
	return nil
}

func (c *Coordinator) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) release() {
	<-c.sem
}

func (c *Coordinator) nextSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// apply installs entries if no read that started later has already been applied.
func (c *Coordinator) apply(seq uint64, entries []models.QueueEntry) bool {
	snapshot := models.CloneEntries(entries)

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq <= c.applied {
		return false
	}
	c.applied = seq
	c.entries = snapshot
	c.loaded = true
	c.feed.Publish(models.CloneEntries(snapshot))
	return true
}
