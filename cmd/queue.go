package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/renderkit/internal/catalog"
	"github.com/desertthunder/renderkit/internal/formatter"
	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/queue"
	"github.com/desertthunder/renderkit/internal/renderer"
	"github.com/desertthunder/renderkit/internal/session"
	"github.com/desertthunder/renderkit/internal/shared"
	"github.com/desertthunder/renderkit/internal/tasks"
	"github.com/urfave/cli/v3"
)

// rendererQueue resolves --renderer and returns its queue, fetched from the renderer.
func (r *Runner) rendererQueue(ctx context.Context, cmd *cli.Command) (*session.Session, *renderer.Hub, *queue.Coordinator, error) {
	s, h, err := r.renderer(ctx, cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	q, err := s.LoadedQueue(ctx, h.ID())
	if err != nil {
		return nil, nil, nil, err
	}
	return s, h, q, nil
}

func playingItem(h *renderer.Hub) string {
	if t := h.Snapshot().CurrentTrack; t != nil {
		return t.ID
	}
	return ""
}

// lookupEntries maps entry IDs onto the queue's entries. Unknown IDs are passed through so the
// coordinator rejects them.
func lookupEntries(q *queue.Coordinator, ids []string) []models.QueueEntry {
	current := q.Entries()
	out := make([]models.QueueEntry, len(ids))
	for i, id := range ids {
		if idx := models.IndexOf(current, id); idx >= 0 {
			out[i] = current[idx]
		} else {
			out[i] = models.QueueEntry{ID: id}
		}
	}
	return out
}

// findItem pages through c until it finds the item with exactly id.
func (r *Runner) findItem(ctx context.Context, c *catalog.Container, id string) (models.Item, error) {
	size := r.pageSize()
	for n := 0; ; n++ {
		page, err := c.GetItems(ctx, models.PageRange(n, size))
		if err != nil {
			return models.Item{}, err
		}
		for _, item := range page.Items {
			if item.ID == id {
				return item, nil
			}
		}
		if len(page.Items) < size || (page.Total != nil && (n+1)*size >= *page.Total) {
			return models.Item{}, fmt.Errorf("%w: item %s is not listed in %s", shared.ErrInvalidArgument, id, c.Node().ID)
		}
	}
}

// QueueList prints the queue of --renderer.
func (r *Runner) QueueList(ctx context.Context, cmd *cli.Command) error {
	f, err := r.format(cmd)
	if err != nil {
		return err
	}
	_, h, q, err := r.rendererQueue(ctx, cmd)
	if err != nil {
		return err
	}
	return formatter.WriteQueue(r.output, q.Entries(), playingItem(h), f)
}

// QueueAdd enqueues one item listed in --node.
func (r *Runner) QueueAdd(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("item")
	if id == "" {
		return fmt.Errorf("%w: item ID is required", shared.ErrMissingArgument)
	}
	option, err := models.ParseAddToQueueOption(cmd.String("option"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}

	s, h, q, err := r.rendererQueue(ctx, cmd)
	if err != nil {
		return err
	}
	c, err := s.Container(ctx, cmd.String("node"))
	if err != nil {
		return err
	}
	item, err := r.findItem(ctx, c, id)
	if err != nil {
		return err
	}

	if err := q.Enqueue(ctx, item, option); err != nil {
		return err
	}
	r.logger.Info("enqueued", "renderer", h.Name(), "item", item.ID, "option", option)
	r.writePlain("✓ %s: %s on %s (%d entries)\n", option, item.Label(), h.Name(), len(q.Entries()))
	return nil
}

// QueueAddAll adds every queueable item of a node, in node order.
func (r *Runner) QueueAddAll(ctx context.Context, cmd *cli.Command) error {
	option, err := models.ParseAddToQueueOption(cmd.String("option"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}

	s, h, q, err := r.rendererQueue(ctx, cmd)
	if err != nil {
		return err
	}
	c, err := s.Container(ctx, cmd.StringArg("node"))
	if err != nil {
		return err
	}

	r.logger.Info("starting bulk enqueue", "node", c.Node().ID, "renderer", h.Name())
	r.writePlain("Adding %s to %s...\n", c.Node().Title, h.Name())

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go r.printProgress(progressCh, done)

	result, err := s.Engine().BulkEnqueue(ctx, progressCh, c, q, tasks.BulkEnqueueOpts{
		Option:    option,
		PageSize:  r.pageSize(),
		RateLimit: cmd.Float64("rate"),
		Limit:     cmd.Int("limit"),
	})
	close(progressCh)
	<-done

	if result != nil {
		r.writePlain("\n")
		r.writePlainHeader("Bulk Enqueue Complete")
		r.writePlain("Node: %s\n", c.Node().Title)
		r.writePlain("Renderer: %s\n", h.Name())
		r.writePlain("Enqueued: %d/%d\n", result.Enqueued, result.Seen)
		if len(result.Skipped) > 0 {
			r.writePlain("Skipped (not queueable): %d\n", len(result.Skipped))
		}
		if len(result.Failed) > 0 {
			r.writePlain("\nFailed to enqueue %d items:\n", len(result.Failed))
			for _, failure := range result.Failed {
				r.writePlain("  - %s: %s\n", failure.Item.Label(), failure.Error)
			}
		}
	}
	return err
}

// QueueRemove removes the entries named by the arguments.
func (r *Runner) QueueRemove(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one entry ID is required", shared.ErrMissingArgument)
	}
	_, h, q, err := r.rendererQueue(ctx, cmd)
	if err != nil {
		return err
	}
	if err := q.Remove(ctx, lookupEntries(q, ids)); err != nil {
		return err
	}
	r.writePlain("✓ Removed %d entries from %s\n", len(ids), h.Name())
	return nil
}

// QueueMove moves the entries named by the arguments to --to.
func (r *Runner) QueueMove(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one entry ID is required", shared.ErrMissingArgument)
	}
	_, h, q, err := r.rendererQueue(ctx, cmd)
	if err != nil {
		return err
	}
	to := cmd.Int("to")
	if err := q.Move(ctx, lookupEntries(q, ids), to); err != nil {
		return err
	}
	r.writePlain("✓ Moved %d entries to position %d on %s\n", len(ids), to, h.Name())
	return nil
}

// QueueClear removes every entry.
func (r *Runner) QueueClear(ctx context.Context, cmd *cli.Command) error {
	_, h, q, err := r.rendererQueue(ctx, cmd)
	if err != nil {
		return err
	}
	if err := q.Clear(ctx); err != nil {
		return err
	}
	r.writePlain("✓ Cleared the queue of %s\n", h.Name())
	return nil
}

// QueuePlay starts playback at an entry.
func (r *Runner) QueuePlay(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("entry")
	if id == "" {
		return fmt.Errorf("%w: entry ID is required", shared.ErrMissingArgument)
	}
	_, h, q, err := r.rendererQueue(ctx, cmd)
	if err != nil {
		return err
	}
	entry := lookupEntries(q, []string{id})[0]
	if err := q.Play(ctx, entry); err != nil {
		return err
	}
	r.writePlain("▶ Playing %s on %s\n", entry.Title, h.Name())
	return nil
}

// QueueExport writes the queue to --output in --format.
func (r *Runner) QueueExport(ctx context.Context, cmd *cli.Command) error {
	_, h, q, err := r.rendererQueue(ctx, cmd)
	if err != nil {
		return err
	}
	path := cmd.String("output")
	if err := formatter.WriteQueueExport(h.Name(), q.Entries(), cmd.String("format"), path); err != nil {
		return err
	}
	r.writePlain("✓ Exported %d entries to %s\n", len(q.Entries()), path)
	return nil
}
