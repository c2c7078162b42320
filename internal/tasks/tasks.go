package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/renderkit/internal/catalog"
	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/queue"
	"github.com/desertthunder/renderkit/internal/renderer"
	"github.com/desertthunder/renderkit/internal/repositories"
	"github.com/desertthunder/renderkit/internal/shared"
)

// RendererDump is one renderer's entry in a session dump.
type RendererDump struct {
	State  models.RendererState `json:"state"`
	Queue  []models.QueueEntry  `json:"queue"`
	Errors []string             `json:"errors,omitempty"`
}

// DumpData is the JSON document written by [SessionEngine.Dump].
type DumpData struct {
	CreatedAt time.Time      `json:"createdAt"`
	Renderers []RendererDump `json:"renderers"`
	Groups    []models.Group `json:"groups"`
	Errors    []string       `json:"errors,omitempty"`
}

// DumpResult contains the dump and where it was stored.
type DumpResult struct {
	Data       DumpData
	Body       []byte // Indented JSON of Data
	SnapshotID string // Empty when no store is configured
	Failures   int    // Renderers whose state or queue could not be refreshed
}

// QueueEngine defines long-running operations over a renderer session.
type QueueEngine interface {
	// BulkEnqueue pages through a container and adds every queueable item to a queue, in container order.
	BulkEnqueue(ctx context.Context, progress chan<- ProgressUpdate, c *catalog.Container, q *queue.Coordinator, opts BulkEnqueueOpts) (*BulkEnqueueResult, error)

	// Dump refreshes every renderer and its queue and captures the result as one JSON document.
	Dump(ctx context.Context, progress chan<- ProgressUpdate) (*DumpResult, error)
}

// QueueProvider returns the queue coordinator of a renderer.
type QueueProvider interface {
	Queue(rendererID string) (*queue.Coordinator, error)
}

// SnapshotStore persists dump documents (repositories.SnapshotRepository).
type SnapshotStore interface {
	Create(rendererCount int, body []byte) (*repositories.SnapshotRecord, error)
}

// SessionEngine implements [QueueEngine] over a renderer manager and its queues.
type SessionEngine struct {
	renderers *renderer.Manager
	queues    QueueProvider
	store     SnapshotStore
	logger    *log.Logger
}

var _ QueueEngine = (*SessionEngine)(nil)

// NewSessionEngine creates a SessionEngine. queues and store may be nil: dumps then omit queues
// and are not persisted.
func NewSessionEngine(renderers *renderer.Manager, queues QueueProvider, store SnapshotStore, logger *log.Logger) *SessionEngine {
	return &SessionEngine{
		renderers: renderers,
		queues:    queues,
		store:     store,
		logger:    shared.WithLogger(logger, "component", "tasks"),
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *SessionEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Dump refreshes each renderer's state and queue, then records the groups.
//
// A renderer that cannot be refreshed is still dumped with its last known state; its errors are
// listed next to it and counted in [DumpResult.Failures]. Only a cancelled context aborts the dump.
func (e *SessionEngine) Dump(ctx context.Context, progress chan<- ProgressUpdate) (*DumpResult, error) {
	if e.renderers == nil {
		return nil, fmt.Errorf("%w: renderer manager not initialized", shared.ErrMissingConfig)
	}

	hubs := e.renderers.Renderers()
	result := &DumpResult{Data: DumpData{CreatedAt: time.Now().UTC(), Renderers: make([]RendererDump, 0, len(hubs))}}

	for i, hub := range hubs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry := RendererDump{Queue: []models.QueueEntry{}}

		e.sendProgress(progress, fetchStateUpdate(i+1, len(hubs), hub.Name()))
		if err := hub.UpdateState(ctx); err != nil {
			e.logger.Warn("state refresh failed", "renderer", hub.ID(), "error", err)
			entry.Errors = append(entry.Errors, fmt.Sprintf("state: %v", err))
		}
		entry.State = hub.Snapshot()

		if e.queues != nil {
			e.sendProgress(progress, fetchQueueUpdate(i+1, len(hubs), hub.Name()))
			if err := e.refreshQueue(ctx, hub.ID(), &entry); err != nil {
				e.logger.Warn("queue refresh failed", "renderer", hub.ID(), "error", err)
				entry.Errors = append(entry.Errors, fmt.Sprintf("queue: %v", err))
			}
		}

		if len(entry.Errors) > 0 {
			result.Failures++
		}
		result.Data.Renderers = append(result.Data.Renderers, entry)
	}

	result.Data.Groups = e.renderers.Groups()
	if result.Data.Groups == nil {
		result.Data.Groups = []models.Group{}
	}
	e.sendProgress(progress, checkGroupsUpdate(len(result.Data.Groups)))
	if err := e.renderers.CheckGroups(); err != nil {
		result.Data.Errors = append(result.Data.Errors, err.Error())
	}

	body, err := shared.MarshalJSON(result.Data, true)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dump: %w", err)
	}
	result.Body = body

	if e.store != nil {
		rec, err := e.store.Create(len(hubs), body)
		if err != nil {
			return result, fmt.Errorf("dump completed but failed to save snapshot: %w", err)
		}
		result.SnapshotID = rec.ID
		e.sendProgress(progress, saveSnapshotUpdate(rec.ID))
	}

	e.logger.Info("dump complete", "renderers", len(hubs), "failures", result.Failures, "snapshot", result.SnapshotID)
	return result, nil
}

func (e *SessionEngine) refreshQueue(ctx context.Context, rendererID string, entry *RendererDump) error {
	q, err := e.queues.Queue(rendererID)
	if err != nil {
		return err
	}
	err = q.Refresh(ctx)
	if entries := q.Entries(); entries != nil {
		entry.Queue = entries
	}
	return err
}
