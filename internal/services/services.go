// package services adapts network collaborators to the catalog, queue and renderer contracts.
package services

import (
	"context"

	"github.com/desertthunder/renderkit/internal/catalog"
	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/queue"
	"github.com/desertthunder/renderkit/internal/renderer"
)

// NodeLookup resolves catalog nodes by ID.
type NodeLookup interface {
	Node(ctx context.Context, id string) (models.CatalogNode, error)
}

// RendererLister discovers the renderers a backend can reach.
type RendererLister interface {
	Renderers(ctx context.Context) ([]models.RendererState, error)
}

// PushSink receives state and queue snapshots pushed by devices.
type PushSink interface {
	PushState(s models.RendererState) error
	PushQueue(rendererID string, entries []models.QueueEntry) error
}

// Backend bundles the collaborators a client session needs.
type Backend struct {
	Name      string
	Catalog   catalog.Source
	Nodes     NodeLookup
	Queue     queue.Source
	Transport renderer.Transport
	Renderers RendererLister

	// Watcher is set when the backend pushes device events itself.
	Watcher Watcher

	// Root is the node browsed when none is given.
	Root string

	closers []func() error
}

// OnClose registers fn to run when the backend is closed.
func (b *Backend) OnClose(fn func() error) {
	b.closers = append(b.closers, fn)
}

// Close runs the registered closers in reverse order and returns the first error.
func (b *Backend) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	b.closers = nil
	return first
}
