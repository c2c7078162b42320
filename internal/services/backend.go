// Backend construction
package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/renderkit/internal/loopback"
	"github.com/desertthunder/renderkit/internal/repositories"
	"github.com/desertthunder/renderkit/internal/shared"
)

// Backend names accepted by --backend.
const (
	BackendLoopback = "loopback"
	BackendBridge   = "bridge"
	BackendLibrary  = "library"
)

// Watcher is a collaborator that pushes device events on its own.
type Watcher interface {
	Watch(buffer int) (<-chan loopback.Event, func())
}

// NewLoopbackBackend serves the demo fixture from memory.
func NewLoopbackBackend(fx loopback.Fixture) *Backend {
	return &Backend{
		Name:      BackendLoopback,
		Catalog:   fx.Catalog,
		Nodes:     fx.Catalog,
		Queue:     fx.Device,
		Transport: fx.Device,
		Renderers: fx.Device,
		Watcher:   fx.Device,
		Root:      loopback.RootNode,
	}
}

// NewBridgeBackend talks to the renderer bridge described by cfg.
func NewBridgeBackend(cfg shared.BridgeConfig, client *http.Client, logger *log.Logger) *Backend {
	bridge := NewBridgeService(NewAPIService(cfg, client, logger), logger)
	return &Backend{
		Name:      BackendBridge,
		Catalog:   bridge,
		Nodes:     bridge,
		Queue:     bridge,
		Transport: bridge,
		Renderers: bridge,
		Root:      "root",
	}
}

// NewLibraryBackend browses the local SQLite library and plays on the renderers of device.
//
// The first top-level node of the library becomes the root.
func NewLibraryBackend(lib *repositories.Library, device *loopback.Device) (*Backend, error) {
	roots, err := lib.Nodes().Children("")
	if err != nil {
		return nil, fmt.Errorf("failed to list library roots: %w", err)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("%w: library is empty, run `renderkit library import` or `renderkit setup --demo`", shared.ErrMissingConfig)
	}

	return &Backend{
		Name:      BackendLibrary,
		Catalog:   lib,
		Nodes:     lib,
		Queue:     device,
		Transport: device,
		Renderers: device,
		Watcher:   device,
		Root:      roots[0].ID,
	}, nil
}

// Forward delivers events to sink until ctx ends or events is closed. Sink errors are logged
// and do not stop forwarding.
func Forward(ctx context.Context, events <-chan loopback.Event, sink PushSink, logger *log.Logger) {
	logger = shared.WithLogger(logger, "component", "forward")
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			var err error
			if e.State != nil {
				err = sink.PushState(*e.State)
			} else {
				err = sink.PushQueue(e.RendererID, e.Queue)
			}
			if err != nil {
				logger.Warn("push dropped", "renderer", e.RendererID, "error", err)
			}
		}
	}
}
