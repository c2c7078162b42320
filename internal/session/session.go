// Package session ties a backend to the client core: one renderer hub and one queue coordinator
// per discovered renderer, and one paged container per browsed node.
//
// A [Session] is the [services.PushSink] for its renderers, so pushed snapshots (loopback
// events, MQTT messages, HTTP callbacks) land in the same hubs and queues the commands use.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/renderkit/internal/catalog"
	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/queue"
	"github.com/desertthunder/renderkit/internal/renderer"
	"github.com/desertthunder/renderkit/internal/services"
	"github.com/desertthunder/renderkit/internal/shared"
	"github.com/desertthunder/renderkit/internal/tasks"
)

const watchBuffer = 64

var (
	_ services.PushSink   = (*Session)(nil)
	_ tasks.QueueProvider = (*Session)(nil)
)

// Options configures a [Session].
type Options struct {
	Timeout time.Duration
	Cache   *catalog.PageCache
	Store   tasks.SnapshotStore
	Logger  *log.Logger
}

// Session is the client-side view of one backend.
type Session struct {
	backend *services.Backend
	opts    Options
	manager *renderer.Manager
	engine  *tasks.SessionEngine
	logger  *log.Logger

	mu         sync.Mutex
	queues     map[string]*queue.Coordinator
	containers map[string]*catalog.Container

	cancel context.CancelFunc
	done   chan struct{}
}

// Open discovers the renderers of backend and, when the backend pushes events itself, starts
// forwarding them into the session. Close releases everything Open started.
func Open(ctx context.Context, backend *services.Backend, opts Options) (*Session, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend", shared.ErrMissingArgument)
	}
	logger := shared.WithLogger(opts.Logger, "component", "session", "backend", backend.Name)

	s := &Session{
		backend:    backend,
		opts:       opts,
		manager:    renderer.NewManager(opts.Logger),
		logger:     logger,
		queues:     make(map[string]*queue.Coordinator),
		containers: make(map[string]*catalog.Container),
	}

	callCtx, cancel := shared.WithCallTimeout(ctx, opts.Timeout)
	states, err := backend.Renderers.Renderers(callCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to discover renderers: %w", shared.Unavailable("list renderers", err))
	}

	for _, st := range states {
		if err := s.addRenderer(st); err != nil {
			logger.Warn("skipped renderer", "renderer", st.ID, "error", err)
		}
	}
	s.engine = tasks.NewSessionEngine(s.manager, s, opts.Store, opts.Logger)

	if backend.Watcher != nil {
		events, stop := backend.Watcher.Watch(watchBuffer)
		watchCtx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.done = make(chan struct{})
		go func() {
			defer close(s.done)
			defer stop()
			services.Forward(watchCtx, events, s, opts.Logger)
		}()
	}

	logger.Info("session opened", "renderers", len(states))
	return s, nil
}

func (s *Session) addRenderer(st models.RendererState) error {
	hub := renderer.NewHub(st, s.backend.Transport, renderer.Options{
		Timeout: s.opts.Timeout,
		Logger:  s.opts.Logger,
		Peers:   s.manager.SyncGroup,
	})
	if err := s.manager.Add(hub); err != nil {
		hub.Close()
		return err
	}

	q := queue.New(st.ID, s.backend.Queue, queue.Options{Timeout: s.opts.Timeout, Logger: s.opts.Logger, Gate: hub.Gate})
	s.mu.Lock()
	s.queues[st.ID] = q
	s.mu.Unlock()
	return nil
}

// Backend returns the backend the session was opened on.
func (s *Session) Backend() *services.Backend { return s.backend }

// Manager returns the renderers of the session.
func (s *Session) Manager() *renderer.Manager { return s.manager }

// Engine returns the long-running operations bound to the session.
func (s *Session) Engine() *tasks.SessionEngine { return s.engine }

// Root returns the node browsed when none is given.
func (s *Session) Root() string { return s.backend.Root }

// Renderer resolves ref, an ID or a display name, with a suggestion on typos. An empty ref
// selects the first renderer.
func (s *Session) Renderer(ref string) (*renderer.Hub, error) {
	if ref == "" {
		hubs := s.manager.Renderers()
		if len(hubs) == 0 {
			return nil, fmt.Errorf("%w: no renderers discovered", shared.ErrRendererNotFound)
		}
		return hubs[0], nil
	}
	return s.manager.Resolve(ref)
}

// Queue returns the coordinator of rendererID.
func (s *Session) Queue(rendererID string) (*queue.Coordinator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[rendererID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrRendererNotFound, rendererID)
	}
	return q, nil
}

// LoadedQueue returns the coordinator of rendererID after reading the queue from the device
// once.
func (s *Session) LoadedQueue(ctx context.Context, rendererID string) (*queue.Coordinator, error) {
	q, err := s.Queue(rendererID)
	if err != nil {
		return nil, err
	}
	if !q.Loaded() {
		if err := q.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// Container returns the paged container of nodeID, creating it on first use. An empty nodeID
// means the root.
func (s *Session) Container(ctx context.Context, nodeID string) (*catalog.Container, error) {
	if nodeID == "" {
		nodeID = s.backend.Root
	}

	s.mu.Lock()
	c, ok := s.containers[nodeID]
	s.mu.Unlock()
	if ok {
		return c, nil
	}

	callCtx, cancel := shared.WithCallTimeout(ctx, s.opts.Timeout)
	node, err := s.backend.Nodes.Node(callCtx, nodeID)
	cancel()
	if err != nil {
		if errors.Is(err, shared.ErrNodeNotFound) {
			return nil, err
		}
		return nil, shared.Unavailable("lookup node "+nodeID, err)
	}

	c = catalog.New(node, s.backend.Catalog, catalog.Options{Timeout: s.opts.Timeout, Cache: s.opts.Cache, Logger: s.opts.Logger})

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.containers[nodeID]; ok {
		return existing, nil
	}
	s.containers[nodeID] = c
	return c, nil
}

// PushState applies a pushed state snapshot to its renderer's hub.
func (s *Session) PushState(st models.RendererState) error {
	hub, err := s.manager.ByID(st.ID)
	if err != nil {
		return err
	}
	return hub.Apply(st)
}

// PushQueue replaces a renderer's queue with a pushed snapshot.
func (s *Session) PushQueue(rendererID string, entries []models.QueueEntry) error {
	q, err := s.Queue(rendererID)
	if err != nil {
		return err
	}
	q.Replace(entries)
	return nil
}

// Close stops event forwarding, closes every hub and queue, and closes the backend.
func (s *Session) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.cancel = nil
	}

	for _, h := range s.manager.Renderers() {
		h.Close()
	}
	s.mu.Lock()
	for _, q := range s.queues {
		q.Close()
	}
	s.mu.Unlock()

	return s.backend.Close()
}
