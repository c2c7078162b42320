package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/server"
	"github.com/desertthunder/renderkit/internal/services"
	"github.com/desertthunder/renderkit/internal/session"
	"github.com/desertthunder/renderkit/internal/shared"
	"github.com/urfave/cli/v3"
)

const maxEventBody = 1 << 20

// newRouter builds the event callback router over s. With expose, the session's backend is also
// served in the bridge wire format.
func newRouter(s *session.Session, logger *log.Logger, rateLimit float64, expose bool) *server.BasicRouter {
	router := server.NewBasicRouter()
	router.Use(
		server.Recover(logger),
		server.Logging(logger),
		server.RateLimit(rateLimit, max(int(rateLimit), 1)),
		server.BodyLimit(maxEventBody),
	)
	router.Handler(server.NewEventsHandler(s, logger))
	if expose {
		router.Handler(server.NewBridgeHandler(s.Backend(), logger))
	}
	return router
}

// Serve runs the event callback server until interrupted. When MQTT is configured, pushed
// snapshots are also received from the broker; with --mirror, device events are published to it
// instead.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := r.open(ctx, nil)
	if err != nil {
		return err
	}

	mirror := cmd.Bool("mirror")
	if r.config.MQTT.Enabled() {
		var sink services.PushSink = s
		if mirror {
			sink = nil
		}
		mq := services.NewMQTTService(r.config.MQTT, sink, r.logger)
		if err := mq.Connect(ctx); err != nil {
			return err
		}
		if mirror {
			if err := r.mirror(ctx, s, mq); err != nil {
				return err
			}
		}
	} else if mirror {
		return fmt.Errorf("%w: --mirror needs [mqtt] broker", shared.ErrMissingConfig)
	}

	for _, h := range s.Manager().Renderers() {
		states, unsubscribe := h.Subscribe(16)
		defer unsubscribe()
		go r.logStates(ctx, states)

		if q, err := s.Queue(h.ID()); err == nil {
			queue, unsubscribe := q.Subscribe(16)
			defer unsubscribe()
			go r.logQueue(ctx, h.Name(), queue)
		}
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}
	router := newRouter(s, r.logger, cmd.Float64("rate-limit"), cmd.Bool("expose"))

	r.logger.Info("serving", "addr", addr, "backend", s.Backend().Name, "expose", cmd.Bool("expose"))
	for _, route := range router.Routes() {
		r.logger.Debug("route", "pattern", route)
	}
	r.writePlain("Listening on %s (Ctrl+C to stop)\n", addr)
	return server.New(addr, router, r.logger).Run(ctx)
}

// mirror publishes the backend's device events to the broker.
func (r *Runner) mirror(ctx context.Context, s *session.Session, mq *services.MQTTService) error {
	watcher := s.Backend().Watcher
	if watcher == nil {
		return fmt.Errorf("%w: backend %s has no device events to mirror", shared.ErrInvalidFlag, s.Backend().Name)
	}
	events, unwatch := watcher.Watch(64)
	go func() {
		defer unwatch()
		services.Forward(ctx, events, mq.Mirror(), r.logger)
	}()
	return nil
}

func (r *Runner) logStates(ctx context.Context, states <-chan models.RendererState) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			track := ""
			if st.CurrentTrack != nil {
				track = st.CurrentTrack.Label()
			}
			r.logger.Info("state", "renderer", st.Name, "play", st.PlayState, "volume", st.Volume,
				"mute", st.Mute, "track", track, "reachable", !st.Unreachable)
		}
	}
}

func (r *Runner) logQueue(ctx context.Context, name string, queue <-chan []models.QueueEntry) {
	for {
		select {
		case <-ctx.Done():
			return
		case entries, ok := <-queue:
			if !ok {
				return
			}
			r.logger.Info("queue", "renderer", name, "entries", len(entries))
		}
	}
}
