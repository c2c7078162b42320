package renderer

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

// Transport sends commands to a renderer and reads its state.
type Transport interface {
	SendCommand(ctx context.Context, rendererID string, cmd models.Command) error
	FetchState(ctx context.Context, rendererID string) (models.RendererState, error)
}

// PeerSync refreshes the renderers named by ids after a group change and checks that their
// group membership agrees. [Manager.SyncGroup] is the usual implementation.
type PeerSync func(ctx context.Context, ids []string) error

// Options configures a [Hub].
type Options struct {
	Timeout time.Duration
	Logger  *log.Logger
	Peers   PeerSync
}

// Hub holds the live state of one renderer.
//
// Snapshots are copy-on-write: readers never block and never see a half-applied report. State
// only changes through [Hub.Apply], either from a pushed report or from the pull that follows
// every confirmed command.
type Hub struct {
	id        string
	transport Transport
	timeout   time.Duration
	logger    *log.Logger
	peers     PeerSync

	state     atomic.Pointer[models.RendererState]
	reachable atomic.Bool
	writeMu   sync.Mutex

	feed shared.Feed[models.RendererState]
}

// NewHub creates a hub seeded with initial, which must carry the renderer ID.
func NewHub(initial models.RendererState, transport Transport, opts Options) *Hub {
	h := &Hub{
		id:        initial.ID,
		transport: transport,
		timeout:   opts.Timeout,
		peers:     opts.Peers,
		logger:    shared.WithLogger(opts.Logger, "component", "renderer", "renderer", initial.ID),
	}
	s := initial.Clone()
	h.state.Store(&s)
	h.reachable.Store(!s.Unreachable)
	h.feed.Publish(s.Clone())
	return h
}

func (h *Hub) ID() string { return h.id }

// Name returns the renderer's current display name.
func (h *Hub) Name() string { return h.state.Load().Name }

// Snapshot returns a copy of the current state.
func (h *Hub) Snapshot() models.RendererState {
	return h.state.Load().Clone()
}

// Subscribe delivers every applied snapshot, starting with the current one.
func (h *Hub) Subscribe(buffer int) (<-chan models.RendererState, func()) {
	return h.feed.Subscribe(buffer)
}

// Close ends all subscriptions.
func (h *Hub) Close() { h.feed.Close() }

// Reachable reports whether the renderer answered the last pull and did not report itself
// unreachable.
func (h *Hub) Reachable() bool { return h.reachable.Load() }

// Gate returns nil when queue and group operations may be sent to the renderer.
func (h *Hub) Gate() error {
	if h.Reachable() {
		return nil
	}
	return fmt.Errorf("%w: renderer %s is unreachable", shared.ErrSourceUnavailable, h.id)
}

// Apply installs a device report. The report replaces the current state as a whole.
//
// Reports for another renderer are rejected, as are reports whose group does not list the
// renderer. A report older than the current one (both revisions non-zero) is ignored.
func (h *Hub) Apply(s models.RendererState) error {
	if s.ID != h.id {
		return fmt.Errorf("%w: report for %q sent to hub %q", shared.ErrInvalidArgument, s.ID, h.id)
	}
	if err := s.CheckGroup(); err != nil {
		h.logger.Warn("rejected inconsistent report", "error", err)
		return fmt.Errorf("%w: %w", shared.ErrMalformedResponse, err)
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	cur := h.state.Load()
	if s.Revision != 0 && cur.Revision != 0 && s.Revision < cur.Revision {
		h.logger.Debug("ignored stale report", "revision", s.Revision, "current", cur.Revision)
		return nil
	}

	next := s.Clone()
	h.state.Store(&next)
	h.reachable.Store(!next.Unreachable)
	h.feed.Publish(next.Clone())
	return nil
}

// UpdateState pulls the renderer's state and applies it.
func (h *Hub) UpdateState(ctx context.Context) error {
	callCtx, cancel := shared.WithCallTimeout(ctx, h.timeout)
	defer cancel()

	s, err := h.transport.FetchState(callCtx, h.id)
	if err != nil {
		err = shared.Unavailable("fetch state", err)
		if errors.Is(err, shared.ErrSourceUnavailable) {
			h.reachable.Store(false)
		}
		h.logger.Warn("state pull failed", "error", err)
		return err
	}
	return h.Apply(s)
}

// SetVolume requests a new volume within the renderer's [MinVolume, MaxVolume].
func (h *Hub) SetVolume(ctx context.Context, v int) error {
	s := h.Snapshot()
	if v < s.MinVolume || v > s.MaxVolume {
		return rejected("volume %d outside %d..%d", v, s.MinVolume, s.MaxVolume)
	}
	return h.send(ctx, models.SetVolumeCommand(v))
}

func (h *Hub) SetMute(ctx context.Context, mute bool) error {
	return h.send(ctx, models.SetMuteCommand(mute))
}

// SetPlayState requests play, pause or stop. The matching action must be available.
func (h *Hub) SetPlayState(ctx context.Context, ps models.PlayState) error {
	var action models.PlaybackAction
	switch ps {
	case models.StatePlay:
		action = models.ActionPlay
	case models.StatePause:
		action = models.ActionPause
	case models.StateStop:
		action = models.ActionStop
	default:
		return rejected("cannot request play state %q", ps)
	}
	if !h.Snapshot().Allows(action) {
		return rejected("action %s is not available", action)
	}
	return h.send(ctx, models.SetPlayStateCommand(ps))
}

func (h *Hub) SetRepeatMode(ctx context.Context, m models.RepeatMode) error {
	if _, err := models.ParseRepeatMode(string(m)); err != nil {
		return rejected("%v", err)
	}
	return h.send(ctx, models.SetRepeatCommand(m))
}

func (h *Hub) SetShuffleMode(ctx context.Context, m models.ShuffleMode) error {
	if _, err := models.ParseShuffleMode(string(m)); err != nil {
		return rejected("%v", err)
	}
	return h.send(ctx, models.SetShuffleCommand(m))
}

// ToggleRepeatMode moves to the next repeat mode (all, one, off).
func (h *Hub) ToggleRepeatMode(ctx context.Context) error {
	return h.SetRepeatMode(ctx, h.Snapshot().RepeatMode.Next())
}

func (h *Hub) ToggleShuffleMode(ctx context.Context) error {
	return h.SetShuffleMode(ctx, h.Snapshot().ShuffleMode.Next())
}

// SetSpeakerSetting validates v against the setting the renderer reported before sending it.
func (h *Hub) SetSpeakerSetting(ctx context.Context, id string, v models.SettingValue) error {
	setting, ok := h.Snapshot().Setting(id)
	if !ok {
		return rejected("unknown speaker setting %q", id)
	}
	if err := setting.Validate(v); err != nil {
		return rejected("%v", err)
	}
	return h.send(ctx, models.SetSettingCommand(id, v))
}

func (h *Hub) PlayNext(ctx context.Context) error {
	if !h.Snapshot().Allows(models.ActionNext) {
		return rejected("action %s is not available", models.ActionNext)
	}
	return h.send(ctx, models.PlayNextCommand())
}

func (h *Hub) PlayPrevious(ctx context.Context) error {
	if !h.Snapshot().Allows(models.ActionPrevious) {
		return rejected("action %s is not available", models.ActionPrevious)
	}
	return h.send(ctx, models.PlayPreviousCommand())
}

// SetPowerState is only accepted by renderers that report a power state.
func (h *Hub) SetPowerState(ctx context.Context, p models.PowerState) error {
	if h.Snapshot().PowerState == "" {
		return rejected("renderer %s has no power control", h.id)
	}
	if _, err := models.ParsePowerState(string(p)); err != nil {
		return rejected("%v", err)
	}
	return h.send(ctx, models.SetPowerCommand(p))
}

// send delivers cmd and, once the renderer confirms it, pulls the resulting state.
func (h *Hub) send(ctx context.Context, cmd models.Command) error {
	callCtx, cancel := shared.WithCallTimeout(ctx, h.timeout)
	err := h.transport.SendCommand(callCtx, h.id, cmd)
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
	cancel()

	if err != nil {
		h.logger.Warn("command failed", "command", cmd, "error", err)
		switch {
		case timedOut:
			return fmt.Errorf("%w: %s timed out: %w", shared.ErrSourceUnavailable, cmd, err)
		case shared.IsClassified(err):
			return err
		default:
			return fmt.Errorf("%w: %s: %w", shared.ErrCommandRejected, cmd, err)
		}
	}

	h.logger.Debug("command confirmed", "command", cmd)
	return h.UpdateState(ctx)
}

func rejected(format string, args ...any) error {
	return fmt.Errorf("%w: %s", shared.ErrCommandRejected, fmt.Sprintf(format, args...))
}
