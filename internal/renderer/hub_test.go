package renderer

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/shared"
)

// mockRenderer executes commands against an in-memory state and reports it back.
type mockRenderer struct {
	mu       sync.Mutex
	state    models.RendererState
	sent     []models.Command
	refuse   error
	fetchErr error
	corrupt  bool
	block    bool
}

func newMockRenderer(id string) *mockRenderer {
	s := models.NewRendererState(id, "Room "+id, "mock")
	s.SpeakerSettings = []models.SpeakerSetting{
		{ID: "bass", Name: "Bass", Kind: models.SettingNumber, Number: 0, Min: -10, Max: 10, Step: 1},
		{ID: "loudness", Name: "Loudness", Kind: models.SettingBool},
	}
	return &mockRenderer{state: s}
}

func (r *mockRenderer) SendCommand(ctx context.Context, rendererID string, cmd models.Command) error {
	r.mu.Lock()
	block := r.block
	r.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refuse != nil {
		return r.refuse
	}
	r.sent = append(r.sent, cmd)

	s := &r.state
	switch cmd.Kind {
	case models.CmdSetVolume:
		s.Volume = cmd.Volume
	case models.CmdSetMute:
		s.Mute = cmd.Mute
	case models.CmdSetPlayState:
		s.PlayState = cmd.PlayState
	case models.CmdSetRepeatMode:
		s.RepeatMode = cmd.RepeatMode
	case models.CmdSetShuffleMode:
		s.ShuffleMode = cmd.ShuffleMode
	case models.CmdSetSpeakerSetting:
		for i, setting := range s.SpeakerSettings {
			if setting.ID == cmd.SettingID {
				s.SpeakerSettings[i] = setting.With(*cmd.Value)
			}
		}
	case models.CmdSetPowerState:
		s.PowerState = cmd.PowerState
	case models.CmdCreateGroup:
		g := &models.Group{ID: "g-" + s.ID, Name: cmd.GroupName}
		g.Members = append(g.Members, models.GroupMember{ID: s.ID, Role: models.RoleLeader})
		for _, m := range cmd.Members {
			g.Members = append(g.Members, models.GroupMember{ID: m, Role: models.RoleMember})
		}
		if r.corrupt {
			g.Members = g.Members[1:]
		}
		s.Group = g
	case models.CmdAddToGroup:
		s.Group.Members = append(s.Group.Members, models.GroupMember{ID: cmd.Members[0], Role: models.RoleMember})
	case models.CmdLeaveGroup:
		s.Group = nil
	case models.CmdSetZoneVolume:
		s.ZoneVolume = cmd.Volume
	case models.CmdSetZoneMute:
		s.ZoneMute = cmd.Mute
	}
	return nil
}

func (r *mockRenderer) FetchState(ctx context.Context, rendererID string) (models.RendererState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetchErr != nil {
		return models.RendererState{}, r.fetchErr
	}
	r.state.Revision++
	return r.state.Clone(), nil
}

func (r *mockRenderer) commands() []models.CommandKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]models.CommandKind, len(r.sent))
	for i, c := range r.sent {
		kinds[i] = c.Kind
	}
	return kinds
}

func newTestHub(id string) (*Hub, *mockRenderer) {
	dev := newMockRenderer(id)
	return NewHub(dev.state, dev, Options{Timeout: time.Second}), dev
}

func TestHubCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("SetVolume Applies Confirmed State", func(t *testing.T) {
		h, _ := newTestHub("r1")
		if err := h.SetVolume(ctx, 25); err != nil {
			t.Fatalf("SetVolume() error = %v", err)
		}
		if got := h.Snapshot().Volume; got != 25 {
			t.Errorf("Volume = %d, want 25", got)
		}
	})

	t.Run("Out Of Range Volume Is Rejected Locally", func(t *testing.T) {
		h, dev := newTestHub("r1")
		for _, v := range []int{-1, 61} {
			err := h.SetVolume(ctx, v)
			if !errors.Is(err, shared.ErrCommandRejected) {
				t.Errorf("SetVolume(%d) error = %v, want ErrCommandRejected", v, err)
			}
		}
		if len(dev.commands()) != 0 {
			t.Errorf("device received %v, want nothing", dev.commands())
		}
	})

	t.Run("Unavailable Action Is Rejected", func(t *testing.T) {
		h, dev := newTestHub("r1")
		dev.state.AvailableActions = []models.PlaybackAction{models.ActionPlay, models.ActionStop}
		if err := h.UpdateState(ctx); err != nil {
			t.Fatal(err)
		}

		if err := h.SetPlayState(ctx, models.StatePause); !errors.Is(err, shared.ErrCommandRejected) {
			t.Errorf("pause error = %v, want ErrCommandRejected", err)
		}
		if err := h.PlayNext(ctx); !errors.Is(err, shared.ErrCommandRejected) {
			t.Errorf("next error = %v, want ErrCommandRejected", err)
		}
		if err := h.SetPlayState(ctx, models.StatePlay); err != nil {
			t.Errorf("play error = %v", err)
		}
		if got := h.Snapshot().PlayState; got != models.StatePlay {
			t.Errorf("PlayState = %s, want play", got)
		}
	})

	t.Run("Transitioning Cannot Be Requested", func(t *testing.T) {
		h, _ := newTestHub("r1")
		if err := h.SetPlayState(ctx, models.StateTransitioning); !errors.Is(err, shared.ErrCommandRejected) {
			t.Errorf("error = %v, want ErrCommandRejected", err)
		}
	})

	t.Run("Toggles Cycle Modes", func(t *testing.T) {
		h, _ := newTestHub("r1")
		want := []models.RepeatMode{models.RepeatAll, models.RepeatOne, models.RepeatOff}
		for _, w := range want {
			if err := h.ToggleRepeatMode(ctx); err != nil {
				t.Fatal(err)
			}
			if got := h.Snapshot().RepeatMode; got != w {
				t.Errorf("RepeatMode = %s, want %s", got, w)
			}
		}

		if err := h.ToggleShuffleMode(ctx); err != nil {
			t.Fatal(err)
		}
		if got := h.Snapshot().ShuffleMode; got != models.ShuffleOn {
			t.Errorf("ShuffleMode = %s, want on", got)
		}
	})

	t.Run("Speaker Settings", func(t *testing.T) {
		h, dev := newTestHub("r1")

		if err := h.SetSpeakerSetting(ctx, "bass", models.NumberValue(4)); err != nil {
			t.Fatalf("SetSpeakerSetting() error = %v", err)
		}
		bass, _ := h.Snapshot().Setting("bass")
		if bass.Number != 4 {
			t.Errorf("bass = %v, want 4", bass.Number)
		}

		for name, call := range map[string]func() error{
			"unknown":      func() error { return h.SetSpeakerSetting(ctx, "treble", models.NumberValue(1)) },
			"out of range": func() error { return h.SetSpeakerSetting(ctx, "bass", models.NumberValue(11)) },
			"off step":     func() error { return h.SetSpeakerSetting(ctx, "bass", models.NumberValue(1.5)) },
		} {
			if err := call(); !errors.Is(err, shared.ErrCommandRejected) {
				t.Errorf("%s: error = %v, want ErrCommandRejected", name, err)
			}
		}
		if got := len(dev.commands()); got != 1 {
			t.Errorf("device received %d commands, want 1", got)
		}
	})

	t.Run("Power Requires Power Control", func(t *testing.T) {
		h, dev := newTestHub("r1")
		if err := h.SetPowerState(ctx, models.PowerStandby); err != nil {
			t.Fatal(err)
		}
		if got := h.Snapshot().PowerState; got != models.PowerStandby {
			t.Errorf("PowerState = %s, want standby", got)
		}

		dev.state.PowerState = ""
		if err := h.UpdateState(ctx); err != nil {
			t.Fatal(err)
		}
		if err := h.SetPowerState(ctx, models.PowerOn); !errors.Is(err, shared.ErrCommandRejected) {
			t.Errorf("error = %v, want ErrCommandRejected", err)
		}
	})

	t.Run("Device Refusal Maps To Rejected", func(t *testing.T) {
		h, dev := newTestHub("r1")
		dev.refuse = errors.New("busy")

		err := h.SetMute(ctx, true)
		if !errors.Is(err, shared.ErrCommandRejected) {
			t.Errorf("error = %v, want ErrCommandRejected", err)
		}
		if h.Snapshot().Mute {
			t.Error("mute applied without confirmation")
		}
	})

	t.Run("Timeout Maps To Unavailable", func(t *testing.T) {
		dev := newMockRenderer("r1")
		dev.block = true
		h := NewHub(dev.state, dev, Options{Timeout: 20 * time.Millisecond})

		err := h.SetMute(ctx, true)
		if !errors.Is(err, shared.ErrSourceUnavailable) {
			t.Errorf("error = %v, want ErrSourceUnavailable", err)
		}
	})

	t.Run("Failed Pull Marks Unreachable", func(t *testing.T) {
		h, dev := newTestHub("r1")
		if err := h.Gate(); err != nil {
			t.Fatalf("Gate() = %v before failure", err)
		}

		dev.fetchErr = errors.New("connection refused")
		if err := h.UpdateState(ctx); !errors.Is(err, shared.ErrSourceUnavailable) {
			t.Errorf("UpdateState() error = %v, want ErrSourceUnavailable", err)
		}
		if h.Reachable() || h.Gate() == nil {
			t.Error("renderer still reachable after failed pull")
		}

		dev.fetchErr = nil
		if err := h.UpdateState(ctx); err != nil {
			t.Fatal(err)
		}
		if !h.Reachable() {
			t.Error("renderer not reachable after successful pull")
		}
	})
}

func TestHubApply(t *testing.T) {
	t.Run("Replaces Whole State", func(t *testing.T) {
		h, _ := newTestHub("r1")
		s := models.NewRendererState("r1", "Kitchen", "mock")
		s.Volume = 33
		s.Revision = 5

		if err := h.Apply(s); err != nil {
			t.Fatal(err)
		}
		got := h.Snapshot()
		if got.Name != "Kitchen" || got.Volume != 33 || len(got.SpeakerSettings) != 0 {
			t.Errorf("Snapshot() = %+v", got)
		}
	})

	t.Run("Rejects Other Renderer", func(t *testing.T) {
		h, _ := newTestHub("r1")
		err := h.Apply(models.NewRendererState("r2", "Other", "mock"))
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("Ignores Stale Revision", func(t *testing.T) {
		h, _ := newTestHub("r1")
		fresh := models.NewRendererState("r1", "Fresh", "mock")
		fresh.Revision = 10
		stale := models.NewRendererState("r1", "Stale", "mock")
		stale.Revision = 9

		if err := h.Apply(fresh); err != nil {
			t.Fatal(err)
		}
		if err := h.Apply(stale); err != nil {
			t.Fatal(err)
		}
		if got := h.Snapshot().Name; got != "Fresh" {
			t.Errorf("Name = %s, want Fresh", got)
		}
	})

	t.Run("Rejects Inconsistent Group", func(t *testing.T) {
		h, _ := newTestHub("r1")
		s := models.NewRendererState("r1", "Room", "mock")
		s.Group = &models.Group{ID: "g", Members: []models.GroupMember{{ID: "r2", Role: models.RoleLeader}}}

		if err := h.Apply(s); !errors.Is(err, shared.ErrMalformedResponse) {
			t.Errorf("error = %v, want ErrMalformedResponse", err)
		}
		if h.Snapshot().Group != nil {
			t.Error("inconsistent report was applied")
		}
	})

	t.Run("Snapshots Are Isolated", func(t *testing.T) {
		h, _ := newTestHub("r1")
		s := h.Snapshot()
		s.SpeakerSettings[0].Number = 9
		if bass, _ := h.Snapshot().Setting("bass"); bass.Number != 0 {
			t.Error("mutating a snapshot changed the hub")
		}
	})

	t.Run("Unreachable Report Closes Gate", func(t *testing.T) {
		h, _ := newTestHub("r1")
		s := h.Snapshot()
		s.Unreachable = true
		if err := h.Apply(s); err != nil {
			t.Fatal(err)
		}
		if !errors.Is(h.Gate(), shared.ErrSourceUnavailable) {
			t.Errorf("Gate() = %v, want ErrSourceUnavailable", h.Gate())
		}
	})

	t.Run("Subscribers See Every Applied Snapshot", func(t *testing.T) {
		h, _ := newTestHub("r1")
		ch, cancel := h.Subscribe(4)
		defer cancel()

		if got := <-ch; got.ID != "r1" {
			t.Errorf("initial snapshot = %+v", got)
		}
		s := h.Snapshot()
		s.Volume = 44
		if err := h.Apply(s); err != nil {
			t.Fatal(err)
		}
		select {
		case got := <-ch:
			if got.Volume != 44 {
				t.Errorf("Volume = %d, want 44", got.Volume)
			}
		case <-time.After(time.Second):
			t.Fatal("no update delivered")
		}
	})
}

func TestHubGroups(t *testing.T) {
	ctx := context.Background()

	t.Run("Create Add Leave", func(t *testing.T) {
		h, _ := newTestHub("r1")

		if err := h.CreateGroup(ctx, "Downstairs", []string{"r2", "r1", "r2", ""}); err != nil {
			t.Fatalf("CreateGroup() error = %v", err)
		}
		g := h.Snapshot().Group
		if g == nil || !slices.Equal(g.MemberIDs(), []string{"r1", "r2"}) {
			t.Fatalf("Group = %+v, want r1,r2", g)
		}
		if g.LeaderID() != "r1" {
			t.Errorf("LeaderID() = %s, want r1", g.LeaderID())
		}

		if err := h.AddToGroup(ctx, "r3"); err != nil {
			t.Fatal(err)
		}
		if err := h.AddToGroup(ctx, "r3"); err != nil {
			t.Errorf("re-adding member error = %v", err)
		}
		if got := h.Snapshot().Group.MemberIDs(); !slices.Equal(got, []string{"r1", "r2", "r3"}) {
			t.Errorf("members = %v", got)
		}

		if err := h.LeaveGroup(ctx); err != nil {
			t.Fatal(err)
		}
		if h.Snapshot().Group != nil {
			t.Error("still grouped after LeaveGroup")
		}
	})

	t.Run("Peers Are Synced After Group Changes", func(t *testing.T) {
		dev := newMockRenderer("r1")
		var synced [][]string
		h := NewHub(dev.state, dev, Options{
			Timeout: time.Second,
			Peers: func(ctx context.Context, ids []string) error {
				synced = append(synced, ids)
				return nil
			},
		})

		if err := h.CreateGroup(ctx, "Zone", []string{"r2"}); err != nil {
			t.Fatal(err)
		}
		if err := h.AddToGroup(ctx, "r3"); err != nil {
			t.Fatal(err)
		}
		if err := h.LeaveGroup(ctx); err != nil {
			t.Fatal(err)
		}

		want := [][]string{{"r2"}, {"r2", "r3"}, {"r2", "r3"}}
		if len(synced) != len(want) {
			t.Fatalf("synced %d times, want %d: %v", len(synced), len(want), synced)
		}
		for i := range want {
			if !slices.Equal(synced[i], want[i]) {
				t.Errorf("sync %d = %v, want %v", i, synced[i], want[i])
			}
		}
	})

	t.Run("Peer Sync Failure Is Reported", func(t *testing.T) {
		dev := newMockRenderer("r1")
		h := NewHub(dev.state, dev, Options{
			Timeout: time.Second,
			Peers: func(ctx context.Context, ids []string) error {
				return shared.ErrMalformedResponse
			},
		})
		if err := h.CreateGroup(ctx, "Zone", []string{"r2"}); !errors.Is(err, shared.ErrMalformedResponse) {
			t.Errorf("error = %v, want ErrMalformedResponse", err)
		}
	})

	t.Run("Create Needs Other Members", func(t *testing.T) {
		h, _ := newTestHub("r1")
		if err := h.CreateGroup(ctx, "", []string{"r1"}); !errors.Is(err, shared.ErrCommandRejected) {
			t.Errorf("error = %v, want ErrCommandRejected", err)
		}
	})

	t.Run("Zone Controls Require Group", func(t *testing.T) {
		h, _ := newTestHub("r1")
		if err := h.SetZoneVolume(ctx, 20); !errors.Is(err, shared.ErrCommandRejected) {
			t.Errorf("SetZoneVolume error = %v, want ErrCommandRejected", err)
		}
		if err := h.AddToGroup(ctx, "r2"); !errors.Is(err, shared.ErrCommandRejected) {
			t.Errorf("AddToGroup error = %v, want ErrCommandRejected", err)
		}

		if err := h.CreateGroup(ctx, "Zone", []string{"r2"}); err != nil {
			t.Fatal(err)
		}
		if err := h.SetZoneVolume(ctx, 20); err != nil {
			t.Fatal(err)
		}
		if err := h.SetZoneMute(ctx, true); err != nil {
			t.Fatal(err)
		}
		s := h.Snapshot()
		if s.ZoneVolume != 20 || !s.ZoneMute {
			t.Errorf("zone = %d/%t, want 20/true", s.ZoneVolume, s.ZoneMute)
		}
	})

	t.Run("Inconsistent Result Keeps Previous Snapshot", func(t *testing.T) {
		h, dev := newTestHub("r1")
		dev.corrupt = true

		err := h.CreateGroup(ctx, "Broken", []string{"r2"})
		if !errors.Is(err, shared.ErrMalformedResponse) {
			t.Errorf("error = %v, want ErrMalformedResponse", err)
		}
		if h.Snapshot().Group != nil {
			t.Error("inconsistent group was applied")
		}
	})

	t.Run("Unreachable Renderer Is Gated", func(t *testing.T) {
		h, dev := newTestHub("r1")
		dev.fetchErr = errors.New("gone")
		_ = h.UpdateState(ctx)

		if err := h.CreateGroup(ctx, "", []string{"r2"}); !errors.Is(err, shared.ErrSourceUnavailable) {
			t.Errorf("error = %v, want ErrSourceUnavailable", err)
		}
		if len(dev.commands()) != 0 {
			t.Errorf("device received %v", dev.commands())
		}
	})
}
