package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/renderkit/internal/formatter"
	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/renderer"
	"github.com/desertthunder/renderkit/internal/shared"
	"github.com/urfave/cli/v3"
)

// hubAction resolves --renderer, runs fn and reports label on success.
func (r *Runner) hubAction(ctx context.Context, cmd *cli.Command, label string, fn func(*renderer.Hub) error) error {
	_, h, err := r.renderer(ctx, cmd)
	if err != nil {
		return err
	}
	if err := fn(h); err != nil {
		return err
	}
	r.logger.Debug("renderer command", "renderer", h.ID(), "action", label)
	return r.writePlain("✓ %s: %s\n", h.Name(), label)
}

// parseSwitch reads on/off/toggle. Toggle flips current.
func parseSwitch(arg string, current bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	case "", "toggle":
		return !current, nil
	default:
		return false, fmt.Errorf("%w: %q (want on, off or toggle)", shared.ErrInvalidArgument, arg)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// RendererList prints every discovered renderer.
func (r *Runner) RendererList(ctx context.Context, cmd *cli.Command) error {
	f, err := r.format(cmd)
	if err != nil {
		return err
	}
	s, err := r.open(ctx, nil)
	if err != nil {
		return err
	}
	return formatter.WriteRenderers(r.output, s.Manager().Snapshots(), f)
}

// RendererStatus fetches a renderer's state and prints it.
func (r *Runner) RendererStatus(ctx context.Context, cmd *cli.Command) error {
	f, err := r.format(cmd)
	if err != nil {
		return err
	}
	_, h, err := r.renderer(ctx, cmd)
	if err != nil {
		return err
	}
	if err := h.UpdateState(ctx); err != nil {
		return err
	}
	return formatter.WriteRenderer(r.output, h.Snapshot(), f)
}

// RendererVolume sets the volume.
func (r *Runner) RendererVolume(ctx context.Context, cmd *cli.Command) error {
	level := cmd.IntArg("level")
	return r.hubAction(ctx, cmd, fmt.Sprintf("volume %d", level), func(h *renderer.Hub) error {
		return h.SetVolume(ctx, level)
	})
}

// RendererMute mutes, unmutes or toggles mute.
func (r *Runner) RendererMute(ctx context.Context, cmd *cli.Command) error {
	_, h, err := r.renderer(ctx, cmd)
	if err != nil {
		return err
	}
	mute, err := parseSwitch(cmd.StringArg("state"), h.Snapshot().Mute)
	if err != nil {
		return err
	}
	return r.hubAction(ctx, cmd, "mute "+onOff(mute), func(h *renderer.Hub) error {
		return h.SetMute(ctx, mute)
	})
}

func (r *Runner) setPlayState(ctx context.Context, cmd *cli.Command, ps models.PlayState) error {
	return r.hubAction(ctx, cmd, string(ps), func(h *renderer.Hub) error {
		return h.SetPlayState(ctx, ps)
	})
}

// RendererPlay starts playback.
func (r *Runner) RendererPlay(ctx context.Context, cmd *cli.Command) error {
	return r.setPlayState(ctx, cmd, models.StatePlay)
}

// RendererPause pauses playback.
func (r *Runner) RendererPause(ctx context.Context, cmd *cli.Command) error {
	return r.setPlayState(ctx, cmd, models.StatePause)
}

// RendererStop stops playback.
func (r *Runner) RendererStop(ctx context.Context, cmd *cli.Command) error {
	return r.setPlayState(ctx, cmd, models.StateStop)
}

// RendererNext skips to the next track.
func (r *Runner) RendererNext(ctx context.Context, cmd *cli.Command) error {
	return r.hubAction(ctx, cmd, "next", func(h *renderer.Hub) error { return h.PlayNext(ctx) })
}

// RendererPrevious goes back to the previous track.
func (r *Runner) RendererPrevious(ctx context.Context, cmd *cli.Command) error {
	return r.hubAction(ctx, cmd, "previous", func(h *renderer.Hub) error { return h.PlayPrevious(ctx) })
}

// RendererRepeat sets the repeat mode, cycling off → all → one when no mode is given.
func (r *Runner) RendererRepeat(ctx context.Context, cmd *cli.Command) error {
	arg := cmd.StringArg("mode")
	if arg == "" {
		return r.hubAction(ctx, cmd, "repeat cycled", func(h *renderer.Hub) error { return h.ToggleRepeatMode(ctx) })
	}
	mode, err := models.ParseRepeatMode(arg)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return r.hubAction(ctx, cmd, "repeat "+mode.DisplayString(), func(h *renderer.Hub) error {
		return h.SetRepeatMode(ctx, mode)
	})
}

// RendererShuffle sets the shuffle mode, toggling it when no mode is given.
func (r *Runner) RendererShuffle(ctx context.Context, cmd *cli.Command) error {
	arg := cmd.StringArg("mode")
	if arg == "" {
		return r.hubAction(ctx, cmd, "shuffle toggled", func(h *renderer.Hub) error { return h.ToggleShuffleMode(ctx) })
	}
	mode, err := models.ParseShuffleMode(arg)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return r.hubAction(ctx, cmd, "shuffle "+mode.DisplayString(), func(h *renderer.Hub) error {
		return h.SetShuffleMode(ctx, mode)
	})
}

// RendererSetting changes a speaker setting. The value is parsed according to the setting's kind.
func (r *Runner) RendererSetting(ctx context.Context, cmd *cli.Command) error {
	id, raw := cmd.StringArg("id"), cmd.StringArg("value")
	if id == "" || raw == "" {
		return fmt.Errorf("%w: setting ID and value are required", shared.ErrMissingArgument)
	}

	_, h, err := r.renderer(ctx, cmd)
	if err != nil {
		return err
	}
	setting, ok := h.Snapshot().Setting(id)
	if !ok {
		return fmt.Errorf("%w: %s has no setting %q", shared.ErrInvalidArgument, h.Name(), id)
	}
	value, err := setting.ParseValue(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return r.hubAction(ctx, cmd, fmt.Sprintf("%s = %s", setting.Name, raw), func(h *renderer.Hub) error {
		return h.SetSpeakerSetting(ctx, id, value)
	})
}

// RendererPower sets the power state.
func (r *Runner) RendererPower(ctx context.Context, cmd *cli.Command) error {
	state, err := models.ParsePowerState(cmd.StringArg("state"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return r.hubAction(ctx, cmd, "power "+string(state), func(h *renderer.Hub) error {
		return h.SetPowerState(ctx, state)
	})
}

// GroupList prints the groups derived from every renderer's state.
func (r *Runner) GroupList(ctx context.Context, cmd *cli.Command) error {
	f, err := r.format(cmd)
	if err != nil {
		return err
	}
	s, err := r.open(ctx, nil)
	if err != nil {
		return err
	}
	if err := s.Manager().CheckGroups(); err != nil {
		r.logger.Warn("renderers disagree about their groups", "error", err)
	}
	return formatter.WriteGroups(r.output, s.Manager().Groups(), f)
}

// GroupCreate creates a group led by --renderer. Arguments name the members by ID or name.
func (r *Runner) GroupCreate(ctx context.Context, cmd *cli.Command) error {
	refs := cmd.Args().Slice()
	if len(refs) == 0 {
		return fmt.Errorf("%w: at least one member is required", shared.ErrMissingArgument)
	}
	s, err := r.open(ctx, nil)
	if err != nil {
		return err
	}

	members := make([]string, len(refs))
	for i, ref := range refs {
		h, err := s.Renderer(ref)
		if err != nil {
			return err
		}
		members[i] = h.ID()
	}

	name := cmd.String("name")
	return r.hubAction(ctx, cmd, "created group "+name, func(h *renderer.Hub) error {
		return h.CreateGroup(ctx, name, members)
	})
}

// GroupJoin adds a renderer to the group led by --renderer.
func (r *Runner) GroupJoin(ctx context.Context, cmd *cli.Command) error {
	s, err := r.open(ctx, nil)
	if err != nil {
		return err
	}
	member, err := s.Renderer(cmd.StringArg("member"))
	if err != nil {
		return err
	}
	return r.hubAction(ctx, cmd, member.Name()+" joined", func(h *renderer.Hub) error {
		return h.AddToGroup(ctx, member.ID())
	})
}

// GroupLeave removes --renderer from its group.
func (r *Runner) GroupLeave(ctx context.Context, cmd *cli.Command) error {
	return r.hubAction(ctx, cmd, "left group", func(h *renderer.Hub) error { return h.LeaveGroup(ctx) })
}

// GroupVolume sets the zone volume of --renderer's group.
func (r *Runner) GroupVolume(ctx context.Context, cmd *cli.Command) error {
	level := cmd.IntArg("level")
	return r.hubAction(ctx, cmd, fmt.Sprintf("zone volume %d", level), func(h *renderer.Hub) error {
		return h.SetZoneVolume(ctx, level)
	})
}

// GroupMute mutes, unmutes or toggles the zone of --renderer's group.
func (r *Runner) GroupMute(ctx context.Context, cmd *cli.Command) error {
	_, h, err := r.renderer(ctx, cmd)
	if err != nil {
		return err
	}
	mute, err := parseSwitch(cmd.StringArg("state"), h.Snapshot().ZoneMute)
	if err != nil {
		return err
	}
	return r.hubAction(ctx, cmd, "zone mute "+onOff(mute), func(h *renderer.Hub) error {
		return h.SetZoneMute(ctx, mute)
	})
}
