package renderer

import (
	"context"
	"slices"

	"github.com/desertthunder/renderkit/internal/models"
)

// CreateGroup groups this renderer, as leader, with members. Members that are empty, repeated or
// equal to this renderer are dropped; at least one must remain.
func (h *Hub) CreateGroup(ctx context.Context, name string, members []string) error {
	if err := h.Gate(); err != nil {
		return err
	}

	ids := make([]string, 0, len(members))
	for _, m := range members {
		if m == "" || m == h.id || slices.Contains(ids, m) {
			continue
		}
		ids = append(ids, m)
	}
	if len(ids) == 0 {
		return rejected("a group needs at least one other renderer")
	}
	if name == "" {
		name = h.Name()
	}
	return h.sendGroup(ctx, models.CreateGroupCommand(name, ids), ids...)
}

// AddToGroup adds member to this renderer's group. The renderer must lead a group.
func (h *Hub) AddToGroup(ctx context.Context, member string) error {
	if err := h.Gate(); err != nil {
		return err
	}

	g := h.Snapshot().Group
	switch {
	case member == "" || member == h.id:
		return rejected("cannot add %q to the group of %s", member, h.id)
	case g == nil:
		return rejected("renderer %s is not grouped", h.id)
	case g.LeaderID() != h.id:
		return rejected("renderer %s does not lead group %s", h.id, g.ID)
	case g.HasMember(member):
		return nil
	}
	return h.sendGroup(ctx, models.AddToGroupCommand(member), member)
}

// LeaveGroup removes this renderer from its group. Ungrouped renderers are left alone.
func (h *Hub) LeaveGroup(ctx context.Context) error {
	if err := h.Gate(); err != nil {
		return err
	}
	if h.Snapshot().Group == nil {
		return nil
	}
	return h.sendGroup(ctx, models.LeaveGroupCommand())
}

// sendGroup sends a group-changing command, then refreshes every renderer that was or now is
// grouped with this one, along with the renderers the command names.
func (h *Hub) sendGroup(ctx context.Context, cmd models.Command, named ...string) error {
	affected := append(groupMembers(h.Snapshot()), named...)
	if err := h.send(ctx, cmd); err != nil {
		return err
	}
	if h.peers == nil {
		return nil
	}
	affected = append(affected, groupMembers(h.Snapshot())...)

	ids := make([]string, 0, len(affected))
	for _, id := range affected {
		if id != h.id && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return h.peers(ctx, ids)
}

func groupMembers(s models.RendererState) []string {
	if s.Group == nil {
		return nil
	}
	return s.Group.MemberIDs()
}

// SetZoneVolume sets the volume of the whole group, within the renderer's volume range.
func (h *Hub) SetZoneVolume(ctx context.Context, v int) error {
	s := h.Snapshot()
	if s.Group == nil {
		return rejected("renderer %s is not grouped", h.id)
	}
	if v < s.MinVolume || v > s.MaxVolume {
		return rejected("zone volume %d outside %d..%d", v, s.MinVolume, s.MaxVolume)
	}
	return h.send(ctx, models.SetZoneVolumeCommand(v))
}

func (h *Hub) SetZoneMute(ctx context.Context, mute bool) error {
	if h.Snapshot().Group == nil {
		return rejected("renderer %s is not grouped", h.id)
	}
	return h.send(ctx, models.SetZoneMuteCommand(mute))
}
