package loopback

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/queue"
	"github.com/desertthunder/renderkit/internal/shared"
)

// Event is a change pushed by the [Device]. Exactly one of State and Queue is set.
type Event struct {
	RendererID string
	State      *models.RendererState
	Queue      []models.QueueEntry
}

type virtualRenderer struct {
	state   models.RendererState
	queue   []models.QueueEntry
	current int
	offline bool
}

// Device simulates a set of networked renderers. It implements the queue source and the
// renderer transport, and pushes every change to watchers.
type Device struct {
	mu        sync.Mutex
	renderers map[string]*virtualRenderer
	order     []string
	delay     time.Duration
	refuse    error
	queueErr  error
	groupSeq  int

	sent      []models.Command
	mutations []models.MutationCommand

	subsMu sync.Mutex
	subs   map[int]chan Event
	nextID int
}

func NewDevice() *Device {
	return &Device{
		renderers: make(map[string]*virtualRenderer),
		subs:      make(map[int]chan Event),
	}
}

// AddRenderer registers a renderer with its initial state and queue.
func (d *Device) AddRenderer(s models.RendererState, entries ...models.QueueEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.renderers[s.ID]; !ok {
		d.order = append(d.order, s.ID)
	}
	d.renderers[s.ID] = &virtualRenderer{state: s.Clone(), queue: models.CloneEntries(entries), current: -1}
}

// Renderers returns the current state of every renderer in registration order.
func (d *Device) Renderers(ctx context.Context) ([]models.RendererState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.RendererState, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.renderers[id].state.Clone())
	}
	return out, nil
}

// SetDelay makes every call wait d before answering.
func (d *Device) SetDelay(delay time.Duration) {
	d.mu.Lock()
	d.delay = delay
	d.mu.Unlock()
}

// RefuseCommands makes SendCommand fail with err. A nil err clears it.
func (d *Device) RefuseCommands(err error) {
	d.mu.Lock()
	d.refuse = err
	d.mu.Unlock()
}

// FailQueue makes MutateQueue fail with err. A nil err clears it.
func (d *Device) FailQueue(err error) {
	d.mu.Lock()
	d.queueErr = err
	d.mu.Unlock()
}

// SetOffline takes a renderer off the network. Calls for it fail as unavailable and its
// reported state is flagged unreachable.
func (d *Device) SetOffline(id string, offline bool) {
	d.mu.Lock()
	r, ok := d.renderers[id]
	if ok {
		r.offline = offline
		r.state.Unreachable = offline
		d.bump(r)
	}
	d.mu.Unlock()
	if ok {
		d.pushState(id)
	}
}

// Commands returns every command the device accepted.
func (d *Device) Commands() []models.Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.sent)
}

// Mutations returns every queue mutation the device accepted.
func (d *Device) Mutations() []models.MutationCommand {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.mutations)
}

// Watch subscribes to pushed events. Slow watchers miss events.
func (d *Device) Watch(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, max(buffer, 1))
	d.subsMu.Lock()
	id := d.nextID
	d.nextID++
	d.subs[id] = ch
	d.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.subsMu.Lock()
			delete(d.subs, id)
			d.subsMu.Unlock()
			close(ch)
		})
	}
}

func (d *Device) FetchState(ctx context.Context, rendererID string) (models.RendererState, error) {
	r, err := d.enter(ctx, rendererID)
	if err != nil {
		return models.RendererState{}, err
	}
	defer d.mu.Unlock()
	return r.state.Clone(), nil
}

func (d *Device) FetchQueue(ctx context.Context, rendererID string) ([]models.QueueEntry, error) {
	r, err := d.enter(ctx, rendererID)
	if err != nil {
		return nil, err
	}
	defer d.mu.Unlock()
	return models.CloneEntries(r.queue), nil
}

func (d *Device) MutateQueue(ctx context.Context, rendererID string, cmd models.MutationCommand) error {
	r, err := d.enter(ctx, rendererID)
	if err != nil {
		return err
	}
	if d.queueErr != nil {
		err := d.queueErr
		d.mu.Unlock()
		return err
	}
	if err := cmd.Validate(); err != nil {
		d.mu.Unlock()
		return err
	}
	if cmd.Kind == models.MutationPlayEntry && models.IndexOf(r.queue, cmd.Entries[0].ID) < 0 {
		d.mu.Unlock()
		return fmt.Errorf("entry %s is not queued", cmd.Entries[0].ID)
	}
	d.mutations = append(d.mutations, cmd)

	switch cmd.Kind {
	case models.MutationEnqueue:
		r.queue, r.current = queue.ApplyEnqueue(r.queue, entryFor(*cmd.Item), cmd.Option, r.current)
		if cmd.Option == models.PlayNow || cmd.Option == models.ReplaceAndPlay {
			r.state.PlayState = models.StatePlay
		}
	case models.MutationRemove:
		playing := currentID(r)
		r.queue = queue.ApplyRemove(r.queue, cmd.Entries)
		r.current = models.IndexOf(r.queue, playing)
	case models.MutationClear:
		r.queue = nil
		r.current = -1
		r.state.PlayState = models.StateStop
	case models.MutationMove:
		playing := currentID(r)
		r.queue = queue.ApplyMove(r.queue, cmd.Entries, cmd.InsertAt)
		r.current = models.IndexOf(r.queue, playing)
	case models.MutationPlayEntry:
		r.current = models.IndexOf(r.queue, cmd.Entries[0].ID)
		r.state.PlayState = models.StatePlay
	}
	syncTrack(r)
	d.bump(r)
	d.mu.Unlock()

	d.pushQueue(rendererID)
	d.pushState(rendererID)
	return nil
}

func (d *Device) SendCommand(ctx context.Context, rendererID string, cmd models.Command) error {
	r, err := d.enter(ctx, rendererID)
	if err != nil {
		return err
	}
	if d.refuse != nil {
		err := d.refuse
		d.mu.Unlock()
		return err
	}

	touched, err := d.execute(r, cmd)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	d.sent = append(d.sent, cmd)
	for _, id := range touched {
		d.bump(d.renderers[id])
	}
	d.mu.Unlock()

	for _, id := range touched {
		d.pushState(id)
	}
	return nil
}

// execute applies cmd and returns the IDs of every renderer whose state changed. Called with
// d.mu held.
func (d *Device) execute(r *virtualRenderer, cmd models.Command) ([]string, error) {
	s := &r.state
	touched := []string{s.ID}

	switch cmd.Kind {
	case models.CmdSetVolume:
		if cmd.Volume < s.MinVolume || cmd.Volume > s.MaxVolume {
			return nil, fmt.Errorf("volume %d out of range", cmd.Volume)
		}
		s.Volume = cmd.Volume
	case models.CmdSetMute:
		s.Mute = cmd.Mute
	case models.CmdSetPlayState:
		if cmd.PlayState == models.StatePlay && len(r.queue) == 0 {
			return nil, fmt.Errorf("nothing to play")
		}
		if cmd.PlayState == models.StatePlay && r.current < 0 {
			r.current = 0
		}
		s.PlayState = cmd.PlayState
	case models.CmdSetRepeatMode:
		s.RepeatMode = cmd.RepeatMode
	case models.CmdSetShuffleMode:
		s.ShuffleMode = cmd.ShuffleMode
	case models.CmdSetSpeakerSetting:
		i := slices.IndexFunc(s.SpeakerSettings, func(x models.SpeakerSetting) bool { return x.ID == cmd.SettingID })
		if i < 0 || cmd.Value == nil {
			return nil, fmt.Errorf("unknown setting %q", cmd.SettingID)
		}
		if err := s.SpeakerSettings[i].Validate(*cmd.Value); err != nil {
			return nil, err
		}
		s.SpeakerSettings[i] = s.SpeakerSettings[i].With(*cmd.Value)
	case models.CmdPlayNext, models.CmdPlayPrevious:
		if len(r.queue) == 0 {
			return nil, fmt.Errorf("queue is empty")
		}
		step := 1
		if cmd.Kind == models.CmdPlayPrevious {
			step = -1
		}
		r.current = d.step(r, step)
	case models.CmdSetPowerState:
		if s.PowerState == "" {
			return nil, fmt.Errorf("no power control")
		}
		s.PowerState = cmd.PowerState
	case models.CmdCreateGroup:
		return d.createGroup(r, cmd.GroupName, cmd.Members)
	case models.CmdAddToGroup:
		return d.addToGroup(r, cmd.Members)
	case models.CmdLeaveGroup:
		return d.leaveGroup(r), nil
	case models.CmdSetZoneVolume, models.CmdSetZoneMute:
		if s.Group == nil {
			return nil, fmt.Errorf("renderer %s is not grouped", s.ID)
		}
		ids := s.Group.MemberIDs()
		for _, id := range ids {
			m := d.renderers[id]
			if m == nil {
				continue
			}
			if cmd.Kind == models.CmdSetZoneVolume {
				m.state.ZoneVolume = cmd.Volume
			} else {
				m.state.ZoneMute = cmd.Mute
			}
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("unsupported command %s", cmd.Kind)
	}
	syncTrack(r)
	return touched, nil
}

func (d *Device) step(r *virtualRenderer, step int) int {
	n := len(r.queue)
	next := r.current + step
	switch {
	case r.state.RepeatMode == models.RepeatOne:
		return max(r.current, 0)
	case next >= n && r.state.RepeatMode == models.RepeatAll:
		return 0
	case next < 0 && r.state.RepeatMode == models.RepeatAll:
		return n - 1
	default:
		return min(max(next, 0), n-1)
	}
}

func (d *Device) createGroup(leader *virtualRenderer, name string, members []string) ([]string, error) {
	ids := []string{leader.state.ID}
	for _, id := range members {
		if _, ok := d.renderers[id]; !ok {
			return nil, fmt.Errorf("unknown renderer %s", id)
		}
		ids = append(ids, id)
	}

	var touched []string
	for _, id := range ids {
		touched = append(touched, d.leaveGroup(d.renderers[id])...)
	}

	d.groupSeq++
	g := models.Group{ID: fmt.Sprintf("group-%d", d.groupSeq), Name: name}
	for i, id := range ids {
		role := models.RoleMember
		if i == 0 {
			role = models.RoleLeader
		}
		g.Members = append(g.Members, models.GroupMember{ID: id, Name: d.renderers[id].state.Name, Role: role})
	}
	d.setGroup(g)
	return union(touched, ids), nil
}

func (d *Device) addToGroup(leader *virtualRenderer, members []string) ([]string, error) {
	if leader.state.Group == nil {
		return nil, fmt.Errorf("renderer %s is not grouped", leader.state.ID)
	}
	var touched []string
	g := leader.state.Group.Clone()
	for _, id := range members {
		m, ok := d.renderers[id]
		if !ok {
			return nil, fmt.Errorf("unknown renderer %s", id)
		}
		if g.HasMember(id) {
			continue
		}
		touched = append(touched, d.leaveGroup(m)...)
		g.Members = append(g.Members, models.GroupMember{ID: id, Name: m.state.Name, Role: models.RoleMember})
	}
	d.setGroup(g)
	return union(touched, g.MemberIDs()), nil
}

// leaveGroup removes r from its group. A leaving leader hands the group to the next member;
// a group left with one renderer is dissolved.
func (d *Device) leaveGroup(r *virtualRenderer) []string {
	if r.state.Group == nil {
		return nil
	}
	old := r.state.Group.Clone()
	r.state.Group = nil
	touched := old.MemberIDs()

	rest := slices.DeleteFunc(old.Members, func(m models.GroupMember) bool { return m.ID == r.state.ID })
	if len(rest) < 2 {
		for _, m := range rest {
			if v := d.renderers[m.ID]; v != nil {
				v.state.Group = nil
			}
		}
		return touched
	}
	rest[0].Role = models.RoleLeader
	d.setGroup(models.Group{ID: old.ID, Name: old.Name, Members: rest})
	return touched
}

func (d *Device) setGroup(g models.Group) {
	for _, m := range g.Members {
		if v := d.renderers[m.ID]; v != nil {
			gc := g.Clone()
			v.state.Group = &gc
		}
	}
}

// enter waits out the configured delay and locks d. On success the caller must unlock d.mu.
func (d *Device) enter(ctx context.Context, rendererID string) (*virtualRenderer, error) {
	d.mu.Lock()
	delay := d.delay
	d.mu.Unlock()

	if err := wait(ctx, delay, nil); err != nil {
		return nil, err
	}

	d.mu.Lock()
	r, ok := d.renderers[rendererID]
	if !ok {
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", shared.ErrRendererNotFound, rendererID)
	}
	if r.offline {
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: renderer %s is offline", shared.ErrSourceUnavailable, rendererID)
	}
	return r, nil
}

func (d *Device) bump(r *virtualRenderer) {
	if r != nil {
		r.state.Revision++
	}
}

func (d *Device) pushState(id string) {
	d.mu.Lock()
	r, ok := d.renderers[id]
	var s models.RendererState
	if ok {
		s = r.state.Clone()
	}
	d.mu.Unlock()
	if ok {
		d.publish(Event{RendererID: id, State: &s})
	}
}

func (d *Device) pushQueue(id string) {
	d.mu.Lock()
	r, ok := d.renderers[id]
	var q []models.QueueEntry
	if ok {
		q = models.CloneEntries(r.queue)
	}
	d.mu.Unlock()
	if ok {
		d.publish(Event{RendererID: id, Queue: q})
	}
}

func (d *Device) publish(e Event) {
	d.subsMu.Lock()
	defer d.subsMu.Unlock()
	for _, ch := range d.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func entryFor(item models.Item) models.QueueEntry {
	e := models.QueueEntry{
		ID:      uuid.NewString(),
		Title:   item.Title,
		Artwork: item.Artwork,
		ItemID:  item.ID,
	}
	if item.Metadata != nil {
		e.Artist = item.Metadata.Artist
		e.Album = item.Metadata.Album
		if e.Title == "" {
			e.Title = item.Metadata.Title
		}
	}
	return e
}

func currentID(r *virtualRenderer) string {
	if r.current < 0 || r.current >= len(r.queue) {
		return ""
	}
	return r.queue[r.current].ID
}

// syncTrack points the reported current track and progress at the queue cursor.
func syncTrack(r *virtualRenderer) {
	if r.current < 0 || r.current >= len(r.queue) {
		r.current = -1
		r.state.CurrentTrack = nil
		r.state.Progress = nil
		return
	}
	e := r.queue[r.current]
	r.state.CurrentTrack = &models.Item{
		ID:        e.ItemID,
		Kind:      models.KindTrack,
		Title:     e.Title,
		Artwork:   e.Artwork,
		Metadata:  &models.ItemMetadata{Title: e.Title, Artist: e.Artist, Album: e.Album},
		Available: true,
		Queueable: true,
	}
	r.state.Progress = &models.PlaybackProgress{Total: 3 * time.Minute}
}

func union(a, b []string) []string {
	out := slices.Clone(a)
	for _, id := range b {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
