package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// PlayState is the transport state reported by a renderer.
type PlayState string

const (
	StatePlay          PlayState = "play"
	StatePause         PlayState = "pause"
	StateStop          PlayState = "stop"
	StateTransitioning PlayState = "transitioning"
)

// ParsePlayState accepts the raw values plus a few common spellings.
func ParsePlayState(s string) (PlayState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "play", "playing":
		return StatePlay, nil
	case "pause", "paused":
		return StatePause, nil
	case "stop", "stopped":
		return StateStop, nil
	case "transitioning":
		return StateTransitioning, nil
	default:
		return "", fmt.Errorf("unknown play state %q", s)
	}
}

// RepeatMode is the renderer's repeat setting.
type RepeatMode string

const (
	RepeatAll RepeatMode = "on_all"
	RepeatOne RepeatMode = "on_one"
	RepeatOff RepeatMode = "off"
)

func (m RepeatMode) DisplayString() string {
	switch m {
	case RepeatAll:
		return "ALL"
	case RepeatOne:
		return "ONE"
	default:
		return "OFF"
	}
}

// Next cycles all -> one -> off -> all.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatAll:
		return RepeatOne
	case RepeatOne:
		return RepeatOff
	default:
		return RepeatAll
	}
}

// ParseRepeatMode accepts raw values and display strings.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on_all", "all":
		return RepeatAll, nil
	case "on_one", "one":
		return RepeatOne, nil
	case "off":
		return RepeatOff, nil
	default:
		return "", fmt.Errorf("unknown repeat mode %q", s)
	}
}

// ShuffleMode is the renderer's shuffle setting.
type ShuffleMode string

const (
	ShuffleOn  ShuffleMode = "on"
	ShuffleOff ShuffleMode = "off"
)

func (m ShuffleMode) DisplayString() string {
	return strings.ToUpper(string(m))
}

func (m ShuffleMode) Next() ShuffleMode {
	if m == ShuffleOn {
		return ShuffleOff
	}
	return ShuffleOn
}

func ParseShuffleMode(s string) (ShuffleMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on":
		return ShuffleOn, nil
	case "off":
		return ShuffleOff, nil
	default:
		return "", fmt.Errorf("unknown shuffle mode %q", s)
	}
}

// PlaybackAction is a transport action a renderer currently allows.
type PlaybackAction string

const (
	ActionPlay     PlaybackAction = "play"
	ActionStop     PlaybackAction = "stop"
	ActionPause    PlaybackAction = "pause"
	ActionNext     PlaybackAction = "next"
	ActionPrevious PlaybackAction = "previous"
	ActionRestart  PlaybackAction = "restart"
)

// AllPlaybackActions lists every action in declaration order.
func AllPlaybackActions() []PlaybackAction {
	return []PlaybackAction{ActionPlay, ActionStop, ActionPause, ActionNext, ActionPrevious, ActionRestart}
}

// PowerState is reported by renderers that can be switched off remotely.
type PowerState string

const (
	PowerOn      PowerState = "on"
	PowerOff     PowerState = "off"
	PowerStandby PowerState = "standby"
)

func ParsePowerState(s string) (PowerState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on":
		return PowerOn, nil
	case "off":
		return PowerOff, nil
	case "standby":
		return PowerStandby, nil
	default:
		return "", fmt.Errorf("unknown power state %q", s)
	}
}

// PlaybackProgress is the position within the current track.
type PlaybackProgress struct {
	Current time.Duration `json:"current"`
	Total   time.Duration `json:"total"`
}

// Ratio returns the elapsed fraction in [0, 1], or 0 when the total is unknown.
func (p PlaybackProgress) Ratio() float64 {
	if p.Total <= 0 {
		return 0
	}
	r := float64(p.Current) / float64(p.Total)
	return min(max(r, 0), 1)
}

// Remaining returns the time left, never negative.
func (p PlaybackProgress) Remaining() time.Duration {
	return max(p.Total-p.Current, 0)
}

// GroupRole is a renderer's role inside a [Group].
type GroupRole string

const (
	RoleLeader GroupRole = "leader"
	RoleMember GroupRole = "member"
)

// GroupMember is one renderer inside a group.
type GroupMember struct {
	ID   string    `json:"id"`
	Name string    `json:"name,omitempty"`
	Role GroupRole `json:"role"`
}

// Group is a zone of renderers playing the same audio. Members lists the leader first.
type Group struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Members []GroupMember `json:"members"`
}

// LeaderID returns the ID of the leader, or "" when the group has none.
func (g Group) LeaderID() string {
	for _, m := range g.Members {
		if m.Role == RoleLeader {
			return m.ID
		}
	}
	return ""
}

// Role returns the role of the renderer with the given ID. Lookup is by exact ID equality.
func (g Group) Role(id string) (GroupRole, bool) {
	for _, m := range g.Members {
		if m.ID == id {
			return m.Role, true
		}
	}
	return "", false
}

// HasMember reports whether the renderer belongs to the group.
func (g Group) HasMember(id string) bool {
	_, ok := g.Role(id)
	return ok
}

// MemberIDs lists member IDs in group order.
func (g Group) MemberIDs() []string {
	ids := make([]string, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.ID
	}
	return ids
}

// Validate checks the structural rules of a group: a single leader listed first and no
// duplicate members.
func (g Group) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("group ID is required")
	}
	if len(g.Members) == 0 {
		return fmt.Errorf("group %s has no members", g.ID)
	}
	if g.Members[0].Role != RoleLeader {
		return fmt.Errorf("group %s does not list its leader first", g.ID)
	}
	seen := make(map[string]bool, len(g.Members))
	for i, m := range g.Members {
		if seen[m.ID] {
			return fmt.Errorf("group %s lists member %s twice", g.ID, m.ID)
		}
		seen[m.ID] = true
		if i > 0 && m.Role == RoleLeader {
			return fmt.Errorf("group %s has more than one leader", g.ID)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (g Group) Clone() Group {
	g.Members = slices.Clone(g.Members)
	return g
}

// RendererState is the client-side mirror of a renderer. Every device report replaces the
// whole value.
type RendererState struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Model            string            `json:"model"`
	Address          string            `json:"address"`
	PlayState        PlayState         `json:"playState"`
	Volume           int               `json:"volume"`
	MinVolume        int               `json:"minVolume"`
	MaxVolume        int               `json:"maxVolume"`
	Mute             bool              `json:"mute"`
	RepeatMode       RepeatMode        `json:"repeatMode"`
	ShuffleMode      ShuffleMode       `json:"shuffleMode"`
	CurrentTrack     *Item             `json:"currentTrack,omitempty"`
	Progress         *PlaybackProgress `json:"progress,omitempty"`
	AvailableActions []PlaybackAction  `json:"availableActions,omitempty"`
	SpeakerSettings  []SpeakerSetting  `json:"speakerSettings,omitempty"`
	ZoneVolume       int               `json:"zoneVolume"`
	ZoneMute         bool              `json:"zoneMute"`
	Group            *Group            `json:"group,omitempty"`
	PowerState       PowerState        `json:"powerState,omitempty"`
	Unreachable      bool              `json:"unreachable,omitempty"`
	Revision         uint64            `json:"revision,omitempty"`
}

// NewRendererState returns a stopped renderer with the usual defaults.
func NewRendererState(id, name, model string) RendererState {
	return RendererState{
		ID:          id,
		Name:        name,
		Model:       model,
		PlayState:   StateStop,
		Volume:      10,
		MinVolume:   0,
		MaxVolume:   60,
		RepeatMode:  RepeatOff,
		ShuffleMode: ShuffleOff,
		ZoneVolume:  10,
		PowerState:  PowerOn,
	}
}

// Allows reports whether an action is available. A renderer that reports no actions at all is
// treated as allowing everything.
func (s RendererState) Allows(a PlaybackAction) bool {
	if len(s.AvailableActions) == 0 {
		return true
	}
	return slices.Contains(s.AvailableActions, a)
}

// Setting returns the speaker setting with the given ID.
func (s RendererState) Setting(id string) (SpeakerSetting, bool) {
	for _, setting := range s.SpeakerSettings {
		if setting.ID == id {
			return setting, true
		}
	}
	return SpeakerSetting{}, false
}

// CheckGroup verifies that the renderer's group field agrees with the group's member list.
func (s RendererState) CheckGroup() error {
	if s.Group == nil {
		return nil
	}
	if err := s.Group.Validate(); err != nil {
		return err
	}
	if !s.Group.HasMember(s.ID) {
		return fmt.Errorf("renderer %s reports group %s but is not one of its members", s.ID, s.Group.ID)
	}
	return nil
}

// Clone returns a deep copy so a snapshot can be handed out without sharing slices.
func (s RendererState) Clone() RendererState {
	if s.CurrentTrack != nil {
		track := *s.CurrentTrack
		s.CurrentTrack = &track
	}
	if s.Progress != nil {
		p := *s.Progress
		s.Progress = &p
	}
	if s.Group != nil {
		g := s.Group.Clone()
		s.Group = &g
	}
	s.AvailableActions = slices.Clone(s.AvailableActions)
	s.SpeakerSettings = slices.Clone(s.SpeakerSettings)
	for i := range s.SpeakerSettings {
		s.SpeakerSettings[i].Cases = slices.Clone(s.SpeakerSettings[i].Cases)
	}
	return s
}
