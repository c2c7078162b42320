package models

import (
	"fmt"
)

// CommandKind tags a [Command].
type CommandKind string

const (
	CmdSetVolume         CommandKind = "set_volume"
	CmdSetMute           CommandKind = "set_mute"
	CmdSetPlayState      CommandKind = "set_play_state"
	CmdSetRepeatMode     CommandKind = "set_repeat_mode"
	CmdSetShuffleMode    CommandKind = "set_shuffle_mode"
	CmdSetSpeakerSetting CommandKind = "set_speaker_setting"
	CmdPlayNext          CommandKind = "play_next"
	CmdPlayPrevious      CommandKind = "play_previous"
	CmdSetPowerState     CommandKind = "set_power_state"
	CmdCreateGroup       CommandKind = "create_group"
	CmdAddToGroup        CommandKind = "add_to_group"
	CmdLeaveGroup        CommandKind = "leave_group"
	CmdSetZoneVolume     CommandKind = "set_zone_volume"
	CmdSetZoneMute       CommandKind = "set_zone_mute"
)

// Command is a request sent to a renderer transport. Only the fields relevant to Kind are set.
type Command struct {
	Kind        CommandKind   `json:"kind"`
	Volume      int           `json:"volume,omitempty"`
	Mute        bool          `json:"mute,omitempty"`
	PlayState   PlayState     `json:"playState,omitempty"`
	RepeatMode  RepeatMode    `json:"repeatMode,omitempty"`
	ShuffleMode ShuffleMode   `json:"shuffleMode,omitempty"`
	SettingID   string        `json:"settingId,omitempty"`
	Value       *SettingValue `json:"value,omitempty"`
	PowerState  PowerState    `json:"powerState,omitempty"`
	Members     []string      `json:"members,omitempty"`
	GroupName   string        `json:"groupName,omitempty"`
}

func (c Command) String() string {
	switch c.Kind {
	case CmdSetVolume, CmdSetZoneVolume:
		return fmt.Sprintf("%s(%d)", c.Kind, c.Volume)
	case CmdSetMute, CmdSetZoneMute:
		return fmt.Sprintf("%s(%t)", c.Kind, c.Mute)
	case CmdSetPlayState:
		return fmt.Sprintf("%s(%s)", c.Kind, c.PlayState)
	case CmdSetRepeatMode:
		return fmt.Sprintf("%s(%s)", c.Kind, c.RepeatMode)
	case CmdSetShuffleMode:
		return fmt.Sprintf("%s(%s)", c.Kind, c.ShuffleMode)
	case CmdSetSpeakerSetting:
		return fmt.Sprintf("%s(%s)", c.Kind, c.SettingID)
	case CmdSetPowerState:
		return fmt.Sprintf("%s(%s)", c.Kind, c.PowerState)
	case CmdCreateGroup, CmdAddToGroup:
		return fmt.Sprintf("%s(%v)", c.Kind, c.Members)
	default:
		return string(c.Kind)
	}
}

func SetVolumeCommand(v int) Command          { return Command{Kind: CmdSetVolume, Volume: v} }
func SetMuteCommand(m bool) Command           { return Command{Kind: CmdSetMute, Mute: m} }
func SetPlayStateCommand(s PlayState) Command { return Command{Kind: CmdSetPlayState, PlayState: s} }
func SetRepeatCommand(m RepeatMode) Command   { return Command{Kind: CmdSetRepeatMode, RepeatMode: m} }
func SetShuffleCommand(m ShuffleMode) Command { return Command{Kind: CmdSetShuffleMode, ShuffleMode: m} }
func PlayNextCommand() Command                { return Command{Kind: CmdPlayNext} }
func PlayPreviousCommand() Command            { return Command{Kind: CmdPlayPrevious} }
func SetPowerCommand(p PowerState) Command    { return Command{Kind: CmdSetPowerState, PowerState: p} }
func LeaveGroupCommand() Command              { return Command{Kind: CmdLeaveGroup} }
func SetZoneVolumeCommand(v int) Command      { return Command{Kind: CmdSetZoneVolume, Volume: v} }
func SetZoneMuteCommand(m bool) Command       { return Command{Kind: CmdSetZoneMute, Mute: m} }
func AddToGroupCommand(member string) Command { return Command{Kind: CmdAddToGroup, Members: []string{member}} }

func SetSettingCommand(id string, v SettingValue) Command {
	return Command{Kind: CmdSetSpeakerSetting, SettingID: id, Value: &v}
}

// CreateGroupCommand groups the receiving renderer, as leader, with members.
func CreateGroupCommand(name string, members []string) Command {
	return Command{Kind: CmdCreateGroup, GroupName: name, Members: append([]string(nil), members...)}
}
