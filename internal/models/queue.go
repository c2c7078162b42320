package models

import (
	"fmt"
	"strings"
)

// QueueEntry is one element of a renderer's play queue.
//
// The ID is assigned by the device and is only meaningful to that renderer. Position is the
// entry's index in the queue slice and is never stored.
type QueueEntry struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Artist  string   `json:"artist,omitempty"`
	Album   string   `json:"album,omitempty"`
	Artwork *Artwork `json:"artwork,omitempty"`
	ItemID  string   `json:"itemId,omitempty"`
}

// EntryIDs lists the IDs of entries in order.
func EntryIDs(entries []QueueEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

// IndexOf returns the position of the entry with the given ID, or -1.
func IndexOf(entries []QueueEntry, id string) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// CloneEntries returns a copy that can be handed to callers without sharing the backing array.
func CloneEntries(entries []QueueEntry) []QueueEntry {
	if entries == nil {
		return []QueueEntry{}
	}
	out := make([]QueueEntry, len(entries))
	copy(out, entries)
	return out
}

// AddToQueueOption selects where an enqueued item lands.
type AddToQueueOption int

const (
	PlayNow        AddToQueueOption = 1
	PlayNext       AddToQueueOption = 2
	AddToEnd       AddToQueueOption = 3
	ReplaceAndPlay AddToQueueOption = 4
)

func (o AddToQueueOption) String() string {
	switch o {
	case PlayNow:
		return "play-now"
	case PlayNext:
		return "play-next"
	case AddToEnd:
		return "add-to-end"
	case ReplaceAndPlay:
		return "replace-and-play"
	default:
		return fmt.Sprintf("option(%d)", int(o))
	}
}

// Valid reports whether o is one of the four defined options.
func (o AddToQueueOption) Valid() bool {
	return o >= PlayNow && o <= ReplaceAndPlay
}

// ParseAddToQueueOption accepts the names returned by String, with or without dashes.
func ParseAddToQueueOption(s string) (AddToQueueOption, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-") {
	case "play-now", "playnow", "now":
		return PlayNow, nil
	case "play-next", "playnext", "next":
		return PlayNext, nil
	case "add-to-end", "addtoend", "end", "":
		return AddToEnd, nil
	case "replace-and-play", "replaceandplay", "replace":
		return ReplaceAndPlay, nil
	default:
		return 0, fmt.Errorf("unknown queue option %q", s)
	}
}

// MutationKind tags a [MutationCommand].
type MutationKind string

const (
	MutationEnqueue   MutationKind = "enqueue"
	MutationRemove    MutationKind = "remove"
	MutationClear     MutationKind = "clear"
	MutationMove      MutationKind = "move"
	MutationPlayEntry MutationKind = "play"
)

// MutationCommand is a single queue edit sent to a device.
//
// Only the fields relevant to Kind are set.
type MutationCommand struct {
	Kind     MutationKind     `json:"kind"`
	Item     *Item            `json:"item,omitempty"`
	Option   AddToQueueOption `json:"option,omitempty"`
	Entries  []QueueEntry     `json:"entries,omitempty"`
	InsertAt int              `json:"insertAt,omitempty"`
}

func EnqueueCommand(item Item, option AddToQueueOption) MutationCommand {
	return MutationCommand{Kind: MutationEnqueue, Item: &item, Option: option}
}

func RemoveCommand(entries []QueueEntry) MutationCommand {
	return MutationCommand{Kind: MutationRemove, Entries: CloneEntries(entries)}
}

func ClearCommand() MutationCommand {
	return MutationCommand{Kind: MutationClear}
}

func MoveCommand(entries []QueueEntry, insertAt int) MutationCommand {
	return MutationCommand{Kind: MutationMove, Entries: CloneEntries(entries), InsertAt: insertAt}
}

func PlayEntryCommand(entry QueueEntry) MutationCommand {
	return MutationCommand{Kind: MutationPlayEntry, Entries: []QueueEntry{entry}}
}

// Validate checks that the fields required by Kind are present.
func (c MutationCommand) Validate() error {
	switch c.Kind {
	case MutationEnqueue:
		if c.Item == nil {
			return fmt.Errorf("enqueue requires an item")
		}
		if !c.Option.Valid() {
			return fmt.Errorf("invalid queue option %d", int(c.Option))
		}
	case MutationRemove, MutationMove:
		if len(c.Entries) == 0 {
			return fmt.Errorf("%s requires at least one entry", c.Kind)
		}
	case MutationPlayEntry:
		if len(c.Entries) != 1 {
			return fmt.Errorf("play requires exactly one entry")
		}
	case MutationClear:
	default:
		return fmt.Errorf("unknown mutation kind %q", c.Kind)
	}
	return nil
}
