package queue

import (
	"slices"

	"github.com/desertthunder/renderkit/internal/models"
)

// ApplyMove removes the named entries from q, keeping their relative order as they appear in q,
// and re-inserts them as one block at insertAt in what remains. insertAt is clamped to
// [0, len(remaining)]. Entries are matched by ID; unknown IDs are ignored.
//
// q is not modified.
func ApplyMove(q []models.QueueEntry, entries []models.QueueEntry, insertAt int) []models.QueueEntry {
	moving := idSet(entries)

	block := make([]models.QueueEntry, 0, len(entries))
	rest := make([]models.QueueEntry, 0, len(q))
	for _, e := range q {
		if moving[e.ID] {
			block = append(block, e)
		} else {
			rest = append(rest, e)
		}
	}

	insertAt = min(max(insertAt, 0), len(rest))
	return slices.Concat(rest[:insertAt], block, rest[insertAt:])
}

// ApplyRemove returns q without the named entries.
func ApplyRemove(q []models.QueueEntry, entries []models.QueueEntry) []models.QueueEntry {
	removing := idSet(entries)
	out := make([]models.QueueEntry, 0, len(q))
	for _, e := range q {
		if !removing[e.ID] {
			out = append(out, e)
		}
	}
	return out
}

// ApplyEnqueue places entry in q according to option. current is the index of the entry being
// played, or -1 when nothing is playing.
//
// It returns the new queue and the index that should play afterwards.
func ApplyEnqueue(q []models.QueueEntry, entry models.QueueEntry, option models.AddToQueueOption, current int) ([]models.QueueEntry, int) {
	switch option {
	case models.PlayNow:
		at := min(current+1, len(q))
		return slices.Insert(slices.Clone(q), at, entry), at
	case models.PlayNext:
		at := min(current+1, len(q))
		return slices.Insert(slices.Clone(q), at, entry), current
	case models.ReplaceAndPlay:
		return []models.QueueEntry{entry}, 0
	default:
		return append(slices.Clone(q), entry), current
	}
}

// Missing returns the entries whose IDs are not present in q.
func Missing(q []models.QueueEntry, entries []models.QueueEntry) []models.QueueEntry {
	present := idSet(q)
	var out []models.QueueEntry
	for _, e := range entries {
		if !present[e.ID] {
			out = append(out, e)
		}
	}
	return out
}

func idSet(entries []models.QueueEntry) map[string]bool {
	set := make(map[string]bool, len(entries))
	for _, e := range entries {
		set[e.ID] = true
	}
	return set
}
