package tasks

import (
	"fmt"

	"github.com/desertthunder/renderkit/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase, 0 when unknown
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPage Phase = iota
	EnqueueItems
	SkipItem
	FetchState
	FetchQueue
	CheckGroups
	SaveSnapshot
)

func (p Phase) String() string {
	switch p {
	case FetchPage:
		return "fetch_page"
	case EnqueueItems:
		return "enqueue_items"
	case SkipItem:
		return "skip_item"
	case FetchState:
		return "fetch_state"
	case FetchQueue:
		return "fetch_queue"
	case CheckGroups:
		return "check_groups"
	case SaveSnapshot:
		return "save_snapshot"
	default:
		return ""
	}
}

func fetchPageUpdate(r models.Range, page models.ItemPage) ProgressUpdate {
	total := page.TotalOr(0)
	msg := fmt.Sprintf("Fetched items %s (%d)", r.String(), len(page.Items))
	if page.Total != nil {
		msg = fmt.Sprintf("Fetched items %s of %d", r.String(), total)
	}
	return ProgressUpdate{
		Phase:   FetchPage,
		Step:    r.Lower + len(page.Items),
		Total:   total,
		Message: msg,
	}
}

func enqueuedUpdate(step, total int, item models.Item) ProgressUpdate {
	return ProgressUpdate{
		Phase:   EnqueueItems,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d] ✓ %s", step, item.Label()),
		Data:    item,
	}
}

func enqueueFailedUpdate(step, total int, item models.Item, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   EnqueueItems,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d] ✗ %s: %v", step, item.Label(), err),
		Data:    item,
	}
}

func skippedUpdate(step, total int, item models.Item) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SkipItem,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d] - %s is not queueable", step, item.Label()),
		Data:    item,
	}
}

func fetchStateUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchState,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching state of %s...", step, total, name),
	}
}

func fetchQueueUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchQueue,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching queue of %s...", step, total, name),
	}
}

func checkGroupsUpdate(groups int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CheckGroups,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Checking %d groups...", groups),
	}
}

func saveSnapshotUpdate(id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveSnapshot,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Snapshot saved: %s", id),
		Data:    id,
	}
}
