package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/shared"
)

// mockDevice applies mutations to an in-memory queue the way a renderer would.
type mockDevice struct {
	mu        sync.Mutex
	queue     []models.QueueEntry
	current   int
	nextID    int
	reject    error
	fetchErr  error
	mutations []models.MutationKind

	// hold, when set, blocks MutateQueue until closed.
	hold     chan struct{}
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newMockDevice(ids ...string) *mockDevice {
	d := &mockDevice{current: -1}
	for _, id := range ids {
		d.queue = append(d.queue, models.QueueEntry{ID: id, Title: strings.ToUpper(id)})
	}
	return d
}

func (d *mockDevice) FetchQueue(ctx context.Context, rendererID string) ([]models.QueueEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fetchErr != nil {
		return nil, d.fetchErr
	}
	return models.CloneEntries(d.queue), nil
}

func (d *mockDevice) MutateQueue(ctx context.Context, rendererID string, cmd models.MutationCommand) error {
	n := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	if n > d.maxSeen.Load() {
		d.maxSeen.Store(n)
	}

	d.mu.Lock()
	hold := d.hold
	d.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reject != nil {
		return d.reject
	}
	d.mutations = append(d.mutations, cmd.Kind)

	switch cmd.Kind {
	case models.MutationEnqueue:
		d.nextID++
		entry := models.QueueEntry{ID: fmt.Sprintf("q%d", d.nextID), Title: cmd.Item.Title, ItemID: cmd.Item.ID}
		d.queue, d.current = ApplyEnqueue(d.queue, entry, cmd.Option, d.current)
	case models.MutationRemove:
		d.queue = ApplyRemove(d.queue, cmd.Entries)
	case models.MutationClear:
		d.queue = nil
		d.current = -1
	case models.MutationMove:
		d.queue = ApplyMove(d.queue, cmd.Entries, cmd.InsertAt)
	case models.MutationPlayEntry:
		d.current = models.IndexOf(d.queue, cmd.Entries[0].ID)
	}
	return nil
}

func ids(entries []models.QueueEntry) string {
	return strings.Join(models.EntryIDs(entries), ",")
}

func entry(id string) models.QueueEntry {
	return models.QueueEntry{ID: id}
}

func track(id string) models.Item {
	return models.Item{ID: id, Title: "Track " + id, Kind: models.KindTrack, Available: true, Queueable: true}
}

func TestApplyMove(t *testing.T) {
	q := []models.QueueEntry{entry("e1"), entry("e2"), entry("e3"), entry("e4")}

	tt := []struct {
		name     string
		moving   []models.QueueEntry
		insertAt int
		want     string
	}{
		{name: "block to front", moving: []models.QueueEntry{entry("e2"), entry("e3")}, insertAt: 0, want: "e2,e3,e1,e4"},
		{name: "block to end", moving: []models.QueueEntry{entry("e1"), entry("e2")}, insertAt: 99, want: "e3,e4,e1,e2"},
		{name: "keeps queue order of moved entries", moving: []models.QueueEntry{entry("e4"), entry("e1")}, insertAt: 1, want: "e2,e1,e4,e3"},
		{name: "negative insert clamps", moving: []models.QueueEntry{entry("e3")}, insertAt: -4, want: "e3,e1,e2,e4"},
		{name: "unknown entries ignored", moving: []models.QueueEntry{entry("zz")}, insertAt: 0, want: "e1,e2,e3,e4"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got := ApplyMove(q, tc.moving, tc.insertAt)
			if ids(got) != tc.want {
				t.Errorf("ApplyMove() = %s, want %s", ids(got), tc.want)
			}
		})
	}

	if ids(q) != "e1,e2,e3,e4" {
		t.Error("ApplyMove modified its input")
	}
}

func TestApplyEnqueue(t *testing.T) {
	q := []models.QueueEntry{entry("a"), entry("b"), entry("c")}
	n := entry("n")

	t.Run("PlayNow", func(t *testing.T) {
		got, playing := ApplyEnqueue(q, n, models.PlayNow, 0)
		if ids(got) != "a,n,b,c" || playing != 1 {
			t.Errorf("got %s playing %d", ids(got), playing)
		}
	})

	t.Run("PlayNext", func(t *testing.T) {
		got, playing := ApplyEnqueue(q, n, models.PlayNext, 1)
		if ids(got) != "a,b,n,c" || playing != 1 {
			t.Errorf("got %s playing %d", ids(got), playing)
		}
	})

	t.Run("AddToEnd", func(t *testing.T) {
		got, _ := ApplyEnqueue(q, n, models.AddToEnd, 0)
		if ids(got) != "a,b,c,n" {
			t.Errorf("got %s", ids(got))
		}
	})

	t.Run("ReplaceAndPlay", func(t *testing.T) {
		got, playing := ApplyEnqueue(q, n, models.ReplaceAndPlay, 2)
		if ids(got) != "n" || playing != 0 {
			t.Errorf("got %s playing %d", ids(got), playing)
		}
	})

	t.Run("Nothing Playing", func(t *testing.T) {
		got, playing := ApplyEnqueue(q, n, models.PlayNow, -1)
		if ids(got) != "n,a,b,c" || playing != 0 {
			t.Errorf("got %s playing %d", ids(got), playing)
		}
	})
}

func TestCoordinator(t *testing.T) {
	ctx := context.Background()

	t.Run("Refresh Replaces Wholesale", func(t *testing.T) {
		dev := newMockDevice("e1", "e2")
		c := New("living-room", dev, Options{})

		if err := c.Refresh(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ids(c.Entries()) != "e1,e2" {
			t.Errorf("unexpected queue %s", ids(c.Entries()))
		}

		dev.queue = []models.QueueEntry{entry("x")}
		if err := c.Refresh(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ids(c.Entries()) != "x" {
			t.Errorf("expected x, got %s", ids(c.Entries()))
		}
	})

	t.Run("Refresh Failure Keeps Previous Queue", func(t *testing.T) {
		dev := newMockDevice("e1", "e2")
		c := New("living-room", dev, Options{})
		if err := c.Refresh(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		dev.fetchErr = fmt.Errorf("no route to host")
		err := c.Refresh(ctx)
		if !errors.Is(err, shared.ErrSourceUnavailable) {
			t.Errorf("expected ErrSourceUnavailable, got %v", err)
		}
		if ids(c.Entries()) != "e1,e2" {
			t.Errorf("expected stale queue to be kept, got %s", ids(c.Entries()))
		}
	})

	t.Run("Enqueue AddToEnd Then Refresh", func(t *testing.T) {
		dev := newMockDevice("e1", "e2")
		c := New("living-room", dev, Options{})

		if err := c.Enqueue(ctx, track("t9"), models.AddToEnd); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := c.Refresh(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		entries := c.Entries()
		last := entries[len(entries)-1]
		if last.ItemID != "t9" {
			t.Errorf("expected last entry to be t9, got %+v", last)
		}
	})

	t.Run("Move Block To Front", func(t *testing.T) {
		dev := newMockDevice("e1", "e2", "e3", "e4")
		c := New("living-room", dev, Options{})
		if err := c.Refresh(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := c.Move(ctx, []models.QueueEntry{entry("e2"), entry("e3")}, 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ids(c.Entries()) != "e2,e3,e1,e4" {
			t.Errorf("expected e2,e3,e1,e4, got %s", ids(c.Entries()))
		}
	})

	t.Run("Rejected Mutation Leaves State", func(t *testing.T) {
		dev := newMockDevice("e1", "e2")
		c := New("living-room", dev, Options{})
		if err := c.Refresh(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		dev.reject = fmt.Errorf("queue is locked")
		err := c.Clear(ctx)
		if !errors.Is(err, shared.ErrQueueMutationFailed) {
			t.Errorf("expected ErrQueueMutationFailed, got %v", err)
		}
		if ids(c.Entries()) != "e1,e2" {
			t.Errorf("expected queue unchanged, got %s", ids(c.Entries()))
		}
	})

	t.Run("Unknown Entries Rejected Before Device", func(t *testing.T) {
		dev := newMockDevice("e1", "e2")
		c := New("living-room", dev, Options{})
		if err := c.Refresh(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		err := c.Remove(ctx, []models.QueueEntry{entry("nope")})
		if !errors.Is(err, shared.ErrInvalidArgument) || !errors.Is(err, shared.ErrEntryNotFound) {
			t.Errorf("expected ErrEntryNotFound, got %v", err)
		}
		if len(dev.mutations) != 0 {
			t.Error("device should not have been contacted")
		}
	})

	t.Run("Entries Are Not Checked Before First Load", func(t *testing.T) {
		dev := newMockDevice("e1", "e2", "e3")
		c := New("living-room", dev, Options{})

		if err := c.Remove(ctx, []models.QueueEntry{entry("e2")}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !c.Loaded() {
			t.Error("expected queue to be loaded after the mutation")
		}
		if ids(c.Entries()) != "e1,e3" {
			t.Errorf("expected e1,e3, got %s", ids(c.Entries()))
		}

		c = New("living-room", newMockDevice("e1", "e2"), Options{})
		if err := c.Play(ctx, entry("e2")); err != nil {
			t.Errorf("Play() before load error = %v", err)
		}
	})

	t.Run("Unqueueable Item", func(t *testing.T) {
		c := New("living-room", newMockDevice(), Options{})
		item := track("t1")
		item.Available = false

		if err := c.Enqueue(ctx, item, models.AddToEnd); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if err := c.Enqueue(ctx, track("t1"), models.AddToQueueOption(0)); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for bad option, got %v", err)
		}
	})

	t.Run("Gate Blocks Unreachable Renderer", func(t *testing.T) {
		dev := newMockDevice("e1")
		gate := func() error { return fmt.Errorf("%w: renderer offline", shared.ErrSourceUnavailable) }
		c := New("living-room", dev, Options{Gate: gate})

		err := c.Enqueue(ctx, track("t1"), models.AddToEnd)
		if !errors.Is(err, shared.ErrSourceUnavailable) || !errors.Is(err, shared.ErrQueueMutationFailed) {
			t.Errorf("expected unavailable mutation failure, got %v", err)
		}
		if len(dev.mutations) != 0 {
			t.Error("device should not have been contacted")
		}
	})

	t.Run("Mutations Serialize", func(t *testing.T) {
		dev := newMockDevice()
		dev.hold = make(chan struct{})
		c := New("living-room", dev, Options{})

		var wg sync.WaitGroup
		errs := make(chan error, 5)
		for i := range 5 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- c.Enqueue(ctx, track(fmt.Sprintf("t%d", i)), models.AddToEnd)
			}(i)
		}

		time.Sleep(20 * time.Millisecond)
		close(dev.hold)
		wg.Wait()
		close(errs)

		for err := range errs {
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}
		if dev.maxSeen.Load() != 1 {
			t.Errorf("expected at most one mutation in flight, saw %d", dev.maxSeen.Load())
		}
		if len(c.Entries()) != 5 {
			t.Errorf("expected 5 entries, got %d", len(c.Entries()))
		}
	})

	t.Run("Waiting Caller Can Give Up", func(t *testing.T) {
		dev := newMockDevice()
		dev.hold = make(chan struct{})
		defer close(dev.hold)
		c := New("living-room", dev, Options{})

		go c.Clear(ctx)
		waitUntil(t, func() bool { return dev.inFlight.Load() == 1 })

		wctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		if err := c.Clear(wctx); !shared.IsCancelled(err) {
			t.Errorf("expected cancellation while waiting, got %v", err)
		}
	})

	t.Run("Subscribers See Snapshots", func(t *testing.T) {
		dev := newMockDevice("e1")
		c := New("living-room", dev, Options{})
		ch, cancel := c.Subscribe(4)
		defer cancel()

		if err := c.Refresh(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c.Replace([]models.QueueEntry{entry("pushed")})

		if got := <-ch; ids(got) != "e1" {
			t.Errorf("expected e1, got %s", ids(got))
		}
		if got := <-ch; ids(got) != "pushed" {
			t.Errorf("expected pushed, got %s", ids(got))
		}
	})

	t.Run("Stale Refresh Does Not Overwrite Push", func(t *testing.T) {
		dev := newMockDevice("old")
		c := New("living-room", dev, Options{})

		seq := c.nextSeq()
		c.Replace([]models.QueueEntry{entry("new")})
		if c.apply(seq, []models.QueueEntry{entry("old")}) {
			t.Error("older read should have been dropped")
		}
		if ids(c.Entries()) != "new" {
			t.Errorf("expected new, got %s", ids(c.Entries()))
		}
	})

	t.Run("Play Entry", func(t *testing.T) {
		dev := newMockDevice("e1", "e2")
		c := New("living-room", dev, Options{})
		if err := c.Refresh(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := c.Play(ctx, entry("e2")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dev.current != 1 {
			t.Errorf("expected device to play index 1, got %d", dev.current)
		}
	})
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}
