package loopback

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/desertthunder/renderkit/internal/catalog"
	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/queue"
	"github.com/desertthunder/renderkit/internal/renderer"
	"github.com/desertthunder/renderkit/internal/shared"
)

func titles(items []models.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Title
	}
	return out
}

func TestDemo(t *testing.T) {
	f := Demo()
	ctx := context.Background()

	t.Run("Renderers", func(t *testing.T) {
		states, err := f.Device.Renderers(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(states) != 3 {
			t.Fatalf("got %d renderers, want 3", len(states))
		}

		m := renderer.NewManager(nil)
		for _, s := range states {
			if err := m.Add(renderer.NewHub(s, f.Device, renderer.Options{})); err != nil {
				t.Fatal(err)
			}
		}
		if err := m.CheckGroups(); err != nil {
			t.Errorf("CheckGroups() = %v", err)
		}
		groups := m.Groups()
		if len(groups) != 1 || groups[0].Name != "Living Room + Office" || groups[0].LeaderID() != LivingRoomID {
			t.Errorf("Groups() = %+v", groups)
		}
	})

	t.Run("Catalog Nodes Are Valid", func(t *testing.T) {
		for _, n := range f.Catalog.Nodes() {
			if err := n.Validate(); err != nil {
				t.Errorf("node %s: %v", n.ID, err)
			}
		}
	})
}

func TestCatalogContainer(t *testing.T) {
	ctx := context.Background()

	t.Run("Pages Through Node", func(t *testing.T) {
		f := Demo()
		node, _ := f.Catalog.Node(ctx, AlbumsNode)
		c := catalog.New(node, f.Catalog, catalog.Options{Timeout: time.Second})

		page, err := c.GetItems(ctx, models.NewRange(1, 2))
		if err != nil {
			t.Fatal(err)
		}
		if got := titles(page.Items); !slices.Equal(got, []string{"A Love Supreme", "Rumours"}) {
			t.Errorf("items = %v", got)
		}
		if total, ok := c.KnownTotal(); !ok || total != 5 {
			t.Errorf("KnownTotal() = %d, %t", total, ok)
		}

		page, err = c.GetItems(ctx, models.NewRange(4, 100))
		if err != nil || len(page.Items) != 1 {
			t.Errorf("clamped page = %v, %v", titles(page.Items), err)
		}
	})

	t.Run("Search By Artist", func(t *testing.T) {
		f := Demo()
		node, _ := f.Catalog.Node(ctx, LibraryNode)
		c := catalog.New(node, f.Catalog, catalog.Options{Timeout: time.Second})

		page, err := c.Search(ctx, "coltrane", ByArtist, models.NewRange(0, 49), true)
		if err != nil {
			t.Fatal(err)
		}
		if len(page.Items) != 9 {
			t.Errorf("got %d results, want 9", len(page.Items))
		}

		page, err = c.Search(ctx, "coltrane", ByArtist, models.NewRange(5, 49), false)
		if err != nil || len(page.Items) != 4 {
			t.Errorf("continuation = %d items, %v", len(page.Items), err)
		}
	})

	t.Run("Newer Search Supersedes Older", func(t *testing.T) {
		f := Demo()
		node, _ := f.Catalog.Node(ctx, LibraryNode)
		c := catalog.New(node, f.Catalog, catalog.Options{Timeout: 5 * time.Second})

		f.Catalog.SetResults("jazz", models.Item{ID: "j", Title: "Jazz Result", Available: true})
		f.Catalog.SetResults("rock", models.Item{ID: "r", Title: "Rock Result", Available: true})
		release := f.Catalog.Gate("jazz")
		defer release()

		first := make(chan error, 1)
		go func() {
			_, err := c.Search(ctx, "jazz", ByTitle, models.NewRange(0, 9), true)
			first <- err
		}()

		deadline := time.Now().Add(time.Second)
		for len(f.Catalog.Searches()) == 0 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}

		page, err := c.Search(ctx, "rock", ByTitle, models.NewRange(0, 9), true)
		if err != nil {
			t.Fatal(err)
		}
		if got := titles(page.Items); !slices.Equal(got, []string{"Rock Result"}) {
			t.Errorf("rock results = %v", got)
		}

		if err := <-first; !shared.IsCancelled(err) {
			t.Errorf("jazz search error = %v, want cancelled", err)
		}
		if len(f.Catalog.Cancels()) == 0 {
			t.Error("source was not asked to cancel")
		}
	})

	t.Run("Slow Source Times Out", func(t *testing.T) {
		f := Demo()
		f.Catalog.SetDelay(time.Second)
		node, _ := f.Catalog.Node(ctx, AlbumsNode)
		c := catalog.New(node, f.Catalog, catalog.Options{Timeout: 20 * time.Millisecond})

		_, err := c.GetItems(ctx, models.NewRange(0, 4))
		if !errors.Is(err, shared.ErrSourceUnavailable) {
			t.Errorf("error = %v, want ErrSourceUnavailable", err)
		}
	})
}

func TestDeviceQueue(t *testing.T) {
	ctx := context.Background()

	newCoordinator := func(f Fixture, id string) (*queue.Coordinator, *renderer.Hub) {
		states, _ := f.Device.Renderers(ctx)
		i := slices.IndexFunc(states, func(s models.RendererState) bool { return s.ID == id })
		hub := renderer.NewHub(states[i], f.Device, renderer.Options{Timeout: time.Second})
		q := queue.New(id, f.Device, queue.Options{Timeout: time.Second, Gate: hub.Gate})
		return q, hub
	}

	t.Run("Enqueue Album Tracks", func(t *testing.T) {
		f := Demo()
		q, hub := newCoordinator(f, BedroomID)

		for _, item := range f.Catalog.Items("alb-rumours")[:3] {
			if err := q.Enqueue(ctx, item, models.AddToEnd); err != nil {
				t.Fatal(err)
			}
		}
		entries := q.Entries()
		if len(entries) != 3 || entries[0].Title != "Second Hand News" || entries[0].Artist != "Fleetwood Mac" {
			t.Fatalf("entries = %+v", entries)
		}

		if err := q.Play(ctx, entries[1]); err != nil {
			t.Fatal(err)
		}
		if err := hub.UpdateState(ctx); err != nil {
			t.Fatal(err)
		}
		s := hub.Snapshot()
		if s.PlayState != models.StatePlay || s.CurrentTrack == nil || s.CurrentTrack.Title != "Dreams" {
			t.Errorf("state = %s %+v", s.PlayState, s.CurrentTrack)
		}

		if err := hub.PlayNext(ctx); err != nil {
			t.Fatal(err)
		}
		if got := hub.Snapshot().CurrentTrack.Title; got != "Never Going Back Again" {
			t.Errorf("after next = %s", got)
		}
	})

	t.Run("Move Keeps Playing Entry", func(t *testing.T) {
		f := Demo()
		q, hub := newCoordinator(f, BedroomID)
		for _, item := range f.Catalog.Items("alb-kind-of-blue") {
			if err := q.Enqueue(ctx, item, models.AddToEnd); err != nil {
				t.Fatal(err)
			}
		}
		entries := q.Entries()
		if err := q.Play(ctx, entries[0]); err != nil {
			t.Fatal(err)
		}
		if err := q.Move(ctx, []models.QueueEntry{entries[0]}, 4); err != nil {
			t.Fatal(err)
		}
		if got := q.Entries()[4].ID; got != entries[0].ID {
			t.Errorf("moved entry at %s", got)
		}
		_ = hub.UpdateState(ctx)
		if got := hub.Snapshot().CurrentTrack.Title; got != "So What" {
			t.Errorf("current = %s, want So What", got)
		}
	})

	t.Run("Offline Renderer Blocks Mutations", func(t *testing.T) {
		f := Demo()
		q, hub := newCoordinator(f, OfficeID)
		f.Device.SetOffline(OfficeID, true)

		if err := hub.UpdateState(ctx); !errors.Is(err, shared.ErrSourceUnavailable) {
			t.Errorf("UpdateState() = %v", err)
		}
		err := q.Enqueue(ctx, f.Catalog.Items("alb-rumours")[0], models.PlayNow)
		if !errors.Is(err, shared.ErrQueueMutationFailed) || !errors.Is(err, shared.ErrSourceUnavailable) {
			t.Errorf("Enqueue() = %v", err)
		}
		if len(f.Device.Mutations()) != 0 {
			t.Error("mutation reached the device")
		}
	})

	t.Run("Pushed Events", func(t *testing.T) {
		f := Demo()
		q, hub := newCoordinator(f, BedroomID)
		events, stop := f.Device.Watch(16)
		defer stop()

		if err := q.Enqueue(ctx, f.Catalog.Items("alb-blue-train")[0], models.ReplaceAndPlay); err != nil {
			t.Fatal(err)
		}

		var gotQueue, gotState bool
		timeout := time.After(time.Second)
		for !gotQueue || !gotState {
			select {
			case e := <-events:
				switch {
				case e.Queue != nil:
					gotQueue = true
					q.Replace(e.Queue)
				case e.State != nil:
					gotState = true
					if err := hub.Apply(*e.State); err != nil {
						t.Fatal(err)
					}
				}
			case <-timeout:
				t.Fatal("missing pushed events")
			}
		}
		if hub.Snapshot().PlayState != models.StatePlay {
			t.Error("pushed state not applied")
		}
	})
}

func TestDeviceGroups(t *testing.T) {
	ctx := context.Background()
	f := Demo()

	states, _ := f.Device.Renderers(ctx)
	m := renderer.NewManager(nil)
	for _, s := range states {
		_ = m.Add(renderer.NewHub(s, f.Device, renderer.Options{Timeout: time.Second, Peers: m.SyncGroup}))
	}
	refresh := func() {
		for _, h := range m.Renderers() {
			if err := h.UpdateState(ctx); err != nil {
				t.Fatal(err)
			}
		}
	}

	bedroom, _ := m.ByID(BedroomID)
	living, _ := m.ByName("living room")

	if err := living.AddToGroup(ctx, BedroomID); err != nil {
		t.Fatal(err)
	}
	if got := bedroom.Snapshot().Group; got == nil || got.LeaderID() != LivingRoomID {
		t.Fatalf("bedroom group = %+v", got)
	}
	if err := m.CheckGroups(); err != nil {
		t.Errorf("CheckGroups() after join = %v", err)
	}

	if err := living.SetZoneVolume(ctx, 35); err != nil {
		t.Fatal(err)
	}
	refresh()
	if got := bedroom.Snapshot().ZoneVolume; got != 35 {
		t.Errorf("bedroom zone volume = %d", got)
	}

	if err := living.LeaveGroup(ctx); err != nil {
		t.Fatal(err)
	}
	office, _ := m.ByID(OfficeID)
	if g := office.Snapshot().Group; g == nil || g.LeaderID() != OfficeID || len(g.Members) != 2 {
		t.Errorf("office group = %+v", g)
	}
	if living.Snapshot().Group != nil {
		t.Error("living room still grouped")
	}
	if err := m.CheckGroups(); err != nil {
		t.Errorf("CheckGroups() after leave = %v", err)
	}
}
