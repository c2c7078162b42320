package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/renderkit/internal/loopback"
	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/services"
	"github.com/desertthunder/renderkit/internal/session"
	"github.com/desertthunder/renderkit/internal/shared"
	tu "github.com/desertthunder/renderkit/internal/testing"
)

// newTestRunner builds a runner over fx whose library lives in dbPath.
func newTestRunner(fx loopback.Fixture, dbPath string) (*Runner, *bytes.Buffer) {
	config := shared.DefaultConfig()
	config.Database.Path = dbPath
	config.Client.CallTimeout.Duration = time.Second
	output := &bytes.Buffer{}

	r := NewRunner(RunnerOpts{
		Config: config,
		Logger: shared.DiscardLogger(),
		Output: output,
		OpenBackend: func(ctx context.Context) (*services.Backend, error) {
			return services.NewLoopbackBackend(fx), nil
		},
	})
	return r, output
}

func run(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	return newApp(r).Run(context.Background(), append([]string{"renderkit", "--config", "missing.toml"}, args...))
}

func mustRun(t *testing.T, r *Runner, args ...string) {
	t.Helper()
	if err := run(t, r, args...); err != nil {
		t.Fatalf("%s: unexpected error: %v", strings.Join(args, " "), err)
	}
}

func chdirTemp(t *testing.T) string {
	t.Helper()
	wd := tu.MustGetwd(t)
	dir := t.TempDir()
	tu.MustChdir(t, dir)
	t.Cleanup(func() { tu.MustChdir(t, wd) })
	return dir
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "custom.toml",
				Backend:    services.BackendLibrary,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.configPath != "custom.toml" {
				t.Errorf("expected configPath custom.toml, got %s", runner.configPath)
			}
			if runner.backendName != services.BackendLibrary {
				t.Errorf("expected backend library, got %s", runner.backendName)
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected stdout to be the default output")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected default http client")
			}
			if runner.backendName != services.BackendLoopback {
				t.Errorf("expected loopback backend, got %s", runner.backendName)
			}
			if runner.openBackend == nil {
				t.Error("expected backend constructor to be set")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			r, output := newTestRunner(loopback.Demo(), ":memory:")
			if err := r.writeJSON(map[string]string{"name": "Living Room"}, true); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(output.String(), "\n  \"name\": \"Living Room\"") {
				t.Errorf("expected indented JSON, got %q", output.String())
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			r, output := newTestRunner(loopback.Demo(), ":memory:")
			if err := r.writeJSON(map[string]int{"volume": 10}, false); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if output.String() != "{\"volume\":10}\n" {
				t.Errorf("got %q", output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			r, _ := newTestRunner(loopback.Demo(), ":memory:")
			if err := r.writeJSON(make(chan int), false); err == nil {
				t.Error("expected error for channel value")
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			r, _ := newTestRunner(loopback.Demo(), ":memory:")
			r.output = &tu.FWriter{}
			if err := r.writeJSON("x", false); err == nil {
				t.Error("expected write error")
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			r, _ := newTestRunner(loopback.Demo(), ":memory:")
			w := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			r.output = &w
			err := r.writeJSON("x", false)
			if err == nil || !strings.Contains(err.Error(), "newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			r, output := newTestRunner(loopback.Demo(), ":memory:")
			if err := r.writePlain("%s at %d\n", "Office", 20); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if output.String() != "Office at 20\n" {
				t.Errorf("got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			r, _ := newTestRunner(loopback.Demo(), ":memory:")
			r.output = &tu.FWriter{}
			if err := r.writePlain("x"); err == nil {
				t.Error("expected write error")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		r, _ := newTestRunner(loopback.Demo(), ":memory:")
		want := []string{"setup", "library", "browse", "search", "queue", "renderer", "group", "dump", "serve", "tui", "api"}
		commands := r.register()
		if len(commands) != len(want) {
			t.Fatalf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, cmd := range commands {
			if cmd.Name != want[i] {
				t.Errorf("command %d: expected %s, got %s", i, want[i], cmd.Name)
			}
		}
	})

	t.Run("configure", func(t *testing.T) {
		t.Run("rejects unknown log level", func(t *testing.T) {
			r, _ := newTestRunner(loopback.Demo(), ":memory:")
			err := run(t, r, "--log-level", "loud", "renderer", "list")
			if !errors.Is(err, shared.ErrInvalidFlag) {
				t.Errorf("expected ErrInvalidFlag, got %v", err)
			}
		})

		t.Run("rejects unknown backend", func(t *testing.T) {
			r := NewRunner(RunnerOpts{Logger: shared.DiscardLogger(), Output: &bytes.Buffer{}})
			err := run(t, r, "--backend", "carrier-pigeon", "renderer", "list")
			if !errors.Is(err, shared.ErrInvalidFlag) {
				t.Errorf("expected ErrInvalidFlag, got %v", err)
			}
		})

		t.Run("loads config file", func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.toml")
			if err := os.WriteFile(path, []byte("[client]\npage_size = 7\n"), 0644); err != nil {
				t.Fatal(err)
			}
			r, _ := newTestRunner(loopback.Demo(), ":memory:")
			if err := newApp(r).Run(context.Background(), []string{"renderkit", "--config", path, "renderer", "list"}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.configPath != path {
				t.Errorf("expected configPath %s, got %s", path, r.configPath)
			}
			if r.pageSize() != 7 {
				t.Errorf("expected page size 7, got %d", r.pageSize())
			}
		})
	})
}

func TestCatalogCommands(t *testing.T) {
	t.Run("Browse root", func(t *testing.T) {
		r, output := newTestRunner(loopback.Demo(), ":memory:")
		mustRun(t, r, "browse")

		for _, want := range []string{"Albums", "All Tracks", "Playlists", "0-2 of 3"} {
			if !strings.Contains(output.String(), want) {
				t.Errorf("expected %q in output:\n%s", want, output.String())
			}
		}
	})

	t.Run("Browse range", func(t *testing.T) {
		r, output := newTestRunner(loopback.Demo(), ":memory:")
		mustRun(t, r, "browse", "--start", "10", "--end", "14", "library")

		if !strings.Contains(output.String(), "10-14 of 25") {
			t.Errorf("expected range footer, got:\n%s", output.String())
		}
	})

	t.Run("Browse rejects inverted range", func(t *testing.T) {
		r, _ := newTestRunner(loopback.Demo(), ":memory:")
		err := run(t, r, "browse", "--start", "10", "--end", "2", "library")
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("Browse unknown node", func(t *testing.T) {
		r, _ := newTestRunner(loopback.Demo(), ":memory:")
		err := run(t, r, "browse", "nowhere")
		if !errors.Is(err, shared.ErrNodeNotFound) {
			t.Errorf("expected ErrNodeNotFound, got %v", err)
		}
	})

	t.Run("Search by criterion", func(t *testing.T) {
		r, output := newTestRunner(loopback.Demo(), ":memory:")
		mustRun(t, r, "search", "--by", "artist", "coltrane")

		if !strings.Contains(output.String(), "Acknowledgement") || !strings.Contains(output.String(), "of 9") {
			t.Errorf("expected coltrane tracks, got:\n%s", output.String())
		}
	})

	t.Run("Search with continuations", func(t *testing.T) {
		fx := loopback.Demo()
		r, output := newTestRunner(fx, ":memory:")
		mustRun(t, r, "search", "--by", "artist", "--end", "3", "--more", "coltrane")

		searches := fx.Catalog.Searches()
		if len(searches) != 3 {
			t.Fatalf("expected 3 searches, got %d", len(searches))
		}
		if !searches[0].IsFirstSearch || searches[1].IsFirstSearch || searches[2].IsFirstSearch {
			t.Errorf("expected one first search followed by continuations, got %+v", searches)
		}
		if !strings.Contains(output.String(), "8-8 of 9") {
			t.Errorf("expected final page, got:\n%s", output.String())
		}
	})

	t.Run("Search unsearchable node", func(t *testing.T) {
		r, _ := newTestRunner(loopback.Demo(), ":memory:")
		err := run(t, r, "search", "--node", loopback.PlaylistsNode, "jazz")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Search requires keyword", func(t *testing.T) {
		r, _ := newTestRunner(loopback.Demo(), ":memory:")
		if err := run(t, r, "search"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestQueueCommands(t *testing.T) {
	ctx := context.Background()
	queueOf := func(t *testing.T, fx loopback.Fixture, id string) []models.QueueEntry {
		t.Helper()
		entries, err := fx.Device.FetchQueue(ctx, id)
		if err != nil {
			t.Fatalf("FetchQueue() error = %v", err)
		}
		return entries
	}

	t.Run("Add and list", func(t *testing.T) {
		fx := loopback.Demo()
		r, _ := newTestRunner(fx, ":memory:")
		mustRun(t, r, "queue", "add", "--node", "alb-rumours", "alb-rumours-02")

		entries := queueOf(t, fx, loopback.LivingRoomID)
		if len(entries) != 1 || entries[0].ItemID != "alb-rumours-02" {
			t.Fatalf("expected Dreams in the queue, got %+v", entries)
		}

		r, output := newTestRunner(fx, ":memory:")
		mustRun(t, r, "queue", "list")
		if !strings.Contains(output.String(), "Dreams") || !strings.Contains(output.String(), "1 entries") {
			t.Errorf("expected queue listing, got:\n%s", output.String())
		}
	})

	t.Run("Add unknown item", func(t *testing.T) {
		r, _ := newTestRunner(loopback.Demo(), ":memory:")
		err := run(t, r, "queue", "add", "--node", "alb-rumours", "alb-rumours-99")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Add rejects unknown option", func(t *testing.T) {
		r, _ := newTestRunner(loopback.Demo(), ":memory:")
		err := run(t, r, "queue", "add", "--option", "later", "alb-rumours-02")
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("Add all", func(t *testing.T) {
		fx := loopback.Demo()
		r, output := newTestRunner(fx, ":memory:")
		mustRun(t, r, "queue", "--renderer", "Office", "add-all", "alb-rumours")

		if got := len(queueOf(t, fx, loopback.OfficeID)); got != 6 {
			t.Errorf("expected 6 entries, got %d", got)
		}
		if !strings.Contains(output.String(), "Enqueued: 6/6") {
			t.Errorf("expected summary, got:\n%s", output.String())
		}
	})

	t.Run("Add all with limit", func(t *testing.T) {
		fx := loopback.Demo()
		r, _ := newTestRunner(fx, ":memory:")
		mustRun(t, r, "queue", "add-all", "--limit", "2", "alb-rumours")

		if got := len(queueOf(t, fx, loopback.LivingRoomID)); got != 2 {
			t.Errorf("expected 2 entries, got %d", got)
		}
	})

	t.Run("Remove move and clear", func(t *testing.T) {
		fx := loopback.Demo()
		r, _ := newTestRunner(fx, ":memory:")
		mustRun(t, r, "queue", "add-all", "alb-kind-of-blue")
		entries := queueOf(t, fx, loopback.LivingRoomID)
		if len(entries) != 5 {
			t.Fatalf("expected 5 entries, got %d", len(entries))
		}

		r, _ = newTestRunner(fx, ":memory:")
		mustRun(t, r, "queue", "remove", entries[0].ID, entries[1].ID)
		remaining := queueOf(t, fx, loopback.LivingRoomID)
		if len(remaining) != 3 || remaining[0].ID != entries[2].ID {
			t.Fatalf("expected the first two entries removed, got %+v", remaining)
		}

		r, _ = newTestRunner(fx, ":memory:")
		mustRun(t, r, "queue", "move", "--to", "0", remaining[2].ID)
		moved := queueOf(t, fx, loopback.LivingRoomID)
		if moved[0].ID != remaining[2].ID {
			t.Errorf("expected %s first, got %s", remaining[2].ID, moved[0].ID)
		}

		r, _ = newTestRunner(fx, ":memory:")
		mustRun(t, r, "queue", "clear")
		if got := len(queueOf(t, fx, loopback.LivingRoomID)); got != 0 {
			t.Errorf("expected empty queue, got %d", got)
		}
	})

	t.Run("Remove unknown entry", func(t *testing.T) {
		r, _ := newTestRunner(loopback.Demo(), ":memory:")
		err := run(t, r, "queue", "remove", "no-such-entry")
		if !errors.Is(err, shared.ErrEntryNotFound) {
			t.Errorf("expected ErrEntryNotFound, got %v", err)
		}
	})

	t.Run("Export", func(t *testing.T) {
		fx := loopback.Demo()
		r, _ := newTestRunner(fx, ":memory:")
		mustRun(t, r, "queue", "add-all", "alb-rumours")

		dir := filepath.Join(t.TempDir(), "exports")
		path := filepath.Join(dir, "queue.csv")
		r, _ = newTestRunner(fx, ":memory:")
		mustRun(t, r, "queue", "export", "--format", "csv", "--output", path)

		tu.AssertDirExists(t, dir)
		content := tu.MustReadFile(t, path)
		if !strings.Contains(content, "Go Your Own Way") {
			t.Errorf("expected exported tracks, got:\n%s", content)
		}
	})
}

func TestRendererCommands(t *testing.T) {
	ctx := context.Background()
	stateOf := func(t *testing.T, fx loopback.Fixture, id string) models.RendererState {
		t.Helper()
		st, err := fx.Device.FetchState(ctx, id)
		if err != nil {
			t.Fatalf("FetchState() error = %v", err)
		}
		return st
	}

	t.Run("List", func(t *testing.T) {
		r, output := newTestRunner(loopback.Demo(), ":memory:")
		mustRun(t, r, "renderer", "list")

		for _, want := range []string{"Living Room", "Office", "Bedroom"} {
			if !strings.Contains(output.String(), want) {
				t.Errorf("expected %q in output:\n%s", want, output.String())
			}
		}
	})

	t.Run("Status", func(t *testing.T) {
		r, output := newTestRunner(loopback.Demo(), ":memory:")
		mustRun(t, r, "renderer", "--renderer", "Bedroom", "status")

		if !strings.Contains(output.String(), loopback.BedroomID) {
			t.Errorf("expected Bedroom state, got:\n%s", output.String())
		}
	})

	t.Run("Unknown renderer", func(t *testing.T) {
		r, _ := newTestRunner(loopback.Demo(), ":memory:")
		err := run(t, r, "renderer", "--renderer", "Garage", "status")
		if !errors.Is(err, shared.ErrRendererNotFound) {
			t.Errorf("expected ErrRendererNotFound, got %v", err)
		}
	})

	t.Run("Volume", func(t *testing.T) {
		fx := loopback.Demo()
		r, output := newTestRunner(fx, ":memory:")
		mustRun(t, r, "renderer", "volume", "25")

		if got := stateOf(t, fx, loopback.LivingRoomID).Volume; got != 25 {
			t.Errorf("expected volume 25, got %d", got)
		}
		if !strings.Contains(output.String(), "✓ Living Room") {
			t.Errorf("expected confirmation, got:\n%s", output.String())
		}
	})

	t.Run("Mute toggles", func(t *testing.T) {
		fx := loopback.Demo()
		r, _ := newTestRunner(fx, ":memory:")
		mustRun(t, r, "renderer", "--renderer", "Office", "mute")

		if !stateOf(t, fx, loopback.OfficeID).Mute {
			t.Error("expected Office to be muted")
		}
	})

	t.Run("Repeat", func(t *testing.T) {
		fx := loopback.Demo()
		r, _ := newTestRunner(fx, ":memory:")
		mustRun(t, r, "renderer", "repeat", "one")

		if got := stateOf(t, fx, loopback.LivingRoomID).RepeatMode; got != models.RepeatOne {
			t.Errorf("expected repeat one, got %v", got)
		}
	})

	t.Run("Setting", func(t *testing.T) {
		fx := loopback.Demo()
		r, _ := newTestRunner(fx, ":memory:")
		mustRun(t, r, "renderer", "setting", "eq", "night")

		setting, ok := stateOf(t, fx, loopback.LivingRoomID).Setting("eq")
		if !ok || setting.Enum != "night" {
			t.Errorf("expected eq night, got %+v", setting)
		}
	})

	t.Run("Setting rejects bad value", func(t *testing.T) {
		r, _ := newTestRunner(loopback.Demo(), ":memory:")
		if err := run(t, r, "renderer", "setting", "eq", "stadium"); err == nil {
			t.Error("expected error for unknown enum case")
		}
	})

	t.Run("Group list", func(t *testing.T) {
		r, output := newTestRunner(loopback.Demo(), ":memory:")
		mustRun(t, r, "group", "list")

		if !strings.Contains(output.String(), "Living Room + Office") {
			t.Errorf("expected demo group, got:\n%s", output.String())
		}
	})

	t.Run("Group join and leave", func(t *testing.T) {
		fx := loopback.Demo()
		r, _ := newTestRunner(fx, ":memory:")
		mustRun(t, r, "group", "join", "Bedroom")

		if st := stateOf(t, fx, loopback.BedroomID); st.Group == nil {
			t.Fatal("expected Bedroom to join the group")
		}

		r, _ = newTestRunner(fx, ":memory:")
		mustRun(t, r, "group", "--renderer", "Bedroom", "leave")
		if st := stateOf(t, fx, loopback.BedroomID); st.Group != nil {
			t.Errorf("expected Bedroom to leave, got %+v", st.Group)
		}
	})
}

func TestDumpCommands(t *testing.T) {
	t.Run("Dump to stdout", func(t *testing.T) {
		r, output := newTestRunner(loopback.Demo(), ":memory:")
		mustRun(t, r, "dump")

		if !strings.Contains(output.String(), loopback.OfficeID) {
			t.Errorf("expected renderer state in dump, got:\n%s", output.String())
		}
	})

	t.Run("Save list and show", func(t *testing.T) {
		fx := loopback.Demo()
		dbPath := filepath.Join(t.TempDir(), "library.db")

		for range 3 {
			r, _ := newTestRunner(fx, dbPath)
			mustRun(t, r, "dump", "--save", "--keep", "2")
		}

		r, output := newTestRunner(fx, dbPath)
		mustRun(t, r, "dump", "list")
		if lines := strings.Count(output.String(), "renderers"); lines != 2 {
			t.Errorf("expected 2 stored snapshots, got %d:\n%s", lines, output.String())
		}

		r, output = newTestRunner(fx, dbPath)
		mustRun(t, r, "dump", "show")
		if !strings.Contains(output.String(), loopback.BedroomID) {
			t.Errorf("expected latest snapshot body, got:\n%s", output.String())
		}
	})

	t.Run("Show unknown snapshot", func(t *testing.T) {
		r, _ := newTestRunner(loopback.Demo(), ":memory:")
		err := run(t, r, "dump", "show", "missing")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Dump to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dump.json")
		r, output := newTestRunner(loopback.Demo(), ":memory:")
		mustRun(t, r, "dump", "--output", path)

		tu.AssertFileExists(t, path)
		if !strings.Contains(output.String(), "Dump saved to") {
			t.Errorf("expected confirmation, got:\n%s", output.String())
		}
	})
}

func TestLibraryCommands(t *testing.T) {
	t.Run("demoDump", func(t *testing.T) {
		d := demoDump(loopback.Demo().Catalog, loopback.RootNode)

		if len(d.Nodes) != 9 {
			t.Fatalf("expected 9 nodes, got %d", len(d.Nodes))
		}
		if d.Nodes[0].ID != loopback.RootNode || d.Nodes[0].Parent != "" {
			t.Errorf("expected root first without parent, got %s (%q)", d.Nodes[0].ID, d.Nodes[0].Parent)
		}
		for _, n := range d.Nodes {
			if strings.HasPrefix(n.ID, "alb-") && n.Parent != loopback.AlbumsNode {
				t.Errorf("expected %s under albums, got %q", n.ID, n.Parent)
			}
			if n.ID == loopback.LibraryNode && len(n.Items) != 25 {
				t.Errorf("expected 25 library items, got %d", len(n.Items))
			}
		}
	})

	t.Run("Setup export and import", func(t *testing.T) {
		dir := chdirTemp(t)

		r := NewRunner(RunnerOpts{Logger: shared.DiscardLogger(), Output: &bytes.Buffer{}})
		if err := newApp(r).Run(context.Background(), []string{"renderkit", "setup", "--demo"}); err != nil {
			t.Fatalf("setup: unexpected error: %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(dir, "config.toml"))
		tu.AssertFileExists(t, filepath.Join(dir, "renderkit.db"))

		export := filepath.Join(dir, "library.json")
		r = NewRunner(RunnerOpts{Logger: shared.DiscardLogger(), Output: &bytes.Buffer{}})
		if err := newApp(r).Run(context.Background(), []string{"renderkit", "library", "export", "-o", export}); err != nil {
			t.Fatalf("export: unexpected error: %v", err)
		}

		other := filepath.Join(dir, "other.db")
		r, output := newTestRunner(loopback.Demo(), other)
		mustRun(t, r, "library", "import", export)
		if !strings.Contains(output.String(), "Imported 9 nodes") {
			t.Errorf("expected import summary, got:\n%s", output.String())
		}

		config := shared.DefaultConfig()
		config.Database.Path = other
		output = &bytes.Buffer{}
		r = NewRunner(RunnerOpts{Config: config, Logger: shared.DiscardLogger(), Output: output})
		mustRun(t, r, "--backend", "library", "browse", "alb-rumours")
		if !strings.Contains(output.String(), "Songbird") {
			t.Errorf("expected library browse, got:\n%s", output.String())
		}
	})

	t.Run("Library backend on empty library", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Database.Path = ":memory:"
		r := NewRunner(RunnerOpts{Config: config, Logger: shared.DiscardLogger(), Output: &bytes.Buffer{}})
		err := run(t, r, "--backend", "library", "browse")
		if !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Import requires path", func(t *testing.T) {
		r, _ := newTestRunner(loopback.Demo(), ":memory:")
		if err := run(t, r, "library", "import"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestParseSwitch(t *testing.T) {
	tests := []struct {
		arg     string
		current bool
		want    bool
		wantErr bool
	}{
		{"on", false, true, false},
		{"OFF", true, false, false},
		{"", true, false, false},
		{"toggle", false, true, false},
		{"maybe", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parseSwitch(tt.arg, tt.current)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSwitch(%q) error = %v, wantErr %v", tt.arg, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseSwitch(%q) = %v, want %v", tt.arg, got, tt.want)
			}
		})
	}
}

func TestServeRouter(t *testing.T) {
	ctx := context.Background()
	s, err := session.Open(ctx, services.NewLoopbackBackend(loopback.Demo()), session.Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("session.Open() error = %v", err)
	}
	defer s.Close()

	t.Run("Health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newRouter(s, shared.DiscardLogger(), 0, false).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("Bridge routes only when exposed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newRouter(s, shared.DiscardLogger(), 0, false).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/renderers", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 without expose, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		newRouter(s, shared.DiscardLogger(), 0, true).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/renderers", nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Living Room") {
			t.Errorf("expected renderers, got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("State push reaches the session", func(t *testing.T) {
		h, err := s.Renderer("Office")
		if err != nil {
			t.Fatal(err)
		}
		st := h.Snapshot()
		st.Volume = 33
		st.Revision = 0

		body, err := shared.MarshalJSON(st, false)
		if err != nil {
			t.Fatal(err)
		}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/events/"+loopback.OfficeID, bytes.NewReader(body))
		newRouter(s, shared.DiscardLogger(), 0, false).ServeHTTP(rec, req)
		if rec.Code/100 != 2 {
			t.Fatalf("expected success, got %d %s", rec.Code, rec.Body.String())
		}
		if got := h.Snapshot().Volume; got != 33 {
			t.Errorf("expected volume 33, got %d", got)
		}
	})
}

func TestAPICommands(t *testing.T) {
	t.Run("Get prints JSON", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"path":"` + r.URL.Path + `"}`))
		}))
		defer ts.Close()

		r, output := newTestRunner(loopback.Demo(), ":memory:")
		r.config.Bridge.URL = ts.URL
		r.config.Bridge.RateLimit = 0
		mustRun(t, r, "api", "get", "/renderers")
		if !strings.Contains(output.String(), "/renderers") {
			t.Errorf("expected echoed path, got:\n%s", output.String())
		}
	})

	t.Run("Non-2xx is rejected", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusBadRequest)
		}))
		defer ts.Close()

		r, _ := newTestRunner(loopback.Demo(), ":memory:")
		r.config.Bridge.URL = ts.URL
		err := run(t, r, "api", "get", "/renderers")
		if !errors.Is(err, shared.ErrCommandRejected) {
			t.Errorf("expected ErrCommandRejected, got %v", err)
		}
	})

	t.Run("Post validates JSON", func(t *testing.T) {
		r, _ := newTestRunner(loopback.Demo(), ":memory:")
		err := run(t, r, "api", "post", "--data", "{not json", "/renderers")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
