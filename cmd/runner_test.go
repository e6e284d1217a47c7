package main

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/desertthunder/crux/internal/hooks"
	"github.com/desertthunder/crux/internal/models"
	"github.com/desertthunder/crux/internal/shared"
	tu "github.com/desertthunder/crux/internal/testing"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
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
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})

		t.Run("with nil dependencies uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.registry == nil {
				t.Error("expected a metrics registry")
			}
			if runner.app != nil {
				t.Error("expected the application to open lazily")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			// channels cannot be marshaled to JSON
			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "tracks", "browse"} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})
}

// harness runs CLI invocations against one Runner backed by in-memory storage.
type harness struct {
	t          *testing.T
	runner     *Runner
	output     *bytes.Buffer
	logs       *bytes.Buffer
	configPath string
}

func newHarness(t *testing.T, configure ...func(*shared.Config)) *harness {
	t.Helper()

	config := shared.DefaultConfig()
	config.Database.Driver = shared.DriverMemory
	config.Events.CacheMaxCost = 100
	config.Events.Metrics = true
	for _, fn := range configure {
		fn(config)
	}

	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := shared.SaveConfig(configPath, config); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	h := &harness{t: t, output: &bytes.Buffer{}, logs: &bytes.Buffer{}, configPath: configPath}
	h.runner = NewRunner(RunnerOpts{Output: h.output, Logger: shared.NewLogger(h.logs)})
	t.Cleanup(h.runner.Close)
	return h
}

func (h *harness) exec(args ...string) (string, error) {
	h.output.Reset()
	argv := append([]string{"crux", "-c", h.configPath}, args...)
	err := newCLI(h.runner).Run(context.Background(), argv)
	return h.output.String(), err
}

func (h *harness) mustExec(args ...string) string {
	h.t.Helper()
	out, err := h.exec(args...)
	if err != nil {
		h.t.Fatalf("crux %s failed: %v", strings.Join(args, " "), err)
	}
	return out
}

func (h *harness) create(title, artist string, duration string) models.TrackView {
	h.t.Helper()
	out := h.mustExec("tracks", "create", "--title", title, "--artist", artist, "--duration", duration, "--json")

	var view models.TrackView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		h.t.Fatalf("create did not print JSON: %v\n%s", err, out)
	}
	return view
}

func TestTrackCommands(t *testing.T) {
	t.Run("create, get and update", func(t *testing.T) {
		h := newHarness(t)

		created := h.create("Karma Police", "Radiohead", "264")
		if created.ID == "" {
			t.Fatal("expected an ID to be assigned")
		}
		if created.Service != "local" {
			t.Errorf("expected default service local, got %s", created.Service)
		}

		out := h.mustExec("tracks", "get", created.ID)
		if !strings.Contains(out, "Radiohead - Karma Police") || !strings.Contains(out, "Length:   4:24") {
			t.Errorf("unexpected get output: %s", out)
		}

		out = h.mustExec("tracks", "update", "--album", "OK Computer", "--json", created.ID)
		var updated models.TrackView
		if err := json.Unmarshal([]byte(out), &updated); err != nil {
			t.Fatalf("update did not print JSON: %v", err)
		}
		if updated.Album != "OK Computer" || updated.Title != "Karma Police" || updated.Duration != 264 {
			t.Errorf("update should only change the album, got %+v", updated)
		}
	})

	t.Run("get several", func(t *testing.T) {
		h := newHarness(t)
		a := h.create("Paranoid Android", "Radiohead", "387")
		b := h.create("Hyperballad", "Bjork", "321")

		out := h.mustExec("tracks", "get", b.ID, "missing", a.ID, b.ID)
		if strings.Index(out, "Hyperballad") > strings.Index(out, "Paranoid Android") {
			t.Errorf("tracks should follow the order of the IDs, got %s", out)
		}
		if !strings.Contains(out, "1 of 3 tracks not found") {
			t.Errorf("expected a missing count, got %s", out)
		}
	})

	t.Run("missing track", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.exec("tracks", "get", "missing-id")
		var nf *models.NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
		if nf.ID != "missing-id" || nf.EntityType != "Track" {
			t.Errorf("unexpected error details: %+v", nf)
		}

		if _, err := h.exec("tracks", "delete", "missing-id"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound from delete, got %v", err)
		}
		if _, err := h.exec("tracks", "get"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.exec("tracks", "create", "--title", "Untitled", "--artist", "Nobody", "--service", "tidal")
		if !errors.Is(err, models.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
		if out := h.mustExec("tracks", "count"); out != "0\n" {
			t.Errorf("invalid track should not be stored, count = %q", out)
		}
	})

	t.Run("list, count and exists", func(t *testing.T) {
		h := newHarness(t)
		h.create("Paranoid Android", "Radiohead", "387")
		karma := h.create("Karma Police", "Radiohead", "264")
		h.create("Hyperballad", "Bjork", "321")

		out := h.mustExec("tracks", "list", "--search", "radiohead", "--sort", "duration", "--format", "csv")
		lines := strings.Split(strings.TrimSpace(out), "\n")
		if len(lines) != 3 || !strings.Contains(lines[1], "Karma Police") {
			t.Errorf("expected two sorted rows after the header, got %q", lines)
		}

		out = h.mustExec("tracks", "list", "--size", "2", "--page", "1")
		if !strings.Contains(out, "Tracks: 1 of 3 (page 2/2)") {
			t.Errorf("unexpected page summary: %s", out)
		}

		if out := h.mustExec("tracks", "count", "--query", "duration < 300"); out != "1\n" {
			t.Errorf("expected 1 short track, got %q", out)
		}
		if out := h.mustExec("tracks", "count", "--search", "bjork"); out != "1\n" {
			t.Errorf("expected 1 match, got %q", out)
		}

		if out := h.mustExec("tracks", "exists", karma.ID); out != "true\n" {
			t.Errorf("expected true, got %q", out)
		}
		if out := h.mustExec("tracks", "delete", karma.ID); !strings.Contains(out, "Deleted "+karma.ID) {
			t.Errorf("unexpected delete output: %q", out)
		}
		if out := h.mustExec("tracks", "exists", karma.ID); out != "false\n" {
			t.Errorf("expected false after delete, got %q", out)
		}
	})

	t.Run("read only", func(t *testing.T) {
		h := newHarness(t, func(c *shared.Config) { c.Limits.ReadOnly = true })

		if _, err := h.exec("tracks", "create", "--title", "Unravel", "--artist", "Bjork"); !errors.Is(err, hooks.ErrDenied) {
			t.Errorf("expected ErrDenied from create, got %v", err)
		}
		if out := h.mustExec("tracks", "count"); out != "0\n" {
			t.Errorf("expected reads to work, got %q", out)
		}

		flagged := newHarness(t)
		if _, err := flagged.exec("--read-only", "tracks", "delete", "any-id"); !errors.Is(err, hooks.ErrDenied) {
			t.Errorf("expected ErrDenied from delete with --read-only, got %v", err)
		}
	})

	t.Run("bad list flags", func(t *testing.T) {
		h := newHarness(t)

		if _, err := h.exec("tracks", "list", "--format", "yaml"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag for format, got %v", err)
		}
		if _, err := h.exec("tracks", "list", "--sort", "colour"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag for sort, got %v", err)
		}
		page := strconv.Itoa(math.MaxInt/3 + 1)
		if _, err := h.exec("tracks", "list", "--page", page, "--size", "3"); !errors.Is(err, models.ErrInvalidPagination) {
			t.Errorf("expected ErrInvalidPagination for an out of range page, got %v", err)
		}
		if _, err := h.exec("tracks", "count", "--query", "colour = 'red'"); err == nil {
			t.Error("expected an error for an unknown filter field")
		}
	})

	t.Run("export", func(t *testing.T) {
		h := newHarness(t)
		h.create("Windowlicker", "Aphex Twin", "366")

		path := filepath.Join(t.TempDir(), "library.md")
		out := h.mustExec("tracks", "list", "--format", "md", "--output", path)
		if !strings.Contains(out, "Exported 1 tracks") {
			t.Errorf("unexpected export output: %s", out)
		}
		if content := tu.MustReadFile(t, path); !strings.Contains(content, "Aphex Twin - Windowlicker [6:06]") {
			t.Errorf("unexpected export content: %s", content)
		}
	})

	t.Run("import", func(t *testing.T) {
		h := newHarness(t)

		inputs := tu.SampleInputs()
		data, err := json.Marshal(inputs)
		if err != nil {
			t.Fatalf("failed to encode inputs: %v", err)
		}
		path := filepath.Join(t.TempDir(), "tracks.json")
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatalf("failed to write import file: %v", err)
		}

		out := h.mustExec("tracks", "import", path)
		if !strings.Contains(out, "Imported 4 of 4 tracks") {
			t.Errorf("unexpected import output: %s", out)
		}
		if out := h.mustExec("tracks", "count", "--query", `service = "spotify"`); out != "2\n" {
			t.Errorf("expected 2 spotify tracks, got %q", out)
		}
	})

	t.Run("import with invalid entries", func(t *testing.T) {
		h := newHarness(t)

		inputs := tu.SampleInputs()
		inputs[2].Title = ""
		data, _ := json.Marshal(inputs)
		path := filepath.Join(t.TempDir(), "tracks.json")
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatalf("failed to write import file: %v", err)
		}

		out, err := h.exec("tracks", "import", path)
		if err == nil {
			t.Fatal("expected an error for the invalid entry")
		}
		if !strings.Contains(out, "Imported 3 of 4 tracks") {
			t.Errorf("valid entries should still be imported, got %s", out)
		}
		if !strings.Contains(h.logs.String(), "failed to import track") {
			t.Errorf("expected the failure to be logged, got %s", h.logs.String())
		}
	})

	t.Run("cache follows writes", func(t *testing.T) {
		h := newHarness(t)
		created := h.create("Hyperballad", "Bjork", "321")

		app, err := h.runner.open(context.Background())
		if err != nil {
			t.Fatalf("failed to open app: %v", err)
		}
		app.Cache.Wait()
		if cached, ok := app.Cache.Get(created.ID); !ok || cached.Title != "Hyperballad" {
			t.Errorf("expected created track to be cached, got %+v", cached)
		}

		h.mustExec("tracks", "delete", created.ID)
		app.Cache.Wait()
		if _, ok := app.Cache.Get(created.ID); ok {
			t.Error("expected deleted track to be evicted")
		}
	})
}

func TestRunnerLoad(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		h := newHarness(t, func(c *shared.Config) { c.Database.Driver = "oracle" })

		if _, err := h.exec("tracks", "count"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("missing file uses defaults and environment", func(t *testing.T) {
		t.Setenv("CRUX_DATABASE_DRIVER", shared.DriverMemory)
		h := newHarness(t)
		h.configPath = filepath.Join(t.TempDir(), "missing.toml")

		if out := h.mustExec("tracks", "count"); out != "0\n" {
			t.Errorf("expected empty library, got %q", out)
		}
		if h.runner.config.Database.Driver != shared.DriverMemory {
			t.Errorf("expected env override, got %s", h.runner.config.Database.Driver)
		}
	})

	t.Run("log level", func(t *testing.T) {
		h := newHarness(t, func(c *shared.Config) { c.Log.Level = "debug" })
		h.mustExec("tracks", "count")

		if !strings.Contains(h.logs.String(), "step=pre-hook") {
			t.Errorf("expected pipeline steps at debug level, got %s", h.logs.String())
		}
	})

	t.Run("stats", func(t *testing.T) {
		h := newHarness(t)
		h.create("Karma Police", "Radiohead", "264")
		h.mustExec("--stats", "tracks", "count")

		logs := h.logs.String()
		for _, want := range []string{"crux_operations_started_total", "crux_events_total", "operation=CREATE"} {
			if !strings.Contains(logs, want) {
				t.Errorf("expected %s in stats, got %s", want, logs)
			}
		}
	})

	t.Run("show config", func(t *testing.T) {
		h := newHarness(t)

		out := h.mustExec("setup", "config")
		if !strings.Contains(out, `driver = "memory"`) {
			t.Errorf("expected effective config, got %s", out)
		}
	})

	t.Run("rollback needs sqlite", func(t *testing.T) {
		h := newHarness(t)

		if _, err := h.exec("setup", "rollback"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestSetupDatabase(t *testing.T) {
	dir := t.TempDir()
	originalDir := tu.MustGetwd(t)
	tu.MustChdir(t, dir)
	defer tu.MustChdir(t, originalDir)

	h := newHarness(t)
	h.configPath = filepath.Join(dir, "config.toml")

	out := h.mustExec("setup", "database")
	tu.AssertFileExists(t, h.configPath)
	tu.AssertFileExists(t, filepath.Join(dir, "crux.db"))
	if !strings.Contains(out, "Database ready (sqlite at ./crux.db)") {
		t.Errorf("unexpected setup output: %s", out)
	}

	h.runner.Close()
	out = h.mustExec("setup", "rollback")
	if !strings.Contains(out, "Rolled back migration") {
		t.Errorf("unexpected rollback output: %s", out)
	}
}
