package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/repositories"
	"github.com/desertthunder/mixtape/internal/services"
	"github.com/desertthunder/mixtape/internal/shared"
	tu "github.com/desertthunder/mixtape/internal/testing"
)

// testEnv is a runner wired to in-memory storage and fake providers.
type testEnv struct {
	runner  *Runner
	output  *bytes.Buffer
	spotify *tu.FakeService
	youtube *tu.FakeService
}

func newTestEnv(t *testing.T, input string) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(ctx, db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	logger := shared.NewLogger(io.Discard)
	store := repositories.NewSQLiteStore(db)

	spotify := tu.NewFakeService(models.Spotify, "Spotify").
		AddPlaylist(models.Playlist{ID: "pl1", Name: "Road Trip"},
			models.Track{ID: "a", Name: "Hey Jude", Artists: []string{"The Beatles"}},
			models.Track{ID: "b", Name: "Basement Demo 1962", Artists: []string{"Nobody Known"}},
			models.Track{ID: "c", Name: "Wonderwall", Artists: []string{"Oasis"}},
		)
	youtube := tu.NewFakeService(models.Google, "YouTube").
		AddCatalog(
			models.Track{ID: "ta", Name: "Hey Jude", Artists: []string{"The Beatles"}},
			models.Track{ID: "tc", Name: "Wonderwall", Artists: []string{"Oasis"}},
			models.Track{ID: "th", Name: "Help!", Artists: []string{"The Beatles"}},
			models.Track{ID: "tb", Name: "Basement Tapes", Artists: []string{"Bob Dylan"}},
		)

	config := shared.DefaultConfig()
	config.Transfer.SearchDelay = 0

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: filepath.Join(t.TempDir(), "config.toml"),
		Logger:     logger,
		Output:     output,
		Input:      strings.NewReader(input),
		DB:         db,
		Store:      store,
		Session:    services.NewSession(store, logger),
		Registry:   services.NewRegistry(spotify, youtube),
	})
	return &testEnv{runner: runner, output: output, spotify: spotify, youtube: youtube}
}

func (e *testEnv) run(t *testing.T, args ...string) error {
	t.Helper()
	e.output.Reset()
	return e.runner.app().Run(context.Background(), append([]string{"mixtape"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			registry := services.NewRegistry()

			runner := NewRunner(RunnerOpts{
				Config:   config,
				Logger:   logger,
				Output:   output,
				Registry: registry,
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
			if runner.registry != registry {
				t.Error("expected registry to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output and input uses stdio", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.input != os.Stdin {
				t.Error("expected input to default to os.Stdin")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
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

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: tu.BrokenWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			flaky := tu.FailAfter(1, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: flaky})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
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
			runner := NewRunner(RunnerOpts{Output: tu.BrokenWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}
		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
			}
		}
	})
}

func TestSelectCommands(t *testing.T) {
	env := newTestEnv(t, "")

	if err := env.run(t, "select", "source", "spotify"); err != nil {
		t.Fatalf("select source failed: %v", err)
	}
	if !strings.Contains(env.output.String(), "✓ Source: Spotify") {
		t.Errorf("unexpected output %q", env.output.String())
	}

	if err := env.run(t, "select", "target", "spotify"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected target equal to source to be rejected, got %v", err)
	}
	if err := env.run(t, "select", "target", "google"); err != nil {
		t.Fatalf("select target failed: %v", err)
	}
	if err := env.run(t, "select", "target", "tidal"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected unknown provider to be rejected, got %v", err)
	}

	if err := env.run(t, "select", "playlists", "pl1", "pl1", "pl2"); err != nil {
		t.Fatalf("select playlists failed: %v", err)
	}
	if !strings.Contains(env.output.String(), "2 playlist(s) selected") {
		t.Errorf("expected duplicates collapsed, got %q", env.output.String())
	}

	if err := env.run(t, "select", "show"); err != nil {
		t.Fatalf("select show failed: %v", err)
	}
	for _, want := range []string{"Source:    spotify", "Target:    google", "Playlists: 2", "  - pl1", "  - pl2"} {
		if !strings.Contains(env.output.String(), want) {
			t.Errorf("show missing %q, got %q", want, env.output.String())
		}
	}

	if err := env.run(t, "select", "clear"); err != nil {
		t.Fatalf("select clear failed: %v", err)
	}
	if err := env.run(t, "select", "show"); err != nil {
		t.Fatalf("select show failed: %v", err)
	}
	if !strings.Contains(env.output.String(), "Source:    (not set)") {
		t.Errorf("expected cleared selection, got %q", env.output.String())
	}
}

func TestTransferRun(t *testing.T) {
	ctx := context.Background()

	t.Run("Road Trip With Report", func(t *testing.T) {
		env := newTestEnv(t, "")
		report := filepath.Join(t.TempDir(), "road-trip.md")

		err := env.run(t, "transfer", "run", "--source", "spotify", "--target", "google", "-p", "pl1", "--on-error", "skip", "--report", report)
		if err != nil {
			t.Fatalf("transfer failed: %v", err)
		}

		output := env.output.String()
		for _, want := range []string{
			"Transferring 1 playlist(s) from Spotify to YouTube",
			"Transferring playlist 1/1",
			"▸ Add tracks",
			"✓ 2 of 3 tracks transferred",
			"not found: Nobody Known - Basement Demo 1962",
			"1 of 1 playlists transferred, 0 skipped",
			"Report written to",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("output missing %q, got:\n%s", want, output)
			}
		}

		tu.RequireFile(t, report)
		if content := tu.ReadFile(t, report); !strings.Contains(content, "## Road Trip") {
			t.Errorf("unexpected report content: %s", content)
		}

		records, err := env.runner.transfers.List(ctx, repositories.TransferCriteria{})
		if err != nil {
			t.Fatalf("failed to list history: %v", err)
		}
		if len(records) != 1 || records[0].Status != models.TransferDone || records[0].TracksAdded != 2 {
			t.Errorf("unexpected history %+v", records)
		}
	})

	t.Run("Selection Defaults", func(t *testing.T) {
		env := newTestEnv(t, "")
		r := env.runner
		if err := r.open(ctx); err != nil {
			t.Fatalf("open failed: %v", err)
		}
		_ = r.selection.SetSource(ctx, models.Spotify)
		_ = r.selection.SetTarget(ctx, models.Google)
		_ = r.selection.SetPlaylists(ctx, []string{"pl1"})

		if err := env.run(t, "transfer", "run", "--on-error", "abort"); err != nil {
			t.Fatalf("transfer failed: %v", err)
		}
		if !strings.Contains(env.output.String(), "1 of 1 playlists transferred") {
			t.Errorf("unexpected output:\n%s", env.output.String())
		}
	})

	t.Run("Prompt Skip", func(t *testing.T) {
		env := newTestEnv(t, "x\ns\n")
		env.youtube.Fail("CreatePlaylist", errors.New("boom"))

		err := env.run(t, "transfer", "run", "--source", "spotify", "--target", "google", "-p", "pl1")
		if err != nil {
			t.Fatalf("expected skip to finish the run, got %v", err)
		}

		output := env.output.String()
		errAt := strings.Index(output, "✗ Create target playlist failed: boom")
		promptAt := strings.Index(output, `Retry, skip or abort "Road Trip"?`)
		if errAt < 0 || promptAt < errAt {
			t.Errorf("expected prompt after the error, got:\n%s", output)
		}
		for _, want := range []string{"Please answer r, s or a.", "skipped after 1 attempt(s)", "0 of 1 playlists transferred, 1 skipped"} {
			if !strings.Contains(output, want) {
				t.Errorf("output missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("Prompt Retry", func(t *testing.T) {
		env := newTestEnv(t, "r\n")
		env.youtube.Fail("AddTracksToPlaylist", errors.New("rate limited"))

		if err := env.run(t, "transfer", "run", "--source", "spotify", "--target", "google", "-p", "pl1"); err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}
		if !strings.Contains(env.output.String(), "✓ 2 of 3 tracks transferred") {
			t.Errorf("unexpected output:\n%s", env.output.String())
		}
		if n := len(env.youtube.Playlists()); n != 1 {
			t.Errorf("expected the retry to reuse the created playlist, got %d playlists", n)
		}
	})

	t.Run("End Of Input Aborts", func(t *testing.T) {
		env := newTestEnv(t, "")
		env.youtube.Fail("CreatePlaylist", errors.New("boom"))

		err := env.run(t, "transfer", "run", "--source", "spotify", "--target", "google", "-p", "pl1")
		if !errors.Is(err, shared.ErrTransferAborted) {
			t.Errorf("expected ErrTransferAborted, got %v", err)
		}
	})

	t.Run("Invalid Requests", func(t *testing.T) {
		env := newTestEnv(t, "")

		tests := []struct {
			name string
			args []string
			want error
		}{
			{"bad on-error", []string{"--on-error", "maybe"}, shared.ErrInvalidFlag},
			{"missing source", []string{"--target", "google", "-p", "pl1"}, shared.ErrMissingArgument},
			{"same provider", []string{"--source", "google", "--target", "google", "-p", "pl1"}, shared.ErrInvalidArgument},
			{"no playlists", []string{"--source", "spotify", "--target", "google"}, shared.ErrMissingArgument},
			{"unconfigured provider", []string{"--source", "spotify", "--target", "apple", "-p", "pl1"}, shared.ErrUnknownProvider},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := env.run(t, append([]string{"transfer", "run"}, tt.args...)...)
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})

	t.Run("Signed Out Target", func(t *testing.T) {
		env := newTestEnv(t, "")
		env.youtube.Authenticated = false

		err := env.run(t, "transfer", "run", "--source", "spotify", "--target", "google", "-p", "pl1")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}

func TestBrowseCommands(t *testing.T) {
	env := newTestEnv(t, "")

	t.Run("Playlists List", func(t *testing.T) {
		if err := env.run(t, "playlists", "list", "spotify"); err != nil {
			t.Fatalf("playlists list failed: %v", err)
		}
		if !strings.Contains(env.output.String(), "1. Road Trip (3 tracks)") {
			t.Errorf("unexpected output %q", env.output.String())
		}
	})

	t.Run("Playlist Tracks JSON", func(t *testing.T) {
		if err := env.run(t, "playlists", "tracks", "--json", "spotify", "pl1"); err != nil {
			t.Fatalf("playlists tracks failed: %v", err)
		}
		if !strings.Contains(env.output.String(), `"name": "Wonderwall"`) {
			t.Errorf("unexpected output %q", env.output.String())
		}
	})

	t.Run("Search Scores Candidates", func(t *testing.T) {
		if err := env.run(t, "search", "--artist", "The Beatles", "google", "Hey", "Jude"); err != nil {
			t.Fatalf("search failed: %v", err)
		}
		output := env.output.String()
		if !strings.Contains(output, `results for "Hey Jude The Beatles"`) || !strings.Contains(output, "✓ 1. The Beatles - Hey Jude") {
			t.Errorf("unexpected output %q", output)
		}
		if !strings.Contains(output, "  2. The Beatles - Help!") {
			t.Errorf("expected the same-artist near miss listed without a match mark, got %q", output)
		}
	})

	t.Run("Search Needs Query", func(t *testing.T) {
		if err := env.run(t, "search", "google"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Auth Status", func(t *testing.T) {
		env.youtube.Authenticated = false
		defer func() { env.youtube.Authenticated = true }()

		if err := env.run(t, "auth", "status"); err != nil {
			t.Fatalf("auth status failed: %v", err)
		}
		output := env.output.String()
		if !strings.Contains(output, "✗ YouTube: not signed in") || !strings.Contains(output, "✓ Spotify: signed in as Spotify User") {
			t.Errorf("unexpected output %q", output)
		}
	})

	t.Run("Auth Login And Logout", func(t *testing.T) {
		env.youtube.Authenticated = false
		if err := env.run(t, "auth", "login", "google"); err != nil {
			t.Fatalf("auth login failed: %v", err)
		}
		if !strings.Contains(env.output.String(), "✓ Signed in to YouTube as YouTube User") {
			t.Errorf("unexpected output %q", env.output.String())
		}

		if err := env.run(t, "auth", "logout", "google"); err != nil {
			t.Fatalf("auth logout failed: %v", err)
		}
		if env.youtube.Authenticated {
			t.Error("expected signed out")
		}
		env.youtube.Authenticated = true
	})
}

func TestHistoryCommand(t *testing.T) {
	env := newTestEnv(t, "")

	if err := env.run(t, "history"); err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if env.output.String() != "No transfers recorded\n" {
		t.Errorf("unexpected empty history %q", env.output.String())
	}

	if err := env.run(t, "transfer", "run", "--source", "spotify", "--target", "google", "-p", "pl1", "--on-error", "skip"); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	if err := env.run(t, "history", "--json"); err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(env.output.String(), `"sourcePlaylistName": "Road Trip"`) {
		t.Errorf("unexpected history %q", env.output.String())
	}

	if err := env.run(t, "history", "--status", "failed"); err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if env.output.String() != "No transfers recorded\n" {
		t.Errorf("expected no failed transfers, got %q", env.output.String())
	}

	if err := env.run(t, "history", "--status", "bogus"); !errors.Is(err, shared.ErrInvalidFlag) {
		t.Errorf("expected ErrInvalidFlag, got %v", err)
	}
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	dbPath := filepath.Join(dir, "mixtape.db")

	// Seed the config so the database lands in the temp dir.
	config := strings.Replace(string(mustDefaultConfig(t)), `path = "./mixtape.db"`, `path = "`+dbPath+`"`, 1)
	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard), Output: output})
	if err := runner.app().Run(context.Background(), []string{"mixtape", "--config", configPath, "setup"}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	tu.RequireFile(t, dbPath)
	if !strings.Contains(output.String(), "✓ Database ready at "+dbPath) {
		t.Errorf("unexpected output %q", output.String())
	}
}

func mustDefaultConfig(t *testing.T) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := shared.CreateConfigFile(path); err != nil {
		t.Fatalf("failed to create config: %v", err)
	}
	return []byte(tu.ReadFile(t, path))
}
