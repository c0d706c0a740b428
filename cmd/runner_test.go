package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/crossfade/internal/matching"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/services"
	"github.com/desertthunder/crossfade/internal/shared"
	tu "github.com/desertthunder/crossfade/internal/testing"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

var roadTrip = &models.PlaylistExport{
	Playlist: models.Playlist{ID: "PL1", Name: "Road Trip", TrackCount: 2},
	Tracks: []models.Track{
		{ID: "JGwWNGJdvx8", Title: "Ed Sheeran - Shape of You (Official Music Video)", Artist: "Ed Sheeran", DurationMS: 263000},
		{ID: "zzz", Title: "Completely Unknown Tune", Artist: "Nobody Special"},
	},
}

var shapeOfYou = matching.Candidate{
	ID:         "7qiZfU4dY1lWllzX7mPBI3",
	Title:      "Shape of You",
	Artists:    []string{"Ed Sheeran"},
	DurationMS: 233712,
	Popularity: 90,
	URI:        "spotify:track:7qiZfU4dY1lWllzX7mPBI3",
}

// newTestRunner wires a runner to mock services and a history database in a temp dir.
func newTestRunner(t *testing.T) (*Runner, *bytes.Buffer, *tu.MockService) {
	t.Helper()

	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(t.TempDir(), "history.db")
	config.Matching.Spotify.QueryDelayMS = 1
	config.Matching.YouTube.QueryDelayMS = 1

	youtube := &tu.MockService{
		NameValue:     "YouTube Music",
		PlatformValue: services.PlatformYouTube,
		Exports:       map[string]*models.PlaylistExport{"PL1": roadTrip},
	}
	spotify := &tu.MockService{
		NameValue:     "Spotify",
		PlatformValue: services.PlatformSpotify,
		Exports: map[string]*models.PlaylistExport{
			"sp1": {
				Playlist: models.Playlist{ID: "sp1", Name: "Mine", TrackCount: 1},
				Tracks:   []models.Track{{ID: shapeOfYou.ID, Title: "Shape of You", Artist: "Ed Sheeran", DurationMS: 233712}},
			},
		},
		SearchFunc: func(_ context.Context, query string) ([]matching.Candidate, error) {
			if strings.Contains(strings.ToLower(query), "shape of you") {
				return []matching.Candidate{shapeOfYou}, nil
			}
			return nil, nil
		},
	}

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:  config,
		Spotify: spotify,
		YouTube: youtube,
		Logger:  shared.DiscardLogger(),
		Output:  output,
	})
	return runner, output, spotify
}

func runCLI(r *Runner, args ...string) error {
	app := &cli.Command{
		Name:     "crossfade",
		Commands: r.register(),
		Writer:   io.Discard,
	}
	return app.Run(context.Background(), append([]string{"crossfade"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			spotify := &tu.MockService{PlatformValue: services.PlatformSpotify}
			youtube := &tu.MockService{PlatformValue: services.PlatformYouTube}

			runner := NewRunner(RunnerOpts{
				Config:  config,
				Logger:  logger,
				Output:  output,
				Spotify: spotify,
				YouTube: youtube,
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
			if runner.spotify != spotify || runner.youtube != youtube {
				t.Error("expected services to be set")
			}
			if runner.engine == nil {
				t.Fatal("expected engine to be built")
			}
			if svc, err := runner.engine.Service(services.PlatformYouTube); err != nil || svc != youtube {
				t.Errorf("expected engine to know youtube, got %v, %v", svc, err)
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
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("SetLogger keeps the match cache", func(t *testing.T) {
		runner, _, _ := newTestRunner(t)
		cache := runner.engine.Cache()

		runner.SetLogger(shared.DiscardLogger())
		if runner.engine.Cache() != cache {
			t.Error("expected rebuilt engine to share the cache")
		}
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
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
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
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

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
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		names := map[string]bool{}
		for i, cmd := range runner.register() {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}

		for _, want := range []string{"setup", "auth", "playlists", "convert", "match", "queries", "history", "tui"} {
			if !names[want] {
				t.Errorf("expected %q to be registered", want)
			}
		}
	})

	t.Run("service", func(t *testing.T) {
		runner, _, spotify := newTestRunner(t)

		tc := []struct {
			platform string
			want     string
			err      error
		}{
			{platform: "spotify", want: services.PlatformSpotify},
			{platform: "youtube", want: services.PlatformYouTube},
			{platform: "ytmusic", want: services.PlatformYouTube},
			{platform: "tidal", err: shared.ErrInvalidArgument},
		}

		for _, tt := range tc {
			svc, err := runner.service(tt.platform)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Errorf("service(%q) error = %v; want %v", tt.platform, err, tt.err)
				}
				continue
			}
			if err != nil || svc.Platform() != tt.want {
				t.Errorf("service(%q) = %v, %v; want %s", tt.platform, svc, err, tt.want)
			}
		}

		if svc, _ := runner.service("spotify"); svc != spotify {
			t.Error("expected configured spotify service")
		}

		bare := NewRunner(RunnerOpts{})
		if _, err := bare.service("spotify"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("saveTokens", func(t *testing.T) {
		t.Run("saves tokens successfully", func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.toml")

			config := shared.DefaultConfig()
			config.Credentials.Spotify.ClientID = "test_id"
			config.Credentials.Spotify.ClientSecret = "test_secret"
			if err := shared.SaveConfig(configPath, config); err != nil {
				t.Fatalf("failed to create test config: %v", err)
			}

			runner := NewRunner(RunnerOpts{Config: config, ConfigPath: configPath})
			token := &oauth2.Token{AccessToken: "new_access_token", RefreshToken: "new_refresh_token"}
			if err := runner.saveTokens(token); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			loaded, err := shared.LoadConfig(configPath)
			if err != nil {
				t.Fatalf("failed to reload config: %v", err)
			}
			if loaded.Credentials.Spotify.AccessToken != "new_access_token" {
				t.Errorf("expected access token to be updated, got %s", loaded.Credentials.Spotify.AccessToken)
			}
			if loaded.Credentials.Spotify.RefreshToken != "new_refresh_token" {
				t.Errorf("expected refresh token to be updated, got %s", loaded.Credentials.Spotify.RefreshToken)
			}
		})

		t.Run("handles nil config error", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/tmp/test.toml"})
			runner.config = nil

			err := runner.saveTokens(&oauth2.Token{AccessToken: "test"})
			if !errors.Is(err, shared.ErrInvalidConfig) || !strings.Contains(err.Error(), "config is nil") {
				t.Errorf("expected nil config error, got %v", err)
			}
		})

		t.Run("keeps tokens in memory without configPath", func(t *testing.T) {
			config := shared.DefaultConfig()
			runner := NewRunner(RunnerOpts{Config: config})

			if err := runner.saveTokens(&oauth2.Token{AccessToken: "new_token", RefreshToken: "new_refresh"}); err != nil {
				t.Fatalf("expected no error with empty path, got %v", err)
			}
			if config.Credentials.Spotify.AccessToken != "new_token" {
				t.Error("expected config to be updated in memory")
			}
		})

		t.Run("handles SaveConfig failure", func(t *testing.T) {
			blocker := filepath.Join(t.TempDir(), "file")
			if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
				t.Fatalf("failed to create blocker: %v", err)
			}

			runner := NewRunner(RunnerOpts{
				Config:     shared.DefaultConfig(),
				ConfigPath: filepath.Join(blocker, "config.toml"),
			})

			err := runner.saveTokens(&oauth2.Token{AccessToken: "test"})
			if err == nil || !strings.Contains(err.Error(), "failed to save config") {
				t.Errorf("expected save config error, got %v", err)
			}
		})

		t.Run("handles Update error", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Config:     shared.DefaultConfig(),
				ConfigPath: filepath.Join(t.TempDir(), "config.toml"),
			})

			err := runner.saveTokens(nil)
			if err == nil {
				t.Fatal("expected error when Update fails with nil token")
			}
			if !strings.Contains(err.Error(), "failed to update spotify configuration") {
				t.Errorf("expected update error, got %v", err)
			}
			if !strings.Contains(err.Error(), "empty token") {
				t.Errorf("expected empty token error in chain, got %v", err)
			}
		})
	})
}

func TestResolvePlaylist(t *testing.T) {
	tc := []struct {
		name     string
		arg      string
		platform string
		want     services.PlaylistRef
		err      error
	}{
		{
			name:     "youtube url ignores platform",
			arg:      "https://music.youtube.com/playlist?list=PLxyz",
			platform: "spotify",
			want:     services.PlaylistRef{Platform: services.PlatformYouTube, ID: "PLxyz"},
		},
		{
			name:     "spotify url",
			arg:      "https://open.spotify.com/playlist/37i9dQZF1DX",
			platform: "youtube",
			want:     services.PlaylistRef{Platform: services.PlatformSpotify, ID: "37i9dQZF1DX"},
		},
		{
			name:     "bare id on platform",
			arg:      "PL1",
			platform: "youtube",
			want:     services.PlaylistRef{Platform: services.PlatformYouTube, ID: "PL1"},
		},
		{
			name:     "ytmusic alias",
			arg:      "PL1",
			platform: "ytmusic",
			want:     services.PlaylistRef{Platform: services.PlatformYouTube, ID: "PL1"},
		},
		{name: "unknown platform", arg: "PL1", platform: "tidal", err: shared.ErrInvalidArgument},
		{name: "url without playlist", arg: "https://open.spotify.com/track/abc", platform: "spotify", err: shared.ErrInvalidURL},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolvePlaylist(tt.arg, tt.platform)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Errorf("expected %v, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v; want %+v", got, tt.want)
			}
		})
	}
}

func TestCommands(t *testing.T) {
	t.Run("queries", func(t *testing.T) {
		runner, output, _ := newTestRunner(t)

		if err := runCLI(runner, "queries", "--artist", "Ed Sheeran", "Shape of You"); err != nil {
			t.Fatalf("queries failed: %v", err)
		}

		out := output.String()
		if !strings.Contains(out, "Queries (youtube-to-spotify)") {
			t.Errorf("expected direction header, got:\n%s", out)
		}
		if !strings.Contains(out, "1. ") {
			t.Errorf("expected numbered queries, got:\n%s", out)
		}
	})

	t.Run("queries requires a title", func(t *testing.T) {
		runner, _, _ := newTestRunner(t)
		if err := runCLI(runner, "queries"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("queries rejects unknown destination", func(t *testing.T) {
		runner, _, _ := newTestRunner(t)
		if err := runCLI(runner, "queries", "--to", "tidal", "Song"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("match finds a track", func(t *testing.T) {
		runner, output, spotify := newTestRunner(t)

		if err := runCLI(runner, "match", "--artist", "Ed Sheeran", "--duration", "3:54", "Shape of You"); err != nil {
			t.Fatalf("match failed: %v", err)
		}

		out := output.String()
		if !strings.Contains(out, "✓ Ed Sheeran - Shape of You") {
			t.Errorf("expected match line, got:\n%s", out)
		}
		if len(spotify.Queries()) == 0 {
			t.Error("expected spotify to be searched")
		}
	})

	t.Run("match reports a miss", func(t *testing.T) {
		runner, output, _ := newTestRunner(t)

		if err := runCLI(runner, "match", "Completely Unknown Tune"); err != nil {
			t.Fatalf("match failed: %v", err)
		}
		if !strings.Contains(output.String(), `No match for "Completely Unknown Tune"`) {
			t.Errorf("expected miss, got:\n%s", output.String())
		}
	})

	t.Run("match outputs JSON with candidates", func(t *testing.T) {
		runner, output, _ := newTestRunner(t)

		if err := runCLI(runner, "match", "--json", "--artist", "Ed Sheeran", "Shape of You"); err != nil {
			t.Fatalf("match failed: %v", err)
		}

		var decoded matchOutput
		if err := json.Unmarshal(output.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, output.String())
		}
		if !decoded.Found || decoded.Match == nil || decoded.Match.ID != shapeOfYou.ID {
			t.Errorf("unexpected match %+v", decoded)
		}
		if len(decoded.Candidates) == 0 {
			t.Error("expected evaluated candidates")
		}
	})

	t.Run("match rejects a bad duration", func(t *testing.T) {
		runner, _, _ := newTestRunner(t)
		if err := runCLI(runner, "match", "--duration", "abc", "Song"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("playlists", func(t *testing.T) {
		runner, output, _ := newTestRunner(t)

		if err := runCLI(runner, "playlists", "--service", "youtube"); err != nil {
			t.Fatalf("playlists failed: %v", err)
		}
		out := output.String()
		if !strings.Contains(out, "YouTube Music Playlists (1)") || !strings.Contains(out, "1. Road Trip (2 tracks)") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("convert dry run records history", func(t *testing.T) {
		runner, output, spotify := newTestRunner(t)

		if err := runCLI(runner, "convert", "run", "--dry-run", "PL1"); err != nil {
			t.Fatalf("convert failed: %v", err)
		}

		out := output.String()
		for _, want := range []string{"Dry Run Complete", "Matched: 1/2", "Completely Unknown Tune", "History: #1"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
		if len(spotify.Imported()) != 0 {
			t.Error("dry run should not create a playlist")
		}

		output.Reset()
		if err := runCLI(runner, "history", "list"); err != nil {
			t.Fatalf("history list failed: %v", err)
		}
		if !strings.Contains(output.String(), "#1") || !strings.Contains(output.String(), "Road Trip") {
			t.Errorf("unexpected history:\n%s", output.String())
		}

		report := filepath.Join(t.TempDir(), "report.csv")
		output.Reset()
		if err := runCLI(runner, "history", "show", "--report", report, "1"); err != nil {
			t.Fatalf("history show failed: %v", err)
		}
		if !strings.Contains(output.String(), "Playlist: Road Trip") || !strings.Contains(output.String(), "2. [ ] Nobody Special - Completely Unknown Tune") {
			t.Errorf("unexpected report:\n%s", output.String())
		}
		tu.AssertFileExists(t, report)
	})

	t.Run("convert creates playlist", func(t *testing.T) {
		runner, output, spotify := newTestRunner(t)

		if err := runCLI(runner, "convert", "run", "--no-history", "--name", "Copied", "https://music.youtube.com/playlist?list=PL1"); err != nil {
			t.Fatalf("convert failed: %v", err)
		}

		imported := spotify.Imported()
		if len(imported) != 1 {
			t.Fatalf("expected one import, got %d", len(imported))
		}
		if imported[0].Playlist.Name != "Copied" || len(imported[0].Tracks) != 1 {
			t.Errorf("unexpected import %+v", imported[0])
		}
		if !strings.Contains(output.String(), "Conversion Complete!") {
			t.Errorf("unexpected output:\n%s", output.String())
		}
	})

	t.Run("convert outputs JSON", func(t *testing.T) {
		runner, output, _ := newTestRunner(t)

		if err := runCLI(runner, "convert", "run", "--no-history", "--dry-run", "--json", "PL1"); err != nil {
			t.Fatalf("convert failed: %v", err)
		}

		var decoded struct {
			Direction string                   `json:"direction"`
			Matched   int                      `json:"matched"`
			Matches   []models.ConversionMatch `json:"matches"`
		}
		if err := json.Unmarshal(output.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, output.String())
		}
		if decoded.Direction != "youtube-to-spotify" || decoded.Matched != 1 || len(decoded.Matches) != 2 {
			t.Errorf("unexpected report %+v", decoded)
		}
	})

	t.Run("convert requires a playlist", func(t *testing.T) {
		runner, _, _ := newTestRunner(t)
		if err := runCLI(runner, "convert", "run"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("convert diff", func(t *testing.T) {
		runner, output, _ := newTestRunner(t)

		if err := runCLI(runner, "convert", "diff", "--source", "PL1", "--dest", "sp1"); err != nil {
			t.Fatalf("diff failed: %v", err)
		}

		out := output.String()
		for _, want := range []string{"Comparison Results", "Matched: 1", "Missing in destination (1):", "Completely Unknown Tune"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
	})

	t.Run("setup database", func(t *testing.T) {
		dir := t.TempDir()
		originalDir := tu.MustGetwd(t)
		tu.MustChdir(t, dir)
		defer tu.MustChdir(t, originalDir)

		runner, output, _ := newTestRunner(t)
		if err := runCLI(runner, "setup", "database", "--config", "config.toml"); err != nil {
			t.Fatalf("setup failed: %v", err)
		}

		tu.AssertFileExists(t, filepath.Join(dir, "config.toml"))
		tu.AssertFileExists(t, filepath.Join(dir, "crossfade.db"))
		if !strings.Contains(output.String(), "Database ready at ./crossfade.db (schema 0000)") {
			t.Errorf("unexpected output:\n%s", output.String())
		}

		output.Reset()
		if err := runCLI(runner, "setup", "database", "--rollback"); err != nil {
			t.Fatalf("rollback failed: %v", err)
		}
		if !strings.Contains(output.String(), "Rolled back latest migration") {
			t.Errorf("unexpected output:\n%s", output.String())
		}
	})

	t.Run("history show unknown conversion", func(t *testing.T) {
		runner, _, _ := newTestRunner(t)
		if err := runCLI(runner, "history", "show", "42"); !errors.Is(err, shared.ErrConversionNotFound) {
			t.Errorf("expected ErrConversionNotFound, got %v", err)
		}
	})
}
