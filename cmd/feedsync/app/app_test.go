package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agentstation/feedsync"
	"github.com/agentstation/feedsync/internal/config"
	"github.com/agentstation/feedsync/internal/server"
	"github.com/agentstation/feedsync/pkg/constants"
	"github.com/agentstation/feedsync/pkg/logging"
)

// isolate keeps tests away from config files and env of the host.
func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	for _, key := range []string{"BASE_URL", "APP_MODE", "ACCESS_TOKEN", "QUERIES", "LOG_LEVEL"} {
		t.Setenv(config.EnvPrefix+"_"+key, "")
	}
	t.Setenv("LOG_LEVEL", "")
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	isolate(t)
	app, err := New("1.0.0", "abc123", "2026-10-01", "test", WithLogger(logging.NewNopLogger()))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })
	return app
}

// TestApp_New verifies app initialization.
func TestApp_New(t *testing.T) {
	app := newTestApp(t)

	if app.Version() != "1.0.0" {
		t.Errorf("Version() = %s, want 1.0.0", app.Version())
	}
	if app.Commit() != "abc123" {
		t.Errorf("Commit() = %s, want abc123", app.Commit())
	}
	if app.Date() != "2026-10-01" {
		t.Errorf("Date() = %s, want 2026-10-01", app.Date())
	}
	if app.BuiltBy() != "test" {
		t.Errorf("BuiltBy() = %s, want test", app.BuiltBy())
	}
	if app.Logger() == nil {
		t.Error("Logger() returned nil")
	}
	if app.Config() == nil {
		t.Fatal("Config() returned nil")
	}
	if app.Config().BaseURL != constants.DefaultBaseURL {
		t.Errorf("BaseURL = %s, want %s", app.Config().BaseURL, constants.DefaultBaseURL)
	}
	if app.Credits() == nil || app.Credits().HasError() {
		t.Error("Credits() should start clear")
	}
}

// TestApp_Client_Singleton verifies that Client() returns the same instance.
func TestApp_Client_Singleton(t *testing.T) {
	app := newTestApp(t)

	c1, err := app.Client()
	if err != nil {
		t.Fatalf("Client() failed: %v", err)
	}
	c2, err := app.Client()
	if err != nil {
		t.Fatalf("Client() failed on second call: %v", err)
	}
	if c1 != c2 {
		t.Error("Client() returned different instances")
	}
	if c1.State() != feedsync.StateIdle {
		t.Errorf("State() = %s, want idle", c1.State())
	}

	families, err := app.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	if len(families) == 0 {
		t.Error("registry has no metric families")
	}
}

// TestApp_WithClient verifies the injected client is used and closed.
func TestApp_WithClient(t *testing.T) {
	isolate(t)
	injected, err := feedsync.New(feedsync.WithLogger(logging.NewNopLogger()))
	if err != nil {
		t.Fatalf("feedsync.New() failed: %v", err)
	}

	app, err := New("dev", "", "", "", WithClient(injected))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	got, err := app.Client()
	if err != nil || got != injected {
		t.Fatalf("Client() = %v, %v; want injected client", got, err)
	}
	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}
	if err := injected.InitialLoad(context.Background()); err == nil {
		t.Error("InitialLoad() after Shutdown should fail")
	}
}

// TestApp_Shutdown verifies shutdown without a client is a no-op.
func TestApp_Shutdown(t *testing.T) {
	app := newTestApp(t)
	if err := app.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() failed: %v", err)
	}
}

func run(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	root := app.createRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// TestExecute_Version verifies the version command output.
func TestExecute_Version(t *testing.T) {
	app := newTestApp(t)

	out, err := run(t, app, "version", "-v")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "feedsync 1.0.0") || !strings.Contains(out, "abc123") {
		t.Errorf("unexpected version output: %q", out)
	}
}

// TestExecute_InvalidFormat verifies the format flag is validated.
func TestExecute_InvalidFormat(t *testing.T) {
	app := newTestApp(t)

	if _, err := run(t, app, "version", "--format", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

// TestExecute_BaseURLFlag verifies feed flags reach the client configuration.
func TestExecute_BaseURLFlag(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.MetricsEnabled = false
	s, err := server.New(cfg, nil, logging.NewNopLogger())
	if err != nil {
		t.Fatalf("server.New() failed: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	app := newTestApp(t)
	out, err := run(t, app, "conflicts", "sudan", "--base-url", ts.URL+"/", "-o", "json")
	if err != nil {
		t.Fatalf("conflicts failed: %v", err)
	}
	if app.Config().BaseURL != ts.URL {
		t.Errorf("BaseURL = %s, want %s", app.Config().BaseURL, ts.URL)
	}

	var got feedsync.Conflicts
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if got.Country != "sudan" {
		t.Errorf("Country = %s, want sudan", got.Country)
	}
}
