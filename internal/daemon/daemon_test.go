package daemon

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/shamescroll/internal/client"
	"github.com/joescharf/shamescroll/internal/coordinator"
	"github.com/joescharf/shamescroll/internal/sites"
	"github.com/joescharf/shamescroll/internal/ui"
)

func testOptions(t *testing.T, dir, version string) Options {
	t.Helper()
	return Options{
		Addr:        "127.0.0.1:0",
		DBPath:      filepath.Join(dir, "shamescroll.db"),
		Version:     version,
		Coordinator: coordinator.DefaultConfig(),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func startDaemon(t *testing.T, opts Options) (*Daemon, *client.Client) {
	t.Helper()
	d, err := New(opts)
	require.NoError(t, err)
	addr, err := d.Listen(context.Background())
	require.NoError(t, err)
	return d, client.New("http://" + addr.String())
}

func TestDaemon_ServesAPI(t *testing.T) {
	d, c := startDaemon(t, testOptions(t, t.TempDir(), "1.0.0"))
	defer func() { _ = d.Shutdown(context.Background()) }()
	ctx := context.Background()

	assert.Equal(t, coordinator.InitInstall, d.InitReason())
	require.NoError(t, c.Health(ctx))

	f, err := c.StartFocus(ctx, "integration")
	require.NoError(t, err)
	assert.True(t, f.IsActive)

	rules, err := c.Rules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, len(sites.Tracked()))

	status, err := c.SendTab(ctx, "tab_activated", "https://reddit.com/")
	require.NoError(t, err)
	assert.False(t, status.IsTracking, "focus mode suppresses tracking")
}

func TestDaemon_RestartKeepsFocusAndDetectsUpdate(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	d, c := startDaemon(t, testOptions(t, dir, "1.0.0"))
	_, err := c.StartFocus(ctx, "survive restart")
	require.NoError(t, err)
	require.NoError(t, d.Shutdown(ctx))

	d, err = New(testOptions(t, dir, "1.0.0"))
	require.NoError(t, err)
	assert.Equal(t, coordinator.InitStartup, d.InitReason())
	addr, err := d.Listen(ctx)
	require.NoError(t, err)
	c = client.New("http://" + addr.String())

	f, err := c.FocusState(ctx)
	require.NoError(t, err)
	assert.True(t, f.IsActive)
	assert.Equal(t, "survive restart", f.Mission)
	require.NoError(t, d.Shutdown(ctx))

	d, err = New(testOptions(t, dir, "1.1.0"))
	require.NoError(t, err)
	assert.Equal(t, coordinator.InitUpdate, d.InitReason())
	require.NoError(t, d.Shutdown(ctx))
}

func TestDaemon_RunStopsOnCancel(t *testing.T) {
	d, err := New(testOptions(t, t.TempDir(), "1.0.0"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}

func TestDaemon_ServesPages(t *testing.T) {
	d, c := startDaemon(t, testOptions(t, t.TempDir(), "1.0.0"))
	defer func() { _ = d.Shutdown(context.Background()) }()

	resp, err := http.Get(c.BaseURL + ui.FocusPage)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	resp2, err := http.Get(c.BaseURL + "/api/v1/nope")
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}
