// internal/browser/session/session_helpers_test.go
package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/meterpost/internal/config"
)

const (
	// initializationTimeout covers a cold browser start on a loaded CI machine.
	initializationTimeout = 45 * time.Second
	closeTimeout          = 15 * time.Second
	testTimeout           = 30 * time.Second
)

var chromeCandidates = []string{
	"headless-shell",
	"headless_shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
}

// findChrome returns a browser binary, preferring CHROME_PATH.
func findChrome() string {
	if p := os.Getenv("CHROME_PATH"); p != "" {
		return p
	}
	for _, name := range chromeCandidates {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

// newTestSession launches a headless browser for one test, skipping when none is
// installed or when running with -short.
func newTestSession(t *testing.T) *Session {
	t.Helper()
	if testing.Short() {
		t.Skip("browser test skipped in -short mode")
	}
	bin := findChrome()
	if bin == "" {
		t.Skip("no Chrome or Chromium binary available")
	}

	cfg := config.NewDefaultConfig().BrowserCfg
	cfg.Headless = true
	cfg.ExecPath = bin
	cfg.TypingDelay = 0

	ctx, cancel := context.WithTimeout(context.Background(), initializationTimeout)
	defer cancel()

	logger := zaptest.NewLogger(t, zaptest.Level(zapcore.InfoLevel))
	s, err := New(ctx, cfg, logger)
	require.NoError(t, err, "launching browser")

	t.Cleanup(func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		_ = s.Close(closeCtx)
	})
	return s
}

// newPageServer serves each path's HTML from pages.
func newPageServer(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}
