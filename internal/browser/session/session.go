// internal/browser/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/meterpost/internal/config"
)

const (
	defaultLaunchTimeout = 30 * time.Second
	// backgroundTimeout caps detached actions, which no caller deadline bounds.
	backgroundTimeout = 10 * time.Second
)

// Session owns one Chrome process and a single tab inside it.
type Session struct {
	id     string
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	// typing paces key events in TypeText.
	typing *rate.Limiter

	closeOnce sync.Once
}

var _ ActionExecutor = (*Session)(nil)

// New launches the browser, opens a tab and checks that it responds. The browser
// outlives ctx; it is torn down by Close.
func New(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New().String()
	log := logger.Named("session").With(zap.String("session_id", id[:8]))

	s := &Session{
		id:     id,
		cfg:    cfg,
		logger: log,
		typing: newTypingLimiter(cfg.TypingDelay),
	}

	log.Info("Initializing browser allocator...", zap.Bool("headless", cfg.Headless))
	s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(Detach(ctx), buildAllocatorOptions(cfg)...)
	s.ctx, s.cancel = chromedp.NewContext(s.allocCtx,
		chromedp.WithLogf(log.Sugar().Debugf),
		chromedp.WithErrorf(log.Sugar().Errorf),
	)

	// The first Run on the tab context starts the browser and binds it to that context.
	if err := chromedp.Run(s.ctx); err != nil {
		s.teardown()
		return nil, fmt.Errorf("session: failed to start browser: %w", err)
	}

	timeout := cfg.LaunchTimeout
	if timeout <= 0 {
		timeout = defaultLaunchTimeout
	}
	launchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.RunActions(launchCtx, chromedp.Navigate("about:blank")); err != nil {
		s.teardown()
		return nil, fmt.Errorf("session: browser failed to respond: %w", err)
	}
	if tasks := localeTasks(cfg, log); len(tasks) > 0 {
		if err := s.RunActions(launchCtx, tasks); err != nil {
			s.teardown()
			return nil, fmt.Errorf("session: applying locale: %w", err)
		}
	}
	if vp := cfg.Viewport; vp.Width > 0 && vp.Height > 0 {
		if err := s.SetViewport(launchCtx, Viewport{Width: vp.Width, Height: vp.Height, Scale: vp.Scale}); err != nil {
			s.teardown()
			return nil, err
		}
	}

	log.Info("Browser launched successfully and is responsive.")
	return s, nil
}

// buildAllocatorOptions starts from chromedp's defaults and layers the configured
// flags on top. Later options override earlier ones with the same flag name.
func buildAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)

	opts = append(opts,
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("ignore-certificate-errors", cfg.IgnoreTLSErrors),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-gpu", cfg.Headless),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if vp := cfg.Viewport; vp.Width > 0 && vp.Height > 0 {
		opts = append(opts, chromedp.WindowSize(int(vp.Width), int(vp.Height)))
	}

	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(name, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}
	return opts
}

func newTypingLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Context returns the tab context. It carries the CDP target and is cancelled by Close.
func (s *Session) Context() context.Context { return s.ctx }

// RunActions runs actions on the tab, bounded by both ctx and the session lifetime.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && errors.Is(err, context.Canceled) {
		// Report the operation's own deadline rather than the derived cancellation.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}

// RunBackgroundActions runs actions that must complete even when ctx is already done,
// such as acknowledging frames or stopping a screencast during shutdown.
func (s *Session) RunBackgroundActions(ctx context.Context, actions ...chromedp.Action) error {
	bgCtx, cancel := context.WithTimeout(Detach(ctx), backgroundTimeout)
	defer cancel()
	return s.RunActions(bgCtx, actions...)
}

// Close shuts the tab and the browser process. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.logger.Info("Closing session.")
		done := make(chan struct{})
		go func() {
			defer close(done)
			s.teardown()
		}()
		select {
		case <-done:
			s.logger.Debug("Browser session closed gracefully.")
		case <-ctx.Done():
			s.logger.Warn("Deadline exceeded waiting for browser session to close.", zap.Error(ctx.Err()))
		}
	})
	return nil
}

func (s *Session) teardown() {
	if s.cancel != nil {
		// chromedp.Cancel closes the tab cleanly before its context is cancelled.
		if err := chromedp.Cancel(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Debug("Error while closing tab.", zap.Error(err))
		}
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}
