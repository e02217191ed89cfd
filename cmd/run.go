// cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/meterpost/internal/browser/session"
	"github.com/xkilldash9x/meterpost/internal/browser/static"
	"github.com/xkilldash9x/meterpost/internal/config"
	"github.com/xkilldash9x/meterpost/internal/flow"
	"github.com/xkilldash9x/meterpost/internal/locator"
	"github.com/xkilldash9x/meterpost/internal/recorder"
)

const (
	closeTimeout = 15 * time.Second
	// encodeTimeout bounds ffmpeg after the flow ends, including after Ctrl+C.
	encodeTimeout = 5 * time.Minute
)

func newRunner(cfg config.Interface, page flow.Page, logger *zap.Logger) *flow.Runner {
	return &flow.Runner{
		Page:              page,
		Locator:           locator.New(cfg.Locator(), logger),
		Logger:            logger,
		NavigationTimeout: cfg.Locator().NavigationTimeout,
	}
}

// openSession launches the browser and returns a func that closes it.
func openSession(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*session.Session, func(), error) {
	s, err := session.New(ctx, cfg.Browser(), logger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		closeCtx, cancel := context.WithTimeout(session.Detach(ctx), closeTimeout)
		defer cancel()
		if err := s.Close(closeCtx); err != nil {
			logger.Warn("Failed to close browser session cleanly.", zap.Error(err))
		}
	}
	return s, closeFn, nil
}

// runLive plays f in a real browser, recording the screen when enabled. A
// failed flow still produces its recording.
func runLive(ctx context.Context, cfg config.Interface, f *flow.Flow, logger *zap.Logger) (err error) {
	s, closeSession, err := openSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSession()

	if rc := cfg.Recorder(); rc.Enabled {
		rec := recorder.New(s, &recorder.FFmpeg{Path: rc.FFmpegPath, Logger: logger}, rc, logger)
		if err := rec.Start(ctx); err != nil {
			return fmt.Errorf("starting recorder: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(session.Detach(ctx), encodeTimeout)
			defer cancel()
			out, stopErr := rec.Stop(stopCtx)
			switch {
			case stopErr != nil:
				logger.Error("Recording failed.", zap.Error(stopErr))
			case out != "":
				logger.Info("Recording saved.", zap.String("path", out))
			}
		}()
	}

	return newRunner(cfg, s, logger).Run(ctx, f)
}

// runOffline plays f against a saved HTML page and writes the actions it took.
func runOffline(ctx context.Context, cfg config.Interface, f *flow.Flow, htmlPath string, out io.Writer, logger *zap.Logger) error {
	doc, err := static.Load(htmlPath)
	if err != nil {
		return err
	}
	page := static.NewPage(doc)
	runErr := newRunner(cfg, page, logger).Run(ctx, f)
	for _, action := range page.Actions() {
		fmt.Fprintln(out, action)
	}
	return runErr
}
