// internal/browser/session/page.go
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/meterpost/internal/locator"
	"github.com/xkilldash9x/meterpost/internal/wait"
)

// Viewport is the emulated screen of the tab.
type Viewport struct {
	Width     int64
	Height    int64
	Scale     float64
	Mobile    bool
	Touch     bool
	Landscape bool
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Info("Navigating", zap.String("url", url))
	if err := s.RunActions(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("session: navigating to %s: %w", url, err)
	}
	return nil
}

// WithNavigation runs trigger and waits for the page load it causes. The load
// listener is attached before trigger runs, so a fast navigation is not missed.
func (s *Session) WithNavigation(ctx context.Context, timeout time.Duration, trigger func(context.Context) error) error {
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	listenCtx, stop := CombineContext(s.ctx, navCtx)
	defer stop()

	loaded := make(chan struct{}, 1)
	chromedp.ListenTarget(listenCtx, func(ev any) {
		if _, ok := ev.(*page.EventLoadEventFired); ok {
			select {
			case loaded <- struct{}{}:
			default:
			}
		}
	})

	g, gctx := errgroup.WithContext(navCtx)
	g.Go(func() error {
		select {
		case <-loaded:
			return nil
		case <-gctx.Done():
			return gctx.Err()
		}
	})
	g.Go(func() error {
		return trigger(gctx)
	})

	err := g.Wait()
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("session: navigation did not finish: %w after %v", wait.ErrTimeout, timeout)
	}
	return err
}

// SetViewport applies device metrics and touch emulation.
func (s *Session) SetViewport(ctx context.Context, vp Viewport) error {
	scale := vp.Scale
	if scale <= 0 {
		scale = 1
	}
	opts := []chromedp.EmulateViewportOption{chromedp.EmulateScale(scale)}
	if vp.Mobile {
		opts = append(opts, chromedp.EmulateMobile)
	}
	if vp.Touch {
		opts = append(opts, chromedp.EmulateTouch)
	}
	if vp.Landscape {
		opts = append(opts, chromedp.EmulateLandscape)
	} else {
		opts = append(opts, chromedp.EmulatePortrait)
	}
	if err := s.RunActions(ctx, chromedp.EmulateViewport(vp.Width, vp.Height, opts...)); err != nil {
		return fmt.Errorf("session: setting viewport %dx%d: %w", vp.Width, vp.Height, err)
	}
	return nil
}

// ScrollTo scrolls the window to an absolute position.
func (s *Session) ScrollTo(ctx context.Context, x, y float64) error {
	expr := fmt.Sprintf("window.scrollTo(%g, %g)", x, y)
	if err := s.RunActions(ctx, chromedp.Evaluate(expr, nil)); err != nil {
		return fmt.Errorf("session: scrolling window: %w", err)
	}
	return nil
}

// ScrollElementTo sets the scroll position of a scrollable element.
func (s *Session) ScrollElementTo(ctx context.Context, n locator.Node, x, y float64) error {
	h, err := asHandle(n)
	if err != nil {
		return err
	}
	if _, err := h.call(ctx, jsScrollTo, true, x, y); err != nil {
		return fmt.Errorf("session: scrolling %s: %w", h, err)
	}
	return nil
}

// EvaluateBool evaluates expr in the page, awaiting promises, and reports whether
// the result is truthy.
func (s *Session) EvaluateBool(ctx context.Context, expr string) (bool, error) {
	var ok bool
	wrapped := fmt.Sprintf("(async () => !!(await (%s)))()", expr)
	err := s.RunActions(ctx, chromedp.Evaluate(wrapped, &ok, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil {
		return false, fmt.Errorf("session: evaluating %q: %w", expr, err)
	}
	return ok, nil
}
