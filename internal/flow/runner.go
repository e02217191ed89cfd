// internal/flow/runner.go
package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/meterpost/internal/browser/session"
	"github.com/xkilldash9x/meterpost/internal/locator"
	"github.com/xkilldash9x/meterpost/internal/wait"
)

// Page is the browser surface a flow drives. *session.Session implements it.
type Page interface {
	Root(ctx context.Context) (locator.Node, error)
	Navigate(ctx context.Context, url string) error
	WithNavigation(ctx context.Context, timeout time.Duration, trigger func(context.Context) error) error
	SetViewport(ctx context.Context, vp session.Viewport) error
	ClickAt(ctx context.Context, n locator.Node, offsetX, offsetY float64, clickCount int) error
	Fill(ctx context.Context, n locator.Node, value string) error
	KeyDown(ctx context.Context, key string) error
	KeyUp(ctx context.Context, key string) error
	ScrollTo(ctx context.Context, x, y float64) error
	ScrollElementTo(ctx context.Context, n locator.Node, x, y float64) error
	EvaluateBool(ctx context.Context, expr string) (bool, error)
}

var _ Page = (*session.Session)(nil)

// StepError reports the step that stopped a run.
type StepError struct {
	// Index is 1-based.
	Index int
	Type  StepType
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("flow: step %d (%s) failed: %v", e.Index, e.Type, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Runner replays flows one step at a time.
type Runner struct {
	Page    Page
	Locator *locator.Locator
	Logger  *zap.Logger
	// NavigationTimeout bounds navigate steps. Zero uses the step timeout.
	NavigationTimeout time.Duration
}

// Run executes every step in order and stops at the first failure.
func (r *Runner) Run(ctx context.Context, f *Flow) error {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("flow").With(zap.String("flow", f.Title))

	root, err := r.Page.Root(ctx)
	if err != nil {
		return fmt.Errorf("flow: acquiring document: %w", err)
	}

	started := time.Now()
	logger.Info("Starting flow.", zap.Int("steps", len(f.Steps)))
	for i, step := range f.Steps {
		timeout := r.stepTimeout(f, step)
		stepLog := logger.With(zap.Int("step", i+1), zap.String("type", string(step.Type)))
		stepLog.Debug("Running step.", zap.Duration("timeout", timeout))

		if err := r.runStep(ctx, root, step, timeout); err != nil {
			stepLog.Error("Step failed.", zap.Error(err))
			return &StepError{Index: i + 1, Type: step.Type, Err: err}
		}
	}
	logger.Info("Flow finished.", zap.Duration("elapsed", time.Since(started)))
	return nil
}

func (r *Runner) stepTimeout(f *Flow, s Step) time.Duration {
	if d := s.timeout(); d > 0 {
		return d
	}
	if f.Timeout > 0 {
		return time.Duration(f.Timeout) * time.Millisecond
	}
	return r.Locator.DefaultTimeout()
}

func (r *Runner) runStep(ctx context.Context, root locator.Node, s Step, timeout time.Duration) error {
	switch s.Type {
	case StepSetViewport:
		return r.Page.SetViewport(ctx, session.Viewport{
			Width:     s.Width,
			Height:    s.Height,
			Scale:     s.DeviceScaleFactor,
			Mobile:    s.IsMobile,
			Touch:     s.HasTouch,
			Landscape: s.IsLandscape,
		})

	case StepNavigate:
		navTimeout := r.NavigationTimeout
		if navTimeout <= 0 {
			navTimeout = timeout
		}
		navCtx, cancel := context.WithTimeout(ctx, navTimeout)
		defer cancel()
		return r.Page.Navigate(navCtx, s.URL)

	case StepClick, StepDoubleClick:
		n, err := r.locateForAction(ctx, root, s, timeout)
		if err != nil {
			return err
		}
		clicks := 1
		if s.Type == StepDoubleClick {
			clicks = 2
		}
		click := func(ctx context.Context) error {
			return r.Page.ClickAt(ctx, n, s.OffsetX, s.OffsetY, clicks)
		}
		if s.ExpectsNavigation() {
			return r.Page.WithNavigation(ctx, timeout, click)
		}
		return click(ctx)

	case StepChange:
		n, err := r.locateForAction(ctx, root, s, timeout)
		if err != nil {
			return err
		}
		return r.Page.Fill(ctx, n, s.Value)

	case StepKeyDown:
		return r.Page.KeyDown(ctx, s.Key)

	case StepKeyUp:
		return r.Page.KeyUp(ctx, s.Key)

	case StepScroll:
		if len(s.Selectors) == 0 {
			return r.Page.ScrollTo(ctx, s.X, s.Y)
		}
		n, err := r.locate(ctx, root, s, timeout, false)
		if err != nil {
			return err
		}
		return r.Page.ScrollElementTo(ctx, n, s.X, s.Y)

	case StepWaitForElement:
		return r.waitForElement(ctx, root, s, timeout)

	case StepWaitForExpression:
		err := wait.Poll(ctx, r.Locator.PollInterval(), timeout, func(ctx context.Context) (bool, error) {
			return r.Page.EvaluateBool(ctx, s.Expression)
		})
		if err != nil {
			return fmt.Errorf("waiting for %q: %w", s.Expression, err)
		}
		return nil

	case StepClose:
		return nil

	case StepFillRow:
		return r.fillRow(ctx, root, s, timeout)

	default:
		return fmt.Errorf("unsupported step type %q", s.Type)
	}
}

func (r *Runner) locate(ctx context.Context, root locator.Node, s Step, timeout time.Duration, visible bool) (locator.Node, error) {
	strategies, err := s.Strategies()
	if err != nil {
		return nil, err
	}
	return r.Locator.Locate(ctx, strategies, root, locator.Options{Timeout: timeout, Visible: visible})
}

// locateForAction finds a visible target and brings it into the viewport.
func (r *Runner) locateForAction(ctx context.Context, root locator.Node, s Step, timeout time.Duration) (locator.Node, error) {
	n, err := r.locate(ctx, root, s, timeout, true)
	if err != nil {
		return nil, err
	}
	if err := r.Locator.ScrollIntoViewIfNeeded(ctx, n, timeout); err != nil {
		return nil, err
	}
	return n, nil
}

func (r *Runner) waitForElement(ctx context.Context, root locator.Node, s Step, timeout time.Duration) error {
	spec, counted, err := s.CountSpec()
	if err != nil {
		return err
	}
	if !counted {
		_, err := r.locate(ctx, root, s, timeout, s.IsVisible())
		return err
	}
	strategies, err := s.Strategies()
	if err != nil {
		return err
	}
	return r.Locator.WaitForCount(ctx, strategies, root, spec, timeout)
}

// fillRow waits for the table, takes the first row whose text contains the key
// and fills each field found inside that row.
func (r *Runner) fillRow(ctx context.Context, root locator.Node, s Step, timeout time.Duration) error {
	table, err := r.locate(ctx, root, s, timeout, true)
	if err != nil {
		return err
	}

	rowSel := locator.Strategies{{locator.XPath(".//tr[contains(., " + xpathLiteral(s.Row) + ")]")}}
	row, err := r.Locator.Locate(ctx, rowSel, table, locator.Options{Timeout: timeout})
	if err != nil {
		return fmt.Errorf("row %q: %w", s.Row, err)
	}

	for i, fld := range s.Fields {
		chain, err := locator.ParseChain(fld.Selector)
		if err != nil {
			return fmt.Errorf("field %d: %w", i+1, err)
		}
		input, err := r.Locator.Locate(ctx, locator.Strategies{chain}, row, locator.Options{Timeout: timeout})
		if err != nil {
			return fmt.Errorf("row %q field %d: %w", s.Row, i+1, err)
		}
		if err := r.Page.Fill(ctx, input, fld.Value); err != nil {
			return fmt.Errorf("row %q field %d: %w", s.Row, i+1, err)
		}
	}
	return nil
}

// xpathLiteral quotes s for use in an XPath 1.0 expression, which has no escapes.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}
