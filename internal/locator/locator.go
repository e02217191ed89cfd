// internal/locator/locator.go
package locator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/meterpost/internal/config"
	"github.com/xkilldash9x/meterpost/internal/wait"
)

// Locator finds elements by trying alternative selector chains, waiting on each.
type Locator struct {
	logger   *zap.Logger
	interval time.Duration
	timeout  time.Duration
}

// Options tune a single Locate call.
type Options struct {
	// Timeout bounds each chain attempt separately. Zero uses the configured default.
	Timeout time.Duration
	// Visible additionally requires the match to be rendered.
	Visible bool
}

// New creates a Locator from the locator configuration section.
func New(cfg config.LocatorConfig, logger *zap.Logger) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = wait.DefaultInterval
	}
	timeout := cfg.DefaultTimeout
	if timeout <= 0 {
		timeout = config.DefaultLocatorTimeout
	}
	return &Locator{
		logger:   logger.Named("locator"),
		interval: interval,
		timeout:  timeout,
	}
}

// PollInterval is the cadence shared by every wait this locator performs.
func (l *Locator) PollInterval() time.Duration { return l.interval }

// DefaultTimeout is used whenever a caller passes a zero timeout.
func (l *Locator) DefaultTimeout() time.Duration { return l.timeout }

func (l *Locator) timeoutOr(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return l.timeout
}

// Locate tries each chain in order, giving every chain the full timeout to appear.
// The first chain that resolves wins. Earlier failures are logged and collected; if
// none resolves the result is an *AllSelectorsFailedError.
func (l *Locator) Locate(ctx context.Context, strategies Strategies, scope Node, opts Options) (Node, error) {
	if len(strategies) == 0 {
		return nil, fmt.Errorf("locator: no selector strategies: %w", ErrEmptySelector)
	}
	timeout := l.timeoutOr(opts.Timeout)

	errs := make([]error, 0, len(strategies))
	for i, chain := range strategies {
		found, err := l.waitForChain(ctx, chain, scope, timeout, opts.Visible)
		if err == nil {
			if i > 0 {
				l.logger.Debug("Located element with fallback strategy.",
					zap.Stringer("selector", chain), zap.Int("attempt", i+1))
			}
			return found, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		l.logger.Warn("Selector strategy failed.",
			zap.Stringer("selector", chain),
			zap.Int("attempt", i+1),
			zap.Int("remaining", len(strategies)-i-1),
			zap.Error(err),
		)
		errs = append(errs, err)
	}

	return nil, &AllSelectorsFailedError{Chains: strategies, Errs: errs}
}

// waitForChain polls Resolve until the chain yields an element (and, when visible is
// set, a rendered one).
func (l *Locator) waitForChain(ctx context.Context, chain Chain, scope Node, timeout time.Duration, visible bool) (Node, error) {
	var (
		found   Node
		lastErr error
	)
	err := wait.Poll(ctx, l.interval, timeout, func(ctx context.Context) (bool, error) {
		n, err := Resolve(ctx, chain, scope)
		if errors.Is(err, ErrNotFound) {
			lastErr = err
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if visible {
			ok, err := n.IsVisible(ctx)
			if err != nil {
				return false, err
			}
			if !ok {
				lastErr = fmt.Errorf("locator: %s matched %s but it is not visible", chain, n)
				return false, nil
			}
		}
		found = n
		return true, nil
	})
	if err != nil {
		if errors.Is(err, ErrTimeout) && lastErr != nil {
			return nil, fmt.Errorf("%w: %w", err, lastErr)
		}
		return nil, err
	}
	return found, nil
}
