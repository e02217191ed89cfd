// internal/locator/viewport.go
package locator

import (
	"context"
	"fmt"
	"time"

	"github.com/xkilldash9x/meterpost/internal/wait"
)

// ScrollIntoViewIfNeeded waits for the node to be attached, then scrolls it to the
// centre of the viewport unless some part of it is already visible, and waits for it
// to intersect. Each wait receives the full timeout.
func (l *Locator) ScrollIntoViewIfNeeded(ctx context.Context, node Node, timeout time.Duration) error {
	timeout = l.timeoutOr(timeout)

	if err := wait.Poll(ctx, l.interval, timeout, node.IsConnected); err != nil {
		return fmt.Errorf("locator: waiting for %s to attach: %w", node, err)
	}

	inView, err := node.IntersectsViewport(ctx, 0)
	if err != nil {
		return fmt.Errorf("locator: checking viewport for %s: %w", node, err)
	}
	if inView {
		return nil
	}

	if err := node.ScrollIntoView(ctx); err != nil {
		return fmt.Errorf("locator: scrolling %s into view: %w", node, err)
	}

	err = wait.Poll(ctx, l.interval, timeout, func(ctx context.Context) (bool, error) {
		return node.IntersectsViewport(ctx, 0)
	})
	if err != nil {
		return fmt.Errorf("locator: waiting for %s to enter the viewport: %w", node, err)
	}
	return nil
}
