// internal/browser/session/interfaces.go
package session

import (
	"context"

	"github.com/chromedp/chromedp"
)

// ActionExecutor runs chromedp actions against a live tab. Handles use it so they
// stay independent of Session's lifecycle.
type ActionExecutor interface {
	// RunActions combines ctx with the tab context so actions have the CDP target
	// while respecting the caller's deadline.
	RunActions(ctx context.Context, actions ...chromedp.Action) error

	// RunBackgroundActions runs actions on a detached context. Used for cleanup
	// that must happen after the caller's context has ended.
	RunBackgroundActions(ctx context.Context, actions ...chromedp.Action) error
}
