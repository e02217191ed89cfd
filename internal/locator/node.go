// internal/locator/node.go
package locator

import "context"

// Node is a handle to a DOM element, document or shadow root owned by some driver.
// The locator only ever talks to the page through this interface; the live Chrome
// session and the offline HTML document both implement it.
type Node interface {
	// QuerySelectorAll returns descendants matching a CSS selector, in document order.
	QuerySelectorAll(ctx context.Context, selector string) ([]Node, error)
	// QueryXPath evaluates an XPath expression with the node as context.
	QueryXPath(ctx context.Context, expr string) ([]Node, error)
	// QueryAccessible returns descendants whose computed accessible name equals name.
	// An empty role matches any role.
	QueryAccessible(ctx context.Context, name, role string) ([]Node, error)
	// QueryText returns the innermost descendants whose text content contains text.
	QueryText(ctx context.Context, text string) ([]Node, error)
	// QueryPierce is QuerySelectorAll across every shadow root below the node.
	QueryPierce(ctx context.Context, selector string) ([]Node, error)

	// ShadowRoot returns (nil, nil) when the node hosts no reachable shadow root.
	ShadowRoot(ctx context.Context) (Node, error)

	IsConnected(ctx context.Context) (bool, error)
	IsVisible(ctx context.Context) (bool, error)
	// IntersectsViewport reports whether the visible ratio of the node is above threshold.
	IntersectsViewport(ctx context.Context, threshold float64) (bool, error)
	// ScrollIntoView centres the node in the viewport on both axes.
	ScrollIntoView(ctx context.Context) error

	// Same reports whether both handles point at the same underlying node.
	Same(other Node) bool
	String() string
}
