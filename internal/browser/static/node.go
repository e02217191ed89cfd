// internal/browser/static/node.go
package static

import (
	"context"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/meterpost/internal/browser/shadowdom"
	"github.com/xkilldash9x/meterpost/internal/locator"
)

// Node is a handle to an element, the document, or a shadow root of a Document.
type Node struct {
	doc *Document
	n   *html.Node
}

var _ locator.Node = (*Node)(nil)

// HTML exposes the underlying parsed node.
func (s *Node) HTML() *html.Node { return s.n }

func (s *Node) wrap(nodes []*html.Node) []locator.Node {
	out := make([]locator.Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &Node{doc: s.doc, n: n})
	}
	return out
}

func (s *Node) QuerySelectorAll(ctx context.Context, selector string) ([]locator.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("static: invalid css selector %q: %w", selector, err)
	}
	s.doc.mu.RLock()
	defer s.doc.mu.RUnlock()
	return s.wrap(cascadia.QueryAll(s.n, sel)), nil
}

func (s *Node) QueryXPath(ctx context.Context, expr string) ([]locator.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.doc.mu.RLock()
	defer s.doc.mu.RUnlock()
	nodes, err := htmlquery.QueryAll(s.n, expr)
	if err != nil {
		return nil, fmt.Errorf("static: invalid xpath %q: %w", expr, err)
	}
	elements := nodes[:0]
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			elements = append(elements, n)
		}
	}
	return s.wrap(elements), nil
}

func (s *Node) QueryAccessible(ctx context.Context, name, role string) ([]locator.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := normalizeSpace(name)
	s.doc.mu.RLock()
	defer s.doc.mu.RUnlock()

	var matches []*html.Node
	s.doc.walkComposed(s.n, func(n *html.Node) {
		if n.Type != html.ElementNode || s.doc.isAccessibilityHidden(n) {
			return
		}
		r := ariaRole(n)
		if r == "" || r == "none" || r == "presentation" {
			return
		}
		if role != "" && r != role {
			return
		}
		if s.doc.accessibleName(n) == want {
			matches = append(matches, n)
		}
	})
	return s.wrap(matches), nil
}

func (s *Node) QueryText(ctx context.Context, text string) ([]locator.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.doc.mu.RLock()
	defer s.doc.mu.RUnlock()

	var matches []*html.Node
	s.doc.walkComposed(s.n, func(n *html.Node) {
		if n.Type != html.ElementNode || isTextless(n) {
			return
		}
		if !strings.Contains(s.doc.composedText(n), text) {
			return
		}
		// Innermost only: skip n when a child element also contains the text.
		for _, c := range s.doc.composedChildren(n) {
			if c.Type == html.ElementNode && !isTextless(c) && strings.Contains(s.doc.composedText(c), text) {
				return
			}
		}
		matches = append(matches, n)
	})
	return s.wrap(matches), nil
}

func (s *Node) QueryPierce(ctx context.Context, selector string) ([]locator.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("static: invalid css selector %q: %w", selector, err)
	}
	s.doc.mu.RLock()
	defer s.doc.mu.RUnlock()

	matches := cascadia.QueryAll(s.n, sel)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if root := s.doc.openShadow(n); root != nil {
			matches = append(matches, cascadia.QueryAll(root, sel)...)
			walk(root)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(s.n)
	return s.wrap(matches), nil
}

func (s *Node) ShadowRoot(context.Context) (locator.Node, error) {
	s.doc.mu.RLock()
	defer s.doc.mu.RUnlock()
	root := s.doc.openShadow(s.n)
	if root == nil {
		return nil, nil
	}
	return &Node{doc: s.doc, n: root}, nil
}

func (s *Node) IsConnected(context.Context) (bool, error) {
	s.doc.mu.RLock()
	defer s.doc.mu.RUnlock()
	return s.doc.connected(s.n), nil
}

// IsVisible approximates rendering: the node must be connected and neither it nor
// a composed ancestor may be hidden by attribute or inline style.
func (s *Node) IsVisible(context.Context) (bool, error) {
	s.doc.mu.RLock()
	defer s.doc.mu.RUnlock()
	if !s.doc.connected(s.n) {
		return false, nil
	}
	if s.n.Type == html.ElementNode && s.n.Data == "input" && strings.EqualFold(attr(s.n, "type"), "hidden") {
		return false, nil
	}
	for cur := s.n; cur != nil; cur = s.doc.composedParent(cur) {
		if cur.Type == html.ElementNode && isHiddenElement(cur) {
			return false, nil
		}
	}
	return true, nil
}

// IntersectsViewport has no layout to consult; connected nodes are in view unless
// they or an ancestor carry OffscreenAttr.
func (s *Node) IntersectsViewport(context.Context, float64) (bool, error) {
	s.doc.mu.RLock()
	defer s.doc.mu.RUnlock()
	if !s.doc.connected(s.n) {
		return false, nil
	}
	for cur := s.n; cur != nil; cur = s.doc.composedParent(cur) {
		if cur.Type == html.ElementNode && hasAttr(cur, OffscreenAttr) {
			return false, nil
		}
	}
	return true, nil
}

func (s *Node) ScrollIntoView(context.Context) error {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	s.doc.scrolls++
	for cur := s.n; cur != nil; cur = s.doc.composedParent(cur) {
		removeAttr(cur, OffscreenAttr)
	}
	return nil
}

func (s *Node) Same(other locator.Node) bool {
	o, ok := other.(*Node)
	return ok && o.doc == s.doc && o.n == s.n
}

func (s *Node) String() string {
	switch {
	case s.n.Type == html.DocumentNode && s.n.Data == shadowdom.BoundaryData:
		return "#shadow-root"
	case s.n.Type == html.DocumentNode:
		return "#document"
	case s.n.Type != html.ElementNode:
		return fmt.Sprintf("#node(%s)", strings.TrimSpace(s.n.Data))
	}
	var b strings.Builder
	b.WriteString(s.n.Data)
	if id := attr(s.n, "id"); id != "" {
		b.WriteString("#" + id)
	}
	for _, class := range strings.Fields(attr(s.n, "class")) {
		b.WriteString("." + class)
	}
	return b.String()
}

// Attr returns the value of the named attribute, or "" if absent.
func (s *Node) Attr(name string) string {
	s.doc.mu.RLock()
	defer s.doc.mu.RUnlock()
	return attr(s.n, name)
}

// Text returns the node's composed text content with whitespace collapsed.
func (s *Node) Text() string {
	s.doc.mu.RLock()
	defer s.doc.mu.RUnlock()
	return normalizeSpace(s.doc.composedText(s.n))
}
