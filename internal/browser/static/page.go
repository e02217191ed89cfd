// internal/browser/static/page.go
package static

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/meterpost/internal/browser/session"
	"github.com/xkilldash9x/meterpost/internal/locator"
)

// ErrForeignNode is returned when a Page is handed a node from another driver.
var ErrForeignNode = errors.New("static: node does not belong to this document")

// Page replays browser actions against a Document. Input lands in value
// attributes and every action is logged, so a flow can be dry-run offline.
type Page struct {
	doc *Document

	// OnClick runs after a click is logged. Tests use it to mutate the document.
	OnClick func(n *Node)
	// Eval answers waitForExpression probes. Nil treats every expression as true.
	Eval func(expr string) (bool, error)

	mu       sync.Mutex
	actions  []string
	viewport session.Viewport
}

// NewPage wraps doc.
func NewPage(doc *Document) *Page {
	return &Page{doc: doc}
}

// Actions returns the action log in order.
func (p *Page) Actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.actions...)
}

// Viewport returns the last viewport set.
func (p *Page) Viewport() session.Viewport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewport
}

func (p *Page) record(format string, args ...any) {
	p.mu.Lock()
	p.actions = append(p.actions, fmt.Sprintf(format, args...))
	p.mu.Unlock()
}

func (p *Page) own(n locator.Node) (*Node, error) {
	sn, ok := n.(*Node)
	if !ok || sn == nil || sn.doc != p.doc {
		return nil, fmt.Errorf("%w: %v", ErrForeignNode, n)
	}
	return sn, nil
}

func (p *Page) Root(context.Context) (locator.Node, error) {
	return p.doc.Root(), nil
}

// Navigate only logs; the document does not change.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.record("navigate %s", url)
	return nil
}

func (p *Page) WithNavigation(ctx context.Context, _ time.Duration, trigger func(context.Context) error) error {
	if err := trigger(ctx); err != nil {
		return err
	}
	p.record("navigation")
	return nil
}

func (p *Page) SetViewport(ctx context.Context, vp session.Viewport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.viewport = vp
	p.mu.Unlock()
	p.record("viewport %dx%d", vp.Width, vp.Height)
	return nil
}

func (p *Page) ClickAt(ctx context.Context, n locator.Node, offsetX, offsetY float64, clickCount int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sn, err := p.own(n)
	if err != nil {
		return err
	}
	if clickCount < 1 {
		clickCount = 1
	}
	p.record("click %s at %g,%g x%d", sn, offsetX, offsetY, clickCount)
	if p.OnClick != nil {
		p.OnClick(sn)
	}
	return nil
}

// Fill stores value in the node's value attribute.
func (p *Page) Fill(ctx context.Context, n locator.Node, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sn, err := p.own(n)
	if err != nil {
		return err
	}
	p.doc.Mutate(func(*html.Node) {
		setAttr(sn.n, "value", value)
	})
	p.record("fill %s = %q", sn, value)
	return nil
}

func (p *Page) KeyDown(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.record("keydown %s", key)
	return nil
}

func (p *Page) KeyUp(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.record("keyup %s", key)
	return nil
}

func (p *Page) ScrollTo(ctx context.Context, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.record("scroll window to %g,%g", x, y)
	return nil
}

func (p *Page) ScrollElementTo(ctx context.Context, n locator.Node, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sn, err := p.own(n)
	if err != nil {
		return err
	}
	p.record("scroll %s to %g,%g", sn, x, y)
	return nil
}

func (p *Page) EvaluateBool(ctx context.Context, expr string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if p.Eval == nil {
		return true, nil
	}
	return p.Eval(expr)
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
