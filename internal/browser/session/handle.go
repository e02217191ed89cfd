// internal/browser/session/handle.go
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/meterpost/internal/locator"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrForeignNode is returned when an action receives a node from another driver.
var ErrForeignNode = errors.New("session: node does not belong to a live browser session")

// Handle is a reference to a DOM node (element, document or shadow root) in the
// page's main world.
type Handle struct {
	exec ActionExecutor
	// document handles re-acquire the current document after a navigation.
	document bool

	mu      sync.Mutex
	id      runtime.RemoteObjectID
	desc    string
	backend cdp.BackendNodeID
}

var _ locator.Node = (*Handle)(nil)

func newHandle(exec ActionExecutor, obj *runtime.RemoteObject) *Handle {
	return &Handle{exec: exec, id: obj.ObjectID, desc: obj.Description}
}

// Document returns a handle to the current document, the root search context.
func (s *Session) Document(ctx context.Context) (*Handle, error) {
	h := &Handle{exec: s, document: true}
	if err := h.reacquire(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

// Root is Document typed as a locator search scope.
func (s *Session) Root(ctx context.Context) (locator.Node, error) {
	doc, err := s.Document(ctx)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (h *Handle) reacquire(ctx context.Context) error {
	var obj *runtime.RemoteObject
	if err := h.exec.RunActions(ctx, chromedp.Evaluate("document", &obj)); err != nil {
		return fmt.Errorf("session: resolving document: %w", err)
	}
	h.mu.Lock()
	h.id, h.desc, h.backend = obj.ObjectID, "#document", 0
	h.mu.Unlock()
	return nil
}

func (h *Handle) objectID() runtime.RemoteObjectID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id
}

// isStaleObject reports errors raised for objects whose execution context is gone.
func isStaleObject(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Cannot find context with specified id") ||
		strings.Contains(msg, "Could not find object with given id") ||
		strings.Contains(msg, "Execution context was destroyed")
}

// do runs fn against the handle's object. A document handle that went stale is
// refreshed and fn retried once.
func (h *Handle) do(ctx context.Context, fn func(ctx context.Context, id runtime.RemoteObjectID) error) error {
	run := func() error {
		id := h.objectID()
		return h.exec.RunActions(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			return fn(ctx, id)
		}))
	}
	err := run()
	if !h.document || !isStaleObject(err) {
		return err
	}
	if rerr := h.reacquire(ctx); rerr != nil {
		return errors.Join(err, rerr)
	}
	return run()
}

func (h *Handle) call(ctx context.Context, fn string, byValue bool, args ...any) (*runtime.RemoteObject, error) {
	cargs := make([]*runtime.CallArgument, 0, len(args))
	for _, a := range args {
		if other, ok := a.(*Handle); ok {
			cargs = append(cargs, &runtime.CallArgument{ObjectID: other.objectID()})
			continue
		}
		b, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("session: encoding argument: %w", err)
		}
		cargs = append(cargs, &runtime.CallArgument{Value: b})
	}

	var res *runtime.RemoteObject
	err := h.do(ctx, func(ctx context.Context, id runtime.RemoteObjectID) error {
		obj, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(id).
			WithArguments(cargs).
			WithReturnByValue(byValue).
			WithAwaitPromise(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		res = obj
		return nil
	})
	return res, err
}

func (h *Handle) callValue(ctx context.Context, fn string, out any, args ...any) error {
	res, err := h.call(ctx, fn, true, args...)
	if err != nil {
		return err
	}
	if out == nil || len(res.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Value, out); err != nil {
		return fmt.Errorf("session: decoding result of %s: %w", h, err)
	}
	return nil
}

// queryAll calls a function returning an array of nodes and splits it into handles.
func (h *Handle) queryAll(ctx context.Context, fn string, args ...any) ([]locator.Node, error) {
	arr, err := h.call(ctx, fn, false, args...)
	if err != nil {
		return nil, err
	}
	if arr.ObjectID == "" {
		return nil, nil
	}

	type indexed struct {
		i   int
		obj *runtime.RemoteObject
	}
	var items []indexed
	err = h.exec.RunActions(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		props, _, _, exc, err := runtime.GetProperties(arr.ObjectID).WithOwnProperties(true).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		for _, p := range props {
			i, convErr := strconv.Atoi(p.Name)
			if convErr != nil || p.Value == nil || p.Value.ObjectID == "" {
				continue
			}
			items = append(items, indexed{i, p.Value})
		}
		return runtime.ReleaseObject(arr.ObjectID).Do(ctx)
	}))
	if err != nil {
		return nil, err
	}

	slices.SortFunc(items, func(a, b indexed) int { return a.i - b.i })
	nodes := make([]locator.Node, len(items))
	for k, it := range items {
		nodes[k] = newHandle(h.exec, it.obj)
	}
	return nodes, nil
}

func (h *Handle) QuerySelectorAll(ctx context.Context, selector string) ([]locator.Node, error) {
	return h.queryAll(ctx, jsQuerySelectorAll, selector)
}

func (h *Handle) QueryXPath(ctx context.Context, expr string) ([]locator.Node, error) {
	return h.queryAll(ctx, jsQueryXPath, expr)
}

func (h *Handle) QueryText(ctx context.Context, text string) ([]locator.Node, error) {
	return h.queryAll(ctx, jsQueryText, text)
}

func (h *Handle) QueryPierce(ctx context.Context, selector string) ([]locator.Node, error) {
	return h.queryAll(ctx, jsQueryPierce, selector)
}

// QueryAccessible searches the accessibility tree under the handle. The tree is
// composed, so matches inside shadow roots are included.
func (h *Handle) QueryAccessible(ctx context.Context, name, role string) ([]locator.Node, error) {
	var out []locator.Node
	err := h.do(ctx, func(ctx context.Context, id runtime.RemoteObjectID) error {
		out = out[:0]
		p := accessibility.QueryAXTree().WithObjectID(id)
		if name != "" {
			p = p.WithAccessibleName(name)
		}
		if role != "" {
			p = p.WithRole(role)
		}
		found, err := p.Do(ctx)
		if err != nil {
			return err
		}
		for _, n := range found {
			if n.Ignored || n.BackendDOMNodeID == 0 || isTextRole(n.Role) {
				continue
			}
			obj, err := dom.ResolveNode().WithBackendNodeID(n.BackendDOMNodeID).Do(ctx)
			if err != nil {
				return err
			}
			hd := newHandle(h.exec, obj)
			hd.backend = n.BackendDOMNodeID
			out = append(out, hd)
		}
		return nil
	})
	return out, err
}

// isTextRole filters the text leaves that share their parent's accessible name.
func isTextRole(v *accessibility.Value) bool {
	if v == nil || len(v.Value) == 0 {
		return false
	}
	var role string
	if err := json.Unmarshal(v.Value, &role); err != nil {
		return false
	}
	return role == "StaticText" || role == "InlineTextBox"
}

func (h *Handle) ShadowRoot(ctx context.Context) (locator.Node, error) {
	res, err := h.call(ctx, jsShadowRoot, false)
	if err != nil {
		return nil, err
	}
	if res.ObjectID == "" || res.Subtype == runtime.SubtypeNull {
		return nil, nil
	}
	root := newHandle(h.exec, res)
	root.desc = "#shadow-root"
	return root, nil
}

func (h *Handle) IsConnected(ctx context.Context) (bool, error) {
	var connected bool
	err := h.callValue(ctx, jsIsConnected, &connected)
	if isStaleObject(err) {
		// The node's document is gone.
		return false, nil
	}
	return connected, err
}

func (h *Handle) IsVisible(ctx context.Context) (bool, error) {
	var visible bool
	err := h.callValue(ctx, jsIsVisible, &visible)
	if isStaleObject(err) {
		return false, nil
	}
	return visible, err
}

func (h *Handle) IntersectsViewport(ctx context.Context, threshold float64) (bool, error) {
	var in bool
	err := h.callValue(ctx, jsIntersectsViewport, &in, threshold)
	return in, err
}

func (h *Handle) ScrollIntoView(ctx context.Context) error {
	_, err := h.call(ctx, jsScrollIntoView, true)
	return err
}

// Same compares backend node ids, which are stable across remote object wrappers.
func (h *Handle) Same(other locator.Node) bool {
	o, ok := other.(*Handle)
	if !ok {
		return false
	}
	if o == h || o.objectID() == h.objectID() {
		return true
	}
	a, b := h.backendNodeID(), o.backendNodeID()
	return a != 0 && a == b
}

func (h *Handle) backendNodeID() cdp.BackendNodeID {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.backend != 0 {
		return h.backend
	}
	var backend cdp.BackendNodeID
	id := h.id
	err := h.exec.RunBackgroundActions(context.Background(), chromedp.ActionFunc(func(ctx context.Context) error {
		n, err := dom.DescribeNode().WithObjectID(id).Do(ctx)
		if err != nil {
			return err
		}
		backend = n.BackendNodeID
		return nil
	}))
	if err == nil {
		h.backend = backend
	}
	return h.backend
}

func (h *Handle) String() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.desc == "" {
		return string(h.id)
	}
	return h.desc
}

type box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (h *Handle) boundingBox(ctx context.Context) (box, error) {
	var b box
	if err := h.callValue(ctx, jsBoundingBox, &b); err != nil {
		return b, fmt.Errorf("session: measuring %s: %w", h, err)
	}
	return b, nil
}

func asHandle(n locator.Node) (*Handle, error) {
	h, ok := n.(*Handle)
	if !ok || h == nil {
		return nil, fmt.Errorf("%w: %T", ErrForeignNode, n)
	}
	return h, nil
}
