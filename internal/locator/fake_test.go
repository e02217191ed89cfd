// internal/locator/fake_test.go
package locator

import (
	"context"
	"fmt"
	"sync"
)

// fakeNode is a scripted Node. Query results are keyed by "<kind>:<argument>".
type fakeNode struct {
	name string

	mu        sync.Mutex
	results   map[string][]Node
	queryErr  error
	shadow    *fakeNode
	connected bool
	visible   bool
	inView    bool
	// scrollBrings controls whether ScrollIntoView makes the node intersect.
	scrollBrings bool

	queries        []string
	scrolls        int
	viewportChecks int
}

func newFake(name string) *fakeNode {
	return &fakeNode{
		name:         name,
		results:      map[string][]Node{},
		connected:    true,
		visible:      true,
		inView:       true,
		scrollBrings: true,
	}
}

func (f *fakeNode) on(key string, nodes ...Node) *fakeNode {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[key] = nodes
	return f
}

func (f *fakeNode) query(key string) ([]Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, key)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return append([]Node(nil), f.results[key]...), nil
}

func (f *fakeNode) QuerySelectorAll(_ context.Context, s string) ([]Node, error) {
	return f.query("css:" + s)
}

func (f *fakeNode) QueryXPath(_ context.Context, s string) ([]Node, error) {
	return f.query("xpath:" + s)
}

func (f *fakeNode) QueryAccessible(_ context.Context, name, role string) ([]Node, error) {
	return f.query(fmt.Sprintf("aria:%s|%s", name, role))
}

func (f *fakeNode) QueryText(_ context.Context, s string) ([]Node, error) {
	return f.query("text:" + s)
}

func (f *fakeNode) QueryPierce(_ context.Context, s string) ([]Node, error) {
	return f.query("pierce:" + s)
}

func (f *fakeNode) ShadowRoot(context.Context) (Node, error) {
	if f.shadow == nil {
		return nil, nil
	}
	return f.shadow, nil
}

func (f *fakeNode) IsConnected(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected, nil
}

func (f *fakeNode) IsVisible(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible, nil
}

func (f *fakeNode) IntersectsViewport(context.Context, float64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewportChecks++
	return f.inView, nil
}

func (f *fakeNode) ScrollIntoView(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrolls++
	if f.scrollBrings {
		f.inView = true
	}
	return nil
}

func (f *fakeNode) Same(other Node) bool {
	o, ok := other.(*fakeNode)
	return ok && o == f
}

func (f *fakeNode) String() string { return f.name }

func (f *fakeNode) setConnected(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = v
}

func (f *fakeNode) stats() (queries []string, scrolls, viewportChecks int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...), f.scrolls, f.viewportChecks
}
