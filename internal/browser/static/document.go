// internal/browser/static/document.go
package static

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/meterpost/internal/browser/shadowdom"
)

// OffscreenAttr marks an element as lying outside the viewport until it is scrolled to.
const OffscreenAttr = "data-offscreen"

// Document is a parsed HTML page that implements the locator's driver contract
// without a browser. Declarative shadow roots are instantiated at parse time and
// after every mutation.
type Document struct {
	mu      sync.RWMutex
	root    *html.Node
	shadows map[*html.Node]*shadowdom.Root // host -> root
	hosts   map[*html.Node]*html.Node      // boundary -> host
	scrolls int
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("static: parsing document: %w", err)
	}
	d := &Document{
		root:    root,
		shadows: make(map[*html.Node]*shadowdom.Root),
		hosts:   make(map[*html.Node]*html.Node),
	}
	d.instantiate(root)
	return d, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Load parses the file at path.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("static: opening %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Root returns the document node as a locator search context.
func (d *Document) Root() *Node {
	return &Node{doc: d, n: d.root}
}

// Scrolls reports how many ScrollIntoView requests have been issued.
func (d *Document) Scrolls() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.scrolls
}

// Mutate runs fn with exclusive access to the tree. New declarative shadow roots
// that fn inserts are instantiated afterwards.
func (d *Document) Mutate(fn func(root *html.Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.root)
	d.instantiate(d.root)
}

// AppendHTML parses fragment in the context of the first element matching
// selector and appends the result to it.
func (d *Document) AppendHTML(selector, fragment string) error {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return fmt.Errorf("static: invalid selector %q: %w", selector, err)
	}

	var appendErr error
	d.Mutate(func(root *html.Node) {
		parent := cascadia.Query(root, sel)
		if parent == nil {
			appendErr = fmt.Errorf("static: no element matches %q", selector)
			return
		}
		nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
		if err != nil {
			appendErr = fmt.Errorf("static: parsing fragment: %w", err)
			return
		}
		for _, n := range nodes {
			parent.AppendChild(n)
		}
	})
	return appendErr
}

// Remove detaches every element matching selector from the light tree. Handles
// to removed nodes stay valid but report themselves disconnected.
func (d *Document) Remove(selector string) (int, error) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return 0, fmt.Errorf("static: invalid selector %q: %w", selector, err)
	}
	var removed int
	d.Mutate(func(root *html.Node) {
		for _, n := range cascadia.QueryAll(root, sel) {
			if n.Parent != nil {
				n.Parent.RemoveChild(n)
				removed++
			}
		}
	})
	return removed, nil
}

// instantiate must be called with the write lock held (or before publication).
func (d *Document) instantiate(root *html.Node) {
	for _, sr := range (shadowdom.Engine{}).InstantiateAll(root) {
		d.shadows[sr.Host] = sr
		d.hosts[sr.Node] = sr.Host
	}
	// Shadow trees already known may have gained templates too.
	for _, sr := range d.shadowList() {
		for _, nested := range (shadowdom.Engine{}).InstantiateAll(sr.Node) {
			d.shadows[nested.Host] = nested
			d.hosts[nested.Node] = nested.Host
		}
	}
}

func (d *Document) shadowList() []*shadowdom.Root {
	out := make([]*shadowdom.Root, 0, len(d.shadows))
	for _, sr := range d.shadows {
		out = append(out, sr)
	}
	return out
}

// openShadow returns the open shadow root hosted by n, if any.
func (d *Document) openShadow(n *html.Node) *html.Node {
	sr, ok := d.shadows[n]
	if !ok || sr.Mode != shadowdom.ModeOpen {
		return nil
	}
	return sr.Node
}

// connected walks up through shadow boundaries to the document node.
func (d *Document) connected(n *html.Node) bool {
	for cur := n; cur != nil; {
		if cur == d.root {
			return true
		}
		if cur.Parent == nil {
			host, ok := d.hosts[cur]
			if !ok {
				return false
			}
			cur = host
			continue
		}
		cur = cur.Parent
	}
	return false
}

// composedParent is the parent in the flattened tree: a shadow boundary's parent is its host.
func (d *Document) composedParent(n *html.Node) *html.Node {
	if n.Parent != nil {
		return n.Parent
	}
	return d.hosts[n]
}
