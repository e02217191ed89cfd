// internal/browser/shadowdom/shadowdom.go
package shadowdom

import (
	"strings"

	"golang.org/x/net/html"
)

// BoundaryData marks the synthetic node that stands in for a shadow root.
const BoundaryData = "shadow-root-boundary"

// Mode mirrors ShadowRoot.mode.
type Mode string

const (
	ModeOpen   Mode = "open"
	ModeClosed Mode = "closed"
)

// Root is an instantiated declarative shadow root.
type Root struct {
	Host *html.Node
	// Node is a DocumentNode holding the shadow tree, so queries rooted at it stay
	// inside the boundary.
	Node *html.Node
	Mode Mode
}

// Engine turns <template shadowrootmode> children into detached shadow trees.
type Engine struct{}

// DetectShadowHost reports whether host has a direct <template shadowrootmode> child.
func (Engine) DetectShadowHost(host *html.Node) bool {
	return declarativeTemplate(host) != nil
}

// InstantiateShadowRoot moves the template's content into a new boundary node and
// removes the template from the light tree. Templates nested in the content stay
// inert; callers instantiate them by walking the returned tree.
func (Engine) InstantiateShadowRoot(host *html.Node) *Root {
	tmpl := declarativeTemplate(host)
	if tmpl == nil {
		return nil
	}

	mode := ModeOpen
	if strings.EqualFold(strings.TrimSpace(getAttr(tmpl, "shadowrootmode")), string(ModeClosed)) {
		mode = ModeClosed
	}

	boundary := &html.Node{Type: html.DocumentNode, Data: BoundaryData}
	for c := tmpl.FirstChild; c != nil; {
		next := c.NextSibling
		tmpl.RemoveChild(c)
		boundary.AppendChild(c)
		c = next
	}
	host.RemoveChild(tmpl)

	return &Root{Host: host, Node: boundary, Mode: mode}
}

// InstantiateAll walks root depth-first and instantiates every declarative shadow
// root it finds, including the ones nested inside other shadow trees.
func (e Engine) InstantiateAll(root *html.Node) []*Root {
	var roots []*Root
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "template" {
			return
		}
		if n.Type == html.ElementNode {
			if sr := e.InstantiateShadowRoot(n); sr != nil {
				roots = append(roots, sr)
				walk(sr.Node)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return roots
}

func declarativeTemplate(host *html.Node) *html.Node {
	if host == nil || host.Type != html.ElementNode {
		return nil
	}
	for c := host.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "template" && hasAttr(c, "shadowrootmode") {
			return c
		}
	}
	return nil
}

func getAttr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return true
		}
	}
	return false
}
