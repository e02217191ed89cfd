// internal/browser/static/aria.go
package static

import (
	"strings"

	"golang.org/x/net/html"
)

// Roles whose accessible name may be computed from their content.
var nameFromContent = map[string]bool{
	"button": true, "link": true, "heading": true, "cell": true, "gridcell": true,
	"columnheader": true, "rowheader": true, "menuitem": true, "menuitemcheckbox": true,
	"menuitemradio": true, "option": true, "tab": true, "treeitem": true, "tooltip": true,
	"checkbox": true, "radio": true, "switch": true,
}

// ariaRole returns the explicit or implicit role of an element, or "" for elements
// that never enter the accessibility tree.
func ariaRole(n *html.Node) string {
	if explicit := strings.Fields(attr(n, "role")); len(explicit) > 0 {
		return strings.ToLower(explicit[0])
	}

	switch n.Data {
	case "a", "area":
		if hasAttr(n, "href") {
			return "link"
		}
		return "generic"
	case "button":
		return "button"
	case "input":
		switch strings.ToLower(attr(n, "type")) {
		case "button", "submit", "reset", "image":
			return "button"
		case "checkbox":
			return "checkbox"
		case "radio":
			return "radio"
		case "range":
			return "slider"
		case "number":
			return "spinbutton"
		case "search":
			return "searchbox"
		case "hidden":
			return ""
		default:
			return "textbox"
		}
	case "textarea":
		return "textbox"
	case "select":
		if hasAttr(n, "multiple") {
			return "listbox"
		}
		return "combobox"
	case "option":
		return "option"
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return "heading"
	case "img":
		if hasAttr(n, "alt") && attr(n, "alt") == "" {
			return "presentation"
		}
		return "img"
	case "table":
		return "table"
	case "tr":
		return "row"
	case "td":
		return "cell"
	case "th":
		return "columnheader"
	case "ul", "ol":
		return "list"
	case "li":
		return "listitem"
	case "nav":
		return "navigation"
	case "main":
		return "main"
	case "form":
		return "form"
	case "dialog":
		return "dialog"
	case "p":
		return "paragraph"
	case "label":
		return "LabelText"
	case "html", "head", "body", "script", "style", "template", "meta", "link", "title", "noscript":
		return ""
	}
	return "generic"
}

// accessibleName is a reduced form of the accname algorithm: aria-labelledby,
// aria-label, native labels, alt text, content for roles that allow it, then
// title and placeholder.
func (d *Document) accessibleName(n *html.Node) string {
	if ids := strings.Fields(attr(n, "aria-labelledby")); len(ids) > 0 {
		scope := d.treeRoot(n)
		var parts []string
		for _, id := range ids {
			if ref := findByID(scope, id); ref != nil {
				parts = append(parts, d.composedText(ref))
			}
		}
		if name := normalizeSpace(strings.Join(parts, " ")); name != "" {
			return name
		}
	}
	if label := normalizeSpace(attr(n, "aria-label")); label != "" {
		return label
	}

	switch n.Data {
	case "input", "textarea", "select":
		typ := strings.ToLower(attr(n, "type"))
		switch typ {
		case "button", "submit", "reset":
			if v := normalizeSpace(attr(n, "value")); v != "" {
				return v
			}
			switch typ {
			case "submit":
				return "Submit"
			case "reset":
				return "Reset"
			}
		case "image":
			if alt := normalizeSpace(attr(n, "alt")); alt != "" {
				return alt
			}
		default:
			if label := d.nativeLabel(n); label != "" {
				return label
			}
		}
	case "img", "area":
		if alt := normalizeSpace(attr(n, "alt")); alt != "" {
			return alt
		}
	}

	if nameFromContent[ariaRole(n)] {
		if text := normalizeSpace(d.composedText(n)); text != "" {
			return text
		}
	}
	if title := normalizeSpace(attr(n, "title")); title != "" {
		return title
	}
	return normalizeSpace(attr(n, "placeholder"))
}

// nativeLabel finds a <label for=id> in the same tree scope or an enclosing <label>.
func (d *Document) nativeLabel(n *html.Node) string {
	if id := attr(n, "id"); id != "" {
		var found *html.Node
		walkLight(d.treeRoot(n), func(c *html.Node) bool {
			if c.Type == html.ElementNode && c.Data == "label" && attr(c, "for") == id {
				found = c
				return false
			}
			return true
		})
		if found != nil {
			return normalizeSpace(d.composedText(found))
		}
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "label" {
			return normalizeSpace(d.composedText(p))
		}
	}
	return ""
}

// isAccessibilityHidden reports whether n or a composed ancestor is excluded from
// the accessibility tree.
func (d *Document) isAccessibilityHidden(n *html.Node) bool {
	for cur := n; cur != nil; cur = d.composedParent(cur) {
		if cur.Type != html.ElementNode {
			continue
		}
		if strings.EqualFold(attr(cur, "aria-hidden"), "true") || isHiddenElement(cur) {
			return true
		}
	}
	return false
}

// treeRoot returns the document or shadow boundary that contains n.
func (d *Document) treeRoot(n *html.Node) *html.Node {
	cur := n
	for cur.Parent != nil {
		cur = cur.Parent
	}
	return cur
}

// walkComposed calls fn for every descendant of root in the composed tree,
// entering open shadow roots before light children.
func (d *Document) walkComposed(root *html.Node, fn func(*html.Node)) {
	for _, c := range d.composedChildren(root) {
		if c.Type == html.ElementNode && c.Data == "template" {
			continue
		}
		fn(c)
		d.walkComposed(c, fn)
	}
}

func (d *Document) composedChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	if shadow := d.openShadow(n); shadow != nil {
		for c := shadow.FirstChild; c != nil; c = c.NextSibling {
			out = append(out, c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

func (d *Document) composedText(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(cur *html.Node) {
		switch cur.Type {
		case html.TextNode:
			b.WriteString(cur.Data)
			return
		case html.ElementNode:
			if isTextless(cur) {
				return
			}
		}
		for _, c := range d.composedChildren(cur) {
			collect(c)
		}
	}
	collect(n)
	return b.String()
}

func walkLight(n *html.Node, fn func(*html.Node) bool) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !fn(c) || !walkLight(c, fn) {
			return false
		}
	}
	return true
}

func findByID(scope *html.Node, id string) *html.Node {
	var found *html.Node
	walkLight(scope, func(c *html.Node) bool {
		if c.Type == html.ElementNode && attr(c, "id") == id {
			found = c
			return false
		}
		return true
	})
	return found
}

func isTextless(n *html.Node) bool {
	switch n.Data {
	case "script", "style", "template", "head", "noscript":
		return true
	}
	return false
}

func isHiddenElement(n *html.Node) bool {
	if hasAttr(n, "hidden") || isTextless(n) {
		return true
	}
	style := strings.ToLower(strings.ReplaceAll(attr(n, "style"), " ", ""))
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

func attr(n *html.Node, key string) string {
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

func removeAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if !strings.EqualFold(a.Key, key) {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
