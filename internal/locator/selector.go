// internal/locator/selector.go
package locator

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// ChainSeparator joins the segments of a chain in diagnostics and on the command line.
const ChainSeparator = ">>"

// Selector is one segment of a chain. Each implementation maps onto a single Node query.
type Selector interface {
	Query(ctx context.Context, scope Node) ([]Node, error)
	String() string
}

// CSS matches descendants with a CSS selector.
type CSS string

func (s CSS) Query(ctx context.Context, scope Node) ([]Node, error) {
	return scope.QuerySelectorAll(ctx, string(s))
}

func (s CSS) String() string { return string(s) }

// XPath matches nodes with an XPath expression evaluated against the scope.
type XPath string

func (s XPath) Query(ctx context.Context, scope Node) ([]Node, error) {
	return scope.QueryXPath(ctx, string(s))
}

func (s XPath) String() string { return "xpath/" + string(s) }

// Text matches the innermost elements containing the given text.
type Text string

func (s Text) Query(ctx context.Context, scope Node) ([]Node, error) {
	return scope.QueryText(ctx, string(s))
}

func (s Text) String() string { return "text/" + string(s) }

// Pierce is a CSS query that ignores shadow boundaries below the scope.
type Pierce string

func (s Pierce) Query(ctx context.Context, scope Node) ([]Node, error) {
	return scope.QueryPierce(ctx, string(s))
}

func (s Pierce) String() string { return "pierce/" + string(s) }

// ARIA matches by computed accessible name and, optionally, role.
type ARIA struct {
	Name string
	Role string
}

func (s ARIA) Query(ctx context.Context, scope Node) ([]Node, error) {
	return scope.QueryAccessible(ctx, s.Name, s.Role)
}

func (s ARIA) String() string {
	if s.Role == "" {
		return "aria/" + s.Name
	}
	return fmt.Sprintf("aria/%s[role=%q]", s.Name, s.Role)
}

var ariaRoleSuffix = regexp.MustCompile(`\[role=["']?([A-Za-z-]+)["']?\]$`)

// Parse converts recorder selector text into a Selector. Prefixes "aria/", "xpath/",
// "text/" and "pierce/" select the query kind; anything else is CSS.
func Parse(raw string) (Selector, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("%w: empty segment", ErrInvalidSelector)
	}

	prefix, rest, found := strings.Cut(s, "/")
	if !found {
		return CSS(s), nil
	}

	switch prefix {
	case "aria":
		aria := ARIA{Name: rest}
		if m := ariaRoleSuffix.FindStringSubmatchIndex(rest); m != nil {
			aria.Role = rest[m[2]:m[3]]
			aria.Name = rest[:m[0]]
		}
		aria.Name = strings.TrimSpace(aria.Name)
		if aria.Name == "" {
			return nil, fmt.Errorf("%w: %q has no accessible name", ErrInvalidSelector, raw)
		}
		return aria, nil
	case "xpath":
		if strings.TrimSpace(rest) == "" {
			return nil, fmt.Errorf("%w: %q has no expression", ErrInvalidSelector, raw)
		}
		return XPath(rest), nil
	case "text":
		if rest == "" {
			return nil, fmt.Errorf("%w: %q has no text", ErrInvalidSelector, raw)
		}
		return Text(rest), nil
	case "pierce":
		if strings.TrimSpace(rest) == "" {
			return nil, fmt.Errorf("%w: %q has no selector", ErrInvalidSelector, raw)
		}
		return Pierce(rest), nil
	}
	// A slash inside a CSS attribute value, e.g. a[href="/login"].
	return CSS(s), nil
}

// Chain is a path through possibly shadow-encapsulated elements. Every segment but the
// last descends into the matched element's shadow root when it has one.
type Chain []Selector

// ParseChain parses each segment. An empty input yields an empty chain, which the
// resolver rejects with ErrEmptySelector.
func ParseChain(segments []string) (Chain, error) {
	chain := make(Chain, 0, len(segments))
	for i, seg := range segments {
		sel, err := Parse(seg)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i+1, err)
		}
		chain = append(chain, sel)
	}
	return chain, nil
}

// ParseChainString splits "host >> inner" style text into a chain.
func ParseChainString(s string) (Chain, error) {
	return ParseChain(strings.Split(s, ChainSeparator))
}

func (c Chain) String() string {
	parts := make([]string, len(c))
	for i, sel := range c {
		parts[i] = sel.String()
	}
	return strings.Join(parts, ChainSeparator)
}

// Strategies are alternative chains for the same logical element, most preferred first.
type Strategies []Chain

// ParseStrategies parses the nested string form used by recorded flows.
func ParseStrategies(raw [][]string) (Strategies, error) {
	out := make(Strategies, 0, len(raw))
	for i, segs := range raw {
		chain, err := ParseChain(segs)
		if err != nil {
			return nil, fmt.Errorf("strategy %d: %w", i+1, err)
		}
		out = append(out, chain)
	}
	return out, nil
}

// MustStrategies is ParseStrategies for static tables; it panics on malformed input.
func MustStrategies(raw ...[]string) Strategies {
	s, err := ParseStrategies(raw)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Strategies) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = "[" + c.String() + "]"
	}
	return strings.Join(parts, ", ")
}
