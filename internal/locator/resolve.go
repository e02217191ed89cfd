// internal/locator/resolve.go
package locator

import (
	"context"
	"errors"
	"fmt"
)

// Resolve walks the chain from scope and returns the first element matched by the
// final segment.
func Resolve(ctx context.Context, chain Chain, scope Node) (Node, error) {
	if len(chain) == 0 {
		return nil, ErrEmptySelector
	}

	current := scope
	last := len(chain) - 1
	for i, sel := range chain {
		matches, err := sel.Query(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("locator: querying %q: %w", sel, err)
		}
		if len(matches) == 0 {
			return nil, &NotFoundError{Path: chain.String(), Segment: i}
		}
		if i == last {
			return matches[0], nil
		}
		if current, err = descend(ctx, matches[0]); err != nil {
			return nil, err
		}
	}
	// Unreachable: the loop returns on the final segment.
	return nil, &NotFoundError{Path: chain.String(), Segment: last}
}

// ResolveAll applies the chain to every scope independently and returns the union of
// the final matches. Candidates whose path dies out are pruned; resolution fails only
// when no candidate survives a segment.
func ResolveAll(ctx context.Context, chain Chain, scopes []Node) ([]Node, error) {
	if len(chain) == 0 {
		return nil, ErrEmptySelector
	}

	candidates := scopes
	last := len(chain) - 1
	for i, sel := range chain {
		var (
			next []Node
			errs []error
		)
		for _, candidate := range candidates {
			matches, err := sel.Query(ctx, candidate)
			if err != nil {
				errs = append(errs, fmt.Errorf("locator: querying %q in %s: %w", sel, candidate, err))
				continue
			}
			for _, m := range matches {
				if i < last {
					inner, err := descend(ctx, m)
					if err != nil {
						errs = append(errs, err)
						continue
					}
					m = inner
				}
				next = appendUnique(next, m)
			}
		}

		if len(next) == 0 {
			if len(errs) > 0 {
				return nil, errors.Join(errs...)
			}
			return nil, &NotFoundError{Path: chain.String(), Segment: i}
		}
		candidates = next
	}
	return candidates, nil
}

// descend returns the shadow root of n if it has one, otherwise n itself.
func descend(ctx context.Context, n Node) (Node, error) {
	root, err := n.ShadowRoot(ctx)
	if err != nil {
		return nil, fmt.Errorf("locator: reading shadow root of %s: %w", n, err)
	}
	if root != nil {
		return root, nil
	}
	return n, nil
}

func appendUnique(nodes []Node, n Node) []Node {
	for _, existing := range nodes {
		if existing.Same(n) {
			return nodes
		}
	}
	return append(nodes, n)
}
