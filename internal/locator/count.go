// internal/locator/count.go
package locator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/meterpost/internal/wait"
)

// Operator compares a live element count with a target.
type Operator string

const (
	OpEqual   Operator = "=="
	OpAtLeast Operator = ">="
	OpAtMost  Operator = "<="
)

const defaultOpCount = 1

// ParseOperator accepts the comparator strings used by recorded flows. An empty
// string selects >=.
func ParseOperator(s string) (Operator, error) {
	switch op := Operator(s); op {
	case "":
		return OpAtLeast, nil
	case OpEqual, OpAtLeast, OpAtMost:
		return op, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOperator, s)
	}
}

// CountSpec is the condition for WaitForCount. The zero value means "at least one".
type CountSpec struct {
	Count    int
	Operator Operator
}

func (s CountSpec) normalize() (CountSpec, error) {
	if s.Operator == "" {
		if s.Count == 0 {
			s.Count = defaultOpCount
		}
		s.Operator = OpAtLeast
	}
	if _, err := ParseOperator(string(s.Operator)); err != nil {
		return s, err
	}
	if s.Count < 0 {
		return s, fmt.Errorf("locator: negative target count %d", s.Count)
	}
	return s, nil
}

// Satisfied reports whether n meets the condition, which must already be normalized.
func (s CountSpec) Satisfied(n int) bool {
	switch s.Operator {
	case OpEqual:
		return n == s.Count
	case OpAtMost:
		return n <= s.Count
	default:
		return n >= s.Count
	}
}

func (s CountSpec) String() string {
	return fmt.Sprintf("%s %d", s.Operator, s.Count)
}

// Count returns the number of elements matched by the first chain that matches
// anything at all. Chains are never merged; when nothing matches the count is zero.
func Count(ctx context.Context, strategies Strategies, scope Node) (int, error) {
	for _, chain := range strategies {
		nodes, err := ResolveAll(ctx, chain, []Node{scope})
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return len(nodes), nil
	}
	return 0, nil
}

// WaitForCount polls until the number of elements matching strategies satisfies spec.
func (l *Locator) WaitForCount(ctx context.Context, strategies Strategies, scope Node, spec CountSpec, timeout time.Duration) error {
	spec, err := spec.normalize()
	if err != nil {
		return err
	}
	if len(strategies) == 0 {
		return fmt.Errorf("locator: no selector strategies: %w", ErrEmptySelector)
	}

	last := -1
	err = wait.Poll(ctx, l.interval, l.timeoutOr(timeout), func(ctx context.Context) (bool, error) {
		n, err := Count(ctx, strategies, scope)
		if err != nil {
			return false, err
		}
		last = n
		return spec.Satisfied(n), nil
	})
	if err != nil {
		l.logger.Debug("Element count condition not met.",
			zap.Stringer("selectors", strategies),
			zap.Stringer("condition", spec),
			zap.Int("last_count", last),
			zap.Error(err),
		)
		return fmt.Errorf("locator: waiting for count %s of %s (last %d): %w", spec, strategies, last, err)
	}
	return nil
}
