// internal/locator/errors.go
package locator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/meterpost/internal/wait"
)

var (
	// ErrTimeout is re-exported so callers only need this package to classify failures.
	ErrTimeout = wait.ErrTimeout
	// ErrNotFound means a chain segment matched no element.
	ErrNotFound = errors.New("locator: element not found")
	// ErrEmptySelector means a selector chain with zero segments reached the resolver.
	ErrEmptySelector = errors.New("locator: empty selector chain")
	// ErrAllSelectorsFailed means every strategy in a selector list was exhausted.
	ErrAllSelectorsFailed = errors.New("locator: all selector strategies failed")
	// ErrInvalidSelector is returned by the parsers for malformed selector text.
	ErrInvalidSelector = errors.New("locator: invalid selector")
	// ErrInvalidOperator is returned for count comparators other than ==, >= and <=.
	ErrInvalidOperator = errors.New("locator: invalid count operator")
)

// NotFoundError carries the chain that failed to resolve.
type NotFoundError struct {
	Path    string
	Segment int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("locator: could not find element: %s (segment %d)", e.Path, e.Segment+1)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AllSelectorsFailedError lists every attempted chain with the reason it failed,
// in the order the chains were tried.
type AllSelectorsFailedError struct {
	Chains Strategies
	Errs   []error
}

func (e *AllSelectorsFailedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "locator: could not find element for selectors %s", e.Chains)
	for i, err := range e.Errs {
		if i < len(e.Chains) {
			fmt.Fprintf(&b, "\n  [%d] %s: %v", i+1, e.Chains[i], err)
		} else {
			fmt.Fprintf(&b, "\n  [%d] %v", i+1, err)
		}
	}
	return b.String()
}

func (e *AllSelectorsFailedError) Is(target error) bool {
	return target == ErrAllSelectorsFailed
}

func (e *AllSelectorsFailedError) Unwrap() []error {
	return e.Errs
}
