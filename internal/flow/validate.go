// internal/flow/validate.go
package flow

import (
	"errors"
	"fmt"

	"github.com/xkilldash9x/meterpost/internal/locator"
)

// ErrInvalidFlow marks every validation failure.
var ErrInvalidFlow = errors.New("flow: invalid")

// Validate checks step types, selectors and the fields each type requires. All
// problems are reported together.
func (f *Flow) Validate() error {
	var errs []error
	if len(f.Steps) == 0 {
		errs = append(errs, fmt.Errorf("%w: no steps", ErrInvalidFlow))
	}
	if f.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%w: negative timeout %d", ErrInvalidFlow, f.Timeout))
	}
	for i, s := range f.Steps {
		if err := s.validate(); err != nil {
			errs = append(errs, fmt.Errorf("%w: step %d (%s): %w", ErrInvalidFlow, i+1, s.Type, err))
		}
	}
	return errors.Join(errs...)
}

func (s Step) validate() error {
	if !knownSteps[s.Type] {
		return fmt.Errorf("unknown step type %q", s.Type)
	}
	if s.Target != "" && s.Target != MainTarget {
		return fmt.Errorf("unsupported target %q", s.Target)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("negative timeout %d", s.Timeout)
	}

	switch s.Type {
	case StepClick, StepDoubleClick, StepChange, StepWaitForElement, StepFillRow:
		if err := s.requireSelectors(); err != nil {
			return err
		}
	case StepScroll:
		if err := s.checkSelectors(); err != nil {
			return err
		}
	}

	switch s.Type {
	case StepSetViewport:
		if s.Width <= 0 || s.Height <= 0 {
			return errors.New("width and height must be positive")
		}
	case StepNavigate:
		if s.URL == "" {
			return errors.New("url is required")
		}
	case StepKeyDown, StepKeyUp:
		if s.Key == "" {
			return errors.New("key is required")
		}
	case StepWaitForExpression:
		if s.Expression == "" {
			return errors.New("expression is required")
		}
	case StepWaitForElement:
		if _, _, err := s.CountSpec(); err != nil {
			return err
		}
		if s.Count != nil && *s.Count < 0 {
			return fmt.Errorf("negative count %d", *s.Count)
		}
	case StepFillRow:
		if s.Row == "" {
			return errors.New("row is required")
		}
		if len(s.Fields) == 0 {
			return errors.New("at least one field is required")
		}
		for j, fld := range s.Fields {
			if len(fld.Selector) == 0 {
				return fmt.Errorf("field %d: %w", j+1, locator.ErrEmptySelector)
			}
			if _, err := locator.ParseChain(fld.Selector); err != nil {
				return fmt.Errorf("field %d: %w", j+1, err)
			}
		}
	}
	return nil
}

func (s Step) requireSelectors() error {
	if len(s.Selectors) == 0 {
		return errors.New("selectors are required")
	}
	return s.checkSelectors()
}

func (s Step) checkSelectors() error {
	for i, chain := range s.Selectors {
		if len(chain) == 0 {
			return fmt.Errorf("strategy %d: %w", i+1, locator.ErrEmptySelector)
		}
	}
	_, err := s.Strategies()
	return err
}
