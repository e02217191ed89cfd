// Package flow models recorded browser flows and replays them against a page.
//
// The on-disk format is the Chrome DevTools Recorder export (JSON), with YAML
// accepted as an equivalent spelling. One extension step, fillRow, covers forms
// laid out as tables where each row is keyed by some visible text.
package flow

import (
	"time"

	"github.com/xkilldash9x/meterpost/internal/locator"
)

// StepType names a step kind.
type StepType string

const (
	StepSetViewport       StepType = "setViewport"
	StepNavigate          StepType = "navigate"
	StepClick             StepType = "click"
	StepDoubleClick       StepType = "doubleClick"
	StepChange            StepType = "change"
	StepKeyDown           StepType = "keyDown"
	StepKeyUp             StepType = "keyUp"
	StepScroll            StepType = "scroll"
	StepWaitForElement    StepType = "waitForElement"
	StepWaitForExpression StepType = "waitForExpression"
	StepClose             StepType = "close"
	StepFillRow           StepType = "fillRow"
)

var knownSteps = map[StepType]bool{
	StepSetViewport:       true,
	StepNavigate:          true,
	StepClick:             true,
	StepDoubleClick:       true,
	StepChange:            true,
	StepKeyDown:           true,
	StepKeyUp:             true,
	StepScroll:            true,
	StepWaitForElement:    true,
	StepWaitForExpression: true,
	StepClose:             true,
	StepFillRow:           true,
}

// MainTarget is the only target a flow may address.
const MainTarget = "main"

// Flow is a titled sequence of steps.
type Flow struct {
	Title string `json:"title" yaml:"title"`
	// Timeout is the default per-step budget in milliseconds.
	Timeout int    `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Steps   []Step `json:"steps" yaml:"steps"`
}

// Step is one recorded action. Which fields apply depends on Type.
type Step struct {
	Type   StepType `json:"type" yaml:"type"`
	Target string   `json:"target,omitempty" yaml:"target,omitempty"`
	// Timeout overrides the flow timeout for this step, in milliseconds.
	Timeout int `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Selectors is a list of alternative chains; each chain crosses shadow roots.
	Selectors [][]string `json:"selectors,omitempty" yaml:"selectors,omitempty"`

	// click, doubleClick
	OffsetX float64 `json:"offsetX,omitempty" yaml:"offsetX,omitempty"`
	OffsetY float64 `json:"offsetY,omitempty" yaml:"offsetY,omitempty"`

	// change
	Value string `json:"value,omitempty" yaml:"value,omitempty"`

	// keyDown, keyUp
	Key string `json:"key,omitempty" yaml:"key,omitempty"`

	// navigate
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// scroll
	X float64 `json:"x,omitempty" yaml:"x,omitempty"`
	Y float64 `json:"y,omitempty" yaml:"y,omitempty"`

	// setViewport
	Width             int64   `json:"width,omitempty" yaml:"width,omitempty"`
	Height            int64   `json:"height,omitempty" yaml:"height,omitempty"`
	DeviceScaleFactor float64 `json:"deviceScaleFactor,omitempty" yaml:"deviceScaleFactor,omitempty"`
	IsMobile          bool    `json:"isMobile,omitempty" yaml:"isMobile,omitempty"`
	HasTouch          bool    `json:"hasTouch,omitempty" yaml:"hasTouch,omitempty"`
	IsLandscape       bool    `json:"isLandscape,omitempty" yaml:"isLandscape,omitempty"`

	// waitForElement
	Count    *int   `json:"count,omitempty" yaml:"count,omitempty"`
	Operator string `json:"operator,omitempty" yaml:"operator,omitempty"`
	Visible  *bool  `json:"visible,omitempty" yaml:"visible,omitempty"`

	// waitForExpression
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`

	// fillRow
	Row    string  `json:"row,omitempty" yaml:"row,omitempty"`
	Fields []Field `json:"fields,omitempty" yaml:"fields,omitempty"`

	AssertedEvents []AssertedEvent `json:"assertedEvents,omitempty" yaml:"assertedEvents,omitempty"`
}

// Field is one input inside a fillRow row.
type Field struct {
	// Selector is a chain evaluated relative to the row.
	Selector []string `json:"selector" yaml:"selector"`
	Value    string   `json:"value" yaml:"value"`
}

// AssertedEvent is an expectation recorded alongside a step.
type AssertedEvent struct {
	Type  string `json:"type" yaml:"type"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
}

// Strategies parses the step's selector chains.
func (s Step) Strategies() (locator.Strategies, error) {
	return locator.ParseStrategies(s.Selectors)
}

// ExpectsNavigation reports whether the step was recorded as causing a page load.
func (s Step) ExpectsNavigation() bool {
	for _, ev := range s.AssertedEvents {
		if ev.Type == "navigation" {
			return true
		}
	}
	return false
}

// CountSpec is the waitForElement condition. Without a count the step waits for
// a single (by default visible) element.
func (s Step) CountSpec() (locator.CountSpec, bool, error) {
	if s.Count == nil && s.Operator == "" {
		return locator.CountSpec{}, false, nil
	}
	op := locator.OpAtLeast
	if s.Operator != "" {
		parsed, err := locator.ParseOperator(s.Operator)
		if err != nil {
			return locator.CountSpec{}, true, err
		}
		op = parsed
	}
	count := 1
	if s.Count != nil {
		count = *s.Count
	}
	return locator.CountSpec{Count: count, Operator: op}, true, nil
}

// IsVisible reports the recorded visibility requirement, true when unset.
func (s Step) IsVisible() bool {
	return s.Visible == nil || *s.Visible
}

func (s Step) timeout() time.Duration {
	return time.Duration(s.Timeout) * time.Millisecond
}
