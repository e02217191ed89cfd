// internal/browser/session/input.go
package session

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/meterpost/internal/locator"
)

// Per-event budgets for raw input dispatch.
const (
	mouseTimeout = 10 * time.Second
	keyTimeout   = 5 * time.Second
)

// ErrUnknownKey is returned for key names that have no keyboard definition.
var ErrUnknownKey = errors.New("session: unknown key")

var keysByName = func() map[string]rune {
	m := make(map[string]rune, len(kb.Keys))
	for r, k := range kb.Keys {
		// Prefer the unshifted rune when several share a key name.
		if prev, ok := m[k.Key]; !ok || (!k.Shift && kb.Keys[prev].Shift) {
			m[k.Key] = r
		}
	}
	return m
}()

// lookupKey resolves a DOM key value ("Enter", "Tab", "a") to its key events.
func lookupKey(name string) ([]*input.DispatchKeyEventParams, error) {
	r, ok := keysByName[name]
	if !ok && utf8.RuneCountInString(name) == 1 {
		r, _ = utf8.DecodeRuneInString(name)
		ok = true
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, name)
	}
	return kb.Encode(r), nil
}

// KeyDown dispatches the key-down half (and the char event for printable keys).
func (s *Session) KeyDown(ctx context.Context, key string) error {
	events, err := lookupKey(key)
	if err != nil {
		return err
	}
	var actions []chromedp.Action
	for _, ev := range events {
		if ev.Type != input.KeyUp {
			actions = append(actions, ev)
		}
	}
	return s.dispatchKeys(ctx, key, actions)
}

// KeyUp dispatches the key-up half.
func (s *Session) KeyUp(ctx context.Context, key string) error {
	events, err := lookupKey(key)
	if err != nil {
		return err
	}
	var actions []chromedp.Action
	for _, ev := range events {
		if ev.Type == input.KeyUp {
			actions = append(actions, ev)
		}
	}
	return s.dispatchKeys(ctx, key, actions)
}

// PressKey sends a full down and up sequence.
func (s *Session) PressKey(ctx context.Context, key string) error {
	events, err := lookupKey(key)
	if err != nil {
		return err
	}
	actions := make([]chromedp.Action, len(events))
	for i, ev := range events {
		actions[i] = ev
	}
	return s.dispatchKeys(ctx, key, actions)
}

func (s *Session) dispatchKeys(ctx context.Context, key string, actions []chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(ctx, keyTimeout)
	defer cancel()

	err := s.RunActions(opCtx, actions...)
	if err != nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		s.logger.Debug("Key dispatch timed out.", zap.String("key", key), zap.Duration("timeout", keyTimeout))
		return fmt.Errorf("session: timeout dispatching key %q after %v: %w", key, keyTimeout, opCtx.Err())
	}
	if err != nil {
		return fmt.Errorf("session: dispatching key %q: %w", key, err)
	}
	return nil
}

// ClickAt clicks at an offset from the node's top-left corner, or at its centre
// when both offsets are zero. clickCount 2 is a double click.
func (s *Session) ClickAt(ctx context.Context, n locator.Node, offsetX, offsetY float64, clickCount int) error {
	h, err := asHandle(n)
	if err != nil {
		return err
	}
	b, err := h.boundingBox(ctx)
	if err != nil {
		return err
	}
	if clickCount < 1 {
		clickCount = 1
	}
	if offsetX == 0 && offsetY == 0 {
		offsetX, offsetY = b.Width/2, b.Height/2
	}
	x, y := b.X+offsetX, b.Y+offsetY

	opCtx, cancel := context.WithTimeout(ctx, mouseTimeout)
	defer cancel()

	s.logger.Debug("Clicking.", zap.Stringer("node", h), zap.Float64("x", x), zap.Float64("y", y), zap.Int("count", clickCount))
	if err := s.RunActions(opCtx, chromedp.MouseClickXY(x, y, chromedp.ClickCount(clickCount))); err != nil {
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("session: click on %s timed out after %v: %w", h, mouseTimeout, opCtx.Err())
		}
		return fmt.Errorf("session: clicking %s: %w", h, err)
	}
	return nil
}

// Focus moves keyboard focus to the node.
func (s *Session) Focus(ctx context.Context, n locator.Node) error {
	h, err := asHandle(n)
	if err != nil {
		return err
	}
	if _, err := h.call(ctx, jsFocus, true); err != nil {
		return fmt.Errorf("session: focusing %s: %w", h, err)
	}
	return nil
}

// TypeText focuses the node and types text one key at a time, paced by the
// configured typing delay.
func (s *Session) TypeText(ctx context.Context, n locator.Node, text string) error {
	if err := s.Focus(ctx, n); err != nil {
		return err
	}
	for _, r := range text {
		if err := s.typing.Wait(ctx); err != nil {
			return err
		}
		if err := s.RunActions(ctx, chromedp.KeyEvent(string(r))); err != nil {
			return fmt.Errorf("session: typing into %s: %w", n, err)
		}
	}
	return nil
}

// Fill replaces the node's value. Text-like inputs are cleared and typed into;
// other controls get their value set with input and change events.
func (s *Session) Fill(ctx context.Context, n locator.Node, value string) error {
	h, err := asHandle(n)
	if err != nil {
		return err
	}
	var mode string
	if err := h.callValue(ctx, jsFillMode, &mode); err != nil {
		return fmt.Errorf("session: inspecting %s: %w", h, err)
	}

	if mode == "type" {
		if _, err := h.call(ctx, jsClearValue, true); err != nil {
			return fmt.Errorf("session: clearing %s: %w", h, err)
		}
		return s.TypeText(ctx, h, value)
	}
	if _, err := h.call(ctx, jsSetValue, true, value); err != nil {
		return fmt.Errorf("session: setting value of %s: %w", h, err)
	}
	return nil
}
