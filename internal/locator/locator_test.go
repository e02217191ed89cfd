// internal/locator/locator_test.go
package locator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/meterpost/internal/config"
)

func newTestLocator(t *testing.T) *Locator {
	t.Helper()
	return New(config.LocatorConfig{PollInterval: 10 * time.Millisecond, DefaultTimeout: 100 * time.Millisecond}, zaptest.NewLogger(t))
}

func newObservedLocator() (*Locator, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return New(config.LocatorConfig{PollInterval: 10 * time.Millisecond, DefaultTimeout: 60 * time.Millisecond}, zap.New(core)), logs
}

func TestNew_Defaults(t *testing.T) {
	l := New(config.LocatorConfig{}, nil)
	assert.Equal(t, 100*time.Millisecond, l.PollInterval())
	assert.Equal(t, config.DefaultLocatorTimeout, l.DefaultTimeout())
}

func TestLocate_FirstChainWins(t *testing.T) {
	btn := newFake("button")
	doc := newFake("doc").on("aria:Войти|", btn).on("css:#login-btn", newFake("other"))
	l, logs := newObservedLocator()

	got, err := l.Locate(context.Background(), Strategies{{ARIA{Name: "Войти"}}, {CSS("#login-btn")}}, doc, Options{})
	require.NoError(t, err)
	assert.Same(t, btn, got)
	assert.Zero(t, logs.FilterLevelExact(zapcore.WarnLevel).Len())

	queries, _, _ := doc.stats()
	assert.Equal(t, []string{"aria:Войти|"}, queries, "later strategies are not attempted")
}

func TestLocate_FallsBackAndLogsEarlierFailure(t *testing.T) {
	input := newFake("input#password")
	doc := newFake("doc").on("css:#password", input)
	l, logs := newObservedLocator()

	got, err := l.Locate(context.Background(), Strategies{{ARIA{Name: "Пароль"}}, {CSS("#password")}}, doc, Options{})
	require.NoError(t, err)
	assert.Same(t, input, got)

	warns := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warns, 1)
	fields := warns[0].ContextMap()
	assert.Equal(t, "aria/Пароль", fields["selector"])
	assert.Equal(t, int64(1), fields["attempt"])
	assert.Contains(t, fields["error"], "timed out")
}

func TestLocate_AllSelectorsFailed(t *testing.T) {
	doc := newFake("doc")
	l, logs := newObservedLocator()
	strategies := Strategies{{CSS("#a")}, {CSS("#b")}, {ARIA{Name: "c"}}}

	start := time.Now()
	_, err := l.Locate(context.Background(), strategies, doc, Options{Timeout: 30 * time.Millisecond})
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrAllSelectorsFailed)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, ErrNotFound)

	var all *AllSelectorsFailedError
	require.ErrorAs(t, err, &all)
	assert.Equal(t, strategies, all.Chains)
	assert.Len(t, all.Errs, 3)
	assert.Contains(t, err.Error(), "[#a], [#b], [aria/c]")

	// Each chain gets its own budget, in order.
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
	assert.Equal(t, 3, logs.FilterLevelExact(zapcore.WarnLevel).Len())

	queries, _, _ := doc.stats()
	require.NotEmpty(t, queries)
	assert.Equal(t, "css:#a", queries[0])
	assert.Equal(t, "aria:c|", queries[len(queries)-1])
}

func TestLocate_WaitsForLateElement(t *testing.T) {
	doc := newFake("doc")
	late := newFake("late")
	go func() {
		time.Sleep(30 * time.Millisecond)
		doc.on("css:.late", late)
	}()

	l := newTestLocator(t)
	got, err := l.Locate(context.Background(), Strategies{{CSS(".late")}}, doc, Options{Timeout: time.Second})
	require.NoError(t, err)
	assert.Same(t, late, got)
}

func TestLocate_VisibleOption(t *testing.T) {
	hidden := newFake("hidden")
	hidden.visible = false
	shown := newFake("shown")
	doc := newFake("doc").on("css:#x", hidden).on("css:#y", shown)

	l := newTestLocator(t)
	got, err := l.Locate(context.Background(), Strategies{{CSS("#x")}, {CSS("#y")}}, doc, Options{Visible: true, Timeout: 30 * time.Millisecond})
	require.NoError(t, err)
	assert.Same(t, shown, got)

	_, err = l.Locate(context.Background(), Strategies{{CSS("#x")}}, doc, Options{Visible: true, Timeout: 30 * time.Millisecond})
	require.ErrorIs(t, err, ErrAllSelectorsFailed)
	assert.Contains(t, err.Error(), "not visible")

	got, err = l.Locate(context.Background(), Strategies{{CSS("#x")}}, doc, Options{Timeout: 30 * time.Millisecond})
	require.NoError(t, err)
	assert.Same(t, hidden, got, "visibility is only checked on request")
}

func TestLocate_DriverErrorAbortsChainButNotList(t *testing.T) {
	boom := errors.New("execution context was destroyed")
	broken := newFake("broken-host")
	broken.queryErr = boom
	ok := newFake("ok")
	doc := newFake("doc").on("css:x-broken", broken).on("css:#ok", ok)

	l := newTestLocator(t)
	start := time.Now()
	got, err := l.Locate(context.Background(), Strategies{{CSS("x-broken"), CSS("input")}, {CSS("#ok")}}, doc, Options{Timeout: time.Second})
	require.NoError(t, err)
	assert.Same(t, ok, got)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "a predicate error ends its chain immediately")
}

func TestLocate_EmptyStrategies(t *testing.T) {
	_, err := newTestLocator(t).Locate(context.Background(), nil, newFake("doc"), Options{})
	assert.ErrorIs(t, err, ErrEmptySelector)
}

func TestLocate_EmptyChainIsRecordedAsFailure(t *testing.T) {
	btn := newFake("btn")
	doc := newFake("doc").on("css:button", btn)

	got, err := newTestLocator(t).Locate(context.Background(), Strategies{{}, {CSS("button")}}, doc, Options{})
	require.NoError(t, err)
	assert.Same(t, btn, got)
}

func TestLocate_ContextCancellationStopsList(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	l := newTestLocator(t)
	_, err := l.Locate(ctx, Strategies{{CSS("#a")}, {CSS("#b")}}, newFake("doc"), Options{Timeout: 5 * time.Second})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrAllSelectorsFailed)
}
