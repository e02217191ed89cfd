// internal/browser/static/static_test.go
package static

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/meterpost/internal/locator"
)

const fixture = `<!DOCTYPE html>
<html><head><title>Показания</title></head>
<body>
  <header>
    <button id="login-btn">Войти</button>
    <a href="/help" title="Справка">?</a>
  </header>
  <form name="form.spug1Form">
    <label for="login">Телефон / Email / СНИЛС</label>
    <input id="login" type="text">
    <label>Пароль <input id="password" type="password"></label>
    <input type="hidden" id="csrf" value="x">
    <input type="submit" value="Отправить">
    <table>
      <tr><td>Счётчик 111</td><td><input class="form-control" size="10"></td></tr>
      <tr><td>Счётчик 222</td><td><input class="form-control" size="10"></td></tr>
    </table>
  </form>
  <app-shell id="shell">
    <template shadowrootmode="open">
      <div class="inner"><button aria-label="Закрыть">×</button></div>
      <x-nested id="nested"><template shadowrootmode="open"><span class="deep">deep text</span></template></x-nested>
    </template>
    <p class="light">light child</p>
  </app-shell>
  <x-closed><template shadowrootmode="closed"><button>Hidden away</button></template></x-closed>
  <div id="gone" style="display: none"><button>Невидимая</button></div>
  <div id="far" data-offscreen><button id="far-btn">Сохранить</button></div>
  <div aria-hidden="true"><button>Скрытая</button></div>
</body></html>`

func parseFixture(t *testing.T) (*Document, *Node) {
	t.Helper()
	doc, err := ParseString(fixture)
	require.NoError(t, err)
	return doc, doc.Root()
}

func strs(nodes []locator.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.String()
	}
	return out
}

func TestQuerySelectorAll_DoesNotCrossShadowBoundary(t *testing.T) {
	ctx := context.Background()
	_, root := parseFixture(t)

	inner, err := root.QuerySelectorAll(ctx, "div.inner")
	require.NoError(t, err)
	assert.Empty(t, inner)

	light, err := root.QuerySelectorAll(ctx, "app-shell > p.light")
	require.NoError(t, err)
	assert.Equal(t, []string{"p.light"}, strs(light))

	_, err = root.QuerySelectorAll(ctx, "div[")
	assert.Error(t, err)
}

func TestShadowRoot(t *testing.T) {
	ctx := context.Background()
	_, root := parseFixture(t)

	hosts, err := root.QuerySelectorAll(ctx, "#shell")
	require.NoError(t, err)
	require.Len(t, hosts, 1)

	sr, err := hosts[0].ShadowRoot(ctx)
	require.NoError(t, err)
	require.NotNil(t, sr)
	assert.Equal(t, "#shadow-root", sr.String())

	inner, err := sr.QuerySelectorAll(ctx, "div.inner")
	require.NoError(t, err)
	assert.Len(t, inner, 1)

	closed, err := root.QuerySelectorAll(ctx, "x-closed")
	require.NoError(t, err)
	require.Len(t, closed, 1)
	none, err := closed[0].ShadowRoot(ctx)
	require.NoError(t, err)
	assert.Nil(t, none, "closed shadow roots are not reachable")

	plain, err := root.QuerySelectorAll(ctx, "header")
	require.NoError(t, err)
	none, err = plain[0].ShadowRoot(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestQueryAccessible(t *testing.T) {
	ctx := context.Background()
	_, root := parseFixture(t)

	tests := []struct {
		name, accName, role string
		want                []string
	}{
		{"button by content", "Войти", "", []string{"button#login-btn"}},
		{"button with role filter", "Войти", "button", []string{"button#login-btn"}},
		{"role mismatch", "Войти", "link", nil},
		{"label for", "Телефон / Email / СНИЛС", "", []string{"input#login"}},
		{"wrapping label", "Пароль", "textbox", []string{"input#password"}},
		{"link title is not used when content exists", "?", "link", []string{"a"}},
		{"submit value", "Отправить", "button", []string{"input"}},
		{"aria-label inside open shadow root", "Закрыть", "", []string{"button"}},
		{"closed shadow root is opaque", "Hidden away", "", nil},
		{"display none excluded", "Невидимая", "", nil},
		{"aria-hidden excluded", "Скрытая", "", nil},
		{"whitespace normalised", "  Войти ", "", []string{"button#login-btn"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := root.QueryAccessible(ctx, tt.accName, tt.role)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, strs(got))
		})
	}
}

func TestQueryText_Innermost(t *testing.T) {
	ctx := context.Background()
	_, root := parseFixture(t)

	got, err := root.QueryText(ctx, "Счётчик 222")
	require.NoError(t, err)
	assert.Equal(t, []string{"td"}, strs(got))

	deep, err := root.QueryText(ctx, "deep text")
	require.NoError(t, err)
	assert.Equal(t, []string{"span.deep"}, strs(deep))
}

func TestQueryXPath(t *testing.T) {
	ctx := context.Background()
	_, root := parseFixture(t)

	rows, err := root.QueryXPath(ctx, `//tr[contains(., '111')]`)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	inputs, err := rows[0].QuerySelectorAll(ctx, "input.form-control[size]")
	require.NoError(t, err)
	assert.Len(t, inputs, 1)

	_, err = root.QueryXPath(ctx, "//tr[")
	assert.Error(t, err)
}

func TestQueryPierce(t *testing.T) {
	ctx := context.Background()
	_, root := parseFixture(t)

	got, err := root.QueryPierce(ctx, "span.deep")
	require.NoError(t, err)
	assert.Equal(t, []string{"span.deep"}, strs(got))

	buttons, err := root.QueryPierce(ctx, "button")
	require.NoError(t, err)
	// Light-tree buttons plus the one in the open shadow root; never the closed one.
	assert.Len(t, buttons, 5)
}

func TestVisibilityAndConnectivity(t *testing.T) {
	ctx := context.Background()
	doc, root := parseFixture(t)

	csrf, err := root.QuerySelectorAll(ctx, "#csrf")
	require.NoError(t, err)
	vis, err := csrf[0].IsVisible(ctx)
	require.NoError(t, err)
	assert.False(t, vis)

	hidden, err := root.QuerySelectorAll(ctx, "#gone button")
	require.NoError(t, err)
	vis, err = hidden[0].IsVisible(ctx)
	require.NoError(t, err)
	assert.False(t, vis)

	login, err := root.QuerySelectorAll(ctx, "#login-btn")
	require.NoError(t, err)
	vis, err = login[0].IsVisible(ctx)
	require.NoError(t, err)
	assert.True(t, vis)

	deep, err := root.QueryPierce(ctx, "span.deep")
	require.NoError(t, err)
	connected, err := deep[0].IsConnected(ctx)
	require.NoError(t, err)
	assert.True(t, connected, "nodes inside nested shadow roots are connected through their hosts")

	removed, err := doc.Remove("#login-btn")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	connected, err = login[0].IsConnected(ctx)
	require.NoError(t, err)
	assert.False(t, connected)
	vis, err = login[0].IsVisible(ctx)
	require.NoError(t, err)
	assert.False(t, vis)
}

func TestViewportSimulation(t *testing.T) {
	ctx := context.Background()
	doc, root := parseFixture(t)

	far, err := root.QuerySelectorAll(ctx, "#far-btn")
	require.NoError(t, err)
	in, err := far[0].IntersectsViewport(ctx, 0)
	require.NoError(t, err)
	assert.False(t, in)

	require.NoError(t, far[0].ScrollIntoView(ctx))
	assert.Equal(t, 1, doc.Scrolls())

	in, err = far[0].IntersectsViewport(ctx, 0)
	require.NoError(t, err)
	assert.True(t, in)
}

func TestAppendHTML_InstantiatesShadowRoots(t *testing.T) {
	ctx := context.Background()
	doc, root := parseFixture(t)

	require.NoError(t, doc.AppendHTML("header", `<x-late><template shadowrootmode="open"><i class="late">late</i></template></x-late>`))

	hosts, err := root.QuerySelectorAll(ctx, "x-late")
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	sr, err := hosts[0].ShadowRoot(ctx)
	require.NoError(t, err)
	require.NotNil(t, sr)
	got, err := sr.QuerySelectorAll(ctx, "i.late")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	assert.Error(t, doc.AppendHTML("nope", "<b></b>"))
}

func TestSame(t *testing.T) {
	ctx := context.Background()
	_, root := parseFixture(t)
	a, err := root.QuerySelectorAll(ctx, "#login")
	require.NoError(t, err)
	b, err := root.QueryAccessible(ctx, "Телефон / Email / СНИЛС", "textbox")
	require.NoError(t, err)
	assert.True(t, a[0].Same(b[0]))
	assert.False(t, a[0].Same(root))
}

func TestNodeHelpers(t *testing.T) {
	ctx := context.Background()
	_, root := parseFixture(t)
	got, err := root.QuerySelectorAll(ctx, "#login-btn")
	require.NoError(t, err)
	n := got[0].(*Node)
	assert.Equal(t, "login-btn", n.Attr("id"))
	assert.Equal(t, "Войти", n.Text())
	assert.Equal(t, "#document", root.String())
}
