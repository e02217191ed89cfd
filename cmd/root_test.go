// cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/meterpost/internal/config"
	"github.com/xkilldash9x/meterpost/internal/flow"
	"github.com/xkilldash9x/meterpost/internal/locator"
)

const savedPage = `<!doctype html>
<html><body>
<app-shell>
  <template shadowrootmode="open">
    <label for="login">Логин</label><input id="login">
  </template>
</app-shell>
<ul id="list"><li>one</li><li>two</li></ul>
</body></html>`

const savedFlow = `{
  "title": "sign in",
  "steps": [
    {"type": "navigate", "url": "${PORTAL}"},
    {"type": "change", "selectors": [["#missing"], ["app-shell", "#login"]], "value": "${LOGIN}", "timeout": 20},
    {"type": "waitForElement", "selectors": [["#list > li"]], "count": 2, "operator": "=="}
  ]
}`

// executeCommand runs a fresh command tree in an isolated working directory so
// no stray meterpost.yaml or .env is picked up.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	wd, wdErr := os.Getwd()
	require.NoError(t, wdErr)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("METERPOST_LOCATOR_DEFAULT_TIMEOUT", "300ms")

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func setReadingsEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GOSUSLUGI_LOGIN", "+79990000000")
	t.Setenv("GOSUSLUGI_PASSWORD", "hunter2")
	t.Setenv("COLD_WATER_ID", "21524675")
	t.Setenv("COLD_WATER_NEW_VALUE", "10.01")
	t.Setenv("HOT_WATER_ID", "21535901")
	t.Setenv("HOT_WATER_NEW_VALUE", "7.5")
}

func TestVersion(t *testing.T) {
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "meterpost version "+Version+"\n", out)

	out, err = executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestSubmit_DryRun(t *testing.T) {
	setReadingsEnv(t)

	out, err := executeCommand(t, "submit", "--dry-run")
	require.NoError(t, err)
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "********")

	f, err := flow.Parse([]byte(out), flow.FormatJSON)
	require.NoError(t, err)
	require.NoError(t, f.Validate())
	assert.Equal(t, config.DefaultPortalURL, f.Steps[1].URL)

	var rows []string
	for _, s := range f.Steps {
		if s.Type == flow.StepFillRow {
			rows = append(rows, s.Row+"="+s.Fields[0].Value)
		}
	}
	assert.Equal(t, []string{"21524675=10.01", "21535901=7.5"}, rows)
}

func TestSubmit_PrefixedEnvWins(t *testing.T) {
	setReadingsEnv(t)
	t.Setenv("METERPOST_PORTAL_COLD_WATER_VALUE", "11.00")

	out, err := executeCommand(t, "submit", "--dry-run", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "value: \"11.00\"")
	assert.NotContains(t, out, "10.01")
}

func TestSubmit_MissingCredentials(t *testing.T) {
	setReadingsEnv(t)
	t.Setenv("GOSUSLUGI_PASSWORD", "")

	_, err := executeCommand(t, "submit")
	assert.ErrorIs(t, err, config.ErrMissingCredentials)
}

func TestSubmit_InvalidReading(t *testing.T) {
	setReadingsEnv(t)
	t.Setenv("HOT_WATER_NEW_VALUE", "seven")

	_, err := executeCommand(t, "submit")
	assert.ErrorContains(t, err, `hot water value "seven" is not a number`)
}

func TestConfigFile(t *testing.T) {
	setReadingsEnv(t)
	cfgPath := writeFile(t, "meterpost.yaml", `
portal:
  url: https://portal.example/
  date_format: "2006-01-02"
`)
	out, err := executeCommand(t, "--config", cfgPath, "submit", "--dry-run")
	require.NoError(t, err)

	f, err := flow.Parse([]byte(out), flow.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example/", f.Steps[1].URL)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, f.Steps[10].Fields[1].Value)

	_, err = executeCommand(t, "--config", writeFile(t, "broken.yaml", "portal: [\n"), "version")
	require.NoError(t, err, "version needs no configuration")

	_, err = executeCommand(t, "--config", writeFile(t, "broken.yaml", "portal: [\n"), "submit", "--dry-run")
	assert.ErrorContains(t, err, "error reading config file")
}

func TestEnvFile(t *testing.T) {
	setReadingsEnv(t)
	const key = "METERPOST_TEST_PORTAL_URL"
	t.Cleanup(func() { os.Unsetenv(key) })

	envPath := writeFile(t, "portal.env", "METERPOST_PORTAL_URL=https://from-dotenv.example/\n"+key+"=set\n")
	t.Cleanup(func() { os.Unsetenv("METERPOST_PORTAL_URL") })

	out, err := executeCommand(t, "--env-file", envPath, "submit", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "https://from-dotenv.example/")
	assert.Equal(t, "set", os.Getenv(key))

	_, err = executeCommand(t, "--env-file", filepath.Join(t.TempDir(), "missing.env"), "submit", "--dry-run")
	assert.ErrorContains(t, err, "error reading env file")
}

func TestReplay_File(t *testing.T) {
	html := writeFile(t, "page.html", savedPage)
	flowPath := writeFile(t, "flow.json", savedFlow)
	t.Setenv("PORTAL", "https://portal.example/")

	out, err := executeCommand(t, "replay", flowPath, "--file", html, "--var", "LOGIN=ivanov")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"navigate https://portal.example/",
		`fill input#login = "ivanov"`,
	}, strings.Split(strings.TrimSpace(out), "\n"))
}

func TestReplay_Errors(t *testing.T) {
	html := writeFile(t, "page.html", savedPage)
	flowPath := writeFile(t, "flow.json", savedFlow)

	_, err := executeCommand(t, "replay", flowPath, "--file", html)
	assert.ErrorIs(t, err, flow.ErrUndefinedVariable)

	bad := writeFile(t, "bad.yaml", "steps:\n  - type: hover\n")
	_, err = executeCommand(t, "replay", bad, "--file", html)
	assert.ErrorIs(t, err, flow.ErrInvalidFlow)

	_, err = executeCommand(t, "replay")
	assert.Error(t, err)
}

func TestLocate_File(t *testing.T) {
	html := writeFile(t, "page.html", savedPage)

	out, err := executeCommand(t, "locate", "--file", html, "-s", "#nope", "-s", "app-shell >> #login", "--timeout", "50ms")
	require.NoError(t, err)
	assert.Equal(t, "input#login\n", out)

	out, err = executeCommand(t, "locate", "--file", html, "-s", "aria/Логин")
	require.NoError(t, err)
	assert.Equal(t, "input#login\n", out)

	out, err = executeCommand(t, "locate", "--file", html, "-s", "#list > li", "--count", "2", "--operator", "==")
	require.NoError(t, err)
	assert.Contains(t, out, ": 2 matches")

	_, err = executeCommand(t, "locate", "--file", html, "-s", "#list > li", "--count", "3", "--operator", "==", "--timeout", "50ms")
	assert.ErrorIs(t, err, locator.ErrTimeout)

	_, err = executeCommand(t, "locate", "--file", html, "-s", "#nope", "--timeout", "50ms")
	assert.ErrorIs(t, err, locator.ErrAllSelectorsFailed)
}

func TestLocate_FlagValidation(t *testing.T) {
	_, err := executeCommand(t, "locate", "-s", "#a")
	assert.ErrorContains(t, err, "exactly one of --url or --file")

	_, err = executeCommand(t, "locate", "--file", "page.html")
	assert.ErrorContains(t, err, "at least one --selector")

	_, err = executeCommand(t, "locate", "--file", writeFile(t, "p.html", savedPage), "-s", "aria/")
	assert.ErrorIs(t, err, locator.ErrInvalidSelector)
}
