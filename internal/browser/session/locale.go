// internal/browser/session/locale.go
package session

import (
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/meterpost/internal/config"
)

// localeTasks makes the tab present the configured locale and time zone to pages,
// which decides the portal's language and the date the readings are stamped with.
func localeTasks(cfg config.BrowserConfig, logger *zap.Logger) chromedp.Tasks {
	var tasks chromedp.Tasks
	if cfg.Timezone != "" {
		tasks = append(tasks, emulation.SetTimezoneOverride(cfg.Timezone))
	}
	if cfg.Locale != "" {
		tasks = append(tasks,
			emulation.SetLocaleOverride().WithLocale(cfg.Locale),
			network.Enable(),
			network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": acceptLanguage(cfg.Locale)}),
		)
	}
	if len(tasks) > 0 {
		logger.Debug("Applying browser locale.",
			zap.String("locale", cfg.Locale),
			zap.String("timezone", cfg.Timezone),
		)
	}
	return tasks
}

// acceptLanguage turns "ru-RU" into "ru-RU,ru;q=0.9".
func acceptLanguage(locale string) string {
	lang, _, found := strings.Cut(locale, "-")
	if !found || lang == "" {
		return locale
	}
	return fmt.Sprintf("%s,%s;q=0.9", locale, lang)
}
