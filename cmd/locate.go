// cmd/locate.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/meterpost/internal/browser/static"
	"github.com/xkilldash9x/meterpost/internal/locator"
	"github.com/xkilldash9x/meterpost/internal/observability"
)

type locateOptions struct {
	url       string
	htmlFile  string
	selectors []string
	count     int
	operator  string
	visible   bool
	timeout   time.Duration
}

func newLocateCmd(opts *rootOptions) *cobra.Command {
	lo := &locateOptions{}

	locateCmd := &cobra.Command{
		Use:   "locate",
		Short: "Try selectors against a page and report what they find",
		Long: `Resolves selector strategies the way flow steps do. Each --selector is one
strategy; separate shadow host and inner segments with ">>", for example
--selector 'app-shell >> #login' --selector 'aria/Логин'.

With --count the command waits for the number of matches instead.`,
		Example: `  meterpost locate --url https://dom.gosuslugi.ru/ --selector 'aria/Войти'
  meterpost locate --file saved.html --selector '#list > li' --count 2 --operator '=='`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if (lo.url == "") == (lo.htmlFile == "") {
				return errors.New("exactly one of --url or --file is required")
			}
			if len(lo.selectors) == 0 {
				return errors.New("at least one --selector is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLocate(cmd, opts, lo)
		},
	}

	flags := locateCmd.Flags()
	flags.StringVar(&lo.url, "url", "", "page to open in the browser")
	flags.StringVar(&lo.htmlFile, "file", "", "saved HTML page to search without a browser")
	flags.StringArrayVarP(&lo.selectors, "selector", "s", nil, "selector strategy; repeat for fallbacks")
	flags.IntVar(&lo.count, "count", 0, "wait for this many matches")
	flags.StringVar(&lo.operator, "operator", "", "count comparison: ==, >= or <= (default >=)")
	flags.BoolVar(&lo.visible, "visible", false, "require the match to be rendered")
	flags.DurationVar(&lo.timeout, "timeout", 0, "per-strategy timeout (default locator.default_timeout)")
	return locateCmd
}

func runLocate(cmd *cobra.Command, opts *rootOptions, lo *locateOptions) error {
	ctx := cmd.Context()
	logger := observability.GetLogger().Named("locate")

	strategies := make(locator.Strategies, 0, len(lo.selectors))
	for i, raw := range lo.selectors {
		chain, err := locator.ParseChainString(raw)
		if err != nil {
			return fmt.Errorf("selector %d: %w", i+1, err)
		}
		strategies = append(strategies, chain)
	}

	root, done, err := openRoot(ctx, opts, lo, logger)
	if err != nil {
		return err
	}
	defer done()

	loc := locator.New(opts.cfg.Locator(), logger)
	out := cmd.OutOrStdout()

	if cmd.Flags().Changed("count") || lo.operator != "" {
		op, err := locator.ParseOperator(lo.operator)
		if err != nil {
			return err
		}
		spec := locator.CountSpec{Count: lo.count, Operator: op}
		if !cmd.Flags().Changed("count") {
			spec.Count = 1
		}
		timeout := lo.timeout
		if timeout <= 0 {
			timeout = loc.DefaultTimeout()
		}
		if err := loc.WaitForCount(ctx, strategies, root, spec, timeout); err != nil {
			return err
		}
		n, err := locator.Count(ctx, strategies, root)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d matches (%s)\n", strategies, n, spec)
		return nil
	}

	n, err := loc.Locate(ctx, strategies, root, locator.Options{Timeout: lo.timeout, Visible: lo.visible})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, n)
	return nil
}

// openRoot returns the document to search and a func releasing it.
func openRoot(ctx context.Context, opts *rootOptions, lo *locateOptions, logger *zap.Logger) (locator.Node, func(), error) {
	if lo.htmlFile != "" {
		doc, err := static.Load(lo.htmlFile)
		if err != nil {
			return nil, nil, err
		}
		return doc.Root(), func() {}, nil
	}

	s, closeSession, err := openSession(ctx, opts.cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Navigate(ctx, lo.url); err != nil {
		closeSession()
		return nil, nil, err
	}
	root, err := s.Root(ctx)
	if err != nil {
		closeSession()
		return nil, nil, err
	}
	return root, closeSession, nil
}
