// cmd/replay.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/meterpost/internal/flow"
	"github.com/xkilldash9x/meterpost/internal/observability"
)

func newReplayCmd(opts *rootOptions) *cobra.Command {
	var (
		htmlFile string
		vars     map[string]string
	)

	replayCmd := &cobra.Command{
		Use:   "replay <flow-file>",
		Short: "Play a recorded flow (JSON or YAML)",
		Long: `Plays a browser recording exported as JSON, or the same structure as YAML.
${NAME} references in values, URLs and expressions are filled from --var, then
from the environment.

With --file the flow runs against a saved HTML page without a browser, and the
actions taken are printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger().Named("replay")

			recorded, err := flow.Load(args[0])
			if err != nil {
				return err
			}
			f, err := recorded.Expand(func(name string) (string, bool) {
				if v, ok := vars[name]; ok {
					return v, true
				}
				return os.LookupEnv(name)
			})
			if err != nil {
				return err
			}
			if err := f.Validate(); err != nil {
				return err
			}

			logger.Info("Replaying flow.", zap.String("path", args[0]), zap.Int("steps", len(f.Steps)))
			if htmlFile != "" {
				return runOffline(ctx, opts.cfg, f, htmlFile, cmd.OutOrStdout(), logger)
			}
			if err := runLive(ctx, opts.cfg, f, logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Flow %q completed (%d steps)\n", f.Title, len(f.Steps))
			return nil
		},
	}

	replayCmd.Flags().StringVar(&htmlFile, "file", "", "run against a saved HTML page instead of a browser")
	replayCmd.Flags().StringToStringVar(&vars, "var", nil, "set a flow variable (NAME=value); repeatable")
	replayCmd.Flags().Bool("record", false, "record the session to video (overrides recorder.enabled)")
	return replayCmd
}
