// cmd/submit.go
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/meterpost/internal/flow"
	"github.com/xkilldash9x/meterpost/internal/observability"
	"github.com/xkilldash9x/meterpost/internal/portal"
)

func newSubmitCmd(opts *rootOptions) *cobra.Command {
	var (
		dryRun bool
		format string
	)

	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Sign in and submit this month's cold and hot water readings",
		Long: `Signs in to the portal, opens the meter readings form and enters the
configured values for both meters with today's date.

Credentials and readings come from the config file or the environment
(GOSUSLUGI_LOGIN, GOSUSLUGI_PASSWORD, COLD_WATER_ID, COLD_WATER_NEW_VALUE,
HOT_WATER_ID, HOT_WATER_NEW_VALUE).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger().Named("submit")
			cfg := opts.cfg
			portalCfg := cfg.Portal()

			stepTimeout := portalCfg.StepTimeout
			if stepTimeout <= 0 {
				stepTimeout = cfg.Locator().DefaultTimeout
			}
			readings := portal.NewReadings(portalCfg, time.Now)

			if dryRun {
				out, err := flow.Encode(portal.BuildFlow(readings.Redacted(), portalCfg.URL, stepTimeout), flow.Format(format))
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}

			if err := portalCfg.ValidateSubmission(); err != nil {
				return err
			}
			if err := readings.Validate(); err != nil {
				return err
			}

			logger.Info("Submitting meter readings.",
				zap.String("cold_water_id", readings.ColdWaterID),
				zap.String("hot_water_id", readings.HotWaterID),
				zap.String("date", readings.Date),
			)
			if err := runLive(ctx, cfg, portal.BuildFlow(readings, portalCfg.URL, stepTimeout), logger); err != nil {
				return fmt.Errorf("submission failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Readings submitted: cold %s, hot %s (%s)\n",
				readings.ColdWaterValue, readings.HotWaterValue, readings.Date)
			return nil
		},
	}

	submitCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the flow that would run, with the password hidden, and exit")
	submitCmd.Flags().StringVar(&format, "format", string(flow.FormatJSON), "dry-run output format (json or yaml)")
	submitCmd.Flags().Bool("record", false, "record the session to video (overrides recorder.enabled)")
	return submitCmd
}
