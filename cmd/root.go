// cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/meterpost/internal/config"
	"github.com/xkilldash9x/meterpost/internal/observability"
)

const defaultEnvFile = ".env"

// rootOptions is shared by every subcommand. cfg is populated in PersistentPreRunE.
type rootOptions struct {
	cfgFile  string
	envFile  string
	logLevel string
	headful  bool

	cfg *config.Config
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "meterpost",
		Short: "Submits water meter readings to the housing services portal.",
		// Version is set at build time. See cmd/version.go.
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				// Still give the user a logger to report the failure with.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "meterpost"})
				return err
			}
			opts.cfg = cfg

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting meterpost", zap.String("version", Version))
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is ./meterpost.yaml or ~/.config/meterpost/meterpost.yaml)")
	flags.StringVar(&opts.envFile, "env-file", "", "dotenv file with portal credentials (default is ./.env when present)")
	flags.StringVar(&opts.logLevel, "log-level", "", "override logger.level (debug, info, warn, error)")
	flags.BoolVar(&opts.headful, "headful", false, "show the browser window")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newSubmitCmd(opts),
		newReplayCmd(opts),
		newLocateCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command tree with the signal-aware ctx from main.
func Execute(ctx context.Context) error {
	defer func() { _ = observability.Close() }()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			observability.GetLogger().Error("Command execution failed", zap.Error(err))
		}
		return err
	}
	return nil
}

// loadConfig layers defaults, the config file, the dotenv file, the environment
// and finally the persistent flags.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	if err := loadEnvFile(opts.envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	config.SetDefaults(v)

	if opts.cfgFile != "" {
		v.SetConfigFile(opts.cfgFile)
	} else {
		v.SetConfigName("meterpost")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := homedir.Expand("~/.config/meterpost"); err == nil {
			v.AddConfigPath(dir)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and environment apply.
	}

	if opts.logLevel != "" {
		v.Set("logger.level", opts.logLevel)
	}
	if opts.headful {
		v.Set("browser.headless", false)
	}
	if f := cmd.Flags().Lookup("record"); f != nil && f.Changed {
		if err := v.BindPFlag("recorder.enabled", f); err != nil {
			return nil, err
		}
	}

	return config.NewConfigFromViper(v)
}

// loadEnvFile reads an explicit --env-file, or ./.env when one exists. Variables
// already in the environment win.
func loadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(defaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error reading %s: %w", defaultEnvFile, err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error reading env file: %w", err)
	}
	return nil
}
