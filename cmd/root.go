// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/raidpilot/internal/config"
	"github.com/xkilldash9x/raidpilot/internal/observability"
)

type configKey struct{}

// NewRootCommand builds a fresh command tree. Each call returns independent flag state,
// which keeps tests from leaking into each other.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "raidpilot",
		Short:         "RaidPilot drives the raid loop of a browser game with human-like input.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return err
			}
			if err := observability.InitializeLogger(cfg.Logger()); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			if used := v.ConfigFileUsed(); used != "" {
				observability.GetLogger().Debug("Loaded configuration file", zap.String("path", used))
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./raidpilot.yaml or ~/.raidpilot/raidpilot.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the command tree with the signal-aware ctx from main.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	defer observability.Sync()

	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	observability.GetLogger().Debug("Command execution failed", zap.Error(err))
	return err
}

// initializeConfig reads in the config file and RAIDPILOT_* environment overrides.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.raidpilot")
		v.SetConfigName("raidpilot")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars apply.
	}
	return nil
}

// configFrom returns the configuration loaded by the root command.
func configFrom(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey{}).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration was not loaded")
	}
	return cfg, nil
}
