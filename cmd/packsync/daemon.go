package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openlang/packsync/internal/app"
	"github.com/openlang/packsync/internal/config"
	"github.com/openlang/packsync/internal/version"
)

func init() {
	rootCmd.AddCommand(newDaemonCmd())
}

func newDaemonCmd() *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Sync on a fixed interval until interrupted",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			slog.Info("packsync", "version", version.Version, "revision", version.Revision)

			cfg := configFromViper()
			if err := cfg.Validate(); err != nil {
				return err
			}

			a, err := app.New(cfg)
			if err != nil {
				return err
			}

			defer slog.Info("Bye!")
			return a.RunForever(cmd.Context())
		},
	}

	daemonCmd.Flags().DurationP("interval", "i", config.DefaultInterval, "time between sync runs")
	viper.SetDefault("interval", config.DefaultInterval)

	return daemonCmd
}
