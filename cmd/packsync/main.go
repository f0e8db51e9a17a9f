package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openlang/packsync/internal/app"
	"github.com/openlang/packsync/internal/config"
	"github.com/openlang/packsync/internal/mirror"
	"github.com/openlang/packsync/internal/sync"
	"github.com/openlang/packsync/internal/version"
)

const defaultBaseURL = "http://downloads.i18n-packs.example.org/"

var rootCmd = &cobra.Command{
	Use:     "packsync",
	Short:   "Mirror localization resource packs from an upstream index",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configFromViper()
		if err := cfg.Validate(); err != nil {
			return err
		}
		cmd.SilenceUsage = true

		a, err := app.New(cfg)
		if err != nil {
			return err
		}

		result, err := a.RunOnce(cmd.Context())
		if err != nil {
			if errors.Is(err, sync.ErrSyncAlreadyRunning) || errors.Is(err, mirror.ErrMirrorLocked) {
				slog.Info("run already in progress, skipping")
				return nil
			}
			// catalog-level abort is the only non-zero exit; per-file
			// failures are reported in the summary instead
			return err
		}

		if viper.GetBool("json") {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "config file")
	rootCmd.PersistentFlags().StringP("url", "u", defaultBaseURL, "upstream index URL")
	rootCmd.PersistentFlags().StringP("dir", "d", config.DefaultMirrorDir, "mirror directory")
	rootCmd.PersistentFlags().IntP("workers", "w", config.DefaultWorkers, "concurrent downloads")
	rootCmd.PersistentFlags().Duration("timeout", config.DefaultTimeout, "per-fetch timeout")
	rootCmd.PersistentFlags().Int("retries", config.DefaultMaxRetries, "fetch retry budget")
	rootCmd.PersistentFlags().Bool("prune", true, "remove local files retired upstream")
	rootCmd.Flags().Bool("json", false, "print the run summary as JSON")
}

func main() {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.RFC3339,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.SetConfigFile(config.DefaultConfigPath)
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return err
		}
	}

	viper.BindPFlag("base_url", cmd.Flags().Lookup("url"))
	viper.BindPFlag("mirror_dir", cmd.Flags().Lookup("dir"))
	viper.BindPFlag("workers", cmd.Flags().Lookup("workers"))
	viper.BindPFlag("timeout", cmd.Flags().Lookup("timeout"))
	viper.BindPFlag("max_retries", cmd.Flags().Lookup("retries"))
	viper.BindPFlag("prune_stale", cmd.Flags().Lookup("prune"))
	if f := cmd.Flags().Lookup("json"); f != nil {
		viper.BindPFlag("json", f)
	}
	if f := cmd.Flags().Lookup("interval"); f != nil {
		viper.BindPFlag("interval", f)
	}

	viper.SetEnvPrefix("PACKSYNC")
	viper.AutomaticEnv()

	return nil
}

func configFromViper() *config.Config {
	return &config.Config{
		BaseURL:    viper.GetString("base_url"),
		MirrorDir:  viper.GetString("mirror_dir"),
		Workers:    viper.GetInt("workers"),
		Timeout:    viper.GetDuration("timeout"),
		MaxRetries: viper.GetInt("max_retries"),
		PruneStale: viper.GetBool("prune_stale"),
		Interval:   viper.GetDuration("interval"),
		Path:       viper.ConfigFileUsed(),
	}
}
