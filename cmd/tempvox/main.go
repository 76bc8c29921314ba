package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tempvox/tempvox/internal/app"
	"github.com/tempvox/tempvox/internal/config"
	"github.com/tempvox/tempvox/internal/log"
)

var version = "dev"

func main() {
	var (
		configPath string
		logLevel   string
		pretty     bool
	)

	root := &cobra.Command{
		Use:           "tempvox",
		Short:         "tempvox provisions and manages ephemeral voice rooms",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override configured log level")
	root.PersistentFlags().BoolVar(&pretty, "pretty", true, "human-readable log output")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the room lifecycle service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootLog := log.New("info", pretty)

			cfg, path, err := config.Load(bootLog, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}

			logger := log.New(cfg.LogLevel, pretty)
			logger.Info().Str("config", path).Str("version", version).Msg("starting tempvox")

			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("server exited: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}

	root.AddCommand(serve, versionCmd)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
