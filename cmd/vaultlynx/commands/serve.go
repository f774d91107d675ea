package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bl4ck0w1/vaultlynx/internal/api"
	"github.com/bl4ck0w1/vaultlynx/internal/app"
)

func NewServeCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis HTTP API",
		Long: `Run the HTTP API: upload a vault export, poll the session or follow it over a
websocket, and fetch results or a rendered report. Prometheus metrics are served
at /metrics when enabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(version)
		},
	}

	cmd.Flags().StringP("address", "a", "", "Listen address (default from config)")
	cmd.Flags().StringSlice("allowed-origins", nil, "Allowed CORS and websocket origins")
	cmd.Flags().Bool("no-breach", false, "Skip breach lookups")
	_ = viper.BindPFlag("api.address", cmd.Flags().Lookup("address"))
	_ = viper.BindPFlag("api.allowed_origins", cmd.Flags().Lookup("allowed-origins"))
	_ = viper.BindPFlag("serve.no_breach", cmd.Flags().Lookup("no-breach"))
	return cmd
}

func runServe(version string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if viper.GetBool("serve.no_breach") {
		cfg.Breach.Enabled = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := app.New(cfg, logrus.StandardLogger(), app.Options{})
	if err != nil {
		return fmt.Errorf("failed to initialize analyzer: %w", err)
	}
	defer pipeline.Session.Clear()

	logrus.WithFields(logrus.Fields{
		"version":        version,
		"address":        cfg.API.Address,
		"breach_enabled": cfg.Breach.Enabled,
		"metrics":        cfg.Metrics.Enabled,
	}).Info("starting VaultLynx API")

	server := api.NewServer(cfg.API, pipeline.Session, pipeline.Reports, pipeline.Metrics, pipeline.Logger)
	return server.ListenAndServe(ctx)
}
