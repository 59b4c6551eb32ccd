package cli

import (
	"fmt"

	"careercoach/internal/ai"
	"careercoach/internal/config"
	"careercoach/internal/errors"
	"careercoach/internal/render"
	"careercoach/internal/server"
	"careercoach/internal/session"
	"careercoach/internal/workflow"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server for interviews, questionnaires and reviews",
	Long: `Start an HTTP server that hosts mock interview and career questionnaire
sessions and one-shot resume reviews.

Sessions live in memory and expire after the configured idle TTL. Snapshots of
every session are written to the configured store (memory or redis) so a client
can read the last state of an expired session.

TLS is enabled when both --cert-file and --key-file are given.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
	serveCmd.Flags().String("cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().String("key-file", "", "Server private key file (PEM, overrides config)")
}

// applyServeFlags copies explicitly set flags over the loaded configuration
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	override := func(flag string, target *string) {
		if cmd.Flags().Changed(flag) {
			*target, _ = cmd.Flags().GetString(flag)
		}
	}
	override("port", &cfg.Server.Port)
	override("host", &cfg.Server.Host)
	override("cert-file", &cfg.Server.TLS.CertFile)
	override("key-file", &cfg.Server.TLS.KeyFile)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	applyServeFlags(cmd, cfg)
	if (cfg.Server.TLS.CertFile == "") != (cfg.Server.TLS.KeyFile == "") {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig,
			"both a certificate and a key file are required for TLS", nil)
	}

	services := ai.NewServices(cfg, logger)
	defer func() {
		if err := services.Close(); err != nil {
			logger.Warn("Failed to close AI providers", "error", err.Error())
		}
	}()

	catalog, err := workflow.LoadCatalog(cfg.App.QuestionnaireFile)
	if err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to load questionnaire", err)
	}

	snapshots, err := session.NewSnapshots(cfg.Session, logger)
	if err != nil {
		return fmt.Errorf("failed to create session snapshot store: %w", err)
	}

	components := server.Components{
		AI:        services,
		Renderer:  render.NewPDFRenderer(cfg.Render, logger),
		Catalog:   catalog,
		Snapshots: snapshots,
	}
	return server.NewServer(cfg, server.ConfigFromApp(cfg, Version), components, logger).Start(cmd.Context())
}
