package cli

import (
	"context"

	"careercoach/internal/ai"
	"careercoach/internal/common"
	"careercoach/internal/config"
	"careercoach/internal/render"
	"careercoach/internal/types"
	"careercoach/internal/workflow"

	"github.com/spf13/cobra"
)

var reviewCmd = &cobra.Command{
	Use:   "review [resume.pdf]",
	Short: "Review a resume the way an applicant tracking system would",
	Long: `Render the first page of a PDF resume and ask the model for an ATS
style review: how well the resume parses, keyword coverage, formatting issues
and concrete suggestions.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveOutputFormat(cmd, &reviewConfig)
	},
	RunE: runReview,
}

var reviewConfig common.CommandConfig

func init() {
	addOutputFlags(reviewCmd, &reviewConfig)
}

func runReview(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	services := ai.NewServices(cfg, logger)
	defer func() { _ = services.Close() }()

	deps := workflow.ReviewDeps{
		Renderer: render.NewPDFRenderer(cfg.Render, logger),
		Analyzer: services.Analyzer(config.OpResumeReview),
		Prompts:  services.Prompts(),
		Logger:   logger,
	}
	review := func(ctx context.Context, fileName string, data []byte) (types.ResumeReviewOutput, error) {
		return workflow.Review(ctx, deps, fileName, data)
	}

	if err := common.RunPDFCommand(cmd.Context(), logger, reviewConfig, cfg.App.MaxFileSize, args[0], review); err != nil {
		return err
	}
	logger.Info("Resume review completed successfully")
	return nil
}
