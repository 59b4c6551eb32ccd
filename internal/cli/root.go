package cli

import (
	"context"

	"careercoach/internal/common"
	"careercoach/internal/config"
	"careercoach/internal/errors"

	"github.com/spf13/cobra"
)

type configKeyType struct{}
type loggerKeyType struct{}

var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

var rootCmd = &cobra.Command{
	Use:   "careercoach",
	Short: "AI career coaching: resume review, mock interviews and a career questionnaire",
	Long: `careercoach helps job seekers prepare for interviews. It reviews resumes
the way an applicant tracking system would, runs mock interviews with questions
generated from your resume and scores the answers, and suggests career paths
from a short questionnaire.

Run "careercoach serve" to expose the same workflows over HTTP.`,
	SilenceUsage: true,
}

func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

func getConfigFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg
	}
	panic("config not found in context")
}

func getLoggerFromContext(ctx context.Context) *errors.Logger {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger
	}
	panic("logger not found in context")
}

// addOutputFlags registers --format and -o on cmd, writing into target
func addOutputFlags(cmd *cobra.Command, target *common.CommandConfig) {
	cmd.Flags().StringVarP(&target.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&target.OutputFormat, "format", "", "Output format: json, text, or markdown")

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		formats := common.GetSupportedFormats(cfg.App.SupportedFormats)
		if len(formats) == 0 {
			formats = common.NewOutputHandler(getLoggerFromContext(cmd.Context())).GetSupportedFormats()
		}
		return formats, cobra.ShellCompDirectiveNoFileComp
	})
}

// resolveOutputFormat applies the configured default format and rejects
// formats the configuration does not allow
func resolveOutputFormat(cmd *cobra.Command, target *common.CommandConfig) error {
	cfg := getConfigFromContext(cmd.Context())
	if target.OutputFormat == "" {
		target.OutputFormat = cfg.App.DefaultFormat
	}
	return common.ValidateOutputFormat(target.OutputFormat, cfg.App.SupportedFormats)
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(interviewCmd)
	rootCmd.AddCommand(questionnaireCmd)
	rootCmd.AddCommand(howItWorksCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}
