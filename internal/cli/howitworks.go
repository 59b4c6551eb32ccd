package cli

import (
	"careercoach/internal/common"
	"careercoach/internal/content"

	"github.com/spf13/cobra"
)

var howItWorksCmd = &cobra.Command{
	Use:   "how-it-works",
	Short: "Show the four steps of a coaching session",
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveOutputFormat(cmd, &howItWorksConfig)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		handler := common.NewOutputHandler(getLoggerFromContext(cmd.Context()))
		handler.Stdout = cmd.OutOrStdout()
		return handler.HandleOutput(content.HowItWorks(), howItWorksConfig)
	},
}

var howItWorksConfig common.CommandConfig

func init() {
	addOutputFlags(howItWorksCmd, &howItWorksConfig)
}
