package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"careercoach/internal/ai"
	"careercoach/internal/common"
	"careercoach/internal/errors"
	"careercoach/internal/types"
	"careercoach/internal/workflow"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var questionnaireCmd = &cobra.Command{
	Use:   "questionnaire",
	Short: "Answer the career questionnaire and get suggested career paths",
	Long: `Walk through the fifteen multiple choice career questions on the
terminal. Answers are final once given. After the last one the model suggests
career paths that fit your answers.`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveOutputFormat(cmd, &questionnaireConfig)
	},
	RunE: runQuestionnaire,
}

var questionnaireConfig common.CommandConfig

func init() {
	addOutputFlags(questionnaireCmd, &questionnaireConfig)
}

func runQuestionnaire(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	catalog, err := workflow.LoadCatalog(cfg.App.QuestionnaireFile)
	if err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to load questionnaire", err)
	}

	services := ai.NewServices(cfg, logger)
	defer func() { _ = services.Close() }()

	q := workflow.NewQuestionnaire(uuid.NewString(), catalog.Questions(), workflow.QuestionnaireDeps{
		Analyzers: services,
		Prompts:   services.Prompts(),
		Logger:    logger,
	})

	report, err := runQuestionnaireTerminal(cmd.Context(), q, bufio.NewScanner(cmd.InOrStdin()), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	handler := common.NewOutputHandler(logger)
	handler.Stdout = cmd.OutOrStdout()
	return handler.HandleOutput(report, questionnaireConfig)
}

// runQuestionnaireTerminal asks each question on out and reads the chosen
// option number from in. Invalid choices and a failed analysis ask again.
func runQuestionnaireTerminal(ctx context.Context, q *workflow.Questionnaire, in *bufio.Scanner, out io.Writer) (*types.QuestionnaireReport, error) {
	snap := q.Snapshot()
	for snap.Stage != workflow.QuestionnaireComplete {
		question := snap.Question
		fmt.Fprintf(out, "\nQuestion %d of %d: %s\n", snap.CurrentIndex+1, snap.Total, question.Question)
		for i, option := range question.Options {
			fmt.Fprintf(out, "  %d) %s\n", i+1, option)
		}
		fmt.Fprintf(out, "Choose 1-%d: ", len(question.Options))

		if !in.Scan() {
			if err := in.Err(); err != nil {
				return nil, errors.NewIOError(errors.ErrCodeFileNotReadable, "failed to read answer", err)
			}
			return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
				"Input ended before the questionnaire was finished.", nil)
		}

		choice, err := strconv.Atoi(strings.TrimSpace(in.Text()))
		if err != nil {
			fmt.Fprintf(out, "Please enter a number between 1 and %d.\n", len(question.Options))
			continue
		}

		if snap.CurrentIndex+1 == snap.Total {
			fmt.Fprintln(out, "\nAnalyzing your answers...")
		}
		next, err := q.Select(ctx, choice-1)
		switch {
		case err == nil:
			snap = next
		case errors.HasCode(err, errors.ErrCodeInvalidRequest),
			errors.HasCode(err, errors.ErrCodeServiceFailure),
			errors.HasCode(err, errors.ErrCodeMalformedResponse):
			fmt.Fprintln(out, errors.UserMessage(err, err.Error()))
			snap = next
		default:
			return nil, err
		}
	}
	return snap.Report, nil
}
