package workflow

import (
	"context"
	"strings"

	"careercoach/internal/ai"
	"careercoach/internal/config"
	"careercoach/internal/errors"
	"careercoach/internal/render"
	"careercoach/internal/types"
)

// ReviewDeps are the collaborators of a standalone resume review
type ReviewDeps struct {
	Renderer render.Renderer
	Analyzer ai.Analyzer
	Prompts  *ai.PromptResolver
	Logger   *errors.Logger
}

// Review renders the first page of a resume and asks the model for an ATS
// style review. It holds no state, so concurrent reviews are independent.
func Review(ctx context.Context, deps ReviewDeps, fileName string, data []byte) (types.ResumeReviewOutput, error) {
	fallback := ai.FailureMessage(config.OpResumeReview)
	if len(data) == 0 {
		return types.ResumeReviewOutput{}, errors.NewFileMissingError("Please select a resume file to upload.")
	}

	image, err := deps.Renderer.Render(ctx, data)
	if err != nil {
		deps.Logger.LogError(err, "Resume render failed", "file", fileName)
		return types.ResumeReviewOutput{}, err
	}

	report, usage, err := deps.Analyzer.Analyze(ctx, deps.Prompts.ResumeReviewPrompt(), ai.PNGImage(image))
	if err != nil {
		if _, ok := errors.AsAppError(err); !ok {
			err = errors.NewServiceError(fallback, err)
		}
		deps.Logger.LogError(err, "Resume review failed", "file", fileName)
		return types.ResumeReviewOutput{}, err
	}
	if usage != nil {
		deps.Logger.Info("AI token usage",
			"operation", config.OpResumeReview,
			"input_tokens", usage.InputTokens,
			"output_tokens", usage.OutputTokens,
			"total_tokens", usage.TotalTokens)
	}

	// zero when the renderer accepted a document the parser cannot count
	pages, _ := render.Inspect(data)

	return types.ResumeReviewOutput{
		FileName:  fileName,
		PageCount: pages,
		Report:    strings.TrimSpace(report),
	}, nil
}
