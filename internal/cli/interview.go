package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"careercoach/internal/ai"
	"careercoach/internal/common"
	"careercoach/internal/errors"
	"careercoach/internal/render"
	"careercoach/internal/speech"
	"careercoach/internal/types"
	"careercoach/internal/workflow"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var interviewCmd = &cobra.Command{
	Use:   "interview [resume.pdf]",
	Short: "Run a mock interview in the terminal",
	Long: `Analyze a PDF resume, generate five interview questions from it and
collect your answers from standard input. Each answer is one or more lines of
text; an empty line finishes the answer and moves to the next question. After
the last answer the interview is scored and the report is written out.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveOutputFormat(cmd, &interviewConfig)
	},
	RunE: runInterview,
}

var interviewConfig common.CommandConfig

func init() {
	addOutputFlags(interviewCmd, &interviewConfig)
}

func runInterview(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	data, err := common.NewFileProcessor(logger, cfg.App.MaxFileSize).ReadPDF(args[0])
	if err != nil {
		return err
	}

	services := ai.NewServices(cfg, logger)
	defer func() { _ = services.Close() }()

	recognizer := speech.NewPushRecognizer()
	iv := workflow.NewInterview(uuid.NewString(), workflow.InterviewDeps{
		Renderer:   render.NewPDFRenderer(cfg.Render, logger),
		Analyzers:  services,
		Prompts:    services.Prompts(),
		Recognizer: recognizer,
		Logger:     logger,
	})

	terminal := &interviewTerminal{
		interview:  iv,
		recognizer: recognizer,
		in:         bufio.NewScanner(cmd.InOrStdin()),
		out:        cmd.ErrOrStderr(),
	}
	report, err := terminal.run(cmd.Context(), args[0], data)
	if err != nil {
		return err
	}

	handler := common.NewOutputHandler(logger)
	handler.Stdout = cmd.OutOrStdout()
	return handler.HandleOutput(report, interviewConfig)
}

// interviewTerminal drives an interview from typed input. Typed lines stand
// in for recognizer results, so the answer is whatever was typed.
type interviewTerminal struct {
	interview  *workflow.Interview
	recognizer *speech.PushRecognizer
	in         *bufio.Scanner
	out        io.Writer
}

func (t *interviewTerminal) run(ctx context.Context, fileName string, data []byte) (*types.InterviewReport, error) {
	if _, err := t.interview.Upload(fileName, data); err != nil {
		return nil, err
	}

	fmt.Fprintln(t.out, "Analyzing your resume...")
	snap, err := t.interview.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(t.out, "\n%s\n\n", strings.TrimSpace(snap.ResumeAnalysis))

	fmt.Fprintln(t.out, "Preparing your interview questions...")
	snap, err = t.interview.StartInterview(ctx)
	if err != nil {
		return nil, err
	}

	for snap.Stage == workflow.StageInProgress {
		q := snap.Questions[snap.QuestionIndex]
		fmt.Fprintf(t.out, "\nQuestion %d of %d (%s): %s\n", snap.QuestionIndex+1, len(snap.Questions), q.Type, q.Question)
		fmt.Fprintln(t.out, "Type your answer. An empty line finishes it.")

		if _, err := t.interview.StartRecording(ctx); err != nil {
			return nil, err
		}
		ended, err := t.readAnswer()
		if err != nil {
			return nil, err
		}
		if _, err := t.interview.StopRecording(); err != nil {
			return nil, err
		}
		if ended && snap.QuestionIndex+1 < len(snap.Questions) {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
				"Input ended before the interview was finished.", nil)
		}

		if snap.QuestionIndex+1 == len(snap.Questions) {
			fmt.Fprintln(t.out, "\nScoring your interview...")
		}
		if snap, err = t.interview.Next(ctx); err != nil {
			return nil, err
		}
	}

	if snap.Report == nil {
		return nil, errors.NewInternalError("REPORT_MISSING", "interview finished without a report", nil).
			WithContext("stage", string(snap.Stage))
	}
	return snap.Report, nil
}

// readAnswer feeds typed lines to the recognizer until an empty line. It
// reports whether the input ended.
func (t *interviewTerminal) readAnswer() (bool, error) {
	var results []string
	for t.in.Scan() {
		line := strings.TrimSpace(t.in.Text())
		if line == "" {
			return false, nil
		}
		if len(results) > 0 {
			line = " " + line
		}
		results = append(results, line)
		t.recognizer.Push(results)
	}
	if err := t.in.Err(); err != nil {
		return true, errors.NewIOError(errors.ErrCodeFileNotReadable, "failed to read answer", err)
	}
	return true, nil
}
