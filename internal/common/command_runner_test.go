package common

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"careercoach/internal/errors"
	"careercoach/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *errors.Logger {
	return errors.NewLoggerWithWriter(io.Discard, slog.LevelDebug)
}

func writeResume(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func TestRunPDFCommandWritesFormattedResult(t *testing.T) {
	path := writeResume(t, "cv.pdf", []byte("%PDF-1.4 body"))
	var stdout bytes.Buffer
	handler := NewOutputHandler(testLogger())
	handler.Stdout = &stdout

	var gotName string
	var gotData []byte
	err := runPDFCommand(context.Background(), testLogger(), handler,
		CommandConfig{OutputFormat: "text"}, 0, path,
		func(ctx context.Context, fileName string, data []byte) (types.ResumeReviewOutput, error) {
			gotName, gotData = fileName, data
			return types.ResumeReviewOutput{FileName: fileName, PageCount: 1, Report: "ATS Score: 90"}, nil
		})
	require.NoError(t, err)

	assert.Equal(t, "cv.pdf", gotName)
	assert.Equal(t, []byte("%PDF-1.4 body"), gotData)
	assert.Contains(t, stdout.String(), "ATS Score: 90")
}

func TestRunPDFCommandWritesOutputFile(t *testing.T) {
	path := writeResume(t, "cv.pdf", []byte("%PDF-1.4"))
	out := filepath.Join(t.TempDir(), "nested", "review.md")

	err := RunPDFCommand(context.Background(), testLogger(),
		CommandConfig{OutputFormat: "markdown", OutputFile: out}, 0, path,
		func(ctx context.Context, fileName string, data []byte) (types.ResumeReviewOutput, error) {
			return types.ResumeReviewOutput{FileName: fileName, Report: "Looks good"}, nil
		})
	require.NoError(t, err)

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(written), "# Resume Review")
}

func TestRunPDFCommandInputErrors(t *testing.T) {
	never := func(ctx context.Context, fileName string, data []byte) (types.ResumeReviewOutput, error) {
		t.Fatal("operation must not run")
		return types.ResumeReviewOutput{}, nil
	}

	tests := []struct {
		name     string
		path     func(t *testing.T) string
		maxSize  int64
		wantCode string
	}{
		{name: "no file given", path: func(t *testing.T) string { return "" }, wantCode: errors.ErrCodeFileMissing},
		{name: "missing file", path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "gone.pdf") }, wantCode: errors.ErrCodeFileMissing},
		{name: "directory", path: func(t *testing.T) string { return t.TempDir() }, wantCode: errors.ErrCodeFileNotReadable},
		{
			name:     "too large",
			path:     func(t *testing.T) string { return writeResume(t, "big.pdf", bytes.Repeat([]byte("x"), 64)) },
			maxSize:  16,
			wantCode: errors.ErrCodeFileNotReadable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RunPDFCommand(context.Background(), testLogger(),
				CommandConfig{OutputFormat: "json"}, tt.maxSize, tt.path(t), never)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.CodeOf(err))
		})
	}
}

func TestRunPDFCommandPropagatesOperationError(t *testing.T) {
	path := writeResume(t, "cv.pdf", []byte("%PDF-1.4"))
	failure := errors.NewRenderError("Error analyzing resume. Please try again.", nil)

	err := RunPDFCommand(context.Background(), testLogger(), CommandConfig{OutputFormat: "json"}, 0, path,
		func(ctx context.Context, fileName string, data []byte) (types.ResumeReviewOutput, error) {
			return types.ResumeReviewOutput{}, failure
		})
	assert.ErrorIs(t, err, failure)
}

func TestHandleOutputRejectsUnknownFormat(t *testing.T) {
	handler := NewOutputHandler(testLogger())
	handler.Stdout = io.Discard

	err := handler.HandleOutput(types.ResumeReviewOutput{}, CommandConfig{OutputFormat: "yaml"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidFormat))
}
