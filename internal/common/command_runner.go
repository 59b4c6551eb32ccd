package common

import (
	"context"
	"path/filepath"

	"careercoach/internal/errors"
)

// PDFOperationFunc runs one operation over the bytes of a resume file
type PDFOperationFunc[Output any] func(ctx context.Context, fileName string, data []byte) (Output, error)

// RunPDFCommand reads the PDF named by path, runs operation on it and writes
// the formatted result. It is the shared body of single-file CLI commands.
func RunPDFCommand[Output any](
	ctx context.Context,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	maxSize int64,
	path string,
	operation PDFOperationFunc[Output],
) error {
	return runPDFCommand(ctx, logger, NewOutputHandler(logger), cmdConfig, maxSize, path, operation)
}

func runPDFCommand[Output any](
	ctx context.Context,
	logger *errors.Logger,
	outputHandler *OutputHandler,
	cmdConfig CommandConfig,
	maxSize int64,
	path string,
	operation PDFOperationFunc[Output],
) error {
	data, err := NewFileProcessor(logger, maxSize).ReadPDF(path)
	if err != nil {
		return err
	}

	logger.Info("Processing resume",
		"file", path,
		"size_bytes", len(data),
		"format", cmdConfig.OutputFormat)

	result, err := operation(ctx, filepath.Base(path), data)
	if err != nil {
		return err
	}

	return outputHandler.HandleOutput(result, cmdConfig)
}
