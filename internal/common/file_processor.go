package common

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"careercoach/internal/errors"
	"careercoach/internal/utils"
)

// FileProcessor reads resume files and writes command output
type FileProcessor struct {
	logger  *errors.Logger
	maxSize int64
}

// NewFileProcessor creates a processor that rejects inputs larger than maxSize
// bytes; zero means no limit
func NewFileProcessor(logger *errors.Logger, maxSize int64) *FileProcessor {
	return &FileProcessor{logger: logger, maxSize: maxSize}
}

// ReadPDF validates filename and returns its bytes. A missing path is a
// FILE_MISSING error; anything else that stops the read is FILE_NOT_READABLE.
func (fp *FileProcessor) ReadPDF(filename string) ([]byte, error) {
	if filename == "" {
		return nil, errors.NewFileMissingError("Please select a resume file to upload.")
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, errors.NewFileMissingError(fmt.Sprintf("File not found: %s", filename))
	}
	size, err := utils.ValidateInputFile(filename, fp.maxSize)
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Invalid file %s", filename), err)
	}

	if !utils.IsPDFFile(filename) {
		fp.logger.Warn("File does not have a .pdf extension", "filename", filename)
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			fp.logger.Warn("Failed to close file", "filename", filename, "error", err)
		}
	}()

	buf := bytes.NewBuffer(make([]byte, 0, size))
	if _, err := io.Copy(buf, file); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to read file content: %s", filename), err)
	}
	data := buf.Bytes()

	// Rendering will reject it later; the warning names the likely cause early
	if !utils.HasPDFHeader(data) {
		fp.logger.Warn("File does not start with a PDF signature", "filename", filename)
	}
	return data, nil
}

// WriteFile writes content to a file with directory creation
func (fp *FileProcessor) WriteFile(filename, content string) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.NewIOError("DIRECTORY_CREATE_FAILED",
				fmt.Sprintf("Cannot create directory: %s", dir), err)
		}
	}

	if err := os.WriteFile(filename, []byte(content), 0600); err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}
	return nil
}

// ValidateOutputFile validates output file path
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout is valid
	}

	if err := utils.ValidateOutputFile(filename); err != nil {
		return errors.NewValidationError("INVALID_OUTPUT_FILE",
			fmt.Sprintf("Invalid output file: %s", filename), err)
	}
	return nil
}
