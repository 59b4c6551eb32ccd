package utils

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var pdfMagic = []byte("%PDF-")

// ValidateInputFile checks that filename names a regular file no larger than
// maxSize bytes and returns its size. A maxSize of zero disables the limit.
func ValidateInputFile(filename string, maxSize int64) (int64, error) {
	if filename == "" {
		return 0, fmt.Errorf("filename cannot be empty")
	}

	info, err := os.Stat(filename)
	switch {
	case os.IsNotExist(err):
		return 0, fmt.Errorf("file does not exist: %s", filename)
	case err != nil:
		return 0, fmt.Errorf("cannot access file %s: %w", filename, err)
	case info.IsDir():
		return 0, fmt.Errorf("path is a directory, not a file: %s", filename)
	case !info.Mode().IsRegular():
		return 0, fmt.Errorf("not a regular file: %s", filename)
	}

	if maxSize > 0 && info.Size() > maxSize {
		return info.Size(), fmt.Errorf("file %s is %s, larger than the %s limit",
			filename, FormatFileSize(info.Size()), FormatFileSize(maxSize))
	}
	return info.Size(), nil
}

// ValidateOutputFile rejects output paths that name an existing directory.
// Missing parent directories are fine; they are created on write.
func ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil
	}
	info, err := os.Stat(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cannot access %s: %w", filename, err)
	}
	if info.IsDir() {
		return fmt.Errorf("output path is a directory: %s", filename)
	}
	return nil
}

// IsPDFFile reports whether filename has a .pdf extension, in any case
func IsPDFFile(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

// HasPDFHeader reports whether data starts with the %PDF- signature,
// ignoring leading whitespace some generators emit
func HasPDFHeader(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), pdfMagic)
}

// FormatFileSize renders size with binary units, e.g. "1.5 MB"
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
