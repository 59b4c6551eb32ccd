package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// PopplerRasterizer shells out to pdftoppm. Only the requested page is
// converted; the document is written to a private temp directory.
type PopplerRasterizer struct {
	command string
	timeout time.Duration
}

var _ Rasterizer = (*PopplerRasterizer)(nil)

func NewPopplerRasterizer(command string, timeout time.Duration) *PopplerRasterizer {
	if command == "" {
		command = "pdftoppm"
	}
	return &PopplerRasterizer{command: command, timeout: timeout}
}

func (p *PopplerRasterizer) RasterizePage(ctx context.Context, data []byte, page, dpi int) ([]byte, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	dir, err := os.MkdirTemp("", "careercoach-render-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	input := filepath.Join(dir, "resume.pdf")
	if err := os.WriteFile(input, data, 0600); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	outputRoot := filepath.Join(dir, "page")

	pageArg := strconv.Itoa(page)
	cmd := exec.CommandContext(ctx, p.command,
		"-f", pageArg, "-l", pageArg,
		"-r", strconv.Itoa(dpi),
		"-png", "-singlefile",
		input, outputRoot)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", p.command, ctx.Err())
		}
		return nil, fmt.Errorf("%s failed: %w: %s", p.command, err, strings.TrimSpace(stderr.String()))
	}

	img, err := os.ReadFile(outputRoot + ".png")
	if err != nil {
		return nil, fmt.Errorf("read rendered page: %w", err)
	}
	return img, nil
}
