package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"

	"careercoach/internal/config"
	"careercoach/internal/errors"

	"github.com/ledongthuc/pdf"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// FirstPage is the only page ever rasterized
const FirstPage = 1

const renderFailureMessage = "Error analyzing resume. Please try again."

// Renderer turns a PDF into a base64 PNG of its first page
type Renderer interface {
	Render(ctx context.Context, data []byte) (string, error)
}

// Rasterizer produces PNG bytes for a single page of a PDF
type Rasterizer interface {
	RasterizePage(ctx context.Context, data []byte, page, dpi int) ([]byte, error)
}

// PDFRenderer validates the document with a PDF parser and delegates drawing
// to a Rasterizer. Multi-page documents are truncated to page one.
type PDFRenderer struct {
	rasterizer Rasterizer
	dpi        int
	logger     *errors.Logger
}

var _ Renderer = (*PDFRenderer)(nil)

// NewPDFRenderer returns a renderer backed by the configured pdftoppm command
func NewPDFRenderer(cfg config.RenderConfig, logger *errors.Logger) *PDFRenderer {
	return NewPDFRendererWithRasterizer(NewPopplerRasterizer(cfg.Command, cfg.Timeout), cfg.DPI(), logger)
}

// NewPDFRendererWithRasterizer returns a renderer using a custom rasterizer
func NewPDFRendererWithRasterizer(rasterizer Rasterizer, dpi int, logger *errors.Logger) *PDFRenderer {
	return &PDFRenderer{rasterizer: rasterizer, dpi: dpi, logger: logger}
}

// Render returns page one as base64 PNG without a data URL prefix.
// Any failure is a RENDER_FAILURE and yields no image.
func (r *PDFRenderer) Render(ctx context.Context, data []byte) (string, error) {
	ctx, span := otel.Tracer("careercoach.render").Start(ctx, "render.first_page")
	defer span.End()
	span.SetAttributes(attribute.Int("input.size", len(data)), attribute.Int("render.dpi", r.dpi))

	pages, err := Inspect(data)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	span.SetAttributes(attribute.Int("pdf.pages", pages))
	if pages > 1 {
		r.logger.Debug("Rendering first page only", "pages", pages)
	}

	img, err := r.rasterizer.RasterizePage(ctx, data, FirstPage, r.dpi)
	if err != nil {
		span.RecordError(err)
		return "", errors.NewRenderError(renderFailureMessage, err)
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		span.RecordError(err)
		return "", errors.NewRenderError(renderFailureMessage, fmt.Errorf("rasterizer output is not a PNG: %w", err))
	}
	span.SetAttributes(attribute.Int("output.width", cfg.Width), attribute.Int("output.height", cfg.Height))

	return base64.StdEncoding.EncodeToString(img), nil
}

// Inspect opens data as a PDF and returns its page count. The parser may
// panic on hostile input; that is reported as a RENDER_FAILURE too.
func Inspect(data []byte) (pages int, err error) {
	if len(data) == 0 {
		return 0, errors.NewRenderError(renderFailureMessage, fmt.Errorf("empty document"))
	}

	defer func() {
		if rec := recover(); rec != nil {
			pages = 0
			err = errors.NewRenderError(renderFailureMessage, fmt.Errorf("pdf parser panic: %v", rec))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, errors.NewRenderError(renderFailureMessage, fmt.Errorf("failed to read pdf: %w", err))
	}

	pages = reader.NumPage()
	if pages < 1 {
		return 0, errors.NewRenderError(renderFailureMessage, fmt.Errorf("document has no pages"))
	}
	if reader.Page(FirstPage).V.IsNull() {
		return 0, errors.NewRenderError(renderFailureMessage, fmt.Errorf("page %d is missing", FirstPage))
	}
	return pages, nil
}
