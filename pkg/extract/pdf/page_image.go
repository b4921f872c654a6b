package pdf

import (
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"

	"github.com/MDGrey33/visionai/pkg/extract"
)

// PageImageExtractor renders each page as an image and describes it, which
// captures layout, styling, and figures that text extraction misses.
type PageImageExtractor struct {
	describe extract.DescribeFunc
	logger   *slog.Logger
}

// NewPageImage constructs the page_as_image extractor.
func NewPageImage(describe extract.DescribeFunc, logger *slog.Logger) *PageImageExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageImageExtractor{describe: describe, logger: logger}
}

// Extract writes "<name>.md" under outputDir and returns its path.
func (e *PageImageExtractor) Extract(ctx context.Context, srcPath, outputDir string) (string, error) {
	scratch, err := extract.ScratchDir("visionai-pdf-pages")
	if err != nil {
		return "", err
	}
	defer func() {
		_ = os.RemoveAll(scratch)
	}()

	pagePaths, err := RenderPages(srcPath, scratch)
	if err != nil {
		return "", err
	}

	pages := make([]extract.Page, 0, len(pagePaths))
	for i, pagePath := range pagePaths {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		desc, err := e.describe(ctx, pagePath)
		if err != nil {
			return "", fmt.Errorf("describe page %d: %w", i+1, err)
		}
		pages = append(pages, extract.Page{
			Number: i + 1,
			Images: []extract.ImageNote{{Index: i + 1, Description: desc}},
		})
	}

	md := extract.RenderMarkdown(extract.BaseName(srcPath), pages)
	return extract.WriteMarkdown(outputDir, srcPath, md)
}

// RenderPages rasterizes every page of the PDF into PNG files under dir and
// returns their paths in page order. It is also used by the DOCX/PPTX
// page_as_image path after office conversion.
func RenderPages(srcPath, dir string) ([]string, error) {
	doc, err := fitz.New(srcPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf for rendering: %w", err)
	}
	defer func() {
		_ = doc.Close()
	}()

	total := doc.NumPage()
	if total < 1 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	paths := make([]string, 0, total)
	for n := 0; n < total; n++ {
		img, err := doc.Image(n)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", n+1, err)
		}
		p := filepath.Join(dir, fmt.Sprintf("page_%03d.png", n+1))
		f, err := os.Create(p)
		if err != nil {
			return nil, err
		}
		if err := png.Encode(f, img); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("encode page %d: %w", n+1, err)
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}
