// Package pptx implements the PPTX extraction strategies. Slides map
// naturally onto output pages: slide N becomes page N. The page_as_image
// strategy converts the deck to PDF and renders those pages, one per slide.
package pptx

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MDGrey33/visionai/pkg/extract"
	"github.com/MDGrey33/visionai/pkg/extract/office"
	"github.com/MDGrey33/visionai/pkg/extract/ooxml"
	"github.com/MDGrey33/visionai/pkg/extract/pdf"
)

// TextImageExtractor pulls text from each slide XML part and describes the
// embedded images placed on it, resolved through the slide's relationship
// part. Media referenced only by masters and layouts is skipped.
type TextImageExtractor struct {
	describe extract.DescribeFunc
	logger   *slog.Logger
}

// NewTextImage constructs the text_and_images extractor for PPTX files.
func NewTextImage(describe extract.DescribeFunc, logger *slog.Logger) *TextImageExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextImageExtractor{describe: describe, logger: logger}
}

// Extract writes "<name>.md" under outputDir and returns its path.
func (e *TextImageExtractor) Extract(ctx context.Context, srcPath, outputDir string) (string, error) {
	slideParts, err := ooxml.SlideParts(srcPath)
	if err != nil {
		return "", err
	}
	if len(slideParts) == 0 {
		return "", fmt.Errorf("%s: no slides found", srcPath)
	}

	scratch, err := extract.ScratchDir("visionai-pptx-media")
	if err != nil {
		return "", err
	}
	defer func() {
		_ = os.RemoveAll(scratch)
	}()

	imagePaths, err := ooxml.ExtractMedia(srcPath, "ppt/media/", scratch)
	if err != nil {
		return "", fmt.Errorf("extract embedded images: %w", err)
	}
	mediaByName := make(map[string]string, len(imagePaths))
	for _, p := range imagePaths {
		mediaByName[filepath.Base(p)] = p
	}
	e.logger.Debug("pptx parsed",
		slog.String("source", srcPath),
		slog.Int("slides", len(slideParts)),
		slog.Int("images", len(imagePaths)))

	pages := make([]extract.Page, 0, len(slideParts))
	for i, part := range slideParts {
		data, err := ooxml.ReadPart(srcPath, part)
		if err != nil {
			return "", err
		}
		paras, err := ooxml.Paragraphs(data)
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", part, err)
		}
		page := extract.Page{
			Number: i + 1,
			Text:   strings.Join(paras, "\n\n"),
		}

		names, err := ooxml.SlideImages(srcPath, part)
		if err != nil {
			return "", err
		}
		for _, name := range names {
			imagePath, ok := mediaByName[name]
			if !ok {
				continue
			}
			if err := ctx.Err(); err != nil {
				return "", err
			}
			desc, err := e.describe(ctx, imagePath)
			if err != nil {
				return "", fmt.Errorf("describe %s on slide %d: %w", name, i+1, err)
			}
			page.Images = append(page.Images, extract.ImageNote{
				Index:       len(page.Images) + 1,
				Description: desc,
			})
		}
		pages = append(pages, page)
	}

	md := extract.RenderMarkdown(extract.BaseName(srcPath), pages)
	return extract.WriteMarkdown(outputDir, srcPath, md)
}

// PageImageExtractor converts the deck to PDF and renders each slide as an
// image, which keeps layout, charts, and theming in the descriptions.
type PageImageExtractor struct {
	inner   extract.Extractor
	convert func(ctx context.Context, srcPath, outDir string) (string, error)
}

// NewPageImage constructs the page_as_image extractor for PPTX files.
func NewPageImage(describe extract.DescribeFunc, logger *slog.Logger) *PageImageExtractor {
	return &PageImageExtractor{
		inner:   pdf.NewPageImage(describe, logger),
		convert: office.ConvertToPDF,
	}
}

// Extract writes "<name>.md" under outputDir and returns its path.
func (e *PageImageExtractor) Extract(ctx context.Context, srcPath, outputDir string) (string, error) {
	scratch, err := extract.ScratchDir("visionai-pptx-convert")
	if err != nil {
		return "", err
	}
	defer func() {
		_ = os.RemoveAll(scratch)
	}()

	pdfPath, err := e.convert(ctx, srcPath, scratch)
	if err != nil {
		return "", err
	}
	return e.inner.Extract(ctx, pdfPath, outputDir)
}
