// Package docx implements the DOCX extraction strategies. The text and
// image strategy reads the OOXML container directly; the page_as_image
// strategy converts the document to PDF first and renders those pages.
package docx

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/MDGrey33/visionai/pkg/extract"
	"github.com/MDGrey33/visionai/pkg/extract/office"
	"github.com/MDGrey33/visionai/pkg/extract/ooxml"
	"github.com/MDGrey33/visionai/pkg/extract/pdf"
)

const documentPart = "word/document.xml"

// TextImageExtractor pulls paragraph text from word/document.xml and
// describes every embedded image under word/media/. Word documents carry no
// page boundaries in their XML, so the output is a single section.
type TextImageExtractor struct {
	describe extract.DescribeFunc
	logger   *slog.Logger
}

// NewTextImage constructs the text_and_images extractor for DOCX files.
func NewTextImage(describe extract.DescribeFunc, logger *slog.Logger) *TextImageExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextImageExtractor{describe: describe, logger: logger}
}

// Extract writes "<name>.md" under outputDir and returns its path.
func (e *TextImageExtractor) Extract(ctx context.Context, srcPath, outputDir string) (string, error) {
	part, err := ooxml.ReadPart(srcPath, documentPart)
	if err != nil {
		return "", err
	}
	paras, err := ooxml.Paragraphs(part)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", documentPart, err)
	}

	scratch, err := extract.ScratchDir("visionai-docx-media")
	if err != nil {
		return "", err
	}
	defer func() {
		_ = os.RemoveAll(scratch)
	}()

	imagePaths, err := ooxml.ExtractMedia(srcPath, "word/media/", scratch)
	if err != nil {
		return "", fmt.Errorf("extract embedded images: %w", err)
	}
	e.logger.Debug("docx parsed",
		slog.String("source", srcPath),
		slog.Int("paragraphs", len(paras)),
		slog.Int("images", len(imagePaths)))

	page := extract.Page{Number: 1, Text: strings.Join(paras, "\n\n")}
	for i, imagePath := range imagePaths {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		desc, err := e.describe(ctx, imagePath)
		if err != nil {
			return "", fmt.Errorf("describe image %d: %w", i+1, err)
		}
		page.Images = append(page.Images, extract.ImageNote{Index: i + 1, Description: desc})
	}

	md := extract.RenderMarkdown(extract.BaseName(srcPath), []extract.Page{page})
	return extract.WriteMarkdown(outputDir, srcPath, md)
}

// PageImageExtractor converts the document to PDF and renders each page as an
// image, so pagination and styling survive into the descriptions.
type PageImageExtractor struct {
	inner   extract.Extractor
	convert func(ctx context.Context, srcPath, outDir string) (string, error)
}

// NewPageImage constructs the page_as_image extractor for DOCX files.
func NewPageImage(describe extract.DescribeFunc, logger *slog.Logger) *PageImageExtractor {
	return &PageImageExtractor{
		inner:   pdf.NewPageImage(describe, logger),
		convert: office.ConvertToPDF,
	}
}

// Extract writes "<name>.md" under outputDir and returns its path. The
// converted PDF keeps the source base name, so the markdown file does too.
func (e *PageImageExtractor) Extract(ctx context.Context, srcPath, outputDir string) (string, error) {
	scratch, err := extract.ScratchDir("visionai-docx-convert")
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
