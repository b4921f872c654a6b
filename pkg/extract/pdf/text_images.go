// Package pdf implements the PDF extraction strategies: embedded text plus
// described images, rendered page images, and the hybrid merge of both.
package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/MDGrey33/visionai/pkg/extract"
)

// TextImageExtractor extracts per-page text and describes each embedded image.
type TextImageExtractor struct {
	describe extract.DescribeFunc
	logger   *slog.Logger
}

// NewTextImage constructs the text_and_images extractor.
func NewTextImage(describe extract.DescribeFunc, logger *slog.Logger) *TextImageExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextImageExtractor{describe: describe, logger: logger}
}

// Extract writes "<name>.md" under outputDir and returns its path.
func (e *TextImageExtractor) Extract(ctx context.Context, srcPath, outputDir string) (string, error) {
	pages, err := readPageTexts(srcPath)
	if err != nil {
		return "", err
	}

	scratch, err := extract.ScratchDir("visionai-pdf-images")
	if err != nil {
		return "", err
	}
	defer func() {
		_ = os.RemoveAll(scratch)
	}()

	images, err := extractEmbeddedImages(srcPath, scratch)
	if err != nil {
		return "", err
	}

	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		desc, err := e.describe(ctx, img.path)
		if err != nil {
			return "", fmt.Errorf("describe image on page %d: %w", img.page, err)
		}
		idx := img.page - 1
		if idx < 0 || idx >= len(pages) {
			// Images whose page could not be determined go on the last page.
			idx = len(pages) - 1
		}
		pages[idx].Images = append(pages[idx].Images, extract.ImageNote{
			Index:       len(pages[idx].Images) + 1,
			Description: desc,
		})
	}

	md := extract.RenderMarkdown(extract.BaseName(srcPath), pages)
	return extract.WriteMarkdown(outputDir, srcPath, md)
}

func readPageTexts(srcPath string) ([]extract.Page, error) {
	f, reader, err := pdf.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	total := reader.NumPage()
	if total < 1 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	pages := make([]extract.Page, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		text := ""
		if !page.V.IsNull() {
			if t, err := page.GetPlainText(nil); err == nil {
				text = t
			}
		}
		pages = append(pages, extract.Page{Number: i, Text: text})
	}
	return pages, nil
}

type embeddedImage struct {
	path string
	page int
}

// pdfcpu names extracted files "<base>_<page>_<resource>.<ext>".
var imagePageRe = regexp.MustCompile(`_(\d+)_[^_]+\.\w+$`)

func extractEmbeddedImages(srcPath, scratch string) ([]embeddedImage, error) {
	if err := api.ExtractImagesFile(srcPath, scratch, nil, nil); err != nil {
		return nil, fmt.Errorf("extract embedded images: %w", err)
	}

	entries, err := os.ReadDir(scratch)
	if err != nil {
		return nil, err
	}

	var images []embeddedImage
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch strings.ToLower(filepath.Ext(name)) {
		case ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".webp":
		default:
			continue
		}
		page := 0
		if m := imagePageRe.FindStringSubmatch(name); m != nil {
			page, _ = strconv.Atoi(m[1])
		}
		images = append(images, embeddedImage{path: filepath.Join(scratch, name), page: page})
	}

	sort.Slice(images, func(i, j int) bool {
		if images[i].page != images[j].page {
			return images[i].page < images[j].page
		}
		return images[i].path < images[j].path
	})
	return images, nil
}
