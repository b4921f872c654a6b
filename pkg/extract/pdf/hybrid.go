package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MDGrey33/visionai/pkg/extract"
)

// HybridExtractor runs the text_and_images and page_as_image strategies in
// parallel and merges their outputs through a text-generation call. The text
// strategy contributes accurate wording; the page strategy contributes layout
// and visual context. Partial results are not useful, so a failure in either
// strategy fails the whole extraction.
type HybridExtractor struct {
	text     extract.Extractor
	page     extract.Extractor
	generate extract.GenerateFunc
	logger   *slog.Logger
}

// NewHybrid constructs the hybrid extractor.
func NewHybrid(describe extract.DescribeFunc, generate extract.GenerateFunc, logger *slog.Logger) *HybridExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridExtractor{
		text:     NewTextImage(describe, logger),
		page:     NewPageImage(describe, logger),
		generate: generate,
		logger:   logger,
	}
}

// newHybridWith wires explicit strategies; tests use it to substitute fakes.
func newHybridWith(text, page extract.Extractor, generate extract.GenerateFunc, logger *slog.Logger) *HybridExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridExtractor{text: text, page: page, generate: generate, logger: logger}
}

// Extract writes the merged markdown as "<name>.md" under outputDir and
// returns its path. When the merge call fails the page_as_image output is
// written verbatim instead; this is the only place a failure is absorbed
// rather than surfaced.
func (e *HybridExtractor) Extract(ctx context.Context, srcPath, outputDir string) (string, error) {
	scratch, err := extract.ScratchDir("visionai-hybrid")
	if err != nil {
		return "", err
	}
	defer func() {
		_ = os.RemoveAll(scratch)
	}()

	textDir := filepath.Join(scratch, "text")
	pageDir := filepath.Join(scratch, "page")
	for _, d := range []string{textDir, pageDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return "", err
		}
	}

	e.logger.Info("running both extraction strategies in parallel", "source", srcPath)

	var wg sync.WaitGroup
	var textPath, pagePath string
	var textErr, pageErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		textPath, textErr = e.text.Extract(ctx, srcPath, textDir)
	}()
	go func() {
		defer wg.Done()
		pagePath, pageErr = e.page.Extract(ctx, srcPath, pageDir)
	}()
	wg.Wait()

	if textErr != nil {
		return "", fmt.Errorf("text_and_images strategy: %w", textErr)
	}
	if pageErr != nil {
		return "", fmt.Errorf("page_as_image strategy: %w", pageErr)
	}

	textMD, err := os.ReadFile(textPath)
	if err != nil {
		return "", err
	}
	pageMD, err := os.ReadFile(pagePath)
	if err != nil {
		return "", err
	}

	merged, err := e.generate(ctx, mergePrompt(string(textMD), string(pageMD), extract.BaseName(srcPath)))
	if err != nil || strings.TrimSpace(merged) == "" {
		e.logger.Warn("merge call failed, falling back to page_as_image output",
			"source", srcPath, "error", err)
		merged = string(pageMD)
	}

	return extract.WriteMarkdown(outputDir, srcPath, merged)
}

func mergePrompt(textMD, pageMD, filename string) string {
	var b strings.Builder
	b.WriteString("TASK: Copy the text below EXACTLY as written, then add visual styling information.\n\n")
	b.WriteString("ORIGINAL TEXT TO COPY (copy every word exactly):\n")
	b.WriteString(textMD)
	b.WriteString("\n\nVISUAL STYLING ANALYSIS (use to enhance formatting):\n")
	b.WriteString(pageMD)
	b.WriteString("\n\nRULES:\n")
	b.WriteString("- Copy EVERY SINGLE WORD from ORIGINAL TEXT exactly\n")
	b.WriteString("- Do NOT change, improve, or rewrite ANY text content\n")
	b.WriteString("- Apply markdown formatting (bold, italics) based on VISUAL STYLING ANALYSIS\n")
	b.WriteString("- Add [Image: description] entries for visual elements from the STYLING ANALYSIS\n")
	b.WriteString("- Preserve the exact page structure from ORIGINAL TEXT\n")
	fmt.Fprintf(&b, "- Use %q as the document title\n\n", filename)
	b.WriteString("START COPYING THE ORIGINAL TEXT WITH VISUAL ENHANCEMENTS:")
	return b.String()
}
