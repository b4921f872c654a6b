package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MDGrey33/visionai/pkg/extract"
	"github.com/MDGrey33/visionai/pkg/extract/docx"
	"github.com/MDGrey33/visionai/pkg/extract/pdf"
	"github.com/MDGrey33/visionai/pkg/extract/pptx"
)

// ExtractParams describes one document extraction.
type ExtractParams struct {
	// SourcePath is the input document.
	SourcePath string
	// OutputDir receives the markdown output.
	OutputDir string
	// FileType is pdf, docx, or pptx; inferred from the extension when empty.
	FileType string
	// Method selects the extraction strategy; defaults to text_and_images.
	Method extract.Method
	// Model and Prompt are passed through to every describe call.
	Model  string
	Prompt string
}

// Extract converts one document to markdown and returns the output path.
func (a *App) Extract(ctx context.Context, p ExtractParams) (string, error) {
	fileType := p.FileType
	if fileType == "" {
		fileType = FileTypeForPath(p.SourcePath)
	}
	method := p.Method
	if method == "" {
		method = extract.MethodTextImages
	}

	ex, err := a.buildExtractor(fileType, method, p.Model, p.Prompt)
	if err != nil {
		return "", err
	}
	return ex.Extract(ctx, p.SourcePath, p.OutputDir)
}

// FileTypeForPath maps a file extension to the extractor file type. It
// returns "" for unsupported extensions.
func FileTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "pdf"
	case ".docx":
		return "docx"
	case ".pptx":
		return "pptx"
	default:
		return ""
	}
}

// buildExtractor picks the extractor for a file type and method. The hybrid
// method only exists for PDF, where both source strategies operate natively.
func (a *App) buildExtractor(fileType string, method extract.Method, model, prompt string) (extract.Extractor, error) {
	if prompt == "" {
		prompt = a.cfg.Prompt
	}
	describeFn := func(ctx context.Context, imagePath string) (string, error) {
		return a.router.Describe(ctx, imagePath, model, prompt)
	}
	generateFn := func(ctx context.Context, mergePrompt string) (string, error) {
		return a.router.Generate(ctx, model, mergePrompt)
	}

	switch fileType {
	case "pdf":
		switch method {
		case extract.MethodTextImages:
			return pdf.NewTextImage(describeFn, a.logger), nil
		case extract.MethodPageImage:
			return pdf.NewPageImage(describeFn, a.logger), nil
		case extract.MethodHybrid:
			return pdf.NewHybrid(describeFn, generateFn, a.logger), nil
		}
	case "docx":
		switch method {
		case extract.MethodTextImages:
			return docx.NewTextImage(describeFn, a.logger), nil
		case extract.MethodPageImage:
			return docx.NewPageImage(describeFn, a.logger), nil
		}
	case "pptx":
		switch method {
		case extract.MethodTextImages:
			return pptx.NewTextImage(describeFn, a.logger), nil
		case extract.MethodPageImage:
			return pptx.NewPageImage(describeFn, a.logger), nil
		}
	default:
		return nil, fmt.Errorf("unsupported file type %q (expected pdf, docx, or pptx)", fileType)
	}
	return nil, fmt.Errorf("method %q is not available for %s files", method, fileType)
}
