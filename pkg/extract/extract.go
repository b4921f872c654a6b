// Package extract defines the document extraction contracts shared by the
// format-specific extractors and assembles their markdown output.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Method selects an extraction strategy.
type Method string

const (
	// MethodTextImages extracts embedded text and describes each embedded image.
	MethodTextImages Method = "text_and_images"
	// MethodPageImage renders whole pages as images and describes each page.
	MethodPageImage Method = "page_as_image"
	// MethodHybrid runs both strategies and merges their outputs. PDF only.
	MethodHybrid Method = "hybrid"
)

// DescribeFunc turns the image at a path into a natural-language description.
type DescribeFunc func(ctx context.Context, imagePath string) (string, error)

// GenerateFunc runs a text completion; the hybrid merge step depends on it.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

// Extractor produces a markdown rendition of a source document and returns
// the path of the written file.
type Extractor interface {
	Extract(ctx context.Context, srcPath, outputDir string) (string, error)
}

// BaseName returns the file name without directory or extension.
func BaseName(p string) string {
	name := filepath.Base(p)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// OutputPath is the markdown destination for a source document.
func OutputPath(outputDir, srcPath string) string {
	return filepath.Join(outputDir, BaseName(srcPath)+".md")
}

// ScratchDir creates a collision-free temporary directory for intermediate
// files. Callers must remove it when done.
func ScratchDir(prefix string) (string, error) {
	dir := filepath.Join(os.TempDir(), fmt.Sprintf("%s-%s", prefix, uuid.NewString()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	return dir, nil
}
