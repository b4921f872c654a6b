package extract

import (
	"fmt"
	"os"
	"strings"
)

// ImageNote is one described image within a page.
type ImageNote struct {
	Index       int
	Description string
}

// Page is the extracted content of one page or slide.
type Page struct {
	Number int
	Text   string
	Images []ImageNote
}

// RenderMarkdown assembles pages into the markdown layout shared by all
// extraction strategies: a document heading, then per-page text followed by
// image descriptions.
func RenderMarkdown(title string, pages []Page) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)

	for _, page := range pages {
		fmt.Fprintf(&b, "## Page %d\n\n", page.Number)
		if text := strings.TrimSpace(page.Text); text != "" {
			b.WriteString(text)
			b.WriteString("\n\n")
		}
		for _, img := range page.Images {
			fmt.Fprintf(&b, "[Image %d]\n", img.Index)
			fmt.Fprintf(&b, "Description: %s\n\n", strings.TrimSpace(img.Description))
		}
	}
	return b.String()
}

// WriteMarkdown writes content to the markdown destination for srcPath under
// outputDir, creating the directory when needed.
func WriteMarkdown(outputDir, srcPath, content string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	out := OutputPath(outputDir, srcPath)
	if err := os.WriteFile(out, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write markdown: %w", err)
	}
	return out, nil
}
