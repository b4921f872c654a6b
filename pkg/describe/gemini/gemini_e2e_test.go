//go:build gemini_e2e

package gemini_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MDGrey33/visionai/pkg/describe/gemini"
)

// A 1x1 transparent PNG.
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func TestDescribeImage_RealGemini(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Fatalf("GEMINI_API_KEY is required for gemini_e2e tests")
	}
	model := os.Getenv("GEMINI_MODEL")
	baseURL := os.Getenv("GEMINI_BASE_URL")

	ctx := context.Background()

	c, err := gemini.New(ctx, gemini.Config{APIKey: apiKey, Model: model, BaseURL: baseURL})
	if err != nil {
		t.Fatalf("create gemini client: %v", err)
	}

	imagePath := filepath.Join(t.TempDir(), "tiny.png")
	if err := os.WriteFile(imagePath, tinyPNG, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	out, err := c.DescribeImage(ctx, imagePath, "Describe this image in one sentence.")
	if err != nil {
		t.Fatalf("DescribeImage failed: %v", err)
	}
	if out == "" {
		t.Fatal("empty description")
	}
	t.Logf("description: %s", out)
}
