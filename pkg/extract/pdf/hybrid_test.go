package pdf

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/MDGrey33/visionai/pkg/extract"
)

type fakeStrategy struct {
	mu      sync.Mutex
	outDirs []string
	content string
	err     error
	block   chan struct{}
}

func (f *fakeStrategy) Extract(_ context.Context, srcPath, outputDir string) (string, error) {
	f.mu.Lock()
	f.outDirs = append(f.outDirs, outputDir)
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return "", f.err
	}
	out := extract.OutputPath(outputDir, srcPath)
	if err := os.WriteFile(out, []byte(f.content), 0o644); err != nil {
		return "", err
	}
	return out, nil
}

func (f *fakeStrategy) seenDirs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.outDirs...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func srcFile(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "report.pdf")
	if err := os.WriteFile(p, []byte("%PDF-1.4 fake"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return p
}

func TestHybridExtract_MergesBothStrategies(t *testing.T) {
	t.Parallel()

	text := &fakeStrategy{content: "# report\n\ntext output\n"}
	page := &fakeStrategy{content: "# report\n\npage output\n"}

	var gotPrompt string
	generate := func(_ context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return "merged output", nil
	}

	h := newHybridWith(text, page, generate, discardLogger())
	outDir := t.TempDir()
	outPath, err := h.Extract(context.Background(), srcFile(t), outDir)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	b, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(b) != "merged output" {
		t.Fatalf("output = %q, want merge result", b)
	}
	if !strings.Contains(gotPrompt, "text output") || !strings.Contains(gotPrompt, "page output") {
		t.Fatal("merge prompt must embed both intermediate outputs")
	}
}

func TestHybridExtract_FallsBackToPageOutputOnMergeFailure(t *testing.T) {
	t.Parallel()

	pageContent := "# report\n\npage output with styling\n"
	text := &fakeStrategy{content: "# report\n\ntext output\n"}
	page := &fakeStrategy{content: pageContent}

	generate := func(context.Context, string) (string, error) {
		return "", errors.New("merge model overloaded")
	}

	h := newHybridWith(text, page, generate, discardLogger())
	outPath, err := h.Extract(context.Background(), srcFile(t), t.TempDir())
	if err != nil {
		t.Fatalf("merge failure must not fail the pipeline: %v", err)
	}

	b, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(b) != pageContent {
		t.Fatalf("fallback output = %q, want byte-identical page strategy output", b)
	}
}

func TestHybridExtract_EitherStrategyFailureIsFatal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		textErr error
		pageErr error
	}{
		{"text strategy fails", errors.New("corrupt text layer"), nil},
		{"page strategy fails", nil, errors.New("render failure")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			text := &fakeStrategy{content: "text", err: tc.textErr}
			page := &fakeStrategy{content: "page", err: tc.pageErr}
			generate := func(context.Context, string) (string, error) {
				t.Error("merge must not run when a strategy fails")
				return "", nil
			}

			h := newHybridWith(text, page, generate, discardLogger())
			_, err := h.Extract(context.Background(), srcFile(t), t.TempDir())
			if err == nil {
				t.Fatal("expected a fatal error")
			}
		})
	}
}

func TestHybridExtract_StrategiesRunConcurrently(t *testing.T) {
	t.Parallel()

	// Each strategy blocks until the other has started; the test deadlocks
	// (and times out) if the strategies were run sequentially.
	release := make(chan struct{})
	text := &fakeStrategy{content: "text", block: release}
	page := &fakeStrategy{content: "page"}

	started := make(chan struct{})
	pageWrapped := extractorFunc(func(ctx context.Context, src, out string) (string, error) {
		close(started)
		return page.Extract(ctx, src, out)
	})

	go func() {
		<-started
		close(release)
	}()

	h := newHybridWith(text, pageWrapped, func(context.Context, string) (string, error) {
		return "merged", nil
	}, discardLogger())

	if _, err := h.Extract(context.Background(), srcFile(t), t.TempDir()); err != nil {
		t.Fatalf("Extract: %v", err)
	}
}

type extractorFunc func(ctx context.Context, srcPath, outputDir string) (string, error)

func (f extractorFunc) Extract(ctx context.Context, srcPath, outputDir string) (string, error) {
	return f(ctx, srcPath, outputDir)
}

func TestHybridExtract_CleansUpScratchDirs(t *testing.T) {
	t.Parallel()

	check := func(t *testing.T, generate extract.GenerateFunc) {
		t.Helper()

		text := &fakeStrategy{content: "text"}
		page := &fakeStrategy{content: "page"}
		h := newHybridWith(text, page, generate, discardLogger())

		if _, err := h.Extract(context.Background(), srcFile(t), t.TempDir()); err != nil {
			t.Fatalf("Extract: %v", err)
		}

		for _, dirs := range [][]string{text.seenDirs(), page.seenDirs()} {
			if len(dirs) != 1 {
				t.Fatalf("strategy ran %d times, want 1", len(dirs))
			}
			if _, err := os.Stat(dirs[0]); !os.IsNotExist(err) {
				t.Fatalf("scratch dir %s must not exist after Extract", dirs[0])
			}
		}
	}

	t.Run("merge success", func(t *testing.T) {
		t.Parallel()
		check(t, func(context.Context, string) (string, error) { return "merged", nil })
	})
	t.Run("merge fallback", func(t *testing.T) {
		t.Parallel()
		check(t, func(context.Context, string) (string, error) { return "", errors.New("merge failed") })
	})
}

func TestHybridExtract_ScratchDirsAreDistinct(t *testing.T) {
	t.Parallel()

	text := &fakeStrategy{content: "text"}
	page := &fakeStrategy{content: "page"}
	h := newHybridWith(text, page, func(context.Context, string) (string, error) {
		return "merged", nil
	}, discardLogger())

	if _, err := h.Extract(context.Background(), srcFile(t), t.TempDir()); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	textDirs, pageDirs := text.seenDirs(), page.seenDirs()
	if len(textDirs) != 1 || len(pageDirs) != 1 {
		t.Fatalf("each strategy must run once, got %d/%d", len(textDirs), len(pageDirs))
	}
	if textDirs[0] == pageDirs[0] {
		t.Fatal("strategies must write into separate scratch subdirectories")
	}
}
