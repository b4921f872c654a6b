// Command visionai describes images and extracts documents to markdown using
// vision model providers with retry and connection fallback.
//
// Usage:
//
//	visionai describe --image photo.png [--model gpt4] [--prompt "..."]
//	visionai extract  --source report.pdf --output ./out [--type pdf] [--method hybrid]
//	visionai batch    --input ./docs --output ./out [--type pdf] [--workers 8]
//
// Exit codes: 0 success, 1 run failure, 2 usage or configuration error.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/MDGrey33/visionai/internal/app"
	"github.com/MDGrey33/visionai/internal/config"
	"github.com/MDGrey33/visionai/internal/version"
	"github.com/MDGrey33/visionai/pkg/batch"
	"github.com/MDGrey33/visionai/pkg/extract"
	"github.com/MDGrey33/visionai/pkg/redact"
)

func main() {
	// A missing .env file is the normal case outside development.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger("")
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "help", "-h", "--help":
		usage(os.Stdout)
	case "version", "--version":
		fmt.Println(version.Current)
	case "describe":
		os.Exit(runDescribe(ctx, logger, os.Args[2:]))
	case "extract":
		os.Exit(runExtract(ctx, logger, os.Args[2:]))
	case "batch":
		os.Exit(runBatch(ctx, logger, os.Args[2:]))
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
}

// newLogger builds the CLI logger. An explicit level (from --log-level) wins
// over VISIONAI_LOG_LEVEL, then LOG_LEVEL; unparseable values fall back to info.
func newLogger(explicit string) *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: logLevel(explicit)}))
}

func logLevel(explicit string) slog.Level {
	v := explicit
	if v == "" {
		v = os.Getenv("VISIONAI_LOG_LEVEL")
	}
	if v == "" {
		v = os.Getenv("LOG_LEVEL")
	}
	level := slog.LevelInfo
	if v != "" {
		var parsed slog.Level
		if err := parsed.UnmarshalText([]byte(v)); err == nil {
			level = parsed
		}
	}
	return level
}

func usage(w *os.File) {
	_, _ = fmt.Fprint(w, `visionai - describe images and extract documents with vision models

Commands:
  describe   Describe a single image
  extract    Convert one document (pdf, docx, pptx) to markdown
  batch      Convert every supported document in a directory
  version    Print the version

Run "visionai <command> -h" for command flags.
Configuration comes from an optional YAML file (--config or VISIONAI_CONFIG)
with environment variables layered on top.
`)
}

func fail(code int, format string, args ...any) int {
	msg := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintln(os.Stderr, redact.Secrets(msg))
	return code
}

func runDescribe(ctx context.Context, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("describe", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var (
		imagePath  = fs.String("image", "", "Image file to describe (required)")
		model      = fs.String("model", "", "Provider to use; empty selects the default with fallback")
		prompt     = fs.String("prompt", "", "Custom prompt (env: VISIONAI_PROMPT)")
		configPath = fs.String("config", "", "Config file path (env: VISIONAI_CONFIG)")
		logLevel   = fs.String("log-level", "", "Log level: debug, info, warn, error (env: LOG_LEVEL)")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *logLevel != "" {
		logger = newLogger(*logLevel)
		slog.SetDefault(logger)
	}
	if *imagePath == "" {
		return fail(2, "describe requires --image")
	}

	a, err := buildApp(*configPath, logger)
	if err != nil {
		return fail(2, "config error: %v", err)
	}

	desc, err := a.Describe(ctx, *imagePath, *model, *prompt)
	if err != nil {
		return fail(1, "describe failed: %v", err)
	}
	fmt.Println(desc)
	return 0
}

func runExtract(ctx context.Context, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var (
		source     = fs.String("source", "", "Input document (required)")
		output     = fs.String("output", "", "Output directory (required)")
		fileType   = fs.String("type", "", "File type: pdf, docx, pptx; inferred from the extension when empty")
		method     = fs.String("method", string(extract.MethodTextImages), "Extraction method: text_and_images, page_as_image, hybrid (pdf only)")
		model      = fs.String("model", "", "Provider to use; empty selects the default with fallback")
		prompt     = fs.String("prompt", "", "Custom prompt for image descriptions")
		configPath = fs.String("config", "", "Config file path (env: VISIONAI_CONFIG)")
		logLevel   = fs.String("log-level", "", "Log level: debug, info, warn, error (env: LOG_LEVEL)")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *logLevel != "" {
		logger = newLogger(*logLevel)
		slog.SetDefault(logger)
	}
	if *source == "" || *output == "" {
		return fail(2, "extract requires --source and --output")
	}

	a, err := buildApp(*configPath, logger)
	if err != nil {
		return fail(2, "config error: %v", err)
	}

	out, err := a.Extract(ctx, app.ExtractParams{
		SourcePath: *source,
		OutputDir:  *output,
		FileType:   *fileType,
		Method:     extract.Method(*method),
		Model:      *model,
		Prompt:     *prompt,
	})
	if err != nil {
		return fail(1, "extract failed: %v", err)
	}
	fmt.Println(out)
	return 0
}

func runBatch(ctx context.Context, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var (
		input      = fs.String("input", "", "Input directory (required)")
		output     = fs.String("output", "", "Output directory (required)")
		fileType   = fs.String("type", "", "Restrict to one file type: pdf, docx, pptx")
		method     = fs.String("method", string(extract.MethodTextImages), "Extraction method for every file")
		model      = fs.String("model", "", "Provider to use; empty selects the default with fallback")
		prompt     = fs.String("prompt", "", "Custom prompt for image descriptions")
		workers    = fs.Int("workers", 0, "Concurrent workers; 0 uses the configured value (env: VISIONAI_BATCH_WORKERS)")
		rateLimit  = fs.Float64("rate-limit-rps", 0, "Global request rate limit, 0 uses the configured value (env: VISIONAI_BATCH_RATE_LIMIT)")
		configPath = fs.String("config", "", "Config file path (env: VISIONAI_CONFIG)")
		logLevel   = fs.String("log-level", "", "Log level: debug, info, warn, error (env: LOG_LEVEL)")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *logLevel != "" {
		logger = newLogger(*logLevel)
		slog.SetDefault(logger)
	}
	if *input == "" || *output == "" {
		return fail(2, "batch requires --input and --output")
	}

	a, err := buildApp(*configPath, logger)
	if err != nil {
		return fail(2, "config error: %v", err)
	}

	results, err := a.Batch(ctx, app.BatchParams{
		InputDir:     *input,
		OutputDir:    *output,
		FileType:     *fileType,
		Method:       extract.Method(*method),
		Model:        *model,
		Prompt:       *prompt,
		Workers:      *workers,
		RateLimitRPS: *rateLimit,
		OnResult: func(res batch.Result, done, failed, total int) {
			status := "ok"
			if !res.Success {
				status = "failed"
			}
			logger.Info("file processed",
				"file", res.Filename,
				"status", status,
				"done", done,
				"failed", failed,
				"total", total)
		},
	})
	if err != nil {
		return fail(1, "batch failed: %v", err)
	}

	failed := 0
	for _, res := range results {
		if !res.Success {
			failed++
		}
	}
	logger.Info("batch complete", "total", len(results), "failed", failed)
	if failed > 0 {
		return 1
	}
	return 0
}

func buildApp(configPath string, logger *slog.Logger) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, logger)
}
