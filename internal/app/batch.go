package app

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/MDGrey33/visionai/pkg/batch"
	"github.com/MDGrey33/visionai/pkg/extract"
)

// BatchParams describes a directory-level extraction run.
type BatchParams struct {
	InputDir  string
	OutputDir string
	// FileType restricts the run to one type; empty means every supported one.
	FileType string
	Method   extract.Method
	Model    string
	Prompt   string
	// Workers and RateLimitRPS override the configured batch section when >0.
	Workers      int
	RateLimitRPS float64
	// OnResult, when set, receives per-file progress in completion order.
	OnResult func(res batch.Result, done, failed, total int)
}

// Batch processes every supported document in InputDir and writes a
// report.csv summary next to the markdown outputs. One failing file never
// aborts the run. The returned results are in completion order.
func (a *App) Batch(ctx context.Context, p BatchParams) ([]batch.Result, error) {
	jobs, err := collectJobs(p.InputDir, p.OutputDir, p.FileType)
	if err != nil {
		return nil, err
	}

	opts := batch.Options{
		Workers:      a.cfg.Batch.Workers,
		RateLimitRPS: a.cfg.Batch.RateLimitRPS,
		OnResult:     p.OnResult,
		Logger:       a.logger,
	}
	if p.Workers > 0 {
		opts.Workers = p.Workers
	}
	if p.RateLimitRPS > 0 {
		opts.RateLimitRPS = p.RateLimitRPS
	}

	process := func(ctx context.Context, job batch.Job) (string, error) {
		return a.Extract(ctx, ExtractParams{
			SourcePath: job.InputPath,
			OutputDir:  job.OutputDir,
			FileType:   job.FileType,
			Method:     p.Method,
			Model:      p.Model,
			Prompt:     p.Prompt,
		})
	}

	results, err := batch.Run(ctx, jobs, process, opts)
	if err != nil {
		return results, err
	}

	if len(results) > 0 {
		if err := writeReport(p.OutputDir, results); err != nil {
			return results, err
		}
	}
	return results, nil
}

// collectJobs lists the matching documents in inputDir, sorted by name so
// feed order is deterministic. Subdirectories are not descended into.
func collectJobs(inputDir, outputDir, fileType string) ([]batch.Job, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}

	var jobs []batch.Job
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(inputDir, entry.Name())
		ft := FileTypeForPath(path)
		if ft == "" {
			continue
		}
		if fileType != "" && ft != fileType {
			continue
		}
		jobs = append(jobs, batch.Job{InputPath: path, OutputDir: outputDir, FileType: ft})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].InputPath < jobs[j].InputPath })
	return jobs, nil
}

// writeReport records the per-file outcomes as OutputDir/report.csv.
func writeReport(outputDir string, results []batch.Result) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(filepath.Join(outputDir, "report.csv"))
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"filename", "success", "message"}); err != nil {
		return err
	}
	for _, res := range results {
		if err := w.Write([]string{res.Filename, strconv.FormatBool(res.Success), res.Message}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}
