// Package batch runs independent extraction jobs over a bounded worker pool.
// One job's failure never cancels or blocks its siblings; every job produces
// a Result.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/time/rate"
)

// Job is one independent unit of batch work: one input file end-to-end.
type Job struct {
	InputPath string
	OutputDir string
	FileType  string
}

// Result is the per-job outcome. Message holds the output path on success and
// the captured error text on failure.
type Result struct {
	Filename string
	Success  bool
	Message  string
}

// ProcessFunc processes one job to completion and returns the produced output
// path.
type ProcessFunc func(ctx context.Context, job Job) (string, error)

// Options configures a batch run.
type Options struct {
	Workers int

	// RateLimitRPS is a global limit across all workers. Set to <=0 to disable.
	RateLimitRPS float64

	// OnResult, when set, is invoked in completion order as each job finishes.
	// done counts completed jobs so far; failed counts failures among them.
	OnResult func(res Result, done, failed, total int)

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Run processes all jobs over opts.Workers workers and returns one Result per
// job in completion order. Run itself only returns an error when ctx is
// cancelled; job failures are captured in the Results.
func Run(ctx context.Context, jobs []Job, process ProcessFunc, opts Options) ([]Result, error) {
	opts = opts.withDefaults()

	if len(jobs) == 0 {
		opts.Logger.Info("no jobs found")
		return []Result{}, nil
	}

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}

	queue := make(chan Job)
	done := make(chan Result, opts.Workers)

	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				if ctx.Err() != nil {
					return
				}
				res := runOne(ctx, job, process, limiter)
				select {
				case done <- res:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(queue)
		for _, job := range jobs {
			select {
			case queue <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(done)
	}()

	results := make([]Result, 0, len(jobs))
	failed := 0
	for res := range done {
		results = append(results, res)
		if !res.Success {
			failed++
		}
		if opts.OnResult != nil {
			opts.OnResult(res, len(results), failed, len(jobs))
		}
	}

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// runOne converts any failure of the job body, panics included, into a failed
// Result so the rest of the batch keeps going.
func runOne(ctx context.Context, job Job, process ProcessFunc, limiter *rate.Limiter) (res Result) {
	res = Result{Filename: filepath.Base(job.InputPath)}

	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Message = fmt.Sprintf("panic: %v", r)
		}
	}()

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			res.Message = err.Error()
			return res
		}
	}

	out, err := process(ctx, job)
	if err != nil {
		res.Message = err.Error()
		return res
	}
	res.Success = true
	res.Message = out
	return res
}
