// Package runner executes many independent fuzzing executions on a worker pool
package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/zigrin-security/cakefuzzer/internal/execution"
	"github.com/zigrin-security/cakefuzzer/internal/logging"
	"github.com/zigrin-security/cakefuzzer/pkg/types"
)

// Job is one execution to perform
type Job struct {
	Scenario  string
	Iteration int
	Config    *types.ExecutionConfig
	Target    execution.Target
}

// Result is the outcome of a Job. Execution is never nil.
type Result struct {
	Job       Job
	Execution *types.ExecutionResult
	Error     error
	Duration  time.Duration
	Timestamp time.Time
}

// Stats tracks run statistics
type Stats struct {
	mu               sync.Mutex
	TotalExecutions  int
	SuccessCount     int
	ErrorCount       int
	InjectedCount    int
	StartTime        time.Time
	EndTime          time.Time
	ExecutionsPerSec float64
}

// Options configures a Runner
type Options struct {
	Concurrency int
	RateLimit   float64       // executions per second, 0 disables
	Timeout     time.Duration // per execution, 0 disables
	Sink        execution.AccessSink
	Logger      *slog.Logger
}

// Runner runs jobs concurrently. Every job builds its own execution context,
// so workers share nothing but read-only configuration.
type Runner struct {
	opts        Options
	rateLimiter *RateLimiter
	results     chan *Result
	wg          sync.WaitGroup
	stats       *Stats
	logger      *slog.Logger
}

// New creates a runner
func New(opts Options) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &Runner{
		opts:        opts,
		rateLimiter: NewRateLimiter(opts.RateLimit),
		results:     make(chan *Result, opts.Concurrency*10),
		stats:       &Stats{},
		logger:      logger,
	}
}

// Repeat builds iterations jobs for one scenario. A fixed seed is offset per
// iteration so that iterations differ while the run stays reproducible.
func Repeat(scenario string, cfg *types.ExecutionConfig, target execution.Target, iterations int) []Job {
	jobs := make([]Job, 0, iterations)
	for i := 0; i < iterations; i++ {
		c := *cfg
		if cfg.Seed != 0 {
			c.Seed = cfg.Seed + int64(i)
		}
		jobs = append(jobs, Job{Scenario: scenario, Iteration: i + 1, Config: &c, Target: target})
	}
	return jobs
}

// Run starts the jobs and streams their results. The channel is closed when all
// jobs finished or ctx was cancelled. A Runner is meant for a single Run.
func (r *Runner) Run(ctx context.Context, jobs []Job) <-chan *Result {
	if r.rateLimiter.Enabled() {
		r.logger.Debug("rate limiting executions", "per_second", r.opts.RateLimit)
	}

	r.stats.mu.Lock()
	r.stats.StartTime = time.Now()
	r.stats.TotalExecutions = len(jobs)
	r.stats.mu.Unlock()

	jobChan := make(chan Job, r.opts.Concurrency*2)

	for i := 0; i < r.opts.Concurrency; i++ {
		r.wg.Add(1)
		go r.worker(ctx, jobChan)
	}

	go func() {
		defer close(jobChan)
		for _, job := range jobs {
			select {
			case <-ctx.Done():
				return
			case jobChan <- job:
			}
		}
	}()

	go func() {
		r.wg.Wait()
		r.stats.mu.Lock()
		r.stats.EndTime = time.Now()
		duration := r.stats.EndTime.Sub(r.stats.StartTime).Seconds()
		if duration > 0 {
			r.stats.ExecutionsPerSec = float64(r.stats.SuccessCount+r.stats.ErrorCount) / duration
		}
		r.stats.mu.Unlock()
		close(r.results)
	}()

	return r.results
}

// Collect runs the jobs and gathers every execution result
func (r *Runner) Collect(ctx context.Context, jobs []Job) []types.ExecutionResult {
	executions := make([]types.ExecutionResult, 0, len(jobs))
	for res := range r.Run(ctx, jobs) {
		executions = append(executions, *res.Execution)
	}
	return executions
}

func (r *Runner) worker(ctx context.Context, jobs <-chan Job) {
	defer r.wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := r.rateLimiter.Wait(ctx); err != nil {
			return
		}

		result := r.execute(ctx, job)
		r.results <- result

		r.stats.mu.Lock()
		if result.Error != nil {
			r.stats.ErrorCount++
		} else {
			r.stats.SuccessCount++
		}
		r.stats.InjectedCount += result.Execution.Injected
		r.stats.mu.Unlock()
	}
}

func (r *Runner) execute(ctx context.Context, job Job) *Result {
	start := time.Now()
	result := &Result{Job: job, Timestamp: start}

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	opts := []execution.Option{
		execution.WithScenario(job.Scenario, job.Iteration),
		execution.WithLogger(r.logger),
	}
	if r.opts.Sink != nil {
		opts = append(opts, execution.WithAccessSink(r.opts.Sink))
	}

	exec, err := execution.New(job.Config, opts...)
	if err != nil {
		result.Error = err
		result.Execution = &types.ExecutionResult{
			Scenario:  job.Scenario,
			Iteration: job.Iteration,
			Path:      job.Config.Path,
			Error:     err.Error(),
		}
		result.Duration = time.Since(start)
		r.logger.Warn("execution setup failed", "scenario", job.Scenario, "iteration", job.Iteration, "error", err)
		return result
	}

	res, err := exec.Run(ctx, job.Target)
	if res == nil {
		res = exec.Result()
		res.Error = err.Error()
	}
	result.Execution = res
	result.Error = err
	result.Duration = time.Since(start)

	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, context.DeadlineExceeded) {
			level = slog.LevelInfo
		}
		r.logger.Log(ctx, level, "execution failed", "scenario", job.Scenario, "iteration", job.Iteration, "error", err)
	}
	return result
}

// GetStats returns a copy of the current statistics
func (r *Runner) GetStats() *Stats {
	r.stats.mu.Lock()
	defer r.stats.mu.Unlock()

	return &Stats{
		TotalExecutions:  r.stats.TotalExecutions,
		SuccessCount:     r.stats.SuccessCount,
		ErrorCount:       r.stats.ErrorCount,
		InjectedCount:    r.stats.InjectedCount,
		StartTime:        r.stats.StartTime,
		EndTime:          r.stats.EndTime,
		ExecutionsPerSec: r.stats.ExecutionsPerSec,
	}
}
