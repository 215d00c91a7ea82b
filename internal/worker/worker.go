// Package worker runs the periodic maintenance jobs of the booking manager:
// pending reminders, expired booking alerts, inbox purging and session
// pruning.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task performs one run of a job and reports how many records it touched.
type Task func(ctx context.Context) (int, error)

// Job is a task repeated every Interval. Jobs with a non-positive interval
// are disabled.
type Job struct {
	Name     string
	Interval time.Duration
	Task     Task
}

// Runner drives a fixed set of jobs until its context is cancelled.
type Runner struct {
	jobs   []Job
	logger *slog.Logger
	wg     sync.WaitGroup
}

func New(logger *slog.Logger, jobs ...Job) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{jobs: jobs, logger: logger.With("component", "worker")}
}

// Start launches one goroutine per enabled job. The first run happens after
// one interval.
func (r *Runner) Start(ctx context.Context) {
	for _, job := range r.jobs {
		if job.Interval <= 0 || job.Task == nil {
			r.logger.InfoContext(ctx, "job disabled", "job", job.Name)
			continue
		}
		r.wg.Add(1)
		go func(job Job) {
			defer r.wg.Done()
			r.loop(ctx, job)
		}(job)
	}
}

// Wait blocks until every job goroutine has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, job Job) {
	logger := r.logger.With("job", job.Name, "interval", job.Interval)
	logger.InfoContext(ctx, "job scheduled")

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "job stopped")
			return
		case <-ticker.C:
			r.runOnce(ctx, logger, job)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, logger *slog.Logger, job Job) {
	timeout := job.Interval
	if timeout > time.Minute {
		timeout = time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	count, err := job.Task(runCtx)
	if err != nil {
		logger.ErrorContext(ctx, "job failed", "error", err, "duration", time.Since(start))
		return
	}
	if count > 0 {
		logger.InfoContext(ctx, "job completed", "count", count, "duration", time.Since(start))
		return
	}
	logger.DebugContext(ctx, "job completed", "count", 0, "duration", time.Since(start))
}
