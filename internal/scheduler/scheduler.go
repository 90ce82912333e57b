// Package scheduler fires the two fixed wall-clock jobs that invoke the
// ingestion core outside of an HTTP request: an intraday tick for
// fast-moving datasets and a daily tick for the rest. Each tick launches
// one independent run per configured dataset_id; ticks never wait for a
// previous run of the same job to finish; see Job.Datasets for per-job
// concurrency.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gasmarket-eu/ingestor/internal/ingestion"
)

// Runner is the subset of Orchestrator the scheduler depends on.
type Runner interface {
	Run(ctx context.Context, datasetID string, params ingestion.FetchParams) error
}

// Job is one fixed trigger: a set of dataset_ids fired together on Interval.
type Job struct {
	Name     string
	Interval time.Duration
	Datasets []string
}

// Scheduler runs a fixed set of Jobs on independent tickers until its
// context is canceled. It holds no mutable state beyond the tickers
// themselves; a run's failure never affects another run or another job.
type Scheduler struct {
	runner Runner
	jobs   []Job
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an optional Scheduler dependency.
type Option func(*Scheduler)

// WithLogger overrides the default slog.Default() logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// NewScheduler returns a Scheduler that fires the given jobs once Run is
// called.
func NewScheduler(runner Runner, jobs []Job, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner: runner,
		jobs:   jobs,
		logger: slog.Default(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run starts one ticker goroutine per job and blocks until ctx is
// canceled. It does not fire a job immediately on start: the first tick
// for each job happens after its own Interval has elapsed.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for _, job := range s.jobs {
		wg.Add(1)

		go func(job Job) {
			defer wg.Done()
			s.runJob(ctx, job)
		}(job)
	}

	wg.Wait()
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx, job)
		}
	}
}

// fire launches one independent, fire-and-forget run per dataset_id in the
// job. A dataset's failure is logged and does not block or cancel the
// others.
func (s *Scheduler) fire(ctx context.Context, job Job) {
	for _, datasetID := range job.Datasets {
		go func(datasetID string) {
			s.logger.Info("scheduler firing run",
				slog.String("job", job.Name),
				slog.String("dataset_id", datasetID),
			)

			if err := s.runner.Run(ctx, datasetID, ingestion.FetchParams{}); err != nil {
				s.logger.Error("scheduled run failed",
					slog.String("job", job.Name),
					slog.String("dataset_id", datasetID),
					slog.String("error", err.Error()),
				)
			}
		}(datasetID)
	}
}
