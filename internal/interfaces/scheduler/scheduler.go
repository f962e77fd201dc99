package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// JobProvider lists the jobs of one scheduled run.
type JobProvider func(ctx context.Context) ([]Job, error)

// Config holds the scheduler settings.
type Config struct {
	// Cron is a six-field spec with seconds, e.g. "0 0 5,14,20 * * *".
	Cron         string
	WorkerCount  int
	JobDelay     time.Duration
	JobTimeout   time.Duration
	QueueSize    int
	RunOnStartup bool
	JobProvider  JobProvider
}

// Scheduler fires a batch of jobs on a cron schedule and feeds them to a
// worker pool.
type Scheduler struct {
	cron         *cron.Cron
	pool         *WorkerPool
	provider     JobProvider
	runOnStartup bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    zerolog.Logger
}

func NewScheduler(cfg Config, log zerolog.Logger) (*Scheduler, error) {
	if cfg.JobProvider == nil {
		return nil, fmt.Errorf("job provider is required")
	}

	log = log.With().Str("component", "scheduler").Logger()
	pool := NewWorkerPool(cfg.WorkerCount, cfg.JobDelay, cfg.QueueSize, log)
	pool.SetJobTimeout(cfg.JobTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:         cron.New(cron.WithSeconds()),
		pool:         pool,
		provider:     cfg.JobProvider,
		runOnStartup: cfg.RunOnStartup,
		ctx:          ctx,
		cancel:       cancel,
		log:          log,
	}

	if _, err := s.cron.AddFunc(cfg.Cron, s.runJobs); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid cron spec %q: %w", cfg.Cron, err)
	}

	log.Info().
		Str("schedule", cfg.Cron).
		Int("workers", cfg.WorkerCount).
		Dur("job_delay", cfg.JobDelay).
		Msg("Scheduler initialized")
	return s, nil
}

func (s *Scheduler) Start() {
	s.pool.Start()
	s.cron.Start()

	if s.runOnStartup {
		s.TriggerNow()
	}
	s.log.Info().Msg("Scheduler started")
}

// TriggerNow runs a batch immediately, outside the schedule.
func (s *Scheduler) TriggerNow() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runJobs()
	}()
}

// NextRun returns the next scheduled fire time, or zero before Start.
func (s *Scheduler) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) runJobs() {
	if s.ctx.Err() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	jobs, err := s.provider(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to fetch jobs")
		return
	}
	if len(jobs) == 0 {
		s.log.Info().Msg("No jobs to process")
		return
	}

	s.pool.SubmitBatch(jobs)
}

// Shutdown stops the schedule, then drains the worker pool.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	s.log.Info().Msg("Scheduler shutting down")

	stopped := s.cron.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		s.log.Warn().Msg("Timeout waiting for scheduled runs to stop")
	}

	s.pool.ShutdownWithTimeout(timeout)
	s.log.Info().Msg("Scheduler shutdown complete")
}
