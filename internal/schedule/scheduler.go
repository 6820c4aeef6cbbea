// Package schedule runs periodic jobs for the worker process.
package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"docindex-platform/internal/logger"
	"docindex-platform/models"
)

const ReindexJobTag = "full-reindex"

// Scheduler manages scheduled jobs
type Scheduler struct {
	scheduler *gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	s.SingletonModeAll()

	return &Scheduler{
		scheduler: s,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and cancels the context handed to running jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	if s.cancel != nil {
		s.cancel()
	}
}

// ScheduleJob schedules job on a cron expression under a unique tag.
func (s *Scheduler) ScheduleJob(tag, cronExpr string, job func(ctx context.Context) error) error {
	_, err := s.scheduler.Cron(cronExpr).Tag(tag).Do(func() error {
		return job(s.ctx)
	})
	return err
}

func (s *Scheduler) RemoveJob(tag string) error {
	return s.scheduler.RemoveByTag(tag)
}

func (s *Scheduler) GetJobs() []*gocron.Job {
	return s.scheduler.Jobs()
}

// LockChecker reports the reindex lock.
type LockChecker interface {
	Check(ctx context.Context) models.LockState
}

// RunStarter starts a reindex run and returns its id.
type RunStarter interface {
	Start(ctx context.Context) (string, error)
}

// ReindexJob starts a full reindex unless one is already running.
func ReindexJob(guard LockChecker, starter RunStarter, log *slog.Logger) func(ctx context.Context) error {
	log = logger.Or(log).With("component", "reindex_schedule")
	return func(ctx context.Context) error {
		if st := guard.Check(ctx); st.Locked {
			log.Info("scheduled reindex skipped, run in progress", "started_at", st.StartedAt)
			return nil
		}
		runID, err := starter.Start(ctx)
		if err != nil {
			log.Error("scheduled reindex failed to start", "error", err)
			return err
		}
		log.Info("scheduled reindex started", "run_id", runID)
		return nil
	}
}
