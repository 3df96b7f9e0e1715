package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/edgard/clearskybot/internal/bot/tasks"
	"github.com/edgard/clearskybot/internal/config"
	"github.com/edgard/clearskybot/internal/logger"
)

const dailyInterval = 24 * time.Hour

// DailySchedule places the daily post on the wall clock.
type DailySchedule struct {
	Hour     int
	Location *time.Location
}

// Scheduler manages scheduled tasks using the gocron library. The daily post
// runs every 24h from its first start; maintenance tasks follow cron schedules.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	daily     DailySchedule
	taskMap   map[string]tasks.ScheduledTaskFunc
	now       func() time.Time
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a new scheduler instance using gocron.
func NewScheduler(baseLogger *slog.Logger, cfg *config.SchedulerConfig, daily DailySchedule, taskMap map[string]tasks.ScheduledTaskFunc) (*Scheduler, error) {
	if baseLogger == nil {
		baseLogger = slog.Default()
	}
	log := baseLogger.With("component", "scheduler")
	if daily.Location == nil {
		daily.Location = time.Local
	}

	s, err := gocron.NewScheduler(
		gocron.WithLocation(daily.Location),
		gocron.WithLogger(logger.NewGocronLogger(log)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    log,
		cfg:       cfg,
		daily:     daily,
		taskMap:   taskMap,
		now:       time.Now,
	}, nil
}

// Start schedules all registered tasks and starts the scheduler. Tasks receive ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler is already running")
	}

	scheduledCount := 0
	if taskFunc, ok := s.taskMap[tasks.DailyPostTaskName]; ok {
		if err := s.scheduleDaily(ctx, taskFunc); err != nil {
			return err
		}
		scheduledCount++
	} else {
		s.logger.Warn("Daily post task not registered")
	}

	var tasksCfg map[string]config.TaskConfig
	if s.cfg != nil {
		tasksCfg = s.cfg.Tasks
	}
	for taskName, taskConfig := range tasksCfg {
		if taskName == tasks.DailyPostTaskName {
			s.logger.Warn("Daily post is scheduled by poster.hour, ignoring cron entry", "task_name", taskName)
			continue
		}
		if !taskConfig.Enabled {
			s.logger.Info("Skipping disabled task", "task_name", taskName)
			continue
		}

		taskFunc, exists := s.taskMap[taskName]
		if !exists {
			s.logger.Warn("Scheduled task configured but not found in registry, skipping", "task_name", taskName)
			continue
		}

		_, err := s.scheduler.NewJob(
			gocron.CronJob(taskConfig.Schedule, true),
			gocron.NewTask(s.runTask, ctx, taskName, taskFunc),
			gocron.WithName(taskName),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			s.logger.Error("Failed to schedule task", "task_name", taskName, "schedule", taskConfig.Schedule, "error", err)
			continue
		}

		s.logger.Info("Scheduled task", "task_name", taskName, "schedule", taskConfig.Schedule)
		scheduledCount++
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler initialized and started", "tasks_scheduled", scheduledCount)

	return nil
}

// scheduleDaily registers the daily post. When the first start is not in the
// future the first cycle runs immediately.
func (s *Scheduler) scheduleDaily(ctx context.Context, taskFunc tasks.ScheduledTaskFunc) error {
	now := s.now().In(s.daily.Location)
	start := tasks.NextStart(now, s.daily.Hour)

	startAt := gocron.WithStartImmediately()
	if start.After(now) {
		startAt = gocron.WithStartDateTime(start)
	}

	newJob := func(startAt gocron.StartAtOption) error {
		_, err := s.scheduler.NewJob(
			gocron.DurationJob(dailyInterval),
			gocron.NewTask(s.runTask, ctx, tasks.DailyPostTaskName, taskFunc),
			gocron.WithName(tasks.DailyPostTaskName),
			gocron.WithStartAt(startAt),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		return err
	}

	err := newJob(startAt)
	if errors.Is(err, gocron.ErrWithStartDateTimePast) {
		// The start passed while scheduling.
		err = newJob(gocron.WithStartImmediately())
	}
	if err != nil {
		return fmt.Errorf("failed to schedule daily post: %w", err)
	}

	s.logger.Info("Scheduled daily post", "first_run", start, "hour", s.daily.Hour, "location", s.daily.Location.String(), "immediate", !start.After(now))
	return nil
}

func (s *Scheduler) runTask(ctx context.Context, name string, taskFunc tasks.ScheduledTaskFunc) {
	s.logger.InfoContext(ctx, "Running scheduled task", "task_name", name)
	startTime := time.Now()
	if err := taskFunc(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Scheduled task failed", "task_name", name, "error", err)
	}
	s.logger.InfoContext(ctx, "Finished scheduled task", "task_name", name, "duration", time.Since(startTime))
}

// Jobs returns the names and next run times of the scheduled jobs.
func (s *Scheduler) Jobs() map[string]time.Time {
	jobs := make(map[string]time.Time)
	for _, j := range s.scheduler.Jobs() {
		next, err := j.NextRun()
		if err != nil {
			s.logger.Debug("No next run for job", "task_name", j.Name(), "error", err)
		}
		jobs[j.Name()] = next
	}
	return jobs
}

// Stop gracefully stops the scheduler, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Info("Scheduler is not running, nothing to stop.")
		return nil
	}

	s.logger.Debug("Stopping scheduler gracefully (waiting for jobs)...")
	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped gracefully.")
	}

	s.running = false
	return err
}
