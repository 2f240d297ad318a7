package scheduler

import (
	"context"
	"time"

	"ana-notifier/internal/app" // For DailyTaskService interface

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DailyTaskScheduler fires the daily reminder job once per day. The HTTP
// trigger shares the same service, so a timer firing on a day that was
// already run by hand is absorbed by the run claim, not by the scheduler.
type DailyTaskScheduler struct {
	cronEngine    *cron.Cron
	dailyTask     app.DailyTaskService
	logger        *logrus.Logger
	cronSpecDaily string
}

func NewDailyTaskScheduler(
	dailyTask app.DailyTaskService,
	logger *logrus.Logger,
	cronSpecDaily string, // e.g., "0 6 * * *" (06:00 daily)
) *DailyTaskScheduler {
	return &DailyTaskScheduler{
		cronEngine:    cron.New(cron.WithLocation(time.UTC)),
		dailyTask:     dailyTask,
		logger:        logger,
		cronSpecDaily: cronSpecDaily,
	}
}

func (s *DailyTaskScheduler) Start() error {
	s.logger.Info("Starting daily task scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpecDaily, func() {
		s.logger.Info("Cron job triggered for daily anniversary reminders.")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
		defer cancel()

		summary, err := s.dailyTask.Run(ctx, time.Now())
		if err != nil {
			s.logger.Errorf("Error during daily task run: %v", err)
			return
		}
		if summary.AlreadyRan {
			s.logger.Infof("Daily task for %s had already run. Nothing dispatched.", summary.TargetDate)
			return
		}
		s.logger.Infof("Daily task for %s completed. Sent: %d, skipped: %d, failed: %d.",
			summary.TargetDate, summary.Sent, summary.Skipped, summary.Failed)
	})
	if err != nil {
		return err
	}

	s.cronEngine.Start()
	s.logger.Info("Daily task scheduler started.")
	return nil
}

func (s *DailyTaskScheduler) Stop() {
	s.logger.Info("Stopping daily task scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Daily task scheduler gracefully stopped.")
}
