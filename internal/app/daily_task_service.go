// internal/app/daily_task_service.go
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ana-notifier/internal/domain/anniversary"
	"ana-notifier/internal/domain/dispatch"
	"ana-notifier/internal/domain/group"
	"ana-notifier/internal/domain/user"
	idb "ana-notifier/internal/infra/database" // For ErrRunAlreadyExists

	"github.com/sirupsen/logrus"
)

// DailyTaskService runs the daily anniversary reminder job: match tomorrow's
// anniversaries, aggregate them per group and per user, resolve each user's
// contact details, and dispatch one message per eligible user.
type DailyTaskService interface {
	Run(ctx context.Context, now time.Time) (*dispatch.Summary, error)
}

// DailyTaskServiceImpl implements the DailyTaskService interface.
type DailyTaskServiceImpl struct {
	annivRepo    anniversary.Repository
	groupRepo    group.Repository
	settingsRepo user.SettingsRepository
	accountRepo  user.AccountRepository
	runRepo      dispatch.RunRepository
	emailSender  dispatch.EmailSender
	waSender     dispatch.WhatsAppSender
	logger       *logrus.Logger
	sendTimeout  time.Duration
}

func NewDailyTaskServiceImpl(
	ar anniversary.Repository,
	gr group.Repository,
	sr user.SettingsRepository,
	acr user.AccountRepository,
	rr dispatch.RunRepository,
	es dispatch.EmailSender,
	ws dispatch.WhatsAppSender,
	logger *logrus.Logger,
	sendTimeout time.Duration,
) *DailyTaskServiceImpl {
	return &DailyTaskServiceImpl{
		annivRepo:    ar,
		groupRepo:    gr,
		settingsRepo: sr,
		accountRepo:  acr,
		runRepo:      rr,
		emailSender:  es,
		waSender:     ws,
		logger:       logger,
		sendTimeout:  sendTimeout,
	}
}

// Run executes one pass of the daily job for the day after `now`. Store
// failures abort the run; per-user send failures are captured in the summary
// and never stop the remaining dispatches.
func (s *DailyTaskServiceImpl) Run(ctx context.Context, now time.Time) (*dispatch.Summary, error) {
	tomorrow := now.AddDate(0, 0, 1)
	targetDate := FormatDayMonth(tomorrow)
	summary := &dispatch.Summary{TargetDate: targetDate, StartedAt: now}

	s.logger.Infof("Daily task starting. Target date: %s", targetDate)

	// Claim the run for this target date so a repeated trigger (timer plus a
	// manual HTTP call) cannot double-send. The claim only becomes final when
	// the run is marked completed; a failed attempt leaves it reclaimable so
	// a retry dispatches instead of dropping the day's reminders.
	runDate := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, time.UTC)
	run, err := s.runRepo.ClaimRun(ctx, runDate)
	if err != nil {
		if err == idb.ErrRunAlreadyExists {
			s.logger.Warnf("Run for %s already claimed. Skipping dispatch.", runDate.Format("2006-01-02"))
			summary.AlreadyRan = true
			return summary, nil
		}
		return nil, fmt.Errorf("failed to claim run for %s: %w", runDate.Format("2006-01-02"), err)
	}
	summary.RunID = run.ID

	// Matcher: the candidate count makes a silent date-format mismatch
	// observable in the logs.
	total, err := s.annivRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count anniversaries: %w", err)
	}
	summary.Candidates = total

	matched, err := s.annivRepo.ListByDates(ctx, DateSpellings(tomorrow))
	if err != nil {
		return nil, fmt.Errorf("failed to list anniversaries for %s: %w", targetDate, err)
	}
	summary.Matched = len(matched)
	s.logger.Infof("Matched %d of %d anniversaries for %s.", len(matched), total, targetDate)
	if len(matched) == 0 {
		s.completeRun(ctx, run.ID)
		return summary, nil
	}

	// Aggregator: group the matched anniversaries, then expand membership of
	// those groups into one merged message list per user.
	groupNotifications := make(map[string][]string)
	var groupIDs []string
	for _, a := range matched {
		s.logger.Debugf("Anniversary %q on %s in group %s.", a.Name, a.Date, a.GroupID)
		if _, ok := groupNotifications[a.GroupID]; !ok {
			groupIDs = append(groupIDs, a.GroupID)
		}
		groupNotifications[a.GroupID] = append(groupNotifications[a.GroupID], a.Name)
	}

	members, err := s.groupRepo.ListMembersOfGroups(ctx, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list members of notified groups: %w", err)
	}

	usersToMessages := make(map[string][]string)
	var candidates []string
	for _, m := range members {
		if _, ok := usersToMessages[m.UserID]; !ok {
			candidates = append(candidates, m.UserID)
		}
		usersToMessages[m.UserID] = append(usersToMessages[m.UserID], groupNotifications[m.GroupID]...)
	}
	s.logger.Infof("Resolved %d candidate users across %d notified groups.", len(candidates), len(groupIDs))

	// Resolver: join each candidate with their settings and account email.
	records := make([]*dispatch.Record, 0, len(candidates))
	for _, userID := range candidates {
		settings, err := s.settingsRepo.GetByUserID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load settings for user %s: %w", userID, err)
		}
		email, err := s.accountRepo.GetEmail(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load email for user %s: %w", userID, err)
		}
		records = append(records, &dispatch.Record{
			UserID:         userID,
			Email:          email,
			Channel:        settings.Channel,
			WhatsAppNumber: settings.WhatsAppNumber,
			Messages:       usersToMessages[userID],
		})
	}

	// Dispatcher: strictly sequential, one isolated send per user.
	humanDate := HumanDate(tomorrow)
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			// Persist the outcomes of the sends that already happened before
			// bailing; ctx is dead, so the bookkeeping gets its own deadline.
			// The run stays unfinished and reclaimable by a retry.
			recordCtx, cancelRecord := context.WithTimeout(context.Background(), 5*time.Second)
			s.persistResults(recordCtx, run.ID, summary.Results)
			cancelRecord()
			return summary, fmt.Errorf("daily task cancelled after %d dispatches: %w", len(summary.Results), err)
		}
		summary.Tally(s.dispatchOne(ctx, rec, humanDate))
	}

	s.persistResults(ctx, run.ID, summary.Results)
	s.completeRun(ctx, run.ID)

	s.logger.Infof("Daily task finished for %s. Sent: %d, skipped: %d, failed: %d.",
		targetDate, summary.Sent, summary.Skipped, summary.Failed)
	return summary, nil
}

// persistResults records per-recipient outcomes. The sends already happened
// and the summary is accurate, so a bookkeeping failure is logged instead of
// failing the run.
func (s *DailyTaskServiceImpl) persistResults(ctx context.Context, runID string, results []dispatch.Result) {
	if err := s.runRepo.RecordResults(ctx, runID, results); err != nil {
		s.logger.Errorf("Failed to record dispatch results for run %s: %v", runID, err)
	}
}

// completeRun finalizes the day's claim. On failure the run stays reclaimable
// and a repeated trigger may re-dispatch, which is logged loudly here.
func (s *DailyTaskServiceImpl) completeRun(ctx context.Context, runID string) {
	if err := s.runRepo.MarkCompleted(ctx, runID); err != nil {
		s.logger.Errorf("Failed to mark run %s completed; a repeated trigger today may re-send: %v", runID, err)
	}
}

// dispatchOne sends the reminder for a single resolved record over the user's
// preferred channel. It never returns an error; every outcome, including a
// transport failure, becomes a Result.
func (s *DailyTaskServiceImpl) dispatchOne(ctx context.Context, rec *dispatch.Record, humanDate string) dispatch.Result {
	res := dispatch.Result{UserID: rec.UserID, Channel: rec.Channel, Status: dispatch.StatusSkipped}

	if len(rec.Messages) == 0 {
		s.logger.Debugf("User %s has no messages. Skipping.", rec.UserID)
		return res
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	switch rec.Channel {
	case user.ChannelEmail:
		if rec.Email == "" {
			s.logger.Debugf("User %s prefers email but has no address. Skipping.", rec.UserID)
			return res
		}
		subject := "Upcoming anniversaries on " + humanDate
		htmlBody := "On " + humanDate + " there are following anniversaries " + strings.Join(rec.Messages, "<br/>")
		textBody := "On " + humanDate + " there are following anniversaries " + strings.Join(rec.Messages, ", ")
		if err := s.emailSender.Send(sendCtx, rec.Email, subject, htmlBody, textBody); err != nil {
			s.logger.Errorf("Failed to send email to user %s: %v", rec.UserID, err)
			res.Status = dispatch.StatusFailed
			res.Error = err.Error()
			return res
		}
		s.logger.Infof("Sent email reminder to user %s (%d anniversaries).", rec.UserID, len(rec.Messages))
		res.Status = dispatch.StatusSent
	case user.ChannelWhatsApp:
		if rec.WhatsAppNumber == "" {
			s.logger.Debugf("User %s prefers WhatsApp but has no number. Skipping.", rec.UserID)
			return res
		}
		to := "whatsapp:" + rec.WhatsAppNumber
		if err := s.waSender.Send(sendCtx, to, humanDate, strings.Join(rec.Messages, " ")); err != nil {
			s.logger.Errorf("Failed to send WhatsApp message to user %s: %v", rec.UserID, err)
			res.Status = dispatch.StatusFailed
			res.Error = err.Error()
			return res
		}
		s.logger.Infof("Sent WhatsApp reminder to user %s (%d anniversaries).", rec.UserID, len(rec.Messages))
		res.Status = dispatch.StatusSent
	case user.ChannelNone:
		s.logger.Debugf("User %s has notifications disabled. Skipping.", rec.UserID)
	default:
		s.logger.Warnf("User %s has unknown notification channel %q. Skipping.", rec.UserID, rec.Channel)
	}
	return res
}
