package app

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"ana-notifier/internal/domain/anniversary"
	"ana-notifier/internal/domain/dispatch"
	"ana-notifier/internal/domain/group"
	"ana-notifier/internal/domain/user"
	idb "ana-notifier/internal/infra/database"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Fakes ---

type fakeAnnivRepo struct {
	annivs  []*anniversary.Anniversary
	listErr error
}

func (f *fakeAnnivRepo) ListByDates(_ context.Context, dates []string) ([]*anniversary.Anniversary, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	// Exact string equality, like the real store.
	want := make(map[string]bool)
	for _, d := range dates {
		want[d] = true
	}
	var out []*anniversary.Anniversary
	for _, a := range f.annivs {
		if want[a.Date] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAnnivRepo) Count(context.Context) (int64, error) {
	return int64(len(f.annivs)), nil
}

type fakeGroupRepo struct {
	members []*group.Membership
	listErr error
	calls   int
}

func (f *fakeGroupRepo) ListMembersOfGroups(_ context.Context, groupIDs []string) ([]*group.Membership, error) {
	f.calls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	want := make(map[string]bool)
	for _, id := range groupIDs {
		want[id] = true
	}
	seen := make(map[group.Membership]bool)
	var out []*group.Membership
	for _, m := range f.members {
		if want[m.GroupID] && !seen[*m] {
			seen[*m] = true
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeSettingsRepo struct {
	settings map[string]*user.Settings
}

func (f *fakeSettingsRepo) GetByUserID(_ context.Context, userID string) (*user.Settings, error) {
	if s, ok := f.settings[userID]; ok {
		return s, nil
	}
	return &user.Settings{UserID: userID, Channel: user.ChannelNone}, nil
}

type fakeAccountRepo struct {
	emails map[string]string
}

func (f *fakeAccountRepo) GetEmail(_ context.Context, userID string) (string, error) {
	return f.emails[userID], nil
}

type fakeRunRepo struct {
	runs     map[string]*dispatch.Run
	recorded map[string][]dispatch.Result
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: make(map[string]*dispatch.Run), recorded: make(map[string][]dispatch.Result)}
}

func (f *fakeRunRepo) ClaimRun(_ context.Context, runDate time.Time) (*dispatch.Run, error) {
	key := runDate.Format("2006-01-02")
	if existing, ok := f.runs[key]; ok {
		if existing.Status == dispatch.RunCompleted {
			return nil, idb.ErrRunAlreadyExists
		}
		// Unfinished run from a failed attempt: hand the claim back out.
		existing.Status = dispatch.RunStarted
		return existing, nil
	}
	run := &dispatch.Run{ID: "run-" + key, RunDate: runDate, Status: dispatch.RunStarted, CreatedAt: time.Now()}
	f.runs[key] = run
	return run, nil
}

func (f *fakeRunRepo) MarkCompleted(_ context.Context, runID string) error {
	for _, r := range f.runs {
		if r.ID == runID {
			r.Status = dispatch.RunCompleted
		}
	}
	return nil
}

func (f *fakeRunRepo) RecordResults(_ context.Context, runID string, results []dispatch.Result) error {
	f.recorded[runID] = append(f.recorded[runID], results...)
	return nil
}

type emailSend struct {
	to, subject, html, text string
}

type fakeEmailSender struct {
	sends  []emailSend
	errFor map[string]error
	onSend func()
}

func (f *fakeEmailSender) Send(_ context.Context, to, subject, html, text string) error {
	if err := f.errFor[to]; err != nil {
		return err
	}
	f.sends = append(f.sends, emailSend{to: to, subject: subject, html: html, text: text})
	if f.onSend != nil {
		f.onSend()
	}
	return nil
}

type waSend struct {
	to, date, messages string
}

type fakeWhatsAppSender struct {
	sends  []waSend
	errFor map[string]error
}

func (f *fakeWhatsAppSender) Send(_ context.Context, to, date, messages string) error {
	if err := f.errFor[to]; err != nil {
		return err
	}
	f.sends = append(f.sends, waSend{to: to, date: date, messages: messages})
	return nil
}

type fixture struct {
	annivs   *fakeAnnivRepo
	groups   *fakeGroupRepo
	settings *fakeSettingsRepo
	accounts *fakeAccountRepo
	runs     *fakeRunRepo
	email    *fakeEmailSender
	wa       *fakeWhatsAppSender
	svc      *DailyTaskServiceImpl
}

func newFixture() *fixture {
	f := &fixture{
		annivs:   &fakeAnnivRepo{},
		groups:   &fakeGroupRepo{},
		settings: &fakeSettingsRepo{settings: make(map[string]*user.Settings)},
		accounts: &fakeAccountRepo{emails: make(map[string]string)},
		runs:     newFakeRunRepo(),
		email:    &fakeEmailSender{errFor: make(map[string]error)},
		wa:       &fakeWhatsAppSender{errFor: make(map[string]error)},
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	f.svc = NewDailyTaskServiceImpl(f.annivs, f.groups, f.settings, f.accounts, f.runs, f.email, f.wa, log, time.Second)
	return f
}

// --- Tests ---

// now is 2024-04-15, so the job targets 16/4.
var now = time.Date(2024, time.April, 15, 6, 0, 0, 0, time.UTC)

func TestRun_EndToEndScenario(t *testing.T) {
	f := newFixture()
	f.annivs.annivs = []*anniversary.Anniversary{
		{ID: "a1", GroupID: "G1", Name: "Eve Day", Date: "16/4"},
	}
	f.groups.members = []*group.Membership{
		{UserID: "U1", GroupID: "G1"},
		{UserID: "U2", GroupID: "G1"},
	}
	f.settings.settings["U1"] = &user.Settings{UserID: "U1", Channel: user.ChannelEmail}
	f.settings.settings["U2"] = &user.Settings{UserID: "U2", Channel: user.ChannelWhatsApp, WhatsAppNumber: "+100"}
	f.accounts.emails["U1"] = "u1@x.com"

	summary, err := f.svc.Run(context.Background(), now)
	require.NoError(t, err)

	require.Len(t, f.email.sends, 1)
	assert.Equal(t, "u1@x.com", f.email.sends[0].to)
	assert.Equal(t, "Upcoming anniversaries on 16 April", f.email.sends[0].subject)
	assert.Contains(t, f.email.sends[0].html, "Eve Day")
	assert.Contains(t, f.email.sends[0].html, "On 16 April there are following anniversaries ")

	require.Len(t, f.wa.sends, 1)
	assert.Equal(t, "whatsapp:+100", f.wa.sends[0].to)
	assert.Equal(t, "16 April", f.wa.sends[0].date)
	assert.Equal(t, "Eve Day", f.wa.sends[0].messages)

	assert.Equal(t, "16/4", summary.TargetDate)
	assert.Equal(t, 1, summary.Matched)
	assert.Equal(t, 2, summary.Sent)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
}

func TestRun_PaddedStoredDatesMatch(t *testing.T) {
	// now 2024-03-14, target 15/3. A record stored as "15/03" must match a
	// March 15 run the same as one stored "15/3".
	marchNow := time.Date(2024, time.March, 14, 6, 0, 0, 0, time.UTC)

	f := newFixture()
	f.annivs.annivs = []*anniversary.Anniversary{
		{ID: "a1", GroupID: "G1", Name: "Unpadded", Date: "15/3"},
		{ID: "a2", GroupID: "G1", Name: "Padded", Date: "15/03"},
		{ID: "a3", GroupID: "G1", Name: "Other day", Date: "16/3"},
	}
	f.groups.members = []*group.Membership{{UserID: "U1", GroupID: "G1"}}
	f.settings.settings["U1"] = &user.Settings{UserID: "U1", Channel: user.ChannelEmail}
	f.accounts.emails["U1"] = "u1@x.com"

	summary, err := f.svc.Run(context.Background(), marchNow)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Matched)
	assert.Equal(t, int64(3), summary.Candidates)
	require.Len(t, f.email.sends, 1)
	assert.Contains(t, f.email.sends[0].html, "Unpadded")
	assert.Contains(t, f.email.sends[0].html, "Padded")
	assert.NotContains(t, f.email.sends[0].html, "Other day")
}

func TestRun_LeapDayOnlyMatchesInLeapYears(t *testing.T) {
	f := newFixture()
	f.annivs.annivs = []*anniversary.Anniversary{
		{ID: "a1", GroupID: "G1", Name: "Leap Day", Date: "29/2"},
	}
	f.groups.members = []*group.Membership{{UserID: "U1", GroupID: "G1"}}
	f.settings.settings["U1"] = &user.Settings{UserID: "U1", Channel: user.ChannelEmail}
	f.accounts.emails["U1"] = "u1@x.com"

	// 2024 is a leap year: Feb 28 + 1 day lands on 29/2.
	leap, err := f.svc.Run(context.Background(), time.Date(2024, time.February, 28, 6, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, leap.Matched)
	assert.Len(t, f.email.sends, 1)

	// 2025 is not: Feb 28 + 1 day lands on 1/3, so nothing matches.
	plain, err := f.svc.Run(context.Background(), time.Date(2025, time.February, 28, 6, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "1/3", plain.TargetDate)
	assert.Equal(t, 0, plain.Matched)
	assert.Len(t, f.email.sends, 1)
}

func TestRun_MultiGroupMessagesMergedIntoOneSend(t *testing.T) {
	f := newFixture()
	f.annivs.annivs = []*anniversary.Anniversary{
		{ID: "a1", GroupID: "G1", Name: "Alice's Birthday", Date: "16/4"},
		{ID: "a2", GroupID: "G2", Name: "Bob's Anniversary", Date: "16/4"},
	}
	f.groups.members = []*group.Membership{
		{UserID: "U1", GroupID: "G1"},
		{UserID: "U1", GroupID: "G2"},
	}
	f.settings.settings["U1"] = &user.Settings{UserID: "U1", Channel: user.ChannelEmail}
	f.accounts.emails["U1"] = "u1@x.com"

	summary, err := f.svc.Run(context.Background(), now)
	require.NoError(t, err)

	// One merged message list, not two separate notifications.
	require.Len(t, f.email.sends, 1)
	assert.Contains(t, f.email.sends[0].html, "Alice's Birthday<br/>Bob's Anniversary")
	assert.Equal(t, 1, summary.Sent)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "U1", summary.Results[0].UserID)
}

func TestRun_CandidateAppearsOncePerUser(t *testing.T) {
	f := newFixture()
	f.annivs.annivs = []*anniversary.Anniversary{
		{ID: "a1", GroupID: "G1", Name: "A", Date: "16/4"},
		{ID: "a2", GroupID: "G2", Name: "B", Date: "16/4"},
	}
	f.groups.members = []*group.Membership{
		{UserID: "U1", GroupID: "G1"},
		{UserID: "U1", GroupID: "G2"},
		{UserID: "U2", GroupID: "G2"},
	}
	f.settings.settings["U2"] = &user.Settings{UserID: "U2", Channel: user.ChannelWhatsApp, WhatsAppNumber: "+200"}

	summary, err := f.svc.Run(context.Background(), now)
	require.NoError(t, err)

	require.Len(t, summary.Results, 2)
	seen := make(map[string]int)
	for _, r := range summary.Results {
		seen[r.UserID]++
	}
	assert.Equal(t, 1, seen["U1"])
	assert.Equal(t, 1, seen["U2"])
}

func TestRun_WhatsAppWithoutNumberSkipsSilently(t *testing.T) {
	f := newFixture()
	f.annivs.annivs = []*anniversary.Anniversary{
		{ID: "a1", GroupID: "G1", Name: "A", Date: "16/4"},
	}
	f.groups.members = []*group.Membership{{UserID: "U1", GroupID: "G1"}}
	f.settings.settings["U1"] = &user.Settings{UserID: "U1", Channel: user.ChannelWhatsApp}

	summary, err := f.svc.Run(context.Background(), now)
	require.NoError(t, err)

	assert.Empty(t, f.wa.sends)
	assert.Empty(t, f.email.sends)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
}

func TestRun_EmailWithoutAddressSkipsSilently(t *testing.T) {
	f := newFixture()
	f.annivs.annivs = []*anniversary.Anniversary{
		{ID: "a1", GroupID: "G1", Name: "A", Date: "16/4"},
	}
	f.groups.members = []*group.Membership{{UserID: "U1", GroupID: "G1"}}
	f.settings.settings["U1"] = &user.Settings{UserID: "U1", Channel: user.ChannelEmail}
	// No account email for U1.

	summary, err := f.svc.Run(context.Background(), now)
	require.NoError(t, err)

	assert.Empty(t, f.email.sends)
	assert.Equal(t, 1, summary.Skipped)
}

func TestRun_ChannelNoneNeverDispatches(t *testing.T) {
	f := newFixture()
	f.annivs.annivs = []*anniversary.Anniversary{
		{ID: "a1", GroupID: "G1", Name: "A", Date: "16/4"},
	}
	f.groups.members = []*group.Membership{{UserID: "U1", GroupID: "G1"}}
	// U1 has no settings row at all: defaults to None with contact info absent.
	f.accounts.emails["U1"] = "u1@x.com"

	summary, err := f.svc.Run(context.Background(), now)
	require.NoError(t, err)

	assert.Empty(t, f.email.sends)
	assert.Empty(t, f.wa.sends)
	assert.Equal(t, 1, summary.Skipped)
}

func TestRun_TransportFailureDoesNotAbortOthers(t *testing.T) {
	f := newFixture()
	f.annivs.annivs = []*anniversary.Anniversary{
		{ID: "a1", GroupID: "G1", Name: "A", Date: "16/4"},
	}
	f.groups.members = []*group.Membership{
		{UserID: "U1", GroupID: "G1"},
		{UserID: "U2", GroupID: "G1"},
		{UserID: "U3", GroupID: "G1"},
	}
	f.settings.settings["U1"] = &user.Settings{UserID: "U1", Channel: user.ChannelEmail}
	f.settings.settings["U2"] = &user.Settings{UserID: "U2", Channel: user.ChannelEmail}
	f.settings.settings["U3"] = &user.Settings{UserID: "U3", Channel: user.ChannelWhatsApp, WhatsAppNumber: "+300"}
	f.accounts.emails["U1"] = "u1@x.com"
	f.accounts.emails["U2"] = "u2@x.com"
	f.email.errFor["u1@x.com"] = errors.New("mailbox on fire")

	summary, err := f.svc.Run(context.Background(), now)
	require.NoError(t, err, "a per-user transport failure must not fail the run")

	require.Len(t, f.email.sends, 1)
	assert.Equal(t, "u2@x.com", f.email.sends[0].to)
	require.Len(t, f.wa.sends, 1)

	assert.Equal(t, 2, summary.Sent)
	assert.Equal(t, 1, summary.Failed)

	var failed *dispatch.Result
	for i := range summary.Results {
		if summary.Results[i].Status == dispatch.StatusFailed {
			failed = &summary.Results[i]
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "U1", failed.UserID)
	assert.Contains(t, failed.Error, "mailbox on fire")
}

func TestRun_NoMatchesShortCircuits(t *testing.T) {
	f := newFixture()
	f.annivs.annivs = []*anniversary.Anniversary{
		{ID: "a1", GroupID: "G1", Name: "A", Date: "1/1"},
	}

	summary, err := f.svc.Run(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Matched)
	assert.Equal(t, 0, f.groups.calls, "membership store should not be queried when nothing matched")
	assert.Empty(t, f.email.sends)
	assert.Empty(t, f.wa.sends)
}

func TestRun_SecondInvocationSameDayIsNoOp(t *testing.T) {
	f := newFixture()
	f.annivs.annivs = []*anniversary.Anniversary{
		{ID: "a1", GroupID: "G1", Name: "A", Date: "16/4"},
	}
	f.groups.members = []*group.Membership{{UserID: "U1", GroupID: "G1"}}
	f.settings.settings["U1"] = &user.Settings{UserID: "U1", Channel: user.ChannelEmail}
	f.accounts.emails["U1"] = "u1@x.com"

	first, err := f.svc.Run(context.Background(), now)
	require.NoError(t, err)
	assert.False(t, first.AlreadyRan)
	require.Len(t, f.email.sends, 1)

	second, err := f.svc.Run(context.Background(), now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, second.AlreadyRan)
	assert.Len(t, f.email.sends, 1, "repeated trigger must not double-send")
}

func TestRun_RetryAfterFailedRunDispatches(t *testing.T) {
	f := newFixture()
	f.annivs.annivs = []*anniversary.Anniversary{
		{ID: "a1", GroupID: "G1", Name: "Eve Day", Date: "16/4"},
	}
	f.groups.members = []*group.Membership{{UserID: "U1", GroupID: "G1"}}
	f.settings.settings["U1"] = &user.Settings{UserID: "U1", Channel: user.ChannelEmail}
	f.accounts.emails["U1"] = "u1@x.com"

	// First attempt dies on a transient store failure after the claim.
	f.annivs.listErr = errors.New("store unreachable")
	_, err := f.svc.Run(context.Background(), now)
	require.Error(t, err)
	require.Empty(t, f.email.sends)

	// The store recovers; a retry must dispatch normally, not no-op on the
	// earlier claim.
	f.annivs.listErr = nil
	summary, err := f.svc.Run(context.Background(), now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, summary.AlreadyRan, "retry after a failed run should dispatch, not no-op")
	require.Len(t, f.email.sends, 1)
	assert.Equal(t, "u1@x.com", f.email.sends[0].to)
	assert.Equal(t, 1, summary.Sent)

	// The successful retry finalizes the claim: a third trigger is a no-op.
	third, err := f.svc.Run(context.Background(), now.Add(4*time.Minute))
	require.NoError(t, err)
	assert.True(t, third.AlreadyRan)
	assert.Len(t, f.email.sends, 1)
}

func TestRun_StoreFailureIsFatal(t *testing.T) {
	f := newFixture()
	f.annivs.listErr = errors.New("store unreachable")

	_, err := f.svc.Run(context.Background(), now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store unreachable")
	assert.Empty(t, f.email.sends)
}

func TestRun_ResultsAreRecorded(t *testing.T) {
	f := newFixture()
	f.annivs.annivs = []*anniversary.Anniversary{
		{ID: "a1", GroupID: "G1", Name: "A", Date: "16/4"},
	}
	f.groups.members = []*group.Membership{{UserID: "U1", GroupID: "G1"}}
	f.settings.settings["U1"] = &user.Settings{UserID: "U1", Channel: user.ChannelEmail}
	f.accounts.emails["U1"] = "u1@x.com"

	summary, err := f.svc.Run(context.Background(), now)
	require.NoError(t, err)

	recorded := f.runs.recorded[summary.RunID]
	require.Len(t, recorded, 1)
	assert.Equal(t, dispatch.StatusSent, recorded[0].Status)
	assert.Equal(t, "U1", recorded[0].UserID)
}

func TestRun_CancelledContextStopsBetweenUsers(t *testing.T) {
	f := newFixture()
	f.annivs.annivs = []*anniversary.Anniversary{
		{ID: "a1", GroupID: "G1", Name: "A", Date: "16/4"},
	}
	f.groups.members = []*group.Membership{{UserID: "U1", GroupID: "G1"}}
	f.settings.settings["U1"] = &user.Settings{UserID: "U1", Channel: user.ChannelEmail}
	f.accounts.emails["U1"] = "u1@x.com"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Run(ctx, now)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.email.sends)

	// A cancelled run leaves the claim reclaimable, like any other failure.
	retry, err := f.svc.Run(context.Background(), now)
	require.NoError(t, err)
	assert.False(t, retry.AlreadyRan)
	assert.Len(t, f.email.sends, 1)
}

func TestRun_CancellationMidLoopPersistsPartialResults(t *testing.T) {
	f := newFixture()
	f.annivs.annivs = []*anniversary.Anniversary{
		{ID: "a1", GroupID: "G1", Name: "A", Date: "16/4"},
	}
	f.groups.members = []*group.Membership{
		{UserID: "U1", GroupID: "G1"},
		{UserID: "U2", GroupID: "G1"},
	}
	f.settings.settings["U1"] = &user.Settings{UserID: "U1", Channel: user.ChannelEmail}
	f.settings.settings["U2"] = &user.Settings{UserID: "U2", Channel: user.ChannelEmail}
	f.accounts.emails["U1"] = "u1@x.com"
	f.accounts.emails["U2"] = "u2@x.com"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Cancel after the first send lands, so the loop stops before the second.
	f.email.onSend = cancel

	summary, err := f.svc.Run(ctx, now)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, f.email.sends, 1)

	// The outcome of the send that already happened is still on record.
	recorded := f.runs.recorded[summary.RunID]
	require.Len(t, recorded, 1)
	assert.Equal(t, dispatch.StatusSent, recorded[0].Status)
	assert.Equal(t, "U1", recorded[0].UserID)
}
