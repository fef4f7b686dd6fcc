package reminders

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"agenda-backend/internal/booking"
	"agenda-backend/internal/models"
	"github.com/robfig/cron/v3"
)

type fakeMailer struct {
	sent []string
	fail map[string]bool
}

func (f *fakeMailer) SendMeetingConfirmation(ctx context.Context, m models.Meeting, s models.Service) (string, error) {
	return "", nil
}

func (f *fakeMailer) SendMeetingReminder(ctx context.Context, m models.Meeting, s models.Service) (string, error) {
	if f.fail[m.ID] {
		return "", errors.New("smtp down")
	}
	f.sent = append(f.sent, m.ID)
	return "msg-" + m.ID, nil
}

func (f *fakeMailer) SendMeetingStatus(ctx context.Context, m models.Meeting, s models.Service) (string, error) {
	return "", nil
}

func (f *fakeMailer) SendAdminNotice(ctx context.Context, to string, m models.Meeting, s models.Service) (string, error) {
	return "", nil
}

func seed(t *testing.T) *booking.MemoryRepository {
	t.Helper()
	ctx := context.Background()
	repo := booking.NewMemoryRepository()
	if err := repo.CreateService(ctx, models.Service{ID: "consult", Name: "Consultation", Slug: "consult", DurationMinutes: 60, Active: true}); err != nil {
		t.Fatalf("create service: %v", err)
	}
	meetings := []models.Meeting{
		{ID: "a", ServiceID: "consult", Date: "2026-02-03", Time: "09:00", DurationMinutes: 60, Status: models.MeetingPending},
		{ID: "b", ServiceID: "consult", Date: "2026-02-03", Time: "10:00", DurationMinutes: 60, Status: models.MeetingConfirmed},
		{ID: "c", ServiceID: "consult", Date: "2026-02-03", Time: "11:00", DurationMinutes: 60, Status: models.MeetingCancelled},
		{ID: "d", ServiceID: "consult", Date: "2026-02-04", Time: "09:00", DurationMinutes: 60, Status: models.MeetingConfirmed},
	}
	for _, m := range meetings {
		if _, err := repo.InsertMeeting(ctx, m); err != nil {
			t.Fatalf("insert %s: %v", m.ID, err)
		}
	}
	return repo
}

func newJob(repo booking.Repository, mailer *fakeMailer) *Job {
	defaults := models.Settings{
		BufferTimeMinutes:   0,
		MinAdvanceHours:     1,
		MaxAdvanceDays:      30,
		SlotDurationMinutes: 30,
		Timezone:            "Africa/Kinshasa",
	}
	loc, _ := time.LoadLocation("Africa/Kinshasa")
	return &Job{
		Repo:     repo,
		Settings: booking.NewSlotService(repo, defaults, nil),
		Mailer:   mailer,
		Now:      func() time.Time { return time.Date(2026, 2, 2, 18, 0, 0, 0, loc) },
	}
}

func TestRunOnceRemindsTomorrowsLiveMeetings(t *testing.T) {
	mailer := &fakeMailer{}
	res, err := newJob(seed(t), mailer).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	sort.Strings(mailer.sent)
	if res.Date != "2026-02-03" || res.Sent != 2 || len(mailer.sent) != 2 || mailer.sent[0] != "a" || mailer.sent[1] != "b" {
		t.Fatalf("result = %+v, sent = %v", res, mailer.sent)
	}
}

func TestRunOnceContinuesAfterFailure(t *testing.T) {
	mailer := &fakeMailer{fail: map[string]bool{"a": true}}
	res, err := newJob(seed(t), mailer).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if res.Sent != 1 || res.Failed != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	if _, err := newJob(seed(t), &fakeMailer{}).Start("every day", time.UTC); err == nil {
		t.Fatal("expected invalid cron spec error")
	}
}

func scheduledZone(t *testing.T, j *Job) string {
	t.Helper()
	j.mu.Lock()
	defer j.mu.Unlock()
	spec, ok := j.cron.Entry(j.entry).Schedule.(*cron.SpecSchedule)
	if !ok {
		t.Fatalf("entry %d has schedule %T", j.entry, j.cron.Entry(j.entry).Schedule)
	}
	return spec.Location.String()
}

func TestRelocateFollowsSettingsTimezone(t *testing.T) {
	kinshasa, err := time.LoadLocation("Africa/Kinshasa")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	j := newJob(seed(t), &fakeMailer{})
	if err := j.Relocate(paris); err != nil || j.Location() != nil {
		t.Fatalf("Relocate before Start = %v, location %v", err, j.Location())
	}

	c, err := j.Start("0 18 * * *", kinshasa)
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer c.Stop()
	if got := scheduledZone(t, j); got != "Africa/Kinshasa" {
		t.Fatalf("initial zone = %s", got)
	}

	if err := j.Relocate(paris); err != nil {
		t.Fatalf("Relocate error: %v", err)
	}
	if j.Location().String() != "Europe/Paris" || scheduledZone(t, j) != "Europe/Paris" {
		t.Fatalf("zone after relocate = %v / %s", j.Location(), scheduledZone(t, j))
	}
	if n := len(c.Entries()); n != 1 {
		t.Fatalf("entries = %d, want the old one removed", n)
	}
}

func TestStartKeepsExplicitSpecZone(t *testing.T) {
	j := newJob(seed(t), &fakeMailer{})
	c, err := j.Start("CRON_TZ=Asia/Tokyo 0 9 * * *", time.UTC)
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer c.Stop()
	if got := scheduledZone(t, j); got != "Asia/Tokyo" {
		t.Fatalf("zone = %s", got)
	}
}
