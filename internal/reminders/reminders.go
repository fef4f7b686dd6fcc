package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"agenda-backend/internal/booking"
	"agenda-backend/internal/models"
	"agenda-backend/internal/notifications"
	"agenda-backend/internal/schedule"
	"github.com/robfig/cron/v3"
)

const DefaultSpec = "0 18 * * *"

type SettingsSource interface {
	Settings(ctx context.Context) (models.Settings, error)
}

// Job e-mails every client with a live meeting on the next calendar day.
type Job struct {
	Repo     booking.Repository
	Settings SettingsSource
	Mailer   notifications.Mailer
	Log      *slog.Logger
	Now      func() time.Time
	Timeout  time.Duration

	mu    sync.Mutex
	cron  *cron.Cron
	spec  string
	entry cron.EntryID
	loc   *time.Location
}

type Result struct {
	Date   string
	Sent   int
	Failed int
}

// RunOnce sends the reminders for tomorrow in the configured timezone. A failure on one
// meeting is logged and does not stop the run.
func (j *Job) RunOnce(ctx context.Context) (Result, error) {
	settings, err := j.Settings.Settings(ctx)
	if err != nil {
		return Result{}, err
	}
	loc, err := booking.Location(settings)
	if err != nil {
		return Result{}, err
	}
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	tomorrow := schedule.StartOfDay(now(), loc).AddDate(0, 0, 1).Format(schedule.DateLayout)

	meetings, err := j.Repo.ListMeetings(ctx, tomorrow, booking.ActiveStatuses)
	if err != nil {
		return Result{}, fmt.Errorf("reminders: list meetings %s: %w", tomorrow, err)
	}

	res := Result{Date: tomorrow}
	services := make(map[string]models.Service)
	for _, m := range meetings {
		service, ok := services[m.ServiceID]
		if !ok {
			service, err = j.Repo.GetService(ctx, m.ServiceID)
			if err != nil {
				// deleted services still get a reminder, without a name
				service = models.Service{ID: m.ServiceID}
			}
			services[m.ServiceID] = service
		}
		if _, err := j.Mailer.SendMeetingReminder(ctx, m, service); err != nil {
			res.Failed++
			j.logger().Warn("reminders: send failed",
				slog.String("meeting_id", m.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		res.Sent++
	}
	return res, nil
}

func (j *Job) logger() *slog.Logger {
	if j.Log != nil {
		return j.Log
	}
	return slog.Default()
}

func (j *Job) run() {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res, err := j.RunOnce(ctx)
	if err != nil {
		j.logger().Error("reminders: run failed", slog.String("error", err.Error()))
		return
	}
	j.logger().Info("reminders: run complete",
		slog.String("date", res.Date),
		slog.Int("sent", res.Sent),
		slog.Int("failed", res.Failed),
	)
}

// Start registers the job on a cron scheduler and starts it. spec fires in loc, which
// should be the settings timezone; call Relocate when it changes. Stop the returned
// scheduler on shutdown.
func (j *Job) Start(spec string, loc *time.Location) (*cron.Cron, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))
	id, err := c.AddFunc(zoned(spec, loc), j.run)
	if err != nil {
		return nil, fmt.Errorf("reminders: schedule %q: %w", spec, err)
	}

	j.mu.Lock()
	j.cron, j.spec, j.entry, j.loc = c, spec, id, loc
	j.mu.Unlock()

	c.Start()
	return c, nil
}

// Relocate reschedules the started job in loc. It does nothing before Start or when
// loc is the current zone.
func (j *Job) Relocate(loc *time.Location) error {
	if loc == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron == nil || j.loc.String() == loc.String() {
		return nil
	}
	id, err := j.cron.AddFunc(zoned(j.spec, loc), j.run)
	if err != nil {
		return fmt.Errorf("reminders: reschedule in %s: %w", loc, err)
	}
	j.cron.Remove(j.entry)
	j.entry, j.loc = id, loc
	return nil
}

// Location is the zone the schedule currently fires in; nil before Start.
func (j *Job) Location() *time.Location {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.loc
}

// zoned pins spec to loc unless spec already names its own zone.
func zoned(spec string, loc *time.Location) string {
	if strings.HasPrefix(spec, "TZ=") || strings.HasPrefix(spec, "CRON_TZ=") {
		return spec
	}
	return "CRON_TZ=" + loc.String() + " " + spec
}
