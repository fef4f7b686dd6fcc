package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"agenda-backend/internal/models"
	"agenda-backend/internal/schedule"
)

// SlotService computes bookable slots. It only reads from the repository and is safe
// for concurrent use; it gives no exclusivity guarantee (see Booker.Reserve).
type SlotService struct {
	repo     Repository
	defaults models.Settings
	now      func() time.Time
}

// NewSlotService builds a SlotService. defaults is used while the store holds no
// settings document; now defaults to time.Now.
func NewSlotService(repo Repository, defaults models.Settings, now func() time.Time) *SlotService {
	if now == nil {
		now = time.Now
	}
	return &SlotService{repo: repo, defaults: defaults, now: now}
}

type Availability struct {
	ServiceID string   `json:"serviceId"`
	Date      string   `json:"date"`
	Timezone  string   `json:"timezone"`
	Duration  int      `json:"duration"`
	Slots     []string `json:"slots"`

	// StableFor is how long Slots stay valid without any write: until the first slot
	// falls inside the minimum-advance cutoff or the local day rolls over.
	StableFor time.Duration `json:"-"`
}

// Settings returns the current validated settings snapshot.
func (s *SlotService) Settings(ctx context.Context) (models.Settings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if errors.Is(err, ErrNotFound) {
		settings = s.defaults
	} else if err != nil {
		return models.Settings{}, persistence("get settings", err)
	}
	if err := ValidateSettings(settings); err != nil {
		return models.Settings{}, err
	}
	return settings, nil
}

// AvailableSlots loads the service and settings, then runs ComputeSlots.
func (s *SlotService) AvailableSlots(ctx context.Context, date, serviceID string) (Availability, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return Availability{}, err
	}
	service, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		return Availability{}, persistence("get service", err)
	}
	slots, err := s.ComputeSlots(ctx, date, service, settings)
	if err != nil {
		return Availability{}, err
	}
	return Availability{
		ServiceID: service.ID,
		Date:      date,
		Timezone:  settings.Timezone,
		Duration:  service.DurationMinutes,
		Slots:     slots,
		StableFor: s.stableFor(date, slots, settings),
	}, nil
}

func (s *SlotService) stableFor(date string, slots []string, settings models.Settings) time.Duration {
	loc, err := Location(settings)
	if err != nil {
		return 0
	}
	now := s.now().In(loc)
	until := schedule.StartOfDay(now, loc).AddDate(0, 0, 1)
	if len(slots) > 0 {
		first, err := schedule.ParseDateTime(date, slots[0], loc)
		if err != nil {
			return 0
		}
		if expires := first.Add(-time.Duration(settings.MinAdvanceHours) * time.Hour); expires.Before(until) {
			until = expires
		}
	}
	if !until.After(now) {
		return 0
	}
	return until.Sub(now)
}

// ComputeSlots returns the ordered "HH:MM" start times bookable on date for service.
//
// Candidates are generated per opening window with the service duration and the
// configured buffer, then filtered against active meetings and the minimum-advance
// cutoff. The cutoff is compared with the full date+time of each candidate, so it also
// applies to the following days, not only to today.
func (s *SlotService) ComputeSlots(ctx context.Context, date string, service models.Service, settings models.Settings) ([]string, error) {
	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}
	if !service.Active {
		return nil, ErrServiceInactive
	}
	if service.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: service %s has %d minutes", schedule.ErrInvalidDuration, service.ID, service.DurationMinutes)
	}

	loc, err := Location(settings)
	if err != nil {
		return nil, err
	}
	day, err := schedule.ParseDate(date, loc)
	if err != nil {
		return nil, err
	}
	now := s.now().In(loc)
	if !schedule.WithinHorizon(day, now, settings.MaxAdvanceDays) {
		return []string{}, nil
	}

	policy, err := s.policyFor(ctx, date)
	if err != nil {
		return nil, err
	}
	candidates, err := candidatesFor(policy, day, service.DurationMinutes, settings.BufferTimeMinutes)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []string{}, nil
	}

	busy, err := s.busyIntervals(ctx, date)
	if err != nil {
		return nil, err
	}
	candidates = schedule.FilterConflicts(candidates, service.DurationMinutes, busy)

	cutoff := now.Add(time.Duration(settings.MinAdvanceHours) * time.Hour)
	open := make([]int, 0, len(candidates))
	for _, c := range candidates {
		if !schedule.At(day, c).Before(cutoff) {
			open = append(open, c)
		}
	}
	return schedule.FormatSlots(open)
}

// NextAvailable scans forward from date and returns the first day with a bookable slot.
// The scan stops at maxDays or at the booking horizon, whichever comes first.
func (s *SlotService) NextAvailable(ctx context.Context, from, serviceID string, maxDays int) (Availability, bool, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return Availability{}, false, err
	}
	service, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		return Availability{}, false, persistence("get service", err)
	}
	loc, err := Location(settings)
	if err != nil {
		return Availability{}, false, err
	}
	start, err := schedule.ParseDate(from, loc)
	if err != nil {
		return Availability{}, false, err
	}
	if maxDays <= 0 || maxDays > settings.MaxAdvanceDays+1 {
		maxDays = settings.MaxAdvanceDays + 1
	}

	for i := 0; i < maxDays; i++ {
		if err := ctx.Err(); err != nil {
			return Availability{}, false, persistence("next availability", err)
		}
		date := start.AddDate(0, 0, i).Format(schedule.DateLayout)
		slots, err := s.ComputeSlots(ctx, date, service, settings)
		if err != nil {
			return Availability{}, false, err
		}
		if len(slots) > 0 {
			return Availability{
				ServiceID: service.ID,
				Date:      date,
				Timezone:  settings.Timezone,
				Duration:  service.DurationMinutes,
				Slots:     slots,
			}, true, nil
		}
	}
	return Availability{}, false, nil
}

// checkOffered verifies that clock on date is one of the generated candidates, inside
// the horizon and past the minimum-advance cutoff, and returns its minute offset.
// Meetings are not consulted.
func (s *SlotService) checkOffered(ctx context.Context, date, clock string, service models.Service, settings models.Settings) (int, error) {
	loc, err := Location(settings)
	if err != nil {
		return 0, err
	}
	slotAt, err := schedule.ParseDateTime(date, clock, loc)
	if err != nil {
		return 0, err
	}
	start, err := schedule.ToMinutes(clock)
	if err != nil {
		return 0, err
	}
	day := schedule.StartOfDay(slotAt, loc)
	now := s.now().In(loc)
	if !schedule.WithinHorizon(day, now, settings.MaxAdvanceDays) {
		return 0, fmt.Errorf("%w: %s is outside the booking horizon", ErrSlotNotOffered, date)
	}
	if slotAt.Before(now.Add(time.Duration(settings.MinAdvanceHours) * time.Hour)) {
		return 0, fmt.Errorf("%w: minimum advance is %d hours", ErrSlotNotOffered, settings.MinAdvanceHours)
	}

	policy, err := s.policyFor(ctx, date)
	if err != nil {
		return 0, err
	}
	candidates, err := candidatesFor(policy, day, service.DurationMinutes, settings.BufferTimeMinutes)
	if err != nil {
		return 0, err
	}
	idx := sort.SearchInts(candidates, start)
	if idx == len(candidates) || candidates[idx] != start {
		return 0, fmt.Errorf("%w: %s is not an opening on %s", ErrSlotNotOffered, clock, date)
	}
	return start, nil
}

func (s *SlotService) policyFor(ctx context.Context, date string) (*schedule.Policy, error) {
	rules, err := s.repo.ListAvailabilityRules(ctx)
	if err != nil {
		return nil, persistence("list availability rules", err)
	}
	blocked, err := s.repo.ListBlockedDates(ctx, date, date)
	if err != nil {
		return nil, persistence("list blocked dates", err)
	}

	active := make([]schedule.Rule, 0, len(rules))
	for _, r := range rules {
		if !r.Active {
			continue
		}
		active = append(active, schedule.Rule{Weekday: time.Weekday(r.DayOfWeek), Start: r.StartTime, End: r.EndTime})
	}
	dates := make([]string, 0, len(blocked))
	for _, b := range blocked {
		dates = append(dates, b.Date)
	}

	policy, err := schedule.NewPolicy(active, dates)
	if err != nil {
		return nil, fmt.Errorf("availability rules: %w", err)
	}
	return policy, nil
}

// busyIntervals reads the active meetings of date through ctx, which may carry a store
// transaction.
func (s *SlotService) busyIntervals(ctx context.Context, date string) ([]schedule.Interval, error) {
	meetings, err := s.repo.ListMeetings(ctx, date, ActiveStatuses)
	if err != nil {
		return nil, persistence("list meetings", err)
	}
	busy := make([]schedule.Interval, 0, len(meetings))
	for _, m := range meetings {
		if !IsActive(m.Status) || m.Date != date {
			continue
		}
		start, err := schedule.ToMinutes(m.Time)
		if err != nil {
			return nil, fmt.Errorf("meeting %s: %w", m.ID, err)
		}
		busy = append(busy, schedule.NewInterval(start, m.DurationMinutes))
	}
	return busy, nil
}

func candidatesFor(policy *schedule.Policy, day time.Time, duration, buffer int) ([]int, error) {
	var all []int
	for _, w := range policy.WindowsFor(day) {
		slots, err := schedule.GenerateSlots(w.Start, w.End, duration, buffer)
		if err != nil {
			return nil, err
		}
		all = append(all, slots...)
	}
	sort.Ints(all)

	// overlapping rules can emit the same start twice
	out := make([]int, 0, len(all))
	for _, c := range all {
		if len(out) > 0 && out[len(out)-1] == c {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
