package schedule

import (
	"fmt"
	"sort"
	"time"
)

// Rule is one active weekly opening window, e.g. Monday 09:00-12:00.
type Rule struct {
	Weekday time.Weekday
	Start   string
	End     string
}

// Window is an opening window in minutes since midnight.
type Window struct {
	Start int
	End   int
}

// Policy answers "is the business open on this date, and when".
// It is built from a read-only snapshot and is safe for concurrent use.
type Policy struct {
	windows map[time.Weekday][]Window
	blocked map[string]struct{}
}

// NewPolicy validates the rules and indexes them by weekday. blockedDates are YYYY-MM-DD.
func NewPolicy(rules []Rule, blockedDates []string) (*Policy, error) {
	p := &Policy{
		windows: make(map[time.Weekday][]Window),
		blocked: make(map[string]struct{}, len(blockedDates)),
	}
	for _, r := range rules {
		if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
			return nil, fmt.Errorf("%w: weekday %d", ErrInvalidRange, r.Weekday)
		}
		start, err := ToMinutes(r.Start)
		if err != nil {
			return nil, err
		}
		end, err := ToMinutes(r.End)
		if err != nil {
			return nil, err
		}
		if start >= end {
			return nil, fmt.Errorf("%w: window %s-%s", ErrInvalidRange, r.Start, r.End)
		}
		p.windows[r.Weekday] = append(p.windows[r.Weekday], Window{Start: start, End: end})
	}
	for day := range p.windows {
		ws := p.windows[day]
		sort.Slice(ws, func(i, j int) bool { return ws[i].Start < ws[j].Start })
	}
	for _, d := range blockedDates {
		p.blocked[d] = struct{}{}
	}
	return p, nil
}

// WindowsFor returns every opening window for date, ordered by start.
// A blocked date or a weekday without rules returns nil.
func (p *Policy) WindowsFor(date time.Time) []Window {
	if p.IsBlocked(date) {
		return nil
	}
	ws := p.windows[date.Weekday()]
	if len(ws) == 0 {
		return nil
	}
	out := make([]Window, len(ws))
	copy(out, ws)
	return out
}

func (p *Policy) IsBlocked(date time.Time) bool {
	_, ok := p.blocked[date.Format(DateLayout)]
	return ok
}

// WithinHorizon reports today <= date <= today+maxAdvanceDays, comparing calendar days.
func WithinHorizon(date, today time.Time, maxAdvanceDays int) bool {
	d := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if d.Before(t) {
		return false
	}
	return !d.After(t.AddDate(0, 0, maxAdvanceDays))
}
