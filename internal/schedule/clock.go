package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout    = "2006-01-02"
	MinutesPerDay = 24 * 60
)

var (
	ErrInvalidDate       = errors.New("invalid date format")
	ErrInvalidTimeFormat = errors.New("invalid time format")
	ErrInvalidRange      = errors.New("minutes out of range")
	ErrInvalidDuration   = errors.New("invalid duration")
)

// ToMinutes converts "HH:MM" or "HH:MM:SS" to minutes since midnight.
// Seconds are accepted and ignored.
func ToMinutes(clock string) (int, error) {
	layout := "15:04"
	if strings.Count(clock, ":") == 2 {
		layout = "15:04:05"
	}
	tm, err := time.Parse(layout, clock)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, clock)
	}
	return tm.Hour()*60 + tm.Minute(), nil
}

// ToClock is the inverse of ToMinutes. Slots never cross midnight.
func ToClock(minutes int) (string, error) {
	if minutes < 0 || minutes >= MinutesPerDay {
		return "", fmt.Errorf("%w: %d", ErrInvalidRange, minutes)
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60), nil
}

// NormalizeClock rewrites "H:MM" / "HH:MM:SS" input as "HH:MM".
func NormalizeClock(clock string) (string, error) {
	minutes, err := ToMinutes(clock)
	if err != nil {
		return "", err
	}
	return ToClock(minutes)
}

func ParseDate(dateStr string, loc *time.Location) (time.Time, error) {
	date, err := time.ParseInLocation(DateLayout, dateStr, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, dateStr)
	}
	return date, nil
}

// At returns the wall-clock instant minutes after midnight of day, in day's location.
// time.Date is used rather than Add so that DST transitions keep the wall-clock value.
func At(day time.Time, minutes int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location())
}

func ParseDateTime(dateStr, timeStr string, loc *time.Location) (time.Time, error) {
	date, err := ParseDate(dateStr, loc)
	if err != nil {
		return time.Time{}, err
	}
	minutes, err := ToMinutes(timeStr)
	if err != nil {
		return time.Time{}, err
	}
	return At(date, minutes), nil
}

func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func IsDatePast(dateStr string, loc *time.Location, now time.Time) (bool, error) {
	date, err := ParseDate(dateStr, loc)
	if err != nil {
		return false, err
	}
	return date.Before(StartOfDay(now, loc)), nil
}

// Interval is a half-open range of minutes [Start, End).
type Interval struct {
	Start int
	End   int
}

func NewInterval(start, duration int) Interval {
	return Interval{Start: start, End: start + duration}
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// IntervalsOverlap reports whether [startA, startA+durationA) and [startB, startB+durationB)
// share at least one minute. Touching intervals do not overlap.
func IntervalsOverlap(startA, durationA, startB, durationB int) bool {
	return startA < startB+durationB && startB < startA+durationA
}
