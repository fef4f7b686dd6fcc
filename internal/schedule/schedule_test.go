package schedule

import (
	"errors"
	"testing"
	"time"
)

func mustLoadLoc(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Africa/Kinshasa")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestToMinutes(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"00:00", 0},
		{"09:00", 540},
		{"09:30:45", 570},
		{"23:59", 1439},
	}
	for _, tc := range cases {
		got, err := ToMinutes(tc.in)
		if err != nil {
			t.Fatalf("ToMinutes(%q) error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ToMinutes(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestToMinutesInvalid(t *testing.T) {
	for _, in := range []string{"", "24:00", "12:60", "noon", "12-30", "12:30:00:00"} {
		if _, err := ToMinutes(in); !errors.Is(err, ErrInvalidTimeFormat) {
			t.Fatalf("ToMinutes(%q) expected ErrInvalidTimeFormat, got %v", in, err)
		}
	}
}

func TestToClockRange(t *testing.T) {
	if _, err := ToClock(-1); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for -1, got %v", err)
	}
	if _, err := ToClock(MinutesPerDay); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for 1440, got %v", err)
	}
	got, err := ToClock(545)
	if err != nil || got != "09:05" {
		t.Fatalf("ToClock(545) = %q, %v", got, err)
	}
}

func TestClockRoundTrip(t *testing.T) {
	for m := 0; m < MinutesPerDay; m++ {
		s, err := ToClock(m)
		if err != nil {
			t.Fatalf("ToClock(%d) error: %v", m, err)
		}
		back, err := ToMinutes(s)
		if err != nil {
			t.Fatalf("ToMinutes(%q) error: %v", s, err)
		}
		again, _ := ToClock(back)
		if again != s {
			t.Fatalf("round trip mismatch: %q -> %d -> %q", s, back, again)
		}
	}
}

func TestIntervalsOverlap(t *testing.T) {
	if IntervalsOverlap(0, 30, 30, 30) {
		t.Fatalf("touching intervals must not overlap")
	}
	if !IntervalsOverlap(0, 31, 30, 30) {
		t.Fatalf("expected overlap for [0,31) and [30,60)")
	}
	if !IntervalsOverlap(30, 30, 0, 31) {
		t.Fatalf("overlap must be symmetric")
	}
	if !IntervalsOverlap(10, 5, 0, 60) {
		t.Fatalf("contained interval must overlap")
	}
	if NewInterval(60, 30).Overlaps(NewInterval(90, 15)) {
		t.Fatalf("Interval.Overlaps must agree with IntervalsOverlap on touching ranges")
	}
}

func TestGenerateSlotsWithBuffer(t *testing.T) {
	slots, err := GenerateSlots(540, 600, 45, 15)
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	clocks, err := FormatSlots(slots)
	if err != nil {
		t.Fatalf("FormatSlots error: %v", err)
	}
	if len(clocks) != 1 || clocks[0] != "09:00" {
		t.Fatalf("expected [09:00], got %v", clocks)
	}
}

func TestGenerateSlotsMorningWindow(t *testing.T) {
	slots, err := GenerateSlots(540, 720, 45, 0)
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	clocks, _ := FormatSlots(slots)
	if len(clocks) != 4 || clocks[0] != "09:00" || clocks[3] != "11:15" {
		t.Fatalf("unexpected slots: %v", clocks)
	}
}

func TestGenerateSlotsDoNotOverlap(t *testing.T) {
	const duration = 50
	slots, err := GenerateSlots(480, 1080, duration, 10)
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	for i := range slots {
		for j := range slots {
			if i != j && IntervalsOverlap(slots[i], duration, slots[j], duration) {
				t.Fatalf("slots %d and %d overlap", slots[i], slots[j])
			}
		}
	}
}

func TestGenerateSlotsWindowTooShort(t *testing.T) {
	slots, err := GenerateSlots(540, 570, 45, 0)
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %v", slots)
	}
}

func TestGenerateSlotsInvalidDuration(t *testing.T) {
	if _, err := GenerateSlots(540, 600, 0, 0); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
	if _, err := GenerateSlots(540, 600, 30, -5); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration for negative buffer, got %v", err)
	}
}

func TestIsDatePast(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2026, 2, 4, 10, 0, 0, 0, loc)
	past, err := IsDatePast("2026-02-03", loc, now)
	if err != nil {
		t.Fatalf("IsDatePast error: %v", err)
	}
	if !past {
		t.Fatalf("expected date to be past")
	}

	past, err = IsDatePast("2026-02-04", loc, now)
	if err != nil {
		t.Fatalf("IsDatePast error: %v", err)
	}
	if past {
		t.Fatalf("expected date to be not past")
	}
}

func TestParseDateTime(t *testing.T) {
	loc := mustLoadLoc(t)
	got, err := ParseDateTime("2026-02-04", "14:45:00", loc)
	if err != nil {
		t.Fatalf("ParseDateTime error: %v", err)
	}
	want := time.Date(2026, 2, 4, 14, 45, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if _, err := ParseDateTime("2026-02-30", "10:00", loc); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestHasConflict(t *testing.T) {
	busy := []Interval{NewInterval(600, 60)}
	if !HasConflict(570, 45, busy) {
		t.Fatalf("09:30+45 overlaps 10:00-11:00")
	}
	if HasConflict(540, 60, busy) {
		t.Fatalf("09:00-10:00 touches 10:00 and must not conflict")
	}
	if HasConflict(660, 30, busy) {
		t.Fatalf("11:00 starts when the meeting ends")
	}
	if HasConflict(600, 30, nil) {
		t.Fatalf("no busy intervals means no conflict")
	}
}

func TestFilterConflicts(t *testing.T) {
	candidates := []int{540, 585, 630}
	busy := []Interval{NewInterval(585, 45)}
	filtered := FilterConflicts(candidates, 45, busy)
	if len(filtered) != 2 || filtered[1] != 630 {
		t.Fatalf("unexpected filtered slots: %v", filtered)
	}
}
