package booking

import (
	"errors"
	"reflect"
	"testing"

	"agenda-backend/internal/models"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.MeetingStatus
		want     error
	}{
		{models.MeetingPending, models.MeetingConfirmed, nil},
		{models.MeetingPending, models.MeetingCancelled, nil},
		{models.MeetingPending, models.MeetingNoShow, nil},
		{models.MeetingPending, models.MeetingCompleted, ErrInvalidTransition},
		{models.MeetingConfirmed, models.MeetingCompleted, nil},
		{models.MeetingConfirmed, models.MeetingPending, ErrInvalidTransition},
		{models.MeetingCancelled, models.MeetingCompleted, ErrInvalidTransition},
		{models.MeetingCompleted, models.MeetingCancelled, ErrInvalidTransition},
		{models.MeetingNoShow, models.MeetingConfirmed, ErrInvalidTransition},
		{models.MeetingPending, "archived", ErrInvalidStatus},
	}
	for _, tc := range cases {
		err := CanTransition(tc.from, tc.to)
		if tc.want == nil && err != nil {
			t.Fatalf("%s -> %s: unexpected error %v", tc.from, tc.to, err)
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Fatalf("%s -> %s: error = %v, want %v", tc.from, tc.to, err, tc.want)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []models.MeetingStatus{models.MeetingCompleted, models.MeetingCancelled, models.MeetingNoShow} {
		if !IsTerminal(s) {
			t.Fatalf("%s should be terminal", s)
		}
		if IsActive(s) {
			t.Fatalf("%s should not hold a slot", s)
		}
	}
	if IsTerminal(models.MeetingPending) || !IsActive(models.MeetingConfirmed) {
		t.Fatal("pending and confirmed are live statuses")
	}
}

func TestNextStatuses(t *testing.T) {
	got := NextStatuses(models.MeetingConfirmed)
	want := []models.MeetingStatus{models.MeetingCancelled, models.MeetingCompleted, models.MeetingNoShow}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NextStatuses = %v, want %v", got, want)
	}
	if len(NextStatuses(models.MeetingCancelled)) != 0 {
		t.Fatal("cancelled has no successors")
	}
}

func TestValidateSettings(t *testing.T) {
	if err := ValidateSettings(testSettings()); err != nil {
		t.Fatalf("valid settings rejected: %v", err)
	}

	cases := map[string]func(*models.Settings){
		"bufferTimeMinutes":   func(s *models.Settings) { s.BufferTimeMinutes = -1 },
		"maxAdvanceDays":      func(s *models.Settings) { s.MaxAdvanceDays = 0 },
		"minAdvanceHours":     func(s *models.Settings) { s.MinAdvanceHours = 169 },
		"slotDurationMinutes": func(s *models.Settings) { s.SlotDurationMinutes = 10 },
		"timezone":            func(s *models.Settings) { s.Timezone = "Mars/Olympus" },
	}
	for field, mutate := range cases {
		s := testSettings()
		mutate(&s)
		var ce *ConfigError
		if err := ValidateSettings(s); !errors.As(err, &ce) || ce.Field != field {
			t.Fatalf("%s: error = %v, want ConfigError on that field", field, err)
		}
	}
}
