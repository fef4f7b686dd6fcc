package booking

import (
	"fmt"
	"time"

	"agenda-backend/internal/models"
)

const (
	MinBufferMinutes       = 0
	MaxBufferMinutes       = 60
	MinMaxAdvanceDays      = 1
	MaxMaxAdvanceDays      = 365
	MinMinAdvanceHours     = 1
	MaxMinAdvanceHours     = 168
	MinSlotDurationMinutes = 15
	MaxSlotDurationMinutes = 240
)

// ValidateSettings rejects out-of-range snapshots with a *ConfigError.
func ValidateSettings(s models.Settings) error {
	checks := []struct {
		field    string
		value    int
		min, max int
	}{
		{"bufferTimeMinutes", s.BufferTimeMinutes, MinBufferMinutes, MaxBufferMinutes},
		{"maxAdvanceDays", s.MaxAdvanceDays, MinMaxAdvanceDays, MaxMaxAdvanceDays},
		{"minAdvanceHours", s.MinAdvanceHours, MinMinAdvanceHours, MaxMinAdvanceHours},
		{"slotDurationMinutes", s.SlotDurationMinutes, MinSlotDurationMinutes, MaxSlotDurationMinutes},
	}
	for _, c := range checks {
		if c.value < c.min || c.value > c.max {
			return &ConfigError{Field: c.field, Reason: fmt.Sprintf("must be between %d and %d, got %d", c.min, c.max, c.value)}
		}
	}
	if s.Timezone == "" {
		return &ConfigError{Field: "timezone", Reason: "is required"}
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return &ConfigError{Field: "timezone", Reason: fmt.Sprintf("unknown location %q", s.Timezone)}
	}
	return nil
}

// Location returns the timezone of a validated snapshot.
func Location(s models.Settings) (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, &ConfigError{Field: "timezone", Reason: fmt.Sprintf("unknown location %q", s.Timezone)}
	}
	return loc, nil
}
