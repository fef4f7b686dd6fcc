package schedule

import "fmt"

// GenerateSlots returns candidate start minutes inside [windowStart, windowEnd).
// A candidate is emitted while it still fits entirely in the window; the cursor then
// advances by duration+buffer. A window shorter than duration yields no candidates.
func GenerateSlots(windowStart, windowEnd, duration, buffer int) ([]int, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDuration, duration)
	}
	if buffer < 0 {
		return nil, fmt.Errorf("%w: negative buffer %d", ErrInvalidDuration, buffer)
	}
	if windowStart < 0 || windowEnd > MinutesPerDay {
		return nil, fmt.Errorf("%w: window %d-%d", ErrInvalidRange, windowStart, windowEnd)
	}

	slots := make([]int, 0)
	for cursor := windowStart; cursor+duration <= windowEnd; cursor += duration + buffer {
		slots = append(slots, cursor)
	}
	return slots, nil
}

// FormatSlots converts minute offsets into "HH:MM" strings.
func FormatSlots(minutes []int) ([]string, error) {
	out := make([]string, 0, len(minutes))
	for _, m := range minutes {
		clock, err := ToClock(m)
		if err != nil {
			return nil, err
		}
		out = append(out, clock)
	}
	return out, nil
}
