package schedule

// HasConflict reports whether [start, start+duration) overlaps any busy interval.
// busy must already be scoped to one calendar date and to active meetings.
func HasConflict(start, duration int, busy []Interval) bool {
	candidate := NewInterval(start, duration)
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

// FilterConflicts drops every candidate start that overlaps a busy interval.
func FilterConflicts(candidates []int, duration int, busy []Interval) []int {
	filtered := make([]int, 0, len(candidates))
	for _, c := range candidates {
		if !HasConflict(c, duration, busy) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}
