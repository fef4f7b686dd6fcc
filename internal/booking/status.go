package booking

import (
	"fmt"
	"sort"

	"agenda-backend/internal/models"
)

// ActiveStatuses are the statuses that occupy a slot.
var ActiveStatuses = []models.MeetingStatus{models.MeetingPending, models.MeetingConfirmed}

var transitions = map[models.MeetingStatus]map[models.MeetingStatus]struct{}{
	models.MeetingPending: {
		models.MeetingConfirmed: {},
		models.MeetingCancelled: {},
		models.MeetingNoShow:    {},
	},
	models.MeetingConfirmed: {
		models.MeetingCompleted: {},
		models.MeetingCancelled: {},
		models.MeetingNoShow:    {},
	},
}

func InitialStatus() models.MeetingStatus {
	return models.MeetingPending
}

// CanTransition validates a status change against the meeting state machine.
func CanTransition(from, to models.MeetingStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	if _, ok := transitions[from][to]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func IsTerminal(status models.MeetingStatus) bool {
	return len(transitions[status]) == 0
}

func IsActive(status models.MeetingStatus) bool {
	return status == models.MeetingPending || status == models.MeetingConfirmed
}

// NextStatuses lists the statuses reachable from status, sorted.
func NextStatuses(status models.MeetingStatus) []models.MeetingStatus {
	out := make([]models.MeetingStatus, 0, len(transitions[status]))
	for s := range transitions[status] {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
