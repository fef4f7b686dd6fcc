package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agenda-backend/internal/models"
	"agenda-backend/internal/schedule"
	"github.com/google/uuid"
)

const DefaultWriteTimeout = 8 * time.Second

type ClientInfo struct {
	Name  string
	Email string
	Phone string
}

type ReserveRequest struct {
	ServiceID string
	Date      string
	Time      string
	Client    ClientInfo
	Channel   string
	Notes     string
}

// Booker is the write path of the scheduling core.
type Booker struct {
	repo         Repository
	slots        *SlotService
	now          func() time.Time
	writeTimeout time.Duration
	newID        func() string
}

func NewBooker(repo Repository, slots *SlotService, now func() time.Time, writeTimeout time.Duration) *Booker {
	if now == nil {
		now = time.Now
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Booker{
		repo:         repo,
		slots:        slots,
		now:          now,
		writeTimeout: writeTimeout,
		newID:        uuid.NewString,
	}
}

// Reserve books req as a pending meeting.
//
// The requested time must be one of the slots offered for the date (ignoring existing
// meetings). The conflict re-check and the insert then run under the repository's date
// lock against the current meetings, so two concurrent reservations of overlapping
// slots produce exactly one meeting; the other gets ErrSlotNoLongerAvailable.
//
// Once the locked section starts it is detached from ctx cancellation and bounded by the
// booker's write timeout instead. Failures are never retried here.
func (b *Booker) Reserve(ctx context.Context, req ReserveRequest) (models.Meeting, error) {
	settings, err := b.slots.Settings(ctx)
	if err != nil {
		return models.Meeting{}, err
	}
	service, err := b.repo.GetService(ctx, req.ServiceID)
	if err != nil {
		return models.Meeting{}, persistence("get service", err)
	}
	if !service.Active {
		return models.Meeting{}, ErrServiceInactive
	}
	if service.DurationMinutes <= 0 {
		return models.Meeting{}, fmt.Errorf("%w: service %s has %d minutes", schedule.ErrInvalidDuration, service.ID, service.DurationMinutes)
	}

	clock, err := schedule.NormalizeClock(req.Time)
	if err != nil {
		return models.Meeting{}, err
	}
	start, err := b.slots.checkOffered(ctx, req.Date, clock, service, settings)
	if err != nil {
		return models.Meeting{}, err
	}

	now := b.now()
	meeting := models.Meeting{
		ID:              b.newID(),
		ServiceID:       service.ID,
		Date:            req.Date,
		Time:            clock,
		DurationMinutes: service.DurationMinutes,
		Status:          InitialStatus(),
		ClientName:      strings.TrimSpace(req.Client.Name),
		ClientEmail:     strings.ToLower(strings.TrimSpace(req.Client.Email)),
		ClientPhone:     strings.TrimSpace(req.Client.Phone),
		Channel:         req.Channel,
		Notes:           strings.TrimSpace(req.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.writeTimeout)
	defer cancel()

	var created models.Meeting
	err = b.repo.WithDateLock(writeCtx, req.Date, func(txCtx context.Context) error {
		busy, err := b.slots.busyIntervals(txCtx, req.Date)
		if err != nil {
			return err
		}
		if schedule.HasConflict(start, meeting.DurationMinutes, busy) {
			return ErrSlotNoLongerAvailable
		}
		created, err = b.repo.InsertMeeting(txCtx, meeting)
		return err
	})
	if err != nil {
		return models.Meeting{}, persistence("reserve", err)
	}
	return created, nil
}

// SetStatus moves a meeting along the status state machine. The update is a
// compare-and-set on the status read here; losing that race is reported as
// ErrInvalidTransition.
func (b *Booker) SetStatus(ctx context.Context, id string, to models.MeetingStatus) (models.Meeting, error) {
	if !to.Valid() {
		return models.Meeting{}, fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	current, err := b.repo.GetMeeting(ctx, id)
	if err != nil {
		return models.Meeting{}, persistence("get meeting", err)
	}
	if IsTerminal(current.Status) {
		return models.Meeting{}, fmt.Errorf("%w: %s is final", ErrInvalidTransition, current.Status)
	}
	if err := CanTransition(current.Status, to); err != nil {
		return models.Meeting{}, err
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.writeTimeout)
	defer cancel()

	updated, err := b.repo.UpdateMeetingStatus(writeCtx, id, current.Status, to, b.now())
	if errors.Is(err, ErrStatusChanged) {
		return models.Meeting{}, fmt.Errorf("%w: meeting %s changed concurrently", ErrInvalidTransition, id)
	}
	if err != nil {
		return models.Meeting{}, persistence("update meeting status", err)
	}
	return updated, nil
}
