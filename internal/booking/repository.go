package booking

import (
	"context"
	"time"

	"agenda-backend/internal/models"
)

// Repository is the data store contract of the scheduling core.
//
// Implementations return ErrNotFound for missing records, ErrSlotNoLongerAvailable when a
// store-level constraint rejects an overlapping active meeting, and ErrStatusChanged when
// UpdateMeetingStatus finds a status other than from.
type Repository interface {
	ListAvailabilityRules(ctx context.Context) ([]models.AvailabilityRule, error)
	// ListBlockedDates returns blocked dates in [from, to]; empty bounds are open.
	ListBlockedDates(ctx context.Context, from, to string) ([]models.BlockedDate, error)
	// ListMeetings returns the meetings of date ordered by time; no statuses means all.
	ListMeetings(ctx context.Context, date string, statuses []models.MeetingStatus) ([]models.Meeting, error)
	GetSettings(ctx context.Context) (models.Settings, error)
	GetService(ctx context.Context, id string) (models.Service, error)
	GetMeeting(ctx context.Context, id string) (models.Meeting, error)

	InsertMeeting(ctx context.Context, meeting models.Meeting) (models.Meeting, error)
	UpdateMeetingStatus(ctx context.Context, id string, from, to models.MeetingStatus, at time.Time) (models.Meeting, error)

	// WithDateLock runs fn with exclusive write access to the meetings of date. Reads and
	// writes made through the ctx passed to fn belong to the same store transaction.
	WithDateLock(ctx context.Context, date string, fn func(ctx context.Context) error) error
}

type MeetingFilter struct {
	Date   string
	Status models.MeetingStatus
}

// Store adds the back-office operations on top of Repository.
type Store interface {
	Repository

	ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error)
	CreateService(ctx context.Context, service models.Service) error
	UpdateService(ctx context.Context, service models.Service) (models.Service, error)
	DeleteService(ctx context.Context, id string) error

	CreateAvailabilityRule(ctx context.Context, rule models.AvailabilityRule) error
	UpdateAvailabilityRule(ctx context.Context, rule models.AvailabilityRule) (models.AvailabilityRule, error)
	DeleteAvailabilityRule(ctx context.Context, id string) error

	GetBlockedDate(ctx context.Context, id string) (models.BlockedDate, error)
	// CreateBlockedDates inserts the dates not already blocked and returns how many were added.
	CreateBlockedDates(ctx context.Context, dates []models.BlockedDate) (int, error)
	DeleteBlockedDate(ctx context.Context, id string) error

	SaveSettings(ctx context.Context, settings models.Settings) error

	ListMeetingsAdmin(ctx context.Context, filter MeetingFilter, limit, offset int64) ([]models.Meeting, int64, error)
	DeleteMeeting(ctx context.Context, id string) error

	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	CreateUser(ctx context.Context, user models.User) error
}
