package models

import "time"

const (
	ChannelOnline    = "online"
	ChannelInPerson  = "in_person"
	ChannelPhone     = "phone"
	UserRoleAdmin    = "admin"
	SettingsSingleID = "default"
)

type MeetingStatus string

const (
	MeetingPending   MeetingStatus = "pending"
	MeetingConfirmed MeetingStatus = "confirmed"
	MeetingCompleted MeetingStatus = "completed"
	MeetingCancelled MeetingStatus = "cancelled"
	MeetingNoShow    MeetingStatus = "no_show"
)

func (s MeetingStatus) Valid() bool {
	switch s {
	case MeetingPending, MeetingConfirmed, MeetingCompleted, MeetingCancelled, MeetingNoShow:
		return true
	}
	return false
}

type Service struct {
	ID              string    `bson:"_id,omitempty" json:"id"`
	Name            string    `bson:"name" json:"name"`
	Slug            string    `bson:"slug" json:"slug"`
	Description     string    `bson:"description" json:"description"`
	Category        string    `bson:"category" json:"category"`
	DurationMinutes int       `bson:"durationMinutes" json:"durationMinutes"`
	Price           int       `bson:"price" json:"price"`
	Active          bool      `bson:"active" json:"active"`
	Color           string    `bson:"color" json:"color"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
}

// AvailabilityRule is a recurring weekly opening window. DayOfWeek: 0 = Sunday.
type AvailabilityRule struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	DayOfWeek int       `bson:"dayOfWeek" json:"dayOfWeek"`
	StartTime string    `bson:"startTime" json:"startTime"`
	EndTime   string    `bson:"endTime" json:"endTime"`
	Active    bool      `bson:"active" json:"active"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

type BlockedDate struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Date      string    `bson:"date" json:"date"`
	Reason    string    `bson:"reason,omitempty" json:"reason,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

type Meeting struct {
	ID              string        `bson:"_id,omitempty" json:"id"`
	ServiceID       string        `bson:"serviceId" json:"serviceId"`
	Date            string        `bson:"date" json:"date"`
	Time            string        `bson:"time" json:"time"`
	DurationMinutes int           `bson:"durationMinutes" json:"durationMinutes"`
	Status          MeetingStatus `bson:"status" json:"status"`
	ClientName      string        `bson:"clientName" json:"clientName"`
	ClientEmail     string        `bson:"clientEmail" json:"clientEmail"`
	ClientPhone     string        `bson:"clientPhone" json:"clientPhone"`
	Channel         string        `bson:"channel" json:"channel"`
	Notes           string        `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt       time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// Settings is the scheduling configuration snapshot passed to every scheduling call.
type Settings struct {
	BufferTimeMinutes   int    `bson:"bufferTimeMinutes" json:"bufferTimeMinutes"`
	MinAdvanceHours     int    `bson:"minAdvanceHours" json:"minAdvanceHours"`
	MaxAdvanceDays      int    `bson:"maxAdvanceDays" json:"maxAdvanceDays"`
	SlotDurationMinutes int    `bson:"slotDurationMinutes" json:"slotDurationMinutes"`
	AdminEmail          string `bson:"adminEmail" json:"adminEmail"`
	Timezone            string `bson:"timezone" json:"timezone"`
}

type User struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Username     string    `bson:"username" json:"username"`
	Email        string    `bson:"email,omitempty" json:"email,omitempty"`
	PasswordHash string    `bson:"passwordHash" json:"-"`
	Role         string    `bson:"role" json:"role"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}
