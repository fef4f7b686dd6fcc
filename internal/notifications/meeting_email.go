package notifications

import (
	"bytes"
	"html/template"

	"agenda-backend/internal/models"
)

const meetingConfirmationTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Bonjour {{.Name}},</p>
  <p>Nous avons bien recu votre demande de rendez-vous. Voici les details :</p>
  <ul>
    <li>Service : {{.ServiceName}}</li>
    <li>Date : {{.Date}}</li>
    <li>Heure : {{.Time}}</li>
    <li>Duree : {{.DurationMinutes}} minutes</li>
    <li>Format : {{.ChannelLabel}}</li>
    <li>Numero de reservation : {{.MeetingID}}</li>
  </ul>
  <p>Vous recevrez un message des que le rendez-vous sera confirme.</p>
  <p>Merci.</p>
</body>
</html>`

const meetingReminderTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Bonjour {{.Name}},</p>
  <p>Petit rappel : votre rendez-vous "{{.ServiceName}}" a lieu demain, le {{.Date}} a {{.Time}}.</p>
  <p>Format : {{.ChannelLabel}}. Duree : {{.DurationMinutes}} minutes.</p>
  <p>Numero de reservation : {{.MeetingID}}</p>
</body>
</html>`

const meetingStatusTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Bonjour {{.Name}},</p>
  <p>Votre rendez-vous "{{.ServiceName}}" du {{.Date}} a {{.Time}} est maintenant : <strong>{{.StatusLabel}}</strong>.</p>
  <p>Numero de reservation : {{.MeetingID}}</p>
</body>
</html>`

var (
	meetingConfirmationTmpl = template.Must(template.New("meeting_confirmation").Parse(meetingConfirmationTemplate))
	meetingReminderTmpl     = template.Must(template.New("meeting_reminder").Parse(meetingReminderTemplate))
	meetingStatusTmpl       = template.Must(template.New("meeting_status").Parse(meetingStatusTemplate))
)

type meetingData struct {
	Name            string
	Email           string
	Phone           string
	ServiceName     string
	Date            string
	Time            string
	DurationMinutes int
	ChannelLabel    string
	StatusLabel     string
	Notes           string
	MeetingID       string
}

func newMeetingData(meeting models.Meeting, service models.Service) meetingData {
	return meetingData{
		Name:            meeting.ClientName,
		Email:           meeting.ClientEmail,
		Phone:           meeting.ClientPhone,
		ServiceName:     service.Name,
		Date:            meeting.Date,
		Time:            meeting.Time,
		DurationMinutes: meeting.DurationMinutes,
		ChannelLabel:    channelLabel(meeting.Channel),
		StatusLabel:     statusLabel(meeting.Status),
		Notes:           meeting.Notes,
		MeetingID:       meeting.ID,
	}
}

func render(tmpl *template.Template, data meetingData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func channelLabel(value string) string {
	switch value {
	case models.ChannelOnline:
		return "En ligne"
	case models.ChannelInPerson:
		return "Presentiel"
	case models.ChannelPhone:
		return "Telephone"
	default:
		return value
	}
}

func statusLabel(status models.MeetingStatus) string {
	switch status {
	case models.MeetingPending:
		return "en attente"
	case models.MeetingConfirmed:
		return "confirme"
	case models.MeetingCompleted:
		return "termine"
	case models.MeetingCancelled:
		return "annule"
	case models.MeetingNoShow:
		return "absence"
	default:
		return string(status)
	}
}
