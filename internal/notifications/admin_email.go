package notifications

import "html/template"

const adminNoticeTemplate = `<!DOCTYPE html>
<html>
<body>
  <h3>Nouvelle demande de rendez-vous</h3>
  <p><strong>Service:</strong> {{.ServiceName}}</p>
  <p><strong>Date:</strong> {{.Date}} a {{.Time}} ({{.DurationMinutes}} min)</p>
  <p><strong>Format:</strong> {{.ChannelLabel}}</p>
  <p><strong>Client:</strong> {{.Name}}</p>
  <p><strong>Telephone:</strong> {{.Phone}}</p>
  <p><strong>Email:</strong> {{.Email}}</p>
  <p><strong>ID:</strong> {{.MeetingID}}</p>
  {{if .Notes}}<p><strong>Notes:</strong><br/>{{.Notes}}</p>{{end}}
</body>
</html>`

var adminNoticeTmpl = template.Must(template.New("admin_notice").Parse(adminNoticeTemplate))
