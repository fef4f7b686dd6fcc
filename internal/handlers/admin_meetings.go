package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"agenda-backend/internal/booking"
	"agenda-backend/internal/cache"
	"agenda-backend/internal/httpx"
	"agenda-backend/internal/models"
	"agenda-backend/internal/transport"
	"github.com/go-chi/chi/v5"
)

const (
	defaultMeetingsLimit = 50
	maxMeetingsLimit     = 200
)

type meetingsQuery struct {
	Date   string `json:"date" validate:"omitempty,date"`
	Status string `json:"status" validate:"omitempty,status"`
}

type UpdateMeetingStatusRequest struct {
	Status string `json:"status" validate:"required,status"`
}

// adminMeeting is a meeting as shown to the back office, with the statuses it can move to.
type adminMeeting struct {
	models.Meeting
	AllowedTransitions []models.MeetingStatus `json:"allowedTransitions"`
}

func toAdminMeeting(m models.Meeting) adminMeeting {
	return adminMeeting{Meeting: m, AllowedTransitions: booking.NextStatuses(m.Status)}
}

func (s *Server) AdminListMeetings(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	q := meetingsQuery{
		Date:   r.URL.Query().Get("date"),
		Status: r.URL.Query().Get("status"),
	}
	if err := s.Val.Struct(q); err != nil {
		log.Warn("admin meetings list: invalid query")
		details := validationDetails(s.Val.ValidationErrors(err))
		transport.WriteError(w, http.StatusBadRequest, "invalid query", details)
		return
	}
	limit, offset, err := httpx.ParseLimitOffset(r.URL.Query(), defaultMeetingsLimit, maxMeetingsLimit)
	if err != nil {
		log.Warn("admin meetings list: invalid paging", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.readTimeout())
	defer cancel()

	filter := booking.MeetingFilter{Date: q.Date, Status: models.MeetingStatus(q.Status)}
	var (
		items []models.Meeting
		total int64
	)
	err = retryRead(ctx, log, "admin meetings list", func(ctx context.Context) error {
		var err error
		items, total, err = s.Store.ListMeetingsAdmin(ctx, filter, limit, offset)
		return storeError("list meetings", err)
	})
	if err != nil {
		writeBookingError(w, log, "admin meetings list", err)
		return
	}

	out := make([]adminMeeting, 0, len(items))
	for _, m := range items {
		out = append(out, toAdminMeeting(m))
	}

	log.Info("admin meetings list: ok", slog.Int("count", len(items)), slog.Int64("total", total))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"meetings": out,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// AdminUpdateMeetingStatus moves a meeting along its lifecycle. Leaving pending or confirmed
// frees the slot, so the date's cached availability is dropped.
func (s *Server) AdminUpdateMeetingStatus(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	id := chi.URLParam(r, "id")
	var req UpdateMeetingStatusRequest
	if !s.decodeValid(w, r, log, "admin meetings status", &req) {
		return
	}

	meeting, err := s.Booker.SetStatus(r.Context(), id, models.MeetingStatus(req.Status))
	if err != nil {
		writeBookingError(w, log, "admin meetings status", err)
		return
	}
	s.invalidateAvailability(context.WithoutCancel(r.Context()), log, cache.AvailabilityPrefix(meeting.Date))

	if s.Mailer != nil {
		go s.sendStatusEmail(log, meeting)
	}

	log.Info("admin meetings status: ok", slog.String("meeting_id", id), slog.String("status", string(meeting.Status)))
	transport.WriteJSON(w, http.StatusOK, toAdminMeeting(meeting))
}

func (s *Server) AdminDeleteMeeting(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), s.readTimeout())
	defer cancel()

	meeting, err := s.Store.GetMeeting(ctx, id)
	if err != nil {
		writeBookingError(w, log, "admin meetings delete", storeError("get meeting", err))
		return
	}
	if err := s.Store.DeleteMeeting(ctx, id); err != nil {
		writeBookingError(w, log, "admin meetings delete", storeError("delete meeting", err))
		return
	}
	s.invalidateAvailability(context.WithoutCancel(r.Context()), log, cache.AvailabilityPrefix(meeting.Date))

	log.Info("admin meetings delete: ok", slog.String("meeting_id", id), slog.String("date", meeting.Date))
	transport.WriteNoContent(w)
}
