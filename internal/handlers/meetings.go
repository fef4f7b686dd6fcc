package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"agenda-backend/internal/booking"
	"agenda-backend/internal/cache"
	"agenda-backend/internal/models"
	"agenda-backend/internal/transport"
	"github.com/go-chi/chi/v5"
)

const mailTimeout = 8 * time.Second

type CreateMeetingRequest struct {
	ServiceID string `json:"serviceId" validate:"required"`
	Date      string `json:"date" validate:"required,date"`
	Time      string `json:"time" validate:"required,clock"`
	Name      string `json:"name" validate:"required,max=120"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,phone"`
	Channel   string `json:"channel" validate:"omitempty,channel"`
	Notes     string `json:"notes" validate:"max=2000"`
}

func (s *Server) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req CreateMeetingRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Warn("meetings create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	req.Phone = strings.NewReplacer(" ", "", "-", "", ".", "").Replace(req.Phone)
	if err := s.Val.Struct(req); err != nil {
		log.Warn("meetings create: validation error")
		details := validationDetails(s.Val.ValidationErrors(err))
		transport.WriteError(w, http.StatusBadRequest, "validation error", details)
		return
	}
	if req.Channel == "" {
		req.Channel = models.ChannelOnline
	}

	meeting, err := s.Booker.Reserve(r.Context(), booking.ReserveRequest{
		ServiceID: req.ServiceID,
		Date:      req.Date,
		Time:      req.Time,
		Client: booking.ClientInfo{
			Name:  req.Name,
			Email: req.Email,
			Phone: req.Phone,
		},
		Channel: req.Channel,
		Notes:   req.Notes,
	})
	if err != nil {
		writeBookingError(w, log, "meetings create", err)
		return
	}

	s.invalidateAvailability(context.WithoutCancel(r.Context()), log, cache.AvailabilityPrefix(meeting.Date))

	if s.Mailer != nil {
		go s.sendBookingEmails(log, meeting)
	}

	log.Info("meetings create: booked",
		slog.String("meeting_id", meeting.ID),
		slog.String("service_id", meeting.ServiceID),
		slog.String("date", meeting.Date),
		slog.String("time", meeting.Time),
	)
	transport.WriteJSON(w, http.StatusCreated, meeting)
}

func (s *Server) sendBookingEmails(log *slog.Logger, meeting models.Meeting) {
	ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
	defer cancel()

	service, err := s.Store.GetService(ctx, meeting.ServiceID)
	if err != nil {
		log.Warn("meetings email: service lookup failed", slog.String("meeting_id", meeting.ID), slog.String("error", err.Error()))
		service = models.Service{ID: meeting.ServiceID}
	}

	messageID, err := s.Mailer.SendMeetingConfirmation(ctx, meeting, service)
	if err != nil {
		log.Warn("meetings email: send failed",
			slog.String("meeting_id", meeting.ID),
			slog.String("email", meeting.ClientEmail),
			slog.String("error", err.Error()),
		)
	} else {
		log.Info("meetings email: sent",
			slog.String("meeting_id", meeting.ID),
			slog.String("email", meeting.ClientEmail),
			slog.String("message_id", messageID),
		)
	}

	settings, err := s.Slots.Settings(ctx)
	if err != nil || settings.AdminEmail == "" {
		return
	}
	if _, err := s.Mailer.SendAdminNotice(ctx, settings.AdminEmail, meeting, service); err != nil {
		log.Warn("meetings email: admin notice failed", slog.String("meeting_id", meeting.ID), slog.String("error", err.Error()))
	}
}

func (s *Server) sendStatusEmail(log *slog.Logger, meeting models.Meeting) {
	ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
	defer cancel()

	service, err := s.Store.GetService(ctx, meeting.ServiceID)
	if err != nil {
		service = models.Service{ID: meeting.ServiceID}
	}
	if _, err := s.Mailer.SendMeetingStatus(ctx, meeting, service); err != nil {
		log.Warn("meetings email: status send failed",
			slog.String("meeting_id", meeting.ID),
			slog.String("status", string(meeting.Status)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Server) GetMeeting(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	id := chi.URLParam(r, "id")
	if id == "" {
		log.Warn("meetings get: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.readTimeout())
	defer cancel()

	var meeting models.Meeting
	err := retryRead(ctx, log, "meetings get", func(ctx context.Context) error {
		var err error
		meeting, err = s.Store.GetMeeting(ctx, id)
		return storeError("get meeting", err)
	})
	if errors.Is(err, booking.ErrNotFound) {
		log.Warn("meetings get: not found", slog.String("meeting_id", id))
		transport.WriteError(w, http.StatusNotFound, "meeting not found", nil)
		return
	}
	if err != nil {
		writeBookingError(w, log, "meetings get", err)
		return
	}

	log.Info("meetings get: ok", slog.String("meeting_id", id))
	transport.WriteJSON(w, http.StatusOK, meeting)
}
