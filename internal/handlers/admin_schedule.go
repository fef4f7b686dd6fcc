package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"agenda-backend/internal/booking"
	"agenda-backend/internal/cache"
	"agenda-backend/internal/models"
	"agenda-backend/internal/schedule"
	"agenda-backend/internal/transport"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxBlockedRangeDays = 366

type AvailabilityRuleRequest struct {
	DayOfWeek int    `json:"dayOfWeek" validate:"min=0,max=6"`
	StartTime string `json:"startTime" validate:"required,clock"`
	EndTime   string `json:"endTime" validate:"required,clock"`
	Active    *bool  `json:"active"`
}

type BlockedDatesRequest struct {
	Date   string `json:"date" validate:"required_without_all=From To,omitempty,date"`
	From   string `json:"from" validate:"required_with=To,omitempty,date"`
	To     string `json:"to" validate:"required_with=From,omitempty,date"`
	Reason string `json:"reason" validate:"max=200"`
}

type blockedRangeQuery struct {
	From string `json:"from" validate:"omitempty,date"`
	To   string `json:"to" validate:"omitempty,date"`
}

type SettingsRequest struct {
	BufferTimeMinutes   int    `json:"bufferTimeMinutes"`
	MinAdvanceHours     int    `json:"minAdvanceHours"`
	MaxAdvanceDays      int    `json:"maxAdvanceDays"`
	SlotDurationMinutes int    `json:"slotDurationMinutes"`
	AdminEmail          string `json:"adminEmail" validate:"omitempty,email"`
	Timezone            string `json:"timezone" validate:"required"`
}

// normalizeWindow returns the window as HH:MM clocks, rejecting empty or inverted ranges.
func normalizeWindow(start, end string) (string, string, error) {
	startClock, err := schedule.NormalizeClock(start)
	if err != nil {
		return "", "", err
	}
	endClock, err := schedule.NormalizeClock(end)
	if err != nil {
		return "", "", err
	}
	// zero-padded "HH:MM" compares in clock order
	if startClock >= endClock {
		return "", "", fmt.Errorf("%w: start %s must be before end %s", schedule.ErrInvalidRange, start, end)
	}
	return startClock, endClock, nil
}

func (s *Server) AdminListAvailability(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	ctx, cancel := context.WithTimeout(r.Context(), s.readTimeout())
	defer cancel()

	var rules []models.AvailabilityRule
	err := retryRead(ctx, log, "admin availability list", func(ctx context.Context) error {
		var err error
		rules, err = s.Store.ListAvailabilityRules(ctx)
		return storeError("list rules", err)
	})
	if err != nil {
		writeBookingError(w, log, "admin availability list", err)
		return
	}
	log.Info("admin availability list: ok", slog.Int("count", len(rules)))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"rules": rules})
}

func (s *Server) AdminCreateAvailability(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req AvailabilityRuleRequest
	if !s.decodeValid(w, r, log, "admin availability create", &req) {
		return
	}
	start, end, err := normalizeWindow(req.StartTime, req.EndTime)
	if err != nil {
		writeBookingError(w, log, "admin availability create", err)
		return
	}

	rule := models.AvailabilityRule{
		ID:        uuid.NewString(),
		DayOfWeek: req.DayOfWeek,
		StartTime: start,
		EndTime:   end,
		Active:    req.Active == nil || *req.Active,
		CreatedAt: s.now(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.readTimeout())
	defer cancel()

	if err := s.Store.CreateAvailabilityRule(ctx, rule); err != nil {
		writeBookingError(w, log, "admin availability create", storeError("create rule", err))
		return
	}
	s.invalidateAvailability(context.WithoutCancel(r.Context()), log, cache.AvailabilityAll)

	log.Info("admin availability create: ok",
		slog.String("rule_id", rule.ID),
		slog.Int("day_of_week", rule.DayOfWeek),
		slog.String("start", rule.StartTime),
		slog.String("end", rule.EndTime),
	)
	transport.WriteJSON(w, http.StatusCreated, rule)
}

func (s *Server) AdminUpdateAvailability(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	id := chi.URLParam(r, "id")
	var req AvailabilityRuleRequest
	if !s.decodeValid(w, r, log, "admin availability update", &req) {
		return
	}
	start, end, err := normalizeWindow(req.StartTime, req.EndTime)
	if err != nil {
		writeBookingError(w, log, "admin availability update", err)
		return
	}

	rule := models.AvailabilityRule{
		ID:        id,
		DayOfWeek: req.DayOfWeek,
		StartTime: start,
		EndTime:   end,
		Active:    req.Active == nil || *req.Active,
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.readTimeout())
	defer cancel()

	updated, err := s.Store.UpdateAvailabilityRule(ctx, rule)
	if err != nil {
		writeBookingError(w, log, "admin availability update", storeError("update rule", err))
		return
	}
	s.invalidateAvailability(context.WithoutCancel(r.Context()), log, cache.AvailabilityAll)

	log.Info("admin availability update: ok", slog.String("rule_id", id))
	transport.WriteJSON(w, http.StatusOK, updated)
}

func (s *Server) AdminDeleteAvailability(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), s.readTimeout())
	defer cancel()

	if err := s.Store.DeleteAvailabilityRule(ctx, id); err != nil {
		writeBookingError(w, log, "admin availability delete", storeError("delete rule", err))
		return
	}
	s.invalidateAvailability(context.WithoutCancel(r.Context()), log, cache.AvailabilityAll)

	log.Info("admin availability delete: ok", slog.String("rule_id", id))
	transport.WriteNoContent(w)
}

func (s *Server) AdminListBlockedDates(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	q := blockedRangeQuery{
		From: r.URL.Query().Get("from"),
		To:   r.URL.Query().Get("to"),
	}
	if err := s.Val.Struct(q); err != nil {
		log.Warn("admin blocked list: invalid query")
		details := validationDetails(s.Val.ValidationErrors(err))
		transport.WriteError(w, http.StatusBadRequest, "invalid query", details)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.readTimeout())
	defer cancel()

	var dates []models.BlockedDate
	err := retryRead(ctx, log, "admin blocked list", func(ctx context.Context) error {
		var err error
		dates, err = s.Store.ListBlockedDates(ctx, q.From, q.To)
		return storeError("list blocked dates", err)
	})
	if err != nil {
		writeBookingError(w, log, "admin blocked list", err)
		return
	}
	log.Info("admin blocked list: ok", slog.Int("count", len(dates)))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"blockedDates": dates})
}

// expandDates lists every calendar date of the inclusive range [from, to].
func expandDates(from, to string) ([]string, error) {
	start, err := schedule.ParseDate(from, time.UTC)
	if err != nil {
		return nil, err
	}
	end, err := schedule.ParseDate(to, time.UTC)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("from %s is after to %s", from, to)
	}
	var out []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(schedule.DateLayout))
		if len(out) > maxBlockedRangeDays {
			return nil, fmt.Errorf("range exceeds %d days", maxBlockedRangeDays)
		}
	}
	return out, nil
}

func (s *Server) AdminCreateBlockedDates(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req BlockedDatesRequest
	if !s.decodeValid(w, r, log, "admin blocked create", &req) {
		return
	}

	days := []string{req.Date}
	if req.Date == "" {
		var err error
		days, err = expandDates(req.From, req.To)
		if err != nil {
			log.Warn("admin blocked create: invalid range", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusBadRequest, "invalid range", map[string]string{"reason": err.Error()})
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.readTimeout())
	defer cancel()

	settings, err := s.Slots.Settings(ctx)
	if err != nil {
		writeBookingError(w, log, "admin blocked create", err)
		return
	}
	loc, err := booking.Location(settings)
	if err != nil {
		writeBookingError(w, log, "admin blocked create", err)
		return
	}
	now := s.now()
	past, err := schedule.IsDatePast(days[0], loc, now)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid date", map[string]string{"reason": err.Error()})
		return
	}
	if past {
		log.Warn("admin blocked create: date in the past", slog.String("date", days[0]))
		transport.WriteError(w, http.StatusBadRequest, "invalid date", map[string]string{"reason": days[0] + " is in the past"})
		return
	}

	reason := strings.TrimSpace(req.Reason)
	dates := make([]models.BlockedDate, 0, len(days))
	for _, day := range days {
		dates = append(dates, models.BlockedDate{
			ID:        uuid.NewString(),
			Date:      day,
			Reason:    reason,
			CreatedAt: now,
		})
	}

	inserted, err := s.Store.CreateBlockedDates(ctx, dates)
	if err != nil {
		writeBookingError(w, log, "admin blocked create", storeError("create blocked dates", err))
		return
	}
	invalidateCtx := context.WithoutCancel(r.Context())
	for _, day := range days {
		s.invalidateAvailability(invalidateCtx, log, cache.AvailabilityPrefix(day))
	}

	log.Info("admin blocked create: ok", slog.Int("requested", len(days)), slog.Int("inserted", inserted))
	transport.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"inserted": inserted,
		"skipped":  len(days) - inserted,
	})
}

func (s *Server) AdminDeleteBlockedDate(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), s.readTimeout())
	defer cancel()

	blocked, err := s.Store.GetBlockedDate(ctx, id)
	if err != nil {
		writeBookingError(w, log, "admin blocked delete", storeError("get blocked date", err))
		return
	}
	if err := s.Store.DeleteBlockedDate(ctx, id); err != nil {
		writeBookingError(w, log, "admin blocked delete", storeError("delete blocked date", err))
		return
	}
	s.invalidateAvailability(context.WithoutCancel(r.Context()), log, cache.AvailabilityPrefix(blocked.Date))

	log.Info("admin blocked delete: ok", slog.String("blocked_id", id), slog.String("date", blocked.Date))
	transport.WriteNoContent(w)
}

func (s *Server) AdminGetSettings(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	ctx, cancel := context.WithTimeout(r.Context(), s.readTimeout())
	defer cancel()

	var settings models.Settings
	err := retryRead(ctx, log, "admin settings get", func(ctx context.Context) error {
		var err error
		settings, err = s.Slots.Settings(ctx)
		return err
	})
	if err != nil {
		writeBookingError(w, log, "admin settings get", err)
		return
	}
	log.Info("admin settings get: ok")
	transport.WriteJSON(w, http.StatusOK, settings)
}

func (s *Server) AdminUpdateSettings(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req SettingsRequest
	if !s.decodeValid(w, r, log, "admin settings update", &req) {
		return
	}

	settings := models.Settings{
		BufferTimeMinutes:   req.BufferTimeMinutes,
		MinAdvanceHours:     req.MinAdvanceHours,
		MaxAdvanceDays:      req.MaxAdvanceDays,
		SlotDurationMinutes: req.SlotDurationMinutes,
		AdminEmail:          strings.ToLower(strings.TrimSpace(req.AdminEmail)),
		Timezone:            strings.TrimSpace(req.Timezone),
	}
	if err := booking.ValidateSettings(settings); err != nil {
		var ce *booking.ConfigError
		if errors.As(err, &ce) {
			log.Warn("admin settings update: invalid settings", slog.String("field", ce.Field))
			transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{ce.Field: ce.Reason})
			return
		}
		writeBookingError(w, log, "admin settings update", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.readTimeout())
	defer cancel()

	if err := s.Store.SaveSettings(ctx, settings); err != nil {
		writeBookingError(w, log, "admin settings update", storeError("save settings", err))
		return
	}
	s.invalidateAvailability(context.WithoutCancel(r.Context()), log, cache.AvailabilityAll)
	if s.SettingsSaved != nil {
		s.SettingsSaved(settings)
	}

	log.Info("admin settings update: ok",
		slog.Int("buffer", settings.BufferTimeMinutes),
		slog.Int("slot_minutes", settings.SlotDurationMinutes),
		slog.String("timezone", settings.Timezone),
	)
	transport.WriteJSON(w, http.StatusOK, settings)
}
