package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"agenda-backend/internal/booking"
	"agenda-backend/internal/cache"
	"agenda-backend/internal/schedule"
	"agenda-backend/internal/transport"
	"github.com/go-chi/chi/v5"
)

const maxNextAvailabilityDays = 60

type availabilityQuery struct {
	Date string `json:"date" validate:"required,date"`
}

type nextAvailabilityQuery struct {
	ServiceID string `json:"serviceId" validate:"required"`
	From      string `json:"from" validate:"omitempty,date"`
}

// GetServiceAvailability lists the bookable start times of one service on one date.
// The answer is advisory: POST /meetings re-checks under the store lock.
func (s *Server) GetServiceAvailability(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	serviceID := chi.URLParam(r, "id")
	q := availabilityQuery{Date: r.URL.Query().Get("date")}
	if err := s.Val.Struct(q); err != nil {
		log.Warn("availability: invalid query")
		details := validationDetails(s.Val.ValidationErrors(err))
		transport.WriteError(w, http.StatusBadRequest, "invalid query", details)
		return
	}

	cacheKey := cache.AvailabilityKey(q.Date, serviceID)
	if s.Cache != nil {
		if cached, ok, err := s.Cache.Get(r.Context(), cacheKey); err == nil && ok {
			log.Info("availability: cache hit", slog.String("date", q.Date), slog.String("service_id", serviceID))
			writeCachedJSON(w, http.StatusOK, cached)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.readTimeout())
	defer cancel()

	var result booking.Availability
	err := retryRead(ctx, log, "availability", func(ctx context.Context) error {
		var err error
		result, err = s.Slots.AvailableSlots(ctx, q.Date, serviceID)
		return err
	})
	if err != nil {
		writeBookingError(w, log, "availability", err)
		return
	}

	// never cache past the moment the result would change on its own
	ttl := s.cacheTTL()
	if ttl <= 0 || result.StableFor < ttl {
		ttl = result.StableFor
	}
	if s.Cache != nil && ttl > 0 {
		if payload, err := encodeJSON(result); err == nil {
			_ = s.Cache.Set(r.Context(), cacheKey, payload, ttl)
		}
	}

	log.Info("availability: ok",
		slog.String("service_id", serviceID),
		slog.String("date", q.Date),
		slog.Int("slots", len(result.Slots)),
	)
	transport.WriteJSON(w, http.StatusOK, result)
}

func (s *Server) GetNextAvailability(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	q := nextAvailabilityQuery{
		ServiceID: r.URL.Query().Get("serviceId"),
		From:      r.URL.Query().Get("from"),
	}
	if err := s.Val.Struct(q); err != nil {
		log.Warn("availability next: invalid query")
		details := validationDetails(s.Val.ValidationErrors(err))
		transport.WriteError(w, http.StatusBadRequest, "invalid query", details)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.readTimeout())
	defer cancel()

	if q.From == "" {
		settings, err := s.Slots.Settings(ctx)
		if err != nil {
			writeBookingError(w, log, "availability next", err)
			return
		}
		loc, err := booking.Location(settings)
		if err != nil {
			writeBookingError(w, log, "availability next", err)
			return
		}
		q.From = s.now().In(loc).Format(schedule.DateLayout)
	}

	var (
		result booking.Availability
		found  bool
	)
	err := retryRead(ctx, log, "availability next", func(ctx context.Context) error {
		var err error
		result, found, err = s.Slots.NextAvailable(ctx, q.From, q.ServiceID, maxNextAvailabilityDays)
		return err
	})
	if err != nil {
		writeBookingError(w, log, "availability next", err)
		return
	}
	if !found {
		log.Info("availability next: none", slog.String("service_id", q.ServiceID), slog.String("from", q.From))
		transport.WriteError(w, http.StatusNotFound, "no availability found", map[string]string{"days": strconv.Itoa(maxNextAvailabilityDays)})
		return
	}

	log.Info("availability next: ok", slog.String("date", result.Date), slog.String("time", result.Slots[0]))
	transport.WriteJSON(w, http.StatusOK, result)
}
