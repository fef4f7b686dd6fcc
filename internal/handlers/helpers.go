package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"agenda-backend/internal/booking"
	"agenda-backend/internal/httpx"
	"agenda-backend/internal/schedule"
	"agenda-backend/internal/transport"
	"github.com/go-playground/validator/v10"
)

const readRetryBackoff = 150 * time.Millisecond

func decodeJSON(r *http.Request, v interface{}) error {
	return httpx.DecodeJSON(io.LimitReader(r.Body, 1<<20), v)
}

func validationDetails(errs validator.ValidationErrors) map[string]string {
	return httpx.ValidationDetails(errs)
}

func writeCachedJSON(w http.ResponseWriter, status int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func encodeJSON(payload interface{}) ([]byte, error) {
	return json.Marshal(payload)
}

// retryRead runs a read once more after a short pause when it failed on the store.
func retryRead(ctx context.Context, log *slog.Logger, op string, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil || !booking.IsPersistence(err) || ctx.Err() != nil {
		return err
	}
	log.Warn(op+": retrying read", slog.String("error", err.Error()))
	select {
	case <-ctx.Done():
		return err
	case <-time.After(readRetryBackoff):
	}
	return fn(ctx)
}

func isInputError(err error) bool {
	for _, target := range []error{
		schedule.ErrInvalidDate,
		schedule.ErrInvalidTimeFormat,
		schedule.ErrInvalidRange,
		schedule.ErrInvalidDuration,
		booking.ErrInvalidStatus,
		booking.ErrSlotNotOffered,
		booking.ErrServiceInactive,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writeBookingError maps scheduling errors to HTTP responses.
func writeBookingError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		log.Warn(op + ": not found")
		transport.WriteError(w, http.StatusNotFound, "not found", nil)
	case errors.Is(err, booking.ErrSlotNoLongerAvailable):
		log.Warn(op+": slot no longer available", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusConflict, "slot no longer available", nil)
	case errors.Is(err, booking.ErrInvalidTransition):
		log.Warn(op+": invalid transition", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusConflict, "invalid status transition", map[string]string{"reason": err.Error()})
	case errors.Is(err, booking.ErrDuplicate):
		log.Warn(op + ": duplicate")
		transport.WriteError(w, http.StatusConflict, "already exists", nil)
	case isInputError(err):
		log.Warn(op+": invalid input", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, "invalid input", map[string]string{"reason": err.Error()})
	case booking.IsConfig(err):
		log.Error(op+": configuration error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "configuration error", nil)
	case booking.IsPersistence(err):
		log.Error(op+": persistence error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusServiceUnavailable, "service unavailable", nil)
	default:
		log.Error(op+": unexpected error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

// storeError classifies a raw Store error the same way the booking layer does.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, booking.ErrNotFound) || errors.Is(err, booking.ErrDuplicate) {
		return err
	}
	return &booking.PersistenceError{Op: op, Err: err}
}

func (s *Server) invalidateAvailability(ctx context.Context, log *slog.Logger, prefix string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.DeletePrefix(ctx, prefix); err != nil {
		log.Warn("cache invalidate failed", slog.String("prefix", prefix), slog.String("error", err.Error()))
	}
}
