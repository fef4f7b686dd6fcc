package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"agenda-backend/internal/cache"
	"agenda-backend/internal/models"
	"agenda-backend/internal/transport"
	"agenda-backend/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type AdminServiceRequest struct {
	Name            string `json:"name" validate:"required,max=120"`
	Slug            string `json:"slug" validate:"omitempty,slug,max=120"`
	Description     string `json:"description" validate:"max=2000"`
	Category        string `json:"category" validate:"max=80"`
	DurationMinutes int    `json:"durationMinutes" validate:"required,min=5,max=480"`
	Price           int    `json:"price" validate:"min=0"`
	Active          *bool  `json:"active"`
	Color           string `json:"color" validate:"omitempty,hexcolor"`
}

func (req AdminServiceRequest) apply(svc *models.Service) {
	svc.Name = strings.TrimSpace(req.Name)
	svc.Slug = req.Slug
	if svc.Slug == "" {
		svc.Slug = utils.Slugify(svc.Name)
	}
	svc.Description = strings.TrimSpace(req.Description)
	svc.Category = strings.TrimSpace(req.Category)
	svc.DurationMinutes = req.DurationMinutes
	svc.Price = req.Price
	svc.Color = req.Color
	if req.Active != nil {
		svc.Active = *req.Active
	}
}

func (s *Server) AdminListServices(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	ctx, cancel := context.WithTimeout(r.Context(), s.readTimeout())
	defer cancel()

	var items []models.Service
	err := retryRead(ctx, log, "admin services list", func(ctx context.Context) error {
		var err error
		items, err = s.Store.ListServices(ctx, false)
		return storeError("list services", err)
	})
	if err != nil {
		writeBookingError(w, log, "admin services list", err)
		return
	}
	log.Info("admin services list: ok", slog.Int("count", len(items)))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"services": items})
}

func (s *Server) AdminCreateService(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req AdminServiceRequest
	if !s.decodeValid(w, r, log, "admin services create", &req) {
		return
	}

	svc := models.Service{
		ID:        uuid.NewString(),
		Active:    true,
		CreatedAt: s.now(),
	}
	req.apply(&svc)
	if svc.Slug == "" {
		transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"slug": "slug"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.readTimeout())
	defer cancel()

	if err := s.Store.CreateService(ctx, svc); err != nil {
		writeBookingError(w, log, "admin services create", storeError("create service", err))
		return
	}
	s.invalidateServices(context.WithoutCancel(r.Context()), log)

	log.Info("admin services create: ok", slog.String("service_id", svc.ID), slog.String("slug", svc.Slug))
	transport.WriteJSON(w, http.StatusCreated, svc)
}

func (s *Server) AdminUpdateService(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	id := chi.URLParam(r, "id")
	var req AdminServiceRequest
	if !s.decodeValid(w, r, log, "admin services update", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.readTimeout())
	defer cancel()

	svc, err := s.Store.GetService(ctx, id)
	if err != nil {
		writeBookingError(w, log, "admin services update", storeError("get service", err))
		return
	}
	req.apply(&svc)

	updated, err := s.Store.UpdateService(ctx, svc)
	if err != nil {
		writeBookingError(w, log, "admin services update", storeError("update service", err))
		return
	}
	s.invalidateServices(context.WithoutCancel(r.Context()), log)

	log.Info("admin services update: ok", slog.String("service_id", id))
	transport.WriteJSON(w, http.StatusOK, updated)
}

func (s *Server) AdminDeleteService(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), s.readTimeout())
	defer cancel()

	if err := s.Store.DeleteService(ctx, id); err != nil {
		writeBookingError(w, log, "admin services delete", storeError("delete service", err))
		return
	}
	s.invalidateServices(context.WithoutCancel(r.Context()), log)

	log.Info("admin services delete: ok", slog.String("service_id", id))
	transport.WriteNoContent(w)
}

// decodeValid decodes and validates a JSON body, writing the 400 itself on failure.
func (s *Server) decodeValid(w http.ResponseWriter, r *http.Request, log *slog.Logger, op string, v interface{}) bool {
	if err := decodeJSON(r, v); err != nil {
		log.Warn(op + ": invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return false
	}
	if err := s.Val.Struct(v); err != nil {
		log.Warn(op + ": validation error")
		details := validationDetails(s.Val.ValidationErrors(err))
		transport.WriteError(w, http.StatusBadRequest, "validation error", details)
		return false
	}
	return true
}

func (s *Server) invalidateServices(ctx context.Context, log *slog.Logger) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Delete(ctx, cache.ServicesKey); err != nil {
		log.Warn("cache invalidate failed", slog.String("key", cache.ServicesKey), slog.String("error", err.Error()))
	}
	s.invalidateAvailability(ctx, log, cache.AvailabilityAll)
}
