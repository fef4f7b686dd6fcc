package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"agenda-backend/internal/auth"
	"agenda-backend/internal/booking"
	"agenda-backend/internal/config"
	"agenda-backend/internal/models"
	storage "agenda-backend/internal/store"
	"agenda-backend/internal/utils"
	"github.com/google/uuid"
)

type seedService struct {
	Name        string
	Description string
	Category    string
	Duration    int
	Price       int
	Color       string
}

type seedWindow struct {
	Days       []int
	Start, End string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.StoreDriver == config.StoreMemory {
		log.Fatal("seed: STORE_DRIVER=memory has nothing to seed")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	now := time.Now().In(cfg.Timezone)

	services := []seedService{
		{Name: "Consultation initiale", Description: "Premier échange pour cadrer le besoin.", Category: "Conseil", Duration: 30, Color: "#2563eb"},
		{Name: "Séance de suivi", Description: "Point d'avancement sur un dossier en cours.", Category: "Conseil", Duration: 60, Price: 50, Color: "#16a34a"},
		{Name: "Atelier stratégique", Description: "Session de travail approfondie en équipe.", Category: "Atelier", Duration: 90, Price: 120, Color: "#d97706"},
		{Name: "Appel rapide", Description: "Question ponctuelle par téléphone.", Category: "Support", Duration: 15, Color: "#64748b"},
	}
	if err := seedServices(ctx, store, services, now); err != nil {
		log.Fatalf("seed services: %v", err)
	}

	windows := []seedWindow{
		{Days: []int{1, 2, 3, 4, 5}, Start: "09:00", End: "12:00"},
		{Days: []int{1, 2, 3, 4, 5}, Start: "14:00", End: "17:00"},
		{Days: []int{6}, Start: "09:00", End: "13:00"},
	}
	if err := seedRules(ctx, store, windows, now); err != nil {
		log.Fatalf("seed availability: %v", err)
	}

	if _, err := store.GetSettings(ctx); errors.Is(err, booking.ErrNotFound) {
		if err := store.SaveSettings(ctx, cfg.Defaults); err != nil {
			log.Fatalf("seed settings: %v", err)
		}
		log.Println("seed settings: defaults saved")
	} else if err != nil {
		log.Fatalf("seed settings: %v", err)
	}

	username := strings.ToLower(envOrDefault("ADMIN_USER", "admin"))
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		log.Printf("seed admin: ADMIN_PASSWORD missing, skipping %s", username)
	} else if err := seedAdminUser(ctx, store, username, os.Getenv("ADMIN_EMAIL"), password, now); err != nil {
		log.Fatalf("seed admin error for %s: %v", username, err)
	}

	log.Println("seed completed")
}

func seedServices(ctx context.Context, store booking.Store, services []seedService, now time.Time) error {
	existing, err := store.ListServices(ctx, false)
	if err != nil {
		return err
	}
	slugs := make(map[string]bool, len(existing))
	for _, svc := range existing {
		slugs[svc.Slug] = true
	}
	for _, svc := range services {
		slug := utils.Slugify(svc.Name)
		if slugs[slug] {
			continue
		}
		err := store.CreateService(ctx, models.Service{
			ID:              uuid.NewString(),
			Name:            svc.Name,
			Slug:            slug,
			Description:     svc.Description,
			Category:        svc.Category,
			DurationMinutes: svc.Duration,
			Price:           svc.Price,
			Active:          true,
			Color:           svc.Color,
			CreatedAt:       now,
		})
		if err != nil {
			return err
		}
		log.Printf("seed service: %s", slug)
	}
	return nil
}

// seedRules only runs on an empty schedule so admin edits are never duplicated.
func seedRules(ctx context.Context, store booking.Store, windows []seedWindow, now time.Time) error {
	rules, err := store.ListAvailabilityRules(ctx)
	if err != nil {
		return err
	}
	if len(rules) > 0 {
		log.Printf("seed availability: %d rules present, skipping", len(rules))
		return nil
	}
	for _, w := range windows {
		for _, day := range w.Days {
			err := store.CreateAvailabilityRule(ctx, models.AvailabilityRule{
				ID:        uuid.NewString(),
				DayOfWeek: day,
				StartTime: w.Start,
				EndTime:   w.End,
				Active:    true,
				CreatedAt: now,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func seedAdminUser(ctx context.Context, store booking.Store, username, email, password string, now time.Time) error {
	if username == "" || password == "" {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	err = store.CreateUser(ctx, models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         models.UserRoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, booking.ErrDuplicate) {
		log.Printf("seed admin: %s already exists", username)
		return nil
	}
	return err
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
