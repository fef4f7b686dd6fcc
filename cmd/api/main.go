package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agenda-backend/internal/auth"
	"agenda-backend/internal/booking"
	"agenda-backend/internal/cache"
	"agenda-backend/internal/config"
	"agenda-backend/internal/handlers"
	"agenda-backend/internal/middleware"
	"agenda-backend/internal/models"
	"agenda-backend/internal/notifications"
	"agenda-backend/internal/reminders"
	storage "agenda-backend/internal/store"
	"agenda-backend/internal/validation"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("store init failed", slog.String("driver", cfg.StoreDriver), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	var cacheStore cache.Cache = cache.NewNoop()
	var rdb *redis.Client
	if cfg.RedisURL != "" || cfg.RedisAddr != "" {
		var redisCache *cache.RedisCache
		var err error
		if cfg.RedisURL != "" {
			redisCache, err = cache.NewRedisFromURL(cfg.RedisURL)
		} else {
			redisCache = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		}
		if err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := redisCache.Ping(ctx); err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if cfg.RedisURL != "" {
			logger.Info("redis connected (url)")
		} else {
			logger.Info("redis connected", slog.String("addr", cfg.RedisAddr))
		}
		defer redisCache.Close()
		cacheStore = redisCache
		rdb = redisCache.Client()
	}

	var jwtManager *auth.Manager
	if cfg.JWTSecret != "" {
		jwtManager = &auth.Manager{
			Secret:     []byte(cfg.JWTSecret),
			AccessTTL:  time.Duration(cfg.AccessTTLMinutes) * time.Minute,
			RefreshTTL: time.Duration(cfg.RefreshTTLMinutes) * time.Minute,
			Issuer:     "agenda-backend",
		}
	}

	brevo := notifications.NewBrevoClient(cfg.BrevoAPIKey, cfg.BrevoSenderEmail, cfg.BrevoSenderName, cfg.BrevoSandbox)
	if brevo == nil {
		logger.Info("brevo mailer disabled")
	} else {
		logger.Info("brevo mailer enabled", slog.String("sender", cfg.BrevoSenderEmail), slog.Bool("sandbox", cfg.BrevoSandbox))
	}
	mailer := notifications.NewMailer(brevo, logger)

	slots := booking.NewSlotService(store.Store, cfg.Defaults, nil)
	server := &handlers.Server{
		Cfg:    cfg,
		Store:  store.Store,
		Slots:  slots,
		Booker: booking.NewBooker(store.Store, slots, nil, cfg.WriteTimeout),
		Val:    validation.New(),
		Log:    logger,
		Cache:  cacheStore,
		Mailer: mailer,
		Auth:   jwtManager,
		Ready:  store.Ready,
	}

	window := time.Duration(cfg.RateLimitWindowSec) * time.Second
	var meetingsLimiter, loginLimiter middleware.Limiter
	if rdb != nil {
		meetingsLimiter = middleware.NewRedisRateLimiter(rdb, cfg.RateLimitMeetings, window, "rl:meetings", logger)
		loginLimiter = middleware.NewRedisRateLimiter(rdb, cfg.RateLimitLogin, window, "rl:login", logger)
	} else {
		meetingsLimiter = middleware.NewRateLimiter(cfg.RateLimitMeetings, window)
		loginLimiter = middleware.NewRateLimiter(cfg.RateLimitLogin, window)
	}

	job := &reminders.Job{
		Repo:     store.Store,
		Settings: slots,
		Mailer:   mailer,
		Log:      logger,
	}
	reminderLoc := cfg.Timezone
	if settings, err := slots.Settings(ctx); err != nil {
		logger.Warn("settings unavailable, reminders use the configured timezone", slog.String("error", err.Error()))
	} else if loc, err := booking.Location(settings); err == nil {
		reminderLoc = loc
	}
	scheduler, err := job.Start(cfg.ReminderCron, reminderLoc)
	if err != nil {
		logger.Error("reminder schedule invalid", slog.String("spec", cfg.ReminderCron), slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("reminders scheduled", slog.String("spec", cfg.ReminderCron), slog.String("timezone", reminderLoc.String()))

	server.SettingsSaved = func(settings models.Settings) {
		loc, err := booking.Location(settings)
		if err != nil {
			logger.Warn("reminders: keep schedule", slog.String("error", err.Error()))
			return
		}
		if err := job.Relocate(loc); err != nil {
			logger.Error("reminders: reschedule failed", slog.String("timezone", loc.String()), slog.String("error", err.Error()))
			return
		}
		logger.Info("reminders: schedule follows settings", slog.String("timezone", loc.String()))
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           server.Routes(meetingsLimiter, loginLimiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", slog.String("addr", cfg.ServerAddr), slog.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	<-scheduler.Stop().Done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
}
