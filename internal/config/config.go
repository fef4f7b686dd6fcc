package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"agenda-backend/internal/models"
	"github.com/joho/godotenv"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Env                string
	ServerAddr         string
	StoreDriver        string
	MongoURI           string
	MongoDB            string
	DatabaseURL        string
	FrontendOrigins    []string
	RateLimitMeetings  int
	RateLimitLogin     int
	RateLimitWindowSec int
	RedisURL           string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	CacheTTLSeconds    int
	AdminAPIKey        string
	AdminUser          string
	AdminPassword      string
	AdminSetupKey      string
	JWTSecret          string
	AccessTTLMinutes   int
	RefreshTTLMinutes  int
	CookieSecure       bool
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ReminderCron       string
	BrevoAPIKey        string
	BrevoSenderEmail   string
	BrevoSenderName    string
	BrevoSandbox       bool
	AdminNotifyEmail   string
	Timezone           *time.Location
	// Defaults is the scheduling configuration used until an admin saves settings.
	Defaults models.Settings
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvMillis(key string, fallback time.Duration) time.Duration {
	if ms := getEnvInt(key, 0); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func Load() (*Config, error) {
	// Process variables win over .env; a missing file is fine.
	_ = godotenv.Load()

	tzName := getEnv("TZ", "Africa/Kinshasa")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("config: TZ %q: %w", tzName, err)
	}

	mongoURI := getEnv("MONGO_URI", "mongodb://localhost:27017/agenda")
	mongoDB := getEnv("MONGO_DB", "")
	if mongoDB == "" {
		mongoDB = mongoDBFromURI(mongoURI)
	}
	if mongoDB == "" {
		mongoDB = "agenda"
	}

	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		ServerAddr:         getEnv("SERVER_ADDR", ":8080"),
		StoreDriver:        strings.ToLower(getEnv("STORE_DRIVER", StoreMongo)),
		MongoURI:           mongoURI,
		MongoDB:            mongoDB,
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		FrontendOrigins:    splitList(getEnv("FRONTEND_ORIGIN", "http://localhost:3000")),
		RateLimitMeetings:  getEnvInt("RATE_LIMIT_MEETINGS", 10),
		RateLimitLogin:     getEnvInt("RATE_LIMIT_LOGIN", 5),
		RateLimitWindowSec: getEnvInt("RATE_LIMIT_WINDOW_SEC", 60),
		RedisURL:           getEnv("REDIS_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		CacheTTLSeconds:    getEnvInt("CACHE_TTL_SECONDS", 60),
		AdminAPIKey:        getEnv("ADMIN_API_KEY", ""),
		AdminUser:          getEnv("ADMIN_USER", "admin"),
		AdminPassword:      getEnv("ADMIN_PASSWORD", ""),
		AdminSetupKey:      getEnv("ADMIN_SETUP_KEY", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		AccessTTLMinutes:   getEnvInt("ACCESS_TTL_MINUTES", 15),
		RefreshTTLMinutes:  getEnvInt("REFRESH_TTL_MINUTES", 43200),
		CookieSecure:       getEnv("COOKIE_SECURE", "false") == "true",
		ReadTimeout:        getEnvMillis("READ_TIMEOUT_MS", 5*time.Second),
		WriteTimeout:       getEnvMillis("WRITE_TIMEOUT_MS", 8*time.Second),
		ReminderCron:       getEnv("REMINDER_CRON", "0 18 * * *"),
		BrevoAPIKey:        getEnv("BREVO_API_KEY", ""),
		BrevoSenderEmail:   getEnv("BREVO_SENDER_EMAIL", ""),
		BrevoSenderName:    getEnv("BREVO_SENDER_NAME", "Agenda"),
		BrevoSandbox:       getEnv("BREVO_SANDBOX", "false") == "true",
		AdminNotifyEmail:   getEnv("ADMIN_NOTIFY_EMAIL", ""),
		Timezone:           loc,
		Defaults: models.Settings{
			BufferTimeMinutes:   getEnvInt("DEFAULT_BUFFER_MINUTES", 15),
			MinAdvanceHours:     getEnvInt("DEFAULT_MIN_ADVANCE_HOURS", 24),
			MaxAdvanceDays:      getEnvInt("DEFAULT_MAX_ADVANCE_DAYS", 60),
			SlotDurationMinutes: getEnvInt("DEFAULT_SLOT_MINUTES", 30),
			AdminEmail:          getEnv("ADMIN_NOTIFY_EMAIL", ""),
			Timezone:            tzName,
		},
	}

	switch cfg.StoreDriver {
	case StoreMongo, StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("config: DATABASE_URL is required for STORE_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("config: unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	return cfg, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.TrimRight(p, "/"))
		}
	}
	return out
}

func mongoDBFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	db := strings.Trim(u.Path, "/")
	if db == "" {
		return ""
	}
	// only the first path segment names the database
	if idx := strings.Index(db, "/"); idx >= 0 {
		db = db[:idx]
	}
	return db
}
