package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("TZ", "Africa/Kinshasa")
	t.Setenv("WRITE_TIMEOUT_MS", "2500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.StoreDriver != StoreMemory {
		t.Fatalf("StoreDriver = %q", cfg.StoreDriver)
	}
	if cfg.WriteTimeout != 2500*time.Millisecond || cfg.ReadTimeout != 5*time.Second {
		t.Fatalf("timeouts = %v / %v", cfg.ReadTimeout, cfg.WriteTimeout)
	}
	if cfg.Defaults.Timezone != "Africa/Kinshasa" || cfg.Defaults.MaxAdvanceDays != 60 {
		t.Fatalf("unexpected defaults: %+v", cfg.Defaults)
	}
	if cfg.ReminderCron != "0 18 * * *" {
		t.Fatalf("ReminderCron = %q", cfg.ReminderCron)
	}
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("TZ", "Nowhere/Special")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestLoadPostgresRequiresURL(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestLoadUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "cassandra")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" https://a.example/ ,,https://b.example")
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("splitList = %v, want %v", got, want)
	}
}

func TestMongoDBFromURI(t *testing.T) {
	cases := map[string]string{
		"mongodb://localhost:27017/agenda":    "agenda",
		"mongodb://localhost:27017/":          "",
		"mongodb+srv://u:p@host/bookings?w=1": "bookings",
	}
	for uri, want := range cases {
		if got := mongoDBFromURI(uri); got != want {
			t.Fatalf("mongoDBFromURI(%q) = %q, want %q", uri, got, want)
		}
	}
}
