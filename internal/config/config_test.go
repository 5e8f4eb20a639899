package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("REMINDER_INTERVAL", "")
	t.Setenv("REMINDER_STRICT_DELIVERY", "")
	t.Setenv("REMINDER_STORE", "")
	t.Setenv("CLINIC_TIMEZONE", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.ReminderInterval != 30*time.Minute {
		t.Fatalf("expected 30m interval, got %s", cfg.ReminderInterval)
	}
	if cfg.StrictDeliveryMode {
		t.Fatalf("expected lenient delivery outside production")
	}
	if cfg.ReminderStore != "file" {
		t.Fatalf("expected file store by default, got %s", cfg.ReminderStore)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "Asia/Ho_Chi_Minh" {
		t.Fatalf("expected default clinic timezone, got %v (%v)", loc, err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("REMINDER_INTERVAL", "15m")
	t.Setenv("REMINDER_STORE", " Postgres ")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("REMINDER_STRICT_DELIVERY", "")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if !cfg.StrictDeliveryMode {
		t.Fatalf("expected strict delivery in production")
	}
	if cfg.ReminderInterval != 15*time.Minute {
		t.Fatalf("expected interval override, got %s", cfg.ReminderInterval)
	}
	if cfg.ReminderStore != "postgres" {
		t.Fatalf("expected normalized store name, got %q", cfg.ReminderStore)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
}

func TestStrictDeliveryExplicitFlagWins(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("REMINDER_STRICT_DELIVERY", "false")
	if Load().StrictDeliveryMode {
		t.Fatalf("explicit flag should override the env-derived default")
	}
}

func TestIntervalAcceptsBareMinutes(t *testing.T) {
	t.Setenv("REMINDER_INTERVAL", "45")
	if got := Load().ReminderInterval; got != 45*time.Minute {
		t.Fatalf("expected 45m, got %s", got)
	}
}

func TestLocationRejectsUnknownZone(t *testing.T) {
	cfg := &Config{ClinicTimezone: "Asia/Ho_Chi_Mihn"}
	loc, err := cfg.Location()
	if err == nil {
		t.Fatalf("expected error for misspelled zone, got %v", loc)
	}
	if !strings.Contains(err.Error(), "CLINIC_TIMEZONE") {
		t.Fatalf("error should name the setting: %v", err)
	}
}

func TestLocationEmptyIsUTC(t *testing.T) {
	loc, err := (&Config{}).Location()
	if err != nil || loc != time.UTC {
		t.Fatalf("expected UTC, got %v (%v)", loc, err)
	}
}
