package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config holds process-level configuration. Channel credentials are
// deliberately absent: they are resolved per send by channels.Resolver.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	ReminderInterval       time.Duration
	StrictDeliveryMode     bool
	ReminderStore          string
	AppointmentsFile       string
	DatabaseURL            string
	AppointmentsTable      string
	ClinicTimezone         string
	ClinicName             string
	ReminderLocale         string
	ReminderLockTTL        time.Duration
	ReminderEventsQueueURL string
	ChannelEnvFile         string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	AdminJWTSecret string
}

// Load reads configuration from environment variables
func Load() *Config {
	env := getEnv("ENV", "development")
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      env,
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ReminderInterval:       getEnvAsDuration("REMINDER_INTERVAL", 30*time.Minute),
		StrictDeliveryMode:     getEnvAsBool("REMINDER_STRICT_DELIVERY", IsProduction(env)),
		ReminderStore:          strings.ToLower(strings.TrimSpace(getEnv("REMINDER_STORE", "file"))),
		AppointmentsFile:       getEnv("APPOINTMENTS_FILE", "data/appointments.json"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		AppointmentsTable:      getEnv("APPOINTMENTS_TABLE", "appointments"),
		ClinicTimezone:         getEnv("CLINIC_TIMEZONE", "Asia/Ho_Chi_Minh"),
		ClinicName:             getEnv("CLINIC_NAME", "Phòng khám"),
		ReminderLocale:         getEnv("REMINDER_LOCALE", "vi"),
		ReminderLockTTL:        getEnvAsDuration("REMINDER_LOCK_TTL", 10*time.Minute),
		ReminderEventsQueueURL: getEnv("REMINDER_EVENTS_QUEUE_URL", ""),
		ChannelEnvFile:         getEnv("CHANNEL_ENV_FILE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
	}
}

// IsProduction reports whether env names a production deployment.
func IsProduction(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod":
		return true
	}
	return false
}

// Location resolves ClinicTimezone. An empty value means UTC; a name the
// zone database does not know is an error.
func (c *Config) Location() (*time.Location, error) {
	if c == nil || strings.TrimSpace(c.ClinicTimezone) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(strings.TrimSpace(c.ClinicTimezone))
	if err != nil {
		return nil, fmt.Errorf("config: CLINIC_TIMEZONE %q: %w", c.ClinicTimezone, err)
	}
	return loc, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	// Bare integers are minutes, matching the historical REMINDER_INTERVAL=30.
	if minutes, err := strconv.Atoi(valueStr); err == nil && minutes > 0 {
		return time.Duration(minutes) * time.Minute
	}
	return defaultValue
}
