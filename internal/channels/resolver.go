package channels

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/wolfman30/clinic-reminders/internal/messaging"
	"github.com/wolfman30/clinic-reminders/internal/notify"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// LookupFunc reads one environment value.
type LookupFunc func(key string) (string, bool)

// EmailConfig is the resolved email channel configuration for one send.
type EmailConfig struct {
	Enabled    bool
	Configured bool
	Transport  string
	Reason     string
	Settings   notify.TransportConfig
}

// Key identifies the transport settings without exposing credentials.
func (c EmailConfig) Key() string {
	return digest(fmt.Sprintf("%+v", c.Settings))
}

// SMSConfig is the resolved SMS channel configuration for one send.
type SMSConfig struct {
	Enabled       bool
	Configured    bool
	Provider      string
	Reason        string
	CountryPrefix string
	Settings      messaging.ProviderSelectionConfig
}

// Key identifies the provider settings without exposing credentials.
func (c SMSConfig) Key() string {
	return digest(fmt.Sprintf("%+v", c.Settings))
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

// Resolver re-reads channel settings on every call: process environment,
// overlaid by an optional dotenv file so operators can edit credentials
// without a restart.
type Resolver struct {
	envFile string
	lookup  LookupFunc
	logger  *logging.Logger
}

// NewResolver builds a resolver. A nil lookup reads the process environment.
func NewResolver(envFile string, lookup LookupFunc, logger *logging.Logger) *Resolver {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{envFile: strings.TrimSpace(envFile), lookup: lookup, logger: logger}
}

type settings struct {
	overlay map[string]string
	lookup  LookupFunc
}

func (s settings) get(key string) string {
	if v, ok := s.overlay[key]; ok {
		return strings.TrimSpace(v)
	}
	if v, ok := s.lookup(key); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func (s settings) getOr(key, fallback string) string {
	if v := s.get(key); v != "" {
		return v
	}
	return fallback
}

func (s settings) getBool(key string, fallback bool) bool {
	v := s.get(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func (r *Resolver) read() settings {
	s := settings{lookup: r.lookup}
	if r.envFile == "" {
		return s
	}
	overlay, err := godotenv.Read(r.envFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn("channel env file unreadable; using process env", "path", r.envFile, "error", err)
		}
		return s
	}
	s.overlay = overlay
	return s
}

// Email resolves the email channel configuration.
func (r *Resolver) Email() EmailConfig {
	s := r.read()
	cfg := EmailConfig{
		Enabled: s.getBool("EMAIL_ENABLED", true),
		Settings: notify.TransportConfig{
			Preference:     s.getOr("EMAIL_TRANSPORT", notify.EmailTransportAuto),
			SendGridAPIKey: s.get("SENDGRID_API_KEY"),
			FromEmail:      s.get("EMAIL_FROM_ADDRESS"),
			FromName:       s.get("EMAIL_FROM_NAME"),
			EndpointURL:    s.get("EMAIL_ENDPOINT_URL"),
			EndpointToken:  s.get("EMAIL_ENDPOINT_TOKEN"),
			SESEnabled:     s.getBool("EMAIL_SES_ENABLED", false),
			AWSRegion:      s.getOr("AWS_REGION", "us-east-1"),
		},
	}
	if !cfg.Enabled {
		cfg.Reason = "EMAIL_ENABLED=false"
		return cfg
	}
	cfg.Transport, cfg.Reason = notify.SelectTransport(cfg.Settings)
	cfg.Configured = cfg.Transport != ""
	return cfg
}

// SMS resolves the SMS channel configuration.
func (r *Resolver) SMS() SMSConfig {
	s := r.read()
	cfg := SMSConfig{
		Enabled:       s.getBool("SMS_ENABLED", true),
		CountryPrefix: s.getOr("SMS_COUNTRY_PREFIX", messaging.DefaultCountryPrefix),
		Settings: messaging.ProviderSelectionConfig{
			Preference:       s.getOr("SMS_PROVIDER", messaging.SMSProviderAuto),
			GatewayURL:       s.get("SMS_GATEWAY_URL"),
			GatewayAPIKey:    s.get("SMS_GATEWAY_API_KEY"),
			SenderID:         s.get("SMS_SENDER_ID"),
			TelnyxAPIKey:     s.get("TELNYX_API_KEY"),
			TelnyxProfileID:  s.get("TELNYX_MESSAGING_PROFILE_ID"),
			TelnyxFromNumber: s.get("TELNYX_FROM_NUMBER"),
			TwilioAccountSID: s.get("TWILIO_ACCOUNT_SID"),
			TwilioAuthToken:  s.get("TWILIO_AUTH_TOKEN"),
			TwilioFromNumber: s.get("TWILIO_FROM_NUMBER"),
		},
	}
	if !cfg.Enabled {
		cfg.Reason = "SMS_ENABLED=false"
		return cfg
	}
	cfg.Provider, cfg.Reason = messaging.SelectProvider(cfg.Settings)
	cfg.Configured = cfg.Provider != ""
	return cfg
}
