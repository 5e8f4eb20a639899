package messaging

import (
	"fmt"
	"strings"

	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

const (
	// SMSProviderAuto prefers the HTTP gateway, then Telnyx, then Twilio.
	SMSProviderAuto = "auto"
	// SMSProviderGateway forces the generic HTTP gateway.
	SMSProviderGateway = "gateway"
	// SMSProviderTelnyx forces the Telnyx sender when credentials exist.
	SMSProviderTelnyx = "telnyx"
	// SMSProviderTwilio forces the Twilio sender when credentials exist.
	SMSProviderTwilio = "twilio"
)

// ProviderSelectionConfig captures the credentials required to build outbound senders.
type ProviderSelectionConfig struct {
	Preference       string
	GatewayURL       string
	GatewayAPIKey    string
	SenderID         string
	TelnyxAPIKey     string
	TelnyxProfileID  string
	TelnyxFromNumber string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
}

func (cfg ProviderSelectionConfig) missing() map[string]string {
	missing := map[string]string{}
	if strings.TrimSpace(cfg.GatewayURL) == "" {
		missing[SMSProviderGateway] = "SMS_GATEWAY_URL missing"
	}

	var reasons []string
	if cfg.TelnyxAPIKey == "" {
		reasons = append(reasons, "TELNYX_API_KEY missing")
	}
	if cfg.TelnyxProfileID == "" {
		reasons = append(reasons, "TELNYX_MESSAGING_PROFILE_ID missing")
	}
	if len(reasons) > 0 {
		missing[SMSProviderTelnyx] = strings.Join(reasons, ", ")
	}

	reasons = nil
	if cfg.TwilioAccountSID == "" {
		reasons = append(reasons, "TWILIO_ACCOUNT_SID missing")
	}
	if cfg.TwilioAuthToken == "" {
		reasons = append(reasons, "TWILIO_AUTH_TOKEN missing")
	}
	if cfg.TwilioFromNumber == "" {
		reasons = append(reasons, "TWILIO_FROM_NUMBER missing")
	}
	if len(reasons) > 0 {
		missing[SMSProviderTwilio] = strings.Join(reasons, ", ")
	}
	return missing
}

// SelectProvider decides which provider BuildSMSSender would use without
// constructing anything. It returns the provider label, or a reason when none
// is usable.
func SelectProvider(cfg ProviderSelectionConfig) (string, string) {
	preference := strings.ToLower(strings.TrimSpace(cfg.Preference))
	if preference == "" {
		preference = SMSProviderAuto
	}
	missing := cfg.missing()
	usable := func(p string) bool { _, bad := missing[p]; return !bad }

	if preference != SMSProviderAuto {
		switch preference {
		case SMSProviderGateway, SMSProviderTelnyx, SMSProviderTwilio:
			if usable(preference) {
				return preference, ""
			}
			return "", missing[preference]
		default:
			return "", fmt.Sprintf("%s sender not supported", preference)
		}
	}

	switch {
	case usable(SMSProviderGateway):
		return SMSProviderGateway, ""
	case usable(SMSProviderTelnyx) && usable(SMSProviderTwilio):
		return SMSProviderTelnyx + "+" + SMSProviderTwilio, ""
	case usable(SMSProviderTelnyx):
		return SMSProviderTelnyx, ""
	case usable(SMSProviderTwilio):
		return SMSProviderTwilio, ""
	}

	var reasons []string
	for _, provider := range []string{SMSProviderGateway, SMSProviderTelnyx, SMSProviderTwilio} {
		if msg := missing[provider]; msg != "" {
			reasons = append(reasons, fmt.Sprintf("%s: %s", provider, msg))
		}
	}
	return "", strings.Join(reasons, "; ")
}

// BuildSMSSender instantiates an SMSSender based on the preferred provider.
// It returns the sender, the provider that was selected, and a reason when no provider could be initialized.
func BuildSMSSender(cfg ProviderSelectionConfig, logger *logging.Logger) (SMSSender, string, string) {
	if logger == nil {
		logger = logging.Default()
	}
	provider, reason := SelectProvider(cfg)
	switch provider {
	case "":
		return nil, "", reason
	case SMSProviderGateway:
		return NewGatewaySender(cfg.GatewayURL, cfg.GatewayAPIKey, cfg.SenderID, logger), provider, ""
	case SMSProviderTelnyx:
		return NewTelnyxSender(cfg.TelnyxAPIKey, cfg.TelnyxProfileID, cfg.TelnyxFromNumber, logger), provider, ""
	case SMSProviderTwilio:
		return NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger), provider, ""
	default:
		telnyx := NewTelnyxSender(cfg.TelnyxAPIKey, cfg.TelnyxProfileID, cfg.TelnyxFromNumber, logger)
		twilio := NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
		return NewFailoverSender(telnyx, SMSProviderTelnyx, twilio, SMSProviderTwilio, logger), provider, ""
	}
}
