package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// Threshold policies for the per-document alert engine.
const (
	PolicyWindow = "window"
	PolicyExact  = "exact"
)

// Messaging providers for the optional chat channel.
const (
	ProviderNone      = "none"
	ProviderCallMeBot = "callmebot"
	ProviderTwilio    = "twilio"
	ProviderTelegram  = "telegram"
)

// Settings is the flat key/value store an operator edits between runs. It is
// re-read at the start of every run.
type Settings struct {
	Recipients      []string
	Thresholds      map[int]bool
	DailySummary    bool
	GraceDays       int
	RetentionDays   int
	ThresholdPolicy string
	Messaging       Messaging
}

// Messaging selects and configures the chat channel.
type Messaging struct {
	Provider string
	Phone    string
	APIKey   string
	APIURL   string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	TelegramBotToken string
	TelegramChatID   string
}

// thresholdKeys maps each supported threshold to its toggle key.
var thresholdKeys = map[int]string{
	30: "ALERT_30_DAYS",
	14: "ALERT_14_DAYS",
	7:  "ALERT_7_DAYS",
	1:  "ALERT_1_DAY",
}

// LoadSettings reads the settings file at path. A missing file yields the
// same error as a missing recipient.
func LoadSettings(path string) (Settings, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Settings{}, fmt.Errorf("%w: settings file %s not found", ErrMissingConfig, path)
		}
		return Settings{}, fmt.Errorf("failed to read settings %s: %w", path, err)
	}
	return ParseSettings(values)
}

// ParseSettings validates a raw key/value map.
func ParseSettings(values map[string]string) (Settings, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(values[key]); v != "" {
			return v
		}
		return def
	}

	s := Settings{
		Thresholds:      make(map[int]bool, len(thresholdKeys)),
		DailySummary:    parseBool(get("DAILY_SUMMARY_ENABLED", ""), true),
		GraceDays:       atoi(get("GRACE_PERIOD_DAYS", ""), 30),
		RetentionDays:   atoi(get("RETENTION_DAYS", ""), 30),
		ThresholdPolicy: strings.ToLower(get("THRESHOLD_POLICY", PolicyWindow)),
	}
	for _, r := range strings.Split(get("NOTIFY_EMAIL", ""), ",") {
		if r = strings.TrimSpace(r); r != "" {
			s.Recipients = append(s.Recipients, r)
		}
	}
	for days, key := range thresholdKeys {
		s.Thresholds[days] = parseBool(get(key, ""), true)
	}

	s.Messaging = Messaging{
		Provider:         strings.ToLower(get("MESSAGING_PROVIDER", ProviderNone)),
		Phone:            get("MESSAGING_PHONE", ""),
		APIKey:           get("MESSAGING_API_KEY", ""),
		APIURL:           get("MESSAGING_API_URL", "https://api.callmebot.com/whatsapp.php"),
		TwilioAccountSID: get("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  get("TWILIO_AUTH_TOKEN", ""),
		TwilioFrom:       get("TWILIO_FROM", ""),
		TelegramBotToken: get("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   get("TELEGRAM_CHAT_ID", ""),
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks recipients, limits and the messaging credentials.
func (s Settings) Validate() error {
	missing := []string{}
	if len(s.Recipients) == 0 {
		missing = append(missing, "NOTIFY_EMAIL")
	}
	switch s.Messaging.Provider {
	case ProviderNone:
	case ProviderCallMeBot:
		if s.Messaging.Phone == "" {
			missing = append(missing, "MESSAGING_PHONE")
		}
		if s.Messaging.APIKey == "" {
			missing = append(missing, "MESSAGING_API_KEY")
		}
	case ProviderTwilio:
		if s.Messaging.Phone == "" {
			missing = append(missing, "MESSAGING_PHONE")
		}
		if s.Messaging.TwilioAccountSID == "" {
			missing = append(missing, "TWILIO_ACCOUNT_SID")
		}
		if s.Messaging.TwilioAuthToken == "" {
			missing = append(missing, "TWILIO_AUTH_TOKEN")
		}
		if s.Messaging.TwilioFrom == "" {
			missing = append(missing, "TWILIO_FROM")
		}
	case ProviderTelegram:
		if s.Messaging.TelegramBotToken == "" {
			missing = append(missing, "TELEGRAM_BOT_TOKEN")
		}
		if s.Messaging.TelegramChatID == "" {
			missing = append(missing, "TELEGRAM_CHAT_ID")
		}
	default:
		return fmt.Errorf("unknown MESSAGING_PROVIDER %q", s.Messaging.Provider)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingConfig, missing)
	}

	if s.GraceDays < 0 || s.RetentionDays < 0 {
		return fmt.Errorf("GRACE_PERIOD_DAYS and RETENTION_DAYS must not be negative")
	}
	if s.ThresholdPolicy != PolicyWindow && s.ThresholdPolicy != PolicyExact {
		return fmt.Errorf("unknown THRESHOLD_POLICY %q", s.ThresholdPolicy)
	}
	return nil
}

// EnabledThresholds returns the enabled thresholds, largest first.
func (s Settings) EnabledThresholds() []int {
	var out []int
	for days, on := range s.Thresholds {
		if on {
			out = append(out, days)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}
