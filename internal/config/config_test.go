package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

// withMail adds the SMTP keys every valid config needs.
func withMail(m map[string]string) map[string]string {
	m["EMAIL_SMTP_SERVER"] = "smtp.example.com"
	m["EMAIL_USERNAME"] = "fleet@example.com"
	return m
}

func TestFromLookup_Defaults(t *testing.T) {
	cfg, err := FromLookup(lookup(withMail(map[string]string{
		"SHEET_PATH": "fleet.xlsx",
		"DB_DSN":     "postgres://localhost/fleet",
		"API_PORT":   "9191",
	})))
	require.NoError(t, err)

	assert.Equal(t, "Registration No", cfg.Sheet.IDColumn)
	assert.Equal(t, []DateColumn{
		{DocumentType: "Insurance", Header: "Insurance Expiry"},
		{DocumentType: "Fitness", Header: "Fitness Expiry"},
	}, cfg.Sheet.DateColumns)
	assert.Equal(t, BackendPostgres, cfg.State.Backend)
	assert.Equal(t, ":9191", cfg.API.Port)
	assert.Equal(t, "/api/v0", cfg.API.BasePath)
	assert.Equal(t, 587, cfg.Email.SMTPPort)
	assert.Equal(t, "0 7 * * *", cfg.Schedule.Cron)
	assert.Equal(t, 5000, cfg.Sheet.LogMaxRows)
}

func TestFromLookup_Missing(t *testing.T) {
	_, err := FromLookup(lookup(map[string]string{}))
	require.ErrorIs(t, err, ErrMissingConfig)
	assert.Contains(t, err.Error(), "SHEET_PATH")
	assert.Contains(t, err.Error(), "DB_DSN")
	assert.Contains(t, err.Error(), "EMAIL_SMTP_SERVER")
	assert.Contains(t, err.Error(), "EMAIL_USERNAME")
}

func TestFromLookup_MissingMailRelay(t *testing.T) {
	_, err := FromLookup(lookup(map[string]string{
		"SHEET_PATH":      "fleet.xlsx",
		"DB_DSN":          "postgres://localhost/fleet",
		"EMAIL_USERNAME":  "fleet@example.com",
		"EMAIL_PASSWORD":  "secret",
		"EMAIL_SMTP_PORT": "465",
	}))
	require.ErrorIs(t, err, ErrMissingConfig)
	assert.Contains(t, err.Error(), "EMAIL_SMTP_SERVER")
	assert.NotContains(t, err.Error(), "EMAIL_USERNAME")
}

func TestFromLookup_RedisBackend(t *testing.T) {
	_, err := FromLookup(lookup(map[string]string{
		"SHEET_PATH":    "fleet.xlsx",
		"STATE_BACKEND": "redis",
	}))
	require.ErrorIs(t, err, ErrMissingConfig)
	assert.Contains(t, err.Error(), "REDIS_ADDR")

	cfg, err := FromLookup(lookup(withMail(map[string]string{
		"SHEET_PATH":    "fleet.xlsx",
		"STATE_BACKEND": "Redis",
		"REDIS_ADDR":    "localhost:6379",
	})))
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.State.Backend)
}

func TestFromLookup_UnknownBackend(t *testing.T) {
	_, err := FromLookup(lookup(map[string]string{
		"SHEET_PATH":    "fleet.xlsx",
		"STATE_BACKEND": "etcd",
	}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingConfig)
}

func TestParseDateColumns(t *testing.T) {
	cols, err := ParseDateColumns(" Insurance = Ins Expiry , PUC ,")
	require.NoError(t, err)
	assert.Equal(t, []DateColumn{
		{DocumentType: "Insurance", Header: "Ins Expiry"},
		{DocumentType: "PUC", Header: "PUC"},
	}, cols)

	_, err = ParseDateColumns("=Header")
	assert.Error(t, err)
}

func TestParseSettings(t *testing.T) {
	s, err := ParseSettings(map[string]string{
		"NOTIFY_EMAIL":      "fleet@example.com, ops@example.com",
		"ALERT_14_DAYS":     "false",
		"GRACE_PERIOD_DAYS": "15",
		"THRESHOLD_POLICY":  "EXACT",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"fleet@example.com", "ops@example.com"}, s.Recipients)
	assert.Equal(t, []int{30, 7, 1}, s.EnabledThresholds())
	assert.True(t, s.DailySummary)
	assert.Equal(t, 15, s.GraceDays)
	assert.Equal(t, 30, s.RetentionDays)
	assert.Equal(t, PolicyExact, s.ThresholdPolicy)
	assert.Equal(t, ProviderNone, s.Messaging.Provider)
}

func TestParseSettings_Errors(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]string
		missing bool
	}{
		{name: "no recipient", values: map[string]string{}, missing: true},
		{
			name:    "callmebot without key",
			values:  map[string]string{"NOTIFY_EMAIL": "a@b.c", "MESSAGING_PROVIDER": "callmebot", "MESSAGING_PHONE": "+100"},
			missing: true,
		},
		{
			name:    "twilio without credentials",
			values:  map[string]string{"NOTIFY_EMAIL": "a@b.c", "MESSAGING_PROVIDER": "twilio", "MESSAGING_PHONE": "+100"},
			missing: true,
		},
		{
			name:    "telegram without chat",
			values:  map[string]string{"NOTIFY_EMAIL": "a@b.c", "MESSAGING_PROVIDER": "telegram", "TELEGRAM_BOT_TOKEN": "t"},
			missing: true,
		},
		{
			name:   "unknown provider",
			values: map[string]string{"NOTIFY_EMAIL": "a@b.c", "MESSAGING_PROVIDER": "pigeon"},
		},
		{
			name:   "unknown policy",
			values: map[string]string{"NOTIFY_EMAIL": "a@b.c", "THRESHOLD_POLICY": "fuzzy"},
		},
		{
			name:   "negative grace",
			values: map[string]string{"NOTIFY_EMAIL": "a@b.c", "GRACE_PERIOD_DAYS": "-1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSettings(tt.values)
			require.Error(t, err)
			if tt.missing {
				assert.ErrorIs(t, err, ErrMissingConfig)
			} else {
				assert.NotErrorIs(t, err, ErrMissingConfig)
			}
		})
	}
}

func TestLoadSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.env")
	require.NoError(t, os.WriteFile(path, []byte("NOTIFY_EMAIL=fleet@example.com\nDAILY_SUMMARY_ENABLED=false\n"), 0o644))

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.False(t, s.DailySummary)

	_, err = LoadSettings(filepath.Join(dir, "absent.env"))
	assert.ErrorIs(t, err, ErrMissingConfig)
}
