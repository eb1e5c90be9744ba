package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingConfig is returned when a required setting is absent. Runs that
// hit it abort before touching the register or sending anything.
var ErrMissingConfig = errors.New("missing required configuration")

// State backends for the run guard and threshold watermarks.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// DateColumn binds a document type to the header of the column holding its
// expiry date.
type DateColumn struct {
	DocumentType string
	Header       string
}

// Config holds application configuration loaded from environment.
type Config struct {
	Sheet struct {
		Path             string
		Name             string
		IDColumn         string
		LabelColumn      string
		PlantColumn      string
		LocationColumn   string
		InspectionColumn string
		StatusColumn     string
		DaysLeftColumn   string
		DateColumns      []DateColumn
		LogName          string
		LogMaxRows       int
	}
	DB struct {
		DSN     string
		Migrate bool
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	State struct {
		Backend string
	}
	Email struct {
		SMTPServer string
		SMTPPort   int
		Username   string
		Password   string
		FromName   string
	}
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	API struct {
		Port     string
		BasePath string
	}
	Logging struct {
		Dir   string
		Level string
	}
	Schedule struct {
		Cron     string
		Location *time.Location
	}
	SettingsFile string
}

// Load reads environment variables, applies defaults, and returns a Config.
// envFile may be empty; a missing file is not an error.
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	return FromLookup(os.Getenv)
}

// FromLookup builds a Config from an arbitrary key lookup.
func FromLookup(getenv func(string) string) (Config, error) {
	var cfg Config
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	// Register layout
	cfg.Sheet.Path = get("SHEET_PATH", "")
	cfg.Sheet.Name = get("SHEET_NAME", "")
	cfg.Sheet.IDColumn = get("SHEET_ID_COLUMN", "Registration No")
	cfg.Sheet.LabelColumn = get("SHEET_LABEL_COLUMN", "Model")
	cfg.Sheet.PlantColumn = get("SHEET_PLANT_COLUMN", "Plant")
	cfg.Sheet.LocationColumn = get("SHEET_LOCATION_COLUMN", "Location")
	cfg.Sheet.InspectionColumn = get("SHEET_INSPECTION_COLUMN", "Inspection Date")
	cfg.Sheet.StatusColumn = get("SHEET_STATUS_COLUMN", "Status")
	cfg.Sheet.DaysLeftColumn = get("SHEET_DAYS_LEFT_COLUMN", "Days Left")
	cfg.Sheet.LogName = get("SHEET_LOG_NAME", "Notification Log")
	cfg.Sheet.LogMaxRows = atoi(get("SHEET_LOG_MAX_ROWS", ""), 5000)
	cols, err := ParseDateColumns(get("SHEET_DATE_COLUMNS", "Insurance=Insurance Expiry,Fitness=Fitness Expiry"))
	if err != nil {
		return Config{}, err
	}
	cfg.Sheet.DateColumns = cols

	// Persistence
	cfg.DB.DSN = get("DB_DSN", "")
	cfg.DB.Migrate = parseBool(get("DB_MIGRATE", ""), false)
	cfg.Redis.Addr = get("REDIS_ADDR", "")
	cfg.Redis.Password = get("REDIS_PASSWORD", "")
	cfg.Redis.DB = atoi(get("REDIS_DB", ""), 0)
	cfg.State.Backend = strings.ToLower(get("STATE_BACKEND", BackendPostgres))

	// Email settings
	cfg.Email.SMTPServer = get("EMAIL_SMTP_SERVER", "")
	cfg.Email.SMTPPort = atoi(get("EMAIL_SMTP_PORT", ""), 587)
	cfg.Email.Username = get("EMAIL_USERNAME", "")
	cfg.Email.Password = get("EMAIL_PASSWORD", "")
	cfg.Email.FromName = get("EMAIL_FROM_NAME", "Fleet Document Tracker")

	// Kafka trigger topic
	cfg.Kafka.Broker = get("KAFKA_BROKER", "")
	cfg.Kafka.Topic = get("KAFKA_TOPIC", "expiry-run-triggers")
	cfg.Kafka.GroupID = get("KAFKA_GROUP_ID", "expiry-notifier")

	// API settings
	cfg.API.Port = get("API_PORT", ":8080")
	if !strings.Contains(cfg.API.Port, ":") {
		cfg.API.Port = ":" + cfg.API.Port
	}
	cfg.API.BasePath = get("API_BASE_PATH", "/api/v0")

	cfg.Logging.Dir = get("LOG_DIR", "logs")
	cfg.Logging.Level = get("LOG_LEVEL", "info")

	cfg.Schedule.Cron = get("SCHEDULE_CRON", "0 7 * * *")
	loc, err := time.LoadLocation(get("TIMEZONE", "Local"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Schedule.Location = loc

	cfg.SettingsFile = get("SETTINGS_FILE", "settings.env")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the required settings are present.
func (c Config) Validate() error {
	missing := []string{}
	if c.Sheet.Path == "" {
		missing = append(missing, "SHEET_PATH")
	}
	if c.Sheet.IDColumn == "" {
		missing = append(missing, "SHEET_ID_COLUMN")
	}
	if len(c.Sheet.DateColumns) == 0 {
		missing = append(missing, "SHEET_DATE_COLUMNS")
	}
	// email is the one channel every run depends on
	if c.Email.SMTPServer == "" {
		missing = append(missing, "EMAIL_SMTP_SERVER")
	}
	if c.Email.Username == "" {
		missing = append(missing, "EMAIL_USERNAME")
	}
	switch c.State.Backend {
	case BackendPostgres:
		if c.DB.DSN == "" {
			missing = append(missing, "DB_DSN")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			missing = append(missing, "REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown STATE_BACKEND %q", c.State.Backend)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingConfig, missing)
	}
	return nil
}

// ParseDateColumns parses "Type=Header,Type=Header". An entry without '='
// uses the header as the document type.
func ParseDateColumns(s string) ([]DateColumn, error) {
	var out []DateColumn
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		docType, header, found := strings.Cut(part, "=")
		if !found {
			header = docType
		}
		docType, header = strings.TrimSpace(docType), strings.TrimSpace(header)
		if docType == "" || header == "" {
			return nil, fmt.Errorf("invalid date column %q", part)
		}
		out = append(out, DateColumn{DocumentType: docType, Header: header})
	}
	return out, nil
}

func atoi(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string, def bool) bool {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return def
}
