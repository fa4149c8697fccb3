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

// Config represents the full application configuration surface.
type Config struct {
	Server        ServerConfig
	Log           LogConfig
	MongoDB       MongoDBConfig
	Sheets        SheetsConfig
	WhatsApp      WhatsAppConfig
	Kafka         KafkaConfig
	Forecast      ForecastConfig
	Replenishment ReplenishmentConfig
	Alerts        AlertsConfig
	Scheduler     SchedulerConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// LogConfig selects the minimum log level.
type LogConfig struct {
	Level string
}

// MongoDBConfig holds settings for MongoDB. An empty URI selects the
// in-memory store.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// Enabled reports whether a MongoDB backend is configured.
func (c MongoDBConfig) Enabled() bool { return c.URI != "" }

// SheetsConfig contains configuration required to interact with Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	HistoryRange    string
	ReportRange     string
}

// Enabled reports whether the Sheets dataset is configured.
func (c SheetsConfig) Enabled() bool { return c.CredentialsPath != "" && c.SpreadsheetID != "" }

// WhatsAppConfig contains credentials and options for the Meta WhatsApp Cloud API.
type WhatsAppConfig struct {
	AccessToken    string
	PhoneNumberID  string
	BaseURL        string
	APIVersion     string
	AlertRecipient string
}

// Enabled reports whether alerts should be pushed over WhatsApp.
func (c WhatsAppConfig) Enabled() bool {
	return c.AccessToken != "" && c.PhoneNumberID != "" && c.AlertRecipient != ""
}

// KafkaConfig configures the signal publisher.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// Enabled reports whether signals should be published to Kafka.
func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 && c.Topic != "" }

// ForecastConfig tunes the demand forecasting engine.
type ForecastConfig struct {
	MinSamples         int
	SaturationSamples  int
	FallbackConfidence float64
	BaseDemand         float64
	RetrainEvery       int
}

// ReplenishmentConfig tunes purchase order drafting.
type ReplenishmentConfig struct {
	RiskHorizon            time.Duration
	DefaultRestockQuantity int
	PlanOnSale             bool
}

// AlertsConfig holds thresholds for alert listings.
type AlertsConfig struct {
	ExpiryWindowDays int
	SignalBuffer     int
}

// SchedulerConfig holds cron expressions for the periodic jobs.
type SchedulerConfig struct {
	PlannerSchedule string
	ExpirySchedule  string
	RetrainSchedule string
	ReportSchedule  string
	Timezone        string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are acceptable when configuration comes from the
		// environment directly.
		_ = godotenv.Load()
	}

	var errs []error
	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "freshstock"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
			HistoryRange:    getenvWithDefault("SHEETS_HISTORY_RANGE", "History!A:C"),
			ReportRange:     getenvWithDefault("SHEETS_REPORT_RANGE", "DailyReports!A:I"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:    os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID:  os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			BaseURL:        getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:     getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
			AlertRecipient: os.Getenv("WHATSAPP_ALERT_RECIPIENT"),
		},
		Kafka: KafkaConfig{
			Brokers:  splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:    getenvWithDefault("KAFKA_TOPIC", "freshstock.signals"),
			ClientID: getenvWithDefault("KAFKA_CLIENT_ID", "freshstock"),
		},
		Forecast: ForecastConfig{
			MinSamples:         getenvInt("FORECAST_MIN_SAMPLES", 6, &errs),
			SaturationSamples:  getenvInt("FORECAST_SATURATION_SAMPLES", 50, &errs),
			FallbackConfidence: getenvFloat("FORECAST_FALLBACK_CONFIDENCE", 0.5, &errs),
			BaseDemand:         getenvFloat("FORECAST_BASE_DEMAND", 50, &errs),
			RetrainEvery:       getenvInt("FORECAST_RETRAIN_EVERY", 25, &errs),
		},
		Replenishment: ReplenishmentConfig{
			RiskHorizon:            getenvDuration("REPLENISHMENT_RISK_HORIZON", 48*time.Hour, &errs),
			DefaultRestockQuantity: getenvInt("REPLENISHMENT_DEFAULT_QUANTITY", 20, &errs),
			PlanOnSale:             getenvBool("REPLENISHMENT_PLAN_ON_SALE", true, &errs),
		},
		Alerts: AlertsConfig{
			ExpiryWindowDays: getenvInt("ALERTS_EXPIRY_WINDOW_DAYS", 15, &errs),
			SignalBuffer:     getenvInt("ALERTS_SIGNAL_BUFFER", 256, &errs),
		},
		Scheduler: SchedulerConfig{
			PlannerSchedule: getenvWithDefault("PLANNER_CRON_SCHEDULE", "0 * * * *"),
			ExpirySchedule:  getenvWithDefault("EXPIRY_CRON_SCHEDULE", "0 7 * * *"),
			RetrainSchedule: getenvWithDefault("RETRAIN_CRON_SCHEDULE", "30 2 * * *"),
			ReportSchedule:  getenvWithDefault("REPORT_CRON_SCHEDULE", "0 20 * * *"),
			Timezone:        getenvWithDefault("TIMEZONE", "UTC"),
		},
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated and
// numeric settings are in range.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.MongoDB.Enabled() && c.MongoDB.DBName == "" {
		return errors.New("MONGODB_DB_NAME must be provided when MONGODB_URI is set")
	}

	if c.Sheets.CredentialsPath != "" && c.Sheets.SpreadsheetID == "" {
		return errors.New("GOOGLE_SHEET_DATABASE_ID must be provided with GOOGLE_SHEETS_CREDENTIALS_PATH")
	}

	if c.WhatsApp.Enabled() {
		if c.WhatsApp.BaseURL == "" {
			return errors.New("WHATSAPP_BASE_URL must not be empty")
		}
		if c.WhatsApp.APIVersion == "" {
			return errors.New("WHATSAPP_API_VERSION must not be empty")
		}
	}

	switch {
	case c.Forecast.MinSamples < 1:
		return errors.New("FORECAST_MIN_SAMPLES must be at least 1")
	case c.Forecast.SaturationSamples < 1:
		return errors.New("FORECAST_SATURATION_SAMPLES must be at least 1")
	case c.Forecast.FallbackConfidence <= 0 || c.Forecast.FallbackConfidence >= 1:
		return errors.New("FORECAST_FALLBACK_CONFIDENCE must be in (0, 1)")
	case c.Forecast.BaseDemand < 0:
		return errors.New("FORECAST_BASE_DEMAND must not be negative")
	case c.Forecast.RetrainEvery < 0:
		return errors.New("FORECAST_RETRAIN_EVERY must not be negative")
	}

	if c.Replenishment.RiskHorizon <= 0 {
		return errors.New("REPLENISHMENT_RISK_HORIZON must be positive")
	}
	if c.Replenishment.DefaultRestockQuantity < 1 {
		return errors.New("REPLENISHMENT_DEFAULT_QUANTITY must be at least 1")
	}

	if c.Alerts.ExpiryWindowDays < 0 {
		return errors.New("ALERTS_EXPIRY_WINDOW_DAYS must not be negative")
	}
	if c.Alerts.SignalBuffer < 1 {
		return errors.New("ALERTS_SIGNAL_BUFFER must be at least 1")
	}

	if c.Scheduler.Timezone == "" {
		return errors.New("TIMEZONE must be provided")
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", c.Scheduler.Timezone, err)
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64, errs *[]error) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return f
}

func getenvBool(key string, fallback bool, errs *[]error) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
