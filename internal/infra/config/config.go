package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application. Transport
// credentials are plain fields here and are injected into the senders at
// construction time; nothing mutates them after startup.
type AppConfig struct {
	DatabaseURL string

	FromEmail   string
	SendGridKey string

	TwilioAccountSID    string
	TwilioAuthToken     string
	WhatsAppFrom        string
	WhatsAppTemplateSID string

	APIToken string
	HTTPAddr string

	LogLevel      string
	Environment   string
	CronSpecDaily string
	SendTimeout   time.Duration
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.FromEmail = os.Getenv("FROM_EMAIL")
	if cfg.FromEmail == "" {
		return nil, fmt.Errorf("FROM_EMAIL is not set")
	}

	cfg.SendGridKey = os.Getenv("SENDGRID_KEY")
	if cfg.SendGridKey == "" {
		return nil, fmt.Errorf("SENDGRID_KEY is not set")
	}

	cfg.TwilioAccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	if cfg.TwilioAccountSID == "" {
		return nil, fmt.Errorf("TWILIO_ACCOUNT_SID is not set")
	}

	cfg.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	if cfg.TwilioAuthToken == "" {
		return nil, fmt.Errorf("TWILIO_AUTH_TOKEN is not set")
	}

	cfg.WhatsAppFrom = os.Getenv("WHATSAPP_FROM")
	if cfg.WhatsAppFrom == "" {
		return nil, fmt.Errorf("WHATSAPP_FROM is not set")
	}

	cfg.WhatsAppTemplateSID = os.Getenv("WHATSAPP_TEMPLATE_SID")
	if cfg.WhatsAppTemplateSID == "" {
		return nil, fmt.Errorf("WHATSAPP_TEMPLATE_SID is not set")
	}

	cfg.APIToken = os.Getenv("API_TOKEN")
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("API_TOKEN is not set")
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.CronSpecDaily = os.Getenv("CRON_SPEC_DAILY")
	if cfg.CronSpecDaily == "" {
		cfg.CronSpecDaily = "0 6 * * *" // Default: 06:00 daily
	}

	sendTimeoutStr := os.Getenv("SEND_TIMEOUT")
	if sendTimeoutStr == "" {
		cfg.SendTimeout = 10 * time.Second
	} else {
		d, err := time.ParseDuration(sendTimeoutStr)
		if err != nil {
			return nil, fmt.Errorf("invalid SEND_TIMEOUT: %w", err)
		}
		cfg.SendTimeout = d
	}

	return cfg, nil
}
