package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the engine.
type AppConfig struct {
	DatabaseURL string
	LogLevel    string
	Environment string

	CronSpecSweep string

	NotifyLeadTime  time.Duration
	MaxSendAttempts int
	SendRetryBase   time.Duration
	SendTimeout     time.Duration
	SweepWorkers    int

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	SMSGatewayURL   string
	SMSGatewayToken string
	SMSFrom         string

	// Optional; the ops alerter stays disabled unless both are set.
	TelegramToken string
	OpsChatID     int64
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getEnv("ENVIRONMENT", "development"))
	cfg.CronSpecSweep = getEnv("CRON_SPEC_SWEEP", "*/15 * * * *")

	leadHours, err := getEnvInt("NOTIFY_LEAD_TIME_HOURS", 72)
	if err != nil {
		return nil, err
	}
	cfg.NotifyLeadTime = time.Duration(leadHours) * time.Hour

	cfg.MaxSendAttempts, err = getEnvInt("MAX_SEND_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	if cfg.MaxSendAttempts < 1 {
		return nil, fmt.Errorf("MAX_SEND_ATTEMPTS must be at least 1")
	}

	retryBaseMs, err := getEnvInt("SEND_RETRY_BASE_MS", 500)
	if err != nil {
		return nil, err
	}
	cfg.SendRetryBase = time.Duration(retryBaseMs) * time.Millisecond

	timeoutSec, err := getEnvInt("SEND_TIMEOUT_SECONDS", 10)
	if err != nil {
		return nil, err
	}
	cfg.SendTimeout = time.Duration(timeoutSec) * time.Second

	cfg.SweepWorkers, err = getEnvInt("SWEEP_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	if cfg.SweepWorkers < 1 {
		return nil, fmt.Errorf("SWEEP_WORKERS must be at least 1")
	}

	cfg.SMTPHost = getEnv("SMTP_HOST", "localhost")
	cfg.SMTPPort, err = getEnvInt("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}
	cfg.SMTPUsername = os.Getenv("SMTP_USERNAME")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.SMTPFrom = getEnv("SMTP_FROM", "maintenance@localhost")

	cfg.SMSGatewayURL = os.Getenv("SMS_GATEWAY_URL")
	cfg.SMSGatewayToken = os.Getenv("SMS_GATEWAY_TOKEN")
	cfg.SMSFrom = os.Getenv("SMS_FROM")

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	opsChatStr := os.Getenv("OPS_CHAT_ID")
	if opsChatStr != "" {
		cfg.OpsChatID, err = strconv.ParseInt(opsChatStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid OPS_CHAT_ID: %w", err)
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
