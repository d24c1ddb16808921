package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port          int
	DatabaseURL   string
	NatsURL       string
	NatsToken     string
	LogLevel      string
	RetellAPIKey  string
	RetellBaseURL string
	PublicBaseURL string
	SlackBotToken string
	SlackChannel  string
}

func Load() Config {
	return Config{
		Port:          envInt("CHECKCALL_PORT", 8650),
		DatabaseURL:   envStr("DATABASE_URL", ""),
		NatsURL:       envStr("NATS_URL", "nats://localhost:4222"),
		NatsToken:     envStr("NATS_TOKEN", ""),
		LogLevel:      envStr("LOG_LEVEL", "info"),
		RetellAPIKey:  envStr("RETELL_API_KEY", ""),
		RetellBaseURL: envStr("RETELL_BASE_URL", "https://api.retellai.com"),
		PublicBaseURL: envStr("PUBLIC_BASE_URL", "http://localhost:8650"),
		SlackBotToken: envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:  envStr("SLACK_ALERTS_CHANNEL", ""),
	}
}

// Validate checks the settings the service cannot run without. NATS token
// and Slack stay optional.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.RetellAPIKey == "" {
		return fmt.Errorf("RETELL_API_KEY is required")
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
