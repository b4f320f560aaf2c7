package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `json:"server" mapstructure:"server"`
	Twilio   TwilioConfig   `json:"twilio" mapstructure:"twilio"`
	OpenAI   OpenAIConfig   `json:"openai" mapstructure:"openai"`
	SendGrid SendGridConfig `json:"sendgrid" mapstructure:"sendgrid"`
	Call     CallConfig     `json:"call" mapstructure:"call"`
}

type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
	// PublicDomain is the externally reachable hostname the telephony
	// provider connects back to for the media stream.
	PublicDomain string `json:"public_domain" mapstructure:"public_domain"`
}

type TwilioConfig struct {
	AccountSID string `json:"account_sid" mapstructure:"account_sid"`
	AuthToken  string `json:"auth_token" mapstructure:"auth_token"`
	FromNumber string `json:"from_number" mapstructure:"from_number"`
}

type OpenAIConfig struct {
	APIKey        string `json:"api_key" mapstructure:"api_key"`
	RealtimeModel string `json:"realtime_model" mapstructure:"realtime_model"`
	SummaryModel  string `json:"summary_model" mapstructure:"summary_model"`
}

type SendGridConfig struct {
	APIKey     string `json:"api_key" mapstructure:"api_key"`
	FromEmail  string `json:"from_email" mapstructure:"from_email"`
	TemplateID string `json:"template_id" mapstructure:"template_id"`
}

type CallConfig struct {
	// MaxDuration bounds a session's total lifetime against wedged endpoints.
	MaxDuration time.Duration `json:"max_duration" mapstructure:"max_duration"`
	// ConnectTimeout bounds the AI channel handshake.
	ConnectTimeout time.Duration `json:"connect_timeout" mapstructure:"connect_timeout"`
	// DrainGrace bounds the outbound flush after the telephony side hangs up.
	DrainGrace time.Duration `json:"drain_grace" mapstructure:"drain_grace"`
	// RetryAttempts is the bounded retry count for transient channel sends.
	RetryAttempts int `json:"retry_attempts" mapstructure:"retry_attempts"`
}

func Load() (*Config, error) {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("json")

	// Add config paths
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	homeDir, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(homeDir, ".voxrelay"))
	}

	// Set defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("openai.realtime_model", "gpt-4o-realtime-preview-2024-12-17")
	viper.SetDefault("openai.summary_model", "gpt-4o-mini")
	viper.SetDefault("call.max_duration", "10m")
	viper.SetDefault("call.connect_timeout", "10s")
	viper.SetDefault("call.drain_grace", "2s")
	viper.SetDefault("call.retry_attempts", 3)

	// Read config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// No config file: defaults plus environment are enough.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Load environment variables
	loadEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadEnvOverrides(cfg *Config) {
	if v := os.Getenv("VOXRELAY_PUBLIC_DOMAIN"); v != "" {
		cfg.Server.PublicDomain = v
	}
	if v := os.Getenv("TWILIO_ACCOUNT_SID"); v != "" {
		cfg.Twilio.AccountSID = v
	}
	if v := os.Getenv("TWILIO_AUTH_TOKEN"); v != "" {
		cfg.Twilio.AuthToken = v
	}
	if v := os.Getenv("PHONE_NUMBER_FROM"); v != "" {
		cfg.Twilio.FromNumber = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("SENDGRID_API_KEY"); v != "" {
		cfg.SendGrid.APIKey = v
	}
	if v := os.Getenv("SENDGRID_FROM_EMAIL"); v != "" {
		cfg.SendGrid.FromEmail = v
	}
	if v := os.Getenv("SENDGRID_SUMMARY_TEMPLATE_ID"); v != "" {
		cfg.SendGrid.TemplateID = v
	}
}

// Validate checks the settings the service cannot run without. Email settings
// are intentionally not required: notification dispatch degrades to a logged
// warning when unconfigured.
func (c *Config) Validate() error {
	var missing []string
	if c.Server.PublicDomain == "" {
		missing = append(missing, "server.public_domain (VOXRELAY_PUBLIC_DOMAIN)")
	}
	if c.Twilio.AccountSID == "" {
		missing = append(missing, "twilio.account_sid (TWILIO_ACCOUNT_SID)")
	}
	if c.Twilio.AuthToken == "" {
		missing = append(missing, "twilio.auth_token (TWILIO_AUTH_TOKEN)")
	}
	if c.Twilio.FromNumber == "" {
		missing = append(missing, "twilio.from_number (PHONE_NUMBER_FROM)")
	}
	if c.OpenAI.APIKey == "" {
		missing = append(missing, "openai.api_key (OPENAI_API_KEY)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
