package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			PublicDomain: "agent.example.com",
		},
		Twilio: TwilioConfig{
			AccountSID: "AC123",
			AuthToken:  "token",
			FromNumber: "+14155550100",
		},
		OpenAI: OpenAIConfig{
			APIKey: "sk-test",
		},
		Call: CallConfig{
			MaxDuration:    10 * time.Minute,
			ConnectTimeout: 10 * time.Second,
			DrainGrace:     2 * time.Second,
			RetryAttempts:  3,
		},
	}
}

// Load must produce a runnable config from environment variables alone: the
// viper defaults have to land even when no config file exists.
func TestLoad_EnvOnlyDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("VOXRELAY_PUBLIC_DOMAIN", "agent.example.com")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "token")
	t.Setenv("PHONE_NUMBER_FROM", "+14155550100")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "agent.example.com", cfg.Server.PublicDomain)

	assert.Equal(t, "gpt-4o-realtime-preview-2024-12-17", cfg.OpenAI.RealtimeModel)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.SummaryModel)

	assert.Equal(t, 10*time.Minute, cfg.Call.MaxDuration)
	assert.Equal(t, 10*time.Second, cfg.Call.ConnectTimeout)
	assert.Equal(t, 2*time.Second, cfg.Call.DrainGrace)
	assert.Equal(t, 3, cfg.Call.RetryAttempts)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing public domain", func(c *Config) { c.Server.PublicDomain = "" }, "server.public_domain"},
		{"missing account sid", func(c *Config) { c.Twilio.AccountSID = "" }, "twilio.account_sid"},
		{"missing auth token", func(c *Config) { c.Twilio.AuthToken = "" }, "twilio.auth_token"},
		{"missing from number", func(c *Config) { c.Twilio.FromNumber = "" }, "twilio.from_number"},
		{"missing openai key", func(c *Config) { c.OpenAI.APIKey = "" }, "openai.api_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_SendGridOptional(t *testing.T) {
	cfg := validConfig()
	cfg.SendGrid = SendGridConfig{}
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("VOXRELAY_PUBLIC_DOMAIN", "calls.example.net")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC999")
	t.Setenv("TWILIO_AUTH_TOKEN", "secret")
	t.Setenv("PHONE_NUMBER_FROM", "+14155550123")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("SENDGRID_API_KEY", "SG.env")
	t.Setenv("SENDGRID_FROM_EMAIL", "agent@example.net")
	t.Setenv("SENDGRID_SUMMARY_TEMPLATE_ID", "d-template")

	var cfg Config
	loadEnvOverrides(&cfg)

	assert.Equal(t, "calls.example.net", cfg.Server.PublicDomain)
	assert.Equal(t, "AC999", cfg.Twilio.AccountSID)
	assert.Equal(t, "secret", cfg.Twilio.AuthToken)
	assert.Equal(t, "+14155550123", cfg.Twilio.FromNumber)
	assert.Equal(t, "sk-env", cfg.OpenAI.APIKey)
	assert.Equal(t, "SG.env", cfg.SendGrid.APIKey)
	assert.Equal(t, "agent@example.net", cfg.SendGrid.FromEmail)
	assert.Equal(t, "d-template", cfg.SendGrid.TemplateID)
}

func TestLoadEnvOverrides_EmptyValuesKeepExisting(t *testing.T) {
	t.Setenv("VOXRELAY_PUBLIC_DOMAIN", "")
	t.Setenv("TWILIO_ACCOUNT_SID", "")

	cfg := validConfig()
	loadEnvOverrides(cfg)
	assert.Equal(t, "agent.example.com", cfg.Server.PublicDomain)
	assert.Equal(t, "AC123", cfg.Twilio.AccountSID)
}
