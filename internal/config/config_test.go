package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.AppPort)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, StoreDynamo, cfg.AccountStore)
	assert.Equal(t, "users", cfg.Dynamo.UsersTable)
	assert.True(t, cfg.Dynamo.Bootstrap)
	assert.Equal(t, MailSendGrid, cfg.Mail.Provider)
	assert.Equal(t, "Smart Finder", cfg.Mail.FromName)
	assert.Equal(t, "https://api.sendgrid.com", cfg.Mail.SendGridHost)
	assert.Equal(t, 10*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, time.Hour, cfg.Reset.TokenTTL)
	assert.Equal(t, "smartfinder://reset", cfg.ResetRedirect)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "templates/", cfg.Templates.Prefix)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected func(*Config)
	}{
		{
			name: "store override",
			envVars: map[string]string{
				"ACCOUNT_STORE":    "postgres",
				"DATABASE_DSN":     "postgres://u:p@db:5432/x",
				"DYNAMO_BOOTSTRAP": "false",
			},
			expected: func(cfg *Config) {
				assert.Equal(t, StorePostgres, cfg.AccountStore)
				assert.Equal(t, "postgres://u:p@db:5432/x", cfg.Postgres.DSN)
				assert.False(t, cfg.Dynamo.Bootstrap)
			},
		},
		{
			name: "otp and reset override",
			envVars: map[string]string{
				"OTP_TTL":                 "5m",
				"RESET_TOKEN_SECRET":      "s3cret",
				"APP_REDIRECT_RESET":      "https://app.example.com/reset",
				"RESET_ALLOWED_REDIRECTS": "https://app.example.com/,smartfinder://",
			},
			expected: func(cfg *Config) {
				assert.Equal(t, 5*time.Minute, cfg.OTP.TTL)
				assert.Equal(t, "s3cret", cfg.Reset.TokenSecret)
				assert.Equal(t, "https://app.example.com/reset", cfg.ResetRedirect)
				assert.Equal(t, []string{"https://app.example.com/", "smartfinder://"}, cfg.Reset.AllowedRedirects)
			},
		},
		{
			name: "cors origins",
			envVars: map[string]string{
				"ALLOWED_ORIGINS": "https://a.example.com,https://b.example.com",
			},
			expected: func(cfg *Config) {
				assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			require.NoError(t, err)
			tt.expected(cfg)
		})
	}
}

func TestLoad_RejectsUnknownBackends(t *testing.T) {
	t.Run("store", func(t *testing.T) {
		t.Setenv("ACCOUNT_STORE", "mongo")
		_, err := Load()
		assert.ErrorContains(t, err, "ACCOUNT_STORE")
	})
	t.Run("mail", func(t *testing.T) {
		t.Setenv("MAIL_PROVIDER", "pigeon")
		_, err := Load()
		assert.ErrorContains(t, err, "MAIL_PROVIDER")
	})
	t.Run("ttl", func(t *testing.T) {
		t.Setenv("OTP_TTL", "0s")
		_, err := Load()
		assert.ErrorContains(t, err, "OTP_TTL")
	})
}

func TestMailConfigured(t *testing.T) {
	cfg := &Config{Mail: Mail{Provider: MailSendGrid, SendGridAPIKey: "key"}}
	assert.False(t, cfg.MailConfigured(false), "from address is required")

	cfg.Mail.FromEmail = "noreply@example.com"
	assert.True(t, cfg.MailConfigured(false))
	assert.True(t, cfg.MailConfigured(true))
	assert.Equal(t, "key", cfg.SendGridKey(true))

	cfg.Mail.SendGridResetAPIKey = "reset-key"
	assert.Equal(t, "reset-key", cfg.SendGridKey(true))
	assert.Equal(t, "key", cfg.SendGridKey(false))

	cfg.Mail.Provider = MailMailgun
	assert.False(t, cfg.MailConfigured(false))
	cfg.Mail.MailgunDomain = "mg.example.com"
	cfg.Mail.MailgunAPIKey = "mg-key"
	assert.True(t, cfg.MailConfigured(false))
}
