package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server:     ServerConfig{Env: "production"},
		Encryption: EncryptionConfig{Key: "AGE-SECRET-KEY-1TEST"},
		Invite:     InviteConfig{TTLDays: 7},
		Notify: NotifyConfig{
			EmailProvider:    "log",
			WhatsAppProvider: "mock",
			TimeoutSeconds:   10,
		},
		Worker: WorkerConfig{TokenPurgeCron: "0 * * * *"},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "encryption key required in production",
			mutate:  func(c *Config) { c.Encryption.Key = "" },
			wantErr: "ENCRYPTION_KEY",
		},
		{
			name:    "non-positive invite ttl",
			mutate:  func(c *Config) { c.Invite.TTLDays = 0 },
			wantErr: "INVITE_TTL_DAYS",
		},
		{
			name:    "smtp without server",
			mutate:  func(c *Config) { c.Notify.EmailProvider = "smtp" },
			wantErr: "EMAIL_SERVER",
		},
		{
			name:    "meta without credentials",
			mutate:  func(c *Config) { c.Notify.WhatsAppProvider = "meta" },
			wantErr: "WHATSAPP_API_TOKEN",
		},
		{
			name:    "bad cron",
			mutate:  func(c *Config) { c.Worker.TokenPurgeCron = "every hour" },
			wantErr: "TOKEN_PURGE_CRON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_DevelopmentWithoutKey(t *testing.T) {
	c := validConfig()
	c.Server.Env = "development"
	c.Encryption.Key = ""
	assert.NoError(t, c.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVER_ENV", "development")
	t.Setenv("SITE_URL", "https://pool.example.com/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://pool.example.com", cfg.Server.SiteURL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 7*24, int(cfg.Invite.TTL().Hours()))
	assert.Equal(t, "log", cfg.Notify.EmailProvider)
}
