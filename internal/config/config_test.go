package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/condo")
	t.Setenv("AUTH0_DOMAIN", "condo.eu.auth0.com")
	t.Setenv("AUTH0_AUDIENCE", "https://api.condo.example")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "html", cfg.Reports.Format)
	assert.Equal(t, 10*time.Second, cfg.Reports.ReceiptFetchTimeout)
	assert.Equal(t, 60*time.Second, cfg.Reports.ReceiptBundleDeadline)
	assert.Equal(t, time.Hour, cfg.ClosingInterval)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Equal(t, 6, cfg.BatchLimitPerMinute)
	assert.False(t, cfg.SMTP.Enabled())
	assert.Empty(t, cfg.Redis.Addr)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("REPORT_FORMAT", "PDF")
	t.Setenv("RECEIPT_FETCH_TIMEOUT", "3s")
	t.Setenv("CLOSING_INTERVAL", "15m")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "pdf", cfg.Reports.Format)
	assert.Equal(t, 3*time.Second, cfg.Reports.ReceiptFetchTimeout)
	assert.Equal(t, 15*time.Minute, cfg.ClosingInterval)
	assert.True(t, cfg.SMTP.Enabled())
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.Equal(t, 0, cfg.Redis.DB)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database", map[string]string{"DATABASE_URL": ""}},
		{"missing auth0 domain", map[string]string{"AUTH0_DOMAIN": ""}},
		{"unknown report format", map[string]string{"REPORT_FORMAT": "docx"}},
		{"non-positive rate limit", map[string]string{"RATE_LIMIT_PER_MINUTE": "-1"}},
		{"zero batch limit", map[string]string{"BATCH_LIMIT_PER_MINUTE": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
