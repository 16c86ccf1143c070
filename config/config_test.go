package config

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	var cfg, err = FromMap(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Mode)
	assert.Equal(t, ".hbs", cfg.Extension)
	assert.Equal(t, "en", cfg.DefaultLocale)
	assert.False(t, cfg.Development())
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
	assert.True(t, cfg.Validation.FailOnUnclosedTags)
	assert.False(t, cfg.Validation.Enabled)
}

func TestFromMap(t *testing.T) {
	var dir = t.TempDir()
	var cfg, err = FromMap(map[string]string{
		"SOYMAIL_MODE":                  "dev",
		"SOYMAIL_TEMPLATE_DIR":          dir,
		"SOYMAIL_DEFAULT_LOCALE":        "vi",
		"SOYMAIL_STRICT":                "true",
		"SOYMAIL_WATCH":                 "true",
		"SOYMAIL_LOG_LEVEL":             "debug",
		"SOYMAIL_VALIDATE_ENABLED":      "true",
		"SOYMAIL_POSTMARK_SERVER_TOKEN": "token",
		"SOYMAIL_POSTMARK_FROM":         "shop@example.com",
	})
	require.NoError(t, err)
	assert.True(t, cfg.Development())
	assert.Equal(t, dir, cfg.TemplateDir)
	assert.Equal(t, "vi", cfg.DefaultLocale)
	assert.True(t, cfg.Strict)
	assert.True(t, cfg.Watch)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
	assert.True(t, cfg.Validation.Enabled)
	assert.Equal(t, "token", cfg.Postmark.ServerToken)
	assert.Equal(t, "shop@example.com", cfg.Postmark.From)
}

func TestInvalid(t *testing.T) {
	for name, vars := range map[string]map[string]string{
		"mode":        {"SOYMAIL_MODE": "staging"},
		"level":       {"SOYMAIL_LOG_LEVEL": "loud"},
		"bool":        {"SOYMAIL_STRICT": "maybe"},
		"watch":       {"SOYMAIL_WATCH": "true"},
		"missing dir": {"SOYMAIL_TEMPLATE_DIR": "/does/not/exist"},
		"dir and s3":  {"SOYMAIL_TEMPLATE_DIR": ".", "SOYMAIL_S3_BUCKET": "mail"},
	} {
		var _, err = FromMap(vars)
		assert.Error(t, err, name)
	}
}
