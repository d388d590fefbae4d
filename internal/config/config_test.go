package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, SourceCSV, cfg.DataSource)
	assert.Equal(t, "smtp.office365.com", cfg.Mail.Server)
	assert.Equal(t, 587, cfg.Mail.Port)
	assert.True(t, cfg.Mail.UseTLS)
	assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, "gemini-1.5-flash", cfg.LLM.Gemini.Model)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, SourceCSV, cfg.DataSource)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samplewatch.yaml")
	cfg := DefaultConfig()
	cfg.DataSource = SourceSQLite
	cfg.Paths.DatabasePath = "/var/lib/samplewatch/app.db"
	cfg.Mail.User = "noreply@firma.pl"
	cfg.LLM.Provider = ProviderOpenAI
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SourceSQLite, loaded.DataSource)
	assert.Equal(t, "/var/lib/samplewatch/app.db", loaded.Paths.DatabasePath)
	assert.Equal(t, "noreply@firma.pl", loaded.Mail.User)
	assert.Equal(t, ProviderOpenAI, loaded.LLM.Provider)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_source: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SAMPLEWATCH_DATA_SOURCE", "sqlite")
	t.Setenv("SAMPLEWATCH_DATA_DIR", "/srv/data")
	t.Setenv("MAIL_SERVER", "smtp.example.com")
	t.Setenv("MAIL_PORT", "2525")
	t.Setenv("MAIL_USE_TLS", "false")
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("LLM_PROVIDER", "openai")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, SourceSQLite, cfg.DataSource)
	assert.Equal(t, "/srv/data", cfg.Paths.DataDir)
	assert.Equal(t, "smtp.example.com", cfg.Mail.Server)
	assert.Equal(t, 2525, cfg.Mail.Port)
	assert.False(t, cfg.Mail.UseTLS)
	assert.Equal(t, "env-key", cfg.LLM.Gemini.APIKey)
	assert.Equal(t, "openai", cfg.LLM.Provider)
}

func TestEnvOverridesIgnoreBadPort(t *testing.T) {
	t.Setenv("MAIL_PORT", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 587, cfg.Mail.Port)
}

func TestValidate(t *testing.T) {
	t.Run("unknown data source", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DataSource = "mssql"
		assert.Error(t, cfg.Validate())
	})

	t.Run("invalid mail port", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Mail.Port = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing LLM key is not fatal", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.LLM.Gemini.APIKey = ""
		assert.NoError(t, cfg.Validate())
	})
}

func TestLLMValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*LLMConfig)
		wantErr bool
	}{
		{"gemini with key", func(c *LLMConfig) { c.Gemini.APIKey = "k" }, false},
		{"gemini without key", func(c *LLMConfig) {}, true},
		{"openai with key", func(c *LLMConfig) { c.Provider = ProviderOpenAI; c.OpenAI.APIKey = "k" }, false},
		{"qwen needs key and url", func(c *LLMConfig) { c.Provider = ProviderQwen; c.Qwen.APIKey = "k" }, true},
		{"qwen complete", func(c *LLMConfig) {
			c.Provider = ProviderQwen
			c.Qwen.APIKey = "k"
			c.Qwen.URL = "https://example.com/v1"
		}, false},
		{"unknown provider", func(c *LLMConfig) { c.Provider = "mistral" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := DefaultLLMConfig()
			tt.mutate(&llm)
			err := llm.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFromAddress(t *testing.T) {
	mail := MailConfig{User: "noreply@firma.pl"}
	assert.Equal(t, "noreply@firma.pl", mail.FromAddress())

	mail.From = "samplewatch@firma.pl"
	assert.Equal(t, "samplewatch@firma.pl", mail.FromAddress())
}

func TestGetLLMTimeout(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.GetLLMTimeout())

	cfg.LLM.Timeout = "5s"
	assert.Equal(t, 5*time.Second, cfg.GetLLMTimeout())

	cfg.LLM.Timeout = "garbage"
	assert.Equal(t, 30*time.Second, cfg.GetLLMTimeout())
}
