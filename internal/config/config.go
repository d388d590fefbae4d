// Package config holds the samplewatch configuration. Configuration is
// loaded once at process start and passed into every component
// constructor; nothing reads ambient globals after boot.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Data source modes.
const (
	SourceCSV    = "csv"
	SourceSQLite = "sqlite"
)

// Config holds all samplewatch configuration.
type Config struct {
	// DataSource selects the repository family: "csv" or "sqlite".
	DataSource string `yaml:"data_source"`

	Paths PathsConfig `yaml:"paths"`

	Mail MailConfig `yaml:"mail"`

	LLM LLMConfig `yaml:"llm"`

	Logging LoggingConfig `yaml:"logging"`
}

// PathsConfig locates data, templates and the sqlite database.
type PathsConfig struct {
	DataDir      string `yaml:"data_dir"`      // CSV files live here
	TemplateDir  string `yaml:"template_dir"`  // email templates
	DatabasePath string `yaml:"database_path"` // sqlite mode only
}

// MailConfig configures the SMTP transport.
type MailConfig struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	UseTLS   bool   `yaml:"use_tls"`
	From     string `yaml:"from"` // defaults to User when empty
}

// LoggingConfig configures the categorized logger.
type LoggingConfig struct {
	Dir        string          `yaml:"dir"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		DataSource: SourceCSV,
		Paths: PathsConfig{
			DataDir:      filepath.Join("data", "mocks"),
			TemplateDir:  "templates",
			DatabasePath: filepath.Join("data", "samplewatch.db"),
		},
		Mail: MailConfig{
			Server: "smtp.office365.com",
			Port:   587,
			UseTLS: true,
		},
		LLM: DefaultLLMConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path, falling back to defaults when the
// file does not exist, then applies .env and environment overrides.
func Load(path string) (*Config, error) {
	// Mirrors the original deployment: secrets live in a .env file next
	// to the binary. Missing .env is not an error.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides lets environment variables win over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SAMPLEWATCH_DATA_SOURCE"); v != "" {
		c.DataSource = v
	}
	if v := os.Getenv("SAMPLEWATCH_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("SAMPLEWATCH_TEMPLATE_DIR"); v != "" {
		c.Paths.TemplateDir = v
	}
	if v := os.Getenv("SAMPLEWATCH_DB"); v != "" {
		c.Paths.DatabasePath = v
	}

	if v := os.Getenv("MAIL_SERVER"); v != "" {
		c.Mail.Server = v
	}
	if v := os.Getenv("MAIL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Mail.Port = port
		}
	}
	if v := os.Getenv("MAIL_USER"); v != "" {
		c.Mail.User = v
	}
	if v := os.Getenv("MAIL_PASSWORD"); v != "" {
		c.Mail.Password = v
	}
	if v := os.Getenv("MAIL_USE_TLS"); v != "" {
		c.Mail.UseTLS = v == "true" || v == "True" || v == "1"
	}

	c.LLM.applyEnvOverrides()
}

// Validate checks the invariants that must hold before any component is
// constructed. Configuration errors are fatal to the run. LLM
// credentials are deliberately not checked here: the provider factory
// validates them at construction time, and the workflow degrades to
// no-information analysis when that fails.
func (c *Config) Validate() error {
	switch c.DataSource {
	case SourceCSV, SourceSQLite:
	default:
		return fmt.Errorf("unknown data_source: %q (valid: %s, %s)", c.DataSource, SourceCSV, SourceSQLite)
	}
	if c.Mail.Port <= 0 || c.Mail.Port > 65535 {
		return fmt.Errorf("invalid mail port: %d", c.Mail.Port)
	}
	return nil
}

// FromAddress returns the envelope sender.
func (c *MailConfig) FromAddress() string {
	if c.From != "" {
		return c.From
	}
	return c.User
}

// GetLLMTimeout parses the configured LLM request timeout.
func (c *Config) GetLLMTimeout() time.Duration {
	if d, err := time.ParseDuration(c.LLM.Timeout); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}
