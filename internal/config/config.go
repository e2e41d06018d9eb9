// Package config resolves the runtime settings surface: feed and
// summarizer credentials, store DSN, logging.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the resolved settings surface.
type Config struct {
	OTXAPIKey    string `yaml:"otx_api_key"`
	GrokAPIKey   string `yaml:"grok_api_key"`
	ClaudeAPIKey string `yaml:"claude_api_key"`
	DBDSN        string `yaml:"db_dsn"`
	LogLevel     string `yaml:"log_level"`
	LogFile      string `yaml:"log_file"`
}

// Bind registers the config keys and their environment bindings on a viper
// instance. Env names match the settings the deployment already uses.
func Bind(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	_ = v.BindEnv("otx.api_key", "OTX_API_KEY")
	_ = v.BindEnv("grok.api_key", "GROK_API_KEY")
	_ = v.BindEnv("claude.api_key", "CLAUDE_API_KEY")
	_ = v.BindEnv("db.dsn", "DB_DSN")
	_ = v.BindEnv("log.level", "LOG_LEVEL")
	_ = v.BindEnv("log.file", "LOG_FILE")
}

// FromViper materializes a Config from bound viper state.
func FromViper(v *viper.Viper) Config {
	return Config{
		OTXAPIKey:    strings.TrimSpace(v.GetString("otx.api_key")),
		GrokAPIKey:   strings.TrimSpace(v.GetString("grok.api_key")),
		ClaudeAPIKey: strings.TrimSpace(v.GetString("claude.api_key")),
		DBDSN:        strings.TrimSpace(v.GetString("db.dsn")),
		LogLevel:     strings.TrimSpace(v.GetString("log.level")),
		LogFile:      strings.TrimSpace(v.GetString("log.file")),
	}
}

// RequireDB validates the store settings.
func (c Config) RequireDB() error {
	if c.DBDSN == "" {
		return fmt.Errorf("config: db.dsn is required (set DB_DSN or db.dsn)")
	}
	return nil
}

// RequireFeed validates the feed settings.
func (c Config) RequireFeed() error {
	if c.OTXAPIKey == "" {
		return fmt.Errorf("config: otx.api_key is required (set OTX_API_KEY or otx.api_key)")
	}
	return nil
}

// Redacted returns a copy with secrets masked for display.
func (c Config) Redacted() Config {
	c.OTXAPIKey = mask(c.OTXAPIKey)
	c.GrokAPIKey = mask(c.GrokAPIKey)
	c.ClaudeAPIKey = mask(c.ClaudeAPIKey)
	return c
}

// RenderYAML renders the config as YAML for display.
func (c Config) RenderYAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("config: render: %w", err)
	}
	return string(out), nil
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4] + strings.Repeat("*", len(secret)-4)
}
