package config

import (
	"strings"
	"time"
)

// UpstreamConfig describes the chat-completion service the extractor talks to.
type UpstreamConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url" validate:"omitempty,url"`
	Model      string        `mapstructure:"model" validate:"required"`
	MaxTokens  int64         `mapstructure:"max_tokens" validate:"gt=0"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RepairJSON bool          `mapstructure:"repair_json"`
}

// CORSConfig lists the origins that receive permissive CORS headers.
// Patterns may contain a single "*" wildcard, e.g. "https://*.vercel.app".
type CORSConfig struct {
	AllowedOrigins        []string `mapstructure:"allowed_origins"`
	AllowedOriginPatterns []string `mapstructure:"allowed_origin_patterns"`
}

// Config holds the application configuration.
type Config struct {
	APIKey          string         `mapstructure:"api_key"`
	ListenHost      string         `mapstructure:"listen_host"`
	Port            int            `mapstructure:"port" validate:"min=1,max=65535"`
	MaxPortAttempts int            `mapstructure:"max_port_attempts" validate:"min=1,max=100"`
	Environment     string         `mapstructure:"environment" validate:"required"`
	LogLevel        string         `mapstructure:"log_level"`
	MaxBodyBytes    int64          `mapstructure:"max_body_bytes" validate:"gt=0"`
	MaxTextLength   int            `mapstructure:"max_text_length" validate:"gt=0"`
	IncludeExample  bool           `mapstructure:"include_example"`
	Upstream        UpstreamConfig `mapstructure:"upstream"`
	CORS            CORSConfig     `mapstructure:"cors"`
}

// IsProduction reports whether diagnostics must be withheld from responses.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
