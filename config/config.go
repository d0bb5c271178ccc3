package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/xerrors"
)

const (
	defaultPort        = 3000
	defaultEnvironment = "development"
	defaultModel       = "gpt-4o"
	defaultMaxTokens   = 4000
)

// envBindings maps config keys to the environment variables that feed them.
// Where more than one variable is listed the first one that is set wins.
var envBindings = map[string][]string{
	"api_key":                      {"API_KEY"},
	"listen_host":                  {"HOST"},
	"port":                         {"PORT"},
	"max_port_attempts":            {"MAX_PORT_ATTEMPTS"},
	"environment":                  {"ENVIRONMENT", "NODE_ENV"},
	"log_level":                    {"LOG_LEVEL"},
	"max_body_bytes":               {"MAX_BODY_BYTES"},
	"max_text_length":              {"MAX_TEXT_LENGTH"},
	"include_example":              {"INCLUDE_EXAMPLE"},
	"upstream.api_key":             {"OPENAI_API_KEY"},
	"upstream.base_url":            {"OPENAI_BASE_URL"},
	"upstream.model":               {"OPENAI_MODEL"},
	"upstream.max_tokens":          {"OPENAI_MAX_TOKENS"},
	"upstream.timeout":             {"OPENAI_TIMEOUT"},
	"upstream.repair_json":         {"REPAIR_JSON"},
	"cors.allowed_origins":         {"ALLOWED_ORIGINS"},
	"cors.allowed_origin_patterns": {"ALLOWED_ORIGIN_PATTERNS"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_host", "0.0.0.0")
	v.SetDefault("port", defaultPort)
	v.SetDefault("max_port_attempts", 10)
	v.SetDefault("environment", defaultEnvironment)
	v.SetDefault("log_level", "info")
	v.SetDefault("max_body_bytes", 1<<20)
	v.SetDefault("max_text_length", 50000)
	v.SetDefault("include_example", true)
	v.SetDefault("upstream.model", defaultModel)
	v.SetDefault("upstream.max_tokens", defaultMaxTokens)
	v.SetDefault("upstream.timeout", 120*time.Second)
	v.SetDefault("upstream.repair_json", false)
	v.SetDefault("cors.allowed_origins", []string{
		"http://localhost:3000",
		"http://localhost:5173",
	})
	v.SetDefault("cors.allowed_origin_patterns", []string{"https://*.vercel.app"})
}

// LoadConfig builds the configuration from defaults, the optional dotenv and YAML
// files, the environment, and finally the command line flags.
func LoadConfig(cli *CliConfig) (*Config, error) {
	if cli == nil {
		cli = &CliConfig{}
	}

	// godotenv never overrides variables that are already set.
	if cli.EnvFile != "" {
		if err := godotenv.Load(cli.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, xerrors.Errorf("error loading env file %q: %w", cli.EnvFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, xerrors.Errorf("bind env for %s: %w", key, err)
		}
	}

	if cli.ConfigFile != "" {
		v.SetConfigFile(cli.ConfigFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, xerrors.Errorf("error reading config file: %w", err)
		}
	}

	if cli.Flags != nil {
		for _, name := range []string{"port", "environment"} {
			if f := cli.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(name, f); err != nil {
					return nil, xerrors.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var configuration Config
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, xerrors.Errorf("error unmarshaling config: %w", err)
	}
	configuration.normalize()

	if err := validator.New().Struct(&configuration); err != nil {
		return nil, xerrors.Errorf("invalid config: %w", err)
	}

	// The credentials may legitimately be missing at startup. Requests that need
	// them fail with a configuration error instead.
	return &configuration, nil
}

func (c *Config) normalize() {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.Upstream.APIKey = strings.TrimSpace(c.Upstream.APIKey)
	c.CORS.AllowedOrigins = compact(c.CORS.AllowedOrigins)
	c.CORS.AllowedOriginPatterns = compact(c.CORS.AllowedOriginPatterns)
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
