package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billybrichards/climate-parser/config"
)

// clearEnv blanks every variable the loader reads so the host environment
// cannot leak into the assertions.
func clearEnv(t *testing.T) {
	for _, name := range []string{
		"API_KEY", "HOST", "PORT", "MAX_PORT_ATTEMPTS", "ENVIRONMENT", "NODE_ENV",
		"LOG_LEVEL", "MAX_BODY_BYTES", "MAX_TEXT_LENGTH", "INCLUDE_EXAMPLE",
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL", "OPENAI_MAX_TOKENS",
		"OPENAI_TIMEOUT", "REPAIR_JSON", "ALLOWED_ORIGINS", "ALLOWED_ORIGIN_PATTERNS",
	} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		clearEnv(t)

		cfg, err := config.LoadConfig(nil)
		require.NoError(t, err)
		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, "development", cfg.Environment)
		assert.False(t, cfg.IsProduction())
		assert.Equal(t, "gpt-4o", cfg.Upstream.Model)
		assert.EqualValues(t, 4000, cfg.Upstream.MaxTokens)
		assert.Equal(t, 120*time.Second, cfg.Upstream.Timeout)
		assert.Equal(t, 50000, cfg.MaxTextLength)
		assert.True(t, cfg.IncludeExample)
		assert.Empty(t, cfg.APIKey)
		assert.Empty(t, cfg.Upstream.APIKey)
		assert.Equal(t, []string{"https://*.vercel.app"}, cfg.CORS.AllowedOriginPatterns)
	})

	t.Run("Environment", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("API_KEY", " secret ")
		t.Setenv("OPENAI_API_KEY", "sk-test")
		t.Setenv("PORT", "8081")
		t.Setenv("NODE_ENV", "Production")
		t.Setenv("OPENAI_TIMEOUT", "15s")
		t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

		cfg, err := config.LoadConfig(nil)
		require.NoError(t, err)
		assert.Equal(t, "secret", cfg.APIKey)
		assert.Equal(t, "sk-test", cfg.Upstream.APIKey)
		assert.Equal(t, 8081, cfg.Port)
		assert.True(t, cfg.IsProduction())
		assert.Equal(t, 15*time.Second, cfg.Upstream.Timeout)
		assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
	})

	t.Run("FileAndFlags", func(t *testing.T) {
		clearEnv(t)
		dir := t.TempDir()
		file := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(file, []byte(`
port: 4000
max_text_length: 100
upstream:
  model: gpt-4o-mini
  repair_json: true
`), 0o600))

		cli, err := config.ParseArgs("test", []string{"--config", file, "--env-file", "", "--port", "5000"})
		require.NoError(t, err)

		cfg, err := config.LoadConfig(cli)
		require.NoError(t, err)
		assert.Equal(t, 5000, cfg.Port)
		assert.Equal(t, 100, cfg.MaxTextLength)
		assert.Equal(t, "gpt-4o-mini", cfg.Upstream.Model)
		assert.True(t, cfg.Upstream.RepairJSON)
	})

	t.Run("DotEnv", func(t *testing.T) {
		clearEnv(t)
		envFile := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(envFile, []byte("API_KEY=from-dotenv\n"), 0o600))
		t.Cleanup(func() { _ = os.Unsetenv("API_KEY") })

		cfg, err := config.LoadConfig(&config.CliConfig{EnvFile: envFile})
		require.NoError(t, err)
		assert.Equal(t, "from-dotenv", cfg.APIKey)
	})

	t.Run("MissingEnvFileIsFine", func(t *testing.T) {
		clearEnv(t)
		_, err := config.LoadConfig(&config.CliConfig{EnvFile: filepath.Join(t.TempDir(), "nope.env")})
		require.NoError(t, err)
	})

	t.Run("Invalid", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PORT", "70000")
		_, err := config.LoadConfig(nil)
		require.Error(t, err)
	})
}
