// Package config loads the noonlight command configuration from the
// environment, an optional .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/IceBotYT/noonlight"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config is the command configuration. YAML keys overlay the environment.
type Config struct {
	Noonlight NoonlightConfig `yaml:"noonlight"`
	Retry     RetryConfig     `yaml:"retry"`
	HTTP      struct {
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"http"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

type NoonlightConfig struct {
	ServerToken   string `yaml:"server_token"`
	Sandbox       bool   `yaml:"sandbox"`
	ProductionURL string `yaml:"production_url"` // empty selects api.noonlight.com
}

type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	MinWait  time.Duration `yaml:"min_wait"`
	MaxWait  time.Duration `yaml:"max_wait"`
}

// Load reads envFile (skipped when missing), then the environment, then
// overlays configFile when it is not empty. Variables already set in the
// environment win over envFile.
func Load(envFile, configFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	cfg.Noonlight.ServerToken = getEnv("NOONLIGHT_SERVER_TOKEN", "")
	cfg.Noonlight.Sandbox = parseBool(getEnv("NOONLIGHT_SANDBOX", "true"), true)
	cfg.Noonlight.ProductionURL = getEnv("NOONLIGHT_PRODUCTION_URL", "")

	def := noonlight.DefaultRetryPolicy()
	cfg.Retry.Attempts = parseInt(getEnv("NOONLIGHT_RETRY_ATTEMPTS", ""), def.Attempts)
	cfg.Retry.MinWait = parseDuration(getEnv("NOONLIGHT_RETRY_MIN_WAIT", ""), def.MinWait)
	cfg.Retry.MaxWait = parseDuration(getEnv("NOONLIGHT_RETRY_MAX_WAIT", ""), def.MaxWait)
	cfg.HTTP.Timeout = parseDuration(getEnv("NOONLIGHT_HTTP_TIMEOUT", ""), 30*time.Second)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if configFile != "" {
		raw, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	return cfg, nil
}

// Validate reports settings the command cannot run without.
func (c *Config) Validate() error {
	if c.Noonlight.ServerToken == "" {
		return errors.New("server token is required (NOONLIGHT_SERVER_TOKEN or noonlight.server_token)")
	}
	if c.Retry.Attempts <= 0 {
		return fmt.Errorf("retry attempts must be positive, got %d", c.Retry.Attempts)
	}
	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("http timeout must not be negative, got %s", c.HTTP.Timeout)
	}
	return nil
}

// RetryPolicy converts the retry section.
func (c *Config) RetryPolicy() noonlight.RetryPolicy {
	return noonlight.RetryPolicy{
		Attempts: c.Retry.Attempts,
		MinWait:  c.Retry.MinWait,
		MaxWait:  c.Retry.MaxWait,
	}
}

// Options builds the client options for one command run. The HTTP client is
// shared by every call of the run.
func (c *Config) Options(logger *zap.Logger) []noonlight.Option {
	opts := []noonlight.Option{
		noonlight.WithHTTPClient(&http.Client{Timeout: c.HTTP.Timeout}),
		noonlight.WithRetryPolicy(c.RetryPolicy()),
		noonlight.WithLogger(logger),
	}
	if c.Noonlight.ProductionURL != "" {
		opts = append(opts, noonlight.WithProductionURL(c.Noonlight.ProductionURL))
	}
	return opts
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseBool(s string, def bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
