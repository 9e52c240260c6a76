// Package config loads layered runtime configuration: built-in defaults,
// then an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where a config file is searched, in order. The
// first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/basket-insights/config.yaml",
}

// ConfigPathEnvVar overrides the config file search entirely.
const ConfigPathEnvVar = "CONFIG_PATH"

// Config is the full runtime configuration.
type Config struct {
	Data   DataConfig   `koanf:"data"`
	Window WindowConfig `koanf:"window"`
	Mining MiningConfig `koanf:"mining"`
	Server ServerConfig `koanf:"server"`
	Gemini GeminiConfig `koanf:"gemini"`
}

// DataConfig points at the input files. Paths may be local or gs:// URIs.
type DataConfig struct {
	ProductsPath  string `koanf:"products_path"`
	PurchasesPath string `koanf:"purchases_path"`
}

// WindowConfig is the default habit-analysis date window (YYYY-MM-DD).
type WindowConfig struct {
	Start string `koanf:"start"`
	End   string `koanf:"end"`
}

// MiningConfig holds the association-mining thresholds.
type MiningConfig struct {
	MinSupport    float64 `koanf:"min_support"`
	MinConfidence float64 `koanf:"min_confidence"`
	Workers       int     `koanf:"workers"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// GeminiConfig configures the gift-recommendation model call.
type GeminiConfig struct {
	Model string `koanf:"model"`
}

func defaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			ProductsPath:  "data/products.csv",
			PurchasesPath: "data/purchases.csv",
		},
		Window: WindowConfig{
			Start: "2025-11-01",
			End:   "2026-01-31",
		},
		Mining: MiningConfig{
			MinSupport:    0.001,
			MinConfidence: 0.03,
			Workers:       1,
		},
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.0-flash",
		},
	}
}

// Load builds the configuration from defaults, then the config file (if one
// exists), then environment variables. Precedence: env > file > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config.Load: load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config.Load: load file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("config.Load: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config.Load: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations that cannot work at runtime.
func (c *Config) Validate() error {
	if c.Data.ProductsPath == "" {
		return fmt.Errorf("data.products_path must not be empty")
	}
	if c.Data.PurchasesPath == "" {
		return fmt.Errorf("data.purchases_path must not be empty")
	}
	if c.Mining.MinSupport < 0 || c.Mining.MinSupport > 1 {
		return fmt.Errorf("mining.min_support %g outside [0, 1]", c.Mining.MinSupport)
	}
	if c.Mining.MinConfidence < 0 || c.Mining.MinConfidence > 1 {
		return fmt.Errorf("mining.min_confidence %g outside [0, 1]", c.Mining.MinConfidence)
	}
	if c.Mining.Workers < 0 {
		return fmt.Errorf("mining.workers must be non-negative, got %d", c.Mining.Workers)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d outside [1, 65535]", c.Server.Port)
	}
	if c.Gemini.Model == "" {
		return fmt.Errorf("gemini.model must not be empty")
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransform maps environment variable names to config paths. Unmapped
// variables are dropped so unrelated environment noise cannot leak in.
func envTransform(key string) string {
	mappings := map[string]string{
		"products_path":    "data.products_path",
		"purchases_path":   "data.purchases_path",
		"window_start":     "window.start",
		"window_end":       "window.end",
		"min_support":      "mining.min_support",
		"min_confidence":   "mining.min_confidence",
		"mine_workers":     "mining.workers",
		"http_port":        "server.port",
		"shutdown_timeout": "server.shutdown_timeout",
		"gemini_model":     "gemini.model",
	}
	if mapped, ok := mappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
