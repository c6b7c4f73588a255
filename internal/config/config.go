// Package config loads server configuration from a JSON config file with
// HAVEN_* environment overrides. Provider API keys are NOT config: they
// live in the settings store and are managed through the API.
package config

import (
	"fmt"

	"github.com/havenmind/haven/internal/provider"
)

type Config struct {
	Server   ServerConfig
	Ollama   OllamaConfig
	Storage  StorageConfig
	Dispatch DispatchConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port  int
	Token string // optional bearer token for /v1 routes
}

type OllamaConfig struct {
	BaseURL string
}

type StorageConfig struct {
	DataDir string
}

type DispatchConfig struct {
	DefaultProvider string
	DefaultModel    string
	Language        string
}

type LogConfig struct {
	Level string // debug | info | warn | error
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Dispatch: DispatchConfig{
			DefaultProvider: "gemini",
			DefaultModel:    "gemini-2.5-flash",
			Language:        "en",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON config file at
// $XDG_CONFIG_HOME/haven/config.json, then applies HAVEN_* environment
// overrides.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if !provider.ID(cfg.Dispatch.DefaultProvider).Known() {
		return Config{}, fmt.Errorf("unknown default provider %q (valid: %v)",
			cfg.Dispatch.DefaultProvider, provider.KnownIDs())
	}
	return cfg, nil
}
