package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// VersionPrefix is the config format version accepted by Load.
const VersionPrefix = "v0.0.1-DEV_EDITION"

// Defaults applied when neither the file nor the environment sets a value.
const (
	DefaultListenAddr = "localhost:3000"
	DefaultTimeout    = 5 * time.Minute
	DefaultAppName    = "twitch-login"
)

// envConfig holds the environment overrides. Values set here win over the file.
type envConfig struct {
	ClientID    string        `env:"TWITCH_CLIENT_ID"`
	ListenAddr  string        `env:"TWITCH_LOGIN_LISTEN_ADDR"`
	RedirectURI string        `env:"TWITCH_LOGIN_REDIRECT_URI"`
	Timeout     time.Duration `env:"TWITCH_LOGIN_TIMEOUT"`
	LogLevel    string        `env:"LOG_LEVEL"`
	LogFormat   string        `env:"LOG_FORMAT"`
}

// Load reads the config file at path, applies environment overrides and
// defaults, and validates the result. An empty path configures from the
// environment alone.
func Load(path string) (Config, error) {
	var config Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}

		var rawConfig map[string]any
		if err := json.Unmarshal(data, &rawConfig); err != nil {
			return Config{}, fmt.Errorf("parsing config JSON: %w", err)
		}

		version, ok := rawConfig["version"].(string)
		if !ok {
			return Config{}, fmt.Errorf("config version is required")
		}
		if !strings.HasPrefix(version, VersionPrefix) {
			return Config{}, fmt.Errorf("unsupported config version: %s", version)
		}

		// The custom UnmarshalJSON methods resolve env refs immediately
		if err := json.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := applyEnv(&config); err != nil {
		return Config{}, err
	}
	applyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func applyEnv(config *Config) error {
	var e envConfig
	if err := env.Parse(&e); err != nil {
		var parseErr env.ParseError
		if errors.As(err, &parseErr) {
			field, _ := reflect.TypeOf(e).FieldByName(parseErr.Name)
			return &ConfigurationError{Field: field.Tag.Get("env"), Message: parseErr.Err.Error()}
		}
		return fmt.Errorf("parse env: %w", err)
	}

	if e.ClientID != "" {
		config.Twitch.ClientID = Secret(e.ClientID)
	}
	if e.ListenAddr != "" {
		config.Login.ListenAddr = e.ListenAddr
	}
	if e.RedirectURI != "" {
		config.Twitch.RedirectURI = e.RedirectURI
	}
	if e.Timeout != 0 {
		config.Login.Timeout = e.Timeout
	}
	if e.LogLevel != "" {
		config.Logging.Level = e.LogLevel
	}
	if e.LogFormat != "" {
		config.Logging.Format = e.LogFormat
	}
	return nil
}

func applyDefaults(config *Config) {
	if config.Login.ListenAddr == "" {
		config.Login.ListenAddr = DefaultListenAddr
	}
	if config.Login.Timeout == 0 {
		config.Login.Timeout = DefaultTimeout
	}
	if config.Login.AppName == "" {
		config.Login.AppName = DefaultAppName
	}
}
