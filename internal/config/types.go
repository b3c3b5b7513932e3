package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// TwitchConfig identifies the application registered with Twitch.
//
// Values may be literal strings or {"$env": "VAR_NAME"} references, resolved at
// load time. The explicit JSON form avoids accidental expansion when config
// files pass through shell scripts.
type TwitchConfig struct {
	// ClientID is redacted in dumps. It is not a credential but it identifies
	// the application to anyone who sees it.
	ClientID    Secret `json:"clientId"`
	RedirectURI string `json:"redirectUri,omitempty"`
	AuthURL     string `json:"authUrl,omitempty"`
	APIBaseURL  string `json:"apiBaseUrl,omitempty"`
	RevokeURL   string `json:"revokeUrl,omitempty"`
}

// LoginConfig configures the local consent flow.
type LoginConfig struct {
	ListenAddr  string        `json:"listenAddr,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
	OpenBrowser *bool         `json:"openBrowser,omitempty"`
	AppName     string        `json:"appName,omitempty"`
}

// BrowserEnabled reports whether the system browser should be opened.
func (l LoginConfig) BrowserEnabled() bool {
	return l.OpenBrowser == nil || *l.OpenBrowser
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"`
}

// Config represents the config structure with resolved values
type Config struct {
	Version string        `json:"version"`
	Twitch  TwitchConfig  `json:"twitch"`
	Login   LoginConfig   `json:"login"`
	Logging LoggingConfig `json:"logging"`
}

// ParseConfigValue parses a JSON value that is either a plain string or an
// {"$env": "VAR_NAME"} reference.
func ParseConfigValue(raw json.RawMessage) (string, error) {
	// Try plain string first
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return "", fmt.Errorf("unknown reference type in config value")
	}

	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("environment variable %s not set", envVar)
	}
	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return value, nil
}
