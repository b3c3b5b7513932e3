package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// UnmarshalJSON resolves $env references in the Twitch section.
func (c *TwitchConfig) UnmarshalJSON(data []byte) error {
	type rawTwitch struct {
		ClientID    json.RawMessage `json:"clientId,omitempty"`
		RedirectURI json.RawMessage `json:"redirectUri,omitempty"`
		AuthURL     json.RawMessage `json:"authUrl,omitempty"`
		APIBaseURL  json.RawMessage `json:"apiBaseUrl,omitempty"`
		RevokeURL   json.RawMessage `json:"revokeUrl,omitempty"`
	}

	var raw rawTwitch
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	fields := []struct {
		name string
		raw  json.RawMessage
		dst  *string
	}{
		{"redirectUri", raw.RedirectURI, &c.RedirectURI},
		{"authUrl", raw.AuthURL, &c.AuthURL},
		{"apiBaseUrl", raw.APIBaseURL, &c.APIBaseURL},
		{"revokeUrl", raw.RevokeURL, &c.RevokeURL},
	}

	if raw.ClientID != nil {
		value, err := ParseConfigValue(raw.ClientID)
		if err != nil {
			return &ConfigurationError{Field: "twitch.clientId", Message: err.Error()}
		}
		c.ClientID = Secret(value)
	}

	for _, f := range fields {
		if f.raw == nil {
			continue
		}
		value, err := ParseConfigValue(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", f.name, err)
		}
		*f.dst = value
	}

	return nil
}

// UnmarshalJSON parses the login section, accepting durations as strings like "5m".
func (l *LoginConfig) UnmarshalJSON(data []byte) error {
	type rawLogin struct {
		ListenAddr  json.RawMessage `json:"listenAddr,omitempty"`
		Timeout     string          `json:"timeout,omitempty"`
		OpenBrowser *bool           `json:"openBrowser,omitempty"`
		AppName     string          `json:"appName,omitempty"`
	}

	var raw rawLogin
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	l.OpenBrowser = raw.OpenBrowser
	l.AppName = raw.AppName

	if raw.ListenAddr != nil {
		value, err := ParseConfigValue(raw.ListenAddr)
		if err != nil {
			return fmt.Errorf("parsing listenAddr: %w", err)
		}
		l.ListenAddr = value
	}

	if raw.Timeout != "" {
		timeout, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return &ConfigurationError{Field: "login.timeout", Message: fmt.Sprintf("invalid duration %q", raw.Timeout)}
		}
		l.Timeout = timeout
	}

	return nil
}
