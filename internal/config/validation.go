package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/dgellow/twitch-login/internal/log"
	"github.com/dgellow/twitch-login/internal/urlutil"
)

// ConfigurationError reports a missing or invalid setting. Startup fails on it.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if config.Twitch.ClientID == "" {
		return &ConfigurationError{
			Field:   "twitch.clientId",
			Message: "client id is required. Set TWITCH_CLIENT_ID or twitch.clientId",
		}
	}

	urls := []struct {
		field string
		value string
	}{
		{"twitch.redirectUri", config.Twitch.RedirectURI},
		{"twitch.authUrl", config.Twitch.AuthURL},
		{"twitch.apiBaseUrl", config.Twitch.APIBaseURL},
		{"twitch.revokeUrl", config.Twitch.RevokeURL},
	}
	for _, u := range urls {
		if u.value == "" {
			continue
		}
		if err := urlutil.ValidateHTTPURL(u.value); err != nil {
			return &ConfigurationError{Field: u.field, Message: fmt.Sprintf("invalid URL %q: %v", u.value, err)}
		}
	}

	if _, _, err := net.SplitHostPort(config.Login.ListenAddr); err != nil {
		return &ConfigurationError{Field: "login.listenAddr", Message: fmt.Sprintf("invalid address %q: %v", config.Login.ListenAddr, err)}
	}
	if config.Login.Timeout < 0 {
		return &ConfigurationError{Field: "login.timeout", Message: "timeout cannot be negative"}
	}
	if config.Login.Timeout > 0 && config.Login.Timeout < 10*time.Second {
		log.LogWarn("Login timeout %s leaves little time to complete consent", config.Login.Timeout)
	}

	if !log.ValidLevel(config.Logging.Level) {
		return &ConfigurationError{Field: "logging.level", Message: fmt.Sprintf("unknown log level %q. Options: error, warn, info, debug, trace", config.Logging.Level)}
	}
	if !log.ValidFormat(config.Logging.Format) {
		return &ConfigurationError{Field: "logging.format", Message: fmt.Sprintf("unknown log format %q. Options: text, json", config.Logging.Format)}
	}

	return nil
}

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

// ValidateFile validates a config file structure without requiring env vars
func ValidateFile(path string) (*ValidationResult, error) {
	result := &ValidationResult{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Check JSON syntax
	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Message: fmt.Sprintf("invalid JSON: %v", err),
		})
		return result, nil
	}

	// Check for bash-style syntax
	checkBashStyleSyntax(rawConfig, "", result)

	// Check version
	version, ok := rawConfig["version"].(string)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "version",
			Message: fmt.Sprintf("version field is required. Hint: Add \"version\": \"%s\"", VersionPrefix),
		})
	} else if !strings.HasPrefix(version, VersionPrefix) {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "version",
			Message: fmt.Sprintf("unsupported version '%s' - use '%s' or '%s-<variant>'", version, VersionPrefix, VersionPrefix),
		})
	}

	validateTwitchStructure(rawConfig, result)
	validateLoginStructure(rawConfig, result)
	validateLoggingStructure(rawConfig, result)

	return result, nil
}

// validateTwitchStructure checks the twitch section
func validateTwitchStructure(rawConfig map[string]any, result *ValidationResult) {
	twitch, ok := rawConfig["twitch"].(map[string]any)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "twitch",
			Message: "twitch field is required and must be an object",
		})
		return
	}

	clientID, ok := twitch["clientId"]
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "twitch.clientId",
			Message: "clientId is required. Example: {\"$env\": \"TWITCH_CLIENT_ID\"}",
		})
	} else if verr := validateEnvVarReference(clientID, "clientId", "twitch.clientId"); verr != nil {
		result.Errors = append(result.Errors, *verr)
	}

	for _, field := range []string{"redirectUri", "authUrl", "apiBaseUrl", "revokeUrl"} {
		value, ok := twitch[field]
		if !ok {
			continue
		}
		path := "twitch." + field
		if s, isString := value.(string); isString {
			if err := urlutil.ValidateHTTPURL(s); err != nil {
				result.Errors = append(result.Errors, ValidationError{
					Path:    path,
					Message: fmt.Sprintf("invalid URL '%s': %v", s, err),
				})
			}
			continue
		}
		if verr := validateEnvVarReference(value, field, path); verr != nil {
			result.Errors = append(result.Errors, *verr)
		}
	}
}

// validateLoginStructure checks the optional login section
func validateLoginStructure(rawConfig map[string]any, result *ValidationResult) {
	raw, exists := rawConfig["login"]
	if !exists {
		return
	}
	login, ok := raw.(map[string]any)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "login",
			Message: "login must be an object",
		})
		return
	}

	if timeout, ok := login["timeout"]; ok {
		s, isString := timeout.(string)
		if !isString {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "login.timeout",
				Message: "timeout must be a duration string. Example: \"5m\"",
			})
		} else if d, err := time.ParseDuration(s); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "login.timeout",
				Message: fmt.Sprintf("invalid duration '%s'. Example: \"5m\"", s),
			})
		} else if d < 0 {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "login.timeout",
				Message: "timeout cannot be negative",
			})
		}
	}

	if addr, ok := login["listenAddr"].(string); ok {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "login.listenAddr",
				Message: fmt.Sprintf("invalid address '%s'. Example: \"localhost:3000\"", addr),
			})
		}
	}

	if openBrowser, ok := login["openBrowser"]; ok {
		if _, isBool := openBrowser.(bool); !isBool {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "login.openBrowser",
				Message: "openBrowser must be a boolean",
			})
		}
	}
}

// validateLoggingStructure checks the optional logging section
func validateLoggingStructure(rawConfig map[string]any, result *ValidationResult) {
	logging, ok := rawConfig["logging"].(map[string]any)
	if !ok {
		return
	}
	if level, ok := logging["level"].(string); ok && !log.ValidLevel(level) {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "logging.level",
			Message: fmt.Sprintf("unknown log level '%s'. Options: error, warn, info, debug, trace", level),
		})
	}
	if format, ok := logging["format"].(string); ok && !log.ValidFormat(format) {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "logging.format",
			Message: fmt.Sprintf("unknown log format '%s'. Options: text, json", format),
		})
	}
}

// validateEnvVarReference checks that value is a plain string or a well-formed {"$env": "VAR"} reference
func validateEnvVarReference(value any, fieldName, path string) *ValidationError {
	switch v := value.(type) {
	case string:
		if v == "" {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("%s cannot be empty", fieldName),
			}
		}
		return nil
	case map[string]any:
		envVar, ok := v["$env"].(string)
		if !ok {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("%s must use {\"$env\": \"VAR_NAME\"} format", fieldName),
			}
		}
		if envVar == "" {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("%s environment variable name cannot be empty", fieldName),
			}
		}
		return nil
	default:
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must be a string or {\"$env\": \"VAR_NAME\"} reference", fieldName),
		}
	}
}

var bashStyleRegex = regexp.MustCompile(`\$\{?[A-Z_][A-Z0-9_]*\}?`)

func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		for _, match := range bashStyleRegex.FindAllString(v, -1) {
			varName := strings.Trim(match, "${}")
			result.Warnings = append(result.Warnings, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead. Hint: JSON syntax prevents accidental shell expansion in scripts/CI and ensures unambiguous parsing", match, varName),
			})
		}
	case map[string]any:
		// Skip if this is already an env ref
		if _, hasEnv := v["$env"]; hasEnv {
			return
		}

		for key, val := range v {
			newPath := path
			if newPath == "" {
				newPath = key
			} else {
				newPath = path + "." + key
			}
			checkBashStyleSyntax(val, newPath, result)
		}
	case []any:
		for i, item := range v {
			checkBashStyleSyntax(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}
