package route

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Config maps path patterns to absolute upstream target URLs.
// Patterns may be exact paths, contain :name parameters, or a *
// wildcard. A nil Config means no routing is configured.
type Config map[string]string

// ValidationError reports a malformed routing configuration entry.
type ValidationError struct {
	Pattern string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Pattern != "" {
		return fmt.Sprintf("invalid route %q: %s", e.Pattern, e.Message)
	}
	return fmt.Sprintf("invalid routing configuration: %s", e.Message)
}

// newValidationError creates a ValidationError for a pattern.
func newValidationError(pattern, message string) *ValidationError {
	return &ValidationError{Pattern: pattern, Message: message}
}

// Validate checks that every entry of the configuration is
// independently valid: patterns start with "/" and targets parse as
// absolute http or https URLs. An empty table is rejected.
func Validate(cfg Config) error {
	if cfg == nil {
		return &ValidationError{Message: "routing configuration is required"}
	}
	if len(cfg) == 0 {
		return &ValidationError{Message: "routing configuration cannot be empty"}
	}

	for pattern, target := range cfg {
		if !strings.HasPrefix(pattern, "/") {
			return newValidationError(pattern, "path pattern must start with /")
		}
		if target == "" {
			return newValidationError(pattern, "target URL cannot be empty")
		}
		u, err := url.Parse(target)
		if err != nil {
			return newValidationError(pattern, "target is not a valid URL: "+err.Error())
		}
		if !u.IsAbs() || u.Host == "" {
			return newValidationError(pattern, "target must be an absolute URL")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return newValidationError(pattern,
				fmt.Sprintf("target scheme %q is not supported, must be http or https", u.Scheme))
		}
	}

	return nil
}

// ParseConfig decodes and validates the raw JSON boundary format
// { "<pattern>": "<target>" }. JSON null and empty input decode to a
// nil Config, meaning no routing is configured. Arrays, non-object
// values, and non-string entry values are validation errors.
func ParseConfig(data []byte) (Config, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, &ValidationError{Message: "routing configuration must be a JSON object"}
	}

	cfg := make(Config, len(raw))
	for pattern, value := range raw {
		var target string
		if err := json.Unmarshal(value, &target); err != nil {
			return nil, newValidationError(pattern, "target must be a string")
		}
		cfg[pattern] = target
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Clone returns a copy of the configuration.
func (c Config) Clone() Config {
	if c == nil {
		return nil
	}
	out := make(Config, len(c))
	for pattern, target := range c {
		out[pattern] = target
	}
	return out
}
