package config

import "fmt"

// ConfigurationError reports a configuration source that could not be used.
type ConfigurationError struct {
	Source    string // file path or environment variable
	ErrorType string // io, parse, env
	Err       error
}

// Error implements the error interface
func (ce *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s error in %s: %v", ce.ErrorType, ce.Source, ce.Err)
}

func (ce *ConfigurationError) Unwrap() error {
	return ce.Err
}

// NewConfigurationError creates a new configuration error.
func NewConfigurationError(source, errorType string, err error) *ConfigurationError {
	return &ConfigurationError{Source: source, ErrorType: errorType, Err: err}
}
