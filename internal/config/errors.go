package config

import "fmt"

// Error types reported in ConfigurationError.ErrorType.
const (
	ErrorTypeIO         = "io"
	ErrorTypeParse      = "parse"
	ErrorTypeValidation = "validation"
)

// ConfigurationError represents a failure to load the configuration file.
type ConfigurationError struct {
	FilePath  string `json:"filePath"`
	ErrorType string `json:"errorType"`
	Message   string `json:"message"`
	Err       error  `json:"-"`
}

// Error implements the error interface
func (ce *ConfigurationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ce.ErrorType, ce.FilePath, ce.Message)
}

func (ce *ConfigurationError) Unwrap() error {
	return ce.Err
}
