package app

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of the configuration file.
	Debug bool

	// Quiet suppresses log output on the console.
	Quiet bool

	// ConfigPath points at agentgate.yaml. Empty uses the default location.
	ConfigPath string
}

// NewConfig creates a new application configuration
func NewConfig(debug, quiet bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		Quiet:      quiet,
		ConfigPath: configPath,
	}
}
