package audit

import "fmt"

// Driver identifiers for Config.Driver.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config selects and configures a Sink.
type Config struct {
	Driver string `yaml:"driver"`
	// Path is the JSON file for the file driver or the DSN for sqlite.
	Path          string `yaml:"path"`
	PreviewLength int    `yaml:"previewLength,omitempty"`
}

// New creates the configured sink.
func New(cfg Config) (Sink, error) {
	switch cfg.Driver {
	case "", DriverFile:
		sink, err := NewFileSink(cfg.Path)
		if err != nil {
			return nil, err
		}
		return sink, nil
	case DriverSQLite:
		sink, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return sink, nil
	case DriverMemory:
		return NewMemorySink(), nil
	default:
		return nil, fmt.Errorf("unsupported audit driver: %s", cfg.Driver)
	}
}
