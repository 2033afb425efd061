package logging

import "fmt"

// Config selects the log format, minimum level and destination.
type Config struct {
	Format string // "pretty" or "jsonl"
	Level  string
	Output string // "stderr" or a file path
	OpID   string // stamped on every entry
}

func DefaultConfig() Config {
	return Config{
		Format: FormatPretty,
		Level:  LevelInfo,
		Output: "stderr",
	}
}

const (
	FormatPretty = "pretty"
	FormatJSONL  = "jsonl"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Validate rejects unknown formats and levels.
func (c Config) Validate() error {
	switch c.Format {
	case "", FormatPretty, FormatJSONL:
	default:
		return fmt.Errorf("logging: format must be %q or %q, got %q", FormatPretty, FormatJSONL, c.Format)
	}
	switch c.Level {
	case "", LevelDebug, LevelInfo, LevelWarn, LevelError:
	default:
		return fmt.Errorf("logging: unknown level %q", c.Level)
	}
	return nil
}

func levelPriority(level string) int {
	switch level {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return 1 // default to info
	}
}
