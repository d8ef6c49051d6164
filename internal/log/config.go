package log

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Format selects the slog handler.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

// ParseFormat accepts "text" or "json" in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format %q", s)
	}
}

// Config holds configuration for the logger.
type Config struct {
	Level  Level
	Format Format

	// Output defaults to os.Stderr so command output on stdout stays clean
	Output io.Writer

	// AddSource includes the caller's file and line
	AddSource bool
}

// DefaultConfig logs warnings and errors as text to stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelWarn,
		Format: FormatText,
		Output: os.Stderr,
	}
}

// ParseConfig builds a Config from the log.level and log.format settings.
// Debug logging adds source locations.
func ParseConfig(level, format string) (Config, error) {
	cfg := DefaultConfig()

	var err error
	if cfg.Level, err = ParseLevel(level); err != nil {
		return Config{}, err
	}
	if cfg.Format, err = ParseFormat(format); err != nil {
		return Config{}, err
	}
	cfg.AddSource = cfg.Level == LevelDebug
	return cfg, nil
}
