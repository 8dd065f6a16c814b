package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/lumina/core"
)

// ParseLevel maps debug, info, warn or error to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: invalid log level %q: must be one of debug, info, warn, error", core.ErrConfiguration, s)
}
