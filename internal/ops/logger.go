package ops

import (
	"io"
	"os"
	"strings"

	"github.com/yanun0323/logs"
)

// SetupLogger installs a JSON logger as the process default. Unknown levels fall back to info.
func SetupLogger(level string, w io.Writer) logs.Logger {
	if w == nil {
		w = os.Stdout
	}
	logger := logs.New(parseLevel(level), &logs.Option{Format: logs.FormatJSON, Output: w})
	logs.SetDefault(logger)
	return logger
}

func parseLevel(level string) logs.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return logs.LevelDebug
	case "warn", "warning":
		return logs.LevelWarn
	case "error":
		return logs.LevelError
	default:
		return logs.LevelInfo
	}
}
