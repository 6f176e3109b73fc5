package svcutil

import (
	"io"
	"log/slog"
	"strings"

	"github.com/urfave/cli/v2"
)

// ParseLevel maps a level name to a slog level. Unknown names are INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// ConfigLogger builds a logger from the --log-level and --log-format flags,
// and installs it as the slog default. The format is JSON unless "text".
func ConfigLogger(cctx *cli.Context, writer io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cctx.String("log-level")),
	}
	var handler slog.Handler
	if strings.EqualFold(cctx.String("log-format"), "text") {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
