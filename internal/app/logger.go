package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the process logger. Production always logs JSON;
// elsewhere LOG_FORMAT picks between JSON and human-readable text.
func NewLogger(cfg *Config) *slog.Logger {
	var handler slog.Handler
	if cfg != nil && (cfg.IsProduction() || cfg.LogFormat == "json") {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})
	}
	return slog.New(handler).With(slog.String("service", "meridian"))
}
