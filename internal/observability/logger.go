package observability

import (
	"log/slog"
	"os"
)

// NewLogger returns the process-wide structured logger: JSON in production
// so log shippers can parse it, text everywhere else.
func NewLogger(env string) *slog.Logger {
	var handler slog.Handler
	if env == "prod" || env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return slog.New(handler).With("service", "microtrust-api")
}
