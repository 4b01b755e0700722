package trafficlight

import (
	"context"
	"io"
	"log/slog"
	"os"
)

var logLevel = new(slog.LevelVar)

func init() {
	slog.SetDefault(newJSONLogger(os.Stderr))
}

// newJSONLogger writes one JSON object per record to w, filtered by the
// level set with SetDebug.
func newJSONLogger(w io.Writer) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel})
	return slog.New(h).With("app", "trafficlight")
}

func SetDebug(debug bool) {
	if debug {
		logLevel.Set(slog.LevelDebug)
	} else {
		logLevel.Set(slog.LevelInfo)
	}
}

func newLoggerFromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if m, ok := ctx.Value(moduleKey).(string); ok {
		l = l.With("module", m)
	}
	if v, ok := ctx.Value(vehicleKey).(string); ok {
		l = l.With("vehicle", v)
	}
	return l
}
