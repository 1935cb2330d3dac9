// Package logging provides the structured logger shared by every component
// of the pipeline. It wraps zerolog the way the rest of the retrieval pack
// does: one process-wide logger, leveled, field-based, JSON by default.
package logging

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// New builds the process-wide logger. When pretty is true output is
// human-readable (suited to an interactive `graphctl query` session);
// otherwise it is newline-delimited JSON suited to log aggregation.
func New(level string, pretty bool, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	var w io.Writer = out
	if pretty {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// WithContext attaches l to ctx so downstream components can recover it
// without threading a logger parameter through every call.
func WithContext(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext recovers the logger attached by WithContext, or a disabled
// logger if none was attached (never nil, never panics).
func FromContext(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return zerolog.Nop()
}
