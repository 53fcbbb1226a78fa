// logutil.go - slog-Hilfen fuer hypertile
//
// Dieses Modul enthaelt:
// - LevelTrace: zusaetzliches Level unterhalb von Debug
// - NewLogger: Text-Logger mit lesbarem TRACE-Level
// - Trace: Trace-Ausgabe ueber den Default-Logger
package logutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
)

// LevelTrace liegt unterhalb von slog.LevelDebug (HYPERTILE_DEBUG=2)
const LevelTrace slog.Level = -8

// NewLogger erzeugt einen Text-Logger fuer w mit dem gegebenen Level
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				if level, ok := attr.Value.Any().(slog.Level); ok && level == LevelTrace {
					attr.Value = slog.StringValue("TRACE")
				}
			case slog.SourceKey:
				// nur Dateiname statt vollem Pfad
				if source, ok := attr.Value.Any().(*slog.Source); ok {
					source.File = filepath.Base(source.File)
				}
			}
			return attr
		},
	}))
}

// Trace schreibt eine Nachricht auf TRACE-Level in den Default-Logger
func Trace(msg string, args ...any) {
	TraceContext(context.TODO(), slog.Default(), msg, args...)
}

// TraceContext schreibt eine Nachricht auf TRACE-Level in logger
func TraceContext(ctx context.Context, logger *slog.Logger, msg string, args ...any) {
	logger.Log(ctx, LevelTrace, msg, args...)
}
