package logger

import (
	"io"
	"log/slog"
)

// Constants for logging levels
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Logger interface defines the logging contract
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	With(args ...any) Logger
}

// NewText creates a text logger writing to w with the specified level
func NewText(w io.Writer, level string) Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(level),
		AddSource:   true,
		ReplaceAttr: trimSourcePath,
	}

	return &slogLogger{logger: slog.New(slog.NewTextHandler(w, opts))}
}

// NewJSON creates a JSON logger writing to w with the specified level
func NewJSON(w io.Writer, level string) Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(level),
		AddSource:   true,
		ReplaceAttr: trimSourcePath,
	}

	return &slogLogger{logger: slog.New(slog.NewJSONHandler(w, opts))}
}

// NewNoOp creates a logger that discards all log messages
func NewNoOp() Logger {
	return &slogLogger{logger: slog.New(slog.DiscardHandler)}
}
