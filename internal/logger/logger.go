package logger

import (
	"io"
	"log/slog"
	"os"

	"docindex-platform/internal/config"
)

var Logger *slog.Logger

// InitLogger initializes structured logging based on configuration
func InitLogger(cfg *config.Config) {
	Logger = New(os.Stdout, cfg.GinMode)

	if cfg.GinMode == "debug" {
		Logger.Debug("Structured logging initialized", "level", slog.LevelDebug.String())
	} else {
		Logger.Info("Structured logging initialized", "level", slog.LevelInfo.String())
	}
}

// New builds a JSON logger; debug mode lowers the level and adds source info.
func New(w io.Writer, mode string) *slog.Logger {
	level := slog.LevelInfo
	if mode == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: mode == "debug", // Only add source in debug mode
	}

	return slog.New(slog.NewJSONHandler(w, opts))
}

// Or returns l, or the package logger, or a discarding logger, in that order.
func Or(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	if Logger != nil {
		return Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Helper functions for common log operations
func Info(msg string, args ...any) {
	if Logger != nil {
		Logger.Info(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if Logger != nil {
		Logger.Error(msg, args...)
	}
}

func Debug(msg string, args ...any) {
	if Logger != nil {
		Logger.Debug(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if Logger != nil {
		Logger.Warn(msg, args...)
	}
}
