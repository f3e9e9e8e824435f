// Package logger provides structured logging initialization for proxygate.
// It configures log/slog from LoggingConfig, supporting JSON and text output,
// configurable levels, and stdout, stderr or size-rotated file destinations.
// Credentials embedded in logged URLs are masked before they reach the
// output.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"proxygate/internal/models"
	"proxygate/internal/version"

	"gopkg.in/natefinch/lumberjack.v2"
)

const redacted = "[REDACTED]"

// secretKeys are attribute keys whose values are never written.
var secretKeys = map[string]struct{}{
	"authorization": {},
	"password":      {},
	"token":         {},
	"secret":        {},
}

// Setup creates the process logger. It returns the logger carrying the
// service and build attributes, a Closer for the rotating log file (nil for
// stdout/stderr), and any setup error. The caller closes the Closer.
func Setup(cfg models.LoggingConfig, ver version.Info) (*slog.Logger, io.Closer, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}

	writer, closer, err := openWriter(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log output: %w", err)
	}

	return New(writer, cfg.Format, level).With(
		slog.String("service", "proxygate"),
		slog.String("version", ver.Version),
		slog.String("git_commit", ver.GitCommit),
		slog.String("instance_id", ver.InstanceID),
	), closer, nil
}

// New builds a redacting logger writing to w. Debug loggers include the
// source location.
func New(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   level <= slog.LevelDebug,
		ReplaceAttr: redactAttr,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// redactAttr masks secret attributes and the password part of URLs such as
// proxy addresses and database DSNs.
func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if _, ok := secretKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}
	if a.Value.Kind() != slog.KindString {
		return a
	}
	s := a.Value.String()
	if !strings.Contains(s, "://") || !strings.Contains(s, "@") {
		return a
	}
	u, err := url.Parse(s)
	if err != nil || u.User == nil {
		return a
	}
	if _, hasPassword := u.User.Password(); !hasPassword {
		return a
	}
	return slog.String(a.Key, u.Redacted())
}

// parseLevel accepts debug, info, warn (or warning) and error in any case.
func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level: %q", level)
	}
}

// openWriter returns the writer for the configured output. File output goes
// through lumberjack; the file is probed once here so a bad path fails at
// startup rather than on the first log line.
func openWriter(cfg models.LoggingConfig) (io.Writer, io.Closer, error) {
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		return os.Stderr, nil, nil
	case "file":
		if cfg.FilePath == "" {
			return nil, nil, fmt.Errorf("file path is required when output is file")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.FilePath, err)
		}
		f.Close()

		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		return rotator, rotator, nil
	default:
		return os.Stdout, nil, nil
	}
}
