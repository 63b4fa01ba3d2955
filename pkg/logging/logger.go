// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for VaultSage components.
//
// Built on log/slog. Default output is stderr in text format, which
// keeps the CLI pipeline-friendly; the server enables JSON and an
// optional log file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Config configures the logger. The zero value writes Info and above
// to stderr as text.
type Config struct {
	// Level is the minimum level: "debug", "info", "warn", "error".
	Level string

	// JSON switches output to JSON format.
	JSON bool

	// LogDir, when set, also writes to {service}_{date}.log inside it.
	// The directory is created if needed.
	LogDir string

	// Service names the log file and is attached to every record.
	Service string

	// Writer overrides the primary destination. Defaults to stderr.
	Writer io.Writer
}

// Logger wraps slog with an owned optional log file.
//
// Thread Safety: Safe for concurrent use.
type Logger struct {
	*slog.Logger

	mu   sync.Mutex
	file *os.File
}

// New creates a logger from config.
func New(cfg Config) (*Logger, error) {
	primary := cfg.Writer
	if primary == nil {
		primary = os.Stderr
	}

	var file *os.File
	out := primary
	if cfg.LogDir != "" {
		dir := expandHome(cfg.LogDir)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("logging: create log dir: %w", err)
		}
		service := cfg.Service
		if service == "" {
			service = "vaultsage"
		}
		name := fmt.Sprintf("%s_%s.log", service, time.Now().UTC().Format("2006-01-02"))
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
		if err != nil {
			return nil, fmt.Errorf("logging: open log file: %w", err)
		}
		file = f
		out = io.MultiWriter(primary, f)
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler)
	if cfg.Service != "" {
		logger = logger.With(slog.String("service", cfg.Service))
	}
	return &Logger{Logger: logger, file: file}, nil
}

// Default returns a stderr text logger at Info level.
func Default() *Logger {
	logger, _ := New(Config{})
	return logger
}

// Close releases the log file, if any. Idempotent.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
