// Package logging builds the zap loggers used by the CLI and the monitor
// daemon. Interactive subcommands log human-readable lines to stderr; the
// long-running monitor writes JSON to a rotated file so its output survives
// restarts and can be shipped.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger construction.
type Options struct {
	Level      string // debug, info, warn, error
	FilePath   string // when set, JSON output with rotation instead of stderr
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultOptions returns stderr console logging at info level.
func DefaultOptions() Options {
	return Options{Level: "info", MaxSizeMB: 50, MaxBackups: 5, MaxAgeDays: 30}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}
}

// New builds a logger per opts. With FilePath unset it writes console lines
// to stderr, which keeps stdout clean for subcommand output and report
// rendering. With FilePath set it writes rotated JSON, the shape the monitor
// daemon runs with.
func New(opts Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("logging: invalid level %q: %w", opts.Level, err)
	}

	if opts.FilePath == "" {
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig()),
			zapcore.Lock(os.Stderr),
			level,
		)
		return zap.New(core), nil
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.FilePath,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(rotator),
		level,
	)
	return zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel)), nil
}
