package utils

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log  *zap.Logger
	once sync.Once
)

// LogOptions selects the level and sinks of the process logger
type LogOptions struct {
	Debug bool
	// File, when set, receives a copy of every entry next to stderr
	File string
}

// NewLogger builds a JSON logger writing to stderr and, optionally, a file
func NewLogger(opts LogOptions) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if opts.Debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.Sampling = nil

	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if opts.File != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, opts.File)
		cfg.ErrorOutputPaths = append(cfg.ErrorOutputPaths, opts.File)
	}

	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.Named("xchainarb"), nil
}

// InitLogger installs the process logger. Only the first call has effect;
// a logger that cannot be built falls back to stderr only.
func InitLogger(opts LogOptions) (*zap.Logger, error) {
	var err error
	once.Do(func() {
		log, err = NewLogger(opts)
		if err != nil {
			log, _ = NewLogger(LogOptions{Debug: opts.Debug})
		}
	})
	return log, err
}

// GetLogger returns the process logger, installing a default one if needed
func GetLogger() *zap.Logger {
	l, _ := InitLogger(LogOptions{})
	return OrNop(l)
}

// CleanupLogger flushes any buffered log entries
func CleanupLogger() {
	if log != nil {
		_ = log.Sync()
	}
}

// OrNop returns l, or a no-op logger when l is nil
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
