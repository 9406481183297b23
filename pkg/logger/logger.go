// Package logger sets up the zap logger used for diagnostics.
//
// Logs go to stderr unless a file path is configured, in which case they are
// written to a lumberjack-rotated file. Stdout is left for extracted data.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ccollicutt/restplot/pkg/config"
)

type contextKey string

// LoggerKey is the context key under which a logger is stored.
const LoggerKey = contextKey("logger")

var (
	mu           sync.RWMutex
	globalLogger *zap.SugaredLogger
)

// New builds a logger from cfg. When cfg.Path is empty, entries go to w.
func New(cfg config.LoggingConfig, w io.Writer) (*zap.SugaredLogger, error) {
	level, err := zapcore.ParseLevel(levelOrDefault(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	writeSyncer := zapcore.AddSync(w)
	if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		writeSyncer = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	core := zapcore.NewCore(encoder, writeSyncer, level)
	return zap.New(core).Sugar(), nil
}

// Init builds the global logger, writing to stderr unless cfg.Path is set.
func Init(cfg config.LoggingConfig) error {
	l, err := New(cfg, os.Stderr)
	if err != nil {
		return err
	}

	mu.Lock()
	globalLogger = l
	mu.Unlock()

	l.Debugw("logging initialized", "level", levelOrDefault(cfg.Level), "path", cfg.Path)
	return nil
}

// Sync flushes any buffered log entries.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}

// Get returns the logger from ctx, or the global logger.
// Before Init it returns a logger writing warnings and above to stderr.
func Get(ctx context.Context) *zap.SugaredLogger {
	if ctx != nil {
		if l, ok := ctx.Value(LoggerKey).(*zap.SugaredLogger); ok {
			return l
		}
	}

	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	fallback, err := New(config.LoggingConfig{Level: "warn"}, os.Stderr)
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return fallback
}

// WithContext adds a logger to ctx.
func WithContext(ctx context.Context, l *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, LoggerKey, l)
}

func levelOrDefault(level string) string {
	if level == "" {
		return config.DefaultLogLevel
	}
	return level
}
