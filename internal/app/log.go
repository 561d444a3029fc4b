package app

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"photovault/internal/config"
	"photovault/internal/gallery"
)

// newEncoder returns a JSON or console encoder. Console lines look like:
//
//	2024-06-01T10:00:00.000Z	INFO	backup created	{"op": "20240601T100000Z", "id": "..."}
func newEncoder(json bool) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	if json {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

// parseLevel maps the configured level name to a zap level. Empty means info.
func parseLevel(name string) (zapcore.Level, error) {
	if name == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}

// newLogger creates a structured logger that writes to both logDir/pv.log and
// stderr. Every entry carries the operation id. It returns the logger, the
// open log file (for cleanup), and any error.
func newLogger(logDir, opID string, cfg config.LogConfig) (*zap.SugaredLogger, *os.File, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "pv.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	enc := newEncoder(cfg.JSON)
	enabled := zap.NewAtomicLevelAt(level)
	core := zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.AddSync(f), enabled),
		zapcore.NewCore(enc.Clone(), zapcore.Lock(os.Stderr), enabled),
	)
	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return logger.Sugar().With("op", opID), f, nil
}

// zapAdapter wraps *zap.SugaredLogger to satisfy the gallery.Logger interface.
type zapAdapter struct {
	s *zap.SugaredLogger
}

var _ gallery.Logger = (*zapAdapter)(nil)

func (a *zapAdapter) Debug(msg string, args ...any) { a.s.Debugw(msg, args...) }
func (a *zapAdapter) Info(msg string, args ...any)  { a.s.Infow(msg, args...) }
func (a *zapAdapter) Warn(msg string, args ...any)  { a.s.Warnw(msg, args...) }
func (a *zapAdapter) Error(msg string, args ...any) { a.s.Errorw(msg, args...) }
