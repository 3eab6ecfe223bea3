// Package logger provides the single process-wide structured logger used by
// every package in this module.
package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	once sync.Once
	sugar *zap.SugaredLogger
)

// Logger returns the process-wide sugared logger, building it on first use
// from the WIT_OPT environment variable's "debug" / "quiet" tokens.
func Logger() *zap.SugaredLogger {
	once.Do(func() {
		sugar = build()
	})
	return sugar
}

func build() *zap.SugaredLogger {
	opt := strings.ToLower(os.Getenv("WIT_OPT"))

	var cfg zap.Config
	switch {
	case strings.Contains(opt, "quiet"):
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	case strings.Contains(opt, "debug") || strings.Contains(opt, "verbose"):
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}
	cfg.DisableStacktrace = true
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = ""
	cfg.EncoderConfig.CallerKey = ""

	l, err := cfg.Build()
	if err != nil {
		// Fall back to a no-op logger rather than panic at import time.
		l = zap.NewNop()
	}
	return l.Sugar()
}

// Sync flushes any buffered log entries. Callers should defer this from
// main().
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}
