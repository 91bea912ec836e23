package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapio"
)

func setupLogger(verbose bool) error {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = !verbose
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)
	return nil
}

// progressWriter forwards engine progress output to log, one entry per line.
// Close flushes a trailing partial line.
func progressWriter(log *zap.SugaredLogger) *zapio.Writer {
	return &zapio.Writer{Log: log.Desugar(), Level: zapcore.InfoLevel}
}
