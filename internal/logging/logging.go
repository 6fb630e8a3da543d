// Package logging builds the zap logger shared by every shake command.
//
// Terminal output goes to stderr through a compact console encoder; it is
// quiet (warnings and errors only) unless --verbose is given. When a log
// file is configured, every entry at the configured level is also written
// there as JSON through a lumberjack rotating writer.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/shinji-kodama/shake/internal/config"
)

// New creates the logger. The returned close function flushes and closes
// the log file, if any; it is safe to call when no file is configured.
func New(stderr io.Writer, cfg config.LogConfig, verbose bool) (*zap.Logger, func() error, error) {
	consoleLevel := zapcore.WarnLevel
	if verbose {
		consoleLevel = zapcore.DebugLevel
	}

	consoleCfg := zapcore.EncoderConfig{
		MessageKey:       "msg",
		LevelKey:         "level",
		NameKey:          "logger",
		EncodeLevel:      zapcore.LowercaseLevelEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " ",
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.AddSync(stderr), consoleLevel),
	}

	closeFn := func() error { return nil }

	if cfg.File != "" {
		var fileLevel zapcore.Level
		if err := fileLevel.UnmarshalText([]byte(cfg.Level)); err != nil {
			fileLevel = zapcore.InfoLevel
		}

		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		fileWriter := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}

		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.TimeKey = "ts"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderCfg.EncodeLevel = zapcore.LowercaseLevelEncoder

		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.AddSync(fileWriter),
			fileLevel,
		))
		closeFn = fileWriter.Close
	}

	logger := zap.New(zapcore.NewTee(cores...)).Named("shake")
	return logger, func() error {
		_ = logger.Sync()
		return closeFn()
	}, nil
}
