package utils

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/cppla/anonid/config"
)

var (
	// Logger is the global structured logger
	Logger = zap.NewNop()
	// Sugar is a sugared logger for convenience
	Sugar = Logger.Sugar()
)

// InitLogger builds the application logger (stdout + optional rolling file) and installs it
// as the package globals.
func InitLogger(cfg config.AppConfig) error {
	l, err := NewRollingFileLogger(cfg.LogPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err != nil {
		return err
	}
	Logger = l
	Sugar = Logger.Sugar()
	zap.ReplaceGlobals(Logger)
	return nil
}

// NewRollingFileLogger returns a JSON logger writing to stdout and, when path is set, to a
// lumberjack rotated file.
func NewRollingFileLogger(path, level string, maxSizeMB, maxBackups, maxAgeDays int, compress bool) (*zap.Logger, error) {
	lvl := parseLevel(level)
	enabler := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= lvl })
	enc := zapcore.NewJSONEncoder(encoderConfig())

	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), enabler)}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		lj := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    nz(maxSizeMB, 100), // megabytes
			MaxBackups: nz(maxBackups, 3),
			MaxAge:     nz(maxAgeDays, 7), // days
			Compress:   compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(lj), enabler))
	}

	opts := []zap.Option{zap.AddCaller()}
	if level == "debug" {
		opts = append(opts, zap.Development())
	}
	return zap.New(zapcore.NewTee(cores...), opts...), nil
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     timeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format("2006-01-02 15:04:05.000"))
}

func parseLevel(s string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func nz(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
