// Package logging builds the process logger: a console core on stderr and,
// when a directory is given, a rotated JSON file core.
package logging

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level string // debug, info, warn, error
	Dir   string // empty disables the file core
	Name  string // file name prefix, e.g. the command
	Color *bool  // nil detects a terminal on stderr
}

func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

// New returns the logger and a flush func to defer.
func New(cfg Config) (*zap.Logger, func(), error) {
	level := zap.NewAtomicLevelAt(ParseLevel(cfg.Level))

	color := term.IsTerminal(int(os.Stderr.Fd()))
	if cfg.Color != nil {
		color = *cfg.Color
	}
	consoleEnc := zap.NewDevelopmentEncoderConfig()
	consoleEnc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	consoleEnc.EncodeLevel = zapcore.CapitalLevelEncoder
	if color {
		consoleEnc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEnc), zapcore.Lock(os.Stderr), level),
	}

	var rotator *lumberjack.Logger
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, nil, err
		}
		name := cfg.Name
		if name == "" {
			name = "swapper"
		}
		rotator = &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, name+".log"),
			MaxSize:    50, // MB
			MaxBackups: 10,
			MaxAge:     30, // days
			Compress:   true,
		}
		fileEnc := zap.NewProductionEncoderConfig()
		fileEnc.TimeKey = "timestamp"
		fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), zapcore.AddSync(rotator), level))
	}

	log := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	flush := func() {
		_ = log.Sync()
		if rotator != nil {
			_ = rotator.Close()
		}
	}
	return log, flush, nil
}
