// Package log holds the process logger. Library code asks for Logger() and attaches fields;
// binaries call Init once with their configuration.
package log

import (
	"io"
	"os"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
)

var logger = newDefaultLogger()

func newDefaultLogger() *logrus.Logger {
	out := logrus.New()
	out.SetOutput(os.Stderr)
	out.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:          true,
		TimestampFormat:        time.DateTime,
		DisableLevelTruncation: true,
	})
	out.SetLevel(logrus.InfoLevel)
	return out
}

// Config configures the process logger.
type Config struct {
	Filename   string `mapstructure:"filename"`    // rotating log file, empty for none
	MaxSize    int    `mapstructure:"max_size"`    // megabytes before rotation
	MaxBackups int    `mapstructure:"max_backups"` // rotated files to keep
	MaxAge     int    `mapstructure:"max_age"`     // days to keep rotated files
	Compress   bool   `mapstructure:"compress"`    // gzip rotated files
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Console    bool   `mapstructure:"console"`     // also log to stderr
}

// Init reconfigures the process logger. An unknown level falls back to info.
func Init(cfg Config) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, os.Stderr)
	}
	if cfg.Filename != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}
}

// Logger returns the process logger.
func Logger() *logrus.Logger {
	return logger
}

// WithFields is a shortcut for Logger().WithFields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return logger.WithFields(fields)
}
