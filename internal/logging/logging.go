package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps logrus with file rotation plus console output.
type Logger struct {
	logger *logrus.Logger
	file   *lumberjack.Logger
}

// New creates a Logger writing to logs/<service>.log (rotated at 10MB, five
// backups kept) and stdout.
func New(service string) (*Logger, error) {
	if err := os.MkdirAll("logs", 0755); err != nil {
		return nil, err
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join("logs", service+".log"),
		MaxSize:    10, // MB
		MaxBackups: 5,
		Compress:   true,
	}

	l := logrus.New()
	l.SetOutput(io.MultiWriter(file, os.Stdout))
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if os.Getenv("LOG_LEVEL") == "debug" {
		l.SetLevel(logrus.DebugLevel)
	}

	return &Logger{logger: l, file: file}, nil
}

// NewNop returns a logger that discards everything, for tests.
func NewNop() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{logger: l}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logger.Fatalf(format, args...)
}

func (l *Logger) Close() {
	if l.file != nil {
		_ = l.file.Close()
	}
}
