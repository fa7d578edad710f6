package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	log  *logrus.Logger
	once sync.Once
)

// Init configures the process logger. level is one of debug, info, warn,
// error (case-insensitive, defaults to info). format is "json" or "text".
func Init(level string, format string) {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	switch strings.ToLower(format) {
	case "text":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	default:
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
		l.Warnf("invalid log level '%s', defaulting to info", level)
	}
	l.SetLevel(parsed)

	log = l
}

// SetOutput redirects the logger, mostly for tests.
func SetOutput(w io.Writer) {
	GetLogger().SetOutput(w)
}

func GetLogger() *logrus.Logger {
	once.Do(func() {
		if log == nil {
			Init("info", "json")
		}
	})
	return log
}

func Debugf(format string, args ...any) {
	GetLogger().Debugf(format, args...)
}

func Infof(format string, args ...any) {
	GetLogger().Infof(format, args...)
}

func Warnf(format string, args ...any) {
	GetLogger().Warnf(format, args...)
}

func Errorf(format string, args ...any) {
	GetLogger().Errorf(format, args...)
}

func Fatalf(format string, args ...any) {
	GetLogger().Fatalf(format, args...)
}

func WithField(key string, value any) *logrus.Entry {
	return GetLogger().WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return GetLogger().WithFields(fields)
}
