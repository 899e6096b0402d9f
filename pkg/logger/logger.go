// Package logger provides a thin wrapper around logrus with a named-component
// convention shared by every service in this repository.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is a named component logger.
type Logger struct {
	entry *logrus.Entry
}

// NewDefault returns a logger for the given component writing to stderr at
// info level. The component name appears on every line.
func NewDefault(component string) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{entry: l.WithField("component", component)}
}

// New returns a logger for the given component at an explicit level.
func New(component string, level string) *Logger {
	lg := NewDefault(component)
	if parsed, err := logrus.ParseLevel(level); err == nil {
		lg.entry.Logger.SetLevel(parsed)
	}
	return lg
}

// WithField returns a logger with an additional structured field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithError returns a logger with the error attached as a field.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

func (l *Logger) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Info(args ...interface{})                  { l.entry.Info(args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warn(args ...interface{})                  { l.entry.Warn(args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
