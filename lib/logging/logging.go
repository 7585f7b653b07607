// Package logging provides the leveled logging front used by all syskit
// packages.
//
// Calls take a "who" first argument - the object the message is about - and
// prefix its String() to the message, so related messages group together in
// the output.
package logging

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

var logger = func() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
	})
	return l
}()

// SetLevel sets the logging level from its name (debug, info, warning,
// error).
func SetLevel(level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("unknown log level %q: %w", level, err)
	}
	logger.SetLevel(parsed)
	return nil
}

// SetOutput redirects the log output, eg for tests.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// prefix formats who into the message prefix, or nothing if who is nil
func prefix(who interface{}, text string) string {
	if who == nil {
		return text
	}
	return fmt.Sprintf("%v: %s", who, text)
}

// Debugf writes debug level output for who
func Debugf(who interface{}, format string, args ...interface{}) {
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		logger.Debug(prefix(who, fmt.Sprintf(format, args...)))
	}
}

// Infof writes info level output for who
func Infof(who interface{}, format string, args ...interface{}) {
	logger.Info(prefix(who, fmt.Sprintf(format, args...)))
}

// Errorf writes error level output for who
func Errorf(who interface{}, format string, args ...interface{}) {
	logger.Error(prefix(who, fmt.Sprintf(format, args...)))
}
