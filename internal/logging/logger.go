// Package logging builds the structured loggers used across the
// simulation. Level and format come from the environment so runs on a
// cluster can switch to JSON output without a code change.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Fields aliases logrus.Fields for callers.
type Fields = logrus.Fields

// New creates a configured logger instance. SOCSIM_LOG_LEVEL selects
// the level (debug, info, warn, error; default info) and
// SOCSIM_LOG_FORMAT=json switches to the JSON formatter.
func New() *logrus.Logger {
	logger := logrus.New()
	if os.Getenv("SOCSIM_LOG_FORMAT") == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logger.SetLevel(levelFromEnv())
	return logger
}

// NewWithComponent creates a log entry whose records all carry a
// component field.
func NewWithComponent(component string) *logrus.Entry {
	return New().WithField("component", component)
}

func levelFromEnv() logrus.Level {
	switch os.Getenv("SOCSIM_LOG_LEVEL") {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
