package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New creates a logger writing to stderr at the given level
func New(level string, timestamps bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: !timestamps,
		FullTimestamp:    timestamps,
	})
	SetLevel(log, level)
	return log
}

// SetLevel sets the logging level (debug, info, warn, error)
func SetLevel(log *logrus.Logger, level string) {
	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
		log.Warn("Unknown log level, defaulting to info")
	}
}
