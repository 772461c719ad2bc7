package obs

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the shared structured logger. Production emits JSON lines;
// development keeps the human-readable text format.
func NewLogger(env, level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if env == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// NopLogger returns a logger that discards everything. Test use only.
func NopLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
