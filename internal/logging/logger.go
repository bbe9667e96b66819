package logging

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/blocksync/internal/config"
)

// Init sets the log level and format based on the provided settings. All
// logging goes to stderr; client stdout is reserved for operation results.
func Init(settings config.Settings) {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
	setLogLevel(settings.LogLevel)
}

// setLogLevel sets the log level based on string input
func setLogLevel(logLevel string) {
	switch logLevel {
	case "trace":
		log.SetLevel(log.TraceLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	default:
		log.SetLevel(log.ErrorLevel)
	}
}
