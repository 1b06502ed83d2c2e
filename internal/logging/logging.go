// Package logging bootstraps the process-wide zerolog logger.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global logger. Development gets a console writer at
// debug level; everything else gets leveled JSON on stderr.
func Setup(environment string) {
	zerolog.TimeFieldFormat = time.RFC3339
	switch strings.ToLower(strings.TrimSpace(environment)) {
	case "production", "prod":
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	default:
		log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	}
}

// ForRequest returns a logger scoped with request identifiers. Empty ids are
// skipped so log lines stay compact.
func ForRequest(requestID string, conversationID string) zerolog.Logger {
	lc := log.With()
	if requestID = strings.TrimSpace(requestID); requestID != "" {
		lc = lc.Str("request_id", requestID)
	}
	if conversationID = strings.TrimSpace(conversationID); conversationID != "" {
		lc = lc.Str("conversation_id", conversationID)
	}
	return lc.Logger()
}
