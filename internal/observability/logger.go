package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger builds the process logger tagged with the member id and installs
// it as the global zerolog logger.
func InitLogger(member string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).With().Timestamp().Str("member", member).Logger()
	log.Logger = logger
	return logger
}
