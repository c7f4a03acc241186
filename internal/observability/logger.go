package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger returns the process logger tagged with a component name. Call it
// after logging is configured so the configured sink is picked up.
func Logger(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}
