package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger returns the global logger tagged with the component name. Output
// format and level are owned by the logging package.
func Logger(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}
