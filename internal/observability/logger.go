package observability

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// OperationLogger returns a child of the global logger tagged with a fresh
// operation id, so every event of one top-level operation correlates.
func OperationLogger(operation string) zerolog.Logger {
	return log.Logger.With().
		Str("op", operation).
		Str("op_id", uuid.NewString()).
		Logger()
}
