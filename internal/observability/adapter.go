package observability

import "github.com/rs/zerolog/log"

// ZerologAdapter satisfies the small Logger interfaces used across the
// ingestpipe packages (ingest, pipeline, queue, status), so production
// wiring doesn't have to fall back to a no-op logger.
type ZerologAdapter struct{}

// NewZerologAdapter returns a ZerologAdapter bound to the global zerolog logger.
func NewZerologAdapter() ZerologAdapter { return ZerologAdapter{} }

func (ZerologAdapter) Info(msg string, fields map[string]any) {
	log.Info().Fields(fields).Msg(msg)
}

func (ZerologAdapter) Warn(msg string, fields map[string]any) {
	log.Warn().Fields(fields).Msg(msg)
}

func (ZerologAdapter) Error(msg string, fields map[string]any) {
	log.Error().Fields(fields).Msg(msg)
}
