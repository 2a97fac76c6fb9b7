package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogPublisher writes events to the log. It is used when no broker is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a publisher that logs every event.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "event-log").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, ev Event) error {
	p.logger.Info().
		Str("event_id", ev.ID.String()).
		Str("event_type", ev.Type).
		Str("key", ev.Key).
		Interface("payload", ev.Payload).
		Msg("domain event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }

var _ Publisher = (*LogPublisher)(nil)
