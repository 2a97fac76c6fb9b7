package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Dispatcher decouples callers from the broker: Publish enqueues and Run
// delivers on its own goroutine. Events are dropped, with a warning, when the
// queue is full.
type Dispatcher struct {
	next    Publisher
	queue   chan Event
	timeout time.Duration
	logger  zerolog.Logger
}

// NewDispatcher creates a dispatcher in front of next with room for buffer events.
func NewDispatcher(next Publisher, buffer int, logger zerolog.Logger) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	return &Dispatcher{
		next:    next,
		queue:   make(chan Event, buffer),
		timeout: 5 * time.Second,
		logger:  logger.With().Str("component", "event-dispatcher").Logger(),
	}
}

// Publish enqueues ev without blocking.
func (d *Dispatcher) Publish(_ context.Context, ev Event) error {
	select {
	case d.queue <- ev:
	default:
		d.logger.Warn().Str("event_type", ev.Type).Str("key", ev.Key).Msg("event queue full, dropping event")
	}
	return nil
}

// Run delivers queued events until ctx is done, then flushes what is left.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return nil
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.next.Publish(ctx, ev); err != nil {
		d.logger.Error().Err(err).Str("event_id", ev.ID.String()).Str("event_type", ev.Type).Msg("failed to publish event")
	}
}

// Close closes the underlying publisher.
func (d *Dispatcher) Close() error {
	return d.next.Close()
}

var _ Publisher = (*Dispatcher)(nil)
