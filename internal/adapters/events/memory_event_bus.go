package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sociodent/sociodent/backend/internal/domain/entities"
	"github.com/sociodent/sociodent/backend/internal/domain/providers"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/observability"
)

// MemoryEventBus fans events out to subscribers in the same process.
// It stands in for the Redis bus when Redis is unavailable.
type MemoryEventBus struct {
	logger      *zerolog.Logger
	subscribers map[string]map[chan *entities.AppointmentEvent]struct{}
	mu          sync.RWMutex
	closed      bool
}

var _ providers.EventBus = (*MemoryEventBus)(nil)

// NewMemoryEventBus creates an in-process event bus
func NewMemoryEventBus() *MemoryEventBus {
	return &MemoryEventBus{
		logger:      observability.GetLogger(),
		subscribers: make(map[string]map[chan *entities.AppointmentEvent]struct{}),
	}
}

// Publish delivers event to every current subscriber of channel, skipping full ones
func (b *MemoryEventBus) Publish(ctx context.Context, channel string, event *entities.AppointmentEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for subscriber := range b.subscribers[channel] {
		select {
		case subscriber <- event:
		default:
			b.logger.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("subscriber channel full, skipping event")
		}
	}
	return nil
}

// Subscribe returns a channel that receives events until ctx is done
func (b *MemoryEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AppointmentEvent, error) {
	eventChan := make(chan *entities.AppointmentEvent, 100)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(eventChan)
		return eventChan, nil
	}
	if b.subscribers[channel] == nil {
		b.subscribers[channel] = make(map[chan *entities.AppointmentEvent]struct{})
	}
	b.subscribers[channel][eventChan] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.removeSubscriber(channel, eventChan)
	}()

	return eventChan, nil
}

func (b *MemoryEventBus) removeSubscriber(channel string, eventChan chan *entities.AppointmentEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers, ok := b.subscribers[channel]
	if !ok {
		return
	}
	if _, ok := subscribers[eventChan]; !ok {
		return
	}
	delete(subscribers, eventChan)
	close(eventChan)
	if len(subscribers) == 0 {
		delete(b.subscribers, channel)
	}
}

// Close closes every subscription
func (b *MemoryEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for channel, subscribers := range b.subscribers {
		for subscriber := range subscribers {
			close(subscriber)
		}
		delete(b.subscribers, channel)
	}
	b.closed = true
	return nil
}
