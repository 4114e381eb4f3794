package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sociodent/sociodent/backend/internal/domain/entities"
	"github.com/sociodent/sociodent/backend/internal/domain/providers"
)

func TestMemoryEventBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := bus.Subscribe(ctx, providers.EventChannelAppointments)
	require.NoError(t, err)
	second, err := bus.Subscribe(ctx, providers.EventChannelAppointments)
	require.NoError(t, err)

	event := testEvent()
	require.NoError(t, bus.Publish(ctx, providers.EventChannelAppointments, event))

	for _, ch := range []<-chan *entities.AppointmentEvent{first, second} {
		select {
		case got := <-ch:
			assert.Equal(t, event.ID, got.ID)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestMemoryEventBus_UnsubscribeOnCancel(t *testing.T) {
	bus := NewMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.Subscribe(ctx, providers.EventChannelAppointments)
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	assert.NoError(t, bus.Publish(context.Background(), providers.EventChannelAppointments, testEvent()))
}

func TestMemoryEventBus_Close(t *testing.T) {
	bus := NewMemoryEventBus()
	ch, err := bus.Subscribe(context.Background(), providers.EventChannelAppointments)
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	_, open := <-ch
	assert.False(t, open)

	late, err := bus.Subscribe(context.Background(), providers.EventChannelAppointments)
	require.NoError(t, err)
	_, open = <-late
	assert.False(t, open)
}
