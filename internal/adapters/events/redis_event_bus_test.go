package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sociodent/sociodent/backend/internal/domain/entities"
	"github.com/sociodent/sociodent/backend/internal/domain/providers"
)

func testEvent() *entities.AppointmentEvent {
	appt := &entities.Appointment{
		ID:       "appt-1",
		Status:   entities.AppointmentStatusConfirmed,
		DoctorID: "d1",
		Date:     "2025-03-10",
	}
	return entities.NewAppointmentEvent(entities.AppointmentEventConfirmed, appt)
}

func TestRedisEventBus_Publish(t *testing.T) {
	db, mock := redismock.NewClientMock()
	bus := NewRedisEventBus(db)

	event := testEvent()
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	mock.ExpectPublish(providers.EventChannelAppointments, payload).SetVal(1)

	err = bus.Publish(context.Background(), providers.EventChannelAppointments, event)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisEventBus_PublishError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	bus := NewRedisEventBus(db)

	event := testEvent()
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	mock.ExpectPublish(providers.EventChannelAppointments, payload).SetErr(errors.New("connection refused"))

	err = bus.Publish(context.Background(), providers.EventChannelAppointments, event)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish event")
}

func TestRedisEventBus_CloseWithoutSubscriptions(t *testing.T) {
	db, _ := redismock.NewClientMock()
	bus := NewRedisEventBus(db)

	assert.NoError(t, bus.Close())
}
