package entities

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentEventType represents the type of appointment event
type AppointmentEventType string

const (
	AppointmentEventCreated    AppointmentEventType = "appointment.created"
	AppointmentEventConfirmed  AppointmentEventType = "appointment.confirmed"
	AppointmentEventReassigned AppointmentEventType = "appointment.reassigned"
	AppointmentEventCancelled  AppointmentEventType = "appointment.cancelled"
)

// AppointmentEvent is published whenever an appointment changes state
type AppointmentEvent struct {
	ID            string               `json:"id"`
	EventType     AppointmentEventType `json:"event_type"`
	AppointmentID string               `json:"appointment_id"`
	DoctorID      string               `json:"doctor_id,omitempty"`
	Appointment   *Appointment         `json:"appointment"`
	Timestamp     time.Time            `json:"timestamp"`
}

// NewAppointmentEvent creates a new appointment event
func NewAppointmentEvent(eventType AppointmentEventType, appointment *Appointment) *AppointmentEvent {
	return &AppointmentEvent{
		ID:            uuid.New().String(),
		EventType:     eventType,
		AppointmentID: appointment.ID,
		DoctorID:      appointment.DoctorID,
		Appointment:   appointment,
		Timestamp:     time.Now(),
	}
}
