package entities

import "time"

// NotificationChannel represents the delivery channel
type NotificationChannel string

const (
	ChannelWhatsApp NotificationChannel = "whatsapp"
)

// NotificationType represents the notification purpose
type NotificationType string

const (
	NotificationBookingReceived     NotificationType = "booking_received"
	NotificationBookingConfirmation NotificationType = "booking_confirmation"
	NotificationReassigned          NotificationType = "reassigned"
	NotificationCancellation        NotificationType = "cancellation"
)

// NotificationTypeForEvent maps an appointment event to the patient message it triggers
func NotificationTypeForEvent(eventType AppointmentEventType) (NotificationType, bool) {
	switch eventType {
	case AppointmentEventCreated:
		return NotificationBookingReceived, true
	case AppointmentEventConfirmed:
		return NotificationBookingConfirmation, true
	case AppointmentEventReassigned:
		return NotificationReassigned, true
	case AppointmentEventCancelled:
		return NotificationCancellation, true
	}
	return "", false
}

// NotificationStatus represents the delivery status
type NotificationStatus string

const (
	NotificationStatusSent   NotificationStatus = "sent"
	NotificationStatusFailed NotificationStatus = "failed"
)

// AppointmentNotification records one delivery attempt
type AppointmentNotification struct {
	ID               string              `json:"id" db:"id"`
	AppointmentID    string              `json:"appointment_id" db:"appointment_id"`
	NotificationType NotificationType    `json:"notification_type" db:"notification_type"`
	Channel          NotificationChannel `json:"channel" db:"channel"`
	Recipient        string              `json:"recipient" db:"recipient"`
	Status           NotificationStatus  `json:"status" db:"status"`
	MessageID        *string             `json:"message_id,omitempty" db:"message_id"`
	ErrorMessage     *string             `json:"error_message,omitempty" db:"error_message"`
	CreatedAt        time.Time           `json:"created_at" db:"created_at"`
}
