package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sociodent/sociodent/backend/internal/domain/entities"
	"github.com/sociodent/sociodent/backend/internal/domain/providers"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/observability"
)

var notificationTemplates = map[entities.NotificationType]string{
	entities.NotificationBookingReceived: "Hi {{patient_name}}, we received your {{consultation_type}} consultation request for " +
		"{{scheduled_date}} at {{scheduled_time}}. We will confirm your dentist shortly.",
	entities.NotificationBookingConfirmation: "Hi {{patient_name}}, your appointment on {{scheduled_date}} at {{scheduled_time}} " +
		"is confirmed with Dr. {{doctor_name}} ({{doctor_specialization}}).",
	entities.NotificationReassigned: "Hi {{patient_name}}, your appointment on {{scheduled_date}} at {{scheduled_time}} " +
		"is now with Dr. {{doctor_name}} ({{doctor_specialization}}).",
	entities.NotificationCancellation: "Hi {{patient_name}}, your appointment request for {{scheduled_date}} at " +
		"{{scheduled_time}} has been cancelled.",
}

const insertNotificationQuery = `
	INSERT INTO appointment_notifications
	(id, appointment_id, notification_type, channel, recipient, status, message_id, error_message, created_at)
	VALUES (:id, :appointment_id, :notification_type, :channel, :recipient, :status, :message_id, :error_message, :created_at)
`

// NotificationService sends patient messages for appointment events and
// records every attempt. db may be nil, in which case nothing is recorded.
type NotificationService struct {
	db       *sqlx.DB
	notifier providers.Notifier
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewNotificationService creates a new notification service
func NewNotificationService(db *sqlx.DB, notifier providers.Notifier, metrics *observability.Metrics) *NotificationService {
	return &NotificationService{
		db:       db,
		notifier: notifier,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start subscribes to appointment events and handles them until ctx is done
// or the bus closes the subscription.
func (n *NotificationService) Start(ctx context.Context, events providers.EventBus) error {
	ch, err := events.Subscribe(ctx, providers.EventChannelAppointments)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-ch:
				if !ok {
					return
				}
				_ = n.HandleEvent(ctx, event)
			}
		}
	}()
	return nil
}

// HandleEvent delivers the message for event, if it has one. Failures are
// logged and recorded but never block the originating operation.
func (n *NotificationService) HandleEvent(ctx context.Context, event *entities.AppointmentEvent) error {
	if event == nil || event.Appointment == nil {
		return nil
	}
	logger := observability.LoggerFromContext(ctx)

	notifType, ok := entities.NotificationTypeForEvent(event.EventType)
	if !ok {
		return nil
	}
	appointment := event.Appointment
	if appointment.PatientPhone == "" {
		logger.Debug().Str("appointment_id", appointment.ID).Msg("no patient phone, skipping notification")
		return nil
	}

	body := renderNotification(notificationTemplates[notifType], appointment)

	record := &entities.AppointmentNotification{
		ID:               uuid.New().String(),
		AppointmentID:    appointment.ID,
		NotificationType: notifType,
		Channel:          entities.ChannelWhatsApp,
		Recipient:        appointment.PatientPhone,
		CreatedAt:        n.now(),
	}

	messageID, sendErr := n.notifier.SendText(ctx, appointment.PatientPhone, body)
	if sendErr != nil {
		errMsg := sendErr.Error()
		record.Status = entities.NotificationStatusFailed
		record.ErrorMessage = &errMsg
		logger.Warn().Err(sendErr).
			Str("appointment_id", appointment.ID).
			Str("notification_type", string(notifType)).
			Msg("failed to send notification")
	} else {
		record.Status = entities.NotificationStatusSent
		record.MessageID = &messageID
	}
	observability.RecordNotification(ctx, n.metrics, string(event.EventType), sendErr == nil)

	if err := n.recordAttempt(ctx, record); err != nil {
		logger.Error().Err(err).Str("appointment_id", appointment.ID).Msg("failed to record notification attempt")
		return err
	}
	return sendErr
}

func (n *NotificationService) recordAttempt(ctx context.Context, record *entities.AppointmentNotification) error {
	if n.db == nil {
		return nil
	}
	_, err := n.db.NamedExecContext(ctx, insertNotificationQuery, record)
	return err
}

// ListForAppointment returns the recorded delivery attempts, oldest first
func (n *NotificationService) ListForAppointment(ctx context.Context, appointmentID string) ([]*entities.AppointmentNotification, error) {
	if n.db == nil {
		return []*entities.AppointmentNotification{}, nil
	}
	var records []*entities.AppointmentNotification
	query := `SELECT id, appointment_id, notification_type, channel, recipient, status, message_id, error_message, created_at
		FROM appointment_notifications WHERE appointment_id = $1 ORDER BY created_at ASC`
	if err := n.db.SelectContext(ctx, &records, query, appointmentID); err != nil {
		return nil, err
	}
	return records, nil
}

// renderNotification replaces placeholders in template
func renderNotification(template string, a *entities.Appointment) string {
	scheduledDate := a.Date
	if d, err := entities.ParseDate(a.Date); err == nil {
		scheduledDate = d.Format("Monday, January 2, 2006")
	}

	replacements := map[string]string{
		"{{patient_name}}":          a.PatientName,
		"{{consultation_type}}":     string(a.ConsultationType),
		"{{scheduled_date}}":        scheduledDate,
		"{{scheduled_time}}":        a.Time.String(),
		"{{doctor_name}}":           a.DoctorName,
		"{{doctor_specialization}}": a.DoctorSpecialization,
	}

	result := template
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}
	return result
}
