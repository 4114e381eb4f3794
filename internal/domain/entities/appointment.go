package entities

import (
	"fmt"
	"strings"
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// ConsultationType determines where the consultation takes place
type ConsultationType string

const (
	ConsultationVirtual ConsultationType = "virtual"
	ConsultationHome    ConsultationType = "home"
	ConsultationClinic  ConsultationType = "clinic"
)

// ParseConsultationType validates a consultation type from the wire
func ParseConsultationType(s string) (ConsultationType, error) {
	switch ct := ConsultationType(strings.ToLower(strings.TrimSpace(s))); ct {
	case ConsultationVirtual, ConsultationHome, ConsultationClinic:
		return ct, nil
	default:
		return "", fmt.Errorf("invalid consultation type %q", s)
	}
}

// Appointment represents a patient's booking, pending until a doctor is assigned
type Appointment struct {
	ID                      string            `json:"id" db:"id"`
	PatientID               string            `json:"patient_id" db:"patient_id"`
	PatientName             string            `json:"patient_name" db:"patient_name"`
	PatientEmail            string            `json:"patient_email" db:"patient_email"`
	PatientPhone            string            `json:"patient_phone" db:"patient_phone"`
	ConsultationType        ConsultationType  `json:"consultation_type" db:"consultation_type"`
	Date                    string            `json:"date" db:"date"`
	Time                    ClockTime         `json:"time" db:"time"`
	Area                    string            `json:"area" db:"area"`
	Symptoms                string            `json:"symptoms" db:"symptoms"`
	PreferredSpecialization string            `json:"preferred_specialization,omitempty" db:"preferred_specialization"`
	Status                  AppointmentStatus `json:"status" db:"status"`
	DoctorID                string            `json:"doctor_id,omitempty" db:"doctor_id"`
	DoctorName              string            `json:"doctor_name,omitempty" db:"doctor_name"`
	DoctorSpecialization    string            `json:"doctor_specialization,omitempty" db:"doctor_specialization"`
	Version                 int               `json:"version" db:"version"`
	CreatedAt               time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt               time.Time         `json:"updated_at" db:"updated_at"`
}

// Weekday returns the weekday of the requested date
func (a *Appointment) Weekday() (time.Weekday, error) {
	d, err := ParseDate(a.Date)
	if err != nil {
		return 0, err
	}
	return d.Weekday(), nil
}

// Validate checks the fields a booking must carry
func (a *Appointment) Validate() error {
	if strings.TrimSpace(a.PatientName) == "" {
		return fmt.Errorf("patient name is required")
	}
	if strings.TrimSpace(a.PatientEmail) == "" && strings.TrimSpace(a.PatientPhone) == "" {
		return fmt.Errorf("patient email or phone is required")
	}
	if _, err := ParseConsultationType(string(a.ConsultationType)); err != nil {
		return err
	}
	if _, err := ParseDate(a.Date); err != nil {
		return err
	}
	if a.Time < 0 || a.Time >= EndOfDay {
		return fmt.Errorf("invalid time %d", a.Time)
	}
	if a.ConsultationType == ConsultationHome && strings.TrimSpace(a.Area) == "" {
		return fmt.Errorf("area is required for home consultations")
	}
	return nil
}

// AssignDoctor confirms the appointment with d
func (a *Appointment) AssignDoctor(d *Doctor, now time.Time) {
	a.Status = AppointmentStatusConfirmed
	a.DoctorID = d.ID
	a.DoctorName = d.Name
	a.DoctorSpecialization = d.Specialization
	a.UpdatedAt = now
}

// AuditAction names an entry in an appointment's audit trail
type AuditAction string

const (
	AuditActionReassigned AuditAction = "reassigned"
)

// AuditEntry is one append-only record of an appointment change
type AuditEntry struct {
	ID               string      `json:"id" db:"id"`
	AppointmentID    string      `json:"appointment_id" db:"appointment_id"`
	Action           AuditAction `json:"action" db:"action"`
	PreviousDoctorID string      `json:"previous_doctor_id" db:"previous_doctor_id"`
	NewDoctorID      string      `json:"new_doctor_id" db:"new_doctor_id"`
	Actor            string      `json:"actor" db:"actor"`
	Reason           string      `json:"reason,omitempty" db:"reason"`
	Forced           bool        `json:"forced" db:"forced"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
}
