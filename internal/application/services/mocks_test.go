package services_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sociodent/sociodent/backend/internal/domain/entities"
	"github.com/sociodent/sociodent/backend/internal/domain/providers"
	"github.com/sociodent/sociodent/backend/internal/domain/repositories"
)

// Mocks

type MockAppointmentRepository struct {
	mock.Mock
}

func (m *MockAppointmentRepository) Create(ctx context.Context, appointment *entities.Appointment) error {
	args := m.Called(ctx, appointment)
	return args.Error(0)
}

func (m *MockAppointmentRepository) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) Save(ctx context.Context, appointment *entities.Appointment) error {
	args := m.Called(ctx, appointment)
	return args.Error(0)
}

func (m *MockAppointmentRepository) SaveWithAudit(ctx context.Context, appointment *entities.Appointment, entry *entities.AuditEntry) error {
	args := m.Called(ctx, appointment, entry)
	return args.Error(0)
}

func (m *MockAppointmentRepository) List(ctx context.Context, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) ListPending(ctx context.Context, limit int) ([]*entities.Appointment, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) CountConfirmedByDoctor(ctx context.Context, date string) (map[string]int, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockAppointmentRepository) AppendAuditEntry(ctx context.Context, entry *entities.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAppointmentRepository) ListAuditEntries(ctx context.Context, appointmentID string) ([]*entities.AuditEntry, error) {
	args := m.Called(ctx, appointmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.AuditEntry), args.Error(1)
}

type MockDoctorRepository struct {
	mock.Mock
}

func (m *MockDoctorRepository) Create(ctx context.Context, doctor *entities.Doctor) error {
	args := m.Called(ctx, doctor)
	return args.Error(0)
}

func (m *MockDoctorRepository) GetByID(ctx context.Context, id string) (*entities.Doctor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Doctor), args.Error(1)
}

func (m *MockDoctorRepository) GetByIDs(ctx context.Context, ids []string) ([]*entities.Doctor, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Doctor), args.Error(1)
}

func (m *MockDoctorRepository) List(ctx context.Context, filter repositories.DoctorFilter) ([]*entities.Doctor, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Doctor), args.Error(1)
}

func (m *MockDoctorRepository) UpdateStatus(ctx context.Context, id string, status entities.DoctorStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockDoctorRepository) UpdateSchedule(ctx context.Context, id string, schedule entities.WeeklySchedule) error {
	args := m.Called(ctx, id, schedule)
	return args.Error(0)
}

func (m *MockDoctorRepository) AppendHistory(ctx context.Context, entry *entities.DoctorHistoryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.AppointmentEvent) error {
	args := m.Called(ctx, channel, event)
	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AppointmentEvent, error) {
	args := m.Called(ctx, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan *entities.AppointmentEvent), args.Error(1)
}

func (m *MockEventBus) Close() error {
	return m.Called().Error(0)
}

type MockDoctorIndex struct {
	mock.Mock
}

func (m *MockDoctorIndex) Index(ctx context.Context, doctor *entities.Doctor) error {
	args := m.Called(ctx, doctor)
	return args.Error(0)
}

func (m *MockDoctorIndex) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDoctorIndex) Search(ctx context.Context, params providers.DoctorSearchParams) ([]string, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendText(ctx context.Context, to, body string) (string, error) {
	args := m.Called(ctx, to, body)
	return args.String(0), args.Error(1)
}

// Fixtures

// 2030-06-03 is a Monday.
const monday = "2030-06-03"

func clockPtr(s string) *entities.ClockTime {
	c := entities.MustClockTime(s)
	return &c
}

func weekdaySchedule() entities.WeeklySchedule {
	day := entities.DaySchedule{
		Available:    true,
		Start:        entities.MustClockTime("09:00"),
		End:          entities.MustClockTime("17:00"),
		SlotDuration: 30,
		BreakStart:   clockPtr("13:00"),
		BreakEnd:     clockPtr("14:00"),
	}
	return entities.WeeklySchedule{
		"monday":    day,
		"tuesday":   day,
		"wednesday": day,
		"thursday":  day,
		"friday":    day,
	}
}

func newDoctor(id, specialization, area string) *entities.Doctor {
	return &entities.Doctor{
		ID:             id,
		Name:           "Dr " + id,
		Email:          id + "@sociodent.test",
		Role:           entities.RoleDoctor,
		Status:         entities.DoctorStatusApproved,
		Specialization: specialization,
		Area:           area,
		Schedule:       weekdaySchedule(),
	}
}

func newAppointment(id string) *entities.Appointment {
	return &entities.Appointment{
		ID:               id,
		PatientName:      "Asha Rao",
		PatientEmail:     "asha@example.com",
		PatientPhone:     "+919800000001",
		ConsultationType: entities.ConsultationVirtual,
		Date:             monday,
		Time:             entities.MustClockTime("10:00"),
		Status:           entities.AppointmentStatusPending,
		Version:          1,
	}
}
