package handlers_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sociodent/sociodent/backend/internal/application/services"
	"github.com/sociodent/sociodent/backend/internal/domain/entities"
	"github.com/sociodent/sociodent/backend/internal/domain/providers"
	"github.com/sociodent/sociodent/backend/internal/domain/repositories"
)

type MockAppointmentService struct {
	mock.Mock
}

func (m *MockAppointmentService) Book(ctx context.Context, req services.BookingRequest) (*services.BookingResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.BookingResult), args.Error(1)
}

func (m *MockAppointmentService) Get(ctx context.Context, id string) (*entities.Appointment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentService) List(ctx context.Context, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentService) Cancel(ctx context.Context, id string) (*entities.Appointment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

type MockAssignmentService struct {
	mock.Mock
}

func (m *MockAssignmentService) Candidates(ctx context.Context, appointmentID string) ([]entities.ScoredDoctor, error) {
	args := m.Called(ctx, appointmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.ScoredDoctor), args.Error(1)
}

func (m *MockAssignmentService) AssignBest(ctx context.Context, appointmentID string) (*services.AssignmentResult, error) {
	args := m.Called(ctx, appointmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AssignmentResult), args.Error(1)
}

func (m *MockAssignmentService) AssignManually(ctx context.Context, appointmentID string, req services.ManualAssignment) (*services.AssignmentResult, error) {
	args := m.Called(ctx, appointmentID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AssignmentResult), args.Error(1)
}

func (m *MockAssignmentService) Reassign(ctx context.Context, appointmentID string, req services.ManualAssignment) (*services.AssignmentResult, error) {
	args := m.Called(ctx, appointmentID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AssignmentResult), args.Error(1)
}

func (m *MockAssignmentService) AuditTrail(ctx context.Context, appointmentID string) ([]*entities.AuditEntry, error) {
	args := m.Called(ctx, appointmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.AuditEntry), args.Error(1)
}

type MockDoctorService struct {
	mock.Mock
}

func (m *MockDoctorService) doctor(args mock.Arguments) (*entities.Doctor, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Doctor), args.Error(1)
}

func (m *MockDoctorService) doctors(args mock.Arguments) ([]*entities.Doctor, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Doctor), args.Error(1)
}

func (m *MockDoctorService) Register(ctx context.Context, req services.RegisterDoctorRequest) (*entities.Doctor, error) {
	return m.doctor(m.Called(ctx, req))
}

func (m *MockDoctorService) Get(ctx context.Context, id string) (*entities.Doctor, error) {
	return m.doctor(m.Called(ctx, id))
}

func (m *MockDoctorService) List(ctx context.Context, filter repositories.DoctorFilter) ([]*entities.Doctor, error) {
	return m.doctors(m.Called(ctx, filter))
}

func (m *MockDoctorService) Approve(ctx context.Context, id, actor string) (*entities.Doctor, error) {
	return m.doctor(m.Called(ctx, id, actor))
}

func (m *MockDoctorService) Reject(ctx context.Context, id, actor string) (*entities.Doctor, error) {
	return m.doctor(m.Called(ctx, id, actor))
}

func (m *MockDoctorService) UpdateSchedule(ctx context.Context, id string, schedule entities.WeeklySchedule, actor string) (*entities.Doctor, error) {
	return m.doctor(m.Called(ctx, id, schedule, actor))
}

func (m *MockDoctorService) Search(ctx context.Context, params providers.DoctorSearchParams) ([]*entities.Doctor, error) {
	return m.doctors(m.Called(ctx, params))
}

type MockOTPService struct {
	mock.Mock
}

func (m *MockOTPService) Request(ctx context.Context, email, phone string) (time.Duration, error) {
	args := m.Called(ctx, email, phone)
	return args.Get(0).(time.Duration), args.Error(1)
}

func (m *MockOTPService) Verify(ctx context.Context, email, code string) error {
	return m.Called(ctx, email, code).Error(0)
}

// fakeEventBus fans published events out to subscribers
type fakeEventBus struct {
	mu          sync.Mutex
	subscribers map[string][]chan *entities.AppointmentEvent
}

func newFakeEventBus() *fakeEventBus {
	return &fakeEventBus{subscribers: make(map[string][]chan *entities.AppointmentEvent)}
}

func (b *fakeEventBus) Publish(ctx context.Context, channel string, event *entities.AppointmentEvent) error {
	b.mu.Lock()
	channels := append([]chan *entities.AppointmentEvent(nil), b.subscribers[channel]...)
	b.mu.Unlock()
	for _, ch := range channels {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (b *fakeEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AppointmentEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan *entities.AppointmentEvent, 10)
	b.subscribers[channel] = append(b.subscribers[channel], ch)
	return ch, nil
}

func (b *fakeEventBus) subscriberCount(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[channel])
}

func (b *fakeEventBus) Close() error { return nil }

func approvedDoctor(id, name string) *entities.Doctor {
	return &entities.Doctor{
		ID:             id,
		Name:           name,
		Role:           entities.RoleDoctor,
		Status:         entities.DoctorStatusApproved,
		Specialization: "Orthodontics",
		Area:           "Whitefield",
	}
}
