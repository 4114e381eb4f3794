package routes

import (
	"net/http"

	"github.com/sociodent/sociodent/backend/internal/api/handlers"
	"github.com/sociodent/sociodent/backend/internal/api/loaders"
	"github.com/sociodent/sociodent/backend/internal/api/middleware"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/observability"
)

// Handlers groups the route handlers
type Handlers struct {
	Appointment *handlers.AppointmentHandler
	Admin       *handlers.AdminHandler
	Doctor      *handlers.DoctorHandler
	OTP         *handlers.OTPHandler
	Stream      *handlers.SSEHandler
}

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	handlers        Handlers
	auth            *middleware.Authenticator
	doctors         loaders.DoctorReader
	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics
	allowedOrigins  []string
}

// NewRouter creates a new router. cacheMiddleware, metrics and doctors may be nil.
func NewRouter(
	h Handlers,
	auth *middleware.Authenticator,
	doctors loaders.DoctorReader,
	cacheMiddleware *middleware.CacheMiddleware,
	metrics *observability.Metrics,
	allowedOrigins []string,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		handlers:        h,
		auth:            auth,
		doctors:         doctors,
		cacheMiddleware: cacheMiddleware,
		metrics:         metrics,
		allowedOrigins:  allowedOrigins,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	admin := r.auth.RequireRole(middleware.RoleAdmin)
	staff := r.auth.RequireRole(middleware.RoleDoctor, middleware.RoleAdmin)
	anyone := r.auth.RequireRole(middleware.RolePatient, middleware.RoleDoctor, middleware.RoleAdmin)
	withLoaders := func(h http.Handler) http.Handler { return h }
	if r.doctors != nil {
		withLoaders = loaders.Middleware(r.doctors)
	}

	// Patient booking
	r.mux.HandleFunc("POST /api/otp/request", r.handlers.OTP.RequestOTP)
	r.mux.HandleFunc("POST /api/otp/verify", r.handlers.OTP.VerifyOTP)
	r.mux.HandleFunc("POST /api/appointments", r.handlers.Appointment.BookAppointment)
	r.mux.Handle("GET /api/appointments/{id}", anyone(http.HandlerFunc(r.handlers.Appointment.GetAppointment)))
	r.mux.Handle("POST /api/appointments/{id}/cancel", anyone(http.HandlerFunc(r.handlers.Appointment.CancelAppointment)))
	r.mux.Handle("GET /api/appointments", staff(http.HandlerFunc(r.handlers.Appointment.ListAppointments)))

	// Doctor directory and self-service
	r.mux.HandleFunc("POST /api/doctors", r.handlers.Doctor.Register)
	r.mux.HandleFunc("GET /api/doctors/search", r.handlers.Doctor.Search)
	r.mux.HandleFunc("GET /api/doctors/{id}", r.handlers.Doctor.GetDoctor)
	r.mux.Handle("PUT /api/doctors/{id}/schedule", staff(http.HandlerFunc(r.handlers.Doctor.UpdateSchedule)))

	// Admin
	r.mux.Handle("GET /api/admin/doctors", admin(http.HandlerFunc(r.handlers.Doctor.ListDoctors)))
	r.mux.Handle("POST /api/admin/doctors/{id}/approve", admin(http.HandlerFunc(r.handlers.Doctor.Approve)))
	r.mux.Handle("POST /api/admin/doctors/{id}/reject", admin(http.HandlerFunc(r.handlers.Doctor.Reject)))

	r.mux.Handle("GET /api/admin/appointments/{id}/candidates", admin(http.HandlerFunc(r.handlers.Admin.Candidates)))
	r.mux.Handle("POST /api/admin/appointments/{id}/assign", admin(http.HandlerFunc(r.handlers.Admin.AssignBest)))
	r.mux.Handle("POST /api/admin/appointments/{id}/assign-manual", admin(http.HandlerFunc(r.handlers.Admin.AssignManually)))
	r.mux.Handle("POST /api/admin/appointments/{id}/reassign", admin(http.HandlerFunc(r.handlers.Admin.Reassign)))
	r.mux.Handle("GET /api/admin/appointments/{id}/audit", admin(withLoaders(http.HandlerFunc(r.handlers.Admin.AuditTrail))))

	if r.handlers.Stream != nil {
		r.mux.Handle("GET /api/admin/stream/appointments", admin(http.HandlerFunc(r.handlers.Stream.StreamAppointments)))
	}

	var handler http.Handler = r.mux
	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
