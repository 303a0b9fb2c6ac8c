package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-clinic-scheduling/internal/appointment"
	"github.com/hackgods/dental-clinic-scheduling/internal/auth"
	"github.com/hackgods/dental-clinic-scheduling/internal/scheduling"
)

// AppointmentService is the subset of *appointment.Service the handlers use.
type AppointmentService interface {
	Validate(ctx context.Context, actor auth.Actor, req scheduling.Request) (*scheduling.Result, error)
	Create(ctx context.Context, actor auth.Actor, req appointment.CreateRequest) (*appointment.Booking, error)
	Get(ctx context.Context, actor auth.Actor, id int64) (*scheduling.Appointment, error)
	ListByProfessionalDay(ctx context.Context, actor auth.Actor, professionalID int64, day time.Time) ([]scheduling.Appointment, error)
	Reschedule(ctx context.Context, actor auth.Actor, id int64, req appointment.RescheduleRequest) (*scheduling.Appointment, error)
	Transition(ctx context.Context, actor auth.Actor, id int64, to scheduling.AppointmentStatus) (*scheduling.Appointment, error)
	FollowUp(ctx context.Context, actor auth.Actor, patientID int64) (*appointment.FollowUpSuggestion, error)
	Events(ctx context.Context, actor auth.Actor, appointmentID int64) ([]appointment.EventLog, error)
}

var _ AppointmentService = (*appointment.Service)(nil)

type RouterConfig struct {
	Service      AppointmentService
	Dependencies []Dependency
	Logger       zerolog.Logger
	JWTSecret    []byte
	Location     *time.Location
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	h := &handlers{svc: cfg.Service, loc: loc, log: cfg.Logger}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoveryMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.Env, cfg.Version, cfg.Dependencies...)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret, cfg.Env == "dev"))

		r.Post("/appointments/validate", h.validate)
		r.Post("/appointments", h.create)
		r.Get("/appointments/{id}", h.get)
		r.Post("/appointments/{id}/reschedule", h.reschedule)
		r.Post("/appointments/{id}/status", h.changeStatus)
		r.Get("/appointments/{id}/events", h.events)

		r.Get("/professionals/{id}/appointments", h.listByProfessional)
		r.Get("/patients/{id}/follow-up", h.followUp)
	})

	return r
}
