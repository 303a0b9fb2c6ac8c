package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/dental-clinic-scheduling/internal/auth"
	"github.com/hackgods/dental-clinic-scheduling/internal/config"
	"github.com/hackgods/dental-clinic-scheduling/internal/rbac"
	redisclient "github.com/hackgods/dental-clinic-scheduling/internal/redis"
	"github.com/hackgods/dental-clinic-scheduling/internal/scheduling"
)

const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentRescheduled   = "APPOINTMENT_RESCHEDULED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentNoShow        = "APPOINTMENT_NO_SHOW"
)

// SystemActor is recorded on events produced by background jobs.
const SystemActor = "system:noshow-worker"

var (
	ErrForbidden               = errors.New("operation not permitted for this role")
	ErrOverrideNotAllowed      = errors.New("role may not override the minimum lead time")
	ErrResourceBusy            = errors.New("professional or room is being booked by another request, please retry")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrNotReschedulable        = errors.New("only scheduled or confirmed appointments can be rescheduled")
)

// RejectedError is returned when validation refuses a create or reschedule.
type RejectedError struct {
	Violations []scheduling.Violation
}

func (e *RejectedError) Error() string {
	codes := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		codes = append(codes, string(v.Code))
	}
	return "appointment rejected: " + strings.Join(codes, ", ")
}

type Service struct {
	repo      Repository
	validator *scheduling.Validator
	locker    redisclient.Locker
	policy    rbac.Policy
	cfg       config.Config
	log       zerolog.Logger
	now       func() time.Time
}

// NewService wires the booking service. locker may be nil, in which case
// only the database constraints guard concurrent commits.
func NewService(repo Repository, validator *scheduling.Validator, locker redisclient.Locker, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		validator: validator,
		locker:    locker,
		policy:    rbac.NewPolicy(cfg.LeadTimeOverrideRoles),
		cfg:       cfg,
		log:       log.With().Str("component", "appointment").Logger(),
		now:       time.Now,
	}
}

func (s *Service) authorize(actor auth.Actor, perm rbac.Permission) error {
	if !rbac.Can(actor.Role, perm) {
		return fmt.Errorf("%w: %s needs %s", ErrForbidden, actor.Role, perm)
	}
	return nil
}

func (s *Service) authorizeOverride(actor auth.Actor, override bool) error {
	if override && !s.policy.CanOverrideLeadTime(actor.Role) {
		return ErrOverrideNotAllowed
	}
	return nil
}

// Validate runs the validator without persisting anything.
func (s *Service) Validate(ctx context.Context, actor auth.Actor, req scheduling.Request) (*scheduling.Result, error) {
	if err := s.authorize(actor, rbac.AppointmentCreate); err != nil {
		return nil, err
	}
	if err := s.authorizeOverride(actor, req.OverrideLeadTime); err != nil {
		return nil, err
	}
	return s.validator.Validate(ctx, req)
}

// Create validates the request and books it. Validation is advisory: the
// insert is the authoritative check and fails with ErrConflictAtCommit when
// a concurrent booking won the race.
func (s *Service) Create(ctx context.Context, actor auth.Actor, req CreateRequest) (*Booking, error) {
	if err := s.authorize(actor, rbac.AppointmentCreate); err != nil {
		return nil, err
	}
	if err := s.authorizeOverride(actor, req.OverrideLeadTime); err != nil {
		return nil, err
	}

	res, err := s.validator.Validate(ctx, req.validation())
	if err != nil {
		return nil, err
	}
	if !res.Accepted {
		return nil, &RejectedError{Violations: res.Violations}
	}

	na := NewAppointment{
		PatientID:             req.PatientID,
		ProfessionalID:        req.ProfessionalID,
		RoomID:                req.RoomID,
		Start:                 req.Start,
		DurationMinutes:       req.DurationMinutes,
		Reason:                strings.TrimSpace(req.Reason),
		ProcedureType:         req.ProcedureType,
		LinkedTreatmentStepID: req.TreatmentStepID,
	}
	if fc := res.FollowUp; fc != nil {
		if na.Reason == "" && fc.HasActivePlan {
			na.Reason = scheduling.SuggestedReason(*fc)
		}
		if na.LinkedTreatmentStepID == nil && len(fc.NextSessions) == 1 {
			stepID := fc.NextSessions[0].StepID
			na.LinkedTreatmentStepID = &stepID
		}
	}

	var created *scheduling.Appointment
	keys := []string{
		redisclient.ProfessionalKey(req.ProfessionalID),
		redisclient.RoomKey(req.RoomID),
	}
	err = s.withLocks(ctx, keys, func(lockCtx context.Context) error {
		appt, err := s.repo.InsertAppointment(lockCtx, na)
		if err != nil {
			return err
		}
		created = appt
		return nil
	})
	if err != nil {
		return nil, s.commitError("create", err)
	}

	s.logEvent(ctx, actor.UserID, created.ID, EventAppointmentCreated, map[string]any{
		"patient_id":         created.PatientID,
		"professional_id":    created.ProfessionalID,
		"room_id":            created.RoomID,
		"start":              created.Start,
		"duration_minutes":   created.DurationMinutes,
		"linked_step_id":     created.LinkedTreatmentStepID,
		"lead_time_override": req.OverrideLeadTime,
	})

	return &Booking{Appointment: *created, FollowUp: res.FollowUp}, nil
}

// Reschedule moves an appointment to a new slot, revalidating it against
// everything except itself.
func (s *Service) Reschedule(ctx context.Context, actor auth.Actor, id int64, req RescheduleRequest) (*scheduling.Appointment, error) {
	if err := s.authorize(actor, rbac.AppointmentReschedule); err != nil {
		return nil, err
	}
	if err := s.authorizeOverride(actor, req.OverrideLeadTime); err != nil {
		return nil, err
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status != scheduling.StatusScheduled && appt.Status != scheduling.StatusConfirmed {
		return nil, ErrNotReschedulable
	}

	slot := Slot{
		ProfessionalID:  appt.ProfessionalID,
		RoomID:          appt.RoomID,
		Start:           req.Start,
		DurationMinutes: appt.DurationMinutes,
	}
	if req.ProfessionalID != nil {
		slot.ProfessionalID = *req.ProfessionalID
	}
	if req.RoomID != nil {
		slot.RoomID = *req.RoomID
	}
	if req.DurationMinutes != nil {
		slot.DurationMinutes = *req.DurationMinutes
	}

	res, err := s.validator.Validate(ctx, scheduling.Request{
		PatientID:            appt.PatientID,
		ProfessionalID:       slot.ProfessionalID,
		RoomID:               slot.RoomID,
		Start:                slot.Start,
		DurationMinutes:      slot.DurationMinutes,
		ProcedureType:        appt.ProcedureType,
		ExcludeAppointmentID: &appt.ID,
		OverrideLeadTime:     req.OverrideLeadTime,
	})
	if err != nil {
		return nil, err
	}
	if !res.Accepted {
		return nil, &RejectedError{Violations: res.Violations}
	}

	var updated *scheduling.Appointment
	keys := []string{
		redisclient.ProfessionalKey(appt.ProfessionalID),
		redisclient.RoomKey(appt.RoomID),
		redisclient.ProfessionalKey(slot.ProfessionalID),
		redisclient.RoomKey(slot.RoomID),
	}
	err = s.withLocks(ctx, keys, func(lockCtx context.Context) error {
		a, err := s.repo.RescheduleAppointment(lockCtx, appt.ID, appt.Status, slot)
		if err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, s.commitError("reschedule", err)
	}

	s.logEvent(ctx, actor.UserID, updated.ID, EventAppointmentRescheduled, map[string]any{
		"from_start":           appt.Start,
		"to_start":             updated.Start,
		"from_professional_id": appt.ProfessionalID,
		"to_professional_id":   updated.ProfessionalID,
		"from_room_id":         appt.RoomID,
		"to_room_id":           updated.RoomID,
		"duration_minutes":     updated.DurationMinutes,
		"previous_status":      appt.Status,
	})

	return updated, nil
}

// Transition applies a lifecycle change. Completing an appointment that is
// linked to a treatment step counts one session of that step.
func (s *Service) Transition(ctx context.Context, actor auth.Actor, id int64, to scheduling.AppointmentStatus) (*scheduling.Appointment, error) {
	perm := rbac.AppointmentStatus
	if to == scheduling.StatusCancelled {
		perm = rbac.AppointmentCancel
	}
	if err := s.authorize(actor, perm); err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidStatusTransition, to)
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !scheduling.CanTransition(appt.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, appt.Status, to)
	}

	advance := to == scheduling.StatusCompleted && appt.LinkedTreatmentStepID != nil
	updated, err := s.repo.TransitionAppointment(ctx, appt.ID, appt.Status, to, advance)
	if err != nil {
		return nil, fmt.Errorf("transition appointment: %w", err)
	}

	s.logEvent(ctx, actor.UserID, updated.ID, EventAppointmentStatusChanged, map[string]any{
		"from":          appt.Status,
		"to":            updated.Status,
		"step_advanced": advance,
	})

	return updated, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, id int64) (*scheduling.Appointment, error) {
	if err := s.authorize(actor, rbac.AppointmentRead); err != nil {
		return nil, err
	}
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListByProfessionalDay returns the professional's agenda for the clinic
// calendar day containing day.
func (s *Service) ListByProfessionalDay(ctx context.Context, actor auth.Actor, professionalID int64, day time.Time) ([]scheduling.Appointment, error) {
	if err := s.authorize(actor, rbac.AppointmentRead); err != nil {
		return nil, err
	}
	from, to := s.dayBounds(day)
	appts, err := s.repo.ListByProfessional(ctx, professionalID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments by professional: %w", err)
	}
	return appts, nil
}

func (s *Service) dayBounds(day time.Time) (time.Time, time.Time) {
	loc := s.cfg.ClinicLocation
	if loc == nil {
		loc = time.UTC
	}
	d := day.In(loc)
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 0, 1)
}

// FollowUp summarizes the patient's pending treatment sessions.
func (s *Service) FollowUp(ctx context.Context, actor auth.Actor, patientID int64) (*FollowUpSuggestion, error) {
	if err := s.authorize(actor, rbac.PlanRead); err != nil {
		return nil, err
	}
	fc, err := s.validator.FollowUp(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return &FollowUpSuggestion{
		Context:              fc,
		SuggestedReason:      scheduling.SuggestedReason(fc),
		SuggestedDurationMin: scheduling.SuggestedDurationMin(fc),
	}, nil
}

func (s *Service) Events(ctx context.Context, actor auth.Actor, appointmentID int64) ([]EventLog, error) {
	if err := s.authorize(actor, rbac.AuditRead); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetAppointmentByID(ctx, appointmentID); err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	events, err := s.repo.ListEvents(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// MarkNoShows is intended to be called by the worker periodically. It
// returns how many appointments were moved to NO_SHOW.
func (s *Service) MarkNoShows(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.NoShowGrace)
	overdue, err := s.repo.FindOverdue(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find overdue appointments: %w", err)
	}

	marked := 0
	for _, appt := range overdue {
		if !scheduling.CanTransition(appt.Status, scheduling.StatusNoShow) {
			continue
		}
		_, err := s.repo.TransitionAppointment(ctx, appt.ID, appt.Status, scheduling.StatusNoShow, false)
		if err != nil {
			if !errors.Is(err, ErrStatusChanged) {
				s.log.Error().Err(err).Int64("appointment_id", appt.ID).Msg("failed to mark no-show")
			}
			continue
		}
		marked++
		s.logEvent(ctx, SystemActor, appt.ID, EventAppointmentNoShow, map[string]any{
			"from":   appt.Status,
			"end":    appt.End(),
			"cutoff": cutoff,
		})
	}

	return marked, nil
}

// withLocks runs fn under the resource locks. When Redis is missing or
// failing, fn runs unlocked and the exclusion constraints alone decide.
func (s *Service) withLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	err := s.locker.WithResourceLocks(ctx, keys, fn)
	if errors.Is(err, redisclient.ErrLockUnavailable) {
		s.log.Warn().Err(err).Strs("keys", keys).Msg("resource locks unavailable, committing without them")
		return fn(ctx)
	}
	return err
}

func (s *Service) commitError(op string, err error) error {
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return ErrResourceBusy
	case errors.Is(err, ErrConflictAtCommit):
		s.log.Warn().Err(err).Str("op", op).Msg("booking lost the race at commit")
		return err
	case errors.Is(err, ErrStatusChanged), errors.Is(err, ErrStepNotLinkable), errors.Is(err, ErrReferenceNotFound):
		return err
	default:
		return fmt.Errorf("%s appointment: %w", op, err)
	}
}

func (s *Service) logEvent(ctx context.Context, actorID string, appointmentID int64, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		ActorID:       actorID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("event", eventType).Int64("appointment_id", appointmentID).Msg("failed to insert event log")
		return
	}

	s.log.Info().Str("event", eventType).Int64("appointment_id", appointmentID).Str("actor", actorID).Msg("appointment event")
}
