package scheduling

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Store is the read side of the persistence collaborator. Implementations
// must return ErrNotFound (possibly wrapped) for missing professionals and
// rooms.
//
// The validator only gives advisory answers. Whoever persists an accepted
// request must re-verify non-overlap at commit time (the Postgres schema
// uses exclusion constraints for this); otherwise two concurrent requests
// can both pass validation for the same slot.
type Store interface {
	GetProfessional(ctx context.Context, id int64) (*Professional, error)
	GetRoom(ctx context.Context, id int64) (*Room, error)
	// ListBlockingAppointments returns appointments of the professional or
	// the room that intersect [from, to) and whose status blocks time.
	ListBlockingAppointments(ctx context.Context, professionalID, roomID int64, from, to time.Time) ([]Appointment, error)
	ListTreatmentPlans(ctx context.Context, patientID int64) ([]TreatmentPlan, error)
}

type ConsentDecision struct {
	Valid  bool
	Minor  bool
	Reason string
}

// ConsentChecker is the informed-consent collaborator.
type ConsentChecker interface {
	CheckConsent(ctx context.Context, patientID int64, procedureType string, referenceDate time.Time) (ConsentDecision, error)
}

type Options struct {
	MinLeadTime  time.Duration
	LookupBuffer time.Duration
	// Location is the clinic's time zone; working hours are wall-clock times in it.
	Location *time.Location
	// ConsentProcedureTypes lists the procedure types that need informed consent.
	ConsentProcedureTypes []string
	Now                   func() time.Time
}

type Validator struct {
	store        Store
	consent      ConsentChecker
	opts         Options
	consentTypes map[string]bool
}

func NewValidator(store Store, consent ConsentChecker, opts Options) *Validator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	types := make(map[string]bool, len(opts.ConsentProcedureTypes))
	for _, t := range opts.ConsentProcedureTypes {
		types[strings.ToUpper(strings.TrimSpace(t))] = true
	}
	return &Validator{
		store:        store,
		consent:      consent,
		opts:         opts,
		consentTypes: types,
	}
}

// RequiresConsent reports whether the procedure type is gated by informed consent.
func (v *Validator) RequiresConsent(procedureType string) bool {
	if procedureType == "" {
		return false
	}
	return v.consentTypes[strings.ToUpper(strings.TrimSpace(procedureType))]
}

// Validate decides whether req can be booked. Business rule failures come
// back as violations in the result; the returned error is reserved for
// collaborator failures.
func (v *Validator) Validate(ctx context.Context, req Request) (*Result, error) {
	if bad := inputViolations(req); len(bad) > 0 {
		return &Result{Accepted: false, Violations: bad}, nil
	}

	now := v.opts.Now()

	prof, err := v.store.GetProfessional(ctx, req.ProfessionalID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, collaboratorErr("load professional", err)
	}
	room, err := v.store.GetRoom(ctx, req.RoomID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, collaboratorErr("load room", err)
	}

	from := req.Start.Add(-v.opts.LookupBuffer)
	to := req.End().Add(v.opts.LookupBuffer)
	existing, err := v.store.ListBlockingAppointments(ctx, req.ProfessionalID, req.RoomID, from, to)
	if err != nil {
		return nil, collaboratorErr("list appointments", err)
	}

	var consentViolation *Violation
	if v.RequiresConsent(req.ProcedureType) {
		consentViolation, err = v.consentRule(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	var violations []Violation
	violations = append(violations, conflictViolations(CheckAvailability(req, existing))...)
	violations = append(violations, activeResourceViolations(req, prof, room)...)
	if vi := workingHoursViolation(req, prof, v.opts.Location); vi != nil {
		violations = append(violations, *vi)
	}
	if vi := leadTimeViolation(req, now, v.opts.MinLeadTime); vi != nil {
		violations = append(violations, *vi)
	}
	if consentViolation != nil {
		violations = append(violations, *consentViolation)
	}

	if len(violations) > 0 {
		return &Result{Accepted: false, Violations: violations}, nil
	}

	res := &Result{Accepted: true}
	if req.IncludeFollowUp {
		fc, err := v.FollowUp(ctx, req.PatientID)
		if err != nil {
			return nil, err
		}
		res.FollowUp = &fc
	}
	return res, nil
}

// FollowUp builds the follow-up context for a patient.
func (v *Validator) FollowUp(ctx context.Context, patientID int64) (FollowUpContext, error) {
	plans, err := v.store.ListTreatmentPlans(ctx, patientID)
	if err != nil {
		return FollowUpContext{}, collaboratorErr("list treatment plans", err)
	}
	return BuildFollowUpContext(plans), nil
}

func (v *Validator) consentRule(ctx context.Context, req Request) (*Violation, error) {
	if v.consent == nil {
		return nil, collaboratorErr("check consent", errors.New("no consent checker configured"))
	}
	decision, err := v.consent.CheckConsent(ctx, req.PatientID, strings.ToUpper(req.ProcedureType), req.Start)
	if err != nil {
		return nil, collaboratorErr("check consent", err)
	}
	if decision.Valid {
		return nil, nil
	}
	msg := decision.Reason
	if msg == "" {
		msg = "a valid informed consent is required for this procedure"
	}
	return &Violation{
		Code:    CodeConsentRequired,
		Message: msg,
		Details: map[string]any{
			"procedureType": req.ProcedureType,
			"minor":         decision.Minor,
		},
	}, nil
}

func inputViolations(req Request) []Violation {
	var out []Violation
	if req.DurationMinutes <= 0 {
		out = append(out, Violation{
			Code:    CodeInvalidDuration,
			Message: "duration must be a positive number of minutes",
			Details: map[string]any{"durationMinutes": req.DurationMinutes},
		})
	}
	var missing []string
	if req.PatientID <= 0 {
		missing = append(missing, "patientId")
	}
	if req.ProfessionalID <= 0 {
		missing = append(missing, "professionalId")
	}
	if req.RoomID <= 0 {
		missing = append(missing, "roomId")
	}
	if req.Start.IsZero() {
		missing = append(missing, "start")
	}
	if len(missing) > 0 {
		out = append(out, Violation{
			Code:    CodeMissingIdentifier,
			Message: "missing required fields: " + strings.Join(missing, ", "),
			Details: map[string]any{"fields": missing},
		})
	}
	return out
}
