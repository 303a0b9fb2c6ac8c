package scheduling

import (
	"time"
)

type AppointmentStatus string

const (
	StatusScheduled  AppointmentStatus = "SCHEDULED"
	StatusConfirmed  AppointmentStatus = "CONFIRMED"
	StatusCheckedIn  AppointmentStatus = "CHECKED_IN"
	StatusInProgress AppointmentStatus = "IN_PROGRESS"
	StatusCompleted  AppointmentStatus = "COMPLETED"
	StatusCancelled  AppointmentStatus = "CANCELLED"
	StatusNoShow     AppointmentStatus = "NO_SHOW"
)

type Appointment struct {
	ID                    int64
	PatientID             int64
	ProfessionalID        int64
	RoomID                int64
	Start                 time.Time
	DurationMinutes       int
	Status                AppointmentStatus
	Reason                string
	ProcedureType         string
	LinkedTreatmentStepID *int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// End is the exclusive end of the appointment interval.
func (a Appointment) End() time.Time {
	return a.Start.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// WorkingInterval is an open interval within a weekday, expressed in
// minutes since local midnight. End is exclusive.
type WorkingInterval struct {
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
}

type Professional struct {
	ID           int64
	Name         string
	Active       bool
	SpecialtyID  *int64
	WorkingHours []WorkingInterval
}

type Room struct {
	ID     int64
	Name   string
	Active bool
}

type PlanStatus string

const (
	PlanDraft     PlanStatus = "DRAFT"
	PlanActive    PlanStatus = "ACTIVE"
	PlanCompleted PlanStatus = "COMPLETED"
	PlanCancelled PlanStatus = "CANCELLED"
)

type StepStatus string

const (
	StepPending    StepStatus = "PENDING"
	StepInProgress StepStatus = "IN_PROGRESS"
	StepCompleted  StepStatus = "COMPLETED"
	StepCancelled  StepStatus = "CANCELLED"
)

type TreatmentPlan struct {
	ID        int64
	PatientID int64
	Title     string
	Status    PlanStatus
	Steps     []TreatmentStep
	CreatedAt time.Time
}

type TreatmentStep struct {
	ID                       int64
	PlanID                   int64
	Order                    int
	Name                     string
	Status                   StepStatus
	RequiresMultipleSessions bool
	CurrentSession           int
	TotalSessions            int
	EstimatedDurationMin     *int
}

// Pending reports whether the step still has work left.
func (s TreatmentStep) Pending() bool {
	if s.Status == StepCompleted || s.Status == StepCancelled {
		return false
	}
	if s.RequiresMultipleSessions {
		return s.CurrentSession < s.TotalSessions
	}
	return true
}

// Request is a proposed appointment as submitted by the scheduling handler.
type Request struct {
	PatientID            int64     `json:"patientId"`
	ProfessionalID       int64     `json:"professionalId"`
	RoomID               int64     `json:"roomId"`
	Start                time.Time `json:"start"`
	DurationMinutes      int       `json:"durationMinutes"`
	ProcedureType        string    `json:"procedureType,omitempty"`
	ExcludeAppointmentID *int64    `json:"excludeAppointmentId,omitempty"`
	OverrideLeadTime     bool      `json:"overrideLeadTime,omitempty"`
	IncludeFollowUp      bool      `json:"includeFollowUp,omitempty"`
}

// End is the exclusive end of the requested interval.
func (r Request) End() time.Time {
	return r.Start.Add(time.Duration(r.DurationMinutes) * time.Minute)
}

type ViolationCode string

const (
	CodeProfessionalConflict ViolationCode = "PROFESSIONAL_CONFLICT"
	CodeRoomConflict         ViolationCode = "ROOM_CONFLICT"
	CodeInactiveResource     ViolationCode = "INACTIVE_RESOURCE"
	CodeOutsideWorkingHours  ViolationCode = "OUTSIDE_WORKING_HOURS"
	CodeInsufficientLeadTime ViolationCode = "INSUFFICIENT_LEAD_TIME"
	CodeConsentRequired      ViolationCode = "CONSENT_REQUIRED"
	CodeInvalidDuration      ViolationCode = "INVALID_DURATION"
	CodeMissingIdentifier    ViolationCode = "MISSING_IDENTIFIER"
)

type Violation struct {
	Code    ViolationCode  `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type Result struct {
	Accepted   bool             `json:"accepted"`
	FollowUp   *FollowUpContext `json:"followUp,omitempty"`
	Violations []Violation      `json:"violations,omitempty"`
}

// Codes returns the violation codes in evaluation order.
func (r Result) Codes() []ViolationCode {
	codes := make([]ViolationCode, 0, len(r.Violations))
	for _, v := range r.Violations {
		codes = append(codes, v.Code)
	}
	return codes
}

type NextSessionInfo struct {
	StepID               int64  `json:"stepId"`
	StepName             string `json:"stepName"`
	NextSessionNumber    int    `json:"nextSessionNumber"`
	TotalSessions        int    `json:"totalSessions"`
	EstimatedDurationMin *int   `json:"estimatedDurationMin,omitempty"`
}

type FollowUpContext struct {
	HasActivePlan      bool              `json:"hasActivePlan"`
	HasPendingSessions bool              `json:"hasPendingSessions"`
	PlanTitle          string            `json:"planTitle,omitempty"`
	NextSessions       []NextSessionInfo `json:"nextSessions"`
}
