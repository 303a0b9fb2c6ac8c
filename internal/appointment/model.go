package appointment

import (
	"encoding/json"
	"time"

	"github.com/hackgods/dental-clinic-scheduling/internal/scheduling"
)

// CreateRequest is a booking as submitted by reception or a clinician.
type CreateRequest struct {
	PatientID        int64     `json:"patientId"`
	ProfessionalID   int64     `json:"professionalId"`
	RoomID           int64     `json:"roomId"`
	Start            time.Time `json:"start"`
	DurationMinutes  int       `json:"durationMinutes"`
	ProcedureType    string    `json:"procedureType,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	TreatmentStepID  *int64    `json:"treatmentStepId,omitempty"`
	OverrideLeadTime bool      `json:"overrideLeadTime,omitempty"`
}

func (r CreateRequest) validation() scheduling.Request {
	return scheduling.Request{
		PatientID:        r.PatientID,
		ProfessionalID:   r.ProfessionalID,
		RoomID:           r.RoomID,
		Start:            r.Start,
		DurationMinutes:  r.DurationMinutes,
		ProcedureType:    r.ProcedureType,
		OverrideLeadTime: r.OverrideLeadTime,
		IncludeFollowUp:  true,
	}
}

// RescheduleRequest moves an appointment. Nil fields keep the current value.
type RescheduleRequest struct {
	Start            time.Time `json:"start"`
	DurationMinutes  *int      `json:"durationMinutes,omitempty"`
	ProfessionalID   *int64    `json:"professionalId,omitempty"`
	RoomID           *int64    `json:"roomId,omitempty"`
	OverrideLeadTime bool      `json:"overrideLeadTime,omitempty"`
}

// NewAppointment is the row written by a successful create.
type NewAppointment struct {
	PatientID             int64
	ProfessionalID        int64
	RoomID                int64
	Start                 time.Time
	DurationMinutes       int
	Reason                string
	ProcedureType         string
	LinkedTreatmentStepID *int64
}

// Slot is the new placement of a rescheduled appointment.
type Slot struct {
	ProfessionalID  int64
	RoomID          int64
	Start           time.Time
	DurationMinutes int
}

// Booking is the outcome of a successful create.
type Booking struct {
	Appointment scheduling.Appointment
	FollowUp    *scheduling.FollowUpContext
}

// FollowUpSuggestion is what the front desk sees when booking a return visit.
type FollowUpSuggestion struct {
	Context              scheduling.FollowUpContext `json:"context"`
	SuggestedReason      string                     `json:"suggestedReason"`
	SuggestedDurationMin int                        `json:"suggestedDurationMin"`
}

type EventLog struct {
	ID            int64           `json:"id"`
	EventType     string          `json:"eventType"`
	AppointmentID *int64          `json:"appointmentId,omitempty"`
	ActorID       string          `json:"actorId,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}
