package api

import (
	"time"

	"github.com/hackgods/dental-clinic-scheduling/internal/scheduling"
)

type StatusChangeRequest struct {
	Status string `json:"status"`
}

type AppointmentResponse struct {
	ID                    int64     `json:"id"`
	PatientID             int64     `json:"patientId"`
	ProfessionalID        int64     `json:"professionalId"`
	RoomID                int64     `json:"roomId"`
	Start                 time.Time `json:"start"`
	End                   time.Time `json:"end"`
	DurationMinutes       int       `json:"durationMinutes"`
	Status                string    `json:"status"`
	Reason                string    `json:"reason,omitempty"`
	ProcedureType         string    `json:"procedureType,omitempty"`
	LinkedTreatmentStepID *int64    `json:"linkedTreatmentStepId,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

func toAppointmentResponse(a scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                    a.ID,
		PatientID:             a.PatientID,
		ProfessionalID:        a.ProfessionalID,
		RoomID:                a.RoomID,
		Start:                 a.Start,
		End:                   a.End(),
		DurationMinutes:       a.DurationMinutes,
		Status:                string(a.Status),
		Reason:                a.Reason,
		ProcedureType:         a.ProcedureType,
		LinkedTreatmentStepID: a.LinkedTreatmentStepID,
		CreatedAt:             a.CreatedAt,
		UpdatedAt:             a.UpdatedAt,
	}
}

type BookingResponse struct {
	Appointment AppointmentResponse         `json:"appointment"`
	FollowUp    *scheduling.FollowUpContext `json:"followUp,omitempty"`
}

type RejectionResponse struct {
	Accepted   bool                   `json:"accepted"`
	Violations []scheduling.Violation `json:"violations"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
