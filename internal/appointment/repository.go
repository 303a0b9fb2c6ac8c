package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/hackgods/dental-clinic-scheduling/internal/scheduling"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrReferenceNotFound   = errors.New("referenced patient, professional, room or step does not exist")
	ErrStepNotLinkable     = errors.New("treatment step does not belong to the patient or is already finished")
	// ErrConflictAtCommit means the exclusion constraint rejected a write
	// that passed validation: another booking committed first.
	ErrConflictAtCommit = errors.New("appointment conflicts with a booking committed concurrently")
	ErrStatusChanged    = errors.New("appointment status changed concurrently")
)

// Repository contains the DB interactions the booking service needs on top
// of the validator's read side.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id int64) (*scheduling.Appointment, error)
	ListByProfessional(ctx context.Context, professionalID int64, from, to time.Time) ([]scheduling.Appointment, error)

	// Writes. Both return ErrConflictAtCommit when the exclusion
	// constraint fires.
	InsertAppointment(ctx context.Context, a NewAppointment) (*scheduling.Appointment, error)
	RescheduleAppointment(ctx context.Context, id int64, from scheduling.AppointmentStatus, slot Slot) (*scheduling.Appointment, error)

	// TransitionAppointment moves id from one status to another. With
	// advanceStep set, the linked treatment step gains one completed
	// session in the same transaction.
	TransitionAppointment(ctx context.Context, id int64, from, to scheduling.AppointmentStatus, advanceStep bool) (*scheduling.Appointment, error)

	// No-show worker
	FindOverdue(ctx context.Context, endedBefore time.Time) ([]scheduling.Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
	ListEvents(ctx context.Context, appointmentID int64) ([]EventLog, error)
}
