package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/dental-clinic-scheduling/internal/consent"
	"github.com/hackgods/dental-clinic-scheduling/internal/db"
	"github.com/hackgods/dental-clinic-scheduling/internal/scheduling"
)

// PgRepository backs the booking service, the validator's Store and the
// consent checker with one Postgres pool.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

var (
	_ Repository         = (*PgRepository)(nil)
	_ scheduling.Store   = (*PgRepository)(nil)
	_ consent.Repository = (*PgRepository)(nil)
)

const appointmentColumns = `id, patient_id, professional_id, room_id, start_at, duration_minutes,
	status, reason, procedure_type, linked_treatment_step_id, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*scheduling.Appointment, error) {
	var a scheduling.Appointment
	var procedureType *string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ProfessionalID,
		&a.RoomID,
		&a.Start,
		&a.DurationMinutes,
		&a.Status,
		&a.Reason,
		&procedureType,
		&a.LinkedTreatmentStepID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if procedureType != nil {
		a.ProcedureType = *procedureType
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]scheduling.Appointment, error) {
	defer rows.Close()

	var result []scheduling.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// writeError translates constraint failures on appointment writes.
func writeError(err error) error {
	if pgErr, ok := db.Violation(err, db.CodeExclusionViolation); ok {
		return fmt.Errorf("%w (%s)", ErrConflictAtCommit, pgErr.ConstraintName)
	}
	if pgErr, ok := db.Violation(err, db.CodeForeignKeyViolation); ok {
		return fmt.Errorf("%w (%s)", ErrReferenceNotFound, pgErr.ConstraintName)
	}
	return err
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Validator store

func (r *PgRepository) GetProfessional(ctx context.Context, id int64) (*scheduling.Professional, error) {
	var p scheduling.Professional
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, active, specialty_id
		FROM professionals
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Active, &p.SpecialtyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("professional %d: %w", id, scheduling.ErrNotFound)
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT weekday, start_minute, end_minute
		FROM professional_working_hours
		WHERE professional_id = $1
		ORDER BY weekday, start_minute
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var wi scheduling.WorkingInterval
		var weekday int16
		if err := rows.Scan(&weekday, &wi.StartMinute, &wi.EndMinute); err != nil {
			return nil, err
		}
		wi.Weekday = time.Weekday(weekday)
		p.WorkingHours = append(p.WorkingHours, wi)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *PgRepository) GetRoom(ctx context.Context, id int64) (*scheduling.Room, error) {
	var room scheduling.Room
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, active
		FROM rooms
		WHERE id = $1
	`, id).Scan(&room.ID, &room.Name, &room.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("room %d: %w", id, scheduling.ErrNotFound)
		}
		return nil, err
	}
	return &room, nil
}

func (r *PgRepository) ListBlockingAppointments(ctx context.Context, professionalID, roomID int64, from, to time.Time) ([]scheduling.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE (professional_id = $1 OR room_id = $2)
		  AND status NOT IN ('CANCELLED', 'NO_SHOW')
		  AND start_at < $4
		  AND end_at > $3
		ORDER BY start_at, id
	`, professionalID, roomID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListTreatmentPlans(ctx context.Context, patientID int64) ([]scheduling.TreatmentPlan, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, title, status, created_at
		FROM treatment_plans
		WHERE patient_id = $1
		ORDER BY created_at DESC, id DESC
	`, patientID)
	if err != nil {
		return nil, err
	}

	var plans []scheduling.TreatmentPlan
	index := make(map[int64]int)
	for rows.Next() {
		var p scheduling.TreatmentPlan
		if err := rows.Scan(&p.ID, &p.PatientID, &p.Title, &p.Status, &p.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		index[p.ID] = len(plans)
		plans = append(plans, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(plans))
	for _, p := range plans {
		ids = append(ids, p.ID)
	}

	stepRows, err := r.pool.Query(ctx, `
		SELECT id, plan_id, step_order, name, status, requires_multiple_sessions,
		       current_session, total_sessions, estimated_duration_min
		FROM treatment_steps
		WHERE plan_id = ANY($1)
		ORDER BY plan_id, step_order, id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer stepRows.Close()

	for stepRows.Next() {
		var s scheduling.TreatmentStep
		if err := stepRows.Scan(
			&s.ID,
			&s.PlanID,
			&s.Order,
			&s.Name,
			&s.Status,
			&s.RequiresMultipleSessions,
			&s.CurrentSession,
			&s.TotalSessions,
			&s.EstimatedDurationMin,
		); err != nil {
			return nil, err
		}
		i := index[s.PlanID]
		plans[i].Steps = append(plans[i].Steps, s)
	}
	if err := stepRows.Err(); err != nil {
		return nil, err
	}

	return plans, nil
}

// Consent repository

func (r *PgRepository) GetPatient(ctx context.Context, id int64) (*consent.Patient, error) {
	var p consent.Patient
	err := r.pool.QueryRow(ctx, `
		SELECT id, birth_date, responsible_party_id
		FROM patients
		WHERE id = $1
	`, id).Scan(&p.ID, &p.BirthDate, &p.ResponsiblePartyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, consent.ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) ListConsents(ctx context.Context, patientID int64, consentType string) ([]consent.Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, type, signed_at, valid_until, signed_by_responsible_id
		FROM consent_records
		WHERE patient_id = $1
		  AND upper(type) = upper($2)
		ORDER BY signed_at DESC
	`, patientID, consentType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []consent.Record
	for rows.Next() {
		var c consent.Record
		if err := rows.Scan(&c.ID, &c.PatientID, &c.Type, &c.SignedAt, &c.ValidUntil, &c.SignedByResponsibleID); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Booking service

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id int64) (*scheduling.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListByProfessional(ctx context.Context, professionalID int64, from, to time.Time) ([]scheduling.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE professional_id = $1
		  AND start_at < $3
		  AND end_at > $2
		ORDER BY start_at, id
	`, professionalID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertAppointment(ctx context.Context, a NewAppointment) (*scheduling.Appointment, error) {
	end := a.Start.Add(time.Duration(a.DurationMinutes) * time.Minute)

	var created *scheduling.Appointment
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if a.LinkedTreatmentStepID != nil {
			if err := lockLinkableStep(ctx, tx, *a.LinkedTreatmentStepID, a.PatientID); err != nil {
				return err
			}
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO appointments (patient_id, professional_id, room_id, start_at, end_at,
				duration_minutes, status, reason, procedure_type, linked_treatment_step_id)
			VALUES ($1, $2, $3, $4, $5, $6, 'SCHEDULED', $7, $8, $9)
			RETURNING `+appointmentColumns,
			a.PatientID, a.ProfessionalID, a.RoomID, a.Start, end,
			a.DurationMinutes, a.Reason, nullableString(a.ProcedureType), a.LinkedTreatmentStepID)

		appt, err := scanAppointment(row)
		if err != nil {
			return err
		}
		created = appt
		return nil
	})
	if err != nil {
		return nil, writeError(err)
	}
	return created, nil
}

// lockLinkableStep holds the step row until commit so a concurrent
// completion cannot finish it underneath the new booking.
func lockLinkableStep(ctx context.Context, tx pgx.Tx, stepID, patientID int64) error {
	var id int64
	err := tx.QueryRow(ctx, `
		SELECT s.id
		FROM treatment_steps s
		JOIN treatment_plans p ON p.id = s.plan_id
		WHERE s.id = $1
		  AND p.patient_id = $2
		  AND s.status NOT IN ('COMPLETED', 'CANCELLED')
		FOR SHARE OF s
	`, stepID, patientID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrStepNotLinkable
	}
	return err
}

func (r *PgRepository) RescheduleAppointment(ctx context.Context, id int64, from scheduling.AppointmentStatus, slot Slot) (*scheduling.Appointment, error) {
	end := slot.Start.Add(time.Duration(slot.DurationMinutes) * time.Minute)

	var updated *scheduling.Appointment
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE appointments
			SET professional_id = $3,
			    room_id = $4,
			    start_at = $5,
			    end_at = $6,
			    duration_minutes = $7,
			    status = 'SCHEDULED',
			    updated_at = now()
			WHERE id = $1
			  AND status = $2
			RETURNING `+appointmentColumns,
			id, from, slot.ProfessionalID, slot.RoomID, slot.Start, end, slot.DurationMinutes)

		appt, err := scanAppointment(row)
		if errors.Is(err, ErrAppointmentNotFound) {
			return ErrStatusChanged
		}
		if err != nil {
			return err
		}
		updated = appt
		return nil
	})
	if err != nil {
		return nil, writeError(err)
	}
	return updated, nil
}

func (r *PgRepository) TransitionAppointment(ctx context.Context, id int64, from, to scheduling.AppointmentStatus, advanceStep bool) (*scheduling.Appointment, error) {
	var updated *scheduling.Appointment
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = $2,
			    updated_at = now()
			WHERE id = $1
			  AND status = $3
			RETURNING `+appointmentColumns,
			id, to, from)

		appt, err := scanAppointment(row)
		if errors.Is(err, ErrAppointmentNotFound) {
			return ErrStatusChanged
		}
		if err != nil {
			return err
		}
		updated = appt

		if !advanceStep || appt.LinkedTreatmentStepID == nil {
			return nil
		}
		_, err = tx.Exec(ctx, `
			UPDATE treatment_steps
			SET current_session = LEAST(current_session + 1, total_sessions),
			    status = CASE
			        WHEN current_session + 1 >= total_sessions THEN 'COMPLETED'
			        ELSE 'IN_PROGRESS'
			    END,
			    updated_at = now()
			WHERE id = $1
			  AND status NOT IN ('COMPLETED', 'CANCELLED')
		`, *appt.LinkedTreatmentStepID)
		if err != nil {
			return fmt.Errorf("advance treatment step: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) FindOverdue(ctx context.Context, endedBefore time.Time) ([]scheduling.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('SCHEDULED', 'CONFIRMED')
		  AND end_at < $1
		ORDER BY end_at, id
	`, endedBefore)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, actor_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.AppointmentID, nullableString(ev.ActorID), []byte(ev.Payload), nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func (r *PgRepository) ListEvents(ctx context.Context, appointmentID int64) ([]EventLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_type, appointment_id, COALESCE(actor_id, ''), payload, created_at
		FROM event_logs
		WHERE appointment_id = $1
		ORDER BY created_at, id
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []EventLog
	for rows.Next() {
		var ev EventLog
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.AppointmentID, &ev.ActorID, &payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Payload = payload
		result = append(result, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
