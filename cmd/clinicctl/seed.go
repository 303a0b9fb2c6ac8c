package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const seedBatchSize = 500

var (
	specialties = []string{"General Dentistry", "Orthodontics", "Endodontics", "Periodontics", "Oral Surgery", "Pediatric Dentistry"}
	planTitles  = []string{"Orthodontic treatment", "Full mouth rehabilitation", "Periodontal therapy", "Implant placement", "Root canal series"}
	stepNames   = []string{"Cleaning", "Bracket adjustment", "Root canal session", "Scaling and root planing", "Crown fitting", "Implant follow-up"}
)

type seeder struct {
	pool   *pgxpool.Pool
	log    zerolog.Logger
	faker  *gofakeit.Faker
	now    time.Time
	minors int
	plans  int
}

func newSeeder(pool *pgxpool.Pool, log zerolog.Logger) *seeder {
	return &seeder{pool: pool, log: log, faker: gofakeit.New(0), now: time.Now().UTC()}
}

func (s *seeder) Run(ctx context.Context, professionals, rooms, patients int) error {
	s.log.Info().Int("professionals", professionals).Int("rooms", rooms).Int("patients", patients).Msg("seed starting")

	if err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return s.seedProfessionals(ctx, tx, professionals)
	}); err != nil {
		return fmt.Errorf("seed professionals: %w", err)
	}

	if err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return s.seedRooms(ctx, tx, rooms)
	}); err != nil {
		return fmt.Errorf("seed rooms: %w", err)
	}

	for offset := 0; offset < patients; offset += seedBatchSize {
		end := min(offset+seedBatchSize, patients)
		if err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			for i := offset; i < end; i++ {
				if err := s.seedPatient(ctx, tx); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return fmt.Errorf("seed patients: %w", err)
		}
		s.log.Info().Msgf("patients seeded: %d/%d", end, patients)
	}

	s.log.Info().Int("minors", s.minors).Int("plans", s.plans).Msg("seed complete")
	return nil
}

func (s *seeder) seedProfessionals(ctx context.Context, tx pgx.Tx, count int) error {
	for i := 0; i < count; i++ {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO professionals (name, specialty_id, active)
			VALUES ($1, $2, true)
			RETURNING id
		`, "Dr. "+s.faker.Name(), int64(s.faker.Number(1, len(specialties)))).Scan(&id)
		if err != nil {
			return err
		}

		// Monday to Friday, 08:00-13:00 and 14:00-18:00.
		for weekday := 1; weekday <= 5; weekday++ {
			if _, err := tx.Exec(ctx, `
				INSERT INTO professional_working_hours (professional_id, weekday, start_minute, end_minute)
				VALUES ($1, $2, 480, 780), ($1, $2, 840, 1080)
			`, id, weekday); err != nil {
				return err
			}
		}
	}
	s.log.Info().Int("count", count).Msg("professionals seeded")
	return nil
}

func (s *seeder) seedRooms(ctx context.Context, tx pgx.Tx, count int) error {
	for i := 1; i <= count; i++ {
		if _, err := tx.Exec(ctx, `INSERT INTO rooms (name, active) VALUES ($1, true)`, fmt.Sprintf("Box %d", i)); err != nil {
			return err
		}
	}
	s.log.Info().Int("count", count).Msg("rooms seeded")
	return nil
}

func (s *seeder) seedPatient(ctx context.Context, tx pgx.Tx) error {
	birth := s.faker.DateRange(s.now.AddDate(-80, 0, 0), s.now.AddDate(-4, 0, 0))
	minor := birth.After(s.now.AddDate(-18, 0, 0))

	var responsibleID *int64
	if minor {
		var id int64
		if err := tx.QueryRow(ctx, `INSERT INTO responsible_parties (name) VALUES ($1) RETURNING id`, s.faker.Name()).Scan(&id); err != nil {
			return err
		}
		responsibleID = &id
		s.minors++
	}

	var patientID int64
	err := tx.QueryRow(ctx, `
		INSERT INTO patients (name, email, birth_date, responsible_party_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, s.faker.Name(), s.faker.Email(), birth, responsibleID).Scan(&patientID)
	if err != nil {
		return err
	}

	if s.faker.Number(1, 100) <= 50 {
		signed := s.now.AddDate(0, 0, -s.faker.Number(1, 90))
		if _, err := tx.Exec(ctx, `
			INSERT INTO consent_records (patient_id, type, signed_at, valid_until, signed_by_responsible_id)
			VALUES ($1, 'SURGERY', $2, $3, $4)
		`, patientID, signed, signed.AddDate(1, 0, 0), responsibleID); err != nil {
			return err
		}
	}

	if s.faker.Number(1, 100) <= 30 {
		return s.seedPlan(ctx, tx, patientID)
	}
	return nil
}

func (s *seeder) seedPlan(ctx context.Context, tx pgx.Tx, patientID int64) error {
	var planID int64
	err := tx.QueryRow(ctx, `
		INSERT INTO treatment_plans (patient_id, title, status)
		VALUES ($1, $2, 'ACTIVE')
		RETURNING id
	`, patientID, s.faker.RandomString(planTitles)).Scan(&planID)
	if err != nil {
		return err
	}

	steps := s.faker.Number(1, 3)
	for order := 1; order <= steps; order++ {
		total := 1
		multi := s.faker.Number(1, 100) <= 60
		if multi {
			total = s.faker.Number(2, 6)
		}
		current := s.faker.Number(0, total-1)
		status := "PENDING"
		if current > 0 {
			status = "IN_PROGRESS"
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO treatment_steps
				(plan_id, step_order, name, status, requires_multiple_sessions, current_session, total_sessions, estimated_duration_min)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, planID, order, s.faker.RandomString(stepNames), status, multi, current, total, 30*s.faker.Number(1, 3)); err != nil {
			return err
		}
	}
	s.plans++
	return nil
}
