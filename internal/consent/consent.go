// Package consent validates informed-consent records before a gated
// procedure is booked.
package consent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hackgods/dental-clinic-scheduling/internal/scheduling"
)

const AdultAge = 18

var ErrPatientNotFound = errors.New("patient not found")

type Patient struct {
	ID                 int64
	BirthDate          time.Time
	ResponsiblePartyID *int64
}

type Record struct {
	ID         int64
	PatientID  int64
	Type       string
	SignedAt   time.Time
	ValidUntil time.Time
	// SignedByResponsibleID is set when a responsible party signed on the
	// patient's behalf.
	SignedByResponsibleID *int64
}

// ValidAt reports whether the record covers the reference date.
func (r Record) ValidAt(ref time.Time) bool {
	return !ref.Before(r.SignedAt) && !ref.After(r.ValidUntil)
}

type Repository interface {
	GetPatient(ctx context.Context, id int64) (*Patient, error)
	ListConsents(ctx context.Context, patientID int64, consentType string) ([]Record, error)
}

type Checker struct {
	repo Repository
	loc  *time.Location
}

// NewChecker builds a checker that computes ages on the calendar of loc,
// the clinic's time zone. A nil loc means UTC.
func NewChecker(repo Repository, loc *time.Location) *Checker {
	if loc == nil {
		loc = time.UTC
	}
	return &Checker{repo: repo, loc: loc}
}

// AgeAt returns the age in whole years on the calendar day of ref. The birth
// date is a calendar date: only its year, month and day are read, and ref is
// taken in whatever location the caller gave it.
func AgeAt(birth, ref time.Time) int {
	by, bm, bd := birth.Date()
	ry, rm, rd := ref.Date()
	age := ry - by
	if rm < bm || (rm == bm && rd < bd) {
		age--
	}
	return age
}

// CheckConsent looks for a consent record of the given type valid at
// referenceDate. Minors need a record signed by their linked responsible
// party.
func (c *Checker) CheckConsent(ctx context.Context, patientID int64, consentType string, referenceDate time.Time) (scheduling.ConsentDecision, error) {
	patient, err := c.repo.GetPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return scheduling.ConsentDecision{Valid: false, Reason: "patient not found"}, nil
		}
		return scheduling.ConsentDecision{}, fmt.Errorf("load patient: %w", err)
	}

	minor := AgeAt(patient.BirthDate, referenceDate.In(c.loc)) < AdultAge
	if minor && patient.ResponsiblePartyID == nil {
		return scheduling.ConsentDecision{
			Valid:  false,
			Minor:  true,
			Reason: "patient is a minor without a linked responsible party",
		}, nil
	}

	records, err := c.repo.ListConsents(ctx, patientID, consentType)
	if err != nil {
		return scheduling.ConsentDecision{}, fmt.Errorf("list consents: %w", err)
	}

	sawUnsigned := false
	for _, r := range records {
		if r.Type != consentType || !r.ValidAt(referenceDate) {
			continue
		}
		if !minor {
			return scheduling.ConsentDecision{Valid: true}, nil
		}
		if r.SignedByResponsibleID != nil && *r.SignedByResponsibleID == *patient.ResponsiblePartyID {
			return scheduling.ConsentDecision{Valid: true, Minor: true}, nil
		}
		sawUnsigned = true
	}

	reason := fmt.Sprintf("no valid %s consent on file for %s", consentType, referenceDate.In(c.loc).Format("2006-01-02"))
	if sawUnsigned {
		reason = "consent for a minor must be signed by the linked responsible party"
	}
	return scheduling.ConsentDecision{Valid: false, Minor: minor, Reason: reason}, nil
}
