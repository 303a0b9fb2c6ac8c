package consent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hackgods/dental-clinic-scheduling/internal/scheduling"
)

type mockRepo struct {
	patients map[int64]*Patient
	records  []Record
	err      error
}

func (m *mockRepo) GetPatient(_ context.Context, id int64) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

func (m *mockRepo) ListConsents(_ context.Context, patientID int64, consentType string) ([]Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []Record
	for _, r := range m.records {
		if r.PatientID == patientID && r.Type == consentType {
			out = append(out, r)
		}
	}
	return out, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func i64(n int64) *int64 { return &n }

func TestAgeAt(t *testing.T) {
	birth := date(2010, time.June, 15)
	tests := []struct {
		ref  time.Time
		want int
	}{
		{date(2028, time.June, 14), 17},
		{date(2028, time.June, 15), 18},
		{date(2028, time.December, 1), 18},
		{date(2026, time.March, 2), 15},
		{time.Date(2028, time.June, 14, 23, 0, 0, 0, time.FixedZone("UTC-3", -3*60*60)), 17},
	}
	for _, tt := range tests {
		if got := AgeAt(birth, tt.ref); got != tt.want {
			t.Errorf("AgeAt(%s) = %d, want %d", tt.ref.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestCheckConsent(t *testing.T) {
	ref := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	repo := &mockRepo{
		patients: map[int64]*Patient{
			1: {ID: 1, BirthDate: date(1990, time.January, 1)},
			2: {ID: 2, BirthDate: date(2010, time.June, 15), ResponsiblePartyID: i64(50)},
			3: {ID: 3, BirthDate: date(2011, time.May, 1)},
		},
		records: []Record{
			{ID: 1, PatientID: 1, Type: "SURGERY", SignedAt: date(2026, time.January, 1), ValidUntil: date(2026, time.December, 31)},
			{ID: 2, PatientID: 2, Type: "SURGERY", SignedAt: date(2026, time.January, 1), ValidUntil: date(2026, time.December, 31)},
		},
	}
	c := NewChecker(repo, time.UTC)

	tests := []struct {
		name      string
		patientID int64
		ref       time.Time
		wantValid bool
		wantMinor bool
	}{
		{"adult with valid record", 1, ref, true, false},
		{"adult after expiry", 1, date(2027, time.January, 2), false, false},
		{"adult before signature", 1, date(2025, time.December, 1), false, false},
		{"minor signed by patient", 2, ref, false, true},
		{"minor without responsible party", 3, ref, false, true},
		{"unknown patient", 99, ref, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.CheckConsent(context.Background(), tt.patientID, "SURGERY", tt.ref)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Valid != tt.wantValid || got.Minor != tt.wantMinor {
				t.Errorf("decision = %+v, want valid=%v minor=%v", got, tt.wantValid, tt.wantMinor)
			}
			if !got.Valid && got.Reason == "" {
				t.Error("rejection without a reason")
			}
		})
	}

	repo.records = append(repo.records, Record{
		ID: 3, PatientID: 2, Type: "SURGERY", SignedAt: date(2026, time.February, 1),
		ValidUntil: date(2026, time.August, 1), SignedByResponsibleID: i64(50),
	})
	got, err := c.CheckConsent(context.Background(), 2, "SURGERY", ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Valid {
		t.Errorf("minor with responsible-party signature should be valid: %+v", got)
	}
}

// Ages follow the clinic calendar. 21:30 on the eve of the 18th birthday in
// a UTC-3 clinic is already the birthday in UTC, but the patient is still a
// minor, so a record the patient signed alone does not count.
func TestCheckConsent_MinorOnClinicCalendar(t *testing.T) {
	clinic := time.FixedZone("UTC-3", -3*60*60)
	repo := &mockRepo{
		patients: map[int64]*Patient{
			1: {ID: 1, BirthDate: date(2010, time.June, 15), ResponsiblePartyID: i64(50)},
		},
		records: []Record{
			{ID: 1, PatientID: 1, Type: "SURGERY", SignedAt: date(2028, time.January, 1), ValidUntil: date(2028, time.December, 31)},
		},
	}
	eve := time.Date(2028, time.June, 14, 21, 30, 0, 0, clinic)

	got, err := NewChecker(repo, clinic).CheckConsent(context.Background(), 1, "SURGERY", eve)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Valid || !got.Minor {
		t.Errorf("decision = %+v, want minor without a valid consent", got)
	}

	birthday := time.Date(2028, time.June, 15, 9, 0, 0, 0, clinic)
	got, err = NewChecker(repo, clinic).CheckConsent(context.Background(), 1, "SURGERY", birthday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Valid || got.Minor {
		t.Errorf("on the birthday: decision = %+v, want adult with a valid consent", got)
	}
}

func TestCheckConsent_RepositoryError(t *testing.T) {
	repo := &mockRepo{
		patients: map[int64]*Patient{1: {ID: 1, BirthDate: date(1990, time.January, 1)}},
		err:      errors.New("db down"),
	}
	_, err := NewChecker(repo, nil).CheckConsent(context.Background(), 1, "SURGERY", time.Now())
	if err == nil {
		t.Fatal("expected an error")
	}
}

// A surgery requested for a 15-year-old with no consent on file is rejected
// by the validator with CONSENT_REQUIRED.
type validatorStore struct{}

func (validatorStore) GetProfessional(_ context.Context, id int64) (*scheduling.Professional, error) {
	return &scheduling.Professional{ID: id, Active: true, WorkingHours: []scheduling.WorkingInterval{
		{Weekday: time.Monday, StartMinute: 8 * 60, EndMinute: 18 * 60},
	}}, nil
}

func (validatorStore) GetRoom(_ context.Context, id int64) (*scheduling.Room, error) {
	return &scheduling.Room{ID: id, Active: true}, nil
}

func (validatorStore) ListBlockingAppointments(context.Context, int64, int64, time.Time, time.Time) ([]scheduling.Appointment, error) {
	return nil, nil
}

func (validatorStore) ListTreatmentPlans(context.Context, int64) ([]scheduling.TreatmentPlan, error) {
	return nil, nil
}

func TestValidatorRejectsSurgeryForMinorWithoutConsent(t *testing.T) {
	start := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	repo := &mockRepo{patients: map[int64]*Patient{
		7: {ID: 7, BirthDate: date(2010, time.September, 20), ResponsiblePartyID: i64(70)},
	}}

	v := scheduling.NewValidator(validatorStore{}, NewChecker(repo, time.UTC), scheduling.Options{
		Location:              time.UTC,
		ConsentProcedureTypes: []string{"SURGERY"},
		Now:                   func() time.Time { return start.Add(-24 * time.Hour) },
	})

	res, err := v.Validate(context.Background(), scheduling.Request{
		PatientID: 7, ProfessionalID: 1, RoomID: 1,
		Start: start, DurationMinutes: 60, ProcedureType: "SURGERY",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Accepted {
		t.Fatal("expected rejection")
	}
	codes := res.Codes()
	if len(codes) != 1 || codes[0] != scheduling.CodeConsentRequired {
		t.Fatalf("codes = %v, want [CONSENT_REQUIRED]", codes)
	}
	if minor, _ := res.Violations[0].Details["minor"].(bool); !minor {
		t.Error("violation should flag the patient as a minor")
	}
}
