package scheduling

import (
	"math/rand"
	"testing"
	"time"
)

func TestOverlaps(t *testing.T) {
	base := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	m := func(n int) time.Time { return base.Add(time.Duration(n) * time.Minute) }

	tests := []struct {
		name           string
		s1, e1, s2, e2 time.Time
		want           bool
	}{
		{"identical", m(0), m(30), m(0), m(30), true},
		{"partial overlap", m(0), m(30), m(15), m(45), true},
		{"contained", m(0), m(60), m(15), m(30), true},
		{"back to back", m(0), m(30), m(30), m(60), false},
		{"back to back reversed", m(30), m(60), m(0), m(30), false},
		{"disjoint", m(0), m(10), m(20), m(30), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.s1, tt.e1, tt.s2, tt.e2); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
			if got := Overlaps(tt.s2, tt.e2, tt.s1, tt.e1); got != tt.want {
				t.Errorf("Overlaps (swapped) = %v, want %v", got, tt.want)
			}
		})
	}
}

// minuteOverlap is the reference: two minute ranges overlap when they share
// at least one whole minute.
func minuteOverlap(s1, d1, s2, d2 int) bool {
	for m := s1; m < s1+d1; m++ {
		if m >= s2 && m < s2+d2 {
			return true
		}
	}
	return false
}

func TestOverlaps_RandomizedAgainstReference(t *testing.T) {
	rng := rand.New(rand.NewSource(20260302))
	base := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5000; i++ {
		s1, d1 := rng.Intn(600), 1+rng.Intn(120)
		s2, d2 := rng.Intn(600), 1+rng.Intn(120)

		a := Appointment{ID: 1, ProfessionalID: 1, RoomID: 1, Start: base.Add(time.Duration(s1) * time.Minute), DurationMinutes: d1, Status: StatusScheduled}
		req := Request{ProfessionalID: 1, RoomID: 2, Start: base.Add(time.Duration(s2) * time.Minute), DurationMinutes: d2}

		want := minuteOverlap(s1, d1, s2, d2)
		av := CheckAvailability(req, []Appointment{a})
		if got := len(av.ProfessionalConflicts) == 1; got != want {
			t.Fatalf("[%d,+%d) vs [%d,+%d): conflict=%v, want %v", s1, d1, s2, d2, got, want)
		}
		if len(av.RoomConflicts) != 0 {
			t.Fatalf("room conflict reported for a different room")
		}
	}
}

// Accepting only non-conflicting candidates must leave a set of pairwise
// disjoint intervals per professional.
func TestCheckAvailability_AcceptedSetStaysDisjoint(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)

	var booked []Appointment
	for i := 0; i < 2000; i++ {
		req := Request{
			ProfessionalID:  int64(1 + rng.Intn(3)),
			RoomID:          int64(1 + rng.Intn(3)),
			Start:           base.Add(time.Duration(rng.Intn(48)*5) * time.Minute),
			DurationMinutes: 5 * (1 + rng.Intn(12)),
		}
		if !CheckAvailability(req, booked).Free() {
			continue
		}
		status := StatusScheduled
		if rng.Intn(10) == 0 {
			status = StatusCancelled
		}
		booked = append(booked, Appointment{
			ID: int64(i + 1), ProfessionalID: req.ProfessionalID, RoomID: req.RoomID,
			Start: req.Start, DurationMinutes: req.DurationMinutes, Status: status,
		})
	}

	for i := range booked {
		for j := i + 1; j < len(booked); j++ {
			a, b := booked[i], booked[j]
			if !a.Status.BlocksTime() || !b.Status.BlocksTime() {
				continue
			}
			if a.ProfessionalID != b.ProfessionalID && a.RoomID != b.RoomID {
				continue
			}
			if Overlaps(a.Start, a.End(), b.Start, b.End()) {
				t.Fatalf("overlapping appointments accepted: %+v and %+v", a, b)
			}
		}
	}
}

func FuzzOverlapsSymmetric(f *testing.F) {
	f.Add(int64(0), int64(30), int64(30), int64(60))
	f.Add(int64(0), int64(30), int64(15), int64(45))
	f.Fuzz(func(t *testing.T, s1, e1, s2, e2 int64) {
		if e1 <= s1 || e2 <= s2 {
			t.Skip()
		}
		a1, b1 := time.Unix(s1, 0), time.Unix(e1, 0)
		a2, b2 := time.Unix(s2, 0), time.Unix(e2, 0)
		if Overlaps(a1, b1, a2, b2) != Overlaps(a2, b2, a1, b1) {
			t.Fatalf("Overlaps not symmetric for [%d,%d) [%d,%d)", s1, e1, s2, e2)
		}
		if e1 == s2 && Overlaps(a1, b1, a2, b2) {
			t.Fatalf("back-to-back intervals reported as overlapping")
		}
	})
}
