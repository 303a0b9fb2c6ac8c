package scheduling

import (
	"sort"
	"time"
)

// Overlaps reports whether the half-open intervals [s1, e1) and [s2, e2)
// intersect. Touching intervals do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// Availability is the outcome of an availability check. Professional and
// room conflicts are kept apart because they are distinct failure reasons;
// an appointment booked for the same professional and the same room shows
// up in both lists.
type Availability struct {
	ProfessionalConflicts []Appointment
	RoomConflicts         []Appointment
}

func (a Availability) Free() bool {
	return len(a.ProfessionalConflicts) == 0 && len(a.RoomConflicts) == 0
}

// CheckAvailability decides whether the requested interval is free for the
// request's professional and room given the appointments the caller fetched
// for the lookup window. It performs no I/O.
func CheckAvailability(req Request, existing []Appointment) Availability {
	var out Availability
	start, end := req.Start, req.End()

	for _, appt := range existing {
		if !appt.Status.BlocksTime() {
			continue
		}
		if req.ExcludeAppointmentID != nil && appt.ID == *req.ExcludeAppointmentID {
			continue
		}
		if !Overlaps(start, end, appt.Start, appt.End()) {
			continue
		}
		if appt.ProfessionalID == req.ProfessionalID {
			out.ProfessionalConflicts = append(out.ProfessionalConflicts, appt)
		}
		if appt.RoomID == req.RoomID {
			out.RoomConflicts = append(out.RoomConflicts, appt)
		}
	}

	sortByStart(out.ProfessionalConflicts)
	sortByStart(out.RoomConflicts)
	return out
}

func sortByStart(appts []Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		if appts[i].Start.Equal(appts[j].Start) {
			return appts[i].ID < appts[j].ID
		}
		return appts[i].Start.Before(appts[j].Start)
	})
}

func appointmentIDs(appts []Appointment) []int64 {
	ids := make([]int64, 0, len(appts))
	for _, a := range appts {
		ids = append(ids, a.ID)
	}
	return ids
}
