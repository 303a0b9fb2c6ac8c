package scheduling

import (
	"fmt"
	"sort"
	"time"
)

const minutesPerDay = 24 * 60

func conflictViolations(av Availability) []Violation {
	var out []Violation
	if len(av.ProfessionalConflicts) > 0 {
		out = append(out, Violation{
			Code:    CodeProfessionalConflict,
			Message: fmt.Sprintf("the professional already has %d appointment(s) in this time range", len(av.ProfessionalConflicts)),
			Details: map[string]any{"appointmentIds": appointmentIDs(av.ProfessionalConflicts)},
		})
	}
	if len(av.RoomConflicts) > 0 {
		out = append(out, Violation{
			Code:    CodeRoomConflict,
			Message: fmt.Sprintf("the room is already booked by %d appointment(s) in this time range", len(av.RoomConflicts)),
			Details: map[string]any{"appointmentIds": appointmentIDs(av.RoomConflicts)},
		})
	}
	return out
}

// activeResourceViolations checks that both resources exist and are active.
// A nil professional or room means the store did not find it.
func activeResourceViolations(req Request, prof *Professional, room *Room) []Violation {
	var out []Violation
	switch {
	case prof == nil:
		out = append(out, inactive("professional", req.ProfessionalID, "professional not found"))
	case !prof.Active:
		out = append(out, inactive("professional", req.ProfessionalID, "professional is not active"))
	}
	switch {
	case room == nil:
		out = append(out, inactive("room", req.RoomID, "room not found"))
	case !room.Active:
		out = append(out, inactive("room", req.RoomID, "room is not active"))
	}
	return out
}

func inactive(resource string, id int64, msg string) Violation {
	return Violation{
		Code:    CodeInactiveResource,
		Message: msg,
		Details: map[string]any{"resource": resource, "id": id},
	}
}

// WithinWorkingHours reports whether [start, end) lies entirely inside one
// of the open intervals configured for the start's weekday in loc. Touching
// intervals are merged first, so 09:00-13:00 plus 13:00-17:00 accepts a
// 12:30-13:30 appointment. Intervals never span midnight.
func WithinWorkingHours(hours []WorkingInterval, start, end time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	ls, le := start.In(loc), end.In(loc)

	startOff := clockOffset(ls)
	endOff := clockOffset(le)
	if !sameDay(ls, le) {
		// only an end at exactly the next midnight stays on the same working day
		if endOff != 0 || !sameDay(ls, le.Add(-time.Nanosecond)) {
			return false
		}
		endOff = minutesPerDay * time.Minute
	}

	for _, iv := range mergeIntervals(hours, ls.Weekday()) {
		lo := time.Duration(iv.StartMinute) * time.Minute
		hi := time.Duration(iv.EndMinute) * time.Minute
		if lo <= startOff && endOff <= hi {
			return true
		}
	}
	return false
}

func clockOffset(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func mergeIntervals(hours []WorkingInterval, day time.Weekday) []WorkingInterval {
	var todays []WorkingInterval
	for _, iv := range hours {
		if iv.Weekday != day || iv.EndMinute <= iv.StartMinute {
			continue
		}
		todays = append(todays, iv)
	}
	sort.Slice(todays, func(i, j int) bool { return todays[i].StartMinute < todays[j].StartMinute })

	var merged []WorkingInterval
	for _, iv := range todays {
		n := len(merged)
		if n > 0 && iv.StartMinute <= merged[n-1].EndMinute {
			if iv.EndMinute > merged[n-1].EndMinute {
				merged[n-1].EndMinute = iv.EndMinute
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

func workingHoursViolation(req Request, prof *Professional, loc *time.Location) *Violation {
	if prof == nil {
		return nil
	}
	if WithinWorkingHours(prof.WorkingHours, req.Start, req.End(), loc) {
		return nil
	}
	return &Violation{
		Code:    CodeOutsideWorkingHours,
		Message: "the appointment falls outside the professional's working hours",
		Details: map[string]any{
			"weekday": req.Start.In(locOrUTC(loc)).Weekday().String(),
		},
	}
}

func leadTimeViolation(req Request, now time.Time, minLead time.Duration) *Violation {
	if req.OverrideLeadTime {
		return nil
	}
	earliest := now.Add(minLead)
	if !req.Start.Before(earliest) {
		return nil
	}
	return &Violation{
		Code:    CodeInsufficientLeadTime,
		Message: fmt.Sprintf("appointments must start at or after %s", earliest.Format(time.RFC3339)),
		Details: map[string]any{
			"earliestStart":      earliest,
			"minimumLeadMinutes": int(minLead / time.Minute),
		},
	}
}

func locOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
