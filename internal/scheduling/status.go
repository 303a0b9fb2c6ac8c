package scheduling

// forward rank of the main lifecycle chain; terminal-only states are absent.
var statusRank = map[AppointmentStatus]int{
	StatusScheduled:  0,
	StatusConfirmed:  1,
	StatusCheckedIn:  2,
	StatusInProgress: 3,
	StatusCompleted:  4,
}

// IsTerminal reports whether no further transition is allowed.
func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// BlocksTime reports whether an appointment in this status occupies its
// professional and room.
func (s AppointmentStatus) BlocksTime() bool {
	return s != StatusCancelled && s != StatusNoShow
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCheckedIn, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// CanTransition reports whether an appointment may move from one status to
// another. The main chain only moves forward (skipping is allowed),
// CANCELLED is reachable from any non-terminal status and NO_SHOW only
// before the patient checked in.
func CanTransition(from, to AppointmentStatus) bool {
	if from.IsTerminal() || from == to || !to.Valid() {
		return false
	}
	switch to {
	case StatusCancelled:
		return true
	case StatusNoShow:
		return from == StatusScheduled || from == StatusConfirmed
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	return statusRank[to] > fromRank
}
