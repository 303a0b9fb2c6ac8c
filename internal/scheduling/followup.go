package scheduling

import (
	"fmt"
	"sort"
)

const DefaultFollowUpDurationMin = 60

// BuildFollowUpContext selects the next pending sessions across the
// patient's active plans. Plans are expected in the store's order (most
// recent first); the first active plan supplies the title.
func BuildFollowUpContext(plans []TreatmentPlan) FollowUpContext {
	fc := FollowUpContext{NextSessions: []NextSessionInfo{}}

	var steps []TreatmentStep
	for _, p := range plans {
		if p.Status != PlanActive {
			continue
		}
		if !fc.HasActivePlan {
			fc.HasActivePlan = true
			fc.PlanTitle = p.Title
		}
		for _, s := range p.Steps {
			if s.RequiresMultipleSessions && s.Pending() {
				steps = append(steps, s)
			}
		}
	}

	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })

	for _, s := range steps {
		fc.NextSessions = append(fc.NextSessions, NextSessionInfo{
			StepID:               s.ID,
			StepName:             s.Name,
			NextSessionNumber:    s.CurrentSession + 1,
			TotalSessions:        s.TotalSessions,
			EstimatedDurationMin: s.EstimatedDurationMin,
		})
	}
	fc.HasPendingSessions = len(fc.NextSessions) > 0
	return fc
}

// SuggestedReason is the appointment reason proposed for a follow-up visit.
func SuggestedReason(fc FollowUpContext) string {
	switch len(fc.NextSessions) {
	case 0:
		return "Control de seguimiento"
	case 1:
		n := fc.NextSessions[0]
		return fmt.Sprintf("Sesión %d de %d - %s", n.NextSessionNumber, n.TotalSessions, n.StepName)
	default:
		return fmt.Sprintf("Seguimiento - Plan: %s", fc.PlanTitle)
	}
}

// SuggestedDurationMin takes the longest known estimate so the slot is never
// shorter than the longest pending session.
func SuggestedDurationMin(fc FollowUpContext) int {
	longest := 0
	for _, n := range fc.NextSessions {
		if n.EstimatedDurationMin != nil && *n.EstimatedDurationMin > longest {
			longest = *n.EstimatedDurationMin
		}
	}
	if longest == 0 {
		return DefaultFollowUpDurationMin
	}
	return longest
}
