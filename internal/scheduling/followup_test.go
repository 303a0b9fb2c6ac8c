package scheduling

import (
	"testing"
)

func intPtr(n int) *int { return &n }

func TestBuildFollowUpContext_SingleMultiSessionStep(t *testing.T) {
	plans := []TreatmentPlan{{
		ID: 1, Title: "Plan integral", Status: PlanActive,
		Steps: []TreatmentStep{
			{ID: 11, Order: 1, Name: "Endodoncia", Status: StepInProgress, RequiresMultipleSessions: true, CurrentSession: 1, TotalSessions: 3},
		},
	}}

	fc := BuildFollowUpContext(plans)
	if !fc.HasActivePlan || !fc.HasPendingSessions {
		t.Fatalf("unexpected flags: %+v", fc)
	}
	if len(fc.NextSessions) != 1 {
		t.Fatalf("expected one next session, got %d", len(fc.NextSessions))
	}
	got := fc.NextSessions[0]
	if got.StepID != 11 || got.StepName != "Endodoncia" || got.NextSessionNumber != 2 || got.TotalSessions != 3 {
		t.Errorf("unexpected next session: %+v", got)
	}
	if reason := SuggestedReason(fc); reason != "Sesión 2 de 3 - Endodoncia" {
		t.Errorf("SuggestedReason = %q", reason)
	}
	if d := SuggestedDurationMin(fc); d != DefaultFollowUpDurationMin {
		t.Errorf("SuggestedDurationMin = %d, want %d", d, DefaultFollowUpDurationMin)
	}
}

func TestBuildFollowUpContext_SelectionPolicy(t *testing.T) {
	plans := []TreatmentPlan{
		{ID: 1, Title: "Ortodoncia", Status: PlanActive, Steps: []TreatmentStep{
			{ID: 1, Order: 3, Name: "Control brackets", Status: StepPending, RequiresMultipleSessions: true, CurrentSession: 0, TotalSessions: 12, EstimatedDurationMin: intPtr(30)},
			{ID: 2, Order: 1, Name: "Limpieza", Status: StepPending},
			{ID: 3, Order: 2, Name: "Blanqueamiento", Status: StepPending, RequiresMultipleSessions: true, CurrentSession: 3, TotalSessions: 3},
			{ID: 4, Order: 0, Name: "Implante", Status: StepCancelled, RequiresMultipleSessions: true, CurrentSession: 0, TotalSessions: 2},
		}},
		{ID: 2, Title: "Viejo", Status: PlanCompleted, Steps: []TreatmentStep{
			{ID: 5, Order: 0, Name: "Corona", Status: StepPending, RequiresMultipleSessions: true, CurrentSession: 0, TotalSessions: 2},
		}},
		{ID: 3, Title: "Periodoncia", Status: PlanActive, Steps: []TreatmentStep{
			{ID: 6, Order: 2, Name: "Raspado", Status: StepInProgress, RequiresMultipleSessions: true, CurrentSession: 1, TotalSessions: 4, EstimatedDurationMin: intPtr(45)},
		}},
	}

	fc := BuildFollowUpContext(plans)
	if fc.PlanTitle != "Ortodoncia" {
		t.Errorf("PlanTitle = %q, want first active plan", fc.PlanTitle)
	}
	var ids []int64
	for _, n := range fc.NextSessions {
		ids = append(ids, n.StepID)
	}
	if len(ids) != 2 || ids[0] != 6 || ids[1] != 1 {
		t.Fatalf("next session steps = %v, want [6 1]", ids)
	}
	if reason := SuggestedReason(fc); reason != "Seguimiento - Plan: Ortodoncia" {
		t.Errorf("SuggestedReason = %q", reason)
	}
	if d := SuggestedDurationMin(fc); d != 45 {
		t.Errorf("SuggestedDurationMin = %d, want 45", d)
	}
}

func TestBuildFollowUpContext_NoActivePlan(t *testing.T) {
	fc := BuildFollowUpContext([]TreatmentPlan{{ID: 1, Title: "Borrador", Status: PlanDraft}})
	if fc.HasActivePlan || fc.HasPendingSessions {
		t.Errorf("unexpected flags: %+v", fc)
	}
	if fc.NextSessions == nil {
		t.Error("NextSessions should be empty, not nil")
	}
	if reason := SuggestedReason(fc); reason != "Control de seguimiento" {
		t.Errorf("SuggestedReason = %q", reason)
	}
}
