package user

import "testing"

func TestPlanQuota(t *testing.T) {
	tests := []struct {
		plan  Plan
		quota int
	}{
		{PlanFree, 2},
		{PlanBasic, 5},
		{PlanPro, 10},
	}

	for _, tt := range tests {
		t.Run(string(tt.plan), func(t *testing.T) {
			if !tt.plan.IsValid() {
				t.Fatalf("expected %q to be valid", tt.plan)
			}
			change := ChangeTo(tt.plan)
			if change.ResumeLimit != tt.quota {
				t.Fatalf("quota for %q: got %d, want %d", tt.plan, change.ResumeLimit, tt.quota)
			}
		})
	}

	if Plan("enterprise").IsValid() {
		t.Fatalf("unknown plan must be invalid")
	}
}
