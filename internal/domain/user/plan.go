package user

type Plan string

const (
	PlanFree  Plan = "free"
	PlanBasic Plan = "basic"
	PlanPro   Plan = "pro"
)

func (p Plan) IsValid() bool {
	switch p {
	case PlanFree, PlanBasic, PlanPro:
		return true
	default:
		return false
	}
}

// Quota is the resume limit each plan tier grants.
func (p Plan) Quota() int {
	switch p {
	case PlanBasic:
		return 5
	case PlanPro:
		return 10
	default:
		return 2
	}
}

// PlanChange is a plan tier together with the quota it carries.
type PlanChange struct {
	Plan        Plan
	ResumeLimit int
}

func ChangeTo(p Plan) PlanChange {
	return PlanChange{Plan: p, ResumeLimit: p.Quota()}
}
