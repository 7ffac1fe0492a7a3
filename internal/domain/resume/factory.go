package resume

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

func NewFromCreateRequest(userID string, req CreateResumeRequest) Resume {
	now := time.Now().UTC()

	template := strings.TrimSpace(req.Template)
	if template == "" {
		template = DefaultTemplate
	}

	r := Resume{
		ID:                  uuid.NewString(),
		UserID:              userID,
		Title:               strings.TrimSpace(req.Title),
		ProfessionalSummary: strings.TrimSpace(req.ProfessionalSummary),
		WorkExperience:      req.WorkExperience,
		Education:           req.Education,
		Skills:              req.Skills,
		Template:            template,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	r.normalize()

	return r
}

// normalize keeps collections non-nil so they serialize as [] rather than null.
func (r *Resume) normalize() {
	if r.WorkExperience == nil {
		r.WorkExperience = []WorkExperience{}
	}
	if r.Education == nil {
		r.Education = []Education{}
	}
	if r.Skills == nil {
		r.Skills = []string{}
	}
	for i, s := range r.Skills {
		r.Skills[i] = strings.TrimSpace(s)
	}
}
