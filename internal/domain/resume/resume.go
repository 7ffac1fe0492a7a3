package resume

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("resume not found")
	ErrQuotaExceeded = errors.New("resume quota exceeded")
)

const DefaultTemplate = "modern"

type WorkExperience struct {
	Company     string `json:"company,omitempty" binding:"omitempty,max=200"`
	JobTitle    string `json:"jobTitle,omitempty" binding:"omitempty,max=200"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	Description string `json:"description,omitempty" binding:"omitempty,max=4000"`
}

type Education struct {
	Institution  string `json:"institution,omitempty" binding:"omitempty,max=200"`
	Degree       string `json:"degree,omitempty" binding:"omitempty,max=200"`
	FieldOfStudy string `json:"fieldOfStudy,omitempty" binding:"omitempty,max=200"`
	StartDate    string `json:"startDate,omitempty"`
	EndDate      string `json:"endDate,omitempty"`
}

type Resume struct {
	ID                  string           `json:"id"`
	UserID              string           `json:"user"`
	Title               string           `json:"title"`
	ProfessionalSummary string           `json:"professionalSummary,omitempty"`
	WorkExperience      []WorkExperience `json:"workExperience"`
	Education           []Education      `json:"education"`
	Skills              []string         `json:"skills"`
	Template            string           `json:"template"`
	CreatedAt           time.Time        `json:"createdAt"`
	UpdatedAt           time.Time        `json:"updatedAt"`
}

type CreateResumeRequest struct {
	Title               string           `json:"title" binding:"required,min=1,max=200"`
	ProfessionalSummary string           `json:"professionalSummary" binding:"omitempty,max=2000"`
	WorkExperience      []WorkExperience `json:"workExperience" binding:"omitempty,max=50,dive"`
	Education           []Education      `json:"education" binding:"omitempty,max=50,dive"`
	Skills              []string         `json:"skills" binding:"omitempty,max=100,dive,max=100"`
	Template            string           `json:"template" binding:"omitempty,max=40"`
}

// UpdateResumeRequest is a partial update: nil fields are left untouched.
type UpdateResumeRequest struct {
	Title               *string           `json:"title" binding:"omitempty,min=1,max=200"`
	ProfessionalSummary *string           `json:"professionalSummary" binding:"omitempty,max=2000"`
	WorkExperience      *[]WorkExperience `json:"workExperience" binding:"omitempty"`
	Education           *[]Education      `json:"education" binding:"omitempty"`
	Skills              *[]string         `json:"skills" binding:"omitempty"`
	Template            *string           `json:"template" binding:"omitempty,max=40"`
}

type ListFilter struct {
	UserID       string
	Limit        int
	AfterUpdated *time.Time
	AfterID      string
}

func (r *Resume) Apply(req UpdateResumeRequest) {
	if req.Title != nil {
		r.Title = *req.Title
	}
	if req.ProfessionalSummary != nil {
		r.ProfessionalSummary = *req.ProfessionalSummary
	}
	if req.WorkExperience != nil {
		r.WorkExperience = *req.WorkExperience
	}
	if req.Education != nil {
		r.Education = *req.Education
	}
	if req.Skills != nil {
		r.Skills = *req.Skills
	}
	if req.Template != nil && *req.Template != "" {
		r.Template = *req.Template
	}
	r.normalize()
}
