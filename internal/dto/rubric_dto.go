package dto

import (
	"time"

	"github.com/abhisheksingh810/marking-api/internal/models"
)

// AssessmentCreateRequest defines a new assessment shell.
type AssessmentCreateRequest struct {
	Code  string `json:"code" validate:"required,max=64"`
	Title string `json:"title" validate:"required,max=255"`
}

// SectionCreateRequest adds a rubric section to an assessment.
type SectionCreateRequest struct {
	AssessmentID uint   `json:"assessment_id" validate:"required,gt=0"`
	Title        string `json:"title" validate:"required,max=255"`
	Position     int    `json:"position" validate:"gte=0"`
}

// SectionUpdateRequest edits a rubric section.
type SectionUpdateRequest struct {
	Title    *string `json:"title" validate:"omitempty,max=255"`
	Position *int    `json:"position" validate:"omitempty,gte=0"`
	Active   *bool   `json:"active"`
}

// OptionCreateRequest adds a marking option to a section.
type OptionCreateRequest struct {
	SectionID uint    `json:"section_id" validate:"required,gt=0"`
	Label     string  `json:"label" validate:"required,max=255"`
	Marks     float64 `json:"marks" validate:"gte=0"`
	Position  int     `json:"position" validate:"gte=0"`
}

// OptionUpdateRequest edits a marking option.
type OptionUpdateRequest struct {
	Label    *string  `json:"label" validate:"omitempty,max=255"`
	Marks    *float64 `json:"marks" validate:"omitempty,gte=0"`
	Position *int     `json:"position" validate:"omitempty,gte=0"`
	Active   *bool    `json:"active"`
}

// BoundaryCreateRequest adds a grade boundary to an assessment.
type BoundaryCreateRequest struct {
	AssessmentID uint    `json:"assessment_id" validate:"required,gt=0"`
	Label        string  `json:"label" validate:"required,max=32"`
	MarksFrom    float64 `json:"marks_from" validate:"gte=0"`
	MarksTo      float64 `json:"marks_to" validate:"gtefield=MarksFrom"`
	Pass         bool    `json:"pass"`
}

// BoundaryUpdateRequest edits a grade boundary.
type BoundaryUpdateRequest struct {
	Label     *string  `json:"label" validate:"omitempty,max=32"`
	MarksFrom *float64 `json:"marks_from" validate:"omitempty,gte=0"`
	MarksTo   *float64 `json:"marks_to"`
	Pass      *bool    `json:"pass"`
}

// AssessmentResponse serializes an assessment with its rubric.
type AssessmentResponse struct {
	ID         uint               `json:"id"`
	Code       string             `json:"code"`
	Title      string             `json:"title"`
	TotalMarks float64            `json:"total_marks"`
	Active     bool               `json:"active"`
	Sections   []SectionResponse  `json:"sections,omitempty"`
	Boundaries []BoundaryResponse `json:"boundaries,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// SectionResponse serializes a rubric section.
type SectionResponse struct {
	ID       uint             `json:"id"`
	Title    string           `json:"title"`
	Position int              `json:"position"`
	Active   bool             `json:"active"`
	MaxMarks float64          `json:"max_marks"`
	Options  []OptionResponse `json:"options,omitempty"`
}

// OptionResponse serializes a marking option.
type OptionResponse struct {
	ID       uint    `json:"id"`
	Label    string  `json:"label"`
	Marks    float64 `json:"marks"`
	Position int     `json:"position"`
	Active   bool    `json:"active"`
}

// BoundaryResponse serializes a grade boundary.
type BoundaryResponse struct {
	ID        uint    `json:"id"`
	Label     string  `json:"label"`
	MarksFrom float64 `json:"marks_from"`
	MarksTo   float64 `json:"marks_to"`
	Pass      bool    `json:"pass"`
}

// NewAssessmentResponse converts an Assessment model into a DTO.
func NewAssessmentResponse(model models.Assessment) AssessmentResponse {
	response := AssessmentResponse{
		ID:         model.ID,
		Code:       model.Code,
		Title:      model.Title,
		TotalMarks: model.TotalMarks,
		Active:     model.Active,
		CreatedAt:  model.CreatedAt,
	}

	for _, section := range model.Sections {
		response.Sections = append(response.Sections, NewSectionResponse(section))
	}

	for _, boundary := range model.Boundaries {
		response.Boundaries = append(response.Boundaries, NewBoundaryResponse(boundary))
	}

	return response
}

// NewSectionResponse converts a section model into a DTO.
func NewSectionResponse(model models.AssessmentSection) SectionResponse {
	response := SectionResponse{
		ID:       model.ID,
		Title:    model.Title,
		Position: model.Position,
		Active:   model.Active,
		MaxMarks: model.MaxMarks(),
	}

	for _, option := range model.Options {
		response.Options = append(response.Options, OptionResponse{
			ID:       option.ID,
			Label:    option.Label,
			Marks:    option.Marks,
			Position: option.Position,
			Active:   option.Active,
		})
	}

	return response
}

// NewBoundaryResponse converts a boundary model into a DTO.
func NewBoundaryResponse(model models.GradeBoundary) BoundaryResponse {
	return BoundaryResponse{
		ID:        model.ID,
		Label:     model.Label,
		MarksFrom: model.MarksFrom,
		MarksTo:   model.MarksTo,
		Pass:      model.Pass,
	}
}
