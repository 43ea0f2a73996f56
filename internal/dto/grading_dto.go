package dto

import (
	"time"

	"github.com/abhisheksingh810/marking-api/internal/models"
)

// SectionMarkEntry carries a marker's decision for one rubric section.
type SectionMarkEntry struct {
	SectionID       uint    `json:"section_id" validate:"required,gt=0"`
	Marks           float64 `json:"marks" validate:"gte=0"`
	MarkingOptionID *uint   `json:"marking_option_id"`
	Feedback        string  `json:"feedback" validate:"omitempty,max=4000"`
}

// ScoreRequest records section marks and completes the grade for a submission.
type ScoreRequest struct {
	Marks           []SectionMarkEntry `json:"marks" validate:"required,min=1,dive"`
	FeedbackSummary string             `json:"feedback_summary" validate:"omitempty,max=8000"`
}

// SkipRequest skips marking for a submission with a recorded reason.
type SkipRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// GradeResponse serializes a submission's final grade.
type GradeResponse struct {
	SubmissionID    uint       `json:"submission_id"`
	TotalAwarded    float64    `json:"total_awarded"`
	TotalPossible   float64    `json:"total_possible"`
	GradeLabel      string     `json:"grade_label"`
	Pass            bool       `json:"pass"`
	Percentage      float64    `json:"percentage"`
	FeedbackSummary string     `json:"feedback_summary"`
	SkipReason      *string    `json:"skip_reason"`
	CompletedAt     *time.Time `json:"completed_at"`
}

// SectionMarkResponse serializes one recorded section mark.
type SectionMarkResponse struct {
	SectionID       uint    `json:"section_id"`
	Marks           float64 `json:"marks"`
	MarkingOptionID *uint   `json:"marking_option_id"`
	Feedback        string  `json:"feedback"`
}

// NewGradeResponse converts a Grade model into a DTO.
func NewGradeResponse(model models.Grade) GradeResponse {
	return GradeResponse{
		SubmissionID:    model.SubmissionID,
		TotalAwarded:    model.TotalAwarded,
		TotalPossible:   model.TotalPossible,
		GradeLabel:      model.GradeLabel,
		Pass:            model.Pass,
		Percentage:      model.Percentage,
		FeedbackSummary: model.FeedbackSummary,
		SkipReason:      model.SkipReason,
		CompletedAt:     model.CompletedAt,
	}
}

// NewSectionMarkResponseSlice converts recorded section marks.
func NewSectionMarkResponseSlice(marks []models.SectionMark) []SectionMarkResponse {
	responses := make([]SectionMarkResponse, 0, len(marks))
	for _, mark := range marks {
		responses = append(responses, SectionMarkResponse{
			SectionID:       mark.SectionID,
			Marks:           mark.Marks,
			MarkingOptionID: mark.MarkingOptionID,
			Feedback:        mark.Feedback,
		})
	}
	return responses
}
