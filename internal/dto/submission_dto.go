package dto

import (
	"time"

	"github.com/abhisheksingh810/marking-api/internal/models"
)

// IntakeRequest describes a submission-creation request surfaced by the LMS
// launch: the learner/context/assessment triple plus uploaded file artifacts.
type IntakeRequest struct {
	LearnerID      string `form:"learner_id" validate:"required,max=128"`
	ContextID      string `form:"context_id" validate:"required,max=128"`
	AssessmentCode string `form:"assessment_code" validate:"required,max=64"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID             uint             `json:"id"`
	LearnerID      string           `json:"learner_id"`
	ContextID      string           `json:"context_id"`
	AssessmentCode string           `json:"assessment_code"`
	AttemptNumber  int              `json:"attempt_number"`
	FileCount      int              `json:"file_count"`
	SubmittedAt    *time.Time       `json:"submitted_at"`
	MarkingStatus  string           `json:"marking_status"`
	MarkerID       *string          `json:"marker_id"`
	Grade          *GradeResponse   `json:"grade"`
	CreatedAt      time.Time        `json:"created_at"`
}

// IntakeResponse reports the outcome of a submission-intake call. A rejected
// attempt carries the eligibility result instead of a submission.
type IntakeResponse struct {
	Accepted    bool                `json:"accepted"`
	Submission  *SubmissionResponse `json:"submission,omitempty"`
	Eligibility EligibilityResult   `json:"eligibility"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:             model.ID,
		LearnerID:      model.LearnerID,
		ContextID:      model.ContextID,
		AssessmentCode: model.AssessmentCode,
		AttemptNumber:  model.AttemptNumber,
		FileCount:      model.FileCount,
		SubmittedAt:    model.SubmittedAt,
		MarkingStatus:  string(model.MarkingState().Status),
		CreatedAt:      model.CreatedAt,
	}

	if model.Marking != nil {
		response.MarkerID = model.Marking.MarkerID
	}

	if model.Grade != nil {
		grade := NewGradeResponse(*model.Grade)
		response.Grade = &grade
	}

	return response
}

// NewSubmissionResponseSlice converts a slice of submissions.
func NewSubmissionResponseSlice(submissions []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission))
	}
	return responses
}
