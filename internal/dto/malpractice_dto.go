package dto

import (
	"time"

	"github.com/abhisheksingh810/marking-api/internal/models"
)

// FindingRequest records a malpractice finding against a submission.
// MaxAttempts left unset falls back to the level's default cap; an explicit
// null default means the learner is blocked entirely.
type FindingRequest struct {
	LevelID     uint `json:"level_id" validate:"required,gt=0"`
	MaxAttempts *int `json:"max_attempts" validate:"omitempty,gte=0"`
}

// EnforcementResponse serializes one enforcement record.
type EnforcementResponse struct {
	ID             uint          `json:"id"`
	LearnerID      string        `json:"learner_id"`
	ContextID      string        `json:"context_id"`
	AssessmentCode string        `json:"assessment_code"`
	Level          LevelResponse `json:"level"`
	MaxAttempts    *int          `json:"max_attempts"`
	SubmissionID   uint          `json:"submission_id"`
	RecordedBy     string        `json:"recorded_by"`
	CreatedAt      time.Time     `json:"created_at"`
}

// LevelResponse serializes a malpractice level catalog entry.
type LevelResponse struct {
	ID                 uint   `json:"id"`
	Rank               int    `json:"rank"`
	Label              string `json:"label"`
	DefaultMaxAttempts *int   `json:"default_max_attempts"`
}

// NewEnforcementResponse converts an enforcement model into a DTO.
func NewEnforcementResponse(model models.MalpracticeEnforcement) EnforcementResponse {
	return EnforcementResponse{
		ID:             model.ID,
		LearnerID:      model.LearnerID,
		ContextID:      model.ContextID,
		AssessmentCode: model.AssessmentCode,
		Level:          NewLevelResponse(model.Level),
		MaxAttempts:    model.MaxAttempts,
		SubmissionID:   model.SubmissionID,
		RecordedBy:     model.RecordedBy,
		CreatedAt:      model.CreatedAt,
	}
}

// NewLevelResponse converts a level model into a DTO.
func NewLevelResponse(model models.MalpracticeLevel) LevelResponse {
	return LevelResponse{
		ID:                 model.ID,
		Rank:               model.Rank,
		Label:              model.Label,
		DefaultMaxAttempts: model.DefaultMaxAttempts,
	}
}

// NewEnforcementResponseSlice converts a slice of enforcement records.
func NewEnforcementResponseSlice(records []models.MalpracticeEnforcement) []EnforcementResponse {
	responses := make([]EnforcementResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, NewEnforcementResponse(record))
	}
	return responses
}

// NewLevelResponseSlice converts the level catalog.
func NewLevelResponseSlice(levels []models.MalpracticeLevel) []LevelResponse {
	responses := make([]LevelResponse, 0, len(levels))
	for _, level := range levels {
		responses = append(responses, NewLevelResponse(level))
	}
	return responses
}
