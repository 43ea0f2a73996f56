package models

import "time"

// Submission represents one learner attempt for an assessment inside a course context.
// Learner and context identifiers are opaque strings supplied by the LMS launch.
type Submission struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	LearnerID      string     `gorm:"size:128;not null;index:idx_submission_triple" json:"learner_id"`
	ContextID      string     `gorm:"size:128;not null;index:idx_submission_triple" json:"context_id"`
	AssessmentCode string     `gorm:"size:64;not null;index:idx_submission_triple" json:"assessment_code"`
	AttemptNumber  int        `gorm:"not null" json:"attempt_number"`
	FileCount      int        `gorm:"not null;default:0" json:"file_count"`
	SubmittedAt    *time.Time `json:"submitted_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Marking *MarkingAssignment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"marking,omitempty"`
	Grade   *Grade             `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"grade,omitempty"`
	Files   []SubmissionFile   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"files,omitempty"`
}

// SubmissionFile references one stored artifact of a submission. The bytes
// live with the external file storage collaborator; only the reference is kept.
type SubmissionFile struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;index" json:"submission_id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	URL          string    `gorm:"size:512" json:"url"`
	ContentType  string    `gorm:"size:128" json:"content_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsPlaceholder reports whether the submission has no uploaded files yet.
// Placeholders are excluded from attempt counting and marker listings.
func (s Submission) IsPlaceholder() bool {
	return s.FileCount == 0
}

// MarkingState resolves the submission's marking status. A submission without
// a marking record has not entered the pipeline yet and resolves to waiting
// with Assigned false, so callers never need to nil-check the relation.
func (s Submission) MarkingState() MarkingState {
	if s.Marking == nil {
		return MarkingState{Status: MarkingStatusWaiting}
	}
	return MarkingState{Status: s.Marking.Status, Assigned: true}
}
