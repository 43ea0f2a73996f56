package models

import "time"

// MalpracticeLevel is a catalog entry ordering findings by severity.
// DefaultMaxAttempts seeds the enforced cap when a finding is recorded
// without an explicit override; nil means the level blocks entirely.
type MalpracticeLevel struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Rank               int       `gorm:"not null;uniqueIndex" json:"rank"`
	Label              string    `gorm:"size:255;not null" json:"label"`
	DefaultMaxAttempts *int      `json:"default_max_attempts"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// MalpracticeEnforcement is one append-only finding against a learner for an
// assessment in a course context. Records are never updated or deleted; a
// correction is a newer record, and the newest record is authoritative.
// MaxAttempts nil means the learner is blocked entirely, which is distinct
// from any numeric cap.
type MalpracticeEnforcement struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	LearnerID          string    `gorm:"size:128;not null;index:idx_enforcement_triple" json:"learner_id"`
	ContextID          string    `gorm:"size:128;not null;index:idx_enforcement_triple" json:"context_id"`
	AssessmentCode     string    `gorm:"size:64;not null;index:idx_enforcement_triple" json:"assessment_code"`
	MalpracticeLevelID uint      `gorm:"not null" json:"malpractice_level_id"`
	MaxAttempts        *int      `json:"max_attempts"`
	SubmissionID       uint      `gorm:"not null" json:"submission_id"`
	RecordedBy         string    `gorm:"size:128" json:"recorded_by"`
	CreatedAt          time.Time `json:"created_at"`

	Level MalpracticeLevel `gorm:"foreignKey:MalpracticeLevelID;constraint:OnUpdate:CASCADE" json:"level"`
}

// BlocksEntirely reports whether the enforcement forbids any further attempt.
func (e MalpracticeEnforcement) BlocksEntirely() bool {
	return e.MaxAttempts == nil
}
