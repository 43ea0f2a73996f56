package models

import "time"

// Grade holds the final outcome of marking a submission. TotalPossible is
// denormalized from the rubric at scoring time so later rubric edits do not
// rewrite history.
type Grade struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	SubmissionID       uint       `gorm:"not null;uniqueIndex" json:"submission_id"`
	TotalAwarded       float64    `gorm:"not null;default:0" json:"total_awarded"`
	TotalPossible      float64    `gorm:"not null;default:0" json:"total_possible"`
	GradeLabel         string     `gorm:"size:32" json:"grade_label"`
	Pass               bool       `gorm:"not null;default:false" json:"pass"`
	Percentage         float64    `gorm:"not null;default:0" json:"percentage"`
	FeedbackSummary    string     `gorm:"type:text" json:"feedback_summary"`
	MalpracticeLevelID *uint      `json:"malpractice_level_id"`
	SkipReason         *string    `gorm:"type:text" json:"skip_reason"`
	CompletedAt        *time.Time `json:"completed_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// SectionMark records a marker's decision for one rubric section of a submission.
type SectionMark struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	SubmissionID    uint      `gorm:"not null;index:idx_section_mark,unique" json:"submission_id"`
	SectionID       uint      `gorm:"not null;index:idx_section_mark,unique" json:"section_id"`
	Marks           float64   `gorm:"not null;default:0" json:"marks"`
	MarkingOptionID *uint     `json:"marking_option_id"`
	Feedback        string    `gorm:"type:text" json:"feedback"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
