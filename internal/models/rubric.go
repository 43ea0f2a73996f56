package models

import "time"

// Assessment is the marked unit learners submit against, identified by the
// code the LMS launch carries. TotalMarks is denormalized from the rubric and
// recomputed whenever a section or marking option changes.
type Assessment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Code       string    `gorm:"size:64;not null;uniqueIndex" json:"code"`
	Title      string    `gorm:"size:255;not null" json:"title"`
	TotalMarks float64   `gorm:"not null;default:0" json:"total_marks"`
	Active     bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Sections   []AssessmentSection `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"sections,omitempty"`
	Boundaries []GradeBoundary     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"boundaries,omitempty"`
}

// AssessmentSection is one marked part of an assessment's rubric.
type AssessmentSection struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AssessmentID uint      `gorm:"not null;index" json:"assessment_id"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	Position     int       `gorm:"not null;default:0" json:"position"`
	Active       bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Options []MarkingOption `gorm:"foreignKey:SectionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"options,omitempty"`
}

// MaxMarks returns the section's maximum contribution to the assessment total:
// the highest mark value among its active options, or 0 when none exist.
func (s AssessmentSection) MaxMarks() float64 {
	max := 0.0
	for _, opt := range s.Options {
		if opt.Active && opt.Marks > max {
			max = opt.Marks
		}
	}
	return max
}

// MarkingOption is one selectable outcome for a section, carrying a mark value.
type MarkingOption struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SectionID uint      `gorm:"not null;index" json:"section_id"`
	Label     string    `gorm:"size:255;not null" json:"label"`
	Marks     float64   `gorm:"not null;default:0" json:"marks"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GradeBoundary maps a closed range of total marks to a grade label.
type GradeBoundary struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AssessmentID uint      `gorm:"not null;index" json:"assessment_id"`
	Label        string    `gorm:"size:32;not null" json:"label"`
	MarksFrom    float64   `gorm:"not null" json:"marks_from"`
	MarksTo      float64   `gorm:"not null" json:"marks_to"`
	Pass         bool      `gorm:"not null;default:false" json:"pass"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Contains reports whether the awarded total falls inside the boundary range.
func (b GradeBoundary) Contains(total float64) bool {
	return total >= b.MarksFrom && total <= b.MarksTo
}
