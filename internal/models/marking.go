package models

import "time"

// MarkingStatus enumerates the review states of a submission.
type MarkingStatus string

const (
	// MarkingStatusWaiting indicates the submission has not been picked up by a marker.
	MarkingStatusWaiting MarkingStatus = "waiting"
	// MarkingStatusBeingMarked indicates a marker is actively reviewing the submission.
	MarkingStatusBeingMarked MarkingStatus = "being_marked"
	// MarkingStatusOnHold indicates review is paused with a recorded reason.
	MarkingStatusOnHold MarkingStatus = "on_hold"
	// MarkingStatusApprovalNeeded indicates the marks await a second-stage approval.
	MarkingStatusApprovalNeeded MarkingStatus = "approval_needed"
	// MarkingStatusSkipped indicates marking was skipped; the attempt does not consume a slot.
	MarkingStatusSkipped MarkingStatus = "marking_skipped"
	// MarkingStatusReleased indicates the final grade has been released to the learner.
	MarkingStatusReleased MarkingStatus = "released"
)

// Valid reports whether the status is one of the known pipeline states.
func (s MarkingStatus) Valid() bool {
	switch s {
	case MarkingStatusWaiting, MarkingStatusBeingMarked, MarkingStatusOnHold,
		MarkingStatusApprovalNeeded, MarkingStatusSkipped, MarkingStatusReleased:
		return true
	}
	return false
}

// Terminal reports whether the status no longer blocks a new attempt.
func (s MarkingStatus) Terminal() bool {
	return s == MarkingStatusSkipped || s == MarkingStatusReleased
}

// MarkingAssignment tracks who is marking a submission and where the review stands.
// At most one exists per submission; it is created when a marker first acts.
type MarkingAssignment struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	SubmissionID    uint          `gorm:"not null;uniqueIndex" json:"submission_id"`
	MarkerID        *string       `gorm:"size:128" json:"marker_id"`
	Status          MarkingStatus `gorm:"size:32;not null" json:"status"`
	StatusChangedAt time.Time     `json:"status_changed_at"`
	StatusChangedBy string        `gorm:"size:128" json:"status_changed_by"`
	HoldReason      string        `gorm:"type:text" json:"hold_reason"`
	Priority        *string       `gorm:"size:16" json:"priority"`
	DueAt           *time.Time    `json:"due_at"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// MarkingState is the resolved review state of a submission. Assigned is false
// when no marking record exists yet; the status is then always waiting.
type MarkingState struct {
	Status   MarkingStatus
	Assigned bool
}

// Blocking reports whether this state prevents the learner from submitting again.
func (m MarkingState) Blocking() bool {
	return !m.Status.Terminal()
}
