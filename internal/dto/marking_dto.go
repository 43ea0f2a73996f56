package dto

import "time"

// AssignMarkerRequest assigns (or reassigns) a marker to a submission.
type AssignMarkerRequest struct {
	MarkerID string     `json:"marker_id" validate:"required,max=128"`
	Priority *string    `json:"priority" validate:"omitempty,oneof=low normal high"`
	DueAt    *time.Time `json:"due_at"`
}

// SetStatusRequest moves a marking assignment to a new status. Notes are
// stored as the hold reason when the status is on_hold and discarded otherwise.
type SetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=waiting being_marked on_hold approval_needed marking_skipped released"`
	Notes  string `json:"notes" validate:"omitempty,max=2000"`
}

// MarkingQueueRequest filters and paginates the marker work queue. Page/limit
// selects offset mode; a non-empty cursor selects cursor mode instead.
type MarkingQueueRequest struct {
	MarkerID       string `query:"marker_id"`
	Status         string `query:"status" validate:"omitempty,oneof=waiting being_marked on_hold approval_needed marking_skipped released"`
	AssessmentCode string `query:"assessment_code"`
	Page           int    `query:"page" validate:"omitempty,gte=1"`
	Limit          int    `query:"limit" validate:"omitempty,gte=1,lte=100"`
	Cursor         string `query:"cursor"`
}

// MarkingQueuePageResponse is the offset-paginated queue listing.
type MarkingQueuePageResponse struct {
	Items      []SubmissionResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}

// MarkingQueueCursorResponse is the cursor-paginated queue listing.
type MarkingQueueCursorResponse struct {
	Items  []SubmissionResponse `json:"items"`
	Cursor CursorMeta           `json:"cursor"`
}
