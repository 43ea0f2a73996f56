package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/abhisheksingh810/marking-api/internal/models"
)

// MarkingQueueFilter narrows the marker work queue.
type MarkingQueueFilter struct {
	MarkerID       *string
	Status         *models.MarkingStatus
	AssessmentCode *string
}

// QueueCursor addresses a position in the newest-first queue ordering.
type QueueCursor struct {
	CreatedAt time.Time
	ID        uint
}

// MarkingRepository persists marking assignments and serves the marker work queue.
type MarkingRepository interface {
	GetBySubmission(ctx context.Context, submissionID uint) (models.MarkingAssignment, error)
	Save(ctx context.Context, assignment *models.MarkingAssignment) error
	// ListPage returns one offset-addressed page of the queue plus the total
	// row count. Placeholder submissions are never listed.
	ListPage(ctx context.Context, filter MarkingQueueFilter, page, pageSize int) ([]models.Submission, int64, error)
	// ListAfter returns up to limit queue entries strictly after the cursor
	// position, in the same newest-first ordering as ListPage.
	ListAfter(ctx context.Context, filter MarkingQueueFilter, after *QueueCursor, limit int) ([]models.Submission, error)
}

type markingRepository struct {
	db *gorm.DB
}

// NewMarkingRepository instantiates the repository.
func NewMarkingRepository(db *gorm.DB) MarkingRepository {
	return &markingRepository{db: db}
}

func (r *markingRepository) GetBySubmission(ctx context.Context, submissionID uint) (models.MarkingAssignment, error) {
	var assignment models.MarkingAssignment
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		First(&assignment).Error; err != nil {
		return models.MarkingAssignment{}, err
	}

	return assignment, nil
}

func (r *markingRepository) Save(ctx context.Context, assignment *models.MarkingAssignment) error {
	return r.db.WithContext(ctx).Save(assignment).Error
}

func (r *markingRepository) queueQuery(ctx context.Context, filter MarkingQueueFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Submission{}).
		Joins("LEFT JOIN marking_assignments ON marking_assignments.submission_id = submissions.id").
		Where("submissions.file_count > 0")

	if filter.AssessmentCode != nil {
		query = query.Where("submissions.assessment_code = ?", *filter.AssessmentCode)
	}

	if filter.MarkerID != nil {
		query = query.Where("marking_assignments.marker_id = ?", *filter.MarkerID)
	}

	if filter.Status != nil {
		if *filter.Status == models.MarkingStatusWaiting {
			// A submission with no marking record is waiting by definition.
			query = query.Where("marking_assignments.id IS NULL OR marking_assignments.status = ?", models.MarkingStatusWaiting)
		} else {
			query = query.Where("marking_assignments.status = ?", *filter.Status)
		}
	}

	return query
}

func (r *markingRepository) ListPage(ctx context.Context, filter MarkingQueueFilter, page, pageSize int) ([]models.Submission, int64, error) {
	query := r.queueQuery(ctx, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}

	var submissions []models.Submission
	if err := query.
		Preload("Marking").
		Preload("Grade").
		Order("submissions.created_at DESC, submissions.id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&submissions).Error; err != nil {
		return nil, 0, err
	}

	return submissions, total, nil
}

func (r *markingRepository) ListAfter(ctx context.Context, filter MarkingQueueFilter, after *QueueCursor, limit int) ([]models.Submission, error) {
	query := r.queueQuery(ctx, filter)

	if after != nil {
		query = query.Where(
			"submissions.created_at < ? OR (submissions.created_at = ? AND submissions.id < ?)",
			after.CreatedAt, after.CreatedAt, after.ID,
		)
	}

	var submissions []models.Submission
	if err := query.
		Preload("Marking").
		Preload("Grade").
		Order("submissions.created_at DESC, submissions.id DESC").
		Limit(limit).
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}
