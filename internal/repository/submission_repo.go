package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/abhisheksingh810/marking-api/internal/models"
)

// SubmissionRepository defines data operations for learner submissions.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	// ListAttempts returns the real (file-bearing) submissions for a
	// learner/assessment/context triple ordered by attempt number, with
	// marking and grade relations loaded.
	ListAttempts(ctx context.Context, learnerID, assessmentCode, contextID string) ([]models.Submission, error)
	// NextAttemptNumber computes the next 1-based attempt number for the triple.
	NextAttemptNumber(ctx context.Context, learnerID, assessmentCode, contextID string) (int, error)
	// FindPlaceholder locates the newest file-less submission for the triple, if any.
	FindPlaceholder(ctx context.Context, learnerID, assessmentCode, contextID string) (models.Submission, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) tripleQuery(ctx context.Context, learnerID, assessmentCode, contextID string) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("learner_id = ?", learnerID).
		Where("assessment_code = ?", assessmentCode).
		Where("context_id = ?", contextID)
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Preload("Marking").
		Preload("Grade").
		First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) ListAttempts(ctx context.Context, learnerID, assessmentCode, contextID string) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.tripleQuery(ctx, learnerID, assessmentCode, contextID).
		Where("file_count > 0").
		Preload("Marking").
		Preload("Grade").
		Order("attempt_number ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) NextAttemptNumber(ctx context.Context, learnerID, assessmentCode, contextID string) (int, error) {
	var current *int
	if err := r.tripleQuery(ctx, learnerID, assessmentCode, contextID).
		Select("MAX(attempt_number)").
		Scan(&current).Error; err != nil {
		return 0, err
	}

	if current == nil {
		return 1, nil
	}

	return *current + 1, nil
}

func (r *submissionRepository) FindPlaceholder(ctx context.Context, learnerID, assessmentCode, contextID string) (models.Submission, error) {
	var submission models.Submission
	if err := r.tripleQuery(ctx, learnerID, assessmentCode, contextID).
		Where("file_count = 0").
		Order("created_at DESC").
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}
