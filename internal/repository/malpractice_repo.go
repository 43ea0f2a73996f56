package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/abhisheksingh810/marking-api/internal/models"
)

// MalpracticeRepository persists the malpractice level catalog and the
// append-only enforcement log. Enforcement records are never updated or
// deleted; corrections are newer records.
type MalpracticeRepository interface {
	CreateEnforcement(ctx context.Context, enforcement *models.MalpracticeEnforcement) error
	// LatestForTriple returns the newest enforcement record for the triple.
	LatestForTriple(ctx context.Context, learnerID, assessmentCode, contextID string) (models.MalpracticeEnforcement, error)
	HistoryForTriple(ctx context.Context, learnerID, assessmentCode, contextID string) ([]models.MalpracticeEnforcement, error)

	CreateLevel(ctx context.Context, level *models.MalpracticeLevel) error
	GetLevel(ctx context.Context, id uint) (models.MalpracticeLevel, error)
	ListLevels(ctx context.Context) ([]models.MalpracticeLevel, error)
}

type malpracticeRepository struct {
	db *gorm.DB
}

// NewMalpracticeRepository instantiates the repository.
func NewMalpracticeRepository(db *gorm.DB) MalpracticeRepository {
	return &malpracticeRepository{db: db}
}

func (r *malpracticeRepository) tripleQuery(ctx context.Context, learnerID, assessmentCode, contextID string) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.MalpracticeEnforcement{}).
		Where("learner_id = ?", learnerID).
		Where("assessment_code = ?", assessmentCode).
		Where("context_id = ?", contextID)
}

func (r *malpracticeRepository) CreateEnforcement(ctx context.Context, enforcement *models.MalpracticeEnforcement) error {
	return r.db.WithContext(ctx).Create(enforcement).Error
}

func (r *malpracticeRepository) LatestForTriple(ctx context.Context, learnerID, assessmentCode, contextID string) (models.MalpracticeEnforcement, error) {
	var enforcement models.MalpracticeEnforcement
	if err := r.tripleQuery(ctx, learnerID, assessmentCode, contextID).
		Preload("Level").
		Order("created_at DESC, id DESC").
		First(&enforcement).Error; err != nil {
		return models.MalpracticeEnforcement{}, err
	}

	return enforcement, nil
}

func (r *malpracticeRepository) HistoryForTriple(ctx context.Context, learnerID, assessmentCode, contextID string) ([]models.MalpracticeEnforcement, error) {
	var history []models.MalpracticeEnforcement
	if err := r.tripleQuery(ctx, learnerID, assessmentCode, contextID).
		Preload("Level").
		Order("created_at DESC, id DESC").
		Find(&history).Error; err != nil {
		return nil, err
	}

	return history, nil
}

func (r *malpracticeRepository) CreateLevel(ctx context.Context, level *models.MalpracticeLevel) error {
	return r.db.WithContext(ctx).Create(level).Error
}

func (r *malpracticeRepository) GetLevel(ctx context.Context, id uint) (models.MalpracticeLevel, error) {
	var level models.MalpracticeLevel
	if err := r.db.WithContext(ctx).First(&level, id).Error; err != nil {
		return models.MalpracticeLevel{}, err
	}

	return level, nil
}

func (r *malpracticeRepository) ListLevels(ctx context.Context) ([]models.MalpracticeLevel, error) {
	var levels []models.MalpracticeLevel
	if err := r.db.WithContext(ctx).Order("rank ASC").Find(&levels).Error; err != nil {
		return nil, err
	}

	return levels, nil
}
