package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/abhisheksingh810/marking-api/internal/models"
)

// RubricRepository persists assessments and their rubric definitions.
type RubricRepository interface {
	CreateAssessment(ctx context.Context, assessment *models.Assessment) error
	UpdateAssessment(ctx context.Context, assessment *models.Assessment) error
	GetAssessment(ctx context.Context, id uint) (models.Assessment, error)
	GetAssessmentByCode(ctx context.Context, code string) (models.Assessment, error)
	ListAssessments(ctx context.Context) ([]models.Assessment, error)
	// UpdateTotalMarks persists the recomputed total on the assessment row only.
	UpdateTotalMarks(ctx context.Context, assessmentID uint, total float64) error

	CreateSection(ctx context.Context, section *models.AssessmentSection) error
	UpdateSection(ctx context.Context, section *models.AssessmentSection) error
	DeleteSection(ctx context.Context, id uint) error
	GetSection(ctx context.Context, id uint) (models.AssessmentSection, error)

	CreateOption(ctx context.Context, option *models.MarkingOption) error
	UpdateOption(ctx context.Context, option *models.MarkingOption) error
	DeleteOption(ctx context.Context, id uint) error
	GetOption(ctx context.Context, id uint) (models.MarkingOption, error)

	CreateBoundary(ctx context.Context, boundary *models.GradeBoundary) error
	UpdateBoundary(ctx context.Context, boundary *models.GradeBoundary) error
	DeleteBoundary(ctx context.Context, id uint) error
	GetBoundary(ctx context.Context, id uint) (models.GradeBoundary, error)
	BoundariesForAssessment(ctx context.Context, assessmentID uint) ([]models.GradeBoundary, error)
}

type rubricRepository struct {
	db *gorm.DB
}

// NewRubricRepository instantiates the repository.
func NewRubricRepository(db *gorm.DB) RubricRepository {
	return &rubricRepository{db: db}
}

func (r *rubricRepository) assessmentQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Assessment{}).
		Preload("Sections", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC")
		}).
		Preload("Sections.Options", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC")
		}).
		Preload("Boundaries", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("marks_from ASC")
		})
}

func (r *rubricRepository) CreateAssessment(ctx context.Context, assessment *models.Assessment) error {
	return r.db.WithContext(ctx).Create(assessment).Error
}

func (r *rubricRepository) UpdateAssessment(ctx context.Context, assessment *models.Assessment) error {
	return r.db.WithContext(ctx).Save(assessment).Error
}

func (r *rubricRepository) GetAssessment(ctx context.Context, id uint) (models.Assessment, error) {
	var assessment models.Assessment
	if err := r.assessmentQuery(ctx).First(&assessment, id).Error; err != nil {
		return models.Assessment{}, err
	}

	return assessment, nil
}

func (r *rubricRepository) GetAssessmentByCode(ctx context.Context, code string) (models.Assessment, error) {
	var assessment models.Assessment
	if err := r.assessmentQuery(ctx).Where("code = ?", code).First(&assessment).Error; err != nil {
		return models.Assessment{}, err
	}

	return assessment, nil
}

func (r *rubricRepository) ListAssessments(ctx context.Context) ([]models.Assessment, error) {
	var assessments []models.Assessment
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&assessments).Error; err != nil {
		return nil, err
	}

	return assessments, nil
}

func (r *rubricRepository) UpdateTotalMarks(ctx context.Context, assessmentID uint, total float64) error {
	result := r.db.WithContext(ctx).Model(&models.Assessment{}).
		Where("id = ?", assessmentID).
		Update("total_marks", total)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *rubricRepository) CreateSection(ctx context.Context, section *models.AssessmentSection) error {
	return r.db.WithContext(ctx).Create(section).Error
}

func (r *rubricRepository) UpdateSection(ctx context.Context, section *models.AssessmentSection) error {
	return r.db.WithContext(ctx).Save(section).Error
}

func (r *rubricRepository) DeleteSection(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.AssessmentSection{}, id).Error
}

func (r *rubricRepository) GetSection(ctx context.Context, id uint) (models.AssessmentSection, error) {
	var section models.AssessmentSection
	if err := r.db.WithContext(ctx).
		Preload("Options", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC")
		}).
		First(&section, id).Error; err != nil {
		return models.AssessmentSection{}, err
	}

	return section, nil
}

func (r *rubricRepository) CreateOption(ctx context.Context, option *models.MarkingOption) error {
	return r.db.WithContext(ctx).Create(option).Error
}

func (r *rubricRepository) UpdateOption(ctx context.Context, option *models.MarkingOption) error {
	return r.db.WithContext(ctx).Save(option).Error
}

func (r *rubricRepository) DeleteOption(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.MarkingOption{}, id).Error
}

func (r *rubricRepository) GetOption(ctx context.Context, id uint) (models.MarkingOption, error) {
	var option models.MarkingOption
	if err := r.db.WithContext(ctx).First(&option, id).Error; err != nil {
		return models.MarkingOption{}, err
	}

	return option, nil
}

func (r *rubricRepository) CreateBoundary(ctx context.Context, boundary *models.GradeBoundary) error {
	return r.db.WithContext(ctx).Create(boundary).Error
}

func (r *rubricRepository) UpdateBoundary(ctx context.Context, boundary *models.GradeBoundary) error {
	return r.db.WithContext(ctx).Save(boundary).Error
}

func (r *rubricRepository) DeleteBoundary(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.GradeBoundary{}, id).Error
}

func (r *rubricRepository) GetBoundary(ctx context.Context, id uint) (models.GradeBoundary, error) {
	var boundary models.GradeBoundary
	if err := r.db.WithContext(ctx).First(&boundary, id).Error; err != nil {
		return models.GradeBoundary{}, err
	}

	return boundary, nil
}

func (r *rubricRepository) BoundariesForAssessment(ctx context.Context, assessmentID uint) ([]models.GradeBoundary, error) {
	var boundaries []models.GradeBoundary
	if err := r.db.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Order("marks_from ASC").
		Find(&boundaries).Error; err != nil {
		return nil, err
	}

	return boundaries, nil
}
