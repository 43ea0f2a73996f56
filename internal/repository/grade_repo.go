package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/abhisheksingh810/marking-api/internal/models"
)

// GradeRepository persists grades and per-section marks.
type GradeRepository interface {
	GetBySubmission(ctx context.Context, submissionID uint) (models.Grade, error)
	Save(ctx context.Context, grade *models.Grade) error
	UpsertSectionMark(ctx context.Context, mark *models.SectionMark) error
	SectionMarks(ctx context.Context, submissionID uint) ([]models.SectionMark, error)
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository instantiates the repository.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func (r *gradeRepository) GetBySubmission(ctx context.Context, submissionID uint) (models.Grade, error) {
	var grade models.Grade
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		First(&grade).Error; err != nil {
		return models.Grade{}, err
	}

	return grade, nil
}

func (r *gradeRepository) Save(ctx context.Context, grade *models.Grade) error {
	return r.db.WithContext(ctx).Save(grade).Error
}

func (r *gradeRepository) UpsertSectionMark(ctx context.Context, mark *models.SectionMark) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "submission_id"}, {Name: "section_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"marks", "marking_option_id", "feedback", "updated_at"}),
		}).
		Create(mark).Error
}

func (r *gradeRepository) SectionMarks(ctx context.Context, submissionID uint) ([]models.SectionMark, error) {
	var marks []models.SectionMark
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("section_id ASC").
		Find(&marks).Error; err != nil {
		return nil, err
	}

	return marks, nil
}
