package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/abhisheksingh810/marking-api/internal/dto"
	"github.com/abhisheksingh810/marking-api/internal/models"
	"github.com/abhisheksingh810/marking-api/internal/repository"
)

// ErrSectionNotFound indicates the referenced rubric section does not exist.
var ErrSectionNotFound = errors.New("section not found")

// ErrOptionNotFound indicates the referenced marking option does not exist.
var ErrOptionNotFound = errors.New("marking option not found")

// ErrBoundaryNotFound indicates the referenced grade boundary does not exist.
var ErrBoundaryNotFound = errors.New("grade boundary not found")

// ErrInvalidBoundaryRange indicates a boundary whose upper mark sits below
// its lower mark.
var ErrInvalidBoundaryRange = errors.New("boundary marks_to must not be below marks_from")

// RubricService manages assessments and their rubric definitions. Every
// section or option mutation raises a rubric change event that the grading
// engine consumes synchronously, so the persisted assessment total is
// consistent by the time the mutating call returns.
type RubricService interface {
	CreateAssessment(ctx context.Context, payload dto.AssessmentCreateRequest) (dto.AssessmentResponse, error)
	GetAssessment(ctx context.Context, id uint) (dto.AssessmentResponse, error)
	GetAssessmentByCode(ctx context.Context, code string) (dto.AssessmentResponse, error)
	ListAssessments(ctx context.Context) ([]dto.AssessmentResponse, error)

	CreateSection(ctx context.Context, payload dto.SectionCreateRequest) (dto.SectionResponse, error)
	UpdateSection(ctx context.Context, id uint, payload dto.SectionUpdateRequest) (dto.SectionResponse, error)
	DeleteSection(ctx context.Context, id uint) error

	CreateOption(ctx context.Context, payload dto.OptionCreateRequest) (dto.OptionResponse, error)
	UpdateOption(ctx context.Context, id uint, payload dto.OptionUpdateRequest) (dto.OptionResponse, error)
	DeleteOption(ctx context.Context, id uint) error

	CreateBoundary(ctx context.Context, payload dto.BoundaryCreateRequest) (dto.BoundaryResponse, error)
	UpdateBoundary(ctx context.Context, id uint, payload dto.BoundaryUpdateRequest) (dto.BoundaryResponse, error)
	DeleteBoundary(ctx context.Context, id uint) error
}

type rubricService struct {
	rubric    repository.RubricRepository
	listener  RubricListener
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewRubricService constructs the rubric management service. The listener is
// invoked synchronously after each section or option mutation.
func NewRubricService(
	rubricRepo repository.RubricRepository,
	listener RubricListener,
	validate *validator.Validate,
	logger zerolog.Logger,
) RubricService {
	return &rubricService{
		rubric:    rubricRepo,
		listener:  listener,
		validator: validate,
		logger:    logger.With().Str("component", "rubric_service").Logger(),
	}
}

func (s *rubricService) notifyChanged(ctx context.Context, assessmentID uint) error {
	if s.listener == nil {
		return nil
	}
	return s.listener.RubricChanged(ctx, RubricChange{AssessmentID: assessmentID})
}

func (s *rubricService) CreateAssessment(ctx context.Context, payload dto.AssessmentCreateRequest) (dto.AssessmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssessmentResponse{}, err
	}

	assessment := models.Assessment{
		Code:   payload.Code,
		Title:  payload.Title,
		Active: true,
	}

	if err := s.rubric.CreateAssessment(ctx, &assessment); err != nil {
		return dto.AssessmentResponse{}, err
	}

	s.logger.Info().Str("code", assessment.Code).Msg("assessment created")

	return dto.NewAssessmentResponse(assessment), nil
}

func (s *rubricService) GetAssessment(ctx context.Context, id uint) (dto.AssessmentResponse, error) {
	assessment, err := s.rubric.GetAssessment(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssessmentResponse{}, ErrAssessmentNotFound
		}
		return dto.AssessmentResponse{}, err
	}

	return dto.NewAssessmentResponse(assessment), nil
}

func (s *rubricService) GetAssessmentByCode(ctx context.Context, code string) (dto.AssessmentResponse, error) {
	assessment, err := s.rubric.GetAssessmentByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssessmentResponse{}, ErrAssessmentNotFound
		}
		return dto.AssessmentResponse{}, err
	}

	return dto.NewAssessmentResponse(assessment), nil
}

func (s *rubricService) ListAssessments(ctx context.Context) ([]dto.AssessmentResponse, error) {
	assessments, err := s.rubric.ListAssessments(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.AssessmentResponse, 0, len(assessments))
	for _, assessment := range assessments {
		responses = append(responses, dto.NewAssessmentResponse(assessment))
	}

	return responses, nil
}

func (s *rubricService) CreateSection(ctx context.Context, payload dto.SectionCreateRequest) (dto.SectionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SectionResponse{}, err
	}

	if _, err := s.rubric.GetAssessment(ctx, payload.AssessmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SectionResponse{}, ErrAssessmentNotFound
		}
		return dto.SectionResponse{}, err
	}

	section := models.AssessmentSection{
		AssessmentID: payload.AssessmentID,
		Title:        payload.Title,
		Position:     payload.Position,
		Active:       true,
	}

	if err := s.rubric.CreateSection(ctx, &section); err != nil {
		return dto.SectionResponse{}, err
	}

	if err := s.notifyChanged(ctx, section.AssessmentID); err != nil {
		return dto.SectionResponse{}, err
	}

	return dto.NewSectionResponse(section), nil
}

func (s *rubricService) UpdateSection(ctx context.Context, id uint, payload dto.SectionUpdateRequest) (dto.SectionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SectionResponse{}, err
	}

	section, err := s.rubric.GetSection(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SectionResponse{}, ErrSectionNotFound
		}
		return dto.SectionResponse{}, err
	}

	if payload.Title != nil {
		section.Title = *payload.Title
	}
	if payload.Position != nil {
		section.Position = *payload.Position
	}
	if payload.Active != nil {
		section.Active = *payload.Active
	}

	if err := s.rubric.UpdateSection(ctx, &section); err != nil {
		return dto.SectionResponse{}, err
	}

	if err := s.notifyChanged(ctx, section.AssessmentID); err != nil {
		return dto.SectionResponse{}, err
	}

	return dto.NewSectionResponse(section), nil
}

func (s *rubricService) DeleteSection(ctx context.Context, id uint) error {
	section, err := s.rubric.GetSection(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSectionNotFound
		}
		return err
	}

	if err := s.rubric.DeleteSection(ctx, id); err != nil {
		return err
	}

	return s.notifyChanged(ctx, section.AssessmentID)
}

func (s *rubricService) CreateOption(ctx context.Context, payload dto.OptionCreateRequest) (dto.OptionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.OptionResponse{}, err
	}

	section, err := s.rubric.GetSection(ctx, payload.SectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.OptionResponse{}, ErrSectionNotFound
		}
		return dto.OptionResponse{}, err
	}

	option := models.MarkingOption{
		SectionID: section.ID,
		Label:     payload.Label,
		Marks:     payload.Marks,
		Position:  payload.Position,
		Active:    true,
	}

	if err := s.rubric.CreateOption(ctx, &option); err != nil {
		return dto.OptionResponse{}, err
	}

	if err := s.notifyChanged(ctx, section.AssessmentID); err != nil {
		return dto.OptionResponse{}, err
	}

	return dto.OptionResponse{
		ID:       option.ID,
		Label:    option.Label,
		Marks:    option.Marks,
		Position: option.Position,
		Active:   option.Active,
	}, nil
}

func (s *rubricService) UpdateOption(ctx context.Context, id uint, payload dto.OptionUpdateRequest) (dto.OptionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.OptionResponse{}, err
	}

	option, err := s.rubric.GetOption(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.OptionResponse{}, ErrOptionNotFound
		}
		return dto.OptionResponse{}, err
	}

	section, err := s.rubric.GetSection(ctx, option.SectionID)
	if err != nil {
		return dto.OptionResponse{}, err
	}

	if payload.Label != nil {
		option.Label = *payload.Label
	}
	if payload.Marks != nil {
		option.Marks = *payload.Marks
	}
	if payload.Position != nil {
		option.Position = *payload.Position
	}
	if payload.Active != nil {
		option.Active = *payload.Active
	}

	if err := s.rubric.UpdateOption(ctx, &option); err != nil {
		return dto.OptionResponse{}, err
	}

	if err := s.notifyChanged(ctx, section.AssessmentID); err != nil {
		return dto.OptionResponse{}, err
	}

	return dto.OptionResponse{
		ID:       option.ID,
		Label:    option.Label,
		Marks:    option.Marks,
		Position: option.Position,
		Active:   option.Active,
	}, nil
}

func (s *rubricService) DeleteOption(ctx context.Context, id uint) error {
	option, err := s.rubric.GetOption(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOptionNotFound
		}
		return err
	}

	section, err := s.rubric.GetSection(ctx, option.SectionID)
	if err != nil {
		return err
	}

	if err := s.rubric.DeleteOption(ctx, id); err != nil {
		return err
	}

	return s.notifyChanged(ctx, section.AssessmentID)
}

func (s *rubricService) CreateBoundary(ctx context.Context, payload dto.BoundaryCreateRequest) (dto.BoundaryResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BoundaryResponse{}, err
	}

	if _, err := s.rubric.GetAssessment(ctx, payload.AssessmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.BoundaryResponse{}, ErrAssessmentNotFound
		}
		return dto.BoundaryResponse{}, err
	}

	boundary := models.GradeBoundary{
		AssessmentID: payload.AssessmentID,
		Label:        payload.Label,
		MarksFrom:    payload.MarksFrom,
		MarksTo:      payload.MarksTo,
		Pass:         payload.Pass,
	}

	if err := s.rubric.CreateBoundary(ctx, &boundary); err != nil {
		return dto.BoundaryResponse{}, err
	}

	return dto.NewBoundaryResponse(boundary), nil
}

func (s *rubricService) UpdateBoundary(ctx context.Context, id uint, payload dto.BoundaryUpdateRequest) (dto.BoundaryResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BoundaryResponse{}, err
	}

	boundary, err := s.rubric.GetBoundary(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.BoundaryResponse{}, ErrBoundaryNotFound
		}
		return dto.BoundaryResponse{}, err
	}

	if payload.Label != nil {
		boundary.Label = *payload.Label
	}
	if payload.MarksFrom != nil {
		boundary.MarksFrom = *payload.MarksFrom
	}
	if payload.MarksTo != nil {
		boundary.MarksTo = *payload.MarksTo
	}
	if payload.Pass != nil {
		boundary.Pass = *payload.Pass
	}

	// Cross-field check on the merged model: updating either end alone must
	// not invert the range.
	if boundary.MarksTo < boundary.MarksFrom {
		return dto.BoundaryResponse{}, ErrInvalidBoundaryRange
	}

	if err := s.rubric.UpdateBoundary(ctx, &boundary); err != nil {
		return dto.BoundaryResponse{}, err
	}

	return dto.NewBoundaryResponse(boundary), nil
}

func (s *rubricService) DeleteBoundary(ctx context.Context, id uint) error {
	if _, err := s.rubric.GetBoundary(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBoundaryNotFound
		}
		return err
	}

	return s.rubric.DeleteBoundary(ctx, id)
}
