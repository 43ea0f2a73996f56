package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/abhisheksingh810/marking-api/internal/dto"
	"github.com/abhisheksingh810/marking-api/internal/models"
	"github.com/abhisheksingh810/marking-api/internal/repository"
)

// ErrLevelNotFound indicates the referenced malpractice level does not exist.
var ErrLevelNotFound = errors.New("malpractice level not found")

// MalpracticeService maintains the malpractice level catalog and the
// append-only enforcement log. A recorded finding is never edited; an
// administrative correction is a newer record that supersedes by recency.
type MalpracticeService interface {
	RecordFinding(ctx context.Context, submissionID uint, payload dto.FindingRequest, actor ActivityActor) (dto.EnforcementResponse, error)
	// ActiveEnforcement returns the newest enforcement for the triple, or nil when none exists.
	ActiveEnforcement(ctx context.Context, learnerID, assessmentCode, contextID string) (*dto.EnforcementResponse, error)
	History(ctx context.Context, learnerID, assessmentCode, contextID string) ([]dto.EnforcementResponse, error)
	Levels(ctx context.Context) ([]dto.LevelResponse, error)
	CreateLevel(ctx context.Context, rank int, label string, defaultMaxAttempts *int) (dto.LevelResponse, error)
}

type malpracticeService struct {
	malpractice repository.MalpracticeRepository
	submissions repository.SubmissionRepository
	validator   *validator.Validate
	activity    ActivityRecorder
	events      EventPublisher
	logger      zerolog.Logger
	now         func() time.Time
}

// NewMalpracticeService constructs the malpractice enforcement service.
func NewMalpracticeService(
	malpracticeRepo repository.MalpracticeRepository,
	submissionRepo repository.SubmissionRepository,
	validate *validator.Validate,
	activity ActivityRecorder,
	events EventPublisher,
	logger zerolog.Logger,
) MalpracticeService {
	return &malpracticeService{
		malpractice: malpracticeRepo,
		submissions: submissionRepo,
		validator:   validate,
		activity:    activity,
		events:      events,
		logger:      logger.With().Str("component", "malpractice_service").Logger(),
		now:         time.Now,
	}
}

func (s *malpracticeService) RecordFinding(ctx context.Context, submissionID uint, payload dto.FindingRequest, actor ActivityActor) (dto.EnforcementResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EnforcementResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EnforcementResponse{}, ErrSubmissionNotFound
		}
		return dto.EnforcementResponse{}, err
	}

	level, err := s.malpractice.GetLevel(ctx, payload.LevelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EnforcementResponse{}, ErrLevelNotFound
		}
		return dto.EnforcementResponse{}, err
	}

	// An absent override falls back to the level's default. Both the request
	// override and the default may legitimately be nil, which means the
	// learner is blocked entirely; nil is preserved, never coerced.
	maxAttempts := payload.MaxAttempts
	if maxAttempts == nil {
		maxAttempts = level.DefaultMaxAttempts
	}

	enforcement := models.MalpracticeEnforcement{
		LearnerID:          submission.LearnerID,
		ContextID:          submission.ContextID,
		AssessmentCode:     submission.AssessmentCode,
		MalpracticeLevelID: level.ID,
		MaxAttempts:        maxAttempts,
		SubmissionID:       submission.ID,
		RecordedBy:         actor.ID,
	}

	if err := s.malpractice.CreateEnforcement(ctx, &enforcement); err != nil {
		return dto.EnforcementResponse{}, err
	}
	enforcement.Level = level

	if s.activity != nil {
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "malpractice.recorded",
			EntityType: "submission",
			EntityID:   &submission.ID,
			Metadata: map[string]interface{}{
				"level":        level.Label,
				"level_rank":   level.Rank,
				"max_attempts": maxAttempts,
			},
		})
	}

	if s.events != nil {
		s.events.Publish(ctx, "malpractice.recorded", map[string]interface{}{
			"learner_id":      submission.LearnerID,
			"assessment_code": submission.AssessmentCode,
			"level":           level.Label,
		})
	}

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Str("learner_id", submission.LearnerID).
		Str("level", level.Label).
		Msg("malpractice finding recorded")

	return dto.NewEnforcementResponse(enforcement), nil
}

func (s *malpracticeService) ActiveEnforcement(ctx context.Context, learnerID, assessmentCode, contextID string) (*dto.EnforcementResponse, error) {
	enforcement, err := s.malpractice.LatestForTriple(ctx, learnerID, assessmentCode, contextID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	response := dto.NewEnforcementResponse(enforcement)
	return &response, nil
}

func (s *malpracticeService) History(ctx context.Context, learnerID, assessmentCode, contextID string) ([]dto.EnforcementResponse, error) {
	history, err := s.malpractice.HistoryForTriple(ctx, learnerID, assessmentCode, contextID)
	if err != nil {
		return nil, err
	}

	return dto.NewEnforcementResponseSlice(history), nil
}

func (s *malpracticeService) Levels(ctx context.Context) ([]dto.LevelResponse, error) {
	levels, err := s.malpractice.ListLevels(ctx)
	if err != nil {
		return nil, err
	}

	return dto.NewLevelResponseSlice(levels), nil
}

func (s *malpracticeService) CreateLevel(ctx context.Context, rank int, label string, defaultMaxAttempts *int) (dto.LevelResponse, error) {
	level := models.MalpracticeLevel{
		Rank:               rank,
		Label:              label,
		DefaultMaxAttempts: defaultMaxAttempts,
	}

	if err := s.malpractice.CreateLevel(ctx, &level); err != nil {
		return dto.LevelResponse{}, err
	}

	return dto.NewLevelResponse(level), nil
}
