package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/abhisheksingh810/marking-api/internal/dto"
	"github.com/abhisheksingh810/marking-api/internal/models"
	"github.com/abhisheksingh810/marking-api/internal/repository"
)

// ErrFilesRequired indicates a submission was attempted without file artifacts.
var ErrFilesRequired = errors.New("at least one file is required")

// ErrUnsupportedFileType indicates an artifact failed the content-type screen.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// FileStore abstracts the external file storage collaborator. Only the
// returned reference is kept; the bytes never touch this service's store.
type FileStore interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// IntakeService is the submission orchestrator: it accepts LMS-surfaced
// submission requests, checks eligibility, assigns attempt numbers, and
// hydrates placeholder submissions with uploaded artifacts. The eligibility
// check and submission creation run under a per-triple keyed lock so two
// simultaneous launches cannot both slip past the attempt cap.
type IntakeService interface {
	Submit(ctx context.Context, payload dto.IntakeRequest, files []*multipart.FileHeader) (dto.IntakeResponse, error)
	CheckEligibility(ctx context.Context, learnerID, assessmentCode, contextID string) (dto.EligibilityResult, error)
	GetSubmission(ctx context.Context, id uint) (dto.SubmissionResponse, error)
	ListAttempts(ctx context.Context, learnerID, assessmentCode, contextID string) ([]dto.SubmissionResponse, error)
}

type intakeService struct {
	submissions repository.SubmissionRepository
	marking     repository.MarkingRepository
	rubric      repository.RubricRepository
	eligibility EligibilityService
	locker      KeyedLocker
	store       FileStore
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewIntakeService constructs the submission orchestrator.
func NewIntakeService(
	submissionRepo repository.SubmissionRepository,
	markingRepo repository.MarkingRepository,
	rubricRepo repository.RubricRepository,
	eligibility EligibilityService,
	locker KeyedLocker,
	store FileStore,
	validate *validator.Validate,
	logger zerolog.Logger,
) IntakeService {
	return &intakeService{
		submissions: submissionRepo,
		marking:     markingRepo,
		rubric:      rubricRepo,
		eligibility: eligibility,
		locker:      locker,
		store:       store,
		validator:   validate,
		logger:      logger.With().Str("component", "intake_service").Logger(),
		now:         time.Now,
	}
}

func intakeLockKey(learnerID, assessmentCode, contextID string) string {
	return fmt.Sprintf("intake:%s:%s:%s", learnerID, assessmentCode, contextID)
}

func (s *intakeService) Submit(ctx context.Context, payload dto.IntakeRequest, files []*multipart.FileHeader) (dto.IntakeResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.IntakeResponse{}, err
	}

	if len(files) == 0 {
		return dto.IntakeResponse{}, ErrFilesRequired
	}

	if _, err := s.rubric.GetAssessmentByCode(ctx, payload.AssessmentCode); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.IntakeResponse{}, ErrAssessmentNotFound
		}
		return dto.IntakeResponse{}, err
	}

	for _, file := range files {
		if err := screenFileType(file); err != nil {
			return dto.IntakeResponse{}, err
		}
	}

	release, err := s.locker.Acquire(ctx, intakeLockKey(payload.LearnerID, payload.AssessmentCode, payload.ContextID))
	if err != nil {
		return dto.IntakeResponse{}, err
	}
	defer release()

	result, err := s.eligibility.Validate(ctx, payload.LearnerID, payload.AssessmentCode, payload.ContextID)
	if err != nil {
		return dto.IntakeResponse{}, err
	}

	if !result.Eligible {
		s.logger.Info().
			Str("learner_id", payload.LearnerID).
			Str("assessment_code", payload.AssessmentCode).
			Str("blocking_type", result.BlockingType).
			Msg("submission rejected")
		return dto.IntakeResponse{Eligibility: result}, nil
	}

	submission, err := s.locateOrCreate(ctx, payload)
	if err != nil {
		return dto.IntakeResponse{}, err
	}

	if err := s.hydrate(ctx, &submission, files); err != nil {
		return dto.IntakeResponse{}, err
	}

	// Initial-assignment step: the submission enters the marking queue as
	// waiting so markers see it without anyone having acted on it yet.
	assignment := models.MarkingAssignment{
		SubmissionID:    submission.ID,
		Status:          models.MarkingStatusWaiting,
		StatusChangedAt: s.now(),
		StatusChangedBy: "system",
	}
	if err := s.marking.Save(ctx, &assignment); err != nil {
		return dto.IntakeResponse{}, err
	}
	submission.Marking = &assignment

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Str("learner_id", submission.LearnerID).
		Int("attempt_number", submission.AttemptNumber).
		Msg("submission accepted")

	response := dto.NewSubmissionResponse(submission)

	return dto.IntakeResponse{
		Accepted:    true,
		Submission:  &response,
		Eligibility: result,
	}, nil
}

// locateOrCreate reuses an existing placeholder for the triple or creates a
// fresh submission with the next attempt number. Attempt numbers are assigned
// exactly once, at creation, and never reassigned.
func (s *intakeService) locateOrCreate(ctx context.Context, payload dto.IntakeRequest) (models.Submission, error) {
	placeholder, err := s.submissions.FindPlaceholder(ctx, payload.LearnerID, payload.AssessmentCode, payload.ContextID)
	if err == nil {
		return placeholder, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Submission{}, err
	}

	attempt, err := s.submissions.NextAttemptNumber(ctx, payload.LearnerID, payload.AssessmentCode, payload.ContextID)
	if err != nil {
		return models.Submission{}, err
	}

	submission := models.Submission{
		LearnerID:      payload.LearnerID,
		ContextID:      payload.ContextID,
		AssessmentCode: payload.AssessmentCode,
		AttemptNumber:  attempt,
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (s *intakeService) hydrate(ctx context.Context, submission *models.Submission, files []*multipart.FileHeader) error {
	for _, file := range files {
		reader, err := file.Open()
		if err != nil {
			return fmt.Errorf("failed to open file: %w", err)
		}

		url, err := s.store.Upload(ctx, file.Filename, reader)
		reader.Close()
		if err != nil {
			return fmt.Errorf("failed to store file: %w", err)
		}

		submission.Files = append(submission.Files, models.SubmissionFile{
			Name: file.Filename,
			URL:  url,
		})
	}

	submittedAt := s.now()
	submission.FileCount = len(submission.Files)
	submission.SubmittedAt = &submittedAt

	return s.submissions.Update(ctx, submission)
}

func (s *intakeService) CheckEligibility(ctx context.Context, learnerID, assessmentCode, contextID string) (dto.EligibilityResult, error) {
	return s.eligibility.Validate(ctx, learnerID, assessmentCode, contextID)
}

func (s *intakeService) GetSubmission(ctx context.Context, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}
	if submission.IsPlaceholder() {
		return dto.SubmissionResponse{}, ErrSubmissionNotFound
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *intakeService) ListAttempts(ctx context.Context, learnerID, assessmentCode, contextID string) ([]dto.SubmissionResponse, error) {
	attempts, err := s.submissions.ListAttempts(ctx, learnerID, assessmentCode, contextID)
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(attempts), nil
}

func screenFileType(file *multipart.FileHeader) error {
	reader, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	mime, err := mimetype.DetectReader(reader)
	if err != nil {
		return fmt.Errorf("failed to detect file type: %w", err)
	}

	allowed := []string{
		"application/pdf",
		"application/zip",
		"application/x-zip-compressed",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"text/plain",
	}
	for _, candidate := range allowed {
		if mime.Is(candidate) {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrUnsupportedFileType, mime.String())
}
