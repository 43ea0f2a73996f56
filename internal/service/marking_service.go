package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/abhisheksingh810/marking-api/internal/dto"
	"github.com/abhisheksingh810/marking-api/internal/models"
	"github.com/abhisheksingh810/marking-api/internal/repository"
)

// ErrSubmissionNotFound indicates the referenced submission does not exist.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrInvalidStatus indicates an unknown marking status value.
var ErrInvalidStatus = errors.New("invalid marking status")

// ErrGradeRequired indicates a release was requested before a grade exists.
var ErrGradeRequired = errors.New("a grade must be recorded before release")

// ErrInvalidCursor indicates a malformed queue cursor.
var ErrInvalidCursor = errors.New("invalid cursor")

const defaultQueuePageSize = 20

// MarkingService governs the review status of submissions and serves the
// marker work queue. Status updates are last write wins; two markers racing
// on the same submission is resolved by timestamp order, not rejected.
type MarkingService interface {
	AssignMarker(ctx context.Context, submissionID uint, payload dto.AssignMarkerRequest, actor ActivityActor) (dto.SubmissionResponse, error)
	UnassignMarker(ctx context.Context, submissionID uint, actor ActivityActor) (dto.SubmissionResponse, error)
	SetStatus(ctx context.Context, submissionID uint, payload dto.SetStatusRequest, actor ActivityActor) (dto.SubmissionResponse, error)
	Skip(ctx context.Context, submissionID uint, payload dto.SkipRequest, actor ActivityActor) (dto.SubmissionResponse, error)
	Release(ctx context.Context, submissionID uint, actor ActivityActor) (dto.SubmissionResponse, error)
	QueuePage(ctx context.Context, req dto.MarkingQueueRequest) (dto.MarkingQueuePageResponse, error)
	QueueCursor(ctx context.Context, req dto.MarkingQueueRequest) (dto.MarkingQueueCursorResponse, error)
}

type markingService struct {
	marking     repository.MarkingRepository
	submissions repository.SubmissionRepository
	grades      repository.GradeRepository
	validator   *validator.Validate
	activity    ActivityRecorder
	events      EventPublisher
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewMarkingService constructs the marking workflow service.
func NewMarkingService(
	markingRepo repository.MarkingRepository,
	submissionRepo repository.SubmissionRepository,
	gradeRepo repository.GradeRepository,
	validate *validator.Validate,
	activity ActivityRecorder,
	events EventPublisher,
	logger zerolog.Logger,
) MarkingService {
	return &markingService{
		marking:     markingRepo,
		submissions: submissionRepo,
		grades:      gradeRepo,
		validator:   validate,
		activity:    activity,
		events:      events,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "marking_service").Logger(),
		now:         time.Now,
	}
}

// loadSubmission resolves the target submission. Placeholders never entered
// the marking pipeline, so marker actions treat them as absent.
func (s *markingService) loadSubmission(ctx context.Context, submissionID uint) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}

	if submission.IsPlaceholder() {
		return models.Submission{}, ErrSubmissionNotFound
	}

	return submission, nil
}

func (s *markingService) loadOrNewAssignment(ctx context.Context, submissionID uint) (models.MarkingAssignment, error) {
	assignment, err := s.marking.GetBySubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.MarkingAssignment{SubmissionID: submissionID, Status: models.MarkingStatusWaiting}, nil
		}
		return models.MarkingAssignment{}, err
	}

	return assignment, nil
}

func (s *markingService) AssignMarker(ctx context.Context, submissionID uint, payload dto.AssignMarkerRequest, actor ActivityActor) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	assignment, err := s.loadOrNewAssignment(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	// Reassignment is an overwrite, not an error.
	markerID := payload.MarkerID
	assignment.MarkerID = &markerID
	assignment.Status = models.MarkingStatusBeingMarked
	assignment.StatusChangedAt = s.now()
	assignment.StatusChangedBy = actor.ID
	assignment.HoldReason = ""
	assignment.Priority = payload.Priority
	assignment.DueAt = payload.DueAt

	if err := s.marking.Save(ctx, &assignment); err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.record(ctx, actor, "marking.assigned", submission.ID, map[string]interface{}{
		"marker_id": markerID,
	})

	submission.Marking = &assignment

	s.logger.Info().Uint("submission_id", submission.ID).Str("marker_id", markerID).Msg("marker assigned")

	return dto.NewSubmissionResponse(submission), nil
}

func (s *markingService) UnassignMarker(ctx context.Context, submissionID uint, actor ActivityActor) (dto.SubmissionResponse, error) {
	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	assignment, err := s.marking.GetBySubmission(ctx, submission.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Nothing assigned yet; the submission is already waiting.
			return dto.NewSubmissionResponse(submission), nil
		}
		return dto.SubmissionResponse{}, err
	}

	assignment.MarkerID = nil
	assignment.Status = models.MarkingStatusWaiting
	assignment.StatusChangedAt = s.now()
	assignment.StatusChangedBy = actor.ID
	assignment.HoldReason = ""

	if err := s.marking.Save(ctx, &assignment); err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.record(ctx, actor, "marking.unassigned", submission.ID, nil)

	submission.Marking = &assignment

	return dto.NewSubmissionResponse(submission), nil
}

func (s *markingService) SetStatus(ctx context.Context, submissionID uint, payload dto.SetStatusRequest, actor ActivityActor) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	status := models.MarkingStatus(payload.Status)
	if !status.Valid() {
		return dto.SubmissionResponse{}, fmt.Errorf("%w: %s", ErrInvalidStatus, payload.Status)
	}

	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if status == models.MarkingStatusReleased {
		if err := s.requireGrade(ctx, submission.ID); err != nil {
			return dto.SubmissionResponse{}, err
		}
	}

	assignment, err := s.applyStatus(ctx, submission.ID, status, actor, payload.Notes)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.record(ctx, actor, "marking.status_changed", submission.ID, map[string]interface{}{
		"status": string(status),
	})

	if status == models.MarkingStatusReleased && s.events != nil {
		s.events.Publish(ctx, "grade.released", map[string]interface{}{
			"submission_id":   submission.ID,
			"learner_id":      submission.LearnerID,
			"assessment_code": submission.AssessmentCode,
		})
	}

	submission.Marking = &assignment

	return dto.NewSubmissionResponse(submission), nil
}

// applyStatus writes the new status. Notes survive only as the hold reason of
// an on_hold transition; every other status clears the reason.
func (s *markingService) applyStatus(ctx context.Context, submissionID uint, status models.MarkingStatus, actor ActivityActor, notes string) (models.MarkingAssignment, error) {
	assignment, err := s.loadOrNewAssignment(ctx, submissionID)
	if err != nil {
		return models.MarkingAssignment{}, err
	}

	assignment.Status = status
	assignment.StatusChangedAt = s.now()
	assignment.StatusChangedBy = actor.ID
	if status == models.MarkingStatusOnHold {
		assignment.HoldReason = strings.TrimSpace(s.sanitizer.Sanitize(notes))
	} else {
		assignment.HoldReason = ""
	}

	if err := s.marking.Save(ctx, &assignment); err != nil {
		return models.MarkingAssignment{}, err
	}

	return assignment, nil
}

func (s *markingService) requireGrade(ctx context.Context, submissionID uint) error {
	if _, err := s.grades.GetBySubmission(ctx, submissionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGradeRequired
		}
		return err
	}
	return nil
}

func (s *markingService) Skip(ctx context.Context, submissionID uint, payload dto.SkipRequest, actor ActivityActor) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	assignment, err := s.applyStatus(ctx, submission.ID, models.MarkingStatusSkipped, actor, "")
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	// The skip reason lives on the grade record so the learner-facing outcome
	// carries it even though no marks were awarded.
	grade, err := s.grades.GetBySubmission(ctx, submission.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.SubmissionResponse{}, err
	}
	reason := strings.TrimSpace(s.sanitizer.Sanitize(payload.Reason))
	grade.SubmissionID = submission.ID
	grade.SkipReason = &reason
	if err := s.grades.Save(ctx, &grade); err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.record(ctx, actor, "marking.skipped", submission.ID, map[string]interface{}{
		"reason": reason,
	})

	submission.Marking = &assignment
	submission.Grade = &grade

	return dto.NewSubmissionResponse(submission), nil
}

func (s *markingService) Release(ctx context.Context, submissionID uint, actor ActivityActor) (dto.SubmissionResponse, error) {
	return s.SetStatus(ctx, submissionID, dto.SetStatusRequest{Status: string(models.MarkingStatusReleased)}, actor)
}

func (s *markingService) queueFilter(req dto.MarkingQueueRequest) repository.MarkingQueueFilter {
	filter := repository.MarkingQueueFilter{}
	if req.MarkerID != "" {
		markerID := req.MarkerID
		filter.MarkerID = &markerID
	}
	if req.Status != "" {
		status := models.MarkingStatus(req.Status)
		filter.Status = &status
	}
	if req.AssessmentCode != "" {
		code := req.AssessmentCode
		filter.AssessmentCode = &code
	}
	return filter
}

func (s *markingService) QueuePage(ctx context.Context, req dto.MarkingQueueRequest) (dto.MarkingQueuePageResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.MarkingQueuePageResponse{}, err
	}

	page := maxInt(req.Page, 1)
	pageSize := req.Limit
	if pageSize <= 0 {
		pageSize = defaultQueuePageSize
	}

	submissions, total, err := s.marking.ListPage(ctx, s.queueFilter(req), page, pageSize)
	if err != nil {
		return dto.MarkingQueuePageResponse{}, err
	}

	return dto.MarkingQueuePageResponse{
		Items: dto.NewSubmissionResponseSlice(submissions),
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: calculateTotalPages(total, pageSize),
		},
	}, nil
}

func (s *markingService) QueueCursor(ctx context.Context, req dto.MarkingQueueRequest) (dto.MarkingQueueCursorResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.MarkingQueueCursorResponse{}, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultQueuePageSize
	}

	var after *repository.QueueCursor
	if req.Cursor != "" {
		decoded, err := decodeQueueCursor(req.Cursor)
		if err != nil {
			return dto.MarkingQueueCursorResponse{}, err
		}
		after = &decoded
	}

	// Fetch one extra row to learn whether a next page exists.
	submissions, err := s.marking.ListAfter(ctx, s.queueFilter(req), after, limit+1)
	if err != nil {
		return dto.MarkingQueueCursorResponse{}, err
	}

	var nextCursor *string
	if len(submissions) > limit {
		submissions = submissions[:limit]
		last := submissions[len(submissions)-1]
		encoded := encodeQueueCursor(repository.QueueCursor{CreatedAt: last.CreatedAt, ID: last.ID})
		nextCursor = &encoded
	}

	return dto.MarkingQueueCursorResponse{
		Items: dto.NewSubmissionResponseSlice(submissions),
		Cursor: dto.CursorMeta{
			Limit:      limit,
			NextCursor: nextCursor,
		},
	}, nil
}

func (s *markingService) record(ctx context.Context, actor ActivityActor, action string, submissionID uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}
	_, _ = s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "submission",
		EntityID:   &submissionID,
		Metadata:   metadata,
	})
}

func encodeQueueCursor(cursor repository.QueueCursor) string {
	raw := fmt.Sprintf("%s|%d", cursor.CreatedAt.UTC().Format(time.RFC3339Nano), cursor.ID)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func decodeQueueCursor(encoded string) (repository.QueueCursor, error) {
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return repository.QueueCursor{}, ErrInvalidCursor
	}

	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return repository.QueueCursor{}, ErrInvalidCursor
	}

	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return repository.QueueCursor{}, ErrInvalidCursor
	}

	var id uint
	if _, err := fmt.Sscanf(parts[1], "%d", &id); err != nil {
		return repository.QueueCursor{}, ErrInvalidCursor
	}

	return repository.QueueCursor{CreatedAt: createdAt, ID: id}, nil
}
