package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/abhisheksingh810/marking-api/internal/dto"
	"github.com/abhisheksingh810/marking-api/internal/models"
	"github.com/abhisheksingh810/marking-api/internal/repository"
)

// ErrAssessmentNotFound indicates the referenced assessment does not exist.
var ErrAssessmentNotFound = errors.New("assessment not found")

// ErrGradeNotFound indicates the submission has no recorded grade.
var ErrGradeNotFound = errors.New("grade not found")

// ErrAmbiguousGradeBoundaries indicates the configured boundaries match the
// awarded total zero or multiple times. This is an administrative data-entry
// problem surfaced to the caller, never masked.
var ErrAmbiguousGradeBoundaries = errors.New("grade boundaries are ambiguous for the awarded total")

// ErrSectionNotInRubric indicates a submitted section mark references a
// section outside the assessment's rubric.
var ErrSectionNotInRubric = errors.New("section does not belong to the assessment rubric")

// ErrMarksExceedSectionMax indicates a section mark surpasses the section's
// maximum contribution.
var ErrMarksExceedSectionMax = errors.New("marks exceed section maximum")

// ErrOptionNotInSection indicates a submitted section mark references a
// marking option outside the section it scores.
var ErrOptionNotInSection = errors.New("marking option does not belong to the section")

// GradingService derives marks and grades from the rubric: a section's
// maximum, an assessment's total, and a submission's final grade. It also
// consumes rubric change events to keep the persisted total consistent.
type GradingService interface {
	RubricListener
	Score(ctx context.Context, submissionID uint, payload dto.ScoreRequest, actor ActivityActor) (dto.GradeResponse, error)
	GetGrade(ctx context.Context, submissionID uint) (dto.GradeResponse, error)
	SectionMarks(ctx context.Context, submissionID uint) ([]dto.SectionMarkResponse, error)
}

type gradingService struct {
	rubric      repository.RubricRepository
	grades      repository.GradeRepository
	submissions repository.SubmissionRepository
	marking     repository.MarkingRepository
	validator   *validator.Validate
	activity    ActivityRecorder
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewGradingService constructs the marks and grade computation service.
func NewGradingService(
	rubricRepo repository.RubricRepository,
	gradeRepo repository.GradeRepository,
	submissionRepo repository.SubmissionRepository,
	markingRepo repository.MarkingRepository,
	validate *validator.Validate,
	activity ActivityRecorder,
	logger zerolog.Logger,
) GradingService {
	return &gradingService{
		rubric:      rubricRepo,
		grades:      gradeRepo,
		submissions: submissionRepo,
		marking:     markingRepo,
		validator:   validate,
		activity:    activity,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "grading_service").Logger(),
		now:         time.Now,
	}
}

// SectionMaxMarks returns the section's maximum contribution: the highest mark
// value among its active options, or 0 when none exist.
func SectionMaxMarks(section models.AssessmentSection) float64 {
	return section.MaxMarks()
}

// AssessmentTotalMarks sums the maximum contribution of every active section.
func AssessmentTotalMarks(assessment models.Assessment) float64 {
	total := 0.0
	for _, section := range assessment.Sections {
		if section.Active {
			total += section.MaxMarks()
		}
	}
	return total
}

func sectionHasOption(section models.AssessmentSection, optionID uint) bool {
	for _, option := range section.Options {
		if option.ID == optionID {
			return true
		}
	}
	return false
}

// ResolveFinalGrade finds the single boundary whose range contains the awarded
// total. Zero or multiple matches surface as ErrAmbiguousGradeBoundaries.
func ResolveFinalGrade(totalAwarded float64, boundaries []models.GradeBoundary) (models.GradeBoundary, error) {
	var matched []models.GradeBoundary
	for _, boundary := range boundaries {
		if boundary.Contains(totalAwarded) {
			matched = append(matched, boundary)
		}
	}

	if len(matched) != 1 {
		return models.GradeBoundary{}, fmt.Errorf("%w: %d boundaries match total %.2f", ErrAmbiguousGradeBoundaries, len(matched), totalAwarded)
	}

	return matched[0], nil
}

// RubricChanged recomputes and persists the assessment total. It runs
// synchronously inside the rubric mutation that raised the event; a lookup
// failure propagates rather than leaving a stale total behind.
func (s *gradingService) RubricChanged(ctx context.Context, change RubricChange) error {
	assessment, err := s.rubric.GetAssessment(ctx, change.AssessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssessmentNotFound
		}
		return err
	}

	total := AssessmentTotalMarks(assessment)
	if err := s.rubric.UpdateTotalMarks(ctx, assessment.ID, total); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssessmentNotFound
		}
		return err
	}

	s.logger.Info().Uint("assessment_id", assessment.ID).Float64("total_marks", total).Msg("assessment total recomputed")

	return nil
}

func (s *gradingService) Score(ctx context.Context, submissionID uint, payload dto.ScoreRequest, actor ActivityActor) (dto.GradeResponse, error) {
	tracer := otel.Tracer("github.com/abhisheksingh810/marking-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.score")
	span.SetAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.String("grading.actor_id", actor.ID),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.GradeResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "submission_not_found")
			return dto.GradeResponse{}, ErrSubmissionNotFound
		}
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}

	assessment, err := s.rubric.GetAssessmentByCode(ctx, submission.AssessmentCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "assessment_not_found")
			return dto.GradeResponse{}, ErrAssessmentNotFound
		}
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}

	sections := make(map[uint]models.AssessmentSection, len(assessment.Sections))
	for _, section := range assessment.Sections {
		sections[section.ID] = section
	}

	// A re-score may cover only some sections. Marks recorded earlier keep
	// counting toward the total so the grade stays consistent with the
	// persisted section marks.
	existing, err := s.grades.SectionMarks(ctx, submission.ID)
	if err != nil {
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}

	awarded := make(map[uint]float64, len(existing)+len(payload.Marks))
	for _, mark := range existing {
		if _, ok := sections[mark.SectionID]; ok {
			awarded[mark.SectionID] = mark.Marks
		}
	}

	for _, entry := range payload.Marks {
		section, ok := sections[entry.SectionID]
		if !ok {
			span.SetStatus(codes.Error, "section_not_in_rubric")
			return dto.GradeResponse{}, fmt.Errorf("%w: section %d", ErrSectionNotInRubric, entry.SectionID)
		}
		if max := section.MaxMarks(); entry.Marks > max {
			span.SetStatus(codes.Error, "marks_exceed_section_max")
			return dto.GradeResponse{}, fmt.Errorf("%w: section %d allows at most %.2f", ErrMarksExceedSectionMax, entry.SectionID, max)
		}
		if entry.MarkingOptionID != nil && !sectionHasOption(section, *entry.MarkingOptionID) {
			span.SetStatus(codes.Error, "option_not_in_section")
			return dto.GradeResponse{}, fmt.Errorf("%w: option %d, section %d", ErrOptionNotInSection, *entry.MarkingOptionID, entry.SectionID)
		}
		awarded[entry.SectionID] = entry.Marks
	}

	totalAwarded := 0.0
	for _, marks := range awarded {
		totalAwarded += marks
	}

	boundary, err := ResolveFinalGrade(totalAwarded, assessment.Boundaries)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grade_resolution_failed")
		return dto.GradeResponse{}, err
	}

	for _, entry := range payload.Marks {
		mark := models.SectionMark{
			SubmissionID:    submission.ID,
			SectionID:       entry.SectionID,
			Marks:           entry.Marks,
			MarkingOptionID: entry.MarkingOptionID,
			Feedback:        s.sanitize(entry.Feedback),
		}
		if err := s.grades.UpsertSectionMark(ctx, &mark); err != nil {
			span.RecordError(err)
			return dto.GradeResponse{}, err
		}
	}

	grade, err := s.grades.GetBySubmission(ctx, submission.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}

	totalPossible := AssessmentTotalMarks(assessment)
	percentage := 0.0
	if totalPossible > 0 {
		percentage = totalAwarded / totalPossible * 100
	}

	completedAt := s.now()
	grade.SubmissionID = submission.ID
	grade.TotalAwarded = totalAwarded
	grade.TotalPossible = totalPossible
	grade.GradeLabel = boundary.Label
	grade.Pass = boundary.Pass
	grade.Percentage = percentage
	grade.FeedbackSummary = s.sanitize(payload.FeedbackSummary)
	grade.SkipReason = nil
	grade.CompletedAt = &completedAt

	if err := s.grades.Save(ctx, &grade); err != nil {
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}

	if err := s.moveToApproval(ctx, submission, actor); err != nil {
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}

	if s.activity != nil {
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "submission.scored",
			EntityType: "submission",
			EntityID:   &submission.ID,
			Metadata: map[string]interface{}{
				"total_awarded":  totalAwarded,
				"total_possible": totalPossible,
				"grade_label":    boundary.Label,
				"pass":           boundary.Pass,
			},
		})
	}

	span.SetAttributes(
		attribute.Float64("grading.total_awarded", totalAwarded),
		attribute.String("grading.label", boundary.Label),
	)

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Float64("total_awarded", totalAwarded).
		Str("grade_label", boundary.Label).
		Msg("submission scored")

	return dto.NewGradeResponse(grade), nil
}

// moveToApproval parks the scored submission in the approval stage. Releasing
// the grade is a separate marker action with its own guard.
func (s *gradingService) moveToApproval(ctx context.Context, submission models.Submission, actor ActivityActor) error {
	assignment, err := s.marking.GetBySubmission(ctx, submission.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	assignment.SubmissionID = submission.ID
	assignment.Status = models.MarkingStatusApprovalNeeded
	assignment.StatusChangedAt = s.now()
	assignment.StatusChangedBy = actor.ID
	assignment.HoldReason = ""

	return s.marking.Save(ctx, &assignment)
}

func (s *gradingService) GetGrade(ctx context.Context, submissionID uint) (dto.GradeResponse, error) {
	grade, err := s.grades.GetBySubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradeResponse{}, ErrGradeNotFound
		}
		return dto.GradeResponse{}, err
	}

	return dto.NewGradeResponse(grade), nil
}

func (s *gradingService) SectionMarks(ctx context.Context, submissionID uint) ([]dto.SectionMarkResponse, error) {
	marks, err := s.grades.SectionMarks(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	return dto.NewSectionMarkResponseSlice(marks), nil
}

func (s *gradingService) sanitize(text string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(text))
}
