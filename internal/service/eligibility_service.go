package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/abhisheksingh810/marking-api/internal/dto"
	"github.com/abhisheksingh810/marking-api/internal/models"
	"github.com/abhisheksingh810/marking-api/internal/repository"
)

// MaxAttempts is the platform-wide cap on valid attempts per
// learner/assessment/context. Malpractice enforcement can lower it per
// learner but never raise it.
const MaxAttempts = 3

// EligibilityService decides whether a learner may start a new attempt.
// Checks run in strict priority order and the first failure short-circuits.
// An ineligible outcome is a structured result, not an error.
type EligibilityService interface {
	Validate(ctx context.Context, learnerID, assessmentCode, contextID string) (dto.EligibilityResult, error)
}

type eligibilityService struct {
	submissions repository.SubmissionRepository
	malpractice repository.MalpracticeRepository
	logger      zerolog.Logger
}

// NewEligibilityService constructs the eligibility validator.
func NewEligibilityService(
	submissionRepo repository.SubmissionRepository,
	malpracticeRepo repository.MalpracticeRepository,
	logger zerolog.Logger,
) EligibilityService {
	return &eligibilityService{
		submissions: submissionRepo,
		malpractice: malpracticeRepo,
		logger:      logger.With().Str("component", "eligibility_service").Logger(),
	}
}

func (s *eligibilityService) Validate(ctx context.Context, learnerID, assessmentCode, contextID string) (dto.EligibilityResult, error) {
	attempts, err := s.submissions.ListAttempts(ctx, learnerID, assessmentCode, contextID)
	if err != nil {
		return dto.EligibilityResult{}, err
	}

	if result, blocked := checkPassedPrevious(attempts); blocked {
		return result, nil
	}

	if result, blocked := checkUnmarkedPrevious(attempts); blocked {
		return result, nil
	}

	// Skipped attempts hand the slot back, so the count is recomputed fresh
	// on every call; a marker skipping mid-review changes it within a session.
	validCount := countValidAttempts(attempts)

	enforcement, err := s.malpractice.LatestForTriple(ctx, learnerID, assessmentCode, contextID)
	switch {
	case err == nil:
		if result, blocked := checkMalpracticeCap(enforcement, validCount); blocked {
			return result, nil
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// No finding on record.
	default:
		return dto.EligibilityResult{}, err
	}

	if validCount >= MaxAttempts {
		return dto.Blocked(
			dto.BlockingAttemptLimit,
			fmt.Sprintf("You have used all %d attempts for this assessment.", MaxAttempts),
			map[string]interface{}{
				"attempts_used": validCount,
				"max_attempts":  MaxAttempts,
			},
		), nil
	}

	return dto.Eligible(), nil
}

// checkPassedPrevious blocks permanently once any attempt carries a passing
// final grade, regardless of what happened on other attempts.
func checkPassedPrevious(attempts []models.Submission) (dto.EligibilityResult, bool) {
	for _, attempt := range attempts {
		grade := attempt.Grade
		if grade == nil || grade.CompletedAt == nil || grade.GradeLabel == "" {
			continue
		}
		if grade.Pass {
			return dto.Blocked(
				dto.BlockingPassedPrevious,
				fmt.Sprintf("You already passed this assessment with grade %q on attempt %d.", grade.GradeLabel, attempt.AttemptNumber),
				map[string]interface{}{
					"grade":          grade.GradeLabel,
					"attempt_number": attempt.AttemptNumber,
				},
			), true
		}
	}

	return dto.EligibilityResult{}, false
}

// checkUnmarkedPrevious blocks while any prior attempt is still inside the
// marking pipeline. Scanning newest-first surfaces the most recent status.
func checkUnmarkedPrevious(attempts []models.Submission) (dto.EligibilityResult, bool) {
	for i := len(attempts) - 1; i >= 0; i-- {
		attempt := attempts[i]
		state := attempt.MarkingState()
		if !state.Blocking() {
			continue
		}

		return dto.Blocked(
			dto.BlockingUnmarkedSubmission,
			statusMessage(state.Status),
			map[string]interface{}{
				"attempt_number": attempt.AttemptNumber,
				"marking_status": string(state.Status),
			},
		), true
	}

	return dto.EligibilityResult{}, false
}

func checkMalpracticeCap(enforcement models.MalpracticeEnforcement, validCount int) (dto.EligibilityResult, bool) {
	if enforcement.BlocksEntirely() {
		return dto.Blocked(
			dto.BlockingMalpracticeLimit,
			"Further attempts are not permitted following an academic integrity finding.",
			map[string]interface{}{
				"level":              enforcement.Level.Label,
				"attempts_remaining": 0,
			},
		), true
	}

	limit := *enforcement.MaxAttempts
	if validCount < limit {
		return dto.EligibilityResult{}, false
	}

	remaining := limit - validCount
	if remaining < 0 {
		remaining = -remaining
	}

	return dto.Blocked(
		dto.BlockingMalpracticeLimit,
		fmt.Sprintf("Your attempts for this assessment are limited to %d following an academic integrity finding.", limit),
		map[string]interface{}{
			"level":              enforcement.Level.Label,
			"enforced_max":       limit,
			"attempts_used":      validCount,
			"attempts_remaining": remaining,
		},
	), true
}

// countValidAttempts counts file-bearing submissions whose marking status is
// anything but marking_skipped.
func countValidAttempts(attempts []models.Submission) int {
	count := 0
	for _, attempt := range attempts {
		if attempt.MarkingState().Status != models.MarkingStatusSkipped {
			count++
		}
	}
	return count
}

func statusMessage(status models.MarkingStatus) string {
	switch status {
	case models.MarkingStatusOnHold:
		return "Your previous submission is on hold pending review. Please wait for it to be resolved before submitting again."
	case models.MarkingStatusBeingMarked:
		return "Your previous submission is currently being marked. Please wait for the result before submitting again."
	case models.MarkingStatusApprovalNeeded:
		return "Marks for your previous submission are awaiting approval. Please wait for the result before submitting again."
	default:
		return "Your previous submission is waiting to be marked. Please wait for the result before submitting again."
	}
}
