package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abhisheksingh810/marking-api/internal/dto"
	"github.com/abhisheksingh810/marking-api/internal/models"
)

const (
	testLearner    = "learner-42"
	testAssessment = "BTEC-IT-U1"
	testContext    = "course-7"
)

func attemptWithStatus(id uint, attempt int, status models.MarkingStatus) models.Submission {
	return models.Submission{
		ID:             id,
		LearnerID:      testLearner,
		ContextID:      testContext,
		AssessmentCode: testAssessment,
		AttemptNumber:  attempt,
		FileCount:      1,
		Marking: &models.MarkingAssignment{
			SubmissionID: id,
			Status:       status,
		},
	}
}

func withGrade(submission models.Submission, label string, pass bool) models.Submission {
	completed := time.Now()
	submission.Grade = &models.Grade{
		SubmissionID: submission.ID,
		GradeLabel:   label,
		Pass:         pass,
		CompletedAt:  &completed,
	}
	return submission
}

func newEligibilityFixture() (*memorySubmissionRepo, *memoryMalpracticeRepo, EligibilityService) {
	submissions := newMemorySubmissionRepo()
	malpractice := newMemoryMalpracticeRepo()
	svc := NewEligibilityService(submissions, malpractice, testLogger())
	return submissions, malpractice, svc
}

func TestValidateEligibleWithNoHistory(t *testing.T) {
	_, _, svc := newEligibilityFixture()

	result, err := svc.Validate(context.Background(), testLearner, testAssessment, testContext)
	require.NoError(t, err)
	require.True(t, result.Eligible)
	require.Empty(t, result.BlockingType)
}

func TestValidateBlocksAfterPassingGrade(t *testing.T) {
	submissions, _, svc := newEligibilityFixture()
	submissions.add(withGrade(attemptWithStatus(1, 1, models.MarkingStatusReleased), "B", true))

	result, err := svc.Validate(context.Background(), testLearner, testAssessment, testContext)
	require.NoError(t, err)
	require.False(t, result.Eligible)
	require.Equal(t, dto.BlockingPassedPrevious, result.BlockingType)
	require.Equal(t, "B", result.Details["grade"])
	require.Equal(t, 1, result.Details["attempt_number"])
}

func TestValidatePassOnAnyAttemptWinsOverAttemptLimit(t *testing.T) {
	submissions, _, svc := newEligibilityFixture()
	submissions.add(withGrade(attemptWithStatus(1, 1, models.MarkingStatusReleased), "Fail", false))
	submissions.add(withGrade(attemptWithStatus(2, 2, models.MarkingStatusReleased), "C", true))
	submissions.add(withGrade(attemptWithStatus(3, 3, models.MarkingStatusReleased), "Fail", false))

	result, err := svc.Validate(context.Background(), testLearner, testAssessment, testContext)
	require.NoError(t, err)
	require.False(t, result.Eligible)
	require.Equal(t, dto.BlockingPassedPrevious, result.BlockingType)
}

func TestValidateBlocksWhileSubmissionInPipeline(t *testing.T) {
	cases := map[models.MarkingStatus]string{
		models.MarkingStatusWaiting:        "waiting to be marked",
		models.MarkingStatusBeingMarked:    "currently being marked",
		models.MarkingStatusOnHold:         "on hold pending review",
		models.MarkingStatusApprovalNeeded: "awaiting approval",
	}

	for status, phrase := range cases {
		t.Run(string(status), func(t *testing.T) {
			submissions, _, svc := newEligibilityFixture()
			submissions.add(attemptWithStatus(1, 1, status))

			result, err := svc.Validate(context.Background(), testLearner, testAssessment, testContext)
			require.NoError(t, err)
			require.False(t, result.Eligible)
			require.Equal(t, dto.BlockingUnmarkedSubmission, result.BlockingType)
			require.Contains(t, result.Reason, phrase)
			require.Equal(t, string(status), result.Details["marking_status"])
		})
	}
}

func TestValidateSubmissionWithoutMarkingRecordBlocks(t *testing.T) {
	submissions, _, svc := newEligibilityFixture()
	attempt := attemptWithStatus(1, 1, models.MarkingStatusWaiting)
	attempt.Marking = nil
	submissions.add(attempt)

	result, err := svc.Validate(context.Background(), testLearner, testAssessment, testContext)
	require.NoError(t, err)
	require.False(t, result.Eligible)
	require.Equal(t, dto.BlockingUnmarkedSubmission, result.BlockingType)
	require.Equal(t, "waiting", result.Details["marking_status"])
}

func TestValidateSkippedAttemptsDoNotConsumeSlots(t *testing.T) {
	submissions, _, svc := newEligibilityFixture()
	submissions.add(withGrade(attemptWithStatus(1, 1, models.MarkingStatusReleased), "Fail", false))
	submissions.add(attemptWithStatus(2, 2, models.MarkingStatusSkipped))
	submissions.add(withGrade(attemptWithStatus(3, 3, models.MarkingStatusReleased), "Fail", false))

	result, err := svc.Validate(context.Background(), testLearner, testAssessment, testContext)
	require.NoError(t, err)
	require.True(t, result.Eligible)
}

func TestValidateBlocksAtGlobalAttemptLimit(t *testing.T) {
	submissions, _, svc := newEligibilityFixture()
	for i := 1; i <= MaxAttempts; i++ {
		submissions.add(withGrade(attemptWithStatus(uint(i), i, models.MarkingStatusReleased), "Fail", false))
	}

	result, err := svc.Validate(context.Background(), testLearner, testAssessment, testContext)
	require.NoError(t, err)
	require.False(t, result.Eligible)
	require.Equal(t, dto.BlockingAttemptLimit, result.BlockingType)
	require.Equal(t, MaxAttempts, result.Details["attempts_used"])
}

func TestValidateMalpracticeCapBelowGlobalLimit(t *testing.T) {
	submissions, malpractice, svc := newEligibilityFixture()
	submissions.add(withGrade(attemptWithStatus(1, 1, models.MarkingStatusReleased), "Fail", false))

	one := 1
	level := models.MalpracticeLevel{Rank: 2, Label: "Moderate"}
	require.NoError(t, malpractice.CreateLevel(context.Background(), &level))
	require.NoError(t, malpractice.CreateEnforcement(context.Background(), &models.MalpracticeEnforcement{
		LearnerID:          testLearner,
		ContextID:          testContext,
		AssessmentCode:     testAssessment,
		MalpracticeLevelID: level.ID,
		MaxAttempts:        &one,
		SubmissionID:       1,
	}))

	result, err := svc.Validate(context.Background(), testLearner, testAssessment, testContext)
	require.NoError(t, err)
	require.False(t, result.Eligible)
	require.Equal(t, dto.BlockingMalpracticeLimit, result.BlockingType)
	require.Equal(t, 1, result.Details["enforced_max"])
	require.Equal(t, "Moderate", result.Details["level"])
}

func TestValidateMalpracticeNullCapBlocksEntirely(t *testing.T) {
	_, malpractice, svc := newEligibilityFixture()

	level := models.MalpracticeLevel{Rank: 4, Label: "Severe"}
	require.NoError(t, malpractice.CreateLevel(context.Background(), &level))
	require.NoError(t, malpractice.CreateEnforcement(context.Background(), &models.MalpracticeEnforcement{
		LearnerID:          testLearner,
		ContextID:          testContext,
		AssessmentCode:     testAssessment,
		MalpracticeLevelID: level.ID,
		SubmissionID:       1,
	}))

	result, err := svc.Validate(context.Background(), testLearner, testAssessment, testContext)
	require.NoError(t, err)
	require.False(t, result.Eligible)
	require.Equal(t, dto.BlockingMalpracticeLimit, result.BlockingType)
	require.Equal(t, 0, result.Details["attempts_remaining"])
}

func TestValidateNewestEnforcementWins(t *testing.T) {
	submissions, malpractice, svc := newEligibilityFixture()
	submissions.add(withGrade(attemptWithStatus(1, 1, models.MarkingStatusReleased), "Fail", false))

	severe := models.MalpracticeLevel{Rank: 4, Label: "Severe"}
	minor := models.MalpracticeLevel{Rank: 1, Label: "Minor", DefaultMaxAttempts: intPtr(3)}
	require.NoError(t, malpractice.CreateLevel(context.Background(), &severe))
	require.NoError(t, malpractice.CreateLevel(context.Background(), &minor))

	// First a total block, then a correction down to the minor cap.
	require.NoError(t, malpractice.CreateEnforcement(context.Background(), &models.MalpracticeEnforcement{
		LearnerID: testLearner, ContextID: testContext, AssessmentCode: testAssessment,
		MalpracticeLevelID: severe.ID, SubmissionID: 1,
	}))
	three := 3
	require.NoError(t, malpractice.CreateEnforcement(context.Background(), &models.MalpracticeEnforcement{
		LearnerID: testLearner, ContextID: testContext, AssessmentCode: testAssessment,
		MalpracticeLevelID: minor.ID, MaxAttempts: &three, SubmissionID: 1,
	}))

	result, err := svc.Validate(context.Background(), testLearner, testAssessment, testContext)
	require.NoError(t, err)
	require.True(t, result.Eligible)
}

func intPtr(v int) *int {
	return &v
}
