package service

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/abhisheksingh810/marking-api/internal/dto"
)

type listenerStub struct {
	changes []RubricChange
	err     error
}

func (l *listenerStub) RubricChanged(ctx context.Context, change RubricChange) error {
	l.changes = append(l.changes, change)
	return l.err
}

type rubricFixture struct {
	rubric   *memoryRubricRepo
	listener *listenerStub
	svc      RubricService
}

func newRubricFixture(t *testing.T) *rubricFixture {
	t.Helper()

	f := &rubricFixture{
		rubric:   newMemoryRubricRepo(),
		listener: &listenerStub{},
	}
	f.svc = NewRubricService(f.rubric, f.listener, validator.New(validator.WithRequiredStructEnabled()), testLogger())
	return f
}

func (f *rubricFixture) createAssessment(t *testing.T) dto.AssessmentResponse {
	t.Helper()
	assessment, err := f.svc.CreateAssessment(context.Background(), dto.AssessmentCreateRequest{Code: testAssessment, Title: "Unit 1"})
	require.NoError(t, err)
	return assessment
}

func (f *rubricFixture) createSection(t *testing.T, assessmentID uint) dto.SectionResponse {
	t.Helper()
	section, err := f.svc.CreateSection(context.Background(), dto.SectionCreateRequest{AssessmentID: assessmentID, Title: "Understanding", Position: 1})
	require.NoError(t, err)
	return section
}

func TestSectionAndOptionMutationsNotifyListener(t *testing.T) {
	f := newRubricFixture(t)
	assessment := f.createAssessment(t)
	require.Empty(t, f.listener.changes)

	section := f.createSection(t, assessment.ID)
	require.Len(t, f.listener.changes, 1)

	option, err := f.svc.CreateOption(context.Background(), dto.OptionCreateRequest{SectionID: section.ID, Label: "Pass band", Marks: 10})
	require.NoError(t, err)
	require.Len(t, f.listener.changes, 2)

	marks := 12.0
	_, err = f.svc.UpdateOption(context.Background(), option.ID, dto.OptionUpdateRequest{Marks: &marks})
	require.NoError(t, err)
	require.Len(t, f.listener.changes, 3)

	require.NoError(t, f.svc.DeleteOption(context.Background(), option.ID))
	require.NoError(t, f.svc.DeleteSection(context.Background(), section.ID))
	require.Len(t, f.listener.changes, 5)

	for _, change := range f.listener.changes {
		require.Equal(t, assessment.ID, change.AssessmentID)
	}
}

func TestBoundaryMutationsDoNotNotifyListener(t *testing.T) {
	f := newRubricFixture(t)
	assessment := f.createAssessment(t)

	boundary, err := f.svc.CreateBoundary(context.Background(), dto.BoundaryCreateRequest{
		AssessmentID: assessment.ID,
		Label:        "Pass",
		MarksFrom:    0,
		MarksTo:      10,
		Pass:         true,
	})
	require.NoError(t, err)
	require.Empty(t, f.listener.changes)

	label := "Merit"
	_, err = f.svc.UpdateBoundary(context.Background(), boundary.ID, dto.BoundaryUpdateRequest{Label: &label})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteBoundary(context.Background(), boundary.ID))
	require.Empty(t, f.listener.changes)
}

func TestUpdateBoundaryRejectsInvertedRange(t *testing.T) {
	f := newRubricFixture(t)
	assessment := f.createAssessment(t)

	boundary, err := f.svc.CreateBoundary(context.Background(), dto.BoundaryCreateRequest{
		AssessmentID: assessment.ID,
		Label:        "Pass",
		MarksFrom:    10,
		MarksTo:      20,
		Pass:         true,
	})
	require.NoError(t, err)

	// Lowering only the upper mark below the stored lower mark must fail.
	marksTo := 5.0
	_, err = f.svc.UpdateBoundary(context.Background(), boundary.ID, dto.BoundaryUpdateRequest{MarksTo: &marksTo})
	require.ErrorIs(t, err, ErrInvalidBoundaryRange)

	// Raising only the lower mark above the stored upper mark must fail too.
	marksFrom := 25.0
	_, err = f.svc.UpdateBoundary(context.Background(), boundary.ID, dto.BoundaryUpdateRequest{MarksFrom: &marksFrom})
	require.ErrorIs(t, err, ErrInvalidBoundaryRange)

	// Moving both ends together stays valid.
	marksFrom, marksTo = 12, 18
	updated, err := f.svc.UpdateBoundary(context.Background(), boundary.ID, dto.BoundaryUpdateRequest{MarksFrom: &marksFrom, MarksTo: &marksTo})
	require.NoError(t, err)
	require.Equal(t, 12.0, updated.MarksFrom)
	require.Equal(t, 18.0, updated.MarksTo)
}

func TestListenerFailureAbortsMutation(t *testing.T) {
	f := newRubricFixture(t)
	assessment := f.createAssessment(t)
	f.listener.err = errors.New("recompute failed")

	_, err := f.svc.CreateSection(context.Background(), dto.SectionCreateRequest{AssessmentID: assessment.ID, Title: "Understanding"})
	require.ErrorContains(t, err, "recompute failed")
}

func TestRubricMutationsKeepAssessmentTotalCurrent(t *testing.T) {
	rubric := newMemoryRubricRepo()
	grades := newMemoryGradeRepo()
	submissions := newMemorySubmissionRepo()
	marking := newMemoryMarkingRepo()
	validate := validator.New(validator.WithRequiredStructEnabled())

	grading := NewGradingService(rubric, grades, submissions, marking, validate, nil, testLogger())
	svc := NewRubricService(rubric, grading, validate, testLogger())
	ctx := context.Background()

	assessment, err := svc.CreateAssessment(ctx, dto.AssessmentCreateRequest{Code: testAssessment, Title: "Unit 1"})
	require.NoError(t, err)

	section, err := svc.CreateSection(ctx, dto.SectionCreateRequest{AssessmentID: assessment.ID, Title: "Understanding"})
	require.NoError(t, err)

	_, err = svc.CreateOption(ctx, dto.OptionCreateRequest{SectionID: section.ID, Label: "Full marks", Marks: 10})
	require.NoError(t, err)

	stored, err := rubric.GetAssessment(ctx, assessment.ID)
	require.NoError(t, err)
	require.Equal(t, 10.0, stored.TotalMarks)

	// Raising the best option raises the total.
	options := make([]uint, 0, 1)
	for id := range rubric.options {
		options = append(options, id)
	}
	require.Len(t, options, 1)
	marks := 15.0
	_, err = svc.UpdateOption(ctx, options[0], dto.OptionUpdateRequest{Marks: &marks})
	require.NoError(t, err)

	stored, err = rubric.GetAssessment(ctx, assessment.ID)
	require.NoError(t, err)
	require.Equal(t, 15.0, stored.TotalMarks)

	// Removing the section zeroes it.
	require.NoError(t, svc.DeleteSection(ctx, section.ID))
	stored, err = rubric.GetAssessment(ctx, assessment.ID)
	require.NoError(t, err)
	require.Equal(t, 0.0, stored.TotalMarks)
}

func TestGetAssessmentByCodeNotFound(t *testing.T) {
	f := newRubricFixture(t)

	_, err := f.svc.GetAssessmentByCode(context.Background(), "missing")
	require.ErrorIs(t, err, ErrAssessmentNotFound)
}

func TestUpdateSectionPartialFields(t *testing.T) {
	f := newRubricFixture(t)
	assessment := f.createAssessment(t)
	section := f.createSection(t, assessment.ID)

	inactive := false
	updated, err := f.svc.UpdateSection(context.Background(), section.ID, dto.SectionUpdateRequest{Active: &inactive})
	require.NoError(t, err)
	require.False(t, updated.Active)
	require.Equal(t, section.Title, updated.Title)
}
