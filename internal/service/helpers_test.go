package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/abhisheksingh810/marking-api/internal/dto"
	"github.com/abhisheksingh810/marking-api/internal/models"
	"github.com/abhisheksingh810/marking-api/internal/repository"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type memorySubmissionRepo struct {
	submissions map[uint]models.Submission
	nextID      uint
}

func newMemorySubmissionRepo() *memorySubmissionRepo {
	return &memorySubmissionRepo{
		submissions: make(map[uint]models.Submission),
		nextID:      1,
	}
}

func (m *memorySubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	submission.ID = m.nextID
	submission.CreatedAt = time.Now()
	submission.UpdatedAt = time.Now()
	m.submissions[m.nextID] = *submission
	m.nextID++
	return nil
}

func (m *memorySubmissionRepo) Update(ctx context.Context, submission *models.Submission) error {
	if _, ok := m.submissions[submission.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	submission.UpdatedAt = time.Now()
	m.submissions[submission.ID] = *submission
	return nil
}

func (m *memorySubmissionRepo) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	submission, ok := m.submissions[id]
	if !ok {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return submission, nil
}

func (m *memorySubmissionRepo) ListAttempts(ctx context.Context, learnerID, assessmentCode, contextID string) ([]models.Submission, error) {
	var attempts []models.Submission
	for _, submission := range m.submissions {
		if submission.LearnerID != learnerID || submission.AssessmentCode != assessmentCode || submission.ContextID != contextID {
			continue
		}
		if submission.IsPlaceholder() {
			continue
		}
		attempts = append(attempts, submission)
	}
	sort.Slice(attempts, func(i, j int) bool {
		return attempts[i].AttemptNumber < attempts[j].AttemptNumber
	})
	return attempts, nil
}

func (m *memorySubmissionRepo) NextAttemptNumber(ctx context.Context, learnerID, assessmentCode, contextID string) (int, error) {
	highest := 0
	for _, submission := range m.submissions {
		if submission.LearnerID != learnerID || submission.AssessmentCode != assessmentCode || submission.ContextID != contextID {
			continue
		}
		if submission.AttemptNumber > highest {
			highest = submission.AttemptNumber
		}
	}
	return highest + 1, nil
}

func (m *memorySubmissionRepo) FindPlaceholder(ctx context.Context, learnerID, assessmentCode, contextID string) (models.Submission, error) {
	var found *models.Submission
	for _, submission := range m.submissions {
		if submission.LearnerID != learnerID || submission.AssessmentCode != assessmentCode || submission.ContextID != contextID {
			continue
		}
		if !submission.IsPlaceholder() {
			continue
		}
		candidate := submission
		if found == nil || candidate.ID > found.ID {
			found = &candidate
		}
	}
	if found == nil {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return *found, nil
}

func (m *memorySubmissionRepo) add(submission models.Submission) models.Submission {
	if submission.ID == 0 {
		submission.ID = m.nextID
	}
	if submission.ID >= m.nextID {
		m.nextID = submission.ID + 1
	}
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = time.Now()
	}
	m.submissions[submission.ID] = submission
	return submission
}

type memoryMarkingRepo struct {
	assignments map[uint]models.MarkingAssignment
	queue       []models.Submission
	nextID      uint
}

func newMemoryMarkingRepo() *memoryMarkingRepo {
	return &memoryMarkingRepo{
		assignments: make(map[uint]models.MarkingAssignment),
		nextID:      1,
	}
}

func (m *memoryMarkingRepo) GetBySubmission(ctx context.Context, submissionID uint) (models.MarkingAssignment, error) {
	assignment, ok := m.assignments[submissionID]
	if !ok {
		return models.MarkingAssignment{}, gorm.ErrRecordNotFound
	}
	return assignment, nil
}

func (m *memoryMarkingRepo) Save(ctx context.Context, assignment *models.MarkingAssignment) error {
	if assignment.ID == 0 {
		assignment.ID = m.nextID
		m.nextID++
	}
	m.assignments[assignment.SubmissionID] = *assignment
	return nil
}

func (m *memoryMarkingRepo) ListPage(ctx context.Context, filter repository.MarkingQueueFilter, page, pageSize int) ([]models.Submission, int64, error) {
	filtered := m.filtered(filter)
	total := int64(len(filtered))

	start := (page - 1) * pageSize
	if start >= len(filtered) {
		return []models.Submission{}, total, nil
	}
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end], total, nil
}

func (m *memoryMarkingRepo) ListAfter(ctx context.Context, filter repository.MarkingQueueFilter, after *repository.QueueCursor, limit int) ([]models.Submission, error) {
	filtered := m.filtered(filter)
	if after != nil {
		var remaining []models.Submission
		for _, submission := range filtered {
			if submission.CreatedAt.Before(after.CreatedAt) ||
				(submission.CreatedAt.Equal(after.CreatedAt) && submission.ID < after.ID) {
				remaining = append(remaining, submission)
			}
		}
		filtered = remaining
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

func (m *memoryMarkingRepo) filtered(filter repository.MarkingQueueFilter) []models.Submission {
	var results []models.Submission
	for _, submission := range m.queue {
		if submission.IsPlaceholder() {
			continue
		}
		state := submission.MarkingState()
		if filter.Status != nil && state.Status != *filter.Status {
			continue
		}
		if filter.MarkerID != nil {
			if submission.Marking == nil || submission.Marking.MarkerID == nil || *submission.Marking.MarkerID != *filter.MarkerID {
				continue
			}
		}
		if filter.AssessmentCode != nil && submission.AssessmentCode != *filter.AssessmentCode {
			continue
		}
		results = append(results, submission)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].ID > results[j].ID
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results
}

type memoryGradeRepo struct {
	grades map[uint]models.Grade
	marks  map[string]models.SectionMark
	nextID uint
}

func newMemoryGradeRepo() *memoryGradeRepo {
	return &memoryGradeRepo{
		grades: make(map[uint]models.Grade),
		marks:  make(map[string]models.SectionMark),
		nextID: 1,
	}
}

func (m *memoryGradeRepo) GetBySubmission(ctx context.Context, submissionID uint) (models.Grade, error) {
	grade, ok := m.grades[submissionID]
	if !ok {
		return models.Grade{}, gorm.ErrRecordNotFound
	}
	return grade, nil
}

func (m *memoryGradeRepo) Save(ctx context.Context, grade *models.Grade) error {
	if grade.ID == 0 {
		grade.ID = m.nextID
		m.nextID++
	}
	m.grades[grade.SubmissionID] = *grade
	return nil
}

func (m *memoryGradeRepo) UpsertSectionMark(ctx context.Context, mark *models.SectionMark) error {
	key := fmt.Sprintf("%d:%d", mark.SubmissionID, mark.SectionID)
	if existing, ok := m.marks[key]; ok {
		mark.ID = existing.ID
	} else {
		mark.ID = m.nextID
		m.nextID++
	}
	m.marks[key] = *mark
	return nil
}

func (m *memoryGradeRepo) SectionMarks(ctx context.Context, submissionID uint) ([]models.SectionMark, error) {
	var results []models.SectionMark
	for _, mark := range m.marks {
		if mark.SubmissionID == submissionID {
			results = append(results, mark)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].SectionID < results[j].SectionID
	})
	return results, nil
}

type memoryMalpracticeRepo struct {
	enforcements []models.MalpracticeEnforcement
	levels       map[uint]models.MalpracticeLevel
	nextID       uint
}

func newMemoryMalpracticeRepo() *memoryMalpracticeRepo {
	return &memoryMalpracticeRepo{
		levels: make(map[uint]models.MalpracticeLevel),
		nextID: 1,
	}
}

func (m *memoryMalpracticeRepo) CreateEnforcement(ctx context.Context, enforcement *models.MalpracticeEnforcement) error {
	enforcement.ID = m.nextID
	m.nextID++
	if enforcement.CreatedAt.IsZero() {
		enforcement.CreatedAt = time.Now()
	}
	if level, ok := m.levels[enforcement.MalpracticeLevelID]; ok {
		enforcement.Level = level
	}
	m.enforcements = append(m.enforcements, *enforcement)
	return nil
}

func (m *memoryMalpracticeRepo) LatestForTriple(ctx context.Context, learnerID, assessmentCode, contextID string) (models.MalpracticeEnforcement, error) {
	var latest *models.MalpracticeEnforcement
	for i := range m.enforcements {
		e := m.enforcements[i]
		if e.LearnerID != learnerID || e.AssessmentCode != assessmentCode || e.ContextID != contextID {
			continue
		}
		if latest == nil || e.ID > latest.ID {
			candidate := e
			latest = &candidate
		}
	}
	if latest == nil {
		return models.MalpracticeEnforcement{}, gorm.ErrRecordNotFound
	}
	return *latest, nil
}

func (m *memoryMalpracticeRepo) HistoryForTriple(ctx context.Context, learnerID, assessmentCode, contextID string) ([]models.MalpracticeEnforcement, error) {
	var history []models.MalpracticeEnforcement
	for _, e := range m.enforcements {
		if e.LearnerID == learnerID && e.AssessmentCode == assessmentCode && e.ContextID == contextID {
			history = append(history, e)
		}
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].ID > history[j].ID
	})
	return history, nil
}

func (m *memoryMalpracticeRepo) CreateLevel(ctx context.Context, level *models.MalpracticeLevel) error {
	level.ID = m.nextID
	m.nextID++
	m.levels[level.ID] = *level
	return nil
}

func (m *memoryMalpracticeRepo) GetLevel(ctx context.Context, id uint) (models.MalpracticeLevel, error) {
	level, ok := m.levels[id]
	if !ok {
		return models.MalpracticeLevel{}, gorm.ErrRecordNotFound
	}
	return level, nil
}

func (m *memoryMalpracticeRepo) ListLevels(ctx context.Context) ([]models.MalpracticeLevel, error) {
	var levels []models.MalpracticeLevel
	for _, level := range m.levels {
		levels = append(levels, level)
	}
	sort.Slice(levels, func(i, j int) bool {
		return levels[i].Rank < levels[j].Rank
	})
	return levels, nil
}

type memoryRubricRepo struct {
	assessments map[uint]models.Assessment
	sections    map[uint]models.AssessmentSection
	options     map[uint]models.MarkingOption
	boundaries  map[uint]models.GradeBoundary
	nextID      uint
}

func newMemoryRubricRepo() *memoryRubricRepo {
	return &memoryRubricRepo{
		assessments: make(map[uint]models.Assessment),
		sections:    make(map[uint]models.AssessmentSection),
		options:     make(map[uint]models.MarkingOption),
		boundaries:  make(map[uint]models.GradeBoundary),
		nextID:      1,
	}
}

func (m *memoryRubricRepo) id() uint {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memoryRubricRepo) CreateAssessment(ctx context.Context, assessment *models.Assessment) error {
	assessment.ID = m.id()
	m.assessments[assessment.ID] = *assessment
	return nil
}

func (m *memoryRubricRepo) UpdateAssessment(ctx context.Context, assessment *models.Assessment) error {
	if _, ok := m.assessments[assessment.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.assessments[assessment.ID] = *assessment
	return nil
}

// assemble loads the assessment with its rubric relations attached.
func (m *memoryRubricRepo) assemble(id uint) (models.Assessment, bool) {
	assessment, ok := m.assessments[id]
	if !ok {
		return models.Assessment{}, false
	}

	assessment.Sections = nil
	assessment.Boundaries = nil
	for _, section := range m.sections {
		if section.AssessmentID != id {
			continue
		}
		section.Options = nil
		for _, option := range m.options {
			if option.SectionID == section.ID {
				section.Options = append(section.Options, option)
			}
		}
		assessment.Sections = append(assessment.Sections, section)
	}
	sort.Slice(assessment.Sections, func(i, j int) bool {
		return assessment.Sections[i].Position < assessment.Sections[j].Position
	})
	for _, boundary := range m.boundaries {
		if boundary.AssessmentID == id {
			assessment.Boundaries = append(assessment.Boundaries, boundary)
		}
	}
	sort.Slice(assessment.Boundaries, func(i, j int) bool {
		return assessment.Boundaries[i].MarksFrom < assessment.Boundaries[j].MarksFrom
	})

	return assessment, true
}

func (m *memoryRubricRepo) GetAssessment(ctx context.Context, id uint) (models.Assessment, error) {
	assessment, ok := m.assemble(id)
	if !ok {
		return models.Assessment{}, gorm.ErrRecordNotFound
	}
	return assessment, nil
}

func (m *memoryRubricRepo) GetAssessmentByCode(ctx context.Context, code string) (models.Assessment, error) {
	for id, assessment := range m.assessments {
		if assessment.Code == code {
			assembled, _ := m.assemble(id)
			return assembled, nil
		}
	}
	return models.Assessment{}, gorm.ErrRecordNotFound
}

func (m *memoryRubricRepo) ListAssessments(ctx context.Context) ([]models.Assessment, error) {
	var results []models.Assessment
	for id := range m.assessments {
		assembled, _ := m.assemble(id)
		results = append(results, assembled)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].ID < results[j].ID
	})
	return results, nil
}

func (m *memoryRubricRepo) UpdateTotalMarks(ctx context.Context, assessmentID uint, total float64) error {
	assessment, ok := m.assessments[assessmentID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	assessment.TotalMarks = total
	m.assessments[assessmentID] = assessment
	return nil
}

func (m *memoryRubricRepo) CreateSection(ctx context.Context, section *models.AssessmentSection) error {
	if _, ok := m.assessments[section.AssessmentID]; !ok {
		return gorm.ErrRecordNotFound
	}
	section.ID = m.id()
	m.sections[section.ID] = *section
	return nil
}

func (m *memoryRubricRepo) UpdateSection(ctx context.Context, section *models.AssessmentSection) error {
	if _, ok := m.sections[section.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.sections[section.ID] = *section
	return nil
}

func (m *memoryRubricRepo) DeleteSection(ctx context.Context, id uint) error {
	if _, ok := m.sections[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.sections, id)
	return nil
}

func (m *memoryRubricRepo) GetSection(ctx context.Context, id uint) (models.AssessmentSection, error) {
	section, ok := m.sections[id]
	if !ok {
		return models.AssessmentSection{}, gorm.ErrRecordNotFound
	}
	return section, nil
}

func (m *memoryRubricRepo) CreateOption(ctx context.Context, option *models.MarkingOption) error {
	if _, ok := m.sections[option.SectionID]; !ok {
		return gorm.ErrRecordNotFound
	}
	option.ID = m.id()
	m.options[option.ID] = *option
	return nil
}

func (m *memoryRubricRepo) UpdateOption(ctx context.Context, option *models.MarkingOption) error {
	if _, ok := m.options[option.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.options[option.ID] = *option
	return nil
}

func (m *memoryRubricRepo) DeleteOption(ctx context.Context, id uint) error {
	if _, ok := m.options[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.options, id)
	return nil
}

func (m *memoryRubricRepo) GetOption(ctx context.Context, id uint) (models.MarkingOption, error) {
	option, ok := m.options[id]
	if !ok {
		return models.MarkingOption{}, gorm.ErrRecordNotFound
	}
	return option, nil
}

func (m *memoryRubricRepo) CreateBoundary(ctx context.Context, boundary *models.GradeBoundary) error {
	if _, ok := m.assessments[boundary.AssessmentID]; !ok {
		return gorm.ErrRecordNotFound
	}
	boundary.ID = m.id()
	m.boundaries[boundary.ID] = *boundary
	return nil
}

func (m *memoryRubricRepo) UpdateBoundary(ctx context.Context, boundary *models.GradeBoundary) error {
	if _, ok := m.boundaries[boundary.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.boundaries[boundary.ID] = *boundary
	return nil
}

func (m *memoryRubricRepo) DeleteBoundary(ctx context.Context, id uint) error {
	if _, ok := m.boundaries[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.boundaries, id)
	return nil
}

func (m *memoryRubricRepo) GetBoundary(ctx context.Context, id uint) (models.GradeBoundary, error) {
	boundary, ok := m.boundaries[id]
	if !ok {
		return models.GradeBoundary{}, gorm.ErrRecordNotFound
	}
	return boundary, nil
}

func (m *memoryRubricRepo) BoundariesForAssessment(ctx context.Context, assessmentID uint) ([]models.GradeBoundary, error) {
	var results []models.GradeBoundary
	for _, boundary := range m.boundaries {
		if boundary.AssessmentID == assessmentID {
			results = append(results, boundary)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].MarksFrom < results[j].MarksFrom
	})
	return results, nil
}

type recorderStub struct {
	entries []ActivityEntry
}

func (r *recorderStub) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	r.entries = append(r.entries, entry)
	return dto.ActivityResponse{}, nil
}

type publisherStub struct {
	subjects []string
	payloads []interface{}
}

func (p *publisherStub) Publish(ctx context.Context, subject string, payload interface{}) {
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, payload)
}

type nopLocker struct{}

func (nopLocker) Acquire(ctx context.Context, key string) (func(), error) {
	return func() {}, nil
}

type memoryFileStore struct {
	uploads []string
}

func (m *memoryFileStore) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	m.uploads = append(m.uploads, name)
	return "https://files.test/" + name, nil
}
