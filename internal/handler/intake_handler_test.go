package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/abhisheksingh810/marking-api/internal/config"
	"github.com/abhisheksingh810/marking-api/internal/dto"
	"github.com/abhisheksingh810/marking-api/internal/handler"
	"github.com/abhisheksingh810/marking-api/internal/models"
	"github.com/abhisheksingh810/marking-api/internal/repository"
	"github.com/abhisheksingh810/marking-api/internal/router"
	"github.com/abhisheksingh810/marking-api/internal/service"
)

type testUploader struct{}

func (u *testUploader) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	return "https://files.test/" + name, nil
}

type testLocker struct{}

func (l *testLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	return setupAppWithActor(t, "marker-7", "admin")
}

// setupLearnerApp authenticates every request as a learner, for exercising
// the role guards on the marker and admin route groups.
func setupLearnerApp(t *testing.T) (*fiber.App, *gorm.DB) {
	return setupAppWithActor(t, "learner-42", "learner")
}

func setupAppWithActor(t *testing.T, actorID, role string) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Assessment{},
		&models.AssessmentSection{},
		&models.MarkingOption{},
		&models.GradeBoundary{},
		&models.Submission{},
		&models.SubmissionFile{},
		&models.MarkingAssignment{},
		&models.Grade{},
		&models.SectionMark{},
		&models.MalpracticeLevel{},
		&models.MalpracticeEnforcement{},
		&models.ActivityLog{},
	))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	submissionRepo := repository.NewSubmissionRepository(db)
	markingRepo := repository.NewMarkingRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	rubricRepo := repository.NewRubricRepository(db)
	malpracticeRepo := repository.NewMalpracticeRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	events := service.NewNatsPublisher(nil, "marking", logger)
	activityService := service.NewActivityService(activityRepo, logger)
	eligibilityService := service.NewEligibilityService(submissionRepo, malpracticeRepo, logger)
	gradingService := service.NewGradingService(rubricRepo, gradeRepo, submissionRepo, markingRepo, validate, activityService, logger)
	rubricService := service.NewRubricService(rubricRepo, gradingService, validate, logger)
	markingService := service.NewMarkingService(markingRepo, submissionRepo, gradeRepo, validate, activityService, events, logger)
	malpracticeService := service.NewMalpracticeService(malpracticeRepo, submissionRepo, validate, activityService, events, logger)
	intakeService := service.NewIntakeService(submissionRepo, markingRepo, rubricRepo, eligibilityService, &testLocker{}, &testUploader{}, validate, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "marking-api-test"}, router.Dependencies{
		IntakeHandler:      handler.NewIntakeHandler(intakeService, logger),
		MarkingHandler:     handler.NewMarkingHandler(markingService, logger),
		GradingHandler:     handler.NewGradingHandler(gradingService, logger),
		RubricHandler:      handler.NewRubricHandler(rubricService, logger),
		MalpracticeHandler: handler.NewMalpracticeHandler(malpracticeService, logger),
		ActivityHandler:    handler.NewActivityHandler(activityService, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("actor_id", actorID)
			c.Locals("actor_role", role)
			return c.Next()
		},
	})

	return app, db
}

func seedAssessment(t *testing.T, db *gorm.DB) models.Assessment {
	t.Helper()

	assessment := models.Assessment{Code: "BTEC-IT-U1", Title: "Unit 1: IT Systems", TotalMarks: 20, Active: true}
	require.NoError(t, db.Create(&assessment).Error)

	for i, title := range []string{"Understanding", "Application"} {
		section := models.AssessmentSection{AssessmentID: assessment.ID, Title: title, Position: i + 1, Active: true}
		require.NoError(t, db.Create(&section).Error)
		for j, marks := range []float64{0, 5, 10} {
			require.NoError(t, db.Create(&models.MarkingOption{
				SectionID: section.ID,
				Label:     fmt.Sprintf("Band %d", j+1),
				Marks:     marks,
				Position:  j + 1,
				Active:    true,
			}).Error)
		}
	}

	boundaries := []models.GradeBoundary{
		{AssessmentID: assessment.ID, Label: "Fail", MarksFrom: 0, MarksTo: 9},
		{AssessmentID: assessment.ID, Label: "C", MarksFrom: 10, MarksTo: 14, Pass: true},
		{AssessmentID: assessment.ID, Label: "B", MarksFrom: 15, MarksTo: 18, Pass: true},
		{AssessmentID: assessment.ID, Label: "A", MarksFrom: 19, MarksTo: 20, Pass: true},
	}
	for i := range boundaries {
		require.NoError(t, db.Create(&boundaries[i]).Error)
	}

	return assessment
}

func submitRequest(t *testing.T, fileNames ...string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("learner_id", "learner-42"))
	require.NoError(t, writer.WriteField("context_id", "course-7"))
	require.NoError(t, writer.WriteField("assessment_code", "BTEC-IT-U1"))
	for _, name := range fileNames {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("plain text evidence for " + name))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/api/v1/submissions", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestIntakeHandlerAcceptsFirstAttempt(t *testing.T) {
	app, db := setupApp(t)
	seedAssessment(t, db)

	resp, err := app.Test(submitRequest(t, "report.txt", "notes.txt"))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body struct {
		Success bool               `json:"success"`
		Data    dto.IntakeResponse `json:"data"`
		Message string             `json:"message"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, "submission accepted", body.Message)
	require.True(t, body.Data.Accepted)
	require.NotNil(t, body.Data.Submission)
	require.Equal(t, 1, body.Data.Submission.AttemptNumber)
	require.Equal(t, 2, body.Data.Submission.FileCount)
	require.Equal(t, "waiting", body.Data.Submission.MarkingStatus)
	require.NotNil(t, body.Data.Submission.SubmittedAt)
}

func TestIntakeHandlerRejectsWhilePreviousAttemptUnmarked(t *testing.T) {
	app, db := setupApp(t)
	seedAssessment(t, db)

	resp, err := app.Test(submitRequest(t, "report.txt"))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	resp, err = app.Test(submitRequest(t, "report-v2.txt"))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var body struct {
		Success bool               `json:"success"`
		Data    dto.IntakeResponse `json:"data"`
		Message string             `json:"message"`
	}
	decodeResponse(t, resp, &body)
	// Rejections use the error envelope but keep the eligibility payload.
	require.False(t, body.Success)
	require.Equal(t, "submission rejected", body.Message)
	require.False(t, body.Data.Accepted)
	require.Nil(t, body.Data.Submission)
	require.Equal(t, "unmarked_submission", body.Data.Eligibility.BlockingType)
}

func TestIntakeHandlerRejectsSubmissionWithoutFiles(t *testing.T) {
	app, db := setupApp(t)
	seedAssessment(t, db)

	resp, err := app.Test(submitRequest(t))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	decodeResponse(t, resp, &body)
	require.False(t, body.Success)
	require.Equal(t, "at least one file is required", body.Message)
}

func TestIntakeHandlerRejectsUnknownAssessment(t *testing.T) {
	app, _ := setupApp(t)

	resp, err := app.Test(submitRequest(t, "report.txt"))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestIntakeHandlerEligibilityAndAttempts(t *testing.T) {
	app, db := setupApp(t)
	seedAssessment(t, db)

	resp, err := app.Test(submitRequest(t, "report.txt"))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	query := "learner_id=learner-42&assessment_code=BTEC-IT-U1&context_id=course-7"
	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/submissions/eligibility?"+query, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var eligibility struct {
		Data dto.EligibilityResult `json:"data"`
	}
	decodeResponse(t, resp, &eligibility)
	require.False(t, eligibility.Data.Eligible)
	require.Equal(t, "unmarked_submission", eligibility.Data.BlockingType)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/submissions/attempts?"+query, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var attempts struct {
		Data []dto.SubmissionResponse `json:"data"`
	}
	decodeResponse(t, resp, &attempts)
	require.Len(t, attempts.Data, 1)
	require.Equal(t, 1, attempts.Data[0].AttemptNumber)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/submissions/attempts?learner_id=learner-42", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}
