package handler

import (
	"errors"
	"mime/multipart"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/abhisheksingh810/marking-api/internal/dto"
	"github.com/abhisheksingh810/marking-api/internal/observability"
	"github.com/abhisheksingh810/marking-api/internal/service"
	"github.com/abhisheksingh810/marking-api/internal/utils"
)

// IntakeHandler wires submission intake HTTP routes.
type IntakeHandler struct {
	service service.IntakeService
	logger  zerolog.Logger
}

// NewIntakeHandler constructs the handler.
func NewIntakeHandler(service service.IntakeService, logger zerolog.Logger) *IntakeHandler {
	return &IntakeHandler{
		service: service,
		logger:  logger.With().Str("component", "intake_handler").Logger(),
	}
}

// Register attaches submission endpoints to the router group.
func (h *IntakeHandler) Register(router fiber.Router) {
	router.Post("", h.submit)
	router.Get("/eligibility", h.eligibility)
	router.Get("/attempts", h.attempts)
	router.Get("/:id", h.get)
}

func (h *IntakeHandler) submit(c *fiber.Ctx) error {
	payload := dto.IntakeRequest{
		LearnerID:      c.FormValue("learner_id"),
		ContextID:      c.FormValue("context_id"),
		AssessmentCode: c.FormValue("assessment_code"),
	}

	files := collectFiles(c)

	response, err := h.service.Submit(c.Context(), payload, files)
	if err != nil {
		return h.handleError(c, err)
	}

	if response.Accepted {
		observability.IntakeDecisions().WithLabelValues("accepted").Inc()
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission accepted", response)
	}

	observability.IntakeDecisions().WithLabelValues(response.Eligibility.BlockingType).Inc()
	return utils.SendErrorWithData(c, fiber.StatusConflict, "submission rejected", response)
}

func (h *IntakeHandler) eligibility(c *fiber.Ctx) error {
	learnerID, assessmentCode, contextID, err := tripleFromQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.CheckEligibility(c.Context(), learnerID, assessmentCode, contextID)
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "eligibility evaluated", result)
}

func (h *IntakeHandler) attempts(c *fiber.Ctx) error {
	learnerID, assessmentCode, contextID, err := tripleFromQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	attempts, err := h.service.ListAttempts(c.Context(), learnerID, assessmentCode, contextID)
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "attempts retrieved", attempts)
}

func (h *IntakeHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.GetSubmission(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSubmissionNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		}
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *IntakeHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrFilesRequired):
		return utils.SendError(c, fiber.StatusBadRequest, "at least one file is required")
	case errors.Is(err, service.ErrUnsupportedFileType):
		return utils.SendError(c, fiber.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, service.ErrAssessmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assessment not found")
	case errors.Is(err, service.ErrLockUnavailable):
		return utils.SendError(c, fiber.StatusConflict, "another submission for this assessment is in progress")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *IntakeHandler) internalError(c *fiber.Ctx, err error) error {
	h.logger.Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}

func collectFiles(c *fiber.Ctx) []*multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}

	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	return files
}

func tripleFromQuery(c *fiber.Ctx) (learnerID, assessmentCode, contextID string, err error) {
	learnerID = strings.TrimSpace(c.Query("learner_id"))
	assessmentCode = strings.TrimSpace(c.Query("assessment_code"))
	contextID = strings.TrimSpace(c.Query("context_id"))
	if learnerID == "" || assessmentCode == "" || contextID == "" {
		return "", "", "", errors.New("learner_id, assessment_code and context_id are required")
	}
	return learnerID, assessmentCode, contextID, nil
}
