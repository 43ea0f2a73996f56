package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/abhisheksingh810/marking-api/internal/dto"
	"github.com/abhisheksingh810/marking-api/internal/service"
	"github.com/abhisheksingh810/marking-api/internal/utils"
)

// MalpracticeHandler wires malpractice enforcement HTTP routes.
type MalpracticeHandler struct {
	service service.MalpracticeService
	logger  zerolog.Logger
}

// NewMalpracticeHandler constructs the handler.
func NewMalpracticeHandler(service service.MalpracticeService, logger zerolog.Logger) *MalpracticeHandler {
	return &MalpracticeHandler{
		service: service,
		logger:  logger.With().Str("component", "malpractice_handler").Logger(),
	}
}

// Register attaches malpractice endpoints to the router group.
func (h *MalpracticeHandler) Register(router fiber.Router) {
	router.Post("/submissions/:id/findings", h.recordFinding)
	router.Get("/active", h.active)
	router.Get("/history", h.history)
	router.Get("/levels", h.levels)
	router.Post("/levels", h.createLevel)
}

func (h *MalpracticeHandler) recordFinding(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	payload := dto.FindingRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	enforcement, err := h.service.RecordFinding(c.Context(), id, payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "malpractice finding recorded", enforcement)
}

func (h *MalpracticeHandler) active(c *fiber.Ctx) error {
	learnerID, assessmentCode, contextID, err := tripleFromQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	enforcement, err := h.service.ActiveEnforcement(c.Context(), learnerID, assessmentCode, contextID)
	if err != nil {
		return h.handleError(c, err)
	}

	if enforcement == nil {
		return utils.SendSuccess(c, "no active enforcement", nil)
	}

	return utils.SendSuccess(c, "active enforcement retrieved", enforcement)
}

func (h *MalpracticeHandler) history(c *fiber.Ctx) error {
	learnerID, assessmentCode, contextID, err := tripleFromQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	history, err := h.service.History(c.Context(), learnerID, assessmentCode, contextID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "enforcement history retrieved", history)
}

func (h *MalpracticeHandler) levels(c *fiber.Ctx) error {
	levels, err := h.service.Levels(c.Context())
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "malpractice levels retrieved", levels)
}

type createLevelRequest struct {
	Rank               int    `json:"rank"`
	Label              string `json:"label"`
	DefaultMaxAttempts *int   `json:"default_max_attempts"`
}

func (h *MalpracticeHandler) createLevel(c *fiber.Ctx) error {
	payload := createLevelRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if payload.Rank <= 0 || strings.TrimSpace(payload.Label) == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "rank and label are required")
	}

	level, err := h.service.CreateLevel(c.Context(), payload.Rank, payload.Label, payload.DefaultMaxAttempts)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "malpractice level created", level)
}

func (h *MalpracticeHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrLevelNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "malpractice level not found")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
