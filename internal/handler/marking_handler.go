package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/abhisheksingh810/marking-api/internal/dto"
	"github.com/abhisheksingh810/marking-api/internal/observability"
	"github.com/abhisheksingh810/marking-api/internal/service"
	"github.com/abhisheksingh810/marking-api/internal/utils"
)

// MarkingHandler wires marking assignment HTTP routes.
type MarkingHandler struct {
	service service.MarkingService
	logger  zerolog.Logger
}

// NewMarkingHandler constructs the handler.
func NewMarkingHandler(service service.MarkingService, logger zerolog.Logger) *MarkingHandler {
	return &MarkingHandler{
		service: service,
		logger:  logger.With().Str("component", "marking_handler").Logger(),
	}
}

// Register attaches marking endpoints to the router group.
func (h *MarkingHandler) Register(router fiber.Router) {
	router.Get("/queue", h.queue)
	router.Post("/:id/assign", h.assign)
	router.Delete("/:id/assign", h.unassign)
	router.Patch("/:id/status", h.setStatus)
	router.Post("/:id/skip", h.skip)
	router.Post("/:id/release", h.release)
}

// queue serves the marking queue in two modes: page/limit for the dashboard
// and cursor/limit for clients walking the full backlog.
func (h *MarkingHandler) queue(c *fiber.Ctx) error {
	req := dto.MarkingQueueRequest{
		MarkerID:       strings.TrimSpace(c.Query("marker_id")),
		Status:         strings.TrimSpace(c.Query("status")),
		AssessmentCode: strings.TrimSpace(c.Query("assessment_code")),
		Cursor:         strings.TrimSpace(c.Query("cursor")),
	}

	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	req.Page = page
	req.Limit = limit

	_, cursorMode := c.Queries()["cursor"]
	if cursorMode {
		response, err := h.service.QueueCursor(c.Context(), req)
		if err != nil {
			return h.handleError(c, err)
		}
		return utils.SendSuccess(c, "marking queue retrieved", response)
	}

	response, err := h.service.QueuePage(c.Context(), req)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "marking queue retrieved", response)
}

func (h *MarkingHandler) assign(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	payload := dto.AssignMarkerRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.AssignMarker(c.Context(), id, payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	observability.MarkingStatusChanges().WithLabelValues(submission.MarkingStatus).Inc()
	return utils.SendSuccess(c, "marker assigned", submission)
}

func (h *MarkingHandler) unassign(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.UnassignMarker(c.Context(), id, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "marker unassigned", submission)
}

func (h *MarkingHandler) setStatus(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	payload := dto.SetStatusRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.SetStatus(c.Context(), id, payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	observability.MarkingStatusChanges().WithLabelValues(submission.MarkingStatus).Inc()
	return utils.SendSuccess(c, "marking status updated", submission)
}

func (h *MarkingHandler) skip(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	payload := dto.SkipRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.Skip(c.Context(), id, payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	observability.MarkingStatusChanges().WithLabelValues(submission.MarkingStatus).Inc()
	return utils.SendSuccess(c, "marking skipped", submission)
}

func (h *MarkingHandler) release(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.Release(c.Context(), id, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	if submission.Grade != nil {
		passLabel := "false"
		if submission.Grade.Pass {
			passLabel = "true"
		}
		observability.GradesReleased().WithLabelValues(passLabel).Inc()
	}

	return utils.SendSuccess(c, "grade released", submission)
}

func (h *MarkingHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrInvalidStatus):
		return utils.SendError(c, fiber.StatusBadRequest, "invalid marking status")
	case errors.Is(err, service.ErrGradeRequired):
		return utils.SendError(c, fiber.StatusConflict, "a grade must be recorded before release")
	case errors.Is(err, service.ErrInvalidCursor):
		return utils.SendError(c, fiber.StatusBadRequest, "invalid cursor")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
