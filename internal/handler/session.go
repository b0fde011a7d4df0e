package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/moviegen/internal/middleware"
	"github.com/makeasinger/moviegen/internal/model"
	"github.com/makeasinger/moviegen/internal/service"
	"github.com/makeasinger/moviegen/pkg/response"
)

type SessionHandler struct {
	service   *service.SessionService
	validator *validator.Validate
}

func NewSessionHandler(svc *service.SessionService, v *validator.Validate) *SessionHandler {
	return &SessionHandler{
		service:   svc,
		validator: v,
	}
}

// Create handles POST /api/sessions
// @Summary      Create generation session
// @Description  Start a new session with an empty prompt form
// @Tags         Sessions
// @Produce      json
// @Success      201 {object} model.StateView
// @Failure      401 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sessions [post]
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	sess := h.service.Create(c.UserContext(), middleware.GetUserID(c))
	return response.Created(c, sess.View())
}

// Get handles GET /api/sessions/:id
// @Summary      Get session state
// @Tags         Sessions
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} model.StateView
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sessions/{id} [get]
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	sess, err := h.service.Get(middleware.GetUserID(c), c.Params("id"))
	if err != nil {
		return sessionError(c, err)
	}
	return response.OK(c, sess.View())
}

// Generate handles POST /api/sessions/:id/generate
// @Summary      Generate a movie concept
// @Description  Submit the movie idea. Returns the pending view unless wait=true,
// @Description  in which case the response carries the settled state.
// @Tags         Sessions
// @Accept       json
// @Produce      json
// @Param        id path string true "Session ID"
// @Param        wait query bool false "Block until the generation settles"
// @Param        request body model.GenerateRequest true "Generate request"
// @Success      200 {object} model.StateView
// @Success      202 {object} model.StateView
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sessions/{id}/generate [post]
func (h *SessionHandler) Generate(c *fiber.Ctx) error {
	var req model.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	view, err := h.service.Generate(c.UserContext(), middleware.GetUserID(c), c.Params("id"), *req.Prompt, c.QueryBool("wait"))
	if err != nil {
		return sessionError(c, err)
	}

	if view.Phase == model.PhasePending {
		return response.Accepted(c, view)
	}
	return response.OK(c, view)
}

// Reset handles POST /api/sessions/:id/reset
// @Summary      Start over
// @Description  Clear the prompt and concept and return to the empty form
// @Tags         Sessions
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} model.StateView
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sessions/{id}/reset [post]
func (h *SessionHandler) Reset(c *fiber.Ctx) error {
	view, err := h.service.Reset(c.UserContext(), middleware.GetUserID(c), c.Params("id"))
	if err != nil {
		return sessionError(c, err)
	}
	return response.OK(c, view)
}

// Delete handles DELETE /api/sessions/:id
// @Summary      Delete session
// @Tags         Sessions
// @Param        id path string true "Session ID"
// @Success      204
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sessions/{id} [delete]
func (h *SessionHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), middleware.GetUserID(c), c.Params("id")); err != nil {
		return sessionError(c, err)
	}
	return response.NoContent(c)
}

// Notifications handles GET /api/sessions/:id/notifications
// @Summary      List session notifications
// @Tags         Sessions
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} model.NotificationsResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sessions/{id}/notifications [get]
func (h *SessionHandler) Notifications(c *fiber.Ctx) error {
	sess, err := h.service.Get(middleware.GetUserID(c), c.Params("id"))
	if err != nil {
		return sessionError(c, err)
	}
	return response.OK(c, model.NotificationsResponse{
		SessionID:     sess.ID,
		Notifications: sess.Notifications(),
	})
}

func sessionError(c *fiber.Ctx, err error) error {
	if errors.Is(err, service.ErrSessionNotFound) {
		return response.NotFound(c, "Session not found")
	}
	return response.ServiceError(c, err.Error())
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
