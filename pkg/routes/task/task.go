package task

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/nightshade-io/nightshade/pkg/models"
	"github.com/nightshade-io/nightshade/pkg/tasks"
)

// Handler handles task query and cancellation API endpoints
type Handler struct {
	engine *tasks.Engine
	logger ectologger.Logger
}

// NewHandler creates a new task handler
func NewHandler(engine *tasks.Engine, logger ectologger.Logger) *Handler {
	return &Handler{
		engine: engine,
		logger: logger,
	}
}

// Register registers the task routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/cancel", h.Cancel)
}

// List lists tasks, newest first
// @Summary List tasks
// @Tags Tasks
// @Produce json
// @Param type query string false "Filter by scan kind"
// @Param status query string false "Filter by status"
// @Param investigation_id query string false "Filter by investigation"
// @Success 200 {object} models.TaskListResponse
// @Router /api/v1/tasks [get]
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()

	filter := tasks.Filter{
		Kind:            models.TaskKind(c.QueryParam("type")),
		Status:          models.TaskStatus(c.QueryParam("status")),
		InvestigationID: c.QueryParam("investigation_id"),
	}

	items, err := h.engine.List(ctx, filter)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.TaskListResponse{
		Items:      items,
		TotalCount: len(items),
	})
}

// Get returns a single task by id
// @Summary Get a task
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} models.Task
// @Failure 404 {object} httperror.HTTPError
// @Router /api/v1/tasks/{id} [get]
func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	t, err := h.engine.Get(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, tasks.ErrTaskNotFound) {
			return httperror.NewHTTPError(http.StatusNotFound, "task not found")
		}
		return err
	}

	return c.JSON(http.StatusOK, t)
}

// Cancel requests cancellation of a pending or running task
// @Summary Cancel a task
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} models.Task
// @Failure 400 {object} httperror.HTTPError
// @Failure 404 {object} httperror.HTTPError
// @Router /api/v1/tasks/{id}/cancel [post]
func (h *Handler) Cancel(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	if err := h.engine.Cancel(ctx, id); err != nil {
		if errors.Is(err, tasks.ErrTaskNotFound) {
			return httperror.NewHTTPError(http.StatusNotFound, "task not found")
		}
		if errors.Is(err, tasks.ErrInvalidTransition) {
			return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return err
	}

	t, err := h.engine.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, t)
}
