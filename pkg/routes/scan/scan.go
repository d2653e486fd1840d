package scan

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/nightshade-io/nightshade/pkg/models"
	"github.com/nightshade-io/nightshade/pkg/tasks"
)

// Handler handles scan submission API endpoints
type Handler struct {
	engine   *tasks.Engine
	validate *validator.Validate
	logger   ectologger.Logger
}

// NewHandler creates a new scan handler
func NewHandler(engine *tasks.Engine, logger ectologger.Logger) *Handler {
	return &Handler{
		engine:   engine,
		validate: validator.New(),
		logger:   logger,
	}
}

// Register registers the scan submission routes. The tools group exposes one
// endpoint per scan kind, the tasks group a generic submit by kind.
func (h *Handler) Register(tools *echo.Group, taskGroup *echo.Group) {
	tools.POST("/email-scan", h.submitKind(models.TaskKindEmailScan))
	tools.POST("/phone-scan", h.submitKind(models.TaskKindPhoneScan))
	tools.POST("/social-scan", h.submitKind(models.TaskKindSocialScan))
	tools.POST("/image-scan", h.submitKind(models.TaskKindImageScan))
	taskGroup.POST("/:kind", h.Submit)
}

// Submit queues a scan task of the kind named in the path
// @Summary Submit a scan
// @Description Queue an asynchronous scan against a target
// @Tags Scans
// @Accept json
// @Produce json
// @Param kind path string true "Scan kind"
// @Param body body models.SubmitScanRequest true "Scan request"
// @Success 202 {object} models.Task
// @Failure 400 {object} httperror.HTTPError
// @Router /api/v1/tasks/{kind} [post]
func (h *Handler) Submit(c echo.Context) error {
	return h.submit(c, models.TaskKind(c.Param("kind")))
}

func (h *Handler) submitKind(kind models.TaskKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		return h.submit(c, kind)
	}
}

func (h *Handler) submit(c echo.Context, kind models.TaskKind) error {
	ctx := c.Request().Context()

	var req models.SubmitScanRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "target is required")
	}

	task, err := h.engine.Submit(ctx, kind, req)
	if err != nil {
		if errors.Is(err, tasks.ErrInvalidTaskKind) {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown scan kind %q", kind)
		}
		return err
	}

	return c.JSON(http.StatusAccepted, task)
}
