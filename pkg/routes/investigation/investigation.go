package investigation

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	invrepo "github.com/nightshade-io/nightshade/internal/repositories/investigation"
	"github.com/nightshade-io/nightshade/pkg/context"
	"github.com/nightshade-io/nightshade/pkg/models"
)

// Handler handles investigation API endpoints
type Handler struct {
	repo     invrepo.InvestigationRepository
	validate *validator.Validate
	logger   ectologger.Logger
}

// NewHandler creates a new investigation handler
func NewHandler(repo invrepo.InvestigationRepository, logger ectologger.Logger) *Handler {
	return &Handler{
		repo:     repo,
		validate: validator.New(),
		logger:   logger,
	}
}

// Register registers the investigation routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

// Create creates a new investigation
// @Summary Create an investigation
// @Tags Investigations
// @Accept json
// @Produce json
// @Param body body models.CreateInvestigationRequest true "Investigation"
// @Success 201 {object} models.Investigation
// @Failure 400 {object} httperror.HTTPError
// @Router /api/v1/investigations [post]
func (h *Handler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.CreateInvestigationRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	inv, err := h.repo.Create(ctx, context.GetUserID(ctx), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, inv)
}

// List lists investigations with optional filters
// @Summary List investigations
// @Tags Investigations
// @Produce json
// @Param status query string false "Filter by status"
// @Param priority query string false "Filter by priority"
// @Param search query string false "Title search"
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} models.InvestigationListResponse
// @Router /api/v1/investigations [get]
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()

	filter := models.InvestigationFilter{
		Status:   c.QueryParam("status"),
		Priority: c.QueryParam("priority"),
		Search:   c.QueryParam("search"),
	}

	page := 1
	pageSize := 20
	binder := echo.QueryParamsBinder(c).
		Int("page", &page).
		Int("page_size", &pageSize)
	if err := binder.BindError(); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "page and page_size must be integers")
	}

	items, total, err := h.repo.List(ctx, filter, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.InvestigationListResponse{
		Items:      items,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	})
}

// Get returns a single investigation
func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	inv, err := h.repo.GetByID(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if inv == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "investigation not found")
	}

	return c.JSON(http.StatusOK, inv)
}

// Update updates an investigation
func (h *Handler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.UpdateInvestigationRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	inv, err := h.repo.Update(ctx, c.Param("id"), req)
	if err != nil {
		return err
	}
	if inv == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "investigation not found")
	}

	return c.JSON(http.StatusOK, inv)
}

// Delete soft deletes an investigation
func (h *Handler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	existing, err := h.repo.GetByID(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if existing == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "investigation not found")
	}

	if err := h.repo.Delete(ctx, c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
