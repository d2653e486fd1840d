package profile

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	invrepo "github.com/nightshade-io/nightshade/internal/repositories/investigation"
	profilerepo "github.com/nightshade-io/nightshade/internal/repositories/profile"
	"github.com/nightshade-io/nightshade/pkg/models"
)

// Handler handles profile API endpoints
type Handler struct {
	profiles       profilerepo.ProfileRepository
	investigations invrepo.InvestigationRepository
	validate       *validator.Validate
	logger         ectologger.Logger
}

// NewHandler creates a new profile handler
func NewHandler(profiles profilerepo.ProfileRepository, investigations invrepo.InvestigationRepository, logger ectologger.Logger) *Handler {
	return &Handler{
		profiles:       profiles,
		investigations: investigations,
		validate:       validator.New(),
		logger:         logger,
	}
}

// Register registers the profile routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

// Create creates a profile inside an investigation
// @Summary Create a profile
// @Tags Profiles
// @Accept json
// @Produce json
// @Param body body models.CreateProfileRequest true "Profile"
// @Success 201 {object} models.Profile
// @Failure 400 {object} httperror.HTTPError
// @Failure 404 {object} httperror.HTTPError
// @Router /api/v1/profiles [post]
func (h *Handler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.CreateProfileRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	inv, err := h.investigations.GetByID(ctx, req.InvestigationID)
	if err != nil {
		return err
	}
	if inv == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "investigation not found")
	}

	p, err := h.profiles.Create(ctx, req)
	if err != nil {
		return err
	}

	if err := h.investigations.IncrementProfileCount(ctx, req.InvestigationID, 1); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("failed to bump investigation profile count")
	}

	return c.JSON(http.StatusCreated, p)
}

// List lists profiles scoped to an investigation or matching a search term
// @Summary List profiles
// @Tags Profiles
// @Produce json
// @Param investigation_id query string false "Investigation ID"
// @Param search query string false "Match against name, email, or phone"
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} models.ProfileListResponse
// @Router /api/v1/profiles [get]
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()

	filter := profilerepo.Filter{
		InvestigationID: c.QueryParam("investigation_id"),
		Search:          c.QueryParam("search"),
	}
	if filter.InvestigationID == "" && filter.Search == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "investigation_id or search is required")
	}

	page := 1
	pageSize := 20
	binder := echo.QueryParamsBinder(c).
		Int("page", &page).
		Int("page_size", &pageSize)
	if err := binder.BindError(); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "page and page_size must be integers")
	}

	items, total, err := h.profiles.List(ctx, filter, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.ProfileListResponse{
		Items:      items,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	})
}

// Get returns a single profile
func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	p, err := h.profiles.GetByID(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if p == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "profile not found")
	}

	return c.JSON(http.StatusOK, p)
}

// Update updates a profile
func (h *Handler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	p, err := h.profiles.Update(ctx, c.Param("id"), req)
	if err != nil {
		return err
	}
	if p == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "profile not found")
	}

	return c.JSON(http.StatusOK, p)
}

// Delete soft deletes a profile
func (h *Handler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	p, err := h.profiles.GetByID(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if p == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "profile not found")
	}

	if err := h.profiles.Delete(ctx, c.Param("id")); err != nil {
		return err
	}

	if err := h.investigations.IncrementProfileCount(ctx, p.InvestigationID, -1); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("failed to decrement investigation profile count")
	}

	return c.NoContent(http.StatusNoContent)
}
