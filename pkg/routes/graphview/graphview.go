package graphview

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/nightshade-io/nightshade/pkg/context"
	"github.com/nightshade-io/nightshade/pkg/graph"
)

// Handler handles graph visualization API endpoints
type Handler struct {
	assembler *graph.Assembler
	logger    ectologger.Logger
}

// NewHandler creates a graph view handler that resolves the assembler from
// the DI container per request
func NewHandler(logger ectologger.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

// NewHandlerWithAssembler creates a graph view handler pinned to a specific
// assembler, bypassing the DI container
func NewHandlerWithAssembler(assembler *graph.Assembler, logger ectologger.Logger) *Handler {
	return &Handler{
		assembler: assembler,
		logger:    logger,
	}
}

// Register registers the graph routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.InvestigationGraph)
	g.GET("/entity/:id", h.EntityGraph)
}

func (h *Handler) requireAssembler(c echo.Context) (*graph.Assembler, error) {
	// Prefer the explicitly provided assembler (useful for tests), falling
	// back to DI-from-context.
	if h != nil && h.assembler != nil {
		return h.assembler, nil
	}

	ctx := c.Request().Context()
	_, asm, err := ectoinject.GetContext[*graph.Assembler](ctx)
	if err != nil || asm == nil {
		// 503 because the graph database is an optional dependency.
		return nil, httperror.NewHTTPError(http.StatusServiceUnavailable, "graph assembler unavailable")
	}
	return asm, nil
}

// InvestigationGraph returns the node-link graph for an investigation, or a
// sample of the whole graph when no investigation is given
// @Summary Investigation graph
// @Tags Graph
// @Produce json
// @Param investigation_id query string false "Investigation ID"
// @Param limit query int false "Maximum nodes (default 100, max 500)"
// @Success 200 {object} graph.Graph
// @Failure 502 {object} httperror.HTTPError
// @Router /api/v1/graph [get]
func (h *Handler) InvestigationGraph(c echo.Context) error {
	ctx := c.Request().Context()

	asm, err := h.requireAssembler(c)
	if err != nil {
		return err
	}

	req := graph.BuildRequest{
		InvestigationID: c.QueryParam("investigation_id"),
	}
	if err := echo.QueryParamsBinder(c).Int("limit", &req.Limit).BindError(); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
	}

	if req.InvestigationID != "" {
		ctx = context.SetInvestigationID(ctx, req.InvestigationID)
		c.SetRequest(c.Request().WithContext(ctx))
	}

	result, err := asm.Build(ctx, req)
	if err != nil {
		return h.mapError(err)
	}

	return c.JSON(http.StatusOK, result)
}

// EntityGraph returns the neighborhood around a single entity
// @Summary Entity neighborhood graph
// @Tags Graph
// @Produce json
// @Param id path string true "Entity ID"
// @Param depth query int false "Traversal depth (1-3, default 1)"
// @Param limit query int false "Maximum nodes (default 100, max 500)"
// @Success 200 {object} graph.Graph
// @Failure 502 {object} httperror.HTTPError
// @Router /api/v1/graph/entity/{id} [get]
func (h *Handler) EntityGraph(c echo.Context) error {
	ctx := c.Request().Context()

	asm, err := h.requireAssembler(c)
	if err != nil {
		return err
	}

	req := graph.BuildRequest{
		EntityID: c.Param("id"),
	}
	binder := echo.QueryParamsBinder(c).
		Int("depth", &req.Depth).
		Int("limit", &req.Limit)
	if err := binder.BindError(); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "depth and limit must be integers")
	}

	result, err := asm.Build(ctx, req)
	if err != nil {
		return h.mapError(err)
	}

	return c.JSON(http.StatusOK, result)
}

func (h *Handler) mapError(err error) error {
	if errors.Is(err, graph.ErrRepositoryUnavailable) {
		return httperror.NewHTTPError(http.StatusBadGateway, "graph database unavailable")
	}
	return err
}
