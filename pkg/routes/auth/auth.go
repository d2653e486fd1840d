package auth

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/nightshade-io/nightshade/internal/repositories/user"
	authpkg "github.com/nightshade-io/nightshade/pkg/auth"
	"github.com/nightshade-io/nightshade/pkg/context"
	"github.com/nightshade-io/nightshade/pkg/models"
)

// Handler handles authentication API endpoints
type Handler struct {
	service  *authpkg.Service
	users    user.UserRepository
	validate *validator.Validate
	logger   ectologger.Logger
}

// NewHandler creates a new auth handler
func NewHandler(service *authpkg.Service, users user.UserRepository, logger ectologger.Logger) *Handler {
	return &Handler{
		service:  service,
		users:    users,
		validate: validator.New(),
		logger:   logger,
	}
}

// Register registers the public auth routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/login", h.Login)
	g.POST("/refresh", h.Refresh)
	g.POST("/logout", h.Logout)
}

// RegisterProtected registers routes that require an access token
func (h *Handler) RegisterProtected(g *echo.Group) {
	g.GET("/me", h.Me)
}

// Login exchanges credentials for an access and refresh token pair
// @Summary Log in
// @Description Exchange username and password for a token pair
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body models.LoginRequest true "Credentials"
// @Success 200 {object} models.TokenResponse
// @Failure 401 {object} httperror.HTTPError
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	u, err := h.users.GetByUsername(ctx, req.Username)
	if err != nil {
		return err
	}
	if u == nil {
		return httperror.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	if err := h.service.VerifyPassword(u.HashedPassword, req.Password); err != nil {
		h.logger.WithContext(ctx).WithField("username", req.Username).Warn("failed login attempt")
		return httperror.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	return h.issueTokens(c, u)
}

// Refresh rotates a refresh token into a new token pair
// @Summary Refresh tokens
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body models.RefreshRequest true "Refresh token"
// @Success 200 {object} models.TokenResponse
// @Failure 401 {object} httperror.HTTPError
// @Router /api/v1/auth/refresh [post]
func (h *Handler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.RefreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "refresh_token is required")
	}

	userID, err := h.service.ConsumeRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return httperror.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}

	u, err := h.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return httperror.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}

	return h.issueTokens(c, u)
}

// Logout revokes a refresh token
func (h *Handler) Logout(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.RefreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "refresh_token is required")
	}

	if err := h.service.RevokeRefreshToken(ctx, req.RefreshToken); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated user
// @Summary Current user
// @Tags Auth
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} httperror.HTTPError
// @Router /api/v1/auth/me [get]
func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()

	userID := context.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	u, err := h.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return httperror.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	return c.JSON(http.StatusOK, u)
}

func (h *Handler) issueTokens(c echo.Context, u *models.User) error {
	ctx := c.Request().Context()

	access, err := h.service.IssueAccessToken(u.ID, u.Username, u.Role)
	if err != nil {
		return err
	}
	refresh, err := h.service.IssueRefreshToken(ctx, u.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(h.service.AccessTTL().Seconds()),
	})
}
