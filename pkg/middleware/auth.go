package middleware

import (
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/nightshade-io/nightshade/pkg/auth"
	"github.com/nightshade-io/nightshade/pkg/context"
)

// Auth enforces a Bearer access token and stores the authenticated user in
// the request context.
func Auth(service *auth.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				return httperror.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims, err := service.ValidateAccessToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				return httperror.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			ctx := c.Request().Context()
			ctx = context.SetUserID(ctx, claims.Subject)
			ctx = context.SetUsername(ctx, claims.Username)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
