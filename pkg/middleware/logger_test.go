package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightshade-io/nightshade/pkg/context"
)

func captureLogger(messages *[]ectologger.EctoLogMessage) ectologger.Logger {
	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		*messages = append(*messages, msg)
	})
}

func requestLine(t *testing.T, messages []ectologger.EctoLogMessage) ectologger.EctoLogMessage {
	t.Helper()
	for _, msg := range messages {
		if msg.Message == "Request" {
			return msg
		}
	}
	t.Fatal("no request log line captured")
	return ectologger.EctoLogMessage{}
}

func TestLogger_IncludesIdentityFromContext(t *testing.T) {
	var messages []ectologger.EctoLogMessage

	e := echo.New()
	e.Use(Logger(captureLogger(&messages)))
	e.GET("/graph", func(c echo.Context) error {
		ctx := c.Request().Context()
		ctx = context.SetUserID(ctx, "user-1")
		ctx = context.SetUsername(ctx, "alice")
		ctx = context.SetInvestigationID(ctx, "inv-1")
		c.SetRequest(c.Request().WithContext(ctx))
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/graph", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	line := requestLine(t, messages)
	assert.Equal(t, "user-1", line.Fields["user_id"])
	assert.Equal(t, "alice", line.Fields["username"])
	assert.Equal(t, "inv-1", line.Fields["investigation_id"])
	assert.Equal(t, http.MethodGet, line.Fields["method"])
}

func TestLogger_OmitsIdentityWhenAnonymous(t *testing.T) {
	var messages []ectologger.EctoLogMessage

	e := echo.New()
	e.Use(Logger(captureLogger(&messages)))
	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	line := requestLine(t, messages)
	assert.NotContains(t, line.Fields, "user_id")
	assert.NotContains(t, line.Fields, "username")
	assert.NotContains(t, line.Fields, "investigation_id")
}
