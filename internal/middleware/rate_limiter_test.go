package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	e := echo.New()

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	}

	const limit = 5
	e.POST("/", handler, RateLimiter(limit))

	t.Run("allows requests within the limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()

		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("blocks requests exceeding the limit", func(t *testing.T) {
		clientIP := "192.0.2.2:1234"

		for i := 0; i < limit; i++ {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.RemoteAddr = clientIP
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, "request %d should be allowed", i+1)
		}

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = clientIP
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Contains(t, rec.Body.String(), "Too many requests")
	})

	t.Run("zero disables the limit", func(t *testing.T) {
		e := echo.New()
		e.POST("/", handler, RateLimiter(0))
		for i := 0; i < 20; i++ {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	e := echo.New()
	e.Use(echomw.RequestID())
	e.Use(Logger(base))
	e.GET("/ok", func(c echo.Context) error {
		FromContext(c.Request().Context()).Info("inside handler")
		return c.NoContent(http.StatusNoContent)
	})
	e.GET("/missing", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "nope")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	reqID := rec.Header().Get(echo.HeaderXRequestID)
	require.NotEmpty(t, reqID)
	assert.Contains(t, buf.String(), `"msg":"inside handler"`)
	assert.Contains(t, buf.String(), `"request_id":"`+reqID+`"`)

	buf.Reset()
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, buf.String(), `"status":404`)
}

func TestFromContext_Default(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, slog.Default(), FromContext(req.Context()))
}
