package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdentityServer(t *testing.T) *echo.Echo {
	t.Helper()

	e := echo.New()
	e.Use(session.Middleware(sessions.NewCookieStore([]byte("test-secret"))))
	e.Use(Identity())

	e.POST("/remember/:name", func(c echo.Context) error {
		if err := Remember(c, c.Param("name")); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	})
	e.GET("/whoami", func(c echo.Context) error {
		return c.String(http.StatusOK, User(c))
	})
	return e
}

func TestIdentity(t *testing.T) {
	e := newIdentityServer(t)

	t.Run("header wins", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(UserHeader, " ana ")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, "ana", rec.Body.String())
	})

	t.Run("anonymous caller", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, "", rec.Body.String())
	})

	t.Run("session fallback", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/remember/bia", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)

		cookies := rec.Result().Cookies()
		require.NotEmpty(t, cookies)

		req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, "bia", rec.Body.String())

		req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(UserHeader, "carol")
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, "carol", rec.Body.String())
	})
}

func TestIdentity_WithoutSessionMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(Identity())
	e.GET("/whoami", func(c echo.Context) error {
		return c.String(http.StatusOK, User(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", rec.Body.String())
}
