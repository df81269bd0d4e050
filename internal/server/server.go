package server

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nfrund/batepapo/internal/app"
	"github.com/nfrund/batepapo/internal/handlers"
	appmiddleware "github.com/nfrund/batepapo/internal/middleware"
	"github.com/nfrund/batepapo/internal/rendering"
)

// sessionMaxAge keeps the remembered name for a week.
const sessionMaxAge = 86400 * 7

// Server holds the dependencies for the HTTP server.
type Server struct {
	E      *echo.Echo
	deps   *app.Dependencies
	logger *slog.Logger
}

// New creates a new Server instance with its middleware stack installed.
// Routes are added by RegisterRoutes.
func New(deps *app.Dependencies) *Server {
	cfg := deps.Config
	logger := deps.Logger.With("service", "server")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewValidator()
	e.Renderer = rendering.NewRenderer()
	setupErrorHandling(e)

	e.Use(middleware.RequestID())
	e.Use(appmiddleware.Logger(deps.Logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowOrigins,
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			appmiddleware.UserHeader,
		},
	}))

	// Configure and use session middleware
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	e.Use(session.Middleware(store))
	e.Use(appmiddleware.Identity())

	return &Server{E: e, deps: deps, logger: logger}
}

// setupErrorHandling installs an error handler that logs unhandled errors
// with a stack trace before delegating to echo's default response.
func setupErrorHandling(e *echo.Echo) {
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if !errors.As(err, &he) {
			appmiddleware.FromContext(c.Request().Context()).Error("Internal Server Error (Unhandled)",
				"error", err.Error(),
				"method", c.Request().Method,
				"path", c.Path(),
				"stack_trace", string(debug.Stack()),
			)
		}
		e.DefaultHTTPErrorHandler(err, c)
	}
}
