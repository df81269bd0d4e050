package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/batepapo/internal/domain"
	"github.com/nfrund/batepapo/internal/middleware"
)

// respondError writes the HTTP form of a service error. Unexpected errors are
// logged and answered with a generic body.
func respondError(c echo.Context, err error) error {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusUnprocessableEntity, ValidationResponse{Errors: verr.Messages()})
	case errors.Is(err, domain.ErrUnknownSender):
		return c.JSON(http.StatusUnprocessableEntity, ValidationResponse{Errors: []string{err.Error()}})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Code: "not_found", Message: err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Code: "unauthorized", Message: err.Error()})
	case errors.Is(err, domain.ErrAlreadyTaken):
		return c.JSON(http.StatusConflict, ErrorResponse{Code: "already_taken", Message: err.Error()})
	case errors.Is(err, domain.ErrStoreUnavailable):
		middleware.FromContext(c.Request().Context()).Error("Store unavailable", "error", err)
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Code: "unavailable", Message: "Service temporarily unavailable"})
	}

	middleware.FromContext(c.Request().Context()).Error("Request failed", "error", err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "Internal server error"})
}

// respondBindError answers a failed c.Bind. A field of the wrong JSON type is
// reported like any other invalid field; a body that cannot be parsed stays a
// 400.
func respondBindError(c echo.Context, err error) error {
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) && ute.Field != "" {
		verr := &domain.ValidationError{}
		verr.Add(ute.Field, fmt.Sprintf("%q must be a %s", ute.Field, ute.Type.Kind()))
		return respondError(c, verr)
	}
	return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format.")
}
