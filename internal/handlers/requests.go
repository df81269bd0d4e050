package handlers

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/batepapo/internal/domain"
)

// CustomValidator implements Echo's Validator interface on top of the
// domain's go-playground/validator rules, so request DTOs report violations
// in the same per-field shape as domain inputs.
type CustomValidator struct{}

// NewValidator creates a new CustomValidator.
func NewValidator() *CustomValidator {
	return &CustomValidator{}
}

// Validate implements the echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return domain.ValidateStruct(i)
}

// RegisterRequest is the body of POST /participants.
type RegisterRequest struct {
	Name string `json:"name" form:"name"`
}

// MessageRequest is the body of POST /messages and PUT /messages/:id.
type MessageRequest struct {
	To   string             `json:"to" form:"to"`
	Text string             `json:"text" form:"text"`
	Type domain.MessageType `json:"type" form:"type"`
}

// Input converts the request into the domain input.
func (r MessageRequest) Input() domain.MessageInput {
	return domain.MessageInput{To: r.To, Text: r.Text, Type: r.Type}
}

// ListMessagesRequest holds the query of GET /messages.
type ListMessagesRequest struct {
	Limit *int `json:"limit" validate:"omitnil,gt=0"`
}

// limit returns the requested tail size, 0 meaning everything.
func (r ListMessagesRequest) limit() int {
	if r.Limit == nil {
		return 0
	}
	return *r.Limit
}

func bindListMessages(c echo.Context) (ListMessagesRequest, error) {
	var req ListMessagesRequest
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			verr := &domain.ValidationError{}
			verr.Add("limit", `"limit" must be a number`)
			return req, verr
		}
		req.Limit = &n
	}
	if err := c.Validate(&req); err != nil {
		return req, err
	}
	return req, nil
}
