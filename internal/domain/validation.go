package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validatorInstance is a package-level validator instance.
// It caches struct information across calls.
var validatorInstance = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// Report fields by their wire name so messages match what clients send.
	validatorInstance.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// FieldError describes a single violated constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violated field of an input, not just the first.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages(), "; ")
}

// Messages returns the human-readable message of each violated field.
func (e *ValidationError) Messages() []string {
	out := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, f.Message)
	}
	return out
}

// Add records one more violation.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Err returns e as an error, or nil when nothing was recorded.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ValidateStruct runs the tag rules of any request struct and reports its
// violations the same way domain inputs do.
func ValidateStruct(v any) error {
	return validateStruct(v)
}

// validateStruct runs the tag rules on v and converts the result into a
// ValidationError listing all failures.
func validateStruct(v any) error {
	err := validatorInstance.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		out.Add(fe.Field(), fieldMessage(fe))
	}
	return out.Err()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%q is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%q must be one of [%s]", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "max":
		return fmt.Sprintf("%q length must be less than or equal to %s characters long", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%q must be greater than %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%q failed on the %q rule", fe.Field(), fe.Tag())
	}
}
