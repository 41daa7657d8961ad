package server

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Validator adapts go-playground/validator to echo. Field names in messages
// use the json tag.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

func (v *Validator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, validationMessage(err)).SetInternal(err)
	}
	return nil
}

func validationMessage(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return "Invalid request."
	}

	first := errs[0]
	switch first.Tag() {
	case "required":
		return first.Field() + " is required."
	case "email":
		return first.Field() + " must be a valid email address."
	case "oneof":
		return first.Field() + " must be one of: " + first.Param() + "."
	case "max":
		return first.Field() + " must be at most " + first.Param() + " characters."
	default:
		return first.Field() + " is invalid."
	}
}
