// Package validation binds and validates request payloads.
//
// It uses the `validator` library to enforce rules (like required fields or
// email formats) defined in struct tags and turns failures into field errors
// the client can act on. Field names are reported by their JSON name.
package validation

import (
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/konitys/antennes-api/internal/errs"
)

// Validatable is implemented by request payload types that know how to
// validate themselves, usually by calling Struct.
type Validatable interface {
	Validate() error
}

// CustomValidationError is a validation issue that cannot be expressed with
// validator tags.
type CustomValidationError struct {
	Field   string
	Message string
}

// CustomValidationErrors is a slice of custom validation errors that satisfies error.
type CustomValidationErrors []CustomValidationError

func (c CustomValidationErrors) Error() string {
	return "Validation failed"
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query", "param"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// Struct validates s against its `validate` tags.
func Struct(s any) error {
	return validate.Struct(s)
}

// BindAndValidate binds path, query and body data into payload and validates it.
//
// Binding failures (malformed JSON, wrong types) and validation failures both
// come back as a 400 *errs.HTTPError; validation failures carry field errors.
// payload must be a pointer.
func BindAndValidate(c echo.Context, payload Validatable) error {
	if err := bind(c, payload); err != nil {
		return err
	}

	if msg, fieldErrors := validateStruct(payload); fieldErrors != nil {
		return errs.NewBadRequestError(msg, true, nil, fieldErrors, nil)
	}

	return nil
}

// bind follows echo's DefaultBinder.Bind order (path, query for reads, body)
// so that path parameter failures can be reported per parameter.
func bind(c echo.Context, payload any) error {
	binder := &echo.DefaultBinder{}

	if err := binder.BindPathParams(c, payload); err != nil {
		return pathParamError(c, err)
	}

	switch c.Request().Method {
	case http.MethodGet, http.MethodDelete, http.MethodHead:
		if err := binder.BindQueryParams(c, payload); err != nil {
			return bindError(err)
		}
	}

	if err := binder.BindBody(c, payload); err != nil {
		return bindError(err)
	}
	return nil
}

func pathParamError(c echo.Context, err error) error {
	var bindErr *echo.BindingError
	if errors.As(err, &bindErr) {
		return bindError(err)
	}

	names, values := c.ParamNames(), c.ParamValues()
	var fieldErrors []errs.FieldError
	for i, name := range names {
		if i < len(values) && strings.Contains(err.Error(), strconv.Quote(values[i])) {
			fieldErrors = append(fieldErrors, errs.FieldError{Field: name, Error: "has an invalid value"})
		}
	}
	if fieldErrors == nil {
		for _, name := range names {
			fieldErrors = append(fieldErrors, errs.FieldError{Field: name, Error: "has an invalid value"})
		}
	}

	return errs.NewBadRequestError("Invalid request parameters", true, nil, fieldErrors, nil)
}

func bindError(err error) error {
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	var bindErr *echo.BindingError
	if errors.As(err, &bindErr) {
		return errs.NewBadRequestError("Invalid request parameters", true, nil, []errs.FieldError{
			{Field: bindErr.Field, Error: "has an invalid value"},
		}, nil)
	}

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) && echoErr.Code == http.StatusBadRequest {
		if msg, ok := echoErr.Message.(string); ok && msg != "" {
			return errs.NewBadRequestError(msg, false, nil, nil, nil)
		}
	}

	var fieldErrors CustomValidationErrors
	if errors.As(err, &fieldErrors) {
		_, converted := extractValidationError(fieldErrors)
		return errs.NewBadRequestError("Validation failed", true, nil, converted, nil)
	}

	return errs.NewBadRequestError("Invalid request body", false, nil, nil, nil)
}

// validateStruct calls v.Validate() and extracts field errors if validation fails.
func validateStruct(v Validatable) (string, []errs.FieldError) {
	if err := v.Validate(); err != nil {
		return extractValidationError(err)
	}
	return "", nil
}

func extractValidationError(err error) (string, []errs.FieldError) {
	var fieldErrors []errs.FieldError

	var custom CustomValidationErrors
	if errors.As(err, &custom) {
		for _, e := range custom {
			fieldErrors = append(fieldErrors, errs.FieldError{Field: e.Field, Error: e.Message})
		}
		return "Validation failed", fieldErrors
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "Validation failed", []errs.FieldError{{Field: "body", Error: err.Error()}}
	}

	for _, err := range validationErrors {
		field := err.Field()
		var msg string

		switch err.Tag() {
		case "required":
			msg = "is required"

		case "min":
			if err.Kind() == reflect.String {
				msg = fmt.Sprintf("must be at least %s characters", err.Param())
			} else {
				msg = fmt.Sprintf("must be at least %s", err.Param())
			}

		case "max":
			if err.Kind() == reflect.String {
				msg = fmt.Sprintf("must not exceed %s characters", err.Param())
			} else {
				msg = fmt.Sprintf("must not exceed %s", err.Param())
			}

		case "oneof":
			msg = fmt.Sprintf("must be one of: %s", err.Param())

		case "email":
			msg = "must be a valid email address"

		case "datetime":
			if err.Param() == "2006-01-02" {
				msg = "must be a date (YYYY-MM-DD)"
			} else {
				msg = fmt.Sprintf("must match the format %s", err.Param())
			}

		case "gt":
			msg = fmt.Sprintf("must be greater than %s", err.Param())

		default:
			if err.Param() != "" {
				msg = fmt.Sprintf("%s: %s:%s", field, err.Tag(), err.Param())
			} else {
				msg = fmt.Sprintf("%s: %s", field, err.Tag())
			}
		}

		fieldErrors = append(fieldErrors, errs.FieldError{
			Field: field,
			Error: msg,
		})
	}

	return "Validation failed", fieldErrors
}
