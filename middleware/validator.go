// Package middleware provides standard net/http middlewares that are compatible
// with any warpcore router engine.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iaconlabs/warpcore/adapter"
	"github.com/iaconlabs/warpcore/router"
)

// Internal singleton instance to allow custom tag registration.
var defaultValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their json name when they have one.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return strings.ToLower(f.Name)
		}
		return name
	})
	return v
}

// GetValidator returns the shared validator instance used by Validate and Bind.
// Use this to register custom validation tags or translations.
func GetValidator() *validator.Validate {
	return defaultValidator
}

// ValidationError represents a specific validation failure for a field.
// It is intended to be returned as part of a structured JSON response.
type ValidationError struct {
	// Field is the name of the struct field that failed validation (json tag preferred).
	Field string `json:"field"`
	// Rule is the name of the validator tag that was violated (e.g., "required", "email").
	Rule string `json:"rule"`
	// Message is a human-readable description of the error.
	Message string `json:"message"`
}

// BindError is returned by Bind when the request cannot be turned into a
// valid value.
type BindError struct {
	// Status is 400 for undecodable bodies and 422 for rule violations.
	Status  int
	Message string
	Details []ValidationError
}

func (e *BindError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	fields := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		fields = append(fields, d.Field+": "+d.Message)
	}
	return e.Message + ": " + strings.Join(fields, "; ")
}

// Bind performs hybrid binding and validation. It unmarshals the JSON body
// captured in the request state into a new T, maps path parameters using the
// "param" struct tag and runs the validator rules.
func Bind[T any](r *http.Request) (*T, error) {
	state, ok := adapter.StateFrom(r)
	if !ok {
		return nil, errors.New("middleware: request state not found")
	}

	target := new(T)

	if len(state.Body) > 0 {
		if err := json.Unmarshal(state.Body, target); err != nil {
			return nil, &BindError{Status: http.StatusBadRequest, Message: "Invalid JSON format"}
		}
	}

	if reflect.TypeFor[T]().Kind() == reflect.Struct {
		mapPathParams(target, state.Params)
		if err := defaultValidator.Struct(target); err != nil {
			return nil, &BindError{
				Status:  http.StatusUnprocessableEntity,
				Message: "Validation failed",
				Details: formatValidationErrors(err),
			}
		}
	}

	return target, nil
}

// Validate returns a middleware that binds and validates the request into a
// new T. If validation fails, it returns a 422 Unprocessable Entity with
// detailed error information. If successful, the validated data is stored
// in the request context under router.ValidationKey.
func Validate[T any](_ T) router.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := adapter.StateFrom(r); !ok {
				http.Error(w, "request state not found", http.StatusInternalServerError)
				return
			}

			target, err := Bind[T](r)
			if err != nil {
				var be *BindError
				switch {
				case errors.As(err, &be) && be.Status == http.StatusUnprocessableEntity:
					sendDetailedError(w, be.Details)
				case errors.As(err, &be):
					sendJSONError(w, be.Message, be.Status)
				default:
					sendJSONError(w, err.Error(), http.StatusInternalServerError)
				}
				return
			}

			ctx := context.WithValue(r.Context(), router.ValidationKey, target)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Validated returns the value stored by Validate.
func Validated[T any](r *http.Request) (*T, bool) {
	v, ok := r.Context().Value(router.ValidationKey).(*T)
	return v, ok
}

// mapPathParams uses reflection to populate struct fields decorated with the "param" tag
// using values found in the request's path parameters.
func mapPathParams(target any, params map[string]string) {
	val := reflect.ValueOf(target).Elem()
	typ := val.Type()

	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("param")
		if tag == "" {
			continue
		}
		if paramVal, exists := params[tag]; exists {
			f := val.Field(i)
			if f.CanSet() && f.Kind() == reflect.String {
				f.SetString(paramVal)
			}
		}
	}
}

// formatValidationErrors converts internal validator errors into a slice of ValidationError.
func formatValidationErrors(err error) []ValidationError {
	var errs []ValidationError
	var vErrors validator.ValidationErrors

	if errors.As(err, &vErrors) {
		for _, vErr := range vErrors {
			errs = append(errs, ValidationError{
				Field:   vErr.Field(),
				Rule:    vErr.Tag(),
				Message: createMsgForTag(vErr),
			})
		}
	}
	return errs
}

// createMsgForTag generates an error message based on the failed validation tag.
func createMsgForTag(v validator.FieldError) string {
	switch v.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		return fmt.Sprintf("Minimum length/value is %s", v.Param())
	case "max":
		return fmt.Sprintf("Maximum length/value is %s", v.Param())
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", v.Param())
	default:
		return fmt.Sprintf("Validation failed on rule: %s", v.Tag())
	}
}

// sendJSONError sends a simple structured JSON error message.
func sendJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// sendDetailedError sends a 422 response containing a list of validation errors.
func sendDetailedError(w http.ResponseWriter, errors []ValidationError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "error",
		"errors": errors,
	})
}
