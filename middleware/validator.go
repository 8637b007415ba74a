// Package middleware provides standard net/http middlewares that can sit in
// front of any slipstream bridge or native handler.
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Internal singleton instance to allow custom tag registration.
var defaultValidator = validator.New()

// GetValidator returns the shared validator instance used by the Validate
// middleware. Use this to register custom validation tags or translations.
func GetValidator() *validator.Validate {
	return defaultValidator
}

// ctxKey is a private type for context keys to avoid collisions.
type ctxKey struct{}

// validatedKey stores the validated value produced by Validate.
var validatedKey ctxKey

// Validated retrieves the value bound and validated by [Validate] for this
// request, if any.
func Validated[T any](r *http.Request) (*T, bool) {
	v, ok := r.Context().Value(validatedKey).(*T)
	return v, ok
}

// ValidationError represents a specific validation failure for a field.
// It is intended to be returned as part of a structured JSON response.
type ValidationError struct {
	// Field is the name of the struct field that failed validation.
	Field string `json:"field"`
	// Rule is the name of the validator tag that was violated (e.g., "required", "email").
	Rule string `json:"rule"`
	// Message is a human-readable description of the error.
	Message string `json:"message"`
}

// Validate returns a middleware that performs hybrid binding and validation.
// It unmarshals the JSON body into a new instance of T and maps path
// parameters via [http.Request.PathValue] using the "param" struct tag. The
// body is rewound afterwards so the downstream handler (bridged or native)
// still sees it. If validation fails, the middleware answers 422
// Unprocessable Entity with detailed error information; on success the
// validated value is available through [Validated].
func Validate[T any](_ T) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			target := new(T)

			// 1. BINDING: Priority 1 - JSON body (cached for replay).
			var body []byte
			if r.Body != nil && r.Body != http.NoBody {
				var err error
				body, err = io.ReadAll(r.Body)
				if err != nil {
					sendJSONError(w, "Unreadable request body", http.StatusBadRequest)
					return
				}
				_ = r.Body.Close()
			}
			if len(body) > 0 {
				if err := json.Unmarshal(body, target); err != nil {
					sendJSONError(w, "Invalid JSON format", http.StatusBadRequest)
					return
				}
			}

			// 2. BINDING: Priority 2 - path parameters via "param" tags.
			mapPathParams(target, r)

			// 3. VALIDATION: Execute rules from go-playground/validator.
			if err := defaultValidator.Struct(target); err != nil {
				sendDetailedError(w, formatValidationErrors(err))
				return
			}

			// 4. INJECTION: hand the clean value down and rewind the body.
			if body != nil {
				r.Body = io.NopCloser(bytes.NewReader(body))
			}
			ctx := context.WithValue(r.Context(), validatedKey, target)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// mapPathParams populates struct fields decorated with the "param" tag from
// the request's route values. Only string fields participate.
func mapPathParams(target any, r *http.Request) {
	val := reflect.ValueOf(target).Elem()
	typ := val.Type()

	for i := range typ.NumField() {
		tag := typ.Field(i).Tag.Get("param")
		if tag == "" {
			continue
		}
		if paramVal := r.PathValue(tag); paramVal != "" {
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
				Field:   strings.ToLower(vErr.Field()),
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
