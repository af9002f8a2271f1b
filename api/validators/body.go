// Package validators decodes and validates JSON request bodies.
package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// Error is a rejected request body.
type Error struct {
	Status  int               `json:"-"`
	Message string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// DecodeJSONBody decodes the body into dest, rejecting unknown fields, and
// validates the result. Failures are returned as *Error.
func DecodeJSONBody(r *http.Request, dest any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return &Error{Status: http.StatusBadRequest, Message: "invalid request body", Details: map[string]string{"error": err.Error()}}
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) *Error {
	out := &Error{Status: http.StatusUnprocessableEntity, Message: "validation failed", Details: map[string]string{}}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		out.Details["error"] = err.Error()
		return out
	}
	for _, fe := range errs {
		out.Details[fe.Field()] = validationMessage(fe)
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "is invalid"
}

// WriteJSON encodes v with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as a JSON error body. Errors other than *Error
// use the fallback status.
func WriteError(w http.ResponseWriter, fallback int, err error) {
	var verr *Error
	if errors.As(err, &verr) {
		WriteJSON(w, verr.Status, verr)
		return
	}
	WriteJSON(w, fallback, &Error{Message: err.Error()})
}
