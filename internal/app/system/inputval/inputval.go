// Package inputval decodes and validates JSON request bodies.
//
// Handlers declare request DTOs with `validate` struct tags; Decode
// unmarshals the body and runs the shared validator over it, reporting
// per-field problems in a form apperr.RenderFields can emit directly.
package inputval

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/commonweal/volunteerhub/internal/app/system/apperr"
	"github.com/commonweal/volunteerhub/internal/domain/models"
)

// maxBodyBytes caps request bodies; event descriptions are the largest
// legitimate payloads and stay well under this.
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Domain enums as tags so DTOs stay declarative.
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.IsValidCategory(fl.Field().String())
	})
	_ = v.RegisterValidation("partnershiptype", func(fl validator.FieldLevel) bool {
		return models.IsValidPartnershipType(fl.Field().String())
	})
	_ = v.RegisterValidation("eventstatus", func(fl validator.FieldLevel) bool {
		return models.IsValidEventStatus(fl.Field().String())
	})
	_ = v.RegisterValidation("regstatus", func(fl validator.FieldLevel) bool {
		return models.IsValidStatus(fl.Field().String())
	})
	return v
}

// Decode reads the JSON body into dst and validates it. The returned
// error is always an *apperr.Error with kind Validation (or a
// FieldsError carrying the per-field breakdown).
func Decode(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return apperr.New(apperr.Validation, "request body is empty")
		default:
			return apperr.Wrap(apperr.Validation, "malformed JSON body", err)
		}
	}
	return Check(dst)
}

// Check validates an already-populated DTO.
func Check(dst any) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.Validation, "invalid request", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldName(fe)] = fieldMessage(fe)
	}
	return &FieldsError{Fields: fields}
}

// FieldsError is a validation failure with per-field messages. It
// unwraps to an apperr Validation error so generic rendering still
// picks the right status.
type FieldsError struct {
	Fields map[string]string
}

func (e *FieldsError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, m := range e.Fields {
		parts = append(parts, f+": "+m)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *FieldsError) Unwrap() error {
	return apperr.New(apperr.Validation, "validation failed")
}

// Render writes the validation failure. Handlers call this instead of
// apperr.Render when they want the per-field body.
func (e *FieldsError) Render(w http.ResponseWriter) {
	apperr.RenderFields(w, "validation failed", e.Fields)
}

func fieldName(fe validator.FieldError) string {
	// Namespace minus the root struct, lowered: "Title" -> "title",
	// "Location.City" -> "location.city".
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ToLower(ns)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gtfield":
		return fmt.Sprintf("must be after %s", strings.ToLower(fe.Param()))
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "category":
		return "is not a recognized category"
	case "partnershiptype":
		return "is not a recognized partnership type"
	case "eventstatus":
		return "is not a recognized event status"
	case "regstatus":
		return "is not a recognized registration status"
	case "url":
		return "must be a valid URL"
	default:
		return "is invalid"
	}
}
