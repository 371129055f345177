package httptransport

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"linker/internal/session/models"
	"linker/internal/theme"
	dErrors "linker/pkg/domain-errors"
	"linker/pkg/platform/httputil"
)

var validate = newValidator()

// newValidator reports failures under the JSON field names clients actually
// sent, not the Go struct field names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// SyncSessionRequest is the body for POST /session/sync.
type SyncSessionRequest struct {
	RequestedRole string `json:"requested_role" validate:"required,oneof=buyer manufacturer admin general_user"`
	CompanyName   string `json:"company_name"   validate:"required_if=RequestedRole manufacturer,max=200"`
}

func (r *SyncSessionRequest) role() models.Role {
	role, _ := models.ParseRole(r.RequestedRole)
	return role
}

// LegacyLoginRequest is the body for POST /session/login.
type LegacyLoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=1,max=256"`
}

// SetThemeRequest is the body for PUT /theme.
type SetThemeRequest struct {
	Theme string `json:"theme" validate:"required,oneof=light dark"`
}

func (r *SetThemeRequest) theme() theme.Theme {
	return theme.Theme(r.Theme)
}

// decodeValid decodes a JSON body into T and runs struct validation,
// translating validator failures into bad-request domain errors.
func decodeValid[T any](r *http.Request) (*T, error) {
	var body T
	if err := httputil.DecodeJSON(r, &body); err != nil {
		return nil, err
	}
	if err := validate.Struct(&body); err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, validationMessage(err))
	}
	return &body, nil
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid request body"
	}

	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required", "required_if":
			parts = append(parts, field+" is required")
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", ")))
		case "email":
			parts = append(parts, field+" must be a valid email address")
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			parts = append(parts, field+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}
