package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// Report JSON field names instead of Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// RegisterPayload defines the structure for registration requests.
// Password may be empty but must be present.
type RegisterPayload struct {
	Name     string  `json:"name" validate:"required"`
	Email    string  `json:"email" validate:"required"`
	Password *string `json:"password" validate:"required"`
}

// LoginPayload defines the structure for login requests.
type LoginPayload struct {
	Email    string  `json:"email" validate:"required"`
	Password *string `json:"password" validate:"required"`
}

// UpdatePayload is a partial user. Email identifies the caller for the ownership check.
type UpdatePayload struct {
	Name     *string `json:"name" validate:"omitnil,min=1"`
	Email    *string `json:"email" validate:"omitnil,min=1"`
	Password *string `json:"password"`
}

// decodeAndValidate reads a JSON body into dst and validates it.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, formatFieldError(fe))
	}
	return errors.New(strings.Join(messages, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must not be empty", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
