package importer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Row is one parsed CSV line in canonical form.
type Row struct {
	Name     string `validate:"required"`
	Phone    string `validate:"required,subscriber_phone"`
	Email    string `validate:"omitempty,email"`
	PlanCode string `validate:"required"`
	Address  string
}

// phonePattern accepts E.164-ish numbers: optional +, 7 to 15 digits.
var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("subscriber_phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

// describeValidation flattens validator errors into one operator-readable
// message per row.
func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
		case "subscriber_phone":
			parts = append(parts, "phone must be an international number")
		case "email":
			parts = append(parts, "email is not valid")
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
