package session

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"finance-client/internal/models"
)

// FieldError is one failed input check.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ValidationErrors is returned when input is rejected before any request is
// made.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fe.Message
	}
	return strings.Join(parts, "; ")
}

// Fields maps each failed field to its message.
func (v ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(v))
	for _, fe := range v {
		out[fe.Field] = fe.Message
	}
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("field"); name != "" {
			return name
		}
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var fieldLabels = map[string]string{
	"username":         "Username",
	"email":            "Email",
	"password":         "Password",
	"confirm_password": "Password confirmation",
	"first_name":       "First name",
	"last_name":        "Last name",
	"host":             "Host",
	"user":             "User",
	"database":         "Database",
	"port":             "Port",
}

func messageFor(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", label, fe.Param())
	case "eqfield":
		return "Passwords do not match"
	default:
		return label + " is invalid"
	}
}

func check(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: messageFor(fe), Type: fe.Tag()})
	}
	return out
}

// ValidateRegistration checks a registration form.
func ValidateRegistration(req models.RegisterRequest) error {
	return check(req)
}

// ValidateLogin checks that both login fields are present.
func ValidateLogin(req models.LoginRequest) error {
	return check(req)
}

// ValidateCredentials checks database credentials and fills in the default
// port.
func ValidateCredentials(creds *models.DatabaseCredentials) error {
	if creds.Port == 0 {
		creds.Port = models.DefaultDatabasePort
	}
	return check(creds)
}
