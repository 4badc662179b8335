// Package validation wraps a singleton go-playground validator and turns its
// field errors into the user-facing message lists the handlers return.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,}$`)
	whatsappPattern = regexp.MustCompile(`^[0-9+()\s-]{6,}$`)
)

// FormError is a list of user-facing validation messages. The request that
// produced it was not applied.
type FormError struct {
	Messages []string
	fields   []string
}

// MsgUsernameTaken is reported for duplicate or reserved usernames.
const MsgUsernameTaken = "Username is already taken."

func (e *FormError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// Add appends a message.
func (e *FormError) Add(msg string) {
	e.Messages = append(e.Messages, msg)
}

// HasField reports whether the named form field failed validation.
func (e *FormError) HasField(name string) bool {
	if e == nil {
		return false
	}
	for _, f := range e.fields {
		if f == name {
			return true
		}
	}
	return false
}

// Err returns nil when no message was collected.
func (e *FormError) Err() error {
	if e == nil || len(e.Messages) == 0 {
		return nil
	}
	return e
}

// Messages extracts the message list of a *FormError, or nil.
func Messages(err error) []string {
	var fe *FormError
	if errors.As(err, &fe) {
		return fe.Messages
	}
	return nil
}

// GetValidator returns the singleton validator with the custom tags registered.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report fields by their form name.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})

		_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("whatsapp", func(fl validator.FieldLevel) bool {
			return whatsappPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// ValidateStruct validates s and returns a *FormError, or nil when s is valid.
func ValidateStruct(s any) *FormError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &FormError{Messages: []string{err.Error()}}
	}

	fe := &FormError{}
	for _, f := range fieldErrs {
		fe.Add(translate(f))
		fe.fields = append(fe.fields, f.Field())
	}
	return fe
}

var messageTemplates = map[string]string{
	"required": "%s is required.",
	"email":    "%s is not a valid email address.",
	"username": "%s is invalid: use at least 3 characters (letters, digits, dot, underscore or hyphen).",
	"whatsapp": "%s is not a valid WhatsApp number.",
}

var fieldLabels = map[string]string{
	"name":         "Name",
	"username":     "Username",
	"nickname":     "Nickname",
	"password":     "Password",
	"email":        "Email",
	"whatsapp":     "WhatsApp",
	"title":        "Title",
	"content":      "Article text",
	"published_at": "Publication date",
}

func translate(f validator.FieldError) string {
	label, ok := fieldLabels[f.Field()]
	if !ok {
		label = f.Field()
	}
	if tmpl, ok := messageTemplates[f.Tag()]; ok {
		return fmt.Sprintf(tmpl, label)
	}
	if f.Tag() == "min" {
		return fmt.Sprintf("%s must have at least %s characters.", label, f.Param())
	}
	return fmt.Sprintf("%s is invalid.", label)
}
