// Package validation runs typed request payloads through tag-driven rules.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/monocle-dev/taskhub/internal/apierr"
	"github.com/monocle-dev/taskhub/internal/types"
)

// Result holds either the validated payload or the rules it broke.
type Result[T any] struct {
	Data   T
	Errors []apierr.FieldError
}

func (r Result[T]) OK() bool { return len(r.Errors) == 0 }

// Err returns the failed result as a BadRequest, or nil.
func (r Result[T]) Err() error {
	if r.OK() {
		return nil
	}
	return apierr.Validation(r.Errors)
}

var (
	once     sync.Once
	instance *validator.Validate
)

// Engine returns the shared validator with the custom rules registered.
func Engine() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
		mustRegister(v, "password", validatePassword)
		mustRegister(v, "task_status", validateTaskStatus)
		mustRegister(v, "project_role", validateProjectRole)
		mustRegister(v, "global_role", validateGlobalRole)
		instance = v
	})
	return instance
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

// Validate checks payload against its struct tags.
func Validate[T any](payload T) Result[T] {
	err := Engine().Struct(payload)
	if err == nil {
		return Result[T]{Data: payload}
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Result[T]{Errors: []apierr.FieldError{{Field: "", Message: err.Error(), Code: "invalid"}}}
	}

	out := make([]apierr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, apierr.FieldError{
			Field:   fe.Field(),
			Message: message(fe),
			Code:    fe.Tag(),
		})
	}
	return Result[T]{Errors: out}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "Invalid email address"
	case "alpha":
		return "Only alphabetic characters are allowed"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "password":
		return "Password must be 8-64 characters and contain a lowercase letter, an uppercase letter, a number and a special character"
	case "nefield":
		return "New password is the same as old password"
	case "task_status":
		return "Status must be one of todo, in_progress, done"
	case "project_role":
		return "Role must be one of member, project_admin"
	case "global_role":
		return "Role must be one of admin, normal"
	default:
		return fmt.Sprintf("%s failed the %s rule", fe.Field(), fe.Tag())
	}
}

func validatePassword(fl validator.FieldLevel) bool {
	pw := fl.Field().String()
	if len(pw) < 8 || len(pw) > 64 {
		return false
	}

	var lower, upper, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	return lower && upper && digit && special
}

func validateTaskStatus(fl validator.FieldLevel) bool {
	return types.TaskStatus(fl.Field().String()).Valid()
}

func validateProjectRole(fl validator.FieldLevel) bool {
	return types.Role(fl.Field().String()).IsProjectRole()
}

func validateGlobalRole(fl validator.FieldLevel) bool {
	return types.Role(fl.Field().String()).IsGlobalRole()
}
