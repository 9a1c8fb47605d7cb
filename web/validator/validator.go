// Package validator validates submitted form values and turns the failures
// into notices fit for end users.
package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator wraps the underlying validator library.
type Validator struct {
	cli *validator.Validate
}

// An Error describes a single failed form field.
type Error struct {
	Field   string
	Message string
}

// Notice renders the error as a user-facing flash notice, e.g.
// "name must not be empty".
func (e Error) Notice() string {
	return e.Field + " " + e.Message
}

// New initializes and returns a new Validator.
func New() *Validator {
	return &Validator{
		cli: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ValidateStruct validates the provided form struct, returning one Error
// per failed field in declaration order.
func (v *Validator) ValidateStruct(s interface{}) []Error {
	if err := v.cli.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// Validate checks a single value against the given validation tag.
func (v *Validator) Validate(value interface{}, tag string) []Error {
	if err := v.cli.Var(value, tag); err != nil {
		return v.formatError(err)
	}
	return nil
}

func (v *Validator) formatError(err error) []Error {
	errs := make([]Error, 0)
	for _, fe := range err.(validator.ValidationErrors) {
		errs = append(errs, Error{
			Field:   strings.ToLower(fe.StructField()),
			Message: message(fe.Tag()),
		})
	}
	return errs
}

func message(tag string) string {
	switch tag {
	case "required":
		return "must not be empty"
	case "email":
		return "is not a valid email address"
	case "max":
		return "is too long"
	default:
		return "is invalid"
	}
}
