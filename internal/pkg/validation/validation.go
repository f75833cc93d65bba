package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/V4T54L/classroll/internal/domain"
)

// Validator wraps validator.Validate and reports failures as *domain.ValidationError
// named after the json field.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator that reads field names from json tags.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{v: v}
}

// Struct validates s. Only the first failing field is reported.
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &domain.ValidationError{Field: "request", Reason: err.Error()}
	}
	fe := fieldErrs[0]
	return &domain.ValidationError{Field: fieldPath(fe), Reason: reason(fe)}
}

func fieldPath(fe validator.FieldError) string {
	// Namespace is "Struct.field[0].child"; drop the struct name.
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "numeric":
		return "must be numeric"
	case "len":
		return fmt.Sprintf("must have length %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "datetime":
		return fmt.Sprintf("must match layout %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// Var validates a single value against tag, reporting failures under field.
func (v *Validator) Var(value any, tag, field string) error {
	err := v.v.Var(value, tag)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &domain.ValidationError{Field: field, Reason: err.Error()}
	}
	return &domain.ValidationError{Field: field, Reason: reason(fieldErrs[0])}
}
