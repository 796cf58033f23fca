// Package validate converts ozzo-validation results into domain errors.
package validate

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"insightboard/internal/domain"
)

// Struct runs validation.ValidateStruct and reports the first failing field
// (alphabetically, so the result is stable) as a domain.ValidationError.
func Struct(structPtr interface{}, fields ...*validation.FieldRules) error {
	return FromOzzo(validation.ValidateStruct(structPtr, fields...))
}

// FromOzzo maps an ozzo error to a domain.ValidationError.
func FromOzzo(err error) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) || len(errs) == 0 {
		var internal validation.InternalError
		if errors.As(err, &internal) {
			return err
		}
		return domain.NewValidation("", err.Error())
	}
	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return domain.NewValidation(fields[0], errs[fields[0]].Error())
}

// Trim trims every string in place.
func Trim(values ...*string) {
	for _, v := range values {
		if v != nil {
			*v = strings.TrimSpace(*v)
		}
	}
}

// NotBlank rejects whitespace-only text. It applies to string fields and to
// present optional *string fields; an absent pointer passes. The value is
// checked, not rewritten.
var NotBlank = validation.By(func(value interface{}) error {
	var text string
	switch v := value.(type) {
	case string:
		text = v
	case *string:
		if v == nil {
			return nil
		}
		text = *v
	default:
		return nil
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("cannot be blank")
	}
	return nil
})
