package usecase

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/V4T54L/foodhub/internal/domain"
)

// asValidationError converts ozzo validation errors into a
// *domain.ValidationError keyed by JSON field name.
func asValidationError(err error) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if errors.As(err, &errs) {
		fields := make(map[string]string, len(errs))
		flatten("", errs, fields)
		return &domain.ValidationError{Fields: fields}
	}
	var single validation.Error
	if errors.As(err, &single) {
		return &domain.ValidationError{Fields: map[string]string{"": single.Error()}}
	}
	return err
}

func flatten(prefix string, errs validation.Errors, out map[string]string) {
	for field, err := range errs {
		name := field
		if prefix != "" {
			name = prefix + "." + field
		}
		var nested validation.Errors
		if errors.As(err, &nested) {
			flatten(name, nested, out)
			continue
		}
		out[name] = err.Error()
	}
}

func requireID(field, id string) error {
	if id == "" {
		return domain.NewValidationError(field, "cannot be blank")
	}
	return nil
}
