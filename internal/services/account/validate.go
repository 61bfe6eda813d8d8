// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package account

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"codeberg.org/oliverandrich/accountdesk/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// RegisterParams holds the registration form. The form tags double as
// echo bind targets and as field names in validation errors.
type RegisterParams struct {
	Name     string `form:"name" validate:"notblank,namelen"`
	Email    string `form:"email" validate:"notblank,emaillen,email"`
	Password string `form:"password" validate:"notblank"`
}

func (p *RegisterParams) normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
}

var tagCodes = map[string]string{
	"notblank": CodeRequired,
	"max":      CodeTooLong,
	"email":    CodeInvalid,
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	v.RegisterAlias("namelen", fmt.Sprintf("max=%d", models.MaxNameLength))
	v.RegisterAlias("emaillen", fmt.Sprintf("max=%d", models.MaxEmailLength))
	return v
}

func (s *Service) validate(params *RegisterParams) error {
	err := s.validator.Struct(params)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		// ActualTag resolves the length aliases to "max".
		code, ok := tagCodes[fe.ActualTag()]
		if !ok {
			code = CodeInvalid
		}
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Code: code})
	}
	return out
}
