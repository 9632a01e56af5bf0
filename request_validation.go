package goCred

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Validate checks the shape of a registration request. Password strength is
// enforced separately by the configured policy.
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 64)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.FirstName, validation.Length(0, 100)),
		validation.Field(&r.SecondName, validation.Length(0, 100)),
		validation.Field(&r.FirstLastName, validation.Length(0, 100)),
		validation.Field(&r.SecondLastName, validation.Length(0, 100)),
	)
}
