package httpapi

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	goCred "github.com/MrEthical07/goCred"
)

type registerRequest struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Role           string `json:"role"`
	FirstName      string `json:"firstName"`
	SecondName     string `json:"secondName"`
	FirstLastName  string `json:"firstLastName"`
	SecondLastName string `json:"secondLastName"`
}

func (r registerRequest) toEngine() goCred.RegisterRequest {
	return goCred.RegisterRequest{
		Username:       r.Username,
		Email:          r.Email,
		Password:       r.Password,
		Role:           goCred.Role(r.Role),
		FirstName:      r.FirstName,
		SecondName:     r.SecondName,
		FirstLastName:  r.FirstLastName,
		SecondLastName: r.SecondLastName,
	}
}

type authenticateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r authenticateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r changePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (r forgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type resetPasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

func (r resetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.NewPassword, validation.Required),
	)
}

type changePasswordResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type messageResponse struct {
	Message string `json:"message"`
}
