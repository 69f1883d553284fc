package auth

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/user"
)

// OTP purposes
const (
	PurposeEmailVerification = "email_verification"
	PurposePasswordReset     = "password_reset"
)

// OTP is a hashed one-time code sent by email.
type OTP struct {
	ID        string
	Email     string
	CodeHash  string
	Purpose   string
	Verified  bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (o OTP) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Session is returned on successful registration or login.
type Session struct {
	User user.Profile `json:"user"`
	TokenPair
}

type (
	EmailRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	VerifyOTP struct {
		Email string `json:"email" validate:"required,email"`
		OTP   string `json:"otp" validate:"required,otp"`
	}

	Login struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	RefreshRequest struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}

	LogoutRequest struct {
		RefreshToken string `json:"refresh_token"`
	}

	ResetGrant struct {
		ResetToken string `json:"reset_token"`
	}

	ResetPassword struct {
		Email      string `json:"email" validate:"required,email"`
		ResetToken string `json:"reset_token" validate:"required"`
		Password   string `json:"password" validate:"required"`
	}
)

func (er *EmailRequest) Validate(validate *validator.Validate) error {
	er.Email = core.CleanString(er.Email, true /* lower */)
	return validate.Struct(er)
}

func (vo *VerifyOTP) Validate(validate *validator.Validate) error {
	vo.Email = core.CleanString(vo.Email, true /* lower */)
	vo.OTP = core.CleanString(vo.OTP)
	return validate.Struct(vo)
}

func (l *Login) Validate(validate *validator.Validate) error {
	l.Email = core.CleanString(l.Email, true /* lower */)
	return validate.Struct(l)
}

func (rr *RefreshRequest) Validate(validate *validator.Validate) error {
	rr.RefreshToken = core.CleanString(rr.RefreshToken)
	return validate.Struct(rr)
}

func (rp *ResetPassword) Validate(validate *validator.Validate) error {
	rp.Email = core.CleanString(rp.Email, true /* lower */)
	rp.ResetToken = core.CleanString(rp.ResetToken)
	return validate.Struct(rp)
}

// InitValidators registers the validations of the auth package.
func InitValidators(validate *validator.Validate) {
	validate.RegisterStructValidation(func(sl validator.StructLevel) {
		if rp, ok := sl.Current().Interface().(ResetPassword); ok && rp.Password != "" {
			user.ValidatePassword(sl, rp.Password, "password", rp.Email)
		}
	}, ResetPassword{})
}
