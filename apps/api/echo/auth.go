package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core/auth"
	"github.com/skillbarter/backend/core/user"
)

const (
	msgOTPSent        = "Verification code sent to your email"
	msgEmailVerified  = "Email verified successfully"
	msgLoggedOut      = "Logged out successfully"
	msgResetSent      = "If an account exists for this email, a password reset code has been sent"
	msgPasswordReset  = "Password reset successfully"
	msgResetOTPVerify = "OTP verified successfully"
)

type authApi struct {
	svc      auth.Service
	validate *validator.Validate
}

type resetGrantResponse struct {
	Message string `json:"message"`
	auth.ResetGrant
}

func registerAuthAPI(g *echo.Group, authn *authenticator, deps ServerDeps) {
	api := authApi{svc: deps.AuthSvc, validate: deps.Validate}

	ag := g.Group("/auth")
	ag.POST("/send-verification-otp", api.sendVerificationOTP)
	ag.POST("/verify-otp", api.verifyOTP)
	ag.POST("/register", api.register)
	ag.POST("/login", api.login)
	ag.POST("/refresh-token", api.refreshToken)
	ag.POST("/logout", api.logout, authn.required)
	ag.POST("/forgot-password", api.forgotPassword)
	ag.POST("/verify-password-reset-otp", api.verifyPasswordResetOTP)
	ag.POST("/reset-password", api.resetPassword)
}

// Handlers

func (api *authApi) sendVerificationOTP(ctx echo.Context) error {
	var data auth.EmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := api.svc.SendEmailVerification(ctx.Request().Context(), data.Email); err != nil {
		return errors.Wrap(err, "sending email verification")
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: msgOTPSent})
}

func (api *authApi) verifyOTP(ctx echo.Context) error {
	var data auth.VerifyOTP
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyOTP")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := api.svc.VerifyOTP(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "verifying OTP")
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: msgEmailVerified})
}

func (api *authApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	sess, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *authApi) login(ctx echo.Context) error {
	var data auth.Login
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Login")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	sess, err := api.svc.Login(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "logging in")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	var data auth.RefreshRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RefreshRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	pair, err := api.svc.Refresh(ctx.Request().Context(), data.RefreshToken)
	if err != nil {
		return errors.Wrap(err, "refreshing tokens")
	}
	return ctx.JSON(http.StatusOK, pair)
}

func (api *authApi) logout(ctx echo.Context) error {
	var data auth.LogoutRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LogoutRequest")
	}
	if err := api.svc.Logout(ctx.Request().Context(), bearerToken(ctx), data.RefreshToken); err != nil {
		return errors.Wrap(err, "logging out")
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: msgLoggedOut})
}

func (api *authApi) forgotPassword(ctx echo.Context) error {
	var data auth.EmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := api.svc.ForgotPassword(ctx.Request().Context(), data.Email); err != nil {
		return errors.Wrap(err, "requesting password reset")
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: msgResetSent})
}

func (api *authApi) verifyPasswordResetOTP(ctx echo.Context) error {
	var data auth.VerifyOTP
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyOTP")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	grant, err := api.svc.VerifyPasswordResetOTP(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "verifying password reset OTP")
	}
	return ctx.JSON(http.StatusOK, resetGrantResponse{Message: msgResetOTPVerify, ResetGrant: grant})
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data auth.ResetPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: msgPasswordReset})
}
