package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core/connection"
	"github.com/skillbarter/backend/core/stats"
	"github.com/skillbarter/backend/core/user"
)

const (
	msgUserDeleted     = "User deleted successfully"
	msgPasswordChanged = "Password changed successfully"
	msgFCMTokenSaved   = "FCM token registered successfully"
)

type userApi struct {
	svc           user.Service
	connectionSvc connection.Service
	statsSvc      stats.Service
	validate      *validator.Validate
}

func registerUserAPI(g *echo.Group, authn *authenticator, deps ServerDeps) {
	api := userApi{
		svc:           deps.UserSvc,
		connectionSvc: deps.ConnectionSvc,
		statsSvc:      deps.StatsSvc,
		validate:      deps.Validate,
	}

	ug := g.Group("/users")
	ug.GET("/:userId/profile", api.profile, authn.optional)

	// own account
	mg := ug.Group("/me", authn.required)
	mg.GET("", api.me)
	mg.PATCH("", api.update)
	mg.DELETE("", api.destroy)
	mg.GET("/stats", api.quickStats)
	mg.POST("/change-password", api.changePassword)
	mg.POST("/fcm-token", api.setFCMToken)
}

// Handlers

func (api *userApi) profile(ctx echo.Context) error {
	prof, err := api.connectionSvc.Profile(ctx.Request().Context(), getOptionalUser(ctx), ctx.Param("userId"))
	if err != nil {
		return errors.Wrap(err, "getting public profile")
	}
	return ctx.JSON(http.StatusOK, prof)
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr.Profile())
}

func (api *userApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	usr, err = api.svc.Update(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr.Profile())
}

func (api *userApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: msgUserDeleted})
}

func (api *userApi) quickStats(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	qs, err := api.statsSvc.QuickStats(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "computing quick stats")
	}
	return ctx.JSON(http.StatusOK, qs)
}

func (api *userApi) changePassword(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data user.ChangePassword
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePassword")
	}
	if err = data.Validate(usr, api.validate); err != nil {
		return err
	}
	if err = api.svc.ChangePassword(ctx.Request().Context(), usr, data); err != nil {
		return errors.Wrap(err, "changing password")
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: msgPasswordChanged})
}

func (api *userApi) setFCMToken(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data user.FCMToken
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FCMToken")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if err = api.svc.SetFCMToken(ctx.Request().Context(), usr, data.Token); err != nil {
		return errors.Wrap(err, "setting FCM token")
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: msgFCMTokenSaved})
}
