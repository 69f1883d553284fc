package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core/connection"
)

type connectionApi struct {
	svc      connection.Service
	validate *validator.Validate
}

func registerConnectionAPI(g *echo.Group, authn *authenticator, deps ServerDeps) {
	api := connectionApi{svc: deps.ConnectionSvc, validate: deps.Validate}
	g.GET("/connections", api.query, authn.required)
}

func (api *connectionApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var filter connection.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to connection.QueryFilter")
	}
	if err = filter.Validate(api.validate); err != nil {
		return err
	}
	page, err := api.svc.Query(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "querying connections")
	}
	return ctx.JSON(http.StatusOK, page)
}
