package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core/exchange"
)

type exchangeApi struct {
	svc      exchange.Service
	validate *validator.Validate
}

func registerExchangeAPI(g *echo.Group, authn *authenticator, deps ServerDeps) {
	api := exchangeApi{svc: deps.ExchangeSvc, validate: deps.Validate}

	eg := g.Group("/exchange-requests", authn.required)
	eg.POST("", api.create)
	eg.GET("", api.query)
	eg.GET("/:id", api.retrieve)
	eg.PATCH("/:id/accept", api.accept)
	eg.PATCH("/:id/decline", api.decline)
}

// Handlers

func (api *exchangeApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data exchange.NewRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	view, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating exchange request")
	}
	return ctx.JSON(http.StatusCreated, view)
}

func (api *exchangeApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var filter exchange.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to exchange.QueryFilter")
	}
	if err = filter.Validate(api.validate); err != nil {
		return err
	}
	page, err := api.svc.Query(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "querying exchange requests")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *exchangeApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting exchange request")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *exchangeApi) accept(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.Accept(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "accepting exchange request")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *exchangeApi) decline(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.Decline(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "declining exchange request")
	}
	return ctx.JSON(http.StatusOK, view)
}
