package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core/booking"
)

type bookingApi struct {
	svc      booking.Service
	validate *validator.Validate
}

func registerBookingAPI(g *echo.Group, authn *authenticator, deps ServerDeps) {
	api := bookingApi{svc: deps.BookingSvc, validate: deps.Validate}

	bg := g.Group("/session-bookings", authn.required)
	bg.GET("", api.query)
	bg.GET("/:id", api.retrieve)
	bg.PATCH("/:id", api.update)
	bg.PATCH("/:id/accept", api.accept)
}

// Handlers

func (api *bookingApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	pq, err := bindPage(ctx, api.validate)
	if err != nil {
		return err
	}
	page, err := api.svc.Query(ctx.Request().Context(), usr, pq)
	if err != nil {
		return errors.Wrap(err, "querying session bookings")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *bookingApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting session booking")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *bookingApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data booking.Update
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to booking.Update")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	view, err := api.svc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating session booking")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *bookingApi) accept(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	accepted, err := api.svc.Accept(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "accepting session booking")
	}
	return ctx.JSON(http.StatusOK, accepted)
}
