package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core/session"
)

type sessionApi struct {
	svc      session.Service
	validate *validator.Validate
}

type progressResponse struct {
	LearningProgress []session.Progress `json:"learning_progress"`
}

func registerSessionAPI(g *echo.Group, authn *authenticator, deps ServerDeps) {
	api := sessionApi{svc: deps.SessionSvc, validate: deps.Validate}

	sg := g.Group("/sessions", authn.required)
	sg.GET("", api.query)
	sg.GET("/learning-progress", api.learningProgress)
	sg.POST("/:sessionId/complete", api.complete)
}

// Handlers

func (api *sessionApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var filter session.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to session.QueryFilter")
	}
	if err = filter.Validate(api.validate); err != nil {
		return err
	}
	page, err := api.svc.Query(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *sessionApi) learningProgress(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	progress, err := api.svc.LearningProgress(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "computing learning progress")
	}
	return ctx.JSON(http.StatusOK, progressResponse{LearningProgress: progress})
}

func (api *sessionApi) complete(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.Complete(ctx.Request().Context(), usr, ctx.Param("sessionId"))
	if err != nil {
		return errors.Wrap(err, "completing session")
	}
	return ctx.JSON(http.StatusOK, view)
}
