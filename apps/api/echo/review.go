package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core/review"
)

type reviewApi struct {
	svc      review.Service
	validate *validator.Validate
}

type reviewPageResponse struct {
	review.Page
	review.Summary
}

func registerReviewAPI(g *echo.Group, authn *authenticator, deps ServerDeps) {
	api := reviewApi{svc: deps.ReviewSvc, validate: deps.Validate}

	rg := g.Group("/users/:userId/reviews")
	rg.GET("", api.query)
	rg.POST("", api.create, authn.required)
}

// Handlers

func (api *reviewApi) query(ctx echo.Context) error {
	pq, err := bindPage(ctx, api.validate)
	if err != nil {
		return err
	}
	userID := ctx.Param("userId")
	page, err := api.svc.Query(ctx.Request().Context(), userID, pq)
	if err != nil {
		return errors.Wrap(err, "querying reviews")
	}
	summary, err := api.svc.Summary(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "summarizing reviews")
	}
	return ctx.JSON(http.StatusOK, reviewPageResponse{Page: page, Summary: summary})
}

func (api *reviewApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data review.NewReview
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReview")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	created, err := api.svc.Create(ctx.Request().Context(), usr, ctx.Param("userId"), data)
	if err != nil {
		return errors.Wrap(err, "creating review")
	}
	return ctx.JSON(http.StatusCreated, created)
}
