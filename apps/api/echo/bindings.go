package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core"
)

// messageResponse is the body of endpoints that only acknowledge an action.
type messageResponse struct {
	Message string `json:"message"`
}

// bindPage binds and validates the page & limit query params of GET requests.
func bindPage(ctx echo.Context, validate *validator.Validate) (core.PageQuery, error) {
	var pq core.PageQuery
	if err := ctx.Bind(&pq); err != nil {
		return pq, errors.Wrap(err, "binding to PageQuery")
	}
	if err := validate.Struct(pq); err != nil {
		return pq, err
	}
	pq.Clean()
	return pq, nil
}
