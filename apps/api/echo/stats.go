package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core/stats"
)

type statsApi struct {
	svc stats.Service
}

func registerStatsAPI(g *echo.Group, _ *authenticator, deps ServerDeps) {
	api := statsApi{svc: deps.StatsSvc}
	g.GET("/stats/community-highlights", api.communityHighlights)
}

func (api *statsApi) communityHighlights(ctx echo.Context) error {
	highlights, err := api.svc.CommunityHighlights(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing community highlights")
	}
	return ctx.JSON(http.StatusOK, highlights)
}
