package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core/contact"
)

type contactApi struct {
	svc contact.Service
}

type contactsResponse struct {
	Contacts []contact.View `json:"contacts"`
}

func registerContactAPI(g *echo.Group, authn *authenticator, deps ServerDeps) {
	api := contactApi{svc: deps.ContactSvc}
	g.GET("/contacts", api.query, authn.required)
}

func (api *contactApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	contacts, err := api.svc.Query(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying contacts")
	}
	return ctx.JSON(http.StatusOK, contactsResponse{Contacts: contacts})
}
