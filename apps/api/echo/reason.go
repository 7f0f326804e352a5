package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/absento/core/reason"
)

type reasonAPI struct {
	catalog *reason.Catalog
}

func registerReasonAPI(g *echo.Group, catalog *reason.Catalog) {
	api := reasonAPI{catalog: catalog}
	g.GET("/reasons/:kind", api.list)
}

type ReasonResponse struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// list returns the labels of a kind. Built-in student reasons come with their display label.
func (api *reasonAPI) list(ctx echo.Context) error {
	kind, ok := reason.ParseKind(ctx.Param("kind"))
	if !ok {
		return reason.ErrInvalidKind
	}
	labels, err := api.catalog.List(ctx.Request().Context(), kind)
	if err != nil {
		return errors.Wrap(err, "listing reasons")
	}

	res := make([]ReasonResponse, 0, len(labels))
	for _, l := range labels {
		res = append(res, ReasonResponse{Value: l, Label: reason.Translate(kind, l)})
	}
	return ctx.JSON(http.StatusOK, res)
}
