package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/absento/core/deadline"
	"github.com/trezcool/absento/core/proof"
)

type (
	absenceAPI struct {
		svc *proof.Service
	}

	DeadlineResponse struct {
		deadline.Result
		HoursRemaining int `json:"hours_remaining"`
	}
)

func registerAbsenceAPI(g *echo.Group, svc *proof.Service) {
	api := absenceAPI{svc: svc}

	ag := g.Group("/absences", studentMiddleware())
	ag.GET("/me", api.listMine)
	ag.GET("/me/deadline", api.deadline)
}

// Handlers

func (api *absenceAPI) listMine(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	views, err := api.svc.StudentAbsences(ctx.Request().Context(), actor.ID)
	if err != nil {
		return errors.Wrap(err, "listing student absences")
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *absenceAPI) deadline(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.DeadlineWarning(ctx.Request().Context(), actor.ID)
	if err != nil {
		return errors.Wrap(err, "computing deadline")
	}
	return ctx.JSON(http.StatusOK, DeadlineResponse{Result: res, HoursRemaining: res.HoursRemaining(time.Now())})
}
