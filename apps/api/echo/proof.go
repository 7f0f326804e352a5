package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/core/proof"
)

type proofAPI struct {
	svc *proof.Service
	loc *time.Location
}

func registerProofAPI(g *echo.Group, svc *proof.Service, conf *core.Config) {
	api := proofAPI{svc: svc, loc: conf.Location()}

	pg := g.Group("/proofs")
	pg.POST("", api.submit, studentMiddleware())
	pg.GET("", api.query, roleMiddleware(core.RoleStudent, core.RoleManager))
	pg.GET("/:id", api.retrieve, roleMiddleware(core.RoleStudent, core.RoleManager))
	pg.PUT("/:id", api.edit, studentMiddleware())
	pg.POST("/:id/decision", api.decide, managerMiddleware())
}

// Handlers

func (api *proofAPI) submit(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	start, err := formDate(ctx, "absence_start_date", api.loc, false)
	if err != nil {
		return err
	}
	end, err := formDate(ctx, "absence_end_date", api.loc, true)
	if err != nil {
		return err
	}
	uploads, err := readUploads(ctx, "files")
	if err != nil {
		return err
	}

	p, err := api.svc.Submit(ctx.Request().Context(), proof.NewProof{
		StudentID:        actor.ID,
		AbsenceStartDate: start,
		AbsenceEndDate:   end,
		MainReason:       ctx.FormValue("main_reason"),
		CustomReason:     ctx.FormValue("custom_reason"),
		StudentComment:   ctx.FormValue("student_comment"),
	}, uploads)
	if err != nil {
		return errors.Wrap(err, "submitting proof")
	}
	return ctx.JSON(http.StatusCreated, p)
}

// query lists every proof to managers and their own proofs to students.
func (api *proofAPI) query(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var filter proof.QueryFilter
	filter.StudentID = ctx.QueryParam("student")
	filter.Status = ctx.QueryParam("status")
	if filter.From, err = queryDate(ctx, "from", api.loc, false); err != nil {
		return err
	}
	if filter.To, err = queryDate(ctx, "to", api.loc, true); err != nil {
		return err
	}
	if !actor.IsManager() {
		filter.StudentID = actor.ID
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	proofs, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying proofs")
	}
	if proofs == nil {
		proofs = []proof.Proof{}
	}
	return ctx.JSON(http.StatusOK, proofs)
}

// retrieve hides other students' proofs behind a 404.
func (api *proofAPI) retrieve(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting proof")
	}
	if !actor.IsManager() && !p.IsOwnedBy(actor.ID) {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *proofAPI) decide(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var data proof.Decision
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Decision")
	}
	data.ProofID = ctx.Param("id")
	data.ActorID = actor.ID

	p, err := api.svc.Decide(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "deciding proof")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *proofAPI) edit(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	version, err := formInt(ctx, "version")
	if err != nil {
		return err
	}
	uploads, err := readUploads(ctx, "files")
	if err != nil {
		return err
	}

	p, err := api.svc.Edit(ctx.Request().Context(), proof.EditProof{
		ProofID:        ctx.Param("id"),
		StudentID:      actor.ID,
		MainReason:     ctx.FormValue("main_reason"),
		CustomReason:   ctx.FormValue("custom_reason"),
		StudentComment: ctx.FormValue("student_comment"),
		RemoveFiles:    formValues(ctx, "remove_files"),
		Version:        version,
	}, uploads)
	if err != nil {
		return errors.Wrap(err, "editing proof")
	}
	return ctx.JSON(http.StatusOK, p)
}

func queryDate(ctx echo.Context, name string, loc *time.Location, endOfDay bool) (time.Time, error) {
	t, ok := parseDate(ctx.QueryParam(name), loc, endOfDay)
	if !ok {
		return time.Time{}, core.NewValidationError(nil, core.FieldError{Field: name, Error: errInvalidDate})
	}
	return t, nil
}
