package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/core/absence"
	"github.com/trezcool/absento/core/proof"
	"github.com/trezcool/absento/core/reason"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound  = echo.NewHTTPError(http.StatusNotFound, "not found")
)

func isNotFound(err error) bool {
	return errors.Is(err, proof.ErrNotFound) || errors.Is(err, absence.ErrNotFound) || errors.Is(err, reason.ErrNotFound)
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		var (
			httpErr *echo.HTTPError
			vErrs   validator.ValidationErrors
			valErr  *core.ValidationError
		)
		domErr, isDomErr := core.AsDomainError(err)

		switch {
		case errors.As(err, &httpErr):
			if httpErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = httpErr.Message
				break
			}
			if httpErr.Internal != nil {
				if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
					httpErr = herr
				}
			}
			code = httpErr.Code
			message = httpErr.Message
		case errors.As(err, &vErrs):
			fldErrs := make(map[string]string, len(vErrs))
			for _, vErr := range vErrs {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case errors.As(err, &valErr):
			if valErr.Fields != nil {
				fldErrs := make(map[string]string, len(valErr.Fields))
				for _, fErr := range valErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = valErr.Error()
			}
			code = http.StatusBadRequest
		case isDomErr:
			code = http.StatusConflict
			if domErr.Code == core.CodeNotOwner {
				code = http.StatusForbidden
			}
			message = echo.Map{"error": domErr.Msg, "code": domErr.Code}
		case isNotFound(err):
			code = http.StatusNotFound
			message = http.StatusText(http.StatusNotFound)
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			args := []interface{}{errors.Wrap(err, msg)}
			if actor, aErr := getContextActor(ctx); aErr == nil {
				args = append(args, actor)
			}
			logger.Error(msg, args...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
