package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/absento/core"
)

// roleMiddleware lets through actors having a role that starts with any of prefixes.
func roleMiddleware(prefixes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			actor, err := getContextActor(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context actor")
			}
			for _, prefix := range prefixes {
				if actor.RoleStartsWith(prefix) {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

func studentMiddleware() echo.MiddlewareFunc { return roleMiddleware(core.RoleStudent) }
func managerMiddleware() echo.MiddlewareFunc { return roleMiddleware(core.RoleManager) }
