package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/senbet/core/attendance"
)

const contextSessionKey = "session"

func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// sessionOwnerMiddleware loads the `:id` session into the context.
// Only its owner (or an admin) gets through.
func sessionOwnerMiddleware(svc attendance.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			sess, err := svc.GetSession(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "getting session")
			}
			if sess.Owner != claims.Subject && !claims.IsAdmin {
				return errHttpForbidden
			}
			ctx.Set(contextSessionKey, sess)
			return next(ctx)
		}
	}
}

func getContextSession(ctx echo.Context) (attendance.Session, error) {
	if sess, ok := ctx.Get(contextSessionKey).(attendance.Session); ok {
		return sess, nil
	}
	return attendance.Session{}, errSessionNotInCtx
}
