package echoapi

import (
	"fmt"
	"net/http"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/senbet/core"
)

var (
	errUnauthorized    = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden   = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound    = echo.NewHTTPError(http.StatusNotFound, "not found")
	errSessionNotInCtx = errors.New("session object not found in echo.Context")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
// Browsers (Accept: text/html) without a token are redirected to conf.Server.SignInURL.
func newAppHTTPErrorHandler(
	conf *core.Config,
	logger core.Logger,
	translator ut.Translator,
	signalShutdown func(),
) echo.HTTPErrorHandler {
	translate := func(vErrs validator.ValidationErrors) map[string]string {
		fldErrs := make(map[string]string, len(vErrs))
		for _, vErr := range vErrs {
			fldErrs[vErr.Field()] = vErr.Translate(translator)
		}
		return fldErrs
	}

	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		var (
			httpErr  *echo.HTTPError
			vErrs    validator.ValidationErrors
			appVdErr *core.ValidationError
		)

		switch {
		case errors.Is(err, middleware.ErrJWTMissing):
			if conf.Server.SignInURL != "" && strings.Contains(ctx.Request().Header.Get(echo.HeaderAccept), echo.MIMETextHTML) {
				if rErr := ctx.Redirect(http.StatusFound, conf.Server.SignInURL); rErr != nil {
					ctx.Echo().Logger.Error(rErr)
				}
				return
			}
			code = http.StatusUnauthorized
			message = middleware.ErrJWTMissing.Message
		case errors.As(err, &httpErr):
			if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
				httpErr = herr
			}
			code = httpErr.Code
			message = httpErr.Message
		case errors.As(err, &appVdErr):
			code = http.StatusBadRequest
			switch {
			case len(appVdErr.Fields) > 0:
				fldErrs := make(map[string]string, len(appVdErr.Fields))
				for _, fErr := range appVdErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			case errors.As(appVdErr.Err, &vErrs):
				// import entries keep their "entry N" prefix
				fldErrs := translate(vErrs)
				if prefix := strings.TrimSuffix(appVdErr.Error(), ": "+vErrs.Error()); prefix != appVdErr.Error() {
					for fld, msg := range fldErrs {
						fldErrs[fld] = prefix + ": " + msg
					}
				}
				message = fldErrs
			default:
				message = appVdErr.Error()
			}
		case errors.As(err, &vErrs):
			code = http.StatusBadRequest
			message = translate(vErrs)
		case errors.Is(err, core.ErrNotFound):
			code = http.StatusNotFound
			message = errHttpNotFound.Message
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var person core.Person
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				person = claims.Person()
			}
			logger.Error(fmt.Sprintf("%s %s: %v", ctx.Request().Method, ctx.Path(), err), errors.Wrap(err, msg), person)

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
