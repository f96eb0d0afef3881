package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/senbet/core"
	"github.com/trezcool/senbet/core/ethiopic"
)

type calendarApi struct {
	clock core.Clock
}

func registerCalendarAPI(g *echo.Group, clock core.Clock) {
	api := calendarApi{clock: clock}
	g.GET("/calendar/ethiopian", api.ethiopianDate)
}

// ethiopianDate converts ?date= (2006-01-02 or RFC3339), today when omitted.
func (api *calendarApi) ethiopianDate(ctx echo.Context) error {
	now := api.clock.Now()
	t := now
	if s := ctx.QueryParam("date"); s != "" {
		var err error
		if t, err = ethiopic.ParseGregorian(s, now.Location()); err != nil {
			return core.NewValidationError(err)
		}
	}

	d, err := ethiopic.FromGregorian(t)
	if err != nil {
		return core.NewValidationError(err)
	}
	return ctx.JSON(http.StatusOK, newCalendarResponse(t, d))
}
