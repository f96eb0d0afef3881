package echoapi

import (
	"time"

	"github.com/trezcool/senbet/core/attendance"
	"github.com/trezcool/senbet/core/ethiopic"
	"github.com/trezcool/senbet/core/student"
)

type (
	CalendarResponse struct {
		Year       int    `json:"year"`
		Month      int    `json:"month"`
		MonthName  string `json:"month_name"`
		Day        int    `json:"day"`
		Label      string `json:"label"`
		IsLeapYear bool   `json:"is_leap_year"`
		Weekday    string `json:"weekday"`
		IsSunday   bool   `json:"is_sunday"`
	}

	FilterRequest struct {
		Search string `json:"search_term" validate:"max=64"`
		Grade  string `json:"grade_filter" validate:"max=16"`
	}

	// SessionResponse is what the attendance page renders: the filtered view, never the raw state.
	SessionResponse struct {
		ID        string          `json:"id"`
		View      attendance.View `json:"view"`
		CreatedAt time.Time       `json:"created_at"`
		UpdatedAt time.Time       `json:"updated_at"`
	}

	ImportResponse struct {
		Imported int               `json:"imported"`
		Students []student.Student `json:"students"`
	}

	SheetQuery struct {
		Date   string `query:"date"`
		Format string `query:"format"`
	}
)

func newCalendarResponse(t time.Time, d ethiopic.Date) CalendarResponse {
	return CalendarResponse{
		Year:       d.Year,
		Month:      int(d.Month),
		MonthName:  d.Month.String(),
		Day:        d.Day,
		Label:      d.Label(),
		IsLeapYear: ethiopic.IsLeapYear(d.Year),
		Weekday:    t.Weekday().String(),
		IsSunday:   attendance.IsEditableDay(t),
	}
}

func newSessionResponse(sess attendance.Session) SessionResponse {
	return SessionResponse{
		ID:        sess.ID,
		View:      sess.State.View(),
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
	}
}
