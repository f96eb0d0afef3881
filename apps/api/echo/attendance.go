package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/senbet/core"
	"github.com/trezcool/senbet/core/attendance"
	"github.com/trezcool/senbet/services/spreadsheet"
)

const sheetFormatXLSX = "xlsx"

type attendanceApi struct {
	service  attendance.Service
	validate *validator.Validate
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc attendance.Service, validate *validator.Validate) {
	api := attendanceApi{service: svc, validate: validate}

	sg := g.Group("/sessions", jwt)
	sg.POST("", api.sessionStart)

	// detail endpoints
	dg := sg.Group("/:id", sessionOwnerMiddleware(svc))
	dg.GET("", api.sessionRetrieve)
	dg.PUT("/filter", api.sessionFilter)
	dg.POST("/roster", api.sessionRefreshRoster)
	dg.POST("/students/:student_id/present", api.sessionTogglePresent)
	dg.POST("/students/:student_id/permission", api.sessionTogglePermission)
	dg.POST("/submit", api.sessionSubmit)
	dg.DELETE("", api.sessionDestroy)

	g.GET("/sheets", api.sheetRetrieve, jwt, adminMiddleware())
}

func (api *attendanceApi) sessionStart(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	sess, err := api.service.StartSession(ctx.Request().Context(), claims.Person())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, newSessionResponse(sess))
}

func (api *attendanceApi) sessionRetrieve(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(sess))
}

func (api *attendanceApi) sessionFilter(ctx echo.Context) error {
	data := new(FilterRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	data.Grade = core.CleanString(data.Grade)
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	sess, err := api.service.SetFilter(ctx.Request().Context(), ctx.Param("id"), data.Search, data.Grade)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(sess))
}

func (api *attendanceApi) sessionRefreshRoster(ctx echo.Context) error {
	sess, err := api.service.RefreshRoster(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(sess))
}

func (api *attendanceApi) sessionTogglePresent(ctx echo.Context) error {
	sess, err := api.service.TogglePresent(ctx.Request().Context(), ctx.Param("id"), ctx.Param("student_id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(sess))
}

func (api *attendanceApi) sessionTogglePermission(ctx echo.Context) error {
	sess, err := api.service.TogglePermission(ctx.Request().Context(), ctx.Param("id"), ctx.Param("student_id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(sess))
}

// sessionSubmit answers with the exported workbook as a download.
func (api *attendanceApi) sessionSubmit(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	file, _, err := api.service.Submit(ctx.Request().Context(), ctx.Param("id"), claims.Person())
	if err != nil {
		return err
	}
	return blobAttachment(ctx, file.Name, file.ContentType, file.Content)
}

func (api *attendanceApi) sessionDestroy(ctx echo.Context) error {
	if err := api.service.EndSession(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// sheetRetrieve returns the archived rows for ?date=<label> as JSON, or as a workbook with ?format=xlsx.
func (api *attendanceApi) sheetRetrieve(ctx echo.Context) error {
	q := new(SheetQuery)
	if err := ctx.Bind(q); err != nil {
		return err
	}
	label := core.CleanString(q.Date)
	if label == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "date", Error: "this field is required"})
	}

	rows, err := api.service.QuerySheetRows(ctx.Request().Context(), label)
	if err != nil {
		return err
	}
	if q.Format != sheetFormatXLSX {
		return ctx.JSON(http.StatusOK, rows)
	}

	sheet := attendance.Sheet{
		Name:      attendance.SheetName,
		DateLabel: label,
		FileName:  attendance.FileName(label),
		Rows:      rows,
	}
	f, err := spreadsheet.Build(sheet)
	if err != nil {
		return errors.Wrap(err, "building sheet")
	}
	defer func() { _ = f.Close() }()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return errors.Wrap(err, "writing sheet")
	}
	return blobAttachment(ctx, sheet.FileName, spreadsheet.ContentType, buf.Bytes())
}

func blobAttachment(ctx echo.Context, name, contentType string, content []byte) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+name)
	return ctx.Blob(http.StatusOK, contentType, content)
}
