package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/senbet/core"
	"github.com/trezcool/senbet/core/student"
	"github.com/trezcool/senbet/services/spreadsheet"
)

const rosterFileField = "file"

type studentApi struct {
	service student.Service
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc student.Service) {
	api := studentApi{service: svc}

	sg := g.Group("/students", jwt)
	sg.GET("", api.studentQuery)
	sg.GET("/grades", api.studentGrades)
	sg.POST("", api.studentCreate, adminMiddleware())
	sg.POST("/import", api.studentImport, adminMiddleware())
	sg.GET("/:id", api.studentRetrieve)
	sg.DELETE("/:id", api.studentDestroy, adminMiddleware())
}

func (api *studentApi) studentQuery(ctx echo.Context) error {
	filter := new(student.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return err
	}
	students, err := api.service.Query(ctx.Request().Context(), *filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) studentGrades(ctx echo.Context) error {
	grades, err := api.service.Grades(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *studentApi) studentRetrieve(ctx echo.Context) error {
	s, err := api.service.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) studentCreate(ctx echo.Context) error {
	data := new(student.NewStudent)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	s, err := api.service.Create(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, s)
}

// studentImport creates students from an uploaded xlsx roster (multipart field "file", optional "sheet").
func (api *studentApi) studentImport(ctx echo.Context) error {
	fh, err := ctx.FormFile(rosterFileField)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: rosterFileField, Error: "an xlsx file is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer func() { _ = f.Close() }()

	entries, err := spreadsheet.ReadRoster(f, ctx.FormValue("sheet"))
	if err != nil {
		return core.NewValidationError(err)
	}
	created, err := api.service.Import(ctx.Request().Context(), entries)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, ImportResponse{Imported: len(created), Students: created})
}

func (api *studentApi) studentDestroy(ctx echo.Context) error {
	id := ctx.Param("id")
	if _, err := api.service.GetByID(ctx.Request().Context(), id); err != nil {
		return err
	}
	if err := api.service.Delete(ctx.Request().Context(), id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
