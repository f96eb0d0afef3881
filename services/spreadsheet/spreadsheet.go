// Package spreadsheet reads and writes xlsx workbooks: attendance sheet exports and roster imports.
package spreadsheet

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/senbet/core"
	"github.com/trezcool/senbet/core/attendance"
	"github.com/trezcool/senbet/core/student"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	ErrEmptySheet     = errors.New("worksheet is empty")
	ErrMissingColumns = errors.New("missing columns")

	colWidths = map[string]float64{"A": 14, "B": 18, "C": 18, "D": 10, "E": 12, "F": 18}
)

type exporter struct {
	dir    string
	logger core.Logger
}

var _ attendance.Exporter = (*exporter)(nil)

// NewExporter returns an xlsx attendance.Exporter.
// When conf.Attendance.ExportDir is set, a copy of every export is saved there.
func NewExporter(conf *core.Config, logger core.Logger) attendance.Exporter {
	return &exporter{dir: conf.Attendance.ExportDir, logger: logger}
}

func (e *exporter) Export(_ context.Context, sheet attendance.Sheet) (attendance.File, error) {
	f, err := Build(sheet)
	if err != nil {
		return attendance.File{}, err
	}
	defer func() { _ = f.Close() }()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return attendance.File{}, errors.Wrap(err, "writing workbook")
	}

	if e.dir != "" {
		if err = e.save(f, sheet.FileName); err != nil {
			// the download still succeeds
			e.logger.Error(err.Error(), err)
		}
	}

	return attendance.File{
		Name:        sheet.FileName,
		ContentType: ContentType,
		Content:     buf.Bytes(),
	}, nil
}

func (e *exporter) save(f *excelize.File, name string) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating export dir %s", e.dir)
	}
	path := filepath.Join(e.dir, filepath.Base(name))
	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "saving %s", path)
	}
	return nil
}

// Build lays the sheet out in a new workbook: a bold header row followed by one row per student.
func Build(sheet attendance.Sheet) (*excelize.File, error) {
	name := sheet.Name
	if name == "" {
		name = attendance.SheetName
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "naming sheet")
	}

	header := make([]interface{}, 0, len(attendance.ExportColumns))
	for _, col := range attendance.ExportColumns {
		header = append(header, col)
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "writing header")
	}
	for i, row := range sheet.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			_ = f.Close()
			return nil, errors.Wrapf(err, "row %d", i+2)
		}
		values := row.Values()
		if err = f.SetSheetRow(name, cell, &values); err != nil {
			_ = f.Close()
			return nil, errors.Wrapf(err, "writing row %d", i+2)
		}
	}

	if err := styleHeader(f, name); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func styleHeader(f *excelize.File, sheet string) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}
	lastCol, err := excelize.ColumnNumberToName(len(attendance.ExportColumns))
	if err != nil {
		return errors.Wrap(err, "header range")
	}
	if err = f.SetCellStyle(sheet, "A1", lastCol+"1", style); err != nil {
		return errors.Wrap(err, "styling header")
	}
	for col, width := range colWidths {
		if err = f.SetColWidth(sheet, col, col, width); err != nil {
			return errors.Wrapf(err, "sizing column %s", col)
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// ReadRoster reads students from an xlsx workbook. The first row is the header; columns are matched
// by name (Unique_ID, First_Name, Father_Name, Grade and optionally Class, case and separators ignored).
// sheet defaults to the first sheet. Blank rows are skipped.
func ReadRoster(r io.Reader, sheet string) ([]student.NewStudent, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening workbook")
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "reading sheet %q", sheet)
	}
	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}

	cols := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		cols[normalizeHeader(h)] = i
	}
	var missing []string
	for _, required := range []string{"unique_id", "first_name", "father_name", "grade"} {
		if _, ok := cols[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Wrap(ErrMissingColumns, strings.Join(missing, ", "))
	}
	cell := func(row []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	students := make([]student.NewStudent, 0, len(rows)-1)
	for _, row := range rows[1:] {
		ns := student.NewStudent{
			UniqueID:   cell(row, "unique_id"),
			FirstName:  cell(row, "first_name"),
			FatherName: cell(row, "father_name"),
			Grade:      cell(row, "grade"),
			Class:      cell(row, "class"),
		}
		if ns == (student.NewStudent{}) {
			continue
		}
		students = append(students, ns)
	}
	return students, nil
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}

// ReadSheetRows reads back an exported attendance sheet.
func ReadSheetRows(r io.Reader) ([]attendance.ExportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening workbook")
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(attendance.SheetName)
	if err != nil {
		return nil, errors.Wrap(err, "reading sheet")
	}
	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}

	result := make([]attendance.ExportRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		for len(row) < len(attendance.ExportColumns) {
			row = append(row, "")
		}
		var status attendance.Status
		if err = status.UnmarshalText([]byte(row[4])); err != nil {
			return nil, errors.Wrapf(err, "row %d", i+2)
		}
		result = append(result, attendance.ExportRow{
			UniqueID:   row[0],
			FirstName:  row[1],
			FatherName: row[2],
			Class:      row[3],
			Status:     status,
			Date:       row[5],
		})
	}
	return result, nil
}
