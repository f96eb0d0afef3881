package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/senbet/core/attendance"
)

type sheetRow struct {
	ID          string      `db:"id"`
	DateLabel   string      `db:"date_label"`
	FileName    string      `db:"file_name"`
	SubmittedBy null.String `db:"submitted_by"`
	SubmittedAt null.Time   `db:"submitted_at"`
}

type exportRow struct {
	SheetID    string      `db:"sheet_id"`
	Position   int         `db:"position"`
	UniqueID   null.String `db:"unique_id"`
	FirstName  null.String `db:"first_name"`
	FatherName null.String `db:"father_name"`
	Class      null.String `db:"class"`
	Status     string      `db:"status"`
	DateLabel  string      `db:"date_label"`
}

func nullString(s string) null.String { return null.NewString(s, s != "") }

type sheetRepository struct {
	db *sqlx.DB
}

var _ attendance.SheetRepository = (*sheetRepository)(nil) // interface compliance check

func NewSheetRepository(db *sqlx.DB) attendance.SheetRepository {
	return &sheetRepository{db: db}
}

func (repo *sheetRepository) SaveSheet(ctx context.Context, sheet attendance.Sheet) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	sr := sheetRow{
		ID:          uuid.NewString(),
		DateLabel:   sheet.DateLabel,
		FileName:    sheet.FileName,
		SubmittedBy: nullString(sheet.SubmittedBy),
		SubmittedAt: null.NewTime(sheet.SubmittedAt.UTC(), !sheet.SubmittedAt.IsZero()),
	}
	_, err = tx.NamedExecContext(ctx, `INSERT INTO attendance_sheet (id, date_label, file_name, submitted_by, submitted_at)
		VALUES (:id, :date_label, :file_name, :submitted_by, COALESCE(:submitted_at, now()))`, sr)
	if err != nil {
		return errors.Wrap(err, "inserting sheet")
	}

	for i, r := range sheet.Rows {
		er := exportRow{
			SheetID:    sr.ID,
			Position:   i,
			UniqueID:   nullString(r.UniqueID),
			FirstName:  nullString(r.FirstName),
			FatherName: nullString(r.FatherName),
			Class:      nullString(r.Class),
			Status:     r.Status.String(),
			DateLabel:  r.Date,
		}
		_, err = tx.NamedExecContext(ctx, `INSERT INTO attendance_row
			(sheet_id, position, unique_id, first_name, father_name, class, status, date_label)
			VALUES (:sheet_id, :position, :unique_id, :first_name, :father_name, :class, :status, :date_label)`, er)
		if err != nil {
			return errors.Wrapf(err, "inserting row %d", i)
		}
	}
	return errors.Wrap(tx.Commit(), "committing sheet")
}

// QuerySheetRows returns the rows of the latest sheet submitted for dateLabel.
func (repo *sheetRepository) QuerySheetRows(ctx context.Context, dateLabel string) ([]attendance.ExportRow, error) {
	var sheetID string
	err := repo.db.GetContext(ctx, &sheetID,
		"SELECT id FROM attendance_sheet WHERE date_label = $1 ORDER BY submitted_at DESC LIMIT 1", dateLabel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []attendance.ExportRow{}, nil
		}
		return nil, errors.Wrap(err, "selecting sheet")
	}

	var rows []exportRow
	err = repo.db.SelectContext(ctx, &rows,
		"SELECT * FROM attendance_row WHERE sheet_id = $1 ORDER BY position", sheetID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting rows")
	}

	result := make([]attendance.ExportRow, 0, len(rows))
	for _, r := range rows {
		var status attendance.Status
		if err = status.UnmarshalText([]byte(r.Status)); err != nil {
			return nil, errors.Wrapf(err, "row %d", r.Position)
		}
		result = append(result, attendance.ExportRow{
			UniqueID:   r.UniqueID.String,
			FirstName:  r.FirstName.String,
			FatherName: r.FatherName.String,
			Class:      r.Class.String,
			Status:     status,
			Date:       r.DateLabel,
		})
	}
	return result, nil
}
