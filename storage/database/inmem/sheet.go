package inmemdb

import (
	"context"

	"github.com/trezcool/senbet/core/attendance"
)

type sheetRepository struct {
	db *sheetTable
}

var _ attendance.SheetRepository = (*sheetRepository)(nil) // interface compliance check

func NewSheetRepository(db *DB) attendance.SheetRepository {
	return &sheetRepository{db: db.sheet}
}

func (repo *sheetRepository) SaveSheet(_ context.Context, sheet attendance.Sheet) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sheet.Rows = append([]attendance.ExportRow(nil), sheet.Rows...)
	repo.db.rows = append(repo.db.rows, sheet)
	return nil
}

// QuerySheetRows returns the rows of the latest sheet submitted for dateLabel.
func (repo *sheetRepository) QuerySheetRows(_ context.Context, dateLabel string) ([]attendance.ExportRow, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for i := len(repo.db.rows) - 1; i >= 0; i-- {
		if sh := repo.db.rows[i]; sh.DateLabel == dateLabel {
			return append(make([]attendance.ExportRow, 0, len(sh.Rows)), sh.Rows...), nil
		}
	}
	return []attendance.ExportRow{}, nil
}
