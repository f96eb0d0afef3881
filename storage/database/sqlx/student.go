package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/senbet/core"
	"github.com/trezcool/senbet/core/student"
)

const uniqueViolation = "23505"

type studentRow struct {
	ID         string      `db:"id"`
	UniqueID   string      `db:"unique_id"`
	FirstName  string      `db:"first_name"`
	FatherName string      `db:"father_name"`
	Grade      string      `db:"grade"`
	Class      null.String `db:"class"`
	CreatedAt  time.Time   `db:"created_at"`
}

func toStudentRow(s student.Student) studentRow {
	return studentRow{
		ID:         s.ID,
		UniqueID:   s.UniqueID,
		FirstName:  s.FirstName,
		FatherName: s.FatherName,
		Grade:      s.Grade,
		Class:      null.NewString(s.Class, s.Class != ""),
		CreatedAt:  s.CreatedAt.UTC(),
	}
}

func (r studentRow) student() student.Student {
	return student.Student{
		ID:         r.ID,
		UniqueID:   r.UniqueID,
		FirstName:  r.FirstName,
		FatherName: r.FatherName,
		Grade:      r.Grade,
		Class:      r.Class.String,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

const studentColumns = "id, unique_id, first_name, father_name, grade, class, created_at"

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) QueryStudents(ctx context.Context, orderings ...core.DBOrdering) ([]student.Student, error) {
	order := make([]string, 0, len(orderings)+1)
	for _, ord := range orderings {
		// fields are checked against student.OrderingFields by the service
		order = append(order, ord.String())
	}
	order = append(order, "seq ASC")

	var rows []studentRow
	q := "SELECT " + studentColumns + " FROM student ORDER BY " + strings.Join(order, ", ")
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}

	students := make([]student.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.student())
	}
	return students, nil
}

func (repo *studentRepository) getBy(ctx context.Context, column, value string) (student.Student, error) {
	var row studentRow
	q := "SELECT " + studentColumns + " FROM student WHERE " + column + " = $1"
	if err := repo.db.GetContext(ctx, &row, q, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrapf(err, "selecting student by %s", column)
	}
	return row.student(), nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, id string) (student.Student, error) {
	return repo.getBy(ctx, "id", id)
}

func (repo *studentRepository) GetStudentByUniqueID(ctx context.Context, uniqueID string) (student.Student, error) {
	return repo.getBy(ctx, "unique_id", uniqueID)
}

// CreateStudents inserts all students in one transaction.
func (repo *studentRepository) CreateStudents(ctx context.Context, students ...student.Student) ([]student.Student, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	q := `INSERT INTO student (` + studentColumns + `)
		VALUES (:id, :unique_id, :first_name, :father_name, :grade, :class, :created_at)`
	for _, s := range students {
		if _, err = tx.NamedExecContext(ctx, q, toStudentRow(s)); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				return nil, core.NewValidationError(
					student.ErrUniqueIDExists,
					core.FieldError{Field: "Unique_ID", Error: student.ErrUniqueIDExists.Error()},
				)
			}
			return nil, errors.Wrap(err, "inserting student")
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing students")
	}
	return students, nil
}

func (repo *studentRepository) DeleteStudents(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In("DELETE FROM student WHERE id IN (?)", ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting students")
	}
	return nil
}
