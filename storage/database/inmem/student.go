package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/senbet/core"
	"github.com/trezcool/senbet/core/student"
)

type studentRepository struct {
	db *studentTable
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db.student}
}

// Seed replaces the roster as is. Used to load rosters whose entries may lack an ID.
func (db *DB) Seed(students ...student.Student) {
	db.student.mutex.Lock()
	defer db.student.mutex.Unlock()
	db.student.rows = append(make([]student.Student, 0, len(students)), students...)
}

func (repo *studentRepository) QueryStudents(_ context.Context, orderings ...core.DBOrdering) ([]student.Student, error) {
	repo.db.mutex.RLock()
	students := append(make([]student.Student, 0, len(repo.db.rows)), repo.db.rows...)
	repo.db.mutex.RUnlock()

	if len(orderings) > 0 {
		sort.SliceStable(students, func(i, j int) bool {
			for _, ord := range orderings {
				a, b := sortKey(students[i], ord.Field), sortKey(students[j], ord.Field)
				if a == b {
					continue
				}
				if ord.Ascending {
					return a < b
				}
				return a > b
			}
			return false
		})
	}
	return students, nil
}

func sortKey(s student.Student, field string) string {
	switch field {
	case "unique_id":
		return strings.ToLower(s.UniqueID)
	case "first_name":
		return strings.ToLower(s.FirstName)
	case "father_name":
		return strings.ToLower(s.FatherName)
	case "grade":
		return strings.ToLower(s.Grade)
	case "class":
		return strings.ToLower(s.Class)
	case "created_at":
		return s.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000000")
	}
	return ""
}

func (repo *studentRepository) find(match func(s student.Student) bool) (student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, s := range repo.db.rows {
		if match(s) {
			return s, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) GetStudent(_ context.Context, id string) (student.Student, error) {
	if id == "" {
		return student.Student{}, student.ErrNotFound
	}
	return repo.find(func(s student.Student) bool { return s.ID == id })
}

func (repo *studentRepository) GetStudentByUniqueID(_ context.Context, uniqueID string) (student.Student, error) {
	return repo.find(func(s student.Student) bool { return s.UniqueID == uniqueID })
}

func (repo *studentRepository) CreateStudents(_ context.Context, students ...student.Student) ([]student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, s := range students {
		for _, existing := range repo.db.rows {
			if existing.UniqueID == s.UniqueID {
				return nil, core.NewValidationError(
					student.ErrUniqueIDExists,
					core.FieldError{Field: "Unique_ID", Error: student.ErrUniqueIDExists.Error()},
				)
			}
		}
	}
	repo.db.rows = append(repo.db.rows, students...)
	return students, nil
}

func (repo *studentRepository) DeleteStudents(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	toDelete := make(map[string]bool, len(ids))
	for _, id := range ids {
		toDelete[id] = true
	}
	kept := repo.db.rows[:0]
	for _, s := range repo.db.rows {
		if !toDelete[s.ID] {
			kept = append(kept, s)
		}
	}
	repo.db.rows = kept
	return nil
}
