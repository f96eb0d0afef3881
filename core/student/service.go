package student

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/senbet/core"
)

var (
	ErrNotFound        = errors.Wrap(core.ErrNotFound, "student")
	ErrUniqueIDExists  = errors.New("a student with this unique id already exists")
	ErrReadOnlyRoster  = errors.New("roster is read-only")
	errNothingToImport = errors.New("nothing to import")

	nowFunc   = time.Now // mockable
	newIDFunc = uuid.NewString
)

type (
	// Repository is a roster store. QueryStudents returns students in a stable order:
	// the given orderings, then insertion order.
	Repository interface {
		QueryStudents(ctx context.Context, orderings ...core.DBOrdering) ([]Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		GetStudentByUniqueID(ctx context.Context, uniqueID string) (Student, error)
		CreateStudents(ctx context.Context, students ...Student) ([]Student, error)
		DeleteStudents(ctx context.Context, ids ...string) error
	}

	Service interface {
		Query(ctx context.Context, filter QueryFilter) ([]Student, error)
		QueryAll(ctx context.Context) ([]Student, error)
		GetByID(ctx context.Context, id string) (Student, error)
		Create(ctx context.Context, ns NewStudent) (Student, error)
		Import(ctx context.Context, students []NewStudent) ([]Student, error)
		Grades(ctx context.Context) ([]string, error)
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		repo     Repository
		validate *validator.Validate
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, validate *validator.Validate) Service {
	return &service{repo: repo, validate: validate}
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Student, error) {
	filter.Clean()
	students, err := svc.repo.QueryStudents(ctx, core.ParseOrderings(filter.Ordering, OrderingFields...)...)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return Filter(students, filter.Search, filter.Grade), nil
}

func (svc *service) QueryAll(ctx context.Context) ([]Student, error) {
	return svc.repo.QueryStudents(ctx)
}

func (svc *service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	created, err := svc.Import(ctx, []NewStudent{ns})
	if err != nil {
		return Student{}, err
	}
	return created[0], nil
}

// Import validates and creates students in one go. Nothing is created if any entry is invalid.
func (svc *service) Import(ctx context.Context, students []NewStudent) ([]Student, error) {
	if len(students) == 0 {
		return nil, core.NewValidationError(errNothingToImport)
	}

	now := nowFunc().UTC()
	seen := make(map[string]int, len(students))
	batch := make([]Student, 0, len(students))
	for i := range students {
		ns := students[i]
		if err := ns.Validate(svc.validate); err != nil {
			if len(students) == 1 {
				return nil, err
			}
			return nil, core.NewValidationError(errors.Wrapf(err, "entry %d", i+1))
		}
		if j, dup := seen[ns.UniqueID]; dup {
			return nil, core.NewValidationError(fmt.Errorf("entry %d: duplicates entry %d (%s)", i+1, j+1, ns.UniqueID))
		}
		seen[ns.UniqueID] = i
		if err := svc.checkUniqueness(ctx, ns.UniqueID); err != nil {
			return nil, err
		}
		batch = append(batch, Student{
			ID:         newIDFunc(),
			UniqueID:   ns.UniqueID,
			FirstName:  ns.FirstName,
			FatherName: ns.FatherName,
			Grade:      ns.Grade,
			Class:      ns.Class,
			CreatedAt:  now,
		})
	}
	return svc.repo.CreateStudents(ctx, batch...)
}

func (svc *service) checkUniqueness(ctx context.Context, uniqueID string) error {
	_, err := svc.repo.GetStudentByUniqueID(ctx, uniqueID)
	switch {
	case err == nil:
		return core.NewValidationError(ErrUniqueIDExists, core.FieldError{Field: "Unique_ID", Error: ErrUniqueIDExists.Error()})
	case errors.Is(err, core.ErrNotFound):
		return nil
	default:
		return errors.Wrap(err, "checking unique id")
	}
}

// Grades returns the distinct grades of the roster in first-seen order.
func (svc *service) Grades(ctx context.Context) ([]string, error) {
	students, err := svc.repo.QueryStudents(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return Grades(students), nil
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteStudents(ctx, ids...)
}

// Filter returns the students matching search and grade, in roster order.
// search is a case-insensitive substring match on the Unique_ID, names or grade (empty matches all);
// grade must match exactly when set. Students without an identity are left out.
func Filter(students []Student, search, grade string) []Student {
	search = strings.ToLower(search)
	filtered := make([]Student, 0, len(students))
	for _, s := range students {
		if !s.HasIdentity() {
			continue
		}
		if grade != "" && s.Grade != grade {
			continue
		}
		if search != "" && !s.matches(search) {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered
}

func (s Student) matches(lowerSearch string) bool {
	for _, fld := range []string{s.UniqueID, s.FirstName, s.FatherName, s.Grade} {
		if strings.Contains(strings.ToLower(fld), lowerSearch) {
			return true
		}
	}
	return false
}

// Grades returns the distinct non-empty grades in first-seen order.
func Grades(students []Student) []string {
	seen := make(map[string]bool)
	grades := make([]string, 0)
	for _, s := range students {
		if s.Grade == "" || seen[s.Grade] {
			continue
		}
		seen[s.Grade] = true
		grades = append(grades, s.Grade)
	}
	return grades
}
