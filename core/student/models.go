package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/senbet/core"
)

// Student is a roster entry. JSON names follow the roster endpoint format.
type Student struct {
	ID         string    `json:"_id"`
	UniqueID   string    `json:"Unique_ID"`
	FirstName  string    `json:"First_Name"`
	FatherName string    `json:"Father_Name"`
	Grade      string    `json:"Grade"`
	Class      string    `json:"Class"`
	CreatedAt  time.Time `json:"created_at,omitempty"` // UTC
}

// HasIdentity reports whether s can be referenced by attendance records.
func (s Student) HasIdentity() bool { return s.ID != "" }

// OrderingFields are the fields accepted by the `ordering` query param.
var OrderingFields = []string{"unique_id", "first_name", "father_name", "grade", "class", "created_at"}

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	UniqueID   string `json:"Unique_ID" validate:"required,uniqueid,max=32"`
	FirstName  string `json:"First_Name" validate:"required,max=64"`
	FatherName string `json:"Father_Name" validate:"required,max=64"`
	Grade      string `json:"Grade" validate:"required,max=16"`
	Class      string `json:"Class" validate:"max=16"`
}

func (ns *NewStudent) Clean() {
	ns.UniqueID = core.CleanString(ns.UniqueID)
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.FatherName = core.CleanString(ns.FatherName)
	ns.Grade = core.CleanString(ns.Grade)
	ns.Class = core.CleanString(ns.Class)
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Clean()
	return validate.Struct(ns)
}

// QueryFilter narrows down roster queries. Search and Grade follow attendance view semantics.
type QueryFilter struct {
	Search   string `query:"search"`
	Grade    string `query:"grade"`
	Ordering string `query:"ordering"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Grade = core.CleanString(qf.Grade)
}
