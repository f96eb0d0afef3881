package attendance

import (
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/senbet/core/ethiopic"
	"github.com/trezcool/senbet/core/student"
)

var (
	ErrNotEditable    = errors.New("attendance can only be marked on Sundays")
	ErrNothingMarked  = errors.New("please mark at least one student as Present or with Permission")
	ErrUnknownStudent = errors.New("student is not on the roster")
)

// State is everything an attendance session knows. It is only ever changed through Reduce;
// a State handed to Reduce is left untouched.
type State struct {
	Date      ethiopic.Date     `json:"date"`
	DateLabel string            `json:"date_label"`
	Editable  bool              `json:"is_editable_day"`
	Roster    []student.Student `json:"roster"`
	Records   []Record          `json:"records"`
	Search    string            `json:"search_term"`
	Grade     string            `json:"grade_filter"`
}

// IsEditableDay reports whether attendance may be marked on t's local date.
func IsEditableDay(t time.Time) bool {
	return t.Weekday() == time.Sunday
}

// NewState derives the date label and editability from now, once.
func NewState(now time.Time, roster []student.Student) (State, error) {
	date, err := ethiopic.FromGregorian(now)
	if err != nil {
		return State{}, errors.Wrap(err, "converting date")
	}
	if roster == nil {
		roster = []student.Student{}
	}
	return State{
		Date:      date,
		DateLabel: date.Label(),
		Editable:  IsEditableDay(now),
		Roster:    roster,
		Records:   []Record{},
	}, nil
}

// Action is a state transition.
type Action interface {
	apply(s State) (State, error)
}

type (
	// TogglePresent flips a student's presence and clears their permission.
	TogglePresent struct{ StudentID string }

	// TogglePermission flips a student's permission and clears their presence.
	TogglePermission struct{ StudentID string }

	SetFilter struct{ Search, Grade string }

	// SetRoster replaces the roster, dropping records of students no longer on it.
	SetRoster struct{ Students []student.Student }

	ClearRecords struct{}
)

// Reduce applies a to s. On error, s is returned as is.
func Reduce(s State, a Action) (State, error) {
	next, err := a.apply(s)
	if err != nil {
		return s, err
	}
	return next, nil
}

func (a TogglePresent) apply(s State) (State, error) {
	return s.toggle(a.StudentID, func(r *Record) {
		r.Present = !r.Present
		r.HasPermission = false
	})
}

func (a TogglePermission) apply(s State) (State, error) {
	return s.toggle(a.StudentID, func(r *Record) {
		r.HasPermission = !r.HasPermission
		r.Present = false
	})
}

func (a SetFilter) apply(s State) (State, error) {
	s.Search = a.Search
	s.Grade = a.Grade
	return s, nil
}

func (a SetRoster) apply(s State) (State, error) {
	roster := a.Students
	if roster == nil {
		roster = []student.Student{}
	}
	s.Roster = roster

	records := make([]Record, 0, len(s.Records))
	for _, r := range s.Records {
		if s.hasStudent(r.StudentID) {
			records = append(records, r)
		}
	}
	s.Records = records
	return s, nil
}

func (ClearRecords) apply(s State) (State, error) {
	s.Records = []Record{}
	return s, nil
}

func (s State) toggle(studentID string, flip func(r *Record)) (State, error) {
	if !s.Editable {
		return s, ErrNotEditable
	}
	if !s.hasStudent(studentID) {
		return s, errors.Wrap(ErrUnknownStudent, studentID)
	}

	records := make([]Record, len(s.Records), len(s.Records)+1)
	copy(records, s.Records)
	i := s.recordIndex(studentID)
	if i < 0 {
		records = append(records, Record{StudentID: studentID, Date: s.DateLabel})
		i = len(records) - 1
	}
	flip(&records[i])
	s.Records = records
	return s, nil
}

func (s State) hasStudent(id string) bool {
	if id == "" {
		return false
	}
	for _, st := range s.Roster {
		if st.ID == id {
			return true
		}
	}
	return false
}

func (s State) recordIndex(studentID string) int {
	for i, r := range s.Records {
		if r.StudentID == studentID && r.Date == s.DateLabel {
			return i
		}
	}
	return -1
}

// Record returns the record of a student for the session date, if any.
func (s State) Record(studentID string) (Record, bool) {
	if i := s.recordIndex(studentID); i >= 0 {
		return s.Records[i], true
	}
	return Record{}, false
}

// StatusOf resolves a student's status for the session date. Unmarked students are Absent.
func (s State) StatusOf(studentID string) Status {
	r, _ := s.Record(studentID)
	return r.Status()
}

// HasMarks reports whether at least one student is present or has permission.
func (s State) HasMarks() bool {
	for _, r := range s.Records {
		if r.Date == s.DateLabel && r.IsMarked() {
			return true
		}
	}
	return false
}

// View is the filtered roster as shown to the user.
type View struct {
	Date      ethiopic.Date `json:"date"`
	DateLabel string        `json:"date_label"`
	Editable  bool          `json:"is_editable_day"`
	Search    string        `json:"search_term"`
	Grade     string        `json:"grade_filter"`
	Grades    []string      `json:"grades"`
	Students  []Entry       `json:"students"`
	Summary   Summary       `json:"summary"` // whole roster, not just the filtered students
}

func (s State) View() View {
	filtered := student.Filter(s.Roster, s.Search, s.Grade)
	entries := make([]Entry, 0, len(filtered))
	for _, st := range filtered {
		entries = append(entries, Entry{Student: st, Status: s.StatusOf(st.ID)})
	}
	return View{
		Date:      s.Date,
		DateLabel: s.DateLabel,
		Editable:  s.Editable,
		Search:    s.Search,
		Grade:     s.Grade,
		Grades:    student.Grades(s.Roster),
		Students:  entries,
		Summary:   Sheet{Rows: s.rows()}.Summary(),
	}
}

func (s State) rows() []ExportRow {
	rows := make([]ExportRow, 0, len(s.Roster))
	for _, st := range s.Roster {
		rows = append(rows, ExportRow{
			UniqueID:   st.UniqueID,
			FirstName:  st.FirstName,
			FatherName: st.FatherName,
			Class:      st.Class,
			Status:     s.StatusOf(st.ID),
			Date:       s.DateLabel,
		})
	}
	return rows
}

// Submit turns the state into a sheet with one row per roster student and clears the records.
// It fails, leaving s untouched, when the day is not editable or nobody is marked.
func Submit(s State) (State, Sheet, error) {
	if !s.Editable {
		return s, Sheet{}, ErrNotEditable
	}
	if !s.HasMarks() {
		return s, Sheet{}, ErrNothingMarked
	}
	sheet := Sheet{
		Name:      SheetName,
		DateLabel: s.DateLabel,
		FileName:  FileName(s.DateLabel),
		Rows:      s.rows(),
	}
	next, err := Reduce(s, ClearRecords{})
	if err != nil {
		return s, Sheet{}, err
	}
	return next, sheet, nil
}
