package attendance

import (
	"regexp"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/senbet/core/student"
)

// Status is the attendance status of a student for a date.
// The zero value is Absent: an unmarked student is absent.
type Status int

const (
	Absent Status = iota
	Present
	Permission
)

var statusNames = map[Status]string{
	Absent:     "Absent",
	Present:    "Present",
	Permission: "Permission",
}

var errUnknownStatus = errors.New("unknown status")

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Absent"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return errors.Wrapf(errUnknownStatus, "%q", text)
}

// Record is the attendance of one student for one date.
// Present and HasPermission are never both true.
type Record struct {
	StudentID     string `json:"student_id"`
	Date          string `json:"date"` // Ethiopian date label
	Present       bool   `json:"present"`
	HasPermission bool   `json:"has_permission"`
}

func (r Record) Status() Status {
	switch {
	case r.Present:
		return Present
	case r.HasPermission:
		return Permission
	default:
		return Absent
	}
}

func (r Record) IsMarked() bool { return r.Present || r.HasPermission }

// Entry is a roster student along with their current status.
type Entry struct {
	student.Student
	Status Status `json:"Status"`
}

// ExportColumns is the header row of exported sheets.
var ExportColumns = []string{"Unique_ID", "First_Name", "Father_Name", "Class", "Status", "Date"}

type ExportRow struct {
	UniqueID   string `json:"Unique_ID"`
	FirstName  string `json:"First_Name"`
	FatherName string `json:"Father_Name"`
	Class      string `json:"Class"`
	Status     Status `json:"Status"`
	Date       string `json:"Date"`
}

// Values returns the row cells in ExportColumns order.
func (r ExportRow) Values() []interface{} {
	return []interface{}{r.UniqueID, r.FirstName, r.FatherName, r.Class, r.Status.String(), r.Date}
}

// Sheet is a submitted attendance sheet.
type Sheet struct {
	Name        string      `json:"name"`
	DateLabel   string      `json:"date_label"`
	FileName    string      `json:"file_name"`
	Rows        []ExportRow `json:"rows"`
	SubmittedBy string      `json:"submitted_by,omitempty"`
	SubmittedAt time.Time   `json:"submitted_at,omitempty"`
}

type Summary struct {
	Present    int `json:"present"`
	Permission int `json:"permission"`
	Absent     int `json:"absent"`
}

func (sh Sheet) Summary() Summary {
	var sum Summary
	for _, r := range sh.Rows {
		switch r.Status {
		case Present:
			sum.Present++
		case Permission:
			sum.Permission++
		default:
			sum.Absent++
		}
	}
	return sum
}

// File is an exported sheet, ready for download.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

const SheetName = "Attendance"

var fileNameSeparators = regexp.MustCompile(`[\s,]+`)

// FileName returns the export file name for a date label, eg. "Sene 30, 2017" -> "Attendance_Sene_30_2017.xlsx".
func FileName(dateLabel string) string {
	return SheetName + "_" + fileNameSeparators.ReplaceAllString(dateLabel, "_") + ".xlsx"
}
