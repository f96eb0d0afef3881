package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/senbet/core"
	"github.com/trezcool/senbet/core/student"
)

var (
	EAT = time.FixedZone("EAT", 3*60*60)

	// Sunday is Sene 29, 2017; Monday is the reference time, Sene 30, 2017.
	Sunday = time.Date(2025, time.July, 6, 10, 7, 0, 0, EAT)
	Monday = time.Date(2025, time.July, 7, 10, 7, 0, 0, EAT)
)

func CreateStudent(
	t *testing.T,
	repo student.Repository,
	uniqueID, firstName, fatherName, grade, class string,
	createdAt ...time.Time,
) student.Student {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	s := student.Student{
		ID:         uuid.NewString(),
		UniqueID:   uniqueID,
		FirstName:  firstName,
		FatherName: fatherName,
		Grade:      grade,
		Class:      class,
		CreatedAt:  tstamp,
	}
	created, err := repo.CreateStudents(context.Background(), s)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return created[0]
}

// LogEntry is a message recorded by MockLogger.
type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// MockLogger records log entries instead of printing them.
type MockLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ core.Logger = (*MockLogger)(nil)

func (l *MockLogger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg, Args: args})
}

func (l *MockLogger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l *MockLogger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }
func (l *MockLogger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args) }
func (l *MockLogger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args) }
func (l *MockLogger) Fatal(msg string, args ...interface{}) {
	l.log("FATAL", msg, args)
	panic(fmt.Sprintf("fatal: %s", msg))
}

// Entries returns the recorded entries of the given level, all of them when level is empty.
func (l *MockLogger) Entries(level string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]LogEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if level == "" || e.Level == level {
			entries = append(entries, e)
		}
	}
	return entries
}
