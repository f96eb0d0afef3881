// Package inmemdb stores everything in process memory. Used for tests, demos and the memory roster source.
package inmemdb

import (
	"sync"

	"github.com/trezcool/senbet/core/attendance"
	"github.com/trezcool/senbet/core/student"
)

type (
	DB struct {
		student *studentTable
		sheet   *sheetTable
		session *sessionTable
	}

	studentTable struct {
		rows  []student.Student // insertion order
		mutex sync.RWMutex
	}

	sheetTable struct {
		rows  []attendance.Sheet
		mutex sync.RWMutex
	}

	sessionTable struct {
		t     map[string]attendance.Session
		mutex sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		student: &studentTable{},
		sheet:   &sheetTable{},
		session: &sessionTable{t: make(map[string]attendance.Session)},
	}
}
