package inmemdb

import (
	"sync"

	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/sysdefaults"
)

type (
	DB struct {
		attendance *attendanceTable
		fees       *feeTable
		defaults   *defaultsTable
	}

	attendanceTable struct {
		table map[string]*attendance.DailyRecord // key: studentID + "/" + date
		mutex sync.RWMutex
	}

	feeTable struct {
		table     map[string]*fee.Record // key: record ID
		byStudent map[string]string      // studentID -> record ID
		mutex     sync.RWMutex
	}

	defaultsTable struct {
		row   *sysdefaults.SystemDefaults
		mutex sync.RWMutex
	}
)

func Open() (*DB, error) {
	db := &DB{
		attendance: &attendanceTable{table: make(map[string]*attendance.DailyRecord)},
		fees:       &feeTable{table: make(map[string]*fee.Record), byStudent: make(map[string]string)},
		defaults:   &defaultsTable{},
	}
	return db, nil
}
