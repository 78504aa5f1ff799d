package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
)

type attendanceRepository struct {
	db *attendanceTable
}

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db.attendance}
}

func recordKey(studentID string, date time.Time) string {
	return studentID + "/" + core.DateOf(date).Format("2006-01-02")
}

// copyRecord detaches the stored record so callers can never alias table state.
func copyRecord(rec attendance.DailyRecord) attendance.DailyRecord {
	cp := rec
	cp.Hours = append([]attendance.HourlyEntry(nil), rec.Hours...)
	return cp
}

func (repo *attendanceRepository) GetRecord(ctx context.Context, studentID string, date time.Time) (attendance.DailyRecord, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.table[recordKey(studentID, date)]; ok {
		return copyRecord(*rec), nil
	}
	return attendance.DailyRecord{}, attendance.ErrRecordNotFound
}

func (repo *attendanceRepository) CreateRecord(ctx context.Context, rec attendance.DailyRecord) (attendance.DailyRecord, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := recordKey(rec.StudentID, rec.Date)
	if _, ok := repo.db.table[key]; ok {
		return attendance.DailyRecord{}, core.NewDuplicateError("attendance record", key)
	}
	stored := copyRecord(rec)
	repo.db.table[key] = &stored
	return copyRecord(stored), nil
}

func (repo *attendanceRepository) UpdateRecord(ctx context.Context, rec attendance.DailyRecord, expectedVersion int) (attendance.DailyRecord, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := recordKey(rec.StudentID, rec.Date)
	stored, ok := repo.db.table[key]
	if !ok {
		return attendance.DailyRecord{}, attendance.ErrRecordNotFound
	}
	if stored.Version != expectedVersion {
		return attendance.DailyRecord{}, core.NewConflictError("attendance record", key)
	}
	next := copyRecord(rec)
	repo.db.table[key] = &next
	return copyRecord(next), nil
}

func (repo *attendanceRepository) QueryMonth(ctx context.Context, studentID string, year int, month time.Month) ([]attendance.DailyRecord, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	recs := make([]attendance.DailyRecord, 0)
	for _, rec := range repo.db.table {
		if rec.StudentID != studentID {
			continue
		}
		if rec.Date.Year() == year && rec.Date.Month() == month {
			recs = append(recs, copyRecord(*rec))
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Date.Before(recs[j].Date) })
	return recs, nil
}

func (repo *attendanceRepository) HasRecords(ctx context.Context, studentID string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	prefix := studentID + "/"
	for key := range repo.db.table {
		if strings.HasPrefix(key, prefix) {
			return true, nil
		}
	}
	return false, nil
}
