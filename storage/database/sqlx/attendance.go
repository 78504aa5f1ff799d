package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
)

type attendanceRepository struct {
	db *sqlx.DB
}

func NewAttendanceRepository(db *sqlx.DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

type attendanceRow struct {
	StudentID string         `db:"student_id"`
	Date      time.Time      `db:"date"`
	Hours     types.JSONText `db:"hours"`
	Version   int            `db:"version"`
}

func (r attendanceRow) record() (attendance.DailyRecord, error) {
	rec := attendance.DailyRecord{
		StudentID: r.StudentID,
		Date:      core.DateOf(r.Date),
		Version:   r.Version,
	}
	if err := json.Unmarshal(r.Hours, &rec.Hours); err != nil {
		return attendance.DailyRecord{}, errors.Wrap(err, "decoding hourly entries")
	}
	if rec.Hours == nil {
		rec.Hours = []attendance.HourlyEntry{}
	}
	return rec, nil
}

func encodeHours(rec attendance.DailyRecord) (types.JSONText, error) {
	hours := rec.Hours
	if hours == nil {
		hours = []attendance.HourlyEntry{}
	}
	data, err := json.Marshal(hours)
	if err != nil {
		return nil, errors.Wrap(err, "encoding hourly entries")
	}
	return data, nil
}

func recordKey(studentID string, date time.Time) string {
	return studentID + "/" + date.Format("2006-01-02")
}

func (repo *attendanceRepository) GetRecord(ctx context.Context, studentID string, date time.Time) (attendance.DailyRecord, error) {
	var row attendanceRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT student_id, date, hours, version FROM attendance_record WHERE student_id = $1 AND date = $2`,
		studentID, core.DateOf(date),
	)
	if err == sql.ErrNoRows {
		return attendance.DailyRecord{}, attendance.ErrRecordNotFound
	}
	if err != nil {
		return attendance.DailyRecord{}, core.NewUnavailableError("get", "attendance record", recordKey(studentID, date), err)
	}
	return row.record()
}

func (repo *attendanceRepository) CreateRecord(ctx context.Context, rec attendance.DailyRecord) (attendance.DailyRecord, error) {
	key := recordKey(rec.StudentID, rec.Date)
	hours, err := encodeHours(rec)
	if err != nil {
		return attendance.DailyRecord{}, err
	}

	res, err := repo.db.ExecContext(ctx,
		`INSERT INTO attendance_record (student_id, date, hours, version)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (student_id, date) DO NOTHING`,
		rec.StudentID, rec.Date, hours, rec.Version,
	)
	if err != nil {
		return attendance.DailyRecord{}, core.NewUnavailableError("create", "attendance record", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return attendance.DailyRecord{}, core.NewUnavailableError("create", "attendance record", key, err)
	}
	if n == 0 {
		return attendance.DailyRecord{}, core.NewDuplicateError("attendance record", key)
	}
	return rec, nil
}

func (repo *attendanceRepository) UpdateRecord(ctx context.Context, rec attendance.DailyRecord, expectedVersion int) (attendance.DailyRecord, error) {
	key := recordKey(rec.StudentID, rec.Date)
	hours, err := encodeHours(rec)
	if err != nil {
		return attendance.DailyRecord{}, err
	}

	// compare-and-swap on the version column; a concurrent writer makes this
	// touch zero rows
	res, err := repo.db.ExecContext(ctx,
		`UPDATE attendance_record SET hours = $1, version = $2
		 WHERE student_id = $3 AND date = $4 AND version = $5`,
		hours, rec.Version, rec.StudentID, rec.Date, expectedVersion,
	)
	if err != nil {
		return attendance.DailyRecord{}, core.NewUnavailableError("update", "attendance record", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return attendance.DailyRecord{}, core.NewUnavailableError("update", "attendance record", key, err)
	}
	if n == 0 {
		return attendance.DailyRecord{}, core.NewConflictError("attendance record", key)
	}
	return rec, nil
}

func (repo *attendanceRepository) QueryMonth(ctx context.Context, studentID string, year int, month time.Month) ([]attendance.DailyRecord, error) {
	first := core.Date(year, month, 1)
	next := first.AddDate(0, 1, 0)

	var rows []attendanceRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT student_id, date, hours, version FROM attendance_record
		 WHERE student_id = $1 AND date >= $2 AND date < $3
		 ORDER BY date`,
		studentID, first, next,
	)
	if err != nil {
		return nil, core.NewUnavailableError("query month", "attendance record", studentID, err)
	}

	recs := make([]attendance.DailyRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (repo *attendanceRepository) HasRecords(ctx context.Context, studentID string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM attendance_record WHERE student_id = $1)`, studentID,
	)
	if err != nil {
		return false, core.NewUnavailableError("exists", "attendance record", studentID, err)
	}
	return exists, nil
}
