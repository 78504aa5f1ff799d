package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrRecordNotFound = errors.New("attendance record not found")
)

type (
	Repository interface {
		// GetRecord returns the record for (studentID, date) or ErrRecordNotFound.
		// Reading never creates a record.
		GetRecord(ctx context.Context, studentID string, date time.Time) (DailyRecord, error)
		// CreateRecord inserts a new record; it fails with a core.DuplicateError
		// when a record for (StudentID, Date) already exists.
		CreateRecord(ctx context.Context, rec DailyRecord) (DailyRecord, error)
		// UpdateRecord persists rec only if the stored version still equals
		// expectedVersion; otherwise it fails with a core.ConflictError and
		// nothing is applied.
		UpdateRecord(ctx context.Context, rec DailyRecord, expectedVersion int) (DailyRecord, error)
		// QueryMonth returns all records for the student in (year, month),
		// ordered by date ascending.
		QueryMonth(ctx context.Context, studentID string, year int, month time.Month) ([]DailyRecord, error)
		// HasRecords reports whether the student has any record at all.
		HasRecords(ctx context.Context, studentID string) (bool, error)
	}

	Service interface {
		GetRecord(ctx context.Context, studentID string, date time.Time) (DailyRecord, error)
		UpsertHour(ctx context.Context, studentID string, date time.Time, in EntryInput, expectedVersion int) (DailyRecord, error)
		MonthRecords(ctx context.Context, studentID string, year int, month time.Month) ([]DailyRecord, error)
		MonthlySummary(ctx context.Context, studentID string, year int, month time.Month) (MonthlySummary, error)
		LeaveReasons(ctx context.Context, studentID string, year int, month time.Month) ([]LeaveReason, error)
		HasRecords(ctx context.Context, studentID string) (bool, error)
	}

	service struct {
		repo  Repository
		clock core.Clock
	}
)

func NewService(repo Repository, clock core.Clock) Service {
	return &service{repo: repo, clock: clock}
}

func (svc *service) GetRecord(ctx context.Context, studentID string, date time.Time) (DailyRecord, error) {
	return svc.repo.GetRecord(ctx, studentID, core.DateOf(date))
}

// UpsertHour records one hour of attendance. The hour is the dedup key: an
// existing entry for it is replaced. expectedVersion must match the stored
// record's version (0 when no record exists yet); on mismatch the caller gets
// a core.ConflictError and must re-read and retry.
func (svc *service) UpsertHour(ctx context.Context, studentID string, date time.Time, in EntryInput, expectedVersion int) (DailyRecord, error) {
	if err := in.Validate(); err != nil {
		return DailyRecord{}, err
	}
	if studentID == "" {
		return DailyRecord{}, core.NewValidationError(
			errors.New("student id is required"),
			core.FieldError{Field: "student_id", Error: "this field is required"},
		)
	}
	date = core.DateOf(date)
	key := recordKey(studentID, date)

	rec, err := svc.repo.GetRecord(ctx, studentID, date)
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			return DailyRecord{}, err
		}
		// first write for this (student, date) pair
		if expectedVersion != 0 {
			return DailyRecord{}, core.NewConflictError("attendance record", key)
		}
		rec = DailyRecord{StudentID: studentID, Date: date, Version: 1}
		rec.setEntry(in.entry())
		created, err := svc.repo.CreateRecord(ctx, rec)
		if core.IsDuplicate(err) {
			// lost the race to another writer; surface as retryable
			return DailyRecord{}, core.NewConflictError("attendance record", key)
		}
		return created, err
	}

	if rec.Version != expectedVersion {
		return DailyRecord{}, core.NewConflictError("attendance record", key)
	}
	rec.setEntry(in.entry())
	rec.Version++
	return svc.repo.UpdateRecord(ctx, rec, expectedVersion)
}

func (svc *service) MonthRecords(ctx context.Context, studentID string, year int, month time.Month) ([]DailyRecord, error) {
	return svc.repo.QueryMonth(ctx, studentID, year, month)
}

// MonthlySummary folds the month's hourly entries into per-status counts and a
// percentage. The fold is commutative: only the final entry set matters, not
// the order writes happened in.
func (svc *service) MonthlySummary(ctx context.Context, studentID string, year int, month time.Month) (MonthlySummary, error) {
	recs, err := svc.repo.QueryMonth(ctx, studentID, year, month)
	if err != nil {
		return MonthlySummary{}, err
	}

	sum := MonthlySummary{
		StudentID: studentID,
		Year:      year,
		Month:     month,
		Counts:    make(map[Status]int, len(AllStatuses)),
	}
	for _, rec := range recs {
		for _, e := range rec.Hours {
			sum.Counts[e.Status]++
			sum.ExpectedHours++
		}
	}
	sum.PresentHours = sum.Counts[StatusPresent]
	if sum.ExpectedHours > 0 {
		sum.Percentage = float64(sum.PresentHours) / float64(sum.ExpectedHours) * 100
	}
	return sum, nil
}

// LeaveReasons returns the month's leave entries that carry a reason,
// ordered by date then hour. No leave entries is an empty slice, not an error.
func (svc *service) LeaveReasons(ctx context.Context, studentID string, year int, month time.Month) ([]LeaveReason, error) {
	recs, err := svc.repo.QueryMonth(ctx, studentID, year, month)
	if err != nil {
		return nil, err
	}

	reasons := make([]LeaveReason, 0)
	for _, rec := range recs { // records ascend by date, entries by hour
		for _, e := range rec.Hours {
			if e.Status == StatusLeave && e.Reason != "" {
				reasons = append(reasons, LeaveReason{Date: rec.Date, Hour: e.Hour, Reason: e.Reason})
			}
		}
	}
	return reasons, nil
}

func (svc *service) HasRecords(ctx context.Context, studentID string) (bool, error) {
	return svc.repo.HasRecords(ctx, studentID)
}

func recordKey(studentID string, date time.Time) string {
	return studentID + "/" + date.Format("2006-01-02")
}
