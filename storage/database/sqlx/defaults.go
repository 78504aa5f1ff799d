package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/sysdefaults"
)

// DefaultsChannel is the Postgres NOTIFY channel (and feed table key) for
// system defaults changes.
const DefaultsChannel = "system_defaults"

type defaultsRepository struct {
	db *sqlx.DB
}

func NewDefaultsRepository(db *sqlx.DB) sysdefaults.Repository {
	return &defaultsRepository{db: db}
}

type defaultsRow struct {
	ID                  int            `db:"id"`
	GracePeriodMonths   int            `db:"grace_period_months"`
	GraceFee            float64        `db:"grace_fee"`
	BatchFormat         string         `db:"batch_format"`
	CourseList          pq.StringArray `db:"course_list"`
	NotifFee            bool           `db:"notif_fee"`
	NotifAttendance     bool           `db:"notif_attendance"`
	NotifSystem         bool           `db:"notif_system"`
	MinPayment          float64        `db:"min_payment"`
	AttendanceThreshold float64        `db:"attendance_threshold"`
	Currency            string         `db:"currency"`
	Version             int            `db:"version"`
}

func (r defaultsRow) defaults() sysdefaults.SystemDefaults {
	return sysdefaults.SystemDefaults{
		GracePeriodMonths:   r.GracePeriodMonths,
		GraceFee:            r.GraceFee,
		BatchFormat:         r.BatchFormat,
		CourseList:          append([]string(nil), r.CourseList...),
		NotifFee:            r.NotifFee,
		NotifAttendance:     r.NotifAttendance,
		NotifSystem:         r.NotifSystem,
		MinPayment:          r.MinPayment,
		AttendanceThreshold: r.AttendanceThreshold,
		Currency:            r.Currency,
		Version:             r.Version,
	}
}

func newDefaultsRow(defs sysdefaults.SystemDefaults) defaultsRow {
	return defaultsRow{
		ID:                  1,
		GracePeriodMonths:   defs.GracePeriodMonths,
		GraceFee:            defs.GraceFee,
		BatchFormat:         defs.BatchFormat,
		CourseList:          pq.StringArray(defs.CourseList),
		NotifFee:            defs.NotifFee,
		NotifAttendance:     defs.NotifAttendance,
		NotifSystem:         defs.NotifSystem,
		MinPayment:          defs.MinPayment,
		AttendanceThreshold: defs.AttendanceThreshold,
		Currency:            defs.Currency,
		Version:             defs.Version,
	}
}

func (repo *defaultsRepository) Get(ctx context.Context) (sysdefaults.SystemDefaults, error) {
	var row defaultsRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM system_defaults WHERE id = 1`)
	if err == sql.ErrNoRows {
		return sysdefaults.SystemDefaults{}, core.NewNotFoundError("system defaults", "1")
	}
	if err != nil {
		return sysdefaults.SystemDefaults{}, core.NewUnavailableError("get", "system defaults", "1", err)
	}
	return row.defaults(), nil
}

// Upsert writes the single defaults row and notifies the change feed in the
// same transaction, so listeners never see a version they cannot read back.
func (repo *defaultsRepository) Upsert(ctx context.Context, defs sysdefaults.SystemDefaults) (sysdefaults.SystemDefaults, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return sysdefaults.SystemDefaults{}, core.NewUnavailableError("upsert", "system defaults", "1", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := newDefaultsRow(defs)
	var inserted bool
	rows, err := tx.NamedQuery(
		`INSERT INTO system_defaults (
			id, grace_period_months, grace_fee, batch_format, course_list,
			notif_fee, notif_attendance, notif_system, min_payment,
			attendance_threshold, currency, version
		 ) VALUES (
			:id, :grace_period_months, :grace_fee, :batch_format, :course_list,
			:notif_fee, :notif_attendance, :notif_system, :min_payment,
			:attendance_threshold, :currency, :version
		 )
		 ON CONFLICT (id) DO UPDATE SET
			grace_period_months = EXCLUDED.grace_period_months,
			grace_fee = EXCLUDED.grace_fee,
			batch_format = EXCLUDED.batch_format,
			course_list = EXCLUDED.course_list,
			notif_fee = EXCLUDED.notif_fee,
			notif_attendance = EXCLUDED.notif_attendance,
			notif_system = EXCLUDED.notif_system,
			min_payment = EXCLUDED.min_payment,
			attendance_threshold = EXCLUDED.attendance_threshold,
			currency = EXCLUDED.currency,
			version = EXCLUDED.version
		 RETURNING (xmax = 0) AS inserted`, row)
	if err != nil {
		return sysdefaults.SystemDefaults{}, core.NewUnavailableError("upsert", "system defaults", "1", err)
	}
	for rows.Next() {
		if err = rows.Scan(&inserted); err != nil {
			_ = rows.Close()
			return sysdefaults.SystemDefaults{}, core.NewUnavailableError("upsert", "system defaults", "1", err)
		}
	}
	if err = rows.Close(); err != nil {
		return sysdefaults.SystemDefaults{}, core.NewUnavailableError("upsert", "system defaults", "1", err)
	}

	event := "update"
	if inserted {
		event = "insert"
	}
	payload, err := json.Marshal(sysdefaults.ChangeEnvelope{Event: event, NewRow: defs})
	if err != nil {
		return sysdefaults.SystemDefaults{}, errors.Wrap(err, "encoding change notification")
	}
	if _, err = tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, DefaultsChannel, string(payload)); err != nil {
		return sysdefaults.SystemDefaults{}, core.NewUnavailableError("notify", "system defaults", "1", err)
	}

	if err = tx.Commit(); err != nil {
		return sysdefaults.SystemDefaults{}, core.NewUnavailableError("upsert", "system defaults", "1", err)
	}
	return defs, nil
}
