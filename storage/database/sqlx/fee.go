package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/fee"
)

const pqUniqueViolation = "23505"

type feeRepository struct {
	db *sqlx.DB
}

func NewFeeRepository(db *sqlx.DB) fee.Repository {
	return &feeRepository{db: db}
}

type feeRow struct {
	ID               string    `db:"id"`
	StudentID        string    `db:"student_id"`
	TotalAmount      float64   `db:"total_amount"`
	PaidAmount       float64   `db:"paid_amount"`
	DueAmount        float64   `db:"due_amount"`
	DueDate          time.Time `db:"due_date"`
	Status           string    `db:"status"`
	GraceMonths      int       `db:"grace_months"`
	GraceFeeAmount   float64   `db:"grace_fee_amount"`
	GraceUntilDate   null.Time `db:"grace_until_date"`
	IsLateFeeApplied bool      `db:"is_late_fee_applied"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r feeRow) record() fee.Record {
	rec := fee.Record{
		ID:               r.ID,
		StudentID:        r.StudentID,
		TotalAmount:      r.TotalAmount,
		PaidAmount:       r.PaidAmount,
		DueAmount:        r.DueAmount,
		DueDate:          core.DateOf(r.DueDate),
		Status:           fee.Status(r.Status),
		Payments:         []fee.Payment{},
		GraceMonths:      r.GraceMonths,
		GraceFeeAmount:   r.GraceFeeAmount,
		IsLateFeeApplied: r.IsLateFeeApplied,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
	if r.GraceUntilDate.Valid {
		rec.GraceUntilDate = core.DateOf(r.GraceUntilDate.Time)
	}
	return rec
}

func newFeeRow(rec fee.Record) feeRow {
	row := feeRow{
		ID:               rec.ID,
		StudentID:        rec.StudentID,
		TotalAmount:      rec.TotalAmount,
		PaidAmount:       rec.PaidAmount,
		DueAmount:        rec.DueAmount,
		DueDate:          rec.DueDate,
		Status:           string(rec.Status),
		GraceMonths:      rec.GraceMonths,
		GraceFeeAmount:   rec.GraceFeeAmount,
		IsLateFeeApplied: rec.IsLateFeeApplied,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
	if !rec.GraceUntilDate.IsZero() {
		row.GraceUntilDate = null.TimeFrom(rec.GraceUntilDate)
	}
	return row
}

type paymentRow struct {
	ID                 string      `db:"id"`
	FeeID              string      `db:"fee_id"`
	Position           int         `db:"position"`
	Amount             float64     `db:"amount"`
	Date               time.Time   `db:"date"`
	Method             string      `db:"method"`
	Reference          null.String `db:"reference"`
	SlipURL            null.String `db:"slip_url"`
	Type               string      `db:"type"`
	RemainingDueAmount float64     `db:"remaining_due_amount"`
}

func (r paymentRow) payment() fee.Payment {
	return fee.Payment{
		ID:                 r.ID,
		Amount:             r.Amount,
		Date:               r.Date.UTC(),
		Method:             fee.Method(r.Method),
		Reference:          r.Reference.String,
		SlipURL:            r.SlipURL.String,
		Type:               fee.PaymentType(r.Type),
		RemainingDueAmount: r.RemainingDueAmount,
	}
}

func newPaymentRow(feeID string, pos int, pmt fee.Payment) paymentRow {
	return paymentRow{
		ID:                 pmt.ID,
		FeeID:              feeID,
		Position:           pos,
		Amount:             pmt.Amount,
		Date:               pmt.Date,
		Method:             string(pmt.Method),
		Reference:          null.NewString(pmt.Reference, pmt.Reference != ""),
		SlipURL:            null.NewString(pmt.SlipURL, pmt.SlipURL != ""),
		Type:               string(pmt.Type),
		RemainingDueAmount: pmt.RemainingDueAmount,
	}
}

func (repo *feeRepository) Create(ctx context.Context, rec fee.Record) (fee.Record, error) {
	row := newFeeRow(rec)
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO fee_record (
			id, student_id, total_amount, paid_amount, due_amount, due_date, status,
			grace_months, grace_fee_amount, grace_until_date, is_late_fee_applied,
			created_at, updated_at
		 ) VALUES (
			:id, :student_id, :total_amount, :paid_amount, :due_amount, :due_date, :status,
			:grace_months, :grace_fee_amount, :grace_until_date, :is_late_fee_applied,
			:created_at, :updated_at
		 )`, row)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return fee.Record{}, core.NewDuplicateError("fee record", rec.StudentID)
		}
		return fee.Record{}, core.NewUnavailableError("create", "fee record", rec.ID, err)
	}
	return rec, nil
}

func (repo *feeRepository) Get(ctx context.Context, id string) (fee.Record, error) {
	return repo.get(ctx, `SELECT * FROM fee_record WHERE id = $1`, id)
}

func (repo *feeRepository) GetByStudent(ctx context.Context, studentID string) (fee.Record, error) {
	return repo.get(ctx, `SELECT * FROM fee_record WHERE student_id = $1`, studentID)
}

func (repo *feeRepository) get(ctx context.Context, query, arg string) (fee.Record, error) {
	var row feeRow
	err := repo.db.GetContext(ctx, &row, query, arg)
	if err == sql.ErrNoRows {
		return fee.Record{}, fee.ErrRecordNotFound
	}
	if err != nil {
		return fee.Record{}, core.NewUnavailableError("get", "fee record", arg, err)
	}

	rec := row.record()
	var pmtRows []paymentRow
	err = repo.db.SelectContext(ctx, &pmtRows,
		`SELECT * FROM payment WHERE fee_id = $1 ORDER BY position`, rec.ID,
	)
	if err != nil {
		return fee.Record{}, core.NewUnavailableError("get payments", "fee record", rec.ID, err)
	}
	for _, pr := range pmtRows {
		rec.Payments = append(rec.Payments, pr.payment())
	}
	return rec, nil
}

// Update rewrites the record row and appends any new payments in one
// transaction; callers never observe a half-applied payment.
func (repo *feeRepository) Update(ctx context.Context, rec fee.Record) (fee.Record, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return fee.Record{}, core.NewUnavailableError("update", "fee record", rec.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	row := newFeeRow(rec)
	res, err := tx.NamedExecContext(ctx,
		`UPDATE fee_record SET
			total_amount = :total_amount, paid_amount = :paid_amount,
			due_amount = :due_amount, due_date = :due_date, status = :status,
			grace_months = :grace_months, grace_fee_amount = :grace_fee_amount,
			grace_until_date = :grace_until_date, is_late_fee_applied = :is_late_fee_applied,
			updated_at = :updated_at
		 WHERE id = :id`, row)
	if err != nil {
		return fee.Record{}, core.NewUnavailableError("update", "fee record", rec.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fee.Record{}, fee.ErrRecordNotFound
	}

	for i, pmt := range rec.Payments {
		pr := newPaymentRow(rec.ID, i, pmt)
		_, err = tx.NamedExecContext(ctx,
			`INSERT INTO payment (
				id, fee_id, position, amount, date, method, reference, slip_url, type, remaining_due_amount
			 ) VALUES (
				:id, :fee_id, :position, :amount, :date, :method, :reference, :slip_url, :type, :remaining_due_amount
			 ) ON CONFLICT (id) DO NOTHING`, pr)
		if err != nil {
			return fee.Record{}, core.NewUnavailableError("append payment", "fee record", rec.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fee.Record{}, core.NewUnavailableError("update", "fee record", rec.ID, err)
	}
	return rec, nil
}
