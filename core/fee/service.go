package fee

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/sysdefaults"
)

var (
	// errors
	ErrRecordNotFound = errors.New("fee record not found")
	ErrInvalidAmount  = errors.New("invalid payment amount")
)

type (
	Repository interface {
		// Create inserts a new record; it fails with a core.DuplicateError when
		// the student already has one.
		Create(ctx context.Context, rec Record) (Record, error)
		// Get returns the record by id or ErrRecordNotFound.
		Get(ctx context.Context, id string) (Record, error)
		// GetByStudent returns the student's record or ErrRecordNotFound.
		GetByStudent(ctx context.Context, studentID string) (Record, error)
		// Update persists the full record including any appended payments
		// atomically; no intermediate state is observable.
		Update(ctx context.Context, rec Record) (Record, error)
	}

	// DefaultsSource supplies the current system defaults (policy constants).
	DefaultsSource interface {
		Current() sysdefaults.SystemDefaults
	}

	Service interface {
		Create(ctx context.Context, nr NewRecord) (Record, error)
		Get(ctx context.Context, id string) (Record, error)
		GetByStudent(ctx context.Context, studentID string) (Record, error)
		RecordPayment(ctx context.Context, feeID string, np NewPayment) (Record, error)
		// ApplyGraceFee applies the grace-period surcharge when asOf is past the
		// grace window. A zero asOf means "now". Idempotent: once the late fee
		// flag is set, further calls are no-ops.
		ApplyGraceFee(ctx context.Context, feeID string, asOf time.Time, defs sysdefaults.SystemDefaults) (Record, error)
		Status(ctx context.Context, feeID string) (Status, error)
	}

	service struct {
		repo     Repository
		clock    core.Clock
		defaults DefaultsSource    // optional; drives notification flags
		mailSvc  core.EmailService // optional
	}
)

func NewService(repo Repository, clock core.Clock, defaults DefaultsSource, mailSvc core.EmailService) Service {
	return &service{repo: repo, clock: clock, defaults: defaults, mailSvc: mailSvc}
}

func (svc *service) Create(ctx context.Context, nr NewRecord) (Record, error) {
	if err := nr.Validate(); err != nil {
		return Record{}, err
	}
	now := svc.clock.Now()
	rec := Record{
		ID:             uuid.New().String(),
		StudentID:      nr.StudentID,
		TotalAmount:    nr.TotalAmount,
		DueDate:        core.DateOf(nr.DueDate),
		Payments:       []Payment{},
		GraceMonths:    nr.GraceMonths,
		GraceFeeAmount: nr.GraceFeeAmount,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	rec.recompute()
	return svc.repo.Create(ctx, rec)
}

func (svc *service) Get(ctx context.Context, id string) (Record, error) {
	return svc.repo.Get(ctx, id)
}

func (svc *service) GetByStudent(ctx context.Context, studentID string) (Record, error) {
	return svc.repo.GetByStudent(ctx, core.CleanString(studentID))
}

// RecordPayment appends a payment and recomputes the amounts and status in one
// atomic store write. Regular payments may not exceed the due amount;
// grace-fee payments are a separate surcharge and are exempt from that ceiling.
func (svc *service) RecordPayment(ctx context.Context, feeID string, np NewPayment) (Record, error) {
	if err := np.Validate(); err != nil {
		return Record{}, err
	}

	rec, err := svc.repo.Get(ctx, feeID)
	if err != nil {
		return Record{}, err
	}
	if np.Type == TypeRegular && np.Amount > rec.DueAmount {
		return Record{}, core.NewValidationError(
			ErrInvalidAmount,
			core.FieldError{Field: "amount", Error: "amount exceeds the due amount"},
		)
	}

	rec.PaidAmount += np.Amount
	rec.recompute()
	pmt := Payment{
		ID:                 uuid.New().String(),
		Amount:             np.Amount,
		Date:               svc.clock.Now(),
		Method:             np.Method,
		Reference:          np.Reference,
		SlipURL:            np.SlipURL,
		Type:               np.Type,
		RemainingDueAmount: rec.DueAmount,
	}
	rec.Payments = append(rec.Payments, pmt)
	rec.UpdatedAt = svc.clock.Now()

	saved, err := svc.repo.Update(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	svc.notifyPayment(saved, pmt)
	return saved, nil
}

func (svc *service) ApplyGraceFee(ctx context.Context, feeID string, asOf time.Time, defs sysdefaults.SystemDefaults) (Record, error) {
	rec, err := svc.repo.Get(ctx, feeID)
	if err != nil {
		return Record{}, err
	}
	if rec.IsLateFeeApplied {
		// already surcharged; repeated scheduled evaluation is a no-op
		return rec, nil
	}
	if asOf.IsZero() {
		asOf = svc.clock.Now()
	}

	graceMonths, graceFee := gracePolicy(rec, defs)
	if core.MonthsElapsed(rec.DueDate, asOf) <= graceMonths {
		return rec, nil
	}

	rec.TotalAmount += graceFee
	rec.recompute()
	rec.GraceUntilDate = core.DateOf(rec.DueDate).AddDate(0, graceMonths, 0)
	rec.IsLateFeeApplied = true
	rec.UpdatedAt = svc.clock.Now()

	saved, err := svc.repo.Update(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	svc.notifyGraceFee(saved, graceFee)
	return saved, nil
}

func (svc *service) Status(ctx context.Context, feeID string) (Status, error) {
	rec, err := svc.repo.Get(ctx, feeID)
	if err != nil {
		return "", err
	}
	return statusOf(rec.DueAmount, rec.PaidAmount), nil
}

// gracePolicy resolves the grace window: a per-student override wins when set,
// otherwise the system defaults apply.
func gracePolicy(rec Record, defs sysdefaults.SystemDefaults) (months int, fee float64) {
	months = defs.GracePeriodMonths
	if rec.GraceMonths > 0 {
		months = rec.GraceMonths
	}
	fee = defs.GraceFee
	if rec.GraceFeeAmount > 0 {
		fee = rec.GraceFeeAmount
	}
	return months, fee
}

func (svc *service) notifyPayment(rec Record, pmt Payment) {
	if svc.mailSvc == nil || svc.defaults == nil {
		return
	}
	defs := svc.defaults.Current()
	if !defs.NotifFee {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		Subject: fmt.Sprintf("Payment received for student %s", rec.StudentID),
		Body: fmt.Sprintf(
			"Recorded a %s payment of %.2f %s for student %s. Remaining due: %.2f %s.",
			pmt.Method, pmt.Amount, defs.Currency, rec.StudentID, pmt.RemainingDueAmount, defs.Currency,
		),
	})
}

func (svc *service) notifyGraceFee(rec Record, graceFee float64) {
	if svc.mailSvc == nil || svc.defaults == nil {
		return
	}
	defs := svc.defaults.Current()
	if !defs.NotifFee {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		Subject: fmt.Sprintf("Grace fee applied for student %s", rec.StudentID),
		Body: fmt.Sprintf(
			"Applied a grace fee of %.2f %s for student %s. Total due is now %.2f %s.",
			graceFee, defs.Currency, rec.StudentID, rec.DueAmount, defs.Currency,
		),
	})
}
