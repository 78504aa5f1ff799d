package fee

import (
	"time"

	"github.com/trezcool/shule/core"
)

type Status string

const (
	StatusPaid          Status = "paid"
	StatusPartiallyPaid Status = "partially_paid"
	StatusUnpaid        Status = "unpaid"
)

type Method string

const (
	MethodCash         Method = "cash"
	MethodBankTransfer Method = "bank_transfer"
	MethodOnline       Method = "online"
	MethodCheck        Method = "check"
)

// Valid returns true when the method is a supported value.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodOnline, MethodCheck:
		return true
	default:
		return false
	}
}

type PaymentType string

const (
	TypeRegular  PaymentType = "regular"
	TypeGraceFee PaymentType = "grace_fee"
)

func (t PaymentType) Valid() bool {
	return t == TypeRegular || t == TypeGraceFee
}

// Payment is one entry in a fee record's payment history.
// RemainingDueAmount snapshots the due amount immediately after this payment
// was appended, an auditable running balance independent of later mutations.
type Payment struct {
	ID                 string      `json:"id"`
	Amount             float64     `json:"amount"`
	Date               time.Time   `json:"date"`
	Method             Method      `json:"method"`
	Reference          string      `json:"reference,omitempty"`
	SlipURL            string      `json:"slip_url,omitempty"`
	Type               PaymentType `json:"type"`
	RemainingDueAmount float64     `json:"remaining_due_amount"`
}

// Record is a student's fee ledger entry. At most one exists per student.
// DueAmount is always recomputed as TotalAmount - PaidAmount and Status is a
// pure function of the amounts; neither is ever set independently.
type Record struct {
	ID               string    `json:"id"`
	StudentID        string    `json:"student_id"`
	TotalAmount      float64   `json:"total_amount"`
	PaidAmount       float64   `json:"paid_amount"`
	DueAmount        float64   `json:"due_amount"`
	DueDate          time.Time `json:"due_date"`
	Status           Status    `json:"status"`
	Payments         []Payment `json:"payments"`
	GraceMonths      int       `json:"grace_months"`       // per-student override; 0 = use system default
	GraceFeeAmount   float64   `json:"grace_fee_amount"`   // per-student override; 0 = use system default
	GraceUntilDate   time.Time `json:"grace_until_date"`   // zero until the grace fee is applied
	IsLateFeeApplied bool      `json:"is_late_fee_applied"`
	CreatedAt        time.Time `json:"created_at"` // UTC
	UpdatedAt        time.Time `json:"updated_at"` // UTC
}

// recompute derives DueAmount and Status from the amounts.
func (r *Record) recompute() {
	r.DueAmount = r.TotalAmount - r.PaidAmount
	r.Status = statusOf(r.DueAmount, r.PaidAmount)
}

func statusOf(due, paid float64) Status {
	switch {
	case due <= 0:
		return StatusPaid
	case paid == 0:
		return StatusUnpaid
	default:
		return StatusPartiallyPaid
	}
}

// NewRecord contains information needed to enroll a student into fee tracking.
type NewRecord struct {
	StudentID      string    `json:"student_id" validate:"required"`
	TotalAmount    float64   `json:"total_amount" validate:"required,gt=0"`
	DueDate        time.Time `json:"due_date" validate:"required"`
	GraceMonths    int       `json:"grace_months" validate:"omitempty,min=0"`
	GraceFeeAmount float64   `json:"grace_fee_amount" validate:"omitempty,min=0"`
}

func (nr *NewRecord) Validate() error {
	nr.StudentID = core.CleanString(nr.StudentID)
	return core.Validate.Struct(nr)
}

// NewPayment contains information needed to record a payment.
type NewPayment struct {
	Amount    float64     `json:"amount" validate:"required,gt=0"`
	Method    Method      `json:"method" validate:"required,feemethod"`
	Reference string      `json:"reference" validate:"omitempty,alphanum_"`
	SlipURL   string      `json:"slip_url" validate:"omitempty,url"`
	Type      PaymentType `json:"type" validate:"omitempty,feetype"`
}

func (np *NewPayment) Validate() error {
	np.Reference = core.CleanString(np.Reference)
	np.SlipURL = core.CleanString(np.SlipURL)
	if np.Type == "" {
		np.Type = TypeRegular
	}
	return core.Validate.Struct(np)
}
