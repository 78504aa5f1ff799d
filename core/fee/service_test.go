package fee

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/sysdefaults"
	emailsvc "github.com/trezcool/shule/services/email"
)

type fakeRepo struct {
	byID      map[string]Record
	byStudent map[string]string // studentID -> feeID
}

var _ Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: make(map[string]Record), byStudent: make(map[string]string)}
}

func copyRec(rec Record) Record {
	cp := rec
	cp.Payments = append([]Payment(nil), rec.Payments...)
	return cp
}

func (r *fakeRepo) Create(_ context.Context, rec Record) (Record, error) {
	if _, ok := r.byStudent[rec.StudentID]; ok {
		return Record{}, core.NewDuplicateError("fee record", rec.StudentID)
	}
	r.byID[rec.ID] = copyRec(rec)
	r.byStudent[rec.StudentID] = rec.ID
	return rec, nil
}

func (r *fakeRepo) Get(_ context.Context, id string) (Record, error) {
	rec, ok := r.byID[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return copyRec(rec), nil
}

func (r *fakeRepo) GetByStudent(ctx context.Context, studentID string) (Record, error) {
	id, ok := r.byStudent[studentID]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return r.Get(ctx, id)
}

func (r *fakeRepo) Update(_ context.Context, rec Record) (Record, error) {
	if _, ok := r.byID[rec.ID]; !ok {
		return Record{}, ErrRecordNotFound
	}
	r.byID[rec.ID] = copyRec(rec)
	return rec, nil
}

type defaultsStub struct {
	defs sysdefaults.SystemDefaults
}

func (s defaultsStub) Current() sysdefaults.SystemDefaults { return s.defs }

func testDefaults() sysdefaults.SystemDefaults {
	defs := sysdefaults.HardDefaults()
	defs.Version = 1
	return defs
}

func Test_service_Create(t *testing.T) {
	ctx := context.Background()
	dueDate := core.Date(2024, time.January, 1)

	tests := []struct {
		name    string
		nr      NewRecord
		wantErr bool
	}{
		{name: "no student id", nr: NewRecord{TotalAmount: 10000, DueDate: dueDate}, wantErr: true},
		{name: "no total", nr: NewRecord{StudentID: "STU-1", DueDate: dueDate}, wantErr: true},
		{name: "negative total", nr: NewRecord{StudentID: "STU-1", TotalAmount: -1, DueDate: dueDate}, wantErr: true},
		{name: "no due date", nr: NewRecord{StudentID: "STU-1", TotalAmount: 10000}, wantErr: true},
		{name: "ok", nr: NewRecord{StudentID: "STU-1", TotalAmount: 10000, DueDate: dueDate}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(newFakeRepo(), nil, nil, nil)

			rec, err := svc.Create(ctx, tt.nr)
			if tt.wantErr {
				assert.True(t, core.IsValidationError(err), "Create() error = %v, want a validation error", err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, rec.ID)
			assert.Equal(t, 10000.0, rec.TotalAmount)
			assert.Equal(t, 10000.0, rec.DueAmount)
			assert.Equal(t, 0.0, rec.PaidAmount)
			assert.Equal(t, StatusUnpaid, rec.Status)
			assert.Empty(t, rec.Payments)
		})
	}

	t.Run("one record per student", func(t *testing.T) {
		svc := NewService(newFakeRepo(), nil, nil, nil)
		nr := NewRecord{StudentID: "STU-1", TotalAmount: 10000, DueDate: dueDate}

		_, err := svc.Create(ctx, nr)
		require.NoError(t, err)
		_, err = svc.Create(ctx, nr)
		assert.True(t, core.IsDuplicate(err), "Create() error = %v, want a duplicate error", err)
	})
}

func Test_service_RecordPayment(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeRepo(), nil, nil, nil)

	rec, err := svc.Create(ctx, NewRecord{
		StudentID:   "STU-1",
		TotalAmount: 10000,
		DueDate:     core.Date(2024, time.January, 1),
	})
	require.NoError(t, err)

	t.Run("validation", func(t *testing.T) {
		for _, np := range []NewPayment{
			{Method: MethodCash},                                  // no amount
			{Amount: -5, Method: MethodCash},                      // negative amount
			{Amount: 100, Method: "iou"},                          // unknown method
			{Amount: 100, Method: MethodCash, Type: "donation"},   // unknown type
			{Amount: 100, Method: MethodCash, SlipURL: "not-url"}, // bad slip url
		} {
			_, err := svc.RecordPayment(ctx, rec.ID, np)
			assert.True(t, core.IsValidationError(err), "RecordPayment(%+v) error = %v, want a validation error", np, err)
		}
	})

	t.Run("unknown fee record", func(t *testing.T) {
		_, err := svc.RecordPayment(ctx, "nope", NewPayment{Amount: 100, Method: MethodCash})
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("partial then settling payment", func(t *testing.T) {
		got, err := svc.RecordPayment(ctx, rec.ID, NewPayment{Amount: 4000, Method: MethodCash})
		require.NoError(t, err)
		assert.Equal(t, 4000.0, got.PaidAmount)
		assert.Equal(t, 6000.0, got.DueAmount)
		assert.Equal(t, StatusPartiallyPaid, got.Status)
		require.Len(t, got.Payments, 1)
		assert.Equal(t, TypeRegular, got.Payments[0].Type)
		assert.Equal(t, 6000.0, got.Payments[0].RemainingDueAmount)
		assert.NotEmpty(t, got.Payments[0].ID)

		got, err = svc.RecordPayment(ctx, rec.ID, NewPayment{Amount: 6000, Method: MethodBankTransfer, Reference: "TXN_42"})
		require.NoError(t, err)
		assert.Equal(t, 10000.0, got.PaidAmount)
		assert.Equal(t, 0.0, got.DueAmount)
		assert.Equal(t, StatusPaid, got.Status)
		require.Len(t, got.Payments, 2)
		assert.Equal(t, 0.0, got.Payments[1].RemainingDueAmount)

		status, err := svc.Status(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPaid, status)
	})

	t.Run("regular payment may not exceed due", func(t *testing.T) {
		_, err := svc.RecordPayment(ctx, rec.ID, NewPayment{Amount: 1, Method: MethodCash})
		require.True(t, core.IsValidationError(err), "RecordPayment() error = %v, want a validation error", err)
	})

	t.Run("grace fee payment is exempt from the ceiling", func(t *testing.T) {
		got, err := svc.RecordPayment(ctx, rec.ID, NewPayment{Amount: 500, Method: MethodCash, Type: TypeGraceFee})
		require.NoError(t, err)
		assert.Equal(t, 10500.0, got.PaidAmount)
		assert.Equal(t, -500.0, got.DueAmount)
		assert.Equal(t, StatusPaid, got.Status)
	})
}

func Test_service_RecordPayment_dueEqualsTotalMinusPaid(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeRepo(), nil, nil, nil)

	rec, err := svc.Create(ctx, NewRecord{
		StudentID:   "STU-1",
		TotalAmount: 10000,
		DueDate:     core.Date(2024, time.January, 1),
	})
	require.NoError(t, err)

	for _, amount := range []float64{1500, 2500, 500, 3500} {
		got, err := svc.RecordPayment(ctx, rec.ID, NewPayment{Amount: amount, Method: MethodOnline})
		require.NoError(t, err)
		assert.Equal(t, got.TotalAmount-got.PaidAmount, got.DueAmount)
		assert.Equal(t, got.DueAmount, got.Payments[len(got.Payments)-1].RemainingDueAmount)
	}
}

func Test_service_ApplyGraceFee(t *testing.T) {
	ctx := context.Background()
	defs := testDefaults() // 2 grace months, 500 grace fee
	dueDate := core.Date(2024, time.January, 1)

	newRec := func(t *testing.T, svc Service, nr NewRecord) Record {
		t.Helper()
		rec, err := svc.Create(ctx, nr)
		require.NoError(t, err)
		return rec
	}

	t.Run("within grace window", func(t *testing.T) {
		svc := NewService(newFakeRepo(), nil, nil, nil)
		rec := newRec(t, svc, NewRecord{StudentID: "STU-1", TotalAmount: 10000, DueDate: dueDate})

		got, err := svc.ApplyGraceFee(ctx, rec.ID, core.Date(2024, time.March, 1), defs)
		require.NoError(t, err)
		assert.Equal(t, 10000.0, got.TotalAmount)
		assert.False(t, got.IsLateFeeApplied)
	})

	t.Run("past grace window, applied exactly once", func(t *testing.T) {
		svc := NewService(newFakeRepo(), nil, nil, nil)
		rec := newRec(t, svc, NewRecord{StudentID: "STU-1", TotalAmount: 10000, DueDate: dueDate})
		asOf := core.Date(2024, time.April, 1)

		got, err := svc.ApplyGraceFee(ctx, rec.ID, asOf, defs)
		require.NoError(t, err)
		assert.Equal(t, 10500.0, got.TotalAmount)
		assert.Equal(t, 10500.0, got.DueAmount)
		assert.True(t, got.IsLateFeeApplied)
		assert.Equal(t, core.Date(2024, time.March, 1), got.GraceUntilDate)

		// scheduled evaluation runs again; the surcharge must not stack
		got, err = svc.ApplyGraceFee(ctx, rec.ID, asOf, defs)
		require.NoError(t, err)
		assert.Equal(t, 10500.0, got.TotalAmount)

		got, err = svc.ApplyGraceFee(ctx, rec.ID, core.Date(2024, time.December, 1), defs)
		require.NoError(t, err)
		assert.Equal(t, 10500.0, got.TotalAmount)
	})

	t.Run("per-student overrides win", func(t *testing.T) {
		svc := NewService(newFakeRepo(), nil, nil, nil)
		rec := newRec(t, svc, NewRecord{
			StudentID: "STU-1", TotalAmount: 10000, DueDate: dueDate,
			GraceMonths: 4, GraceFeeAmount: 750,
		})

		// 3 months elapsed: inside the 4-month override window
		got, err := svc.ApplyGraceFee(ctx, rec.ID, core.Date(2024, time.April, 1), defs)
		require.NoError(t, err)
		assert.False(t, got.IsLateFeeApplied)

		got, err = svc.ApplyGraceFee(ctx, rec.ID, core.Date(2024, time.June, 1), defs)
		require.NoError(t, err)
		assert.True(t, got.IsLateFeeApplied)
		assert.Equal(t, 10750.0, got.TotalAmount)
		assert.Equal(t, core.Date(2024, time.May, 1), got.GraceUntilDate)
	})

	t.Run("zero asOf means now", func(t *testing.T) {
		svc := NewService(newFakeRepo(), core.ClockAt(core.Date(2024, time.April, 1)), nil, nil)
		rec := newRec(t, svc, NewRecord{StudentID: "STU-1", TotalAmount: 10000, DueDate: dueDate})

		got, err := svc.ApplyGraceFee(ctx, rec.ID, time.Time{}, defs)
		require.NoError(t, err)
		assert.True(t, got.IsLateFeeApplied)
	})
}

func Test_service_notifications(t *testing.T) {
	ctx := context.Background()
	defs := testDefaults()

	newSvc := func(notifFee bool) Service {
		d := defs
		d.NotifFee = notifFee
		mailSvc := emailsvc.NewConsoleServiceMock(&core.Config{AppName: "Shule"})
		return NewService(newFakeRepo(), nil, defaultsStub{defs: d}, mailSvc)
	}

	t.Run("payment notifies when enabled", func(t *testing.T) {
		emailsvc.ClearSentMessages()
		svc := newSvc(true)
		rec, err := svc.Create(ctx, NewRecord{StudentID: "STU-1", TotalAmount: 10000, DueDate: core.Date(2024, time.January, 1)})
		require.NoError(t, err)

		_, err = svc.RecordPayment(ctx, rec.ID, NewPayment{Amount: 4000, Method: MethodCash})
		require.NoError(t, err)
		require.Len(t, emailsvc.SentMessages, 1)
		assert.Contains(t, emailsvc.SentMessages[0].Subject, "STU-1")
	})

	t.Run("muted when the flag is off", func(t *testing.T) {
		emailsvc.ClearSentMessages()
		svc := newSvc(false)
		rec, err := svc.Create(ctx, NewRecord{StudentID: "STU-1", TotalAmount: 10000, DueDate: core.Date(2024, time.January, 1)})
		require.NoError(t, err)

		_, err = svc.RecordPayment(ctx, rec.ID, NewPayment{Amount: 4000, Method: MethodCash})
		require.NoError(t, err)
		assert.Empty(t, emailsvc.SentMessages)
	})

	t.Run("grace fee notifies when enabled", func(t *testing.T) {
		emailsvc.ClearSentMessages()
		svc := newSvc(true)
		rec, err := svc.Create(ctx, NewRecord{StudentID: "STU-1", TotalAmount: 10000, DueDate: core.Date(2024, time.January, 1)})
		require.NoError(t, err)

		_, err = svc.ApplyGraceFee(ctx, rec.ID, core.Date(2024, time.April, 1), defs)
		require.NoError(t, err)
		require.Len(t, emailsvc.SentMessages, 1)
		assert.Contains(t, emailsvc.SentMessages[0].Subject, "Grace fee")
	})
}
