package inmemdb

import (
	"context"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/fee"
)

type feeRepository struct {
	db *feeTable
}

func NewFeeRepository(db *DB) fee.Repository {
	return &feeRepository{db: db.fees}
}

func copyFee(rec fee.Record) fee.Record {
	cp := rec
	cp.Payments = append([]fee.Payment(nil), rec.Payments...)
	return cp
}

func (repo *feeRepository) Create(ctx context.Context, rec fee.Record) (fee.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.byStudent[rec.StudentID]; ok {
		return fee.Record{}, core.NewDuplicateError("fee record", rec.StudentID)
	}
	stored := copyFee(rec)
	repo.db.table[rec.ID] = &stored
	repo.db.byStudent[rec.StudentID] = rec.ID
	return copyFee(stored), nil
}

func (repo *feeRepository) Get(ctx context.Context, id string) (fee.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.table[id]; ok {
		return copyFee(*rec), nil
	}
	return fee.Record{}, fee.ErrRecordNotFound
}

func (repo *feeRepository) GetByStudent(ctx context.Context, studentID string) (fee.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if id, ok := repo.db.byStudent[studentID]; ok {
		return copyFee(*repo.db.table[id]), nil
	}
	return fee.Record{}, fee.ErrRecordNotFound
}

func (repo *feeRepository) Update(ctx context.Context, rec fee.Record) (fee.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[rec.ID]; !ok {
		return fee.Record{}, fee.ErrRecordNotFound
	}
	stored := copyFee(rec)
	repo.db.table[rec.ID] = &stored
	return copyFee(stored), nil
}
