package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/sysdefaults"
)

type defaultsRepository struct {
	db *defaultsTable
}

func NewDefaultsRepository(db *DB) sysdefaults.Repository {
	return &defaultsRepository{db: db.defaults}
}

func (repo *defaultsRepository) Get(ctx context.Context) (sysdefaults.SystemDefaults, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if repo.db.row == nil {
		return sysdefaults.SystemDefaults{}, core.NewNotFoundError("system defaults", "1")
	}
	return *repo.db.row, nil
}

func (repo *defaultsRepository) Upsert(ctx context.Context, defs sysdefaults.SystemDefaults) (sysdefaults.SystemDefaults, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored := defs
	stored.CourseList = append([]string(nil), defs.CourseList...)
	repo.db.row = &stored
	return defs, nil
}

// DefaultsFeed is a channel-backed sysdefaults.Feed for tests and dry runs.
type DefaultsFeed struct {
	ch       chan sysdefaults.ChangeEvent
	closonce sync.Once
}

var _ sysdefaults.Feed = (*DefaultsFeed)(nil)

func NewDefaultsFeed() *DefaultsFeed {
	return &DefaultsFeed{ch: make(chan sysdefaults.ChangeEvent, 8)}
}

// Publish emits one change event to the feed.
func (f *DefaultsFeed) Publish(ev sysdefaults.ChangeEvent) { f.ch <- ev }

func (f *DefaultsFeed) Changes() <-chan sysdefaults.ChangeEvent { return f.ch }

func (f *DefaultsFeed) Close() error {
	f.closonce.Do(func() { close(f.ch) })
	return nil
}
