package database

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/sysdefaults"
	sqlxrepos "github.com/trezcool/shule/storage/database/sqlx"
)

// defaultsFeed streams system-defaults changes over Postgres LISTEN/NOTIFY.
// The defaults repository raises pg_notify in the same transaction as every
// upsert, so updates from other processes arrive here too.
type defaultsFeed struct {
	listener *pq.Listener
	logger   core.Logger
	ch       chan sysdefaults.ChangeEvent
	done     chan struct{}
	closonce sync.Once
}

var _ sysdefaults.Feed = (*defaultsFeed)(nil)

func NewDefaultsFeed(conf *core.Config, logger core.Logger) (sysdefaults.Feed, error) {
	listener := pq.NewListener(ConnString(conf), 10*time.Second, time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil && logger != nil {
				logger.Warn("defaults feed listener event", err)
			}
		})
	if err := listener.Listen(sqlxrepos.DefaultsChannel); err != nil {
		_ = listener.Close()
		return nil, errors.Wrap(err, "listening on "+sqlxrepos.DefaultsChannel)
	}

	f := &defaultsFeed{
		listener: listener,
		logger:   logger,
		ch:       make(chan sysdefaults.ChangeEvent, 8),
		done:     make(chan struct{}),
	}
	go f.loop()
	return f, nil
}

func (f *defaultsFeed) loop() {
	defer close(f.ch)
	for {
		select {
		case <-f.done:
			return
		case n := <-f.listener.Notify:
			if n == nil { // reconnect signal
				continue
			}
			var env sysdefaults.ChangeEnvelope
			if err := json.Unmarshal([]byte(n.Extra), &env); err != nil {
				if f.logger != nil {
					f.logger.Warn("decoding defaults feed payload", err)
				}
				continue
			}
			select {
			case f.ch <- sysdefaults.ChangeEvent{Table: n.Channel, Event: env.Event, Row: env.NewRow}:
			case <-f.done:
				return
			}
		}
	}
}

func (f *defaultsFeed) Changes() <-chan sysdefaults.ChangeEvent { return f.ch }

func (f *defaultsFeed) Close() error {
	var err error
	f.closonce.Do(func() {
		close(f.done)
		err = f.listener.Close()
	})
	return err
}
