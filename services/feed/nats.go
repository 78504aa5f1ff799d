package feedsvc

import (
	"encoding/json"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/sysdefaults"
)

// subjectPrefix namespaces backing-store change subjects; the table name is
// the final token.
const subjectPrefix = "shule.changes."

// natsFeed delivers system-defaults change events published on NATS by
// another process (or by the backing store's bridge).
type natsFeed struct {
	conn     *nats.Conn
	sub      *nats.Subscription
	logger   core.Logger
	ch       chan sysdefaults.ChangeEvent
	closonce sync.Once
}

var _ sysdefaults.Feed = (*natsFeed)(nil)

func NewDefaultsFeed(conf *core.Config, logger core.Logger) (sysdefaults.Feed, error) {
	conn, err := nats.Connect(conf.NatsURL, nats.Name(conf.AppName))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to NATS")
	}

	f := &natsFeed{
		conn:   conn,
		logger: logger,
		ch:     make(chan sysdefaults.ChangeEvent, 8),
	}
	subject := subjectPrefix + "system_defaults"
	f.sub, err = conn.Subscribe(subject, f.handle)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "subscribing to "+subject)
	}
	return f, nil
}

func (f *natsFeed) handle(m *nats.Msg) {
	var env sysdefaults.ChangeEnvelope
	if err := json.Unmarshal(m.Data, &env); err != nil {
		if f.logger != nil {
			f.logger.Warn("decoding defaults feed payload", err)
		}
		return
	}
	select {
	case f.ch <- sysdefaults.ChangeEvent{Table: "system_defaults", Event: env.Event, Row: env.NewRow}:
	default:
		if f.logger != nil {
			f.logger.Warn("defaults feed buffer full; dropping event")
		}
	}
}

func (f *natsFeed) Changes() <-chan sysdefaults.ChangeEvent { return f.ch }

func (f *natsFeed) Close() error {
	var err error
	f.closonce.Do(func() {
		err = f.sub.Unsubscribe()
		f.conn.Close()
		close(f.ch)
	})
	return err
}
