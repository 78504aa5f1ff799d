package sysdefaults

import (
	"context"
	"errors"
	"sync"

	"github.com/trezcool/shule/core"
)

type (
	// Repository persists the single SystemDefaults row.
	Repository interface {
		// Get returns the stored defaults or a core.NotFoundError on first run.
		Get(ctx context.Context) (SystemDefaults, error)
		// Upsert writes the full row, creating it if absent.
		Upsert(ctx context.Context, defs SystemDefaults) (SystemDefaults, error)
	}

	// ChangeEvent is one backing-store change notification.
	ChangeEvent struct {
		Table string
		Event string // insert | update
		Row   SystemDefaults
	}

	// Feed delivers change notifications for the defaults row, including
	// updates originating from other processes.
	Feed interface {
		Changes() <-chan ChangeEvent
		Close() error
	}

	// Subscriber is invoked once per successful update with the new full state.
	Subscriber func(SystemDefaults)
)

// Sync owns the SystemDefaults singleton for the process lifetime. Updates are
// serialized through a single in-process writer: a second caller queues behind
// the first, never silently dropped or merged blindly.
type Sync struct {
	repo   Repository
	logger core.Logger

	writeMu sync.Mutex // serializes Update/ResetField

	stateMu sync.RWMutex
	state   SystemDefaults

	subMu   sync.Mutex
	subs    map[int]Subscriber
	nextSub int

	listenOnce sync.Once
	done       chan struct{}
}

// NewSync loads the defaults from the backing store, bootstrapping the row
// from hard-coded values on first run.
func NewSync(ctx context.Context, repo Repository, logger core.Logger) (*Sync, error) {
	s := &Sync{
		repo:   repo,
		logger: logger,
		subs:   make(map[int]Subscriber),
		done:   make(chan struct{}),
	}

	defs, err := repo.Get(ctx)
	if err != nil {
		if !core.IsNotFound(err) {
			return nil, err
		}
		defs = HardDefaults()
		defs.Version = 1
		if defs, err = repo.Upsert(ctx, defs); err != nil {
			return nil, err
		}
	}
	s.state = defs.copy()
	return s, nil
}

// Current returns a copy of the current defaults.
func (s *Sync) Current() SystemDefaults {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state.copy()
}

// Update merges patch into the current state, increments Version, persists and
// notifies all subscribers.
func (s *Sync) Update(ctx context.Context, patch Patch) (SystemDefaults, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.Current()
	patch.apply(&next)
	next.Version++

	saved, err := s.repo.Upsert(ctx, next)
	if err != nil {
		return SystemDefaults{}, err
	}
	s.setState(saved)
	s.notify(saved)
	return saved.copy(), nil
}

// ResetField restores the named field (JSON name) to its hard-coded default.
func (s *Sync) ResetField(ctx context.Context, key string) (SystemDefaults, error) {
	patch, ok := hardDefaultPatch(key)
	if !ok {
		return SystemDefaults{}, core.NewValidationError(
			errors.New("unknown defaults field"),
			core.FieldError{Field: key, Error: "unknown defaults field"},
		)
	}
	return s.Update(ctx, patch)
}

// Subscribe registers fn for future updates and returns its unsubscribe
// function. Updates missed while unsubscribed are not replayed; read Current
// for the present state.
func (s *Sync) Subscribe(fn Subscriber) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// Listen consumes the change feed until Close. Feed events only ever apply
// update-shaped state replacements; they never touch ledger state. Stale
// events (version not newer than current) are dropped.
func (s *Sync) Listen(feed Feed) {
	s.listenOnce.Do(func() {
		go func() {
			for {
				select {
				case <-s.done:
					return
				case ev, ok := <-feed.Changes():
					if !ok {
						return
					}
					s.applyFeedEvent(ev)
				}
			}
		}()
	})
}

func (s *Sync) applyFeedEvent(ev ChangeEvent) {
	s.stateMu.Lock()
	if ev.Row.Version <= s.state.Version {
		s.stateMu.Unlock()
		return
	}
	s.state = ev.Row.copy()
	s.stateMu.Unlock()

	if s.logger != nil {
		s.logger.Debug("system defaults updated from change feed", ev.Event, ev.Row.Version)
	}
	s.notify(ev.Row)
}

// Close stops the feed listener.
func (s *Sync) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *Sync) setState(defs SystemDefaults) {
	s.stateMu.Lock()
	s.state = defs.copy()
	s.stateMu.Unlock()
}

func (s *Sync) notify(defs SystemDefaults) {
	s.subMu.Lock()
	subs := make([]Subscriber, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(defs.copy())
	}
}
