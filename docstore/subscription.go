package docstore

import (
	"context"
	"errors"
	"sync"
)

type queryFunc func(ctx context.Context, q Query) ([]Document, error)

// registry tracks the live queries of one store.
type registry struct {
	mu   sync.Mutex
	subs map[*subscription]struct{}
}

func newRegistry() *registry {
	return &registry{subs: make(map[*subscription]struct{})}
}

// add registers a live query and schedules its first snapshot.
func (r *registry) add(q Query, run queryFunc, onSnapshot SnapshotFunc, onError ErrorFunc) *subscription {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		query:      q,
		run:        run,
		onSnapshot: onSnapshot,
		onError:    onError,
		dirty:      make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
		reg:        r,
	}

	r.mu.Lock()
	r.subs[sub] = struct{}{}
	r.mu.Unlock()

	sub.markDirty()
	go sub.loop()
	return sub
}

func (r *registry) remove(sub *subscription) {
	r.mu.Lock()
	delete(r.subs, sub)
	r.mu.Unlock()
}

// notify marks every live query on one of collections as dirty.
func (r *registry) notify(collections []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for sub := range r.subs {
		for _, c := range collections {
			if sub.query.Collection == c {
				sub.markDirty()
				break
			}
		}
	}
}

// subscription re-runs its query whenever it is marked dirty. The dirty
// channel holds at most one pending wake-up, so a burst of writes collapses
// into a single re-query that observes all of them. Callbacks run on the
// subscription goroutine only, never concurrently with each other.
type subscription struct {
	query      Query
	run        queryFunc
	onSnapshot SnapshotFunc
	onError    ErrorFunc

	dirty  chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	reg    *registry
}

func (s *subscription) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *subscription) loop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.dirty:
		}

		docs, err := s.run(s.ctx, s.query)
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			if s.onError != nil && !errors.Is(err, context.Canceled) {
				s.onError(err)
			}
			continue
		}
		if s.onSnapshot != nil {
			s.onSnapshot(docs)
		}
	}
}

// Cancel stops delivery. Safe to call more than once and from inside a
// callback.
func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.cancel()
		s.reg.remove(s)
	})
}
