package events

import (
	"context"
	"sync"
)

type settlementKey struct{}

// Settlement collects listener work that has to wait until the transaction of a write has
// finished. The engine attaches one to the context of every write transaction and settles it
// once the transaction commits or rolls back.
type Settlement struct {
	mu        sync.Mutex
	settled   bool
	committed bool
	commit    []func()
	rollback  []func()
}

// WithSettlement returns a copy of ctx carrying s.
func WithSettlement(ctx context.Context, s *Settlement) context.Context {
	return context.WithValue(ctx, settlementKey{}, s)
}

// SettlementFrom returns the settlement carried by ctx, or nil outside a write transaction.
func SettlementFrom(ctx context.Context) *Settlement {
	s, _ := ctx.Value(settlementKey{}).(*Settlement)
	return s
}

// AfterCommit runs fn once the surrounding write commits. Outside a write transaction fn
// runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	if s := SettlementFrom(ctx); s != nil {
		s.add(fn, true)
		return
	}
	fn()
}

// OnRollback runs fn if the surrounding write rolls back. Outside a write transaction fn
// never runs.
func OnRollback(ctx context.Context, fn func()) {
	if s := SettlementFrom(ctx); s != nil {
		s.add(fn, false)
	}
}

func (s *Settlement) add(fn func(), onCommit bool) {
	s.mu.Lock()
	if s.settled {
		run := s.committed == onCommit
		s.mu.Unlock()
		if run {
			fn()
		}
		return
	}
	if onCommit {
		s.commit = append(s.commit, fn)
	} else {
		s.rollback = append(s.rollback, fn)
	}
	s.mu.Unlock()
}

// Settle runs the commit or the rollback callbacks in registration order.
// Only the first call has an effect.
func (s *Settlement) Settle(committed bool) {
	s.mu.Lock()
	if s.settled {
		s.mu.Unlock()
		return
	}
	s.settled, s.committed = true, committed
	fns := s.rollback
	if committed {
		fns = s.commit
	}
	s.commit, s.rollback = nil, nil
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
