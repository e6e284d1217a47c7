package crud

import (
	"context"

	"github.com/desertthunder/crux/internal/async"
	"github.com/desertthunder/crux/internal/models"
)

// exec runs fn inline, or on its own goroutine when spawn is set.
func exec[T any](ctx context.Context, spawn bool, fn func(context.Context) (T, error)) *async.Future[T] {
	if spawn {
		return async.Go(ctx, fn)
	}
	return async.Of(fn(ctx))
}

func optional[E any](e E, ok bool, err error) (models.Optional[E], error) {
	if err != nil || !ok {
		return models.None[E](), err
	}
	return models.Some(e), nil
}

// lifted presents a blocking [Repository] as an [AsyncRepository].
type lifted[E any, ID comparable] struct {
	repo  Repository[E, ID]
	spawn bool
}

// Lift wraps repo so each call completes before it returns. The futures it hands out are
// always resolved, which keeps a [Provider] running on the caller's goroutine.
func Lift[E any, ID comparable](repo Repository[E, ID]) AsyncRepository[E, ID] {
	return &lifted[E, ID]{repo: repo}
}

// Spawn wraps repo so each call runs on a new goroutine.
func Spawn[E any, ID comparable](repo Repository[E, ID]) AsyncRepository[E, ID] {
	return &lifted[E, ID]{repo: repo, spawn: true}
}

func (l *lifted[E, ID]) FindByID(ctx context.Context, id ID) *async.Future[models.Optional[E]] {
	return exec(ctx, l.spawn, func(ctx context.Context) (models.Optional[E], error) {
		return optional(l.repo.FindByID(ctx, id))
	})
}

func (l *lifted[E, ID]) FindByIDs(ctx context.Context, ids []ID) *async.Future[[]E] {
	return exec(ctx, l.spawn, func(ctx context.Context) ([]E, error) {
		return l.repo.FindByIDs(ctx, ids)
	})
}

func (l *lifted[E, ID]) PageAll(ctx context.Context, p models.Pagination, s models.Sort) *async.Future[models.Page[E]] {
	return exec(ctx, l.spawn, func(ctx context.Context) (models.Page[E], error) {
		return l.repo.PageAll(ctx, p, s)
	})
}

func (l *lifted[E, ID]) PageSearch(ctx context.Context, search string, p models.Pagination, s models.Sort) *async.Future[models.Page[E]] {
	return exec(ctx, l.spawn, func(ctx context.Context) (models.Page[E], error) {
		return l.repo.PageSearch(ctx, search, p, s)
	})
}

func (l *lifted[E, ID]) PageSearchQuery(ctx context.Context, search, query string, p models.Pagination, s models.Sort) *async.Future[models.Page[E]] {
	return exec(ctx, l.spawn, func(ctx context.Context) (models.Page[E], error) {
		return l.repo.PageSearchQuery(ctx, search, query, p, s)
	})
}

func (l *lifted[E, ID]) CountAll(ctx context.Context) *async.Future[int64] {
	return exec(ctx, l.spawn, l.repo.CountAll)
}

func (l *lifted[E, ID]) CountSearch(ctx context.Context, search string) *async.Future[int64] {
	return exec(ctx, l.spawn, func(ctx context.Context) (int64, error) {
		return l.repo.CountSearch(ctx, search)
	})
}

func (l *lifted[E, ID]) CountSearchQuery(ctx context.Context, search, query string) *async.Future[int64] {
	return exec(ctx, l.spawn, func(ctx context.Context) (int64, error) {
		return l.repo.CountSearchQuery(ctx, search, query)
	})
}

func (l *lifted[E, ID]) ExistsByID(ctx context.Context, id ID) *async.Future[bool] {
	return exec(ctx, l.spawn, func(ctx context.Context) (bool, error) {
		return l.repo.ExistsByID(ctx, id)
	})
}

func (l *lifted[E, ID]) Persist(ctx context.Context, e E) *async.Future[E] {
	return exec(ctx, l.spawn, func(ctx context.Context) (E, error) {
		return l.repo.Persist(ctx, e)
	})
}

func (l *lifted[E, ID]) Merge(ctx context.Context, e E) *async.Future[E] {
	return exec(ctx, l.spawn, func(ctx context.Context) (E, error) {
		return l.repo.Merge(ctx, e)
	})
}

func (l *lifted[E, ID]) Remove(ctx context.Context, e E) *async.Future[struct{}] {
	return exec(ctx, l.spawn, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, l.repo.Remove(ctx, e)
	})
}

type liftedMapper[E, In, Out any] struct {
	m Mapper[E, In, Out]
}

// LiftMapper presents a blocking [Mapper] as an [AsyncMapper] that resolves inline.
func LiftMapper[E, In, Out any](m Mapper[E, In, Out]) AsyncMapper[E, In, Out] {
	return liftedMapper[E, In, Out]{m: m}
}

func (l liftedMapper[E, In, Out]) ToEntity(ctx context.Context, in In, target E, isNew bool) *async.Future[E] {
	return async.Of(l.m.ToEntity(ctx, in, target, isNew))
}

func (l liftedMapper[E, In, Out]) ToOutput(ctx context.Context, e E) *async.Future[Out] {
	return async.Of(l.m.ToOutput(ctx, e))
}

type liftedHooks struct {
	h     Hooks
	spawn bool
}

func (l liftedHooks) Before(ctx context.Context, op models.Operation) *async.Future[struct{}] {
	return exec(ctx, l.spawn, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, l.h.Before(ctx, op)
	})
}

func (l liftedHooks) After(ctx context.Context, op models.Operation) *async.Future[struct{}] {
	return exec(ctx, l.spawn, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, l.h.After(ctx, op)
	})
}

type liftedTx struct {
	tx    Transactor
	spawn bool
}

func (l liftedTx) WithTransaction(ctx context.Context, work func(context.Context) *async.Future[struct{}]) *async.Future[struct{}] {
	return exec(ctx, l.spawn, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, l.tx.WithTransaction(ctx, func(ctx context.Context) error {
			// A step still in flight may write after ctx is cancelled, so the outcome is only
			// decided once work has finished.
			_, err := work(ctx).Await(context.WithoutCancel(ctx))
			return err
		})
	})
}

// AsyncPassthrough runs deferred work without a transaction.
type AsyncPassthrough struct{}

func (AsyncPassthrough) WithTransaction(ctx context.Context, work func(context.Context) *async.Future[struct{}]) *async.Future[struct{}] {
	return work(ctx)
}
