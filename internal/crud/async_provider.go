package crud

import (
	"context"

	"github.com/desertthunder/crux/internal/async"
	"github.com/desertthunder/crux/internal/models"
)

// AsyncProvider runs the lifecycle against an [AsyncRepository]. Each method returns at once
// with a future; steps run as the previous step's result arrives, with no goroutine parked in
// between.
//
// Blocking hooks and transactors given through options run on their own goroutine so they do
// not stall the caller. Cancelling ctx prevents steps that have not started yet; steps already
// running are not undone.
type AsyncProvider[E, In, Out any, ID comparable] struct {
	engine *engine[E, In, Out, ID]
}

// NewAsyncProvider builds a deferred provider over repo and mapper.
// Use [LiftMapper] to pass a blocking [Mapper].
func NewAsyncProvider[E, In, Out any, ID comparable](repo AsyncRepository[E, ID], mapper AsyncMapper[E, In, Out], opts ...Option[E, In, ID]) *AsyncProvider[E, In, Out, ID] {
	cfg := newConfig(opts)
	return &AsyncProvider[E, In, Out, ID]{engine: newEngine(repo, mapper, cfg, true)}
}

func (p *AsyncProvider[E, In, Out, ID]) Page(ctx context.Context, search, query string, pagination models.Pagination, sort models.Sort) *async.Future[models.Page[Out]] {
	return p.engine.page(ctx, search, query, pagination, sort)
}

func (p *AsyncProvider[E, In, Out, ID]) Find(ctx context.Context, id ID) *async.Future[Out] {
	return p.engine.find(ctx, id)
}

func (p *AsyncProvider[E, In, Out, ID]) FindMany(ctx context.Context, ids []ID) *async.Future[[]Out] {
	return p.engine.findMany(ctx, ids)
}

func (p *AsyncProvider[E, In, Out, ID]) Count(ctx context.Context, search, query string) *async.Future[int64] {
	return p.engine.count(ctx, search, query)
}

func (p *AsyncProvider[E, In, Out, ID]) Exists(ctx context.Context, id ID) *async.Future[bool] {
	return p.engine.existsByID(ctx, id)
}

func (p *AsyncProvider[E, In, Out, ID]) Create(ctx context.Context, in In) *async.Future[Out] {
	return p.engine.create(ctx, in)
}

func (p *AsyncProvider[E, In, Out, ID]) Update(ctx context.Context, id ID, in In) *async.Future[Out] {
	return p.engine.update(ctx, id, in)
}

func (p *AsyncProvider[E, In, Out, ID]) Delete(ctx context.Context, id ID) *async.Future[struct{}] {
	return p.engine.remove(ctx, id)
}
