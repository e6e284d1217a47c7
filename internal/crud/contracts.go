package crud

import (
	"context"

	"github.com/desertthunder/crux/internal/async"
	"github.com/desertthunder/crux/internal/models"
)

// ReadRepository is the read half of a blocking persistence adapter.
//
// FindByID reports absence with ok == false and a nil error.
// Pagination zero value means "all records", Sort zero value means "storage order".
type ReadRepository[E any, ID comparable] interface {
	FindByID(ctx context.Context, id ID) (entity E, ok bool, err error)
	FindByIDs(ctx context.Context, ids []ID) ([]E, error)
	PageAll(ctx context.Context, p models.Pagination, s models.Sort) (models.Page[E], error)
	PageSearch(ctx context.Context, search string, p models.Pagination, s models.Sort) (models.Page[E], error)
	PageSearchQuery(ctx context.Context, search, query string, p models.Pagination, s models.Sort) (models.Page[E], error)
	CountAll(ctx context.Context) (int64, error)
	CountSearch(ctx context.Context, search string) (int64, error)
	CountSearchQuery(ctx context.Context, search, query string) (int64, error)
	ExistsByID(ctx context.Context, id ID) (bool, error)
}

// WriteRepository is the write half of a blocking persistence adapter.
// Persist and Merge return the stored entity, which may differ from the argument.
type WriteRepository[E any] interface {
	Persist(ctx context.Context, entity E) (E, error)
	Merge(ctx context.Context, entity E) (E, error)
	Remove(ctx context.Context, entity E) error
}

// Repository is a blocking persistence adapter.
type Repository[E any, ID comparable] interface {
	ReadRepository[E, ID]
	WriteRepository[E]
}

// AsyncRepository is a persistence adapter whose calls complete later.
type AsyncRepository[E any, ID comparable] interface {
	FindByID(ctx context.Context, id ID) *async.Future[models.Optional[E]]
	FindByIDs(ctx context.Context, ids []ID) *async.Future[[]E]
	PageAll(ctx context.Context, p models.Pagination, s models.Sort) *async.Future[models.Page[E]]
	PageSearch(ctx context.Context, search string, p models.Pagination, s models.Sort) *async.Future[models.Page[E]]
	PageSearchQuery(ctx context.Context, search, query string, p models.Pagination, s models.Sort) *async.Future[models.Page[E]]
	CountAll(ctx context.Context) *async.Future[int64]
	CountSearch(ctx context.Context, search string) *async.Future[int64]
	CountSearchQuery(ctx context.Context, search, query string) *async.Future[int64]
	ExistsByID(ctx context.Context, id ID) *async.Future[bool]
	Persist(ctx context.Context, entity E) *async.Future[E]
	Merge(ctx context.Context, entity E) *async.Future[E]
	Remove(ctx context.Context, entity E) *async.Future[struct{}]
}

// OutputMapper builds the read model of an entity.
type OutputMapper[E, Out any] interface {
	ToOutput(ctx context.Context, entity E) (Out, error)
}

// Mapper converts inputs into entities and entities into outputs.
//
// ToEntity populates target from input. isNew is true when target came from the factory
// (create) and false when it was loaded from storage (update).
type Mapper[E, In, Out any] interface {
	OutputMapper[E, Out]
	ToEntity(ctx context.Context, input In, target E, isNew bool) (E, error)
}

// AsyncMapper is a [Mapper] whose conversions complete later.
type AsyncMapper[E, In, Out any] interface {
	ToEntity(ctx context.Context, input In, target E, isNew bool) *async.Future[E]
	ToOutput(ctx context.Context, entity E) *async.Future[Out]
}

// Hooks run around every operation. Before always runs first; After only runs when the
// operation succeeded. An error from either aborts the call.
type Hooks interface {
	Before(ctx context.Context, op models.Operation) error
	After(ctx context.Context, op models.Operation) error
}

// AsyncHooks is the deferred form of [Hooks].
type AsyncHooks interface {
	Before(ctx context.Context, op models.Operation) *async.Future[struct{}]
	After(ctx context.Context, op models.Operation) *async.Future[struct{}]
}

// Transactor runs work inside a transaction: it begins before work, commits when work
// returns nil and rolls back otherwise, returning work's error unchanged.
// Implementations pass the active transaction to work through ctx.
type Transactor interface {
	WithTransaction(ctx context.Context, work func(ctx context.Context) error) error
}

// AsyncTransactor is the deferred form of [Transactor].
type AsyncTransactor interface {
	WithTransaction(ctx context.Context, work func(ctx context.Context) *async.Future[struct{}]) *async.Future[struct{}]
}

// NopHooks does nothing before or after an operation.
type NopHooks struct{}

func (NopHooks) Before(context.Context, models.Operation) error { return nil }
func (NopHooks) After(context.Context, models.Operation) error { return nil }

// HookFuncs adapts plain functions to [Hooks]. Nil fields are skipped.
type HookFuncs struct {
	BeforeFunc func(ctx context.Context, op models.Operation) error
	AfterFunc  func(ctx context.Context, op models.Operation) error
}

func (h HookFuncs) Before(ctx context.Context, op models.Operation) error {
	if h.BeforeFunc == nil {
		return nil
	}
	return h.BeforeFunc(ctx, op)
}

func (h HookFuncs) After(ctx context.Context, op models.Operation) error {
	if h.AfterFunc == nil {
		return nil
	}
	return h.AfterFunc(ctx, op)
}

// Passthrough runs work without a transaction.
type Passthrough struct{}

func (Passthrough) WithTransaction(ctx context.Context, work func(context.Context) error) error {
	return work(ctx)
}
