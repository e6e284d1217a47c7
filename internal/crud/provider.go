package crud

import (
	"context"

	"github.com/desertthunder/crux/internal/models"
)

// Provider runs the lifecycle against a blocking [Repository]. Every step runs on the calling
// goroutine and each method returns once the operation has finished.
//
// A Provider holds no per-call state and is safe for concurrent use when its repository,
// mapper, listeners and hooks are.
type Provider[E, In, Out any, ID comparable] struct {
	engine *engine[E, In, Out, ID]
}

// NewProvider builds a blocking provider over repo and mapper.
func NewProvider[E, In, Out any, ID comparable](repo Repository[E, ID], mapper Mapper[E, In, Out], opts ...Option[E, In, ID]) *Provider[E, In, Out, ID] {
	cfg := newConfig(opts)
	return &Provider[E, In, Out, ID]{engine: newEngine(Lift(repo), LiftMapper(mapper), cfg, false)}
}

// Page returns one page of outputs. Blank search and query are treated as absent; a present
// query selects the structured lookup even without a search term.
func (p *Provider[E, In, Out, ID]) Page(ctx context.Context, search, query string, pagination models.Pagination, sort models.Sort) (models.Page[Out], error) {
	return p.engine.page(ctx, search, query, pagination, sort).Await(ctx)
}

// Find returns the output for id or a [models.NotFoundError].
func (p *Provider[E, In, Out, ID]) Find(ctx context.Context, id ID) (Out, error) {
	return p.engine.find(ctx, id).Await(ctx)
}

// FindMany returns the outputs of the entities that exist among ids.
func (p *Provider[E, In, Out, ID]) FindMany(ctx context.Context, ids []ID) ([]Out, error) {
	return p.engine.findMany(ctx, ids).Await(ctx)
}

// Count returns the number of entities matched by search and query.
func (p *Provider[E, In, Out, ID]) Count(ctx context.Context, search, query string) (int64, error) {
	return p.engine.count(ctx, search, query).Await(ctx)
}

// Exists reports whether an entity with id exists. It never fires write events.
func (p *Provider[E, In, Out, ID]) Exists(ctx context.Context, id ID) (bool, error) {
	return p.engine.existsByID(ctx, id).Await(ctx)
}

// Create builds a new entity from in, stores it and returns its output.
func (p *Provider[E, In, Out, ID]) Create(ctx context.Context, in In) (Out, error) {
	return p.engine.create(ctx, in).Await(ctx)
}

// Update applies in to the entity with id and returns its output.
func (p *Provider[E, In, Out, ID]) Update(ctx context.Context, id ID, in In) (Out, error) {
	return p.engine.update(ctx, id, in).Await(ctx)
}

// Delete removes the entity with id.
func (p *Provider[E, In, Out, ID]) Delete(ctx context.Context, id ID) error {
	_, err := p.engine.remove(ctx, id).Await(ctx)
	return err
}

// ReadProvider exposes only the read operations of a lifecycle.
type ReadProvider[E, Out any, ID comparable] struct {
	inner *Provider[E, struct{}, Out, ID]
}

// NewReadProvider builds a provider that can page, find, count and check existence but never
// writes. Write events and the transactor are never used.
func NewReadProvider[E, Out any, ID comparable](repo ReadRepository[E, ID], mapper OutputMapper[E, Out], opts ...Option[E, struct{}, ID]) *ReadProvider[E, Out, ID] {
	return &ReadProvider[E, Out, ID]{
		inner: NewProvider[E, struct{}, Out, ID](readOnly[E, ID]{repo}, readOnlyMapper[E, Out]{mapper}, opts...),
	}
}

func (p *ReadProvider[E, Out, ID]) Page(ctx context.Context, search, query string, pagination models.Pagination, sort models.Sort) (models.Page[Out], error) {
	return p.inner.Page(ctx, search, query, pagination, sort)
}

func (p *ReadProvider[E, Out, ID]) Find(ctx context.Context, id ID) (Out, error) {
	return p.inner.Find(ctx, id)
}

func (p *ReadProvider[E, Out, ID]) FindMany(ctx context.Context, ids []ID) ([]Out, error) {
	return p.inner.FindMany(ctx, ids)
}

func (p *ReadProvider[E, Out, ID]) Count(ctx context.Context, search, query string) (int64, error) {
	return p.inner.Count(ctx, search, query)
}

func (p *ReadProvider[E, Out, ID]) Exists(ctx context.Context, id ID) (bool, error) {
	return p.inner.Exists(ctx, id)
}

type readOnly[E any, ID comparable] struct {
	ReadRepository[E, ID]
}

func (readOnly[E, ID]) Persist(context.Context, E) (E, error) {
	var zero E
	return zero, ErrReadOnly
}

func (readOnly[E, ID]) Merge(context.Context, E) (E, error) {
	var zero E
	return zero, ErrReadOnly
}

func (readOnly[E, ID]) Remove(context.Context, E) error { return ErrReadOnly }

type readOnlyMapper[E, Out any] struct {
	OutputMapper[E, Out]
}

func (readOnlyMapper[E, Out]) ToEntity(context.Context, struct{}, E, bool) (E, error) {
	var zero E
	return zero, ErrReadOnly
}
