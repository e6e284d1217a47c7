package repositories

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/desertthunder/crux/internal/idfield"
	"github.com/desertthunder/crux/internal/models"
	"github.com/desertthunder/crux/internal/query"
	"github.com/desertthunder/crux/internal/shared"
)

// MemoryRepository keeps entities in a map guarded by a mutex.
//
// Entities are copied on the way in and out when E is a pointer type, so callers never share
// state with the store. Unsorted reads return entities in insertion order.
//
// MemoryRepository is also a crud.Transactor: a transaction snapshots the store and restores
// the snapshot when work fails. Transactions are serialized.
type MemoryRepository[E any, ID comparable] struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	rows  map[ID]E
	order []ID

	schema *query.Schema[E]
	field  idfield.Field
	newID  func() ID
	touch  func(entity E, created bool)
}

// MemoryOption configures a [MemoryRepository].
type MemoryOption[E any, ID comparable] func(*MemoryRepository[E, ID])

// WithIDGenerator sets the function used to assign identifiers to entities persisted without one.
// String identifiers default to random UUIDs.
func WithIDGenerator[E any, ID comparable](gen func() ID) MemoryOption[E, ID] {
	return func(r *MemoryRepository[E, ID]) { r.newID = gen }
}

// WithTouch registers a function called on every entity just before it is stored.
func WithTouch[E any, ID comparable](fn func(entity E, created bool)) MemoryOption[E, ID] {
	return func(r *MemoryRepository[E, ID]) { r.touch = fn }
}

// NewMemoryRepository creates an empty store for E. The identifier field is discovered from
// E's struct tags and must have type ID.
func NewMemoryRepository[E any, ID comparable](schema *query.Schema[E], opts ...MemoryOption[E, ID]) (*MemoryRepository[E, ID], error) {
	field, err := idfield.For[E]()
	if err != nil {
		return nil, err
	}
	if want := reflect.TypeFor[ID](); field.Type != want {
		return nil, fmt.Errorf("identifier %s.%s has type %s, not %s", field.Owner, field.Name, field.Type, want)
	}

	r := &MemoryRepository[E, ID]{
		rows:   make(map[ID]E),
		schema: schema,
		field:  field,
	}
	if field.Type.Kind() == reflect.String {
		r.newID = func() ID {
			return reflect.ValueOf(shared.GenerateID()).Convert(field.Type).Interface().(ID)
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *MemoryRepository[E, ID]) FindByID(ctx context.Context, id ID) (E, bool, error) {
	var zero E
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.rows[id]
	if !ok {
		return zero, false, nil
	}
	return clone(e), true, nil
}

// FindByIDs returns the stored entities among ids, in the order the ids were given.
func (r *MemoryRepository[E, ID]) FindByIDs(ctx context.Context, ids []ID) ([]E, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]E, 0, len(ids))
	seen := make(map[ID]bool, len(ids))
	for _, id := range ids {
		if e, ok := r.rows[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, clone(e))
		}
	}
	return out, nil
}

func (r *MemoryRepository[E, ID]) PageAll(ctx context.Context, p models.Pagination, s models.Sort) (models.Page[E], error) {
	return r.page(ctx, "", "", p, s)
}

func (r *MemoryRepository[E, ID]) PageSearch(ctx context.Context, search string, p models.Pagination, s models.Sort) (models.Page[E], error) {
	return r.page(ctx, search, "", p, s)
}

func (r *MemoryRepository[E, ID]) PageSearchQuery(ctx context.Context, search, filter string, p models.Pagination, s models.Sort) (models.Page[E], error) {
	return r.page(ctx, search, filter, p, s)
}

func (r *MemoryRepository[E, ID]) CountAll(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.rows)), nil
}

func (r *MemoryRepository[E, ID]) CountSearch(ctx context.Context, search string) (int64, error) {
	rows, err := r.selectRows(ctx, search, "")
	return int64(len(rows)), err
}

func (r *MemoryRepository[E, ID]) CountSearchQuery(ctx context.Context, search, filter string) (int64, error) {
	rows, err := r.selectRows(ctx, search, filter)
	return int64(len(rows)), err
}

func (r *MemoryRepository[E, ID]) ExistsByID(ctx context.Context, id ID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rows[id]
	return ok, nil
}

// Persist stores a new entity, assigning an identifier when it has none.
// Persisting an identifier that is already stored fails with [ErrDuplicate].
func (r *MemoryRepository[E, ID]) Persist(ctx context.Context, entity E) (E, error) {
	var zero E
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	entity = clone(entity)
	empty, err := r.field.IsZero(entity)
	if err != nil {
		return zero, err
	}
	if empty {
		if r.newID == nil {
			return zero, fmt.Errorf("%s has no identifier and no generator is configured", r.field.Owner)
		}
		if err := r.field.Set(entity, r.newID()); err != nil {
			return zero, err
		}
	}
	id, err := r.id(entity)
	if err != nil {
		return zero, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rows[id]; exists {
		return zero, fmt.Errorf("%w: %s with id %v", ErrDuplicate, r.field.Owner.Name(), id)
	}
	if r.touch != nil {
		r.touch(entity, true)
	}
	r.rows[id] = entity
	r.order = append(r.order, id)
	return clone(entity), nil
}

// Merge replaces a stored entity. The entity must already exist.
func (r *MemoryRepository[E, ID]) Merge(ctx context.Context, entity E) (E, error) {
	var zero E
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	entity = clone(entity)
	id, err := r.id(entity)
	if err != nil {
		return zero, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rows[id]; !exists {
		return zero, models.NewNotFoundError(r.field.Owner.Name(), id)
	}
	if r.touch != nil {
		r.touch(entity, false)
	}
	r.rows[id] = entity
	return clone(entity), nil
}

func (r *MemoryRepository[E, ID]) Remove(ctx context.Context, entity E) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id, err := r.id(entity)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rows[id]; !exists {
		return models.NewNotFoundError(r.field.Owner.Name(), id)
	}
	delete(r.rows, id)
	r.order = slices.DeleteFunc(r.order, func(other ID) bool { return other == id })
	return nil
}

type memoryTxKey struct{ owner any }

// WithTransaction runs work against the store and undoes every change it made when work
// returns an error or panics. A nested call joins the outer transaction.
func (r *MemoryRepository[E, ID]) WithTransaction(ctx context.Context, work func(context.Context) error) (err error) {
	key := memoryTxKey{owner: r}
	if ctx.Value(key) != nil {
		return work(ctx)
	}

	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.RLock()
	rows, order := maps.Clone(r.rows), slices.Clone(r.order)
	r.mu.RUnlock()

	restore := func() {
		r.mu.Lock()
		r.rows, r.order = rows, order
		r.mu.Unlock()
	}

	defer func() {
		if p := recover(); p != nil {
			restore()
			panic(p)
		}
	}()

	if err := work(context.WithValue(ctx, key, true)); err != nil {
		restore()
		return err
	}
	return nil
}

func (r *MemoryRepository[E, ID]) id(entity E) (ID, error) {
	var zero ID
	v, err := r.field.Get(entity)
	if err != nil {
		return zero, err
	}
	id, ok := v.(ID)
	if !ok {
		return zero, fmt.Errorf("identifier of %s is %T", r.field.Owner, v)
	}
	return id, nil
}

// selectRows returns copies of the entities matching search and filter, in insertion order.
func (r *MemoryRepository[E, ID]) selectRows(ctx context.Context, search, filter string) ([]E, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := r.schema.Parse(filter)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []E{}
	for _, id := range r.order {
		e := r.rows[id]
		if search != "" && !r.schema.MatchSearch(e, search) {
			continue
		}
		ok, err := f.Match(e)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, clone(e))
		}
	}
	return out, nil
}

func (r *MemoryRepository[E, ID]) page(ctx context.Context, search, filter string, p models.Pagination, s models.Sort) (models.Page[E], error) {
	rows, err := r.selectRows(ctx, search, filter)
	if err != nil {
		return models.Page[E]{}, err
	}

	if s.IsSorted() {
		cmp, err := r.schema.Compare(s)
		if err != nil {
			return models.Page[E]{}, err
		}
		slices.SortStableFunc(rows, cmp)
	}
	return models.SlicePage(rows, p, s), nil
}

// clone returns a shallow copy of the value e points to, or e itself when it is not a pointer.
func clone[E any](e E) E {
	v := reflect.ValueOf(&e).Elem()
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return e
	}
	c := reflect.New(v.Type().Elem())
	c.Elem().Set(v.Elem())
	return c.Interface().(E)
}
