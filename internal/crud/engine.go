package crud

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/crux/internal/async"
	"github.com/desertthunder/crux/internal/events"
	"github.com/desertthunder/crux/internal/models"
	"github.com/desertthunder/crux/internal/search"
)

type done = struct{}

// call carries the arguments and intermediate results of one operation between steps.
type call[E, In, Out any, ID comparable] struct {
	op         models.Operation
	id         ID
	ids        []ID
	input      In
	search     string
	query      string
	pagination models.Pagination
	sort       models.Sort

	entity   E
	entities []E
	page     models.Page[E]
	count    int64
	exists   bool

	output  Out
	outputs []Out
}

// step is one named unit of the lifecycle.
type step[E, In, Out any, ID comparable] struct {
	name string
	run  func(ctx context.Context, c *call[E, In, Out, ID]) *async.Future[done]
}

// engine holds the lifecycle definition shared by the blocking and the deferred provider.
type engine[E, In, Out any, ID comparable] struct {
	repo       AsyncRepository[E, ID]
	mapper     AsyncMapper[E, In, Out]
	read       events.ReadEvents[E, ID]
	write      events.WriteEvents[E, In]
	hooks      AsyncHooks
	tx         AsyncTransactor
	factory    func() (E, error)
	entityName string
	logger     *log.Logger
}

func newEngine[E, In, Out any, ID comparable](
	repo AsyncRepository[E, ID],
	mapper AsyncMapper[E, In, Out],
	cfg *config[E, In, ID],
	spawn bool,
) *engine[E, In, Out, ID] {
	e := &engine[E, In, Out, ID]{
		repo:       repo,
		mapper:     mapper,
		read:       cfg.read,
		write:      cfg.write,
		factory:    cfg.factory,
		entityName: cfg.entityName,
		logger:     cfg.logger,
		hooks:      cfg.asyncHooks,
		tx:         cfg.asyncTx,
	}
	if e.hooks == nil {
		e.hooks = liftedHooks{h: cfg.hooks, spawn: spawn}
	}
	if e.tx == nil {
		if _, ok := cfg.tx.(Passthrough); ok {
			e.tx = AsyncPassthrough{}
		} else {
			e.tx = liftedTx{tx: cfg.tx, spawn: spawn}
		}
	}
	return e
}

// do builds a step from a function that completes immediately.
func do[E, In, Out any, ID comparable](name string, fn func(context.Context, *call[E, In, Out, ID]) error) step[E, In, Out, ID] {
	return step[E, In, Out, ID]{name: name, run: func(ctx context.Context, c *call[E, In, Out, ID]) *async.Future[done] {
		return async.Of(done{}, fn(ctx, c))
	}}
}

// sequence chains steps in order. A failed step, or a context that is done before a step
// starts, skips every remaining step.
func (e *engine[E, In, Out, ID]) sequence(ctx context.Context, c *call[E, In, Out, ID], steps []step[E, In, Out, ID]) *async.Future[done] {
	f := async.Resolved(done{})
	for _, s := range steps {
		f = async.Then(ctx, f, func(ctx context.Context, _ done) *async.Future[done] {
			e.logger.Debug("step", "entity", e.entityName, "op", c.op, "step", s.name)
			return s.run(ctx, c)
		})
	}
	return f
}

// lifecycle wraps body in the pre-hook, the transaction for writes and the post-hook, then runs
// tail. Reads map their output in tail so the post-hook sees the call before conversion.
func (e *engine[E, In, Out, ID]) lifecycle(ctx context.Context, c *call[E, In, Out, ID], body, tail []step[E, In, Out, ID]) *async.Future[done] {
	steps := []step[E, In, Out, ID]{e.before()}
	if c.op.IsWrite() {
		steps = append(steps, e.transaction(body))
	} else {
		steps = append(steps, body...)
	}
	steps = append(steps, e.after())
	steps = append(steps, tail...)

	f := e.sequence(ctx, c, steps)
	f.OnComplete(func(_ done, err error) {
		if err != nil {
			e.logger.Debug("failed", "entity", e.entityName, "op", c.op, "err", err)
		}
	})
	return f
}

func (e *engine[E, In, Out, ID]) before() step[E, In, Out, ID] {
	return step[E, In, Out, ID]{name: "pre-hook", run: func(ctx context.Context, c *call[E, In, Out, ID]) *async.Future[done] {
		return e.hooks.Before(ctx, c.op)
	}}
}

func (e *engine[E, In, Out, ID]) after() step[E, In, Out, ID] {
	return step[E, In, Out, ID]{name: "post-hook", run: func(ctx context.Context, c *call[E, In, Out, ID]) *async.Future[done] {
		return e.hooks.After(ctx, c.op)
	}}
}

func (e *engine[E, In, Out, ID]) transaction(body []step[E, In, Out, ID]) step[E, In, Out, ID] {
	return step[E, In, Out, ID]{name: "transaction", run: func(ctx context.Context, c *call[E, In, Out, ID]) *async.Future[done] {
		settlement := &events.Settlement{}
		f := e.tx.WithTransaction(events.WithSettlement(ctx, settlement), func(ctx context.Context) *async.Future[done] {
			return e.sequence(ctx, c, body)
		})
		f.OnComplete(func(_ done, err error) { settlement.Settle(err == nil) })
		return f
	}}
}

// load fetches c.id into c.entity, failing with [models.NotFoundError] when absent.
func (e *engine[E, In, Out, ID]) load() step[E, In, Out, ID] {
	return step[E, In, Out, ID]{name: "load", run: func(ctx context.Context, c *call[E, In, Out, ID]) *async.Future[done] {
		return async.Map(ctx, e.repo.FindByID(ctx, c.id), func(_ context.Context, found models.Optional[E]) (done, error) {
			entity, ok := found.Get()
			if !ok {
				return done{}, models.NewNotFoundError(e.entityName, c.id)
			}
			c.entity = entity
			return done{}, nil
		})
	}}
}

func (e *engine[E, In, Out, ID]) eachEntity(notify func(context.Context, E) error) step[E, In, Out, ID] {
	return do("each-entity", func(ctx context.Context, c *call[E, In, Out, ID]) error {
		return notify(ctx, c.entity)
	})
}

func (e *engine[E, In, Out, ID]) eachOf(entities func(*call[E, In, Out, ID]) []E) step[E, In, Out, ID] {
	return do("each-entity", func(ctx context.Context, c *call[E, In, Out, ID]) error {
		for _, entity := range entities(c) {
			if err := e.read.EachEntity(ctx, entity); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *engine[E, In, Out, ID]) mapOutput() step[E, In, Out, ID] {
	return step[E, In, Out, ID]{name: "map-output", run: func(ctx context.Context, c *call[E, In, Out, ID]) *async.Future[done] {
		return async.Map(ctx, e.mapper.ToOutput(ctx, c.entity), func(_ context.Context, out Out) (done, error) {
			c.output = out
			return done{}, nil
		})
	}}
}

// mapAll converts every entity concurrently when the mapper defers, keeping input order.
func (e *engine[E, In, Out, ID]) mapAll(entities func(*call[E, In, Out, ID]) []E) step[E, In, Out, ID] {
	return step[E, In, Out, ID]{name: "map-output", run: func(ctx context.Context, c *call[E, In, Out, ID]) *async.Future[done] {
		items := entities(c)
		futures := make([]*async.Future[Out], len(items))
		for i, entity := range items {
			futures[i] = e.mapper.ToOutput(ctx, entity)
		}
		return async.Map(ctx, async.All(futures), func(_ context.Context, outs []Out) (done, error) {
			c.outputs = outs
			return done{}, nil
		})
	}}
}

func (e *engine[E, In, Out, ID]) page(ctx context.Context, searchTerm, query string, p models.Pagination, s models.Sort) *async.Future[models.Page[Out]] {
	c := &call[E, In, Out, ID]{op: models.OpPage, search: searchTerm, query: query, pagination: p, sort: s}

	body := []step[E, In, Out, ID]{
		{name: "resolve", run: func(ctx context.Context, c *call[E, In, Out, ID]) *async.Future[done] {
			if err := c.pagination.Validate(); err != nil {
				return async.Failed[done](err)
			}
			var fetched *async.Future[models.Page[E]]
			switch strategy, term, q := search.Resolve(c.search, c.query); strategy {
			case search.SearchQuery:
				fetched = e.repo.PageSearchQuery(ctx, term, q, c.pagination, c.sort)
			case search.Search:
				fetched = e.repo.PageSearch(ctx, term, c.pagination, c.sort)
			default:
				fetched = e.repo.PageAll(ctx, c.pagination, c.sort)
			}
			return async.Map(ctx, fetched, func(_ context.Context, page models.Page[E]) (done, error) {
				c.page = page
				return done{}, nil
			})
		}},
		do("on-page", func(ctx context.Context, c *call[E, In, Out, ID]) error {
			return e.read.OnPage(ctx, c.page)
		}),
		e.eachOf(func(c *call[E, In, Out, ID]) []E { return c.page.Content }),
	}
	tail := []step[E, In, Out, ID]{e.mapAll(func(c *call[E, In, Out, ID]) []E { return c.page.Content })}

	return async.Map(ctx, e.lifecycle(ctx, c, body, tail), func(context.Context, done) (models.Page[Out], error) {
		return models.Page[Out]{
			Content:       c.outputs,
			Pagination:    c.page.Pagination,
			Sort:          c.page.Sort,
			TotalElements: c.page.TotalElements,
		}, nil
	})
}

func (e *engine[E, In, Out, ID]) find(ctx context.Context, id ID) *async.Future[Out] {
	c := &call[E, In, Out, ID]{op: models.OpFind, id: id}

	body := []step[E, In, Out, ID]{
		e.load(),
		do("on-find", func(ctx context.Context, c *call[E, In, Out, ID]) error {
			return e.read.OnFind(ctx, c.entity)
		}),
		e.eachEntity(e.read.EachEntity),
	}
	tail := []step[E, In, Out, ID]{e.mapOutput()}

	return async.Map(ctx, e.lifecycle(ctx, c, body, tail), func(context.Context, done) (Out, error) {
		return c.output, nil
	})
}

func (e *engine[E, In, Out, ID]) findMany(ctx context.Context, ids []ID) *async.Future[[]Out] {
	c := &call[E, In, Out, ID]{op: models.OpFind, ids: ids}

	body := []step[E, In, Out, ID]{
		{name: "load-many", run: func(ctx context.Context, c *call[E, In, Out, ID]) *async.Future[done] {
			return async.Map(ctx, e.repo.FindByIDs(ctx, c.ids), func(_ context.Context, found []E) (done, error) {
				c.entities = found
				return done{}, nil
			})
		}},
		do("on-find-many", func(ctx context.Context, c *call[E, In, Out, ID]) error {
			return e.read.OnFindMany(ctx, c.entities, c.ids)
		}),
		e.eachOf(func(c *call[E, In, Out, ID]) []E { return c.entities }),
	}
	tail := []step[E, In, Out, ID]{e.mapAll(func(c *call[E, In, Out, ID]) []E { return c.entities })}

	return async.Map(ctx, e.lifecycle(ctx, c, body, tail), func(context.Context, done) ([]Out, error) {
		return c.outputs, nil
	})
}

func (e *engine[E, In, Out, ID]) count(ctx context.Context, searchTerm, query string) *async.Future[int64] {
	c := &call[E, In, Out, ID]{op: models.OpCount, search: searchTerm, query: query}

	body := []step[E, In, Out, ID]{
		{name: "resolve", run: func(ctx context.Context, c *call[E, In, Out, ID]) *async.Future[done] {
			var counted *async.Future[int64]
			switch strategy, term, q := search.Resolve(c.search, c.query); strategy {
			case search.SearchQuery:
				counted = e.repo.CountSearchQuery(ctx, term, q)
			case search.Search:
				counted = e.repo.CountSearch(ctx, term)
			default:
				counted = e.repo.CountAll(ctx)
			}
			return async.Map(ctx, counted, func(_ context.Context, n int64) (done, error) {
				c.count = n
				return done{}, nil
			})
		}},
		do("on-count", func(ctx context.Context, c *call[E, In, Out, ID]) error {
			return e.read.OnCount(ctx, c.count)
		}),
	}

	return async.Map(ctx, e.lifecycle(ctx, c, body, nil), func(context.Context, done) (int64, error) {
		return c.count, nil
	})
}

func (e *engine[E, In, Out, ID]) existsByID(ctx context.Context, id ID) *async.Future[bool] {
	c := &call[E, In, Out, ID]{op: models.OpExists, id: id}

	body := []step[E, In, Out, ID]{
		{name: "exists", run: func(ctx context.Context, c *call[E, In, Out, ID]) *async.Future[done] {
			return async.Map(ctx, e.repo.ExistsByID(ctx, c.id), func(_ context.Context, ok bool) (done, error) {
				c.exists = ok
				return done{}, nil
			})
		}},
		do("on-exists", func(ctx context.Context, c *call[E, In, Out, ID]) error {
			return e.read.OnExists(ctx, c.exists, c.id)
		}),
	}

	return async.Map(ctx, e.lifecycle(ctx, c, body, nil), func(context.Context, done) (bool, error) {
		return c.exists, nil
	})
}

func (e *engine[E, In, Out, ID]) create(ctx context.Context, in In) *async.Future[Out] {
	c := &call[E, In, Out, ID]{op: models.OpCreate, input: in}

	body := []step[E, In, Out, ID]{
		do("instantiate", func(_ context.Context, c *call[E, In, Out, ID]) error {
			entity, err := e.factory()
			c.entity = entity
			return err
		}),
		e.mapInput(true),
		do("before-create", func(ctx context.Context, c *call[E, In, Out, ID]) error {
			return e.write.OnBeforeCreate(ctx, c.input, c.entity)
		}),
		e.store("persist", e.repo.Persist),
		do("after-create", func(ctx context.Context, c *call[E, In, Out, ID]) error {
			return e.write.OnAfterCreate(ctx, c.input, c.entity)
		}),
		e.eachEntity(e.write.EachEntity),
		e.mapOutput(),
	}

	return async.Map(ctx, e.lifecycle(ctx, c, body, nil), func(context.Context, done) (Out, error) {
		return c.output, nil
	})
}

func (e *engine[E, In, Out, ID]) update(ctx context.Context, id ID, in In) *async.Future[Out] {
	c := &call[E, In, Out, ID]{op: models.OpUpdate, id: id, input: in}

	body := []step[E, In, Out, ID]{
		e.load(),
		e.mapInput(false),
		do("before-update", func(ctx context.Context, c *call[E, In, Out, ID]) error {
			return e.write.OnBeforeUpdate(ctx, c.input, c.entity)
		}),
		e.store("merge", e.repo.Merge),
		do("after-update", func(ctx context.Context, c *call[E, In, Out, ID]) error {
			return e.write.OnAfterUpdate(ctx, c.input, c.entity)
		}),
		e.eachEntity(e.write.EachEntity),
		e.mapOutput(),
	}

	return async.Map(ctx, e.lifecycle(ctx, c, body, nil), func(context.Context, done) (Out, error) {
		return c.output, nil
	})
}

func (e *engine[E, In, Out, ID]) remove(ctx context.Context, id ID) *async.Future[done] {
	c := &call[E, In, Out, ID]{op: models.OpDelete, id: id}

	body := []step[E, In, Out, ID]{
		e.load(),
		do("before-delete", func(ctx context.Context, c *call[E, In, Out, ID]) error {
			return e.write.OnBeforeDelete(ctx, c.entity)
		}),
		{name: "remove", run: func(ctx context.Context, c *call[E, In, Out, ID]) *async.Future[done] {
			return e.repo.Remove(ctx, c.entity)
		}},
		do("after-delete", func(ctx context.Context, c *call[E, In, Out, ID]) error {
			return e.write.OnAfterDelete(ctx, c.entity)
		}),
		e.eachEntity(e.write.EachEntity),
	}

	return e.lifecycle(ctx, c, body, nil)
}

func (e *engine[E, In, Out, ID]) mapInput(isNew bool) step[E, In, Out, ID] {
	return step[E, In, Out, ID]{name: "map-input", run: func(ctx context.Context, c *call[E, In, Out, ID]) *async.Future[done] {
		return async.Map(ctx, e.mapper.ToEntity(ctx, c.input, c.entity, isNew), func(_ context.Context, entity E) (done, error) {
			c.entity = entity
			return done{}, nil
		})
	}}
}

// store hands c.entity to persist or merge and keeps the entity the adapter returns.
func (e *engine[E, In, Out, ID]) store(name string, fn func(context.Context, E) *async.Future[E]) step[E, In, Out, ID] {
	return step[E, In, Out, ID]{name: name, run: func(ctx context.Context, c *call[E, In, Out, ID]) *async.Future[done] {
		return async.Map(ctx, fn(ctx, c.entity), func(_ context.Context, stored E) (done, error) {
			c.entity = stored
			return done{}, nil
		})
	}}
}
