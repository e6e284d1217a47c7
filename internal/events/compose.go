package events

import (
	"context"

	"github.com/desertthunder/crux/internal/models"
)

// Composite holds a read listener and a write listener as one [CrudEvents] value.
type Composite[E, In, ID any] struct {
	Read  ReadEvents[E, ID]
	Write WriteEvents[E, In]
}

// Compose pairs read and write. A nil argument is replaced by the matching no-op listener.
func Compose[E, In, ID any](read ReadEvents[E, ID], write WriteEvents[E, In]) *Composite[E, In, ID] {
	if read == nil {
		read = NopRead[E, ID]{}
	}
	if write == nil {
		write = NopWrite[E, In]{}
	}
	return &Composite[E, In, ID]{Read: read, Write: write}
}

// Split returns the two halves. Providers use it so that read operations only reach Read and
// write operations only reach Write.
func (c *Composite[E, In, ID]) Split() (ReadEvents[E, ID], WriteEvents[E, In]) {
	return c.Read, c.Write
}

func (c *Composite[E, In, ID]) OnFind(ctx context.Context, e E) error {
	return c.Read.OnFind(ctx, e)
}

func (c *Composite[E, In, ID]) OnFindMany(ctx context.Context, es []E, ids []ID) error {
	return c.Read.OnFindMany(ctx, es, ids)
}

func (c *Composite[E, In, ID]) OnCount(ctx context.Context, n int64) error {
	return c.Read.OnCount(ctx, n)
}

func (c *Composite[E, In, ID]) OnExists(ctx context.Context, ok bool, id ID) error {
	return c.Read.OnExists(ctx, ok, id)
}

func (c *Composite[E, In, ID]) OnPage(ctx context.Context, p models.Page[E]) error {
	return c.Read.OnPage(ctx, p)
}

func (c *Composite[E, In, ID]) OnBeforeCreate(ctx context.Context, in In, e E) error {
	return c.Write.OnBeforeCreate(ctx, in, e)
}

func (c *Composite[E, In, ID]) OnAfterCreate(ctx context.Context, in In, e E) error {
	return c.Write.OnAfterCreate(ctx, in, e)
}

func (c *Composite[E, In, ID]) OnBeforeUpdate(ctx context.Context, in In, e E) error {
	return c.Write.OnBeforeUpdate(ctx, in, e)
}

func (c *Composite[E, In, ID]) OnAfterUpdate(ctx context.Context, in In, e E) error {
	return c.Write.OnAfterUpdate(ctx, in, e)
}

func (c *Composite[E, In, ID]) OnBeforeDelete(ctx context.Context, e E) error {
	return c.Write.OnBeforeDelete(ctx, e)
}

func (c *Composite[E, In, ID]) OnAfterDelete(ctx context.Context, e E) error {
	return c.Write.OnAfterDelete(ctx, e)
}

// EachEntity notifies the read listener, then the write listener.
func (c *Composite[E, In, ID]) EachEntity(ctx context.Context, e E) error {
	if err := c.Read.EachEntity(ctx, e); err != nil {
		return err
	}
	return c.Write.EachEntity(ctx, e)
}

// Splitter is implemented by listeners that hold distinct read and write halves.
type Splitter[E, In, ID any] interface {
	Split() (ReadEvents[E, ID], WriteEvents[E, In])
}

// Broadcaster forwards every notification to its listeners in registration order.
// The first error stops delivery.
type Broadcaster[E, In, ID any] struct {
	listeners []CrudEvents[E, In, ID]
}

// Broadcast fans out to listeners.
func Broadcast[E, In, ID any](listeners ...CrudEvents[E, In, ID]) *Broadcaster[E, In, ID] {
	return &Broadcaster[E, In, ID]{listeners: listeners}
}

// Add registers another listener after the existing ones.
func (b *Broadcaster[E, In, ID]) Add(l CrudEvents[E, In, ID]) {
	b.listeners = append(b.listeners, l)
}

// Len reports the number of registered listeners.
func (b *Broadcaster[E, In, ID]) Len() int { return len(b.listeners) }

func (b *Broadcaster[E, In, ID]) each(fn func(CrudEvents[E, In, ID]) error) error {
	for _, l := range b.listeners {
		if err := fn(l); err != nil {
			return err
		}
	}
	return nil
}

func (b *Broadcaster[E, In, ID]) OnFind(ctx context.Context, e E) error {
	return b.each(func(l CrudEvents[E, In, ID]) error { return l.OnFind(ctx, e) })
}

func (b *Broadcaster[E, In, ID]) OnFindMany(ctx context.Context, es []E, ids []ID) error {
	return b.each(func(l CrudEvents[E, In, ID]) error { return l.OnFindMany(ctx, es, ids) })
}

func (b *Broadcaster[E, In, ID]) OnCount(ctx context.Context, n int64) error {
	return b.each(func(l CrudEvents[E, In, ID]) error { return l.OnCount(ctx, n) })
}

func (b *Broadcaster[E, In, ID]) OnExists(ctx context.Context, ok bool, id ID) error {
	return b.each(func(l CrudEvents[E, In, ID]) error { return l.OnExists(ctx, ok, id) })
}

func (b *Broadcaster[E, In, ID]) OnPage(ctx context.Context, p models.Page[E]) error {
	return b.each(func(l CrudEvents[E, In, ID]) error { return l.OnPage(ctx, p) })
}

func (b *Broadcaster[E, In, ID]) OnBeforeCreate(ctx context.Context, in In, e E) error {
	return b.each(func(l CrudEvents[E, In, ID]) error { return l.OnBeforeCreate(ctx, in, e) })
}

func (b *Broadcaster[E, In, ID]) OnAfterCreate(ctx context.Context, in In, e E) error {
	return b.each(func(l CrudEvents[E, In, ID]) error { return l.OnAfterCreate(ctx, in, e) })
}

func (b *Broadcaster[E, In, ID]) OnBeforeUpdate(ctx context.Context, in In, e E) error {
	return b.each(func(l CrudEvents[E, In, ID]) error { return l.OnBeforeUpdate(ctx, in, e) })
}

func (b *Broadcaster[E, In, ID]) OnAfterUpdate(ctx context.Context, in In, e E) error {
	return b.each(func(l CrudEvents[E, In, ID]) error { return l.OnAfterUpdate(ctx, in, e) })
}

func (b *Broadcaster[E, In, ID]) OnBeforeDelete(ctx context.Context, e E) error {
	return b.each(func(l CrudEvents[E, In, ID]) error { return l.OnBeforeDelete(ctx, e) })
}

func (b *Broadcaster[E, In, ID]) OnAfterDelete(ctx context.Context, e E) error {
	return b.each(func(l CrudEvents[E, In, ID]) error { return l.OnAfterDelete(ctx, e) })
}

func (b *Broadcaster[E, In, ID]) EachEntity(ctx context.Context, e E) error {
	return b.each(func(l CrudEvents[E, In, ID]) error { return l.EachEntity(ctx, e) })
}

// Widened adapts a listener declared over any to concrete type parameters.
type Widened[E, In, ID any] struct {
	inner CrudEvents[any, any, any]
}

// Widen lets a listener written without knowing the entity, input or identifier types observe
// a typed provider. Slices and pages are re-boxed element by element.
func Widen[E, In, ID any](l CrudEvents[any, any, any]) *Widened[E, In, ID] {
	return &Widened[E, In, ID]{inner: l}
}

func boxAll[T any](items []T) []any {
	out := make([]any, len(items))
	for i, v := range items {
		out[i] = v
	}
	return out
}

func (w *Widened[E, In, ID]) OnFind(ctx context.Context, e E) error {
	return w.inner.OnFind(ctx, e)
}

func (w *Widened[E, In, ID]) OnFindMany(ctx context.Context, es []E, ids []ID) error {
	return w.inner.OnFindMany(ctx, boxAll(es), boxAll(ids))
}

func (w *Widened[E, In, ID]) OnCount(ctx context.Context, n int64) error {
	return w.inner.OnCount(ctx, n)
}

func (w *Widened[E, In, ID]) OnExists(ctx context.Context, ok bool, id ID) error {
	return w.inner.OnExists(ctx, ok, id)
}

func (w *Widened[E, In, ID]) OnPage(ctx context.Context, p models.Page[E]) error {
	return w.inner.OnPage(ctx, models.Page[any]{
		Content:       boxAll(p.Content),
		Pagination:    p.Pagination,
		Sort:          p.Sort,
		TotalElements: p.TotalElements,
	})
}

func (w *Widened[E, In, ID]) OnBeforeCreate(ctx context.Context, in In, e E) error {
	return w.inner.OnBeforeCreate(ctx, in, e)
}

func (w *Widened[E, In, ID]) OnAfterCreate(ctx context.Context, in In, e E) error {
	return w.inner.OnAfterCreate(ctx, in, e)
}

func (w *Widened[E, In, ID]) OnBeforeUpdate(ctx context.Context, in In, e E) error {
	return w.inner.OnBeforeUpdate(ctx, in, e)
}

func (w *Widened[E, In, ID]) OnAfterUpdate(ctx context.Context, in In, e E) error {
	return w.inner.OnAfterUpdate(ctx, in, e)
}

func (w *Widened[E, In, ID]) OnBeforeDelete(ctx context.Context, e E) error {
	return w.inner.OnBeforeDelete(ctx, e)
}

func (w *Widened[E, In, ID]) OnAfterDelete(ctx context.Context, e E) error {
	return w.inner.OnAfterDelete(ctx, e)
}

func (w *Widened[E, In, ID]) EachEntity(ctx context.Context, e E) error {
	return w.inner.EachEntity(ctx, e)
}
