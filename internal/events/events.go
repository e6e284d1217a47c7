package events

import (
	"context"

	"github.com/desertthunder/crux/internal/models"
)

// ReadEvents is notified after each successful read operation.
type ReadEvents[E, ID any] interface {
	OnFind(ctx context.Context, entity E) error
	OnFindMany(ctx context.Context, entities []E, ids []ID) error
	OnCount(ctx context.Context, count int64) error
	OnExists(ctx context.Context, exists bool, id ID) error
	OnPage(ctx context.Context, page models.Page[E]) error
	// EachEntity runs once per returned entity, after the operation-specific callback.
	EachEntity(ctx context.Context, entity E) error
}

// WriteEvents is notified around each mutation, inside the transaction.
type WriteEvents[E, In any] interface {
	OnBeforeCreate(ctx context.Context, input In, entity E) error
	OnAfterCreate(ctx context.Context, input In, entity E) error
	OnBeforeUpdate(ctx context.Context, input In, entity E) error
	OnAfterUpdate(ctx context.Context, input In, entity E) error
	OnBeforeDelete(ctx context.Context, entity E) error
	OnAfterDelete(ctx context.Context, entity E) error
	// EachEntity runs once for the affected entity, after the "after" callback.
	EachEntity(ctx context.Context, entity E) error
}

// CrudEvents receives both read and write notifications.
type CrudEvents[E, In, ID any] interface {
	ReadEvents[E, ID]
	WriteEvents[E, In]
}

// NopRead ignores every read notification.
type NopRead[E, ID any] struct{}

func (NopRead[E, ID]) OnFind(context.Context, E) error { return nil }
func (NopRead[E, ID]) OnFindMany(context.Context, []E, []ID) error { return nil }
func (NopRead[E, ID]) OnCount(context.Context, int64) error { return nil }
func (NopRead[E, ID]) OnExists(context.Context, bool, ID) error { return nil }
func (NopRead[E, ID]) OnPage(context.Context, models.Page[E]) error { return nil }
func (NopRead[E, ID]) EachEntity(context.Context, E) error { return nil }

// NopWrite ignores every write notification.
type NopWrite[E, In any] struct{}

func (NopWrite[E, In]) OnBeforeCreate(context.Context, In, E) error { return nil }
func (NopWrite[E, In]) OnAfterCreate(context.Context, In, E) error { return nil }
func (NopWrite[E, In]) OnBeforeUpdate(context.Context, In, E) error { return nil }
func (NopWrite[E, In]) OnAfterUpdate(context.Context, In, E) error { return nil }
func (NopWrite[E, In]) OnBeforeDelete(context.Context, E) error { return nil }
func (NopWrite[E, In]) OnAfterDelete(context.Context, E) error { return nil }
func (NopWrite[E, In]) EachEntity(context.Context, E) error { return nil }

// Nop ignores every notification. It is the default listener of a provider.
type Nop[E, In, ID any] struct {
	NopRead[E, ID]
	NopWrite[E, In]
}

func (Nop[E, In, ID]) EachEntity(context.Context, E) error { return nil }
