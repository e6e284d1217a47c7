package crud

import (
	"fmt"
	"io"
	"reflect"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/crux/internal/events"
	"github.com/desertthunder/crux/internal/models"
)

// config collects the optional collaborators of a provider.
type config[E, In, ID any] struct {
	read       events.ReadEvents[E, ID]
	write      events.WriteEvents[E, In]
	hooks      Hooks
	asyncHooks AsyncHooks
	tx         Transactor
	asyncTx    AsyncTransactor
	factory    func() (E, error)
	entityName string
	logger     *log.Logger
}

// Option configures a [Provider] or [AsyncProvider].
type Option[E, In, ID any] func(*config[E, In, ID])

func newConfig[E, In, ID any](opts []Option[E, In, ID]) *config[E, In, ID] {
	c := &config[E, In, ID]{}
	for _, opt := range opts {
		opt(c)
	}

	if c.read == nil {
		c.read = events.NopRead[E, ID]{}
	}
	if c.write == nil {
		c.write = events.NopWrite[E, In]{}
	}
	if c.hooks == nil {
		c.hooks = NopHooks{}
	}
	if c.tx == nil {
		c.tx = Passthrough{}
	}
	if c.factory == nil {
		c.factory = DefaultFactory[E]
	}
	if c.entityName == "" {
		c.entityName = EntityName[E]()
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	return c
}

// WithEvents sends read notifications and write notifications to l.
// A listener built with [events.Compose] has its halves split so each notification reaches
// only the half it belongs to.
func WithEvents[E, In, ID any](l events.CrudEvents[E, In, ID]) Option[E, In, ID] {
	return func(c *config[E, In, ID]) {
		if s, ok := l.(events.Splitter[E, In, ID]); ok {
			c.read, c.write = s.Split()
			return
		}
		c.read, c.write = l, l
	}
}

// WithReadEvents replaces the read listener.
func WithReadEvents[E, In, ID any](l events.ReadEvents[E, ID]) Option[E, In, ID] {
	return func(c *config[E, In, ID]) { c.read = l }
}

// WithWriteEvents replaces the write listener.
func WithWriteEvents[E, In, ID any](l events.WriteEvents[E, In]) Option[E, In, ID] {
	return func(c *config[E, In, ID]) { c.write = l }
}

// WithHooks installs pre and post hooks.
func WithHooks[E, In, ID any](h Hooks) Option[E, In, ID] {
	return func(c *config[E, In, ID]) { c.hooks = h }
}

// WithAsyncHooks installs deferred pre and post hooks. It takes precedence over [WithHooks].
func WithAsyncHooks[E, In, ID any](h AsyncHooks) Option[E, In, ID] {
	return func(c *config[E, In, ID]) { c.asyncHooks = h }
}

// WithTransactor wraps write operations in tx.
func WithTransactor[E, In, ID any](tx Transactor) Option[E, In, ID] {
	return func(c *config[E, In, ID]) { c.tx = tx }
}

// WithAsyncTransactor wraps write operations in a deferred transaction.
// It takes precedence over [WithTransactor].
func WithAsyncTransactor[E, In, ID any](tx AsyncTransactor) Option[E, In, ID] {
	return func(c *config[E, In, ID]) { c.asyncTx = tx }
}

// WithFactory sets the constructor used to obtain a fresh entity on create.
func WithFactory[E, In, ID any](fn func() (E, error)) Option[E, In, ID] {
	return func(c *config[E, In, ID]) { c.factory = fn }
}

// WithEntityName sets the type name reported by [models.NotFoundError].
func WithEntityName[E, In, ID any](name string) Option[E, In, ID] {
	return func(c *config[E, In, ID]) { c.entityName = name }
}

// WithLogger traces every pipeline step at debug level.
func WithLogger[E, In, ID any](l *log.Logger) Option[E, In, ID] {
	return func(c *config[E, In, ID]) { c.logger = l }
}

// DefaultFactory returns a fresh entity without a caller-supplied constructor.
//
// Pointer types get a newly allocated zero value of their element type. Interface types have
// no zero value that can be populated and fail with [models.ErrInstantiation]. All other types
// use their zero value.
func DefaultFactory[E any]() (E, error) {
	var zero E
	t := reflect.TypeFor[E]()
	switch t.Kind() {
	case reflect.Pointer:
		return reflect.New(t.Elem()).Interface().(E), nil
	case reflect.Interface:
		return zero, fmt.Errorf("%w: %s is an interface, supply a factory", models.ErrInstantiation, t)
	default:
		return zero, nil
	}
}

// EntityName is the bare type name of E, looking through pointers.
func EntityName[E any]() string {
	t := reflect.TypeFor[E]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	return t.Name()
}
