package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture(t *testing.T) {
	ctx := context.Background()

	t.Run("resolved", func(t *testing.T) {
		f := Resolved(5)
		assert.True(t, f.IsDone())
		v, err := f.Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, v)
	})

	t.Run("failed", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := Failed[int](boom).Await(ctx)
		assert.ErrorIs(t, err, boom)

		_, err = Of(1, boom).Await(ctx)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("promise completes once", func(t *testing.T) {
		f, complete := NewPromise[string]()
		assert.False(t, f.IsDone())
		complete("first", nil)
		complete("second", errors.New("ignored"))

		v, err := f.Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, "first", v)
	})

	t.Run("go", func(t *testing.T) {
		f := Go(ctx, func(context.Context) (int, error) { return 42, nil })
		v, err := f.Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	})

	t.Run("go recovers panic", func(t *testing.T) {
		f := Go(ctx, func(context.Context) (int, error) { panic("bad") })
		_, err := f.Await(ctx)
		assert.ErrorContains(t, err, "panic")
	})

	t.Run("go with cancelled context never starts", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		var ran atomic.Bool
		_, err := Go(cctx, func(context.Context) (int, error) {
			ran.Store(true)
			return 1, nil
		}).Await(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, ran.Load())
	})

	t.Run("await honours context", func(t *testing.T) {
		f, _ := NewPromise[int]()
		cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		_, err := f.Await(cctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestThen(t *testing.T) {
	ctx := context.Background()

	t.Run("runs inline on resolved futures", func(t *testing.T) {
		var order []string
		f := Then(ctx, Resolved(1), func(_ context.Context, v int) *Future[int] {
			order = append(order, "first")
			return Resolved(v + 1)
		})
		order = append(order, "after chain")
		f = Then(ctx, f, func(_ context.Context, v int) *Future[int] {
			order = append(order, "second")
			return Resolved(v * 10)
		})

		assert.True(t, f.IsDone())
		v, err := f.Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, 20, v)
		assert.Equal(t, []string{"first", "after chain", "second"}, order)
	})

	t.Run("error skips later steps", func(t *testing.T) {
		boom := errors.New("boom")
		called := false
		f := Then(ctx, Failed[int](boom), func(_ context.Context, v int) *Future[int] {
			called = true
			return Resolved(v)
		})
		_, err := f.Await(ctx)
		assert.ErrorIs(t, err, boom)
		assert.False(t, called)
	})

	t.Run("cancellation before a step prevents it", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		pending, complete := NewPromise[int]()

		var ran atomic.Bool
		f := Then(cctx, pending, func(_ context.Context, v int) *Future[int] {
			ran.Store(true)
			return Resolved(v)
		})

		cancel()
		complete(1, nil)

		_, err := f.Await(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, ran.Load())
	})

	t.Run("continues on completing goroutine", func(t *testing.T) {
		f := Go(ctx, func(context.Context) (int, error) {
			time.Sleep(5 * time.Millisecond)
			return 2, nil
		})
		out := Map(ctx, f, func(_ context.Context, v int) (int, error) { return v * 2, nil })
		v, err := out.Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, v)
	})

	t.Run("nil step result resolves zero", func(t *testing.T) {
		v, err := Then(ctx, Resolved(1), func(context.Context, int) *Future[string] { return nil }).Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, "", v)
	})
}

func TestAll(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		v, err := All[int](nil).Await(ctx)
		require.NoError(t, err)
		assert.Empty(t, v)
	})

	t.Run("preserves input order", func(t *testing.T) {
		slow := Go(ctx, func(context.Context) (int, error) {
			time.Sleep(10 * time.Millisecond)
			return 1, nil
		})
		fast := Resolved(2)
		mid := Go(ctx, func(context.Context) (int, error) { return 3, nil })

		v, err := All([]*Future[int]{slow, fast, mid}).Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3}, v)
	})

	t.Run("first error wins", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := All([]*Future[int]{Resolved(1), Failed[int](boom)}).Await(ctx)
		assert.ErrorIs(t, err, boom)
	})
}
