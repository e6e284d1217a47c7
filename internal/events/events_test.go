package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/crux/internal/models"
	tu "github.com/desertthunder/crux/internal/testing"
)

type item struct{ name string }

func label(i *item) string { return i.name }

func recorder(j *tu.Journal) *tu.Recorder[*item, string, int] {
	r := tu.NewRecorder[*item, string, int](j)
	r.Label = label
	return r
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	var l CrudEvents[*item, string, int] = Nop[*item, string, int]{}

	assert.NoError(t, l.OnFind(ctx, &item{}))
	assert.NoError(t, l.OnPage(ctx, models.Page[*item]{}))
	assert.NoError(t, l.OnAfterDelete(ctx, &item{}))
	assert.NoError(t, l.EachEntity(ctx, &item{}))
}

func TestCompose(t *testing.T) {
	ctx := context.Background()
	reads, writes := &tu.Journal{}, &tu.Journal{}
	c := Compose[*item, string, int](recorder(reads), recorder(writes))
	a := &item{name: "a"}

	require.NoError(t, c.OnFind(ctx, a))
	require.NoError(t, c.OnCount(ctx, 2))
	require.NoError(t, c.OnBeforeCreate(ctx, "in", a))
	require.NoError(t, c.OnAfterDelete(ctx, a))

	assert.Equal(t, []string{"OnFind:a", "OnCount:2"}, reads.Entries())
	assert.Equal(t, []string{"OnBeforeCreate:a", "OnAfterDelete:a"}, writes.Entries())

	t.Run("each entity reaches read then write", func(t *testing.T) {
		j := &tu.Journal{}
		r, w := recorder(j), recorder(j)
		r.Label = func(i *item) string { return "read:" + i.name }
		w.Label = func(i *item) string { return "write:" + i.name }

		require.NoError(t, Compose[*item, string, int](r, w).EachEntity(ctx, a))
		assert.Equal(t, []string{"EachEntity:read:a", "EachEntity:write:a"}, j.Entries())
	})

	t.Run("split returns the halves", func(t *testing.T) {
		r, w := recorder(reads), recorder(writes)
		gotR, gotW := Compose[*item, string, int](r, w).Split()
		assert.Same(t, r, gotR)
		assert.Same(t, w, gotW)

		var s any = c
		_, ok := s.(Splitter[*item, string, int])
		assert.True(t, ok)
	})

	t.Run("nil halves become nops", func(t *testing.T) {
		c := Compose[*item, string, int](nil, nil)
		assert.NoError(t, c.OnFind(ctx, a))
		assert.NoError(t, c.OnAfterCreate(ctx, "in", a))
		assert.NoError(t, c.EachEntity(ctx, a))
	})
}

func TestBroadcast(t *testing.T) {
	ctx := context.Background()
	j := &tu.Journal{}
	first, second := recorder(j), recorder(j)
	first.Label = func(*item) string { return "first" }
	second.Label = func(*item) string { return "second" }

	b := Broadcast[*item, string, int](first)
	b.Add(second)
	assert.Equal(t, 2, b.Len())

	require.NoError(t, b.OnAfterUpdate(ctx, "in", &item{}))
	require.NoError(t, b.OnExists(ctx, true, 1))
	assert.Equal(t, []string{"OnAfterUpdate:first", "OnAfterUpdate:second", "OnExists:true", "OnExists:true"}, j.Entries())

	t.Run("first error stops delivery", func(t *testing.T) {
		j.Reset()
		boom := errors.New("veto")
		first.Fail["OnBeforeDelete"] = boom

		err := b.OnBeforeDelete(ctx, &item{})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []string{"OnBeforeDelete:first"}, j.Entries())
	})
}

// boxed records the dynamic types it receives.
type boxed struct {
	Nop[any, any, any]
	page  models.Page[any]
	ids   []any
	items []any
}

func (b *boxed) OnPage(_ context.Context, p models.Page[any]) error {
	b.page = p
	return nil
}

func (b *boxed) OnFindMany(_ context.Context, es []any, ids []any) error {
	b.items, b.ids = es, ids
	return nil
}

func TestWiden(t *testing.T) {
	ctx := context.Background()
	inner := &boxed{}
	w := Widen[*item, string, int](inner)
	a, b := &item{name: "a"}, &item{name: "b"}

	page := models.NewPage([]*item{a, b}, models.PageOf(1, 2), models.SortBy(models.Desc("name")), 7)
	require.NoError(t, w.OnPage(ctx, page))
	require.Len(t, inner.page.Content, 2)
	assert.Same(t, a, inner.page.Content[0].(*item))
	assert.Equal(t, page.Pagination, inner.page.Pagination)
	assert.Equal(t, page.Sort, inner.page.Sort)
	assert.EqualValues(t, 7, inner.page.TotalElements)

	require.NoError(t, w.OnFindMany(ctx, []*item{b}, []int{2, 3}))
	assert.Equal(t, []any{2, 3}, inner.ids)
	assert.Same(t, b, inner.items[0].(*item))

	var _ CrudEvents[*item, string, int] = w
}

func TestSettlement(t *testing.T) {
	ctx := context.Background()

	t.Run("commit runs commit callbacks in order", func(t *testing.T) {
		var got []string
		s := &Settlement{}
		txCtx := WithSettlement(ctx, s)
		require.Same(t, s, SettlementFrom(txCtx))

		AfterCommit(txCtx, func() { got = append(got, "first") })
		OnRollback(txCtx, func() { got = append(got, "rollback") })
		AfterCommit(txCtx, func() { got = append(got, "second") })
		assert.Empty(t, got)

		s.Settle(true)
		s.Settle(false)
		assert.Equal(t, []string{"first", "second"}, got)

		AfterCommit(txCtx, func() { got = append(got, "late") })
		assert.Equal(t, []string{"first", "second", "late"}, got)
	})

	t.Run("rollback runs rollback callbacks", func(t *testing.T) {
		var got []string
		s := &Settlement{}
		txCtx := WithSettlement(ctx, s)

		AfterCommit(txCtx, func() { got = append(got, "commit") })
		OnRollback(txCtx, func() { got = append(got, "rollback") })
		s.Settle(false)
		assert.Equal(t, []string{"rollback"}, got)
	})

	t.Run("outside a transaction", func(t *testing.T) {
		var got []string
		assert.Nil(t, SettlementFrom(ctx))
		AfterCommit(ctx, func() { got = append(got, "now") })
		OnRollback(ctx, func() { got = append(got, "never") })
		assert.Equal(t, []string{"now"}, got)
	})
}
