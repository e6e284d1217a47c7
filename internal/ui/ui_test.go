package ui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/crux/internal/models"
)

type fakeBrowser struct {
	tracks   []models.TrackView
	searches []string
	pages    []models.Pagination
	deleted  []string
	findErr  error
}

func (f *fakeBrowser) Page(_ context.Context, search, _ string, p models.Pagination, s models.Sort) (models.Page[models.TrackView], error) {
	f.searches = append(f.searches, search)
	f.pages = append(f.pages, p)
	return models.SlicePage(f.tracks, p, s), nil
}

func (f *fakeBrowser) Find(_ context.Context, id string) (models.TrackView, error) {
	if f.findErr != nil {
		return models.TrackView{}, f.findErr
	}
	for _, t := range f.tracks {
		if t.ID == id {
			return t, nil
		}
	}
	return models.TrackView{}, models.NewNotFoundError("Track", id)
}

func (f *fakeBrowser) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type mapCache map[string]*models.Track

func (c mapCache) Get(id string) (*models.Track, bool) {
	t, ok := c[id]
	return t, ok
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

// run executes cmd and feeds its message back into m, ignoring commands that produce nothing
// the model handles.
func run(m *Model, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	if msg, ok := cmd().(Msg); ok {
		m.Update(msg)
	}
}

func newBrowser() *fakeBrowser {
	return &fakeBrowser{tracks: []models.TrackView{
		{ID: "a", Title: "Paranoid Android", Artist: "Radiohead", Duration: 387},
		{ID: "b", Title: "Karma Police", Artist: "Radiohead", Duration: 264},
		{ID: "c", Title: "Hyperballad", Artist: "Bjork", Duration: 321},
	}}
}

func TestModel(t *testing.T) {
	ctx := context.Background()

	t.Run("loads and pages", func(t *testing.T) {
		b := newBrowser()
		m := NewModel(ctx, b, 2)
		m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})

		run(m, m.Init())
		assert.Equal(t, 2, m.page.Len())
		assert.Equal(t, "Tracks 1/2 (3 total)", m.trackList.Title)
		assert.Contains(t, m.View(), "Paranoid Android")

		_, cmd := m.Update(runes("]"))
		run(m, cmd)
		assert.Equal(t, models.PageOf(1, 2), b.pages[len(b.pages)-1])
		assert.Equal(t, 1, m.page.Len())

		_, cmd = m.Update(runes("]"))
		assert.Nil(t, cmd, "no page after the last one")

		_, cmd = m.Update(runes("["))
		run(m, cmd)
		assert.Equal(t, models.PageOf(0, 2), b.pages[len(b.pages)-1])
	})

	t.Run("full help", func(t *testing.T) {
		m := NewModel(ctx, newBrowser(), 10)
		m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

		m.Update(runes("?"))
		assert.True(t, m.help.ShowAll)
		assert.Contains(t, m.View(), "refresh")

		m.Update(runes("?"))
		assert.False(t, m.help.ShowAll)
	})

	t.Run("search", func(t *testing.T) {
		b := newBrowser()
		m := NewModel(ctx, b, 10)
		m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
		run(m, m.Init())

		m.Update(runes("/"))
		require.True(t, m.searching)
		m.Update(runes("bob"))
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		run(m, cmd)

		assert.False(t, m.searching)
		assert.Equal(t, "bob", b.searches[len(b.searches)-1])
		assert.Contains(t, m.trackList.Title, `matching "bob"`)

		_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		run(m, cmd)
		assert.Equal(t, "", b.searches[len(b.searches)-1], "esc clears the search")
	})

	t.Run("detail prefers cache then refreshes", func(t *testing.T) {
		b := newBrowser()
		cache := mapCache{"a": {ID: "a", Title: "Paranoid Android (cached)", Artist: "Radiohead"}}
		m := NewModel(ctx, b, 10, WithCache(cache))
		m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
		run(m, m.Init())

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		require.Equal(t, DetailView, m.view)
		assert.True(t, m.cached)
		assert.Contains(t, m.View(), "(cached)")

		run(m, cmd)
		assert.False(t, m.cached)
		assert.Equal(t, "Paranoid Android", m.selected.Title)

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		assert.Equal(t, ListView, m.view)
	})

	t.Run("find failure shows error", func(t *testing.T) {
		b := newBrowser()
		b.findErr = errors.New("database locked")
		m := NewModel(ctx, b, 10)
		m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
		run(m, m.Init())

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		run(m, cmd)
		assert.Contains(t, m.View(), "database locked")

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		assert.NoError(t, m.err)
	})

	t.Run("delete with confirmation", func(t *testing.T) {
		b := newBrowser()
		m := NewModel(ctx, b, 10)
		m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
		run(m, m.Init())

		m.Update(runes("d"))
		require.Equal(t, ConfirmView, m.view)
		assert.Contains(t, m.View(), "Delete 'Paranoid Android'?")

		m.Update(runes("n"))
		assert.Equal(t, ListView, m.view)
		assert.Empty(t, b.deleted)

		m.Update(runes("d"))
		_, cmd := m.Update(runes("y"))
		run(m, cmd)

		assert.Equal(t, []string{"a"}, b.deleted)
		assert.Equal(t, ListView, m.view)
		assert.Equal(t, "deleted a", m.status)

		fetches := len(b.pages)
		_, cmd = m.Update(runes("r"))
		run(m, cmd)
		assert.Equal(t, fetches+1, len(b.pages))
		assert.Empty(t, m.status)
	})
}
