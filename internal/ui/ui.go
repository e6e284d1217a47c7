package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/crux/internal/models"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ListView ViewState = iota
	DetailView
	ConfirmView
)

// Browser is the part of the track lifecycle the TUI drives.
type Browser interface {
	Page(ctx context.Context, search, query string, p models.Pagination, s models.Sort) (models.Page[models.TrackView], error)
	Find(ctx context.Context, id string) (models.TrackView, error)
	Delete(ctx context.Context, id string) error
}

// Cache returns tracks that were recently read or written.
type Cache interface {
	Get(id string) (*models.Track, bool)
}

// Option configures a [Model].
type Option func(*Model)

// WithCache shows cached tracks in the detail view while the fresh read is in flight.
func WithCache(c Cache) Option {
	return func(m *Model) { m.cache = c }
}

// WithSort orders every page by s.
func WithSort(s models.Sort) Option {
	return func(m *Model) { m.sort = s }
}

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	view       ViewState
	browser    Browser
	cache      Cache
	width      int
	height     int
	pagination models.Pagination
	sort       models.Sort
	term       string
	searching  bool
	input      textinput.Model
	page       models.Page[models.TrackView]
	trackList  list.Model
	selected   *models.TrackView
	cached     bool
	status     string
	err        error
	help       help.Model
	keys       keyMap
}

// NewModel creates a browser showing pageSize tracks at a time.
func NewModel(ctx context.Context, browser Browser, pageSize int, opts ...Option) *Model {
	input := textinput.New()
	input.Placeholder = "title, artist or album"
	input.Prompt = "/ "

	trackList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	trackList.Title = "Tracks"
	trackList.SetFilteringEnabled(false)
	trackList.SetShowHelp(false)

	m := &Model{
		ctx:        ctx,
		view:       ListView,
		browser:    browser,
		pagination: models.PageOf(0, max(pageSize, 1)),
		input:      input,
		trackList:  trackList,
		help:       help.New(),
		keys:       newKeyMap(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init loads the first page.
func (m *Model) Init() tea.Cmd {
	return m.fetchPage()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.trackList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.handleSearchKeys(msg)
		}
		if m.err != nil && key.Matches(msg, m.keys.back) {
			m.err = nil
			return m, nil
		}
		switch m.view {
		case ListView:
			return m.handleListKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPageFetched:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.page = msg.data.(models.Page[models.TrackView])
		m.trackList.Title = m.listTitle()
		return m, m.trackList.SetItems(trackItems(m.page.Content))

	case MsgTrackFetched:
		track := msg.data.(models.TrackView)
		if m.view != DetailView || m.selected == nil || m.selected.ID != track.ID {
			return m, nil
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.selected = &track
		m.cached = false
		return m, nil

	case MsgTrackDeleted:
		if msg.err != nil {
			m.err = msg.err
			m.view = ListView
			return m, nil
		}
		m.status = fmt.Sprintf("deleted %s", msg.data.(string))
		m.selected = nil
		m.view = ListView
		if m.page.Len() == 1 {
			m.pagination = m.pagination.Previous()
		}
		return m, m.fetchPage()
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress esc to dismiss, q to quit", m.err))
	}

	switch m.view {
	case ListView:
		return m.renderList()
	case DetailView:
		return m.renderDetail()
	case ConfirmView:
		return m.renderConfirm()
	default:
		return ""
	}
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.input.Blur()
		m.term = strings.TrimSpace(m.input.Value())
		m.pagination = models.PageOf(0, m.pagination.Size)
		return m, m.fetchPage()
	case tea.KeyEsc:
		m.searching = false
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if track, ok := m.highlighted(); ok {
			return m, m.open(track)
		}
		return m, nil
	case key.Matches(msg, m.keys.search):
		m.searching = true
		m.input.SetValue(m.term)
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.next):
		if !m.page.HasNext() {
			return m, nil
		}
		m.pagination = m.pagination.Next()
		return m, m.fetchPage()
	case key.Matches(msg, m.keys.prev):
		if m.pagination.Number == 0 {
			return m, nil
		}
		m.pagination = m.pagination.Previous()
		return m, m.fetchPage()
	case key.Matches(msg, m.keys.refresh):
		m.status = ""
		return m, m.fetchPage()
	case key.Matches(msg, m.keys.remove):
		if track, ok := m.highlighted(); ok {
			m.selected = &track
			m.view = ConfirmView
		}
		return m, nil
	case key.Matches(msg, m.keys.back):
		if m.term == "" {
			return m, nil
		}
		m.term = ""
		m.pagination = models.PageOf(0, m.pagination.Size)
		return m, m.fetchPage()
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = ListView
		m.selected = nil
		return m, nil
	case key.Matches(msg, m.keys.remove):
		m.view = ConfirmView
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		return m, m.fetchTrack(m.selected.ID)
	}
	return m, nil
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		return m, m.deleteTrack(m.selected.ID)
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = ListView
		m.selected = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) highlighted() (models.TrackView, bool) {
	item, ok := m.trackList.SelectedItem().(trackItem)
	if !ok {
		return models.TrackView{}, false
	}
	return item.track, true
}

// open switches to the detail view, showing the cached copy of track when there is one.
func (m *Model) open(track models.TrackView) tea.Cmd {
	m.view = DetailView
	m.selected = &track
	m.cached = false
	if m.cache != nil {
		if cached, ok := m.cache.Get(track.ID); ok {
			if view, err := (models.TrackMapper{}).ToOutput(m.ctx, cached); err == nil {
				m.selected = &view
				m.cached = true
			}
		}
	}
	return m.fetchTrack(track.ID)
}

func (m *Model) fetchPage() tea.Cmd {
	ctx, browser, term, p, s := m.ctx, m.browser, m.term, m.pagination, m.sort
	return func() tea.Msg {
		page, err := browser.Page(ctx, term, "", p, s)
		return pageFetchedMsg(page, err)
	}
}

func (m *Model) fetchTrack(id string) tea.Cmd {
	ctx, browser := m.ctx, m.browser
	return func() tea.Msg {
		track, err := browser.Find(ctx, id)
		if err != nil {
			track.ID = id
		}
		return trackFetchedMsg(track, err)
	}
}

func (m *Model) deleteTrack(id string) tea.Cmd {
	ctx, browser := m.ctx, m.browser
	return func() tea.Msg {
		return trackDeletedMsg(id, browser.Delete(ctx, id))
	}
}

func (m *Model) listTitle() string {
	title := fmt.Sprintf("Tracks %d/%d (%d total)", m.page.Pagination.Number+1, max(m.page.TotalPages(), 1), m.page.TotalElements)
	if m.term != "" {
		title = fmt.Sprintf("%s matching %q", title, m.term)
	}
	return title
}

func (m *Model) renderList() string {
	var b strings.Builder
	b.WriteString(m.trackList.View())
	if m.searching {
		b.WriteString("\n" + m.input.View())
	}
	if m.status != "" {
		b.WriteString("\n" + styles.ok.Render(m.status))
	}

	if m.help.ShowAll {
		b.WriteString("\n\n" + m.help.View(m.keys))
		return b.String()
	}
	helpKeys := []key.Binding{m.keys.enter, m.keys.prev, m.keys.next, m.keys.search, m.keys.remove, m.keys.help, m.keys.quit}
	b.WriteString("\n\n" + styles.help.Render(m.help.ShortHelpView(helpKeys)))
	return b.String()
}

func (m *Model) renderDetail() string {
	t := m.selected
	title := styles.title.Render(t.Title)
	if m.cached {
		title += " " + styles.warn.Render("(cached)")
	}

	rows := [][2]string{
		{"Artist", t.Artist},
		{"Album", t.Album},
		{"Length", t.Length()},
		{"Service", t.Service},
		{"Remote ID", t.ServiceID},
		{"ISRC", t.ISRC},
		{"ID", t.ID},
	}
	if !t.CreatedAt.IsZero() {
		rows = append(rows, [2]string{"Created", t.CreatedAt.Local().Format("2006-01-02 15:04")})
	}
	if !t.UpdatedAt.IsZero() {
		rows = append(rows, [2]string{"Updated", t.UpdatedAt.Local().Format("2006-01-02 15:04")})
	}

	var b strings.Builder
	b.WriteString(title + "\n")
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		fmt.Fprintf(&b, "%s %s\n", styles.label.Render(row[0]), row[1])
	}

	helpKeys := []key.Binding{m.keys.back, m.keys.refresh, m.keys.remove, m.keys.quit}
	b.WriteString("\n" + styles.help.Render(m.help.ShortHelpView(helpKeys)))
	return b.String()
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Delete '%s'?", m.selected.Title))
	info := fmt.Sprintf("\nArtist: %s\nID: %s\n", m.selected.Artist, m.selected.ID)

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}
