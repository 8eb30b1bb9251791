package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/search"
	"github.com/desertthunder/vidx/internal/stores"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	VideosView ViewState = iota
	SearchView
	PlaylistsView
	PlaylistView
	UploadsView
)

var viewNames = []string{"Videos", "Search", "Playlists", "Playlist", "Uploads"}

func (v ViewState) String() string {
	if int(v) < len(viewNames) {
		return viewNames[v]
	}
	return ""
}

// Deps are the stores the TUI renders and drives.
type Deps struct {
	Videos    *stores.VideoStore
	Playlists *stores.PlaylistStore
	Uploads   *stores.UploadStore
	Search    *search.Searcher
}

// Model represents the TUI application state.
type Model struct {
	ctx  context.Context
	deps Deps
	view ViewState

	width  int
	height int

	videos    list.Model
	results   list.Model
	playlists list.Model
	entries   list.Model
	query     textinput.Model
	uploads   []models.UploadTask
	current   *models.Playlist
	drag      stores.DragState

	changes     chan struct{}
	unsubscribe []func()

	status string
	err    error
	help   help.Model
	keys   keyMap
}

// NewModel creates a TUI model subscribed to every store in deps. Call [Model.Close] when done.
func NewModel(ctx context.Context, deps Deps) *Model {
	q := textinput.New()
	q.Placeholder = "Search videos and playlists"
	q.Prompt = "/ "

	m := &Model{
		ctx:       ctx,
		deps:      deps,
		view:      VideosView,
		videos:    newList("Trending"),
		results:   newList("Results"),
		playlists: newList("Playlists"),
		entries:   newList("Playlist"),
		query:     q,
		changes:   make(chan struct{}, 1),
		help:      help.New(),
		keys:      newKeyMap(),
	}

	for _, s := range []interface{ Subscribe(func()) func() }{deps.Videos, deps.Playlists, deps.Uploads, deps.Search} {
		m.unsubscribe = append(m.unsubscribe, s.Subscribe(m.changed))
	}
	m.sync()
	return m
}

// changed coalesces store notifications; one pending signal is enough to re-sync.
func (m *Model) changed() {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}

func (m *Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.changes:
			return storeChangedMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

// Close detaches the model from its stores.
func (m *Model) Close() {
	for _, fn := range m.unsubscribe {
		fn()
	}
	m.unsubscribe = nil
}

// Init loads trending videos, the user's playlists and the special lists.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.waitForChange(),
		m.run("", func(ctx context.Context) error {
			return m.deps.Videos.LoadTrending(ctx, models.ListParams{})
		}),
		m.run("", func(ctx context.Context) error {
			return m.deps.Playlists.Load(ctx, models.ListParams{})
		}),
		m.run("", func(ctx context.Context) error {
			_, err := m.deps.Playlists.LoadList(ctx, models.Favorites)
			return err
		}),
		m.run("", func(ctx context.Context) error {
			_, err := m.deps.Playlists.LoadList(ctx, models.WatchLater)
			return err
		}),
	)
}

// run performs a store action off the update loop.
func (m *Model) run(action string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{action: action, err: fn(m.ctx)}
	}
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		for _, l := range []*list.Model{&m.videos, &m.results, &m.playlists, &m.entries} {
			l.SetSize(msg.Width-4, msg.Height-8)
		}
		m.query.Width = msg.Width - 8
		return m, nil

	case storeChangedMsg:
		m.sync()
		return m, m.waitForChange()

	case actionDoneMsg:
		switch {
		case errors.Is(msg.err, context.Canceled):
		case msg.err != nil:
			m.err = msg.err
			m.status = ""
		default:
			m.err = nil
			if msg.action != "" {
				m.status = msg.action
			}
			if msg.open {
				m.view = PlaylistView
			}
		}
		m.sync()
		return m, nil

	case tea.KeyMsg:
		if m.view == SearchView && m.query.Focused() {
			return m.handleQueryKeys(msg)
		}
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		if handled, cmd := m.handleGlobalKeys(msg); handled {
			return m, cmd
		}
		switch m.view {
		case VideosView:
			return m.handleVideoKeys(msg)
		case SearchView:
			return m.handleSearchKeys(msg)
		case PlaylistsView:
			return m.handlePlaylistsKeys(msg)
		case PlaylistView:
			return m.handlePlaylistKeys(msg)
		case UploadsView:
			return m.handleUploadKeys(msg)
		}
	}

	return m.updateLists(msg)
}

// sync rebuilds every list from store snapshots.
func (m *Model) sync() {
	pl := m.deps.Playlists.Snapshot()
	vs := m.deps.Videos.Snapshot()
	m.drag = pl.Drag

	items := make([]list.Item, len(vs.Trending.Items))
	for i, v := range vs.Trending.Items {
		items[i] = videoItem{video: v, favorite: pl.Favorites[v.ID], watchLater: pl.WatchLater[v.ID]}
	}
	m.videos.SetItems(items)

	items = make([]list.Item, len(pl.Playlists.Items))
	for i, p := range pl.Playlists.Items {
		items[i] = playlistItem{playlist: p}
	}
	m.playlists.SetItems(items)

	m.current = pl.Current
	if m.current != nil {
		m.entries.Title = m.current.Title
		reordering := m.drag.Phase == stores.DragDragging &&
			m.drag.Type == stores.DragReorderInPlaylist &&
			m.drag.Item.PlaylistID == m.current.ID
		items = make([]list.Item, len(m.current.Videos))
		for i, e := range m.current.Videos {
			it := entryItem{entry: e}
			if reordering {
				it.dragging = i == m.drag.Item.Index
				it.target = m.drag.Target != nil && i == m.drag.Target.Index && !it.dragging
			}
			items[i] = it
		}
		m.entries.SetItems(items)
	}

	results := m.deps.Search.Snapshot().All()
	items = make([]list.Item, len(results))
	for i, r := range results {
		items[i] = resultItem{item: r}
	}
	m.results.SetItems(items)

	m.uploads = m.deps.Uploads.Active()
}

func (m *Model) handleGlobalKeys(msg tea.KeyMsg) (bool, tea.Cmd) {
	switch msg.String() {
	case "1":
		m.view = VideosView
	case "2":
		m.view = SearchView
	case "3":
		m.view = PlaylistsView
	case "4":
		m.view = UploadsView
	case "tab":
		m.view = m.nextView()
	case "/":
		m.view = SearchView
		return true, m.query.Focus()
	default:
		return false, nil
	}
	return true, nil
}

// nextView cycles through the top-level views; the playlist view is only reachable by opening one.
func (m *Model) nextView() ViewState {
	switch m.view {
	case VideosView:
		return SearchView
	case SearchView:
		return PlaylistsView
	case PlaylistsView, PlaylistView:
		return UploadsView
	default:
		return VideosView
	}
}

func (m *Model) selectedVideo() (models.Video, bool) {
	switch m.view {
	case VideosView:
		if it, ok := m.videos.SelectedItem().(videoItem); ok {
			return it.video, true
		}
	case SearchView:
		if it, ok := m.results.SelectedItem().(resultItem); ok && it.item.Video != nil {
			return *it.item.Video, true
		}
	case PlaylistView:
		if it, ok := m.entries.SelectedItem().(entryItem); ok {
			return it.entry.Video, true
		}
	}
	return models.Video{}, false
}

// handleVideoActions covers keys shared by every view that lists videos.
func (m *Model) handleVideoActions(msg tea.KeyMsg) (bool, tea.Cmd) {
	v, ok := m.selectedVideo()
	if !ok {
		return false, nil
	}
	switch {
	case key.Matches(msg, m.keys.like):
		return true, m.run("Toggled like on "+v.Title, func(ctx context.Context) error {
			_, err := m.deps.Videos.Like(ctx, v.ID)
			return err
		})
	case key.Matches(msg, m.keys.dislike):
		return true, m.run("Toggled dislike on "+v.Title, func(ctx context.Context) error {
			_, err := m.deps.Videos.Dislike(ctx, v.ID)
			return err
		})
	case key.Matches(msg, m.keys.favorite):
		return true, m.toggleList(models.Favorites, v)
	case key.Matches(msg, m.keys.later):
		return true, m.toggleList(models.WatchLater, v)
	case key.Matches(msg, m.keys.addTo):
		if err := m.deps.Playlists.BeginDrag(stores.DragItem{VideoID: v.ID}, stores.DragMoveToPlaylist); err != nil {
			m.err = err
			return true, nil
		}
		m.status = fmt.Sprintf("Choose a playlist for %q and press enter", v.Title)
		m.view = PlaylistsView
		m.sync()
		return true, nil
	}
	return false, nil
}

func (m *Model) toggleList(sl models.SpecialList, v models.Video) tea.Cmd {
	return func() tea.Msg {
		added, err := m.deps.Playlists.ToggleList(m.ctx, sl, v.ID)
		action := fmt.Sprintf("Removed %q from %s", v.Title, sl)
		if added {
			action = fmt.Sprintf("Added %q to %s", v.Title, sl)
		}
		return actionDoneMsg{action: action, err: err}
	}
}

func (m *Model) handleVideoKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if handled, cmd := m.handleVideoActions(msg); handled {
		return m, cmd
	}
	switch {
	case key.Matches(msg, m.keys.more):
		return m, m.run("", m.deps.Videos.LoadMoreTrending)
	case key.Matches(msg, m.keys.refresh):
		return m, m.run("Reloaded trending", func(ctx context.Context) error {
			return m.deps.Videos.LoadTrending(ctx, models.ListParams{})
		})
	}

	var cmd tea.Cmd
	m.videos, cmd = m.videos.Update(msg)
	return m, cmd
}

func (m *Model) handleQueryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "enter", "esc", "tab", "down":
		m.query.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	prev := m.query.Value()
	m.query, cmd = m.query.Update(msg)
	if m.query.Value() != prev {
		m.deps.Search.Input(m.ctx, search.Params{Query: m.query.Value()})
	}
	return m, cmd
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if handled, cmd := m.handleVideoActions(msg); handled {
		return m, cmd
	}
	if key.Matches(msg, m.keys.enter) {
		if it, ok := m.results.SelectedItem().(resultItem); ok && it.item.Playlist != nil {
			return m, m.openPlaylist(it.item.Playlist.ID)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.results, cmd = m.results.Update(msg)
	return m, cmd
}

func (m *Model) openPlaylist(id string) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: m.deps.Playlists.Open(m.ctx, id), open: true}
	}
}

func (m *Model) moving() bool {
	return m.drag.Phase == stores.DragDragging && m.drag.Type == stores.DragMoveToPlaylist
}

func (m *Model) reordering() bool {
	return m.drag.Phase == stores.DragDragging && m.drag.Type == stores.DragReorderInPlaylist
}

func (m *Model) handlePlaylistsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		if m.moving() {
			m.err = m.deps.Playlists.CancelDrag()
			m.status = "Cancelled"
			m.view = VideosView
			m.sync()
		}
		return m, nil
	case key.Matches(msg, m.keys.enter):
		it, ok := m.playlists.SelectedItem().(playlistItem)
		if !ok {
			return m, nil
		}
		if !m.moving() {
			return m, m.openPlaylist(it.playlist.ID)
		}
		if err := m.deps.Playlists.SetDropTarget(stores.DropTarget{PlaylistID: it.playlist.ID}); err != nil {
			m.err = err
			return m, nil
		}
		return m, m.run("Added to "+it.playlist.Title, m.deps.Playlists.Drop)
	case key.Matches(msg, m.keys.more):
		return m, m.run("", m.deps.Playlists.LoadMore)
	case key.Matches(msg, m.keys.refresh):
		return m, m.run("Reloaded playlists", func(ctx context.Context) error {
			return m.deps.Playlists.Load(ctx, models.ListParams{})
		})
	}

	var cmd tea.Cmd
	m.playlists, cmd = m.playlists.Update(msg)
	return m, cmd
}

func (m *Model) handlePlaylistKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.current == nil {
		if key.Matches(msg, m.keys.back) {
			m.view = PlaylistsView
		}
		return m, nil
	}
	id := m.current.ID

	if m.reordering() {
		switch {
		case key.Matches(msg, m.keys.back):
			m.err = m.deps.Playlists.CancelDrag()
			m.status = "Cancelled"
			m.sync()
			return m, nil
		case key.Matches(msg, m.keys.enter), key.Matches(msg, m.keys.grab):
			return m, m.run("Moved", m.deps.Playlists.Drop)
		case key.Matches(msg, m.keys.up), key.Matches(msg, m.keys.down):
			var cmd tea.Cmd
			m.entries, cmd = m.entries.Update(msg)
			if err := m.deps.Playlists.SetDropTarget(stores.DropTarget{PlaylistID: id, Index: m.entries.Index()}); err != nil {
				m.err = err
			}
			m.sync()
			return m, cmd
		}
		return m, nil
	}

	if handled, cmd := m.handleVideoActions(msg); handled {
		return m, cmd
	}

	it, selected := m.entries.SelectedItem().(entryItem)
	switch {
	case key.Matches(msg, m.keys.back):
		m.view = PlaylistsView
		return m, nil
	case key.Matches(msg, m.keys.grab) && selected:
		idx := m.entries.Index()
		if err := m.deps.Playlists.BeginDrag(stores.DragItem{VideoID: it.entry.Video.ID, PlaylistID: id, Index: idx}, stores.DragReorderInPlaylist); err != nil {
			m.err = err
			return m, nil
		}
		m.err = m.deps.Playlists.SetDropTarget(stores.DropTarget{PlaylistID: id, Index: idx})
		m.status = "Moving " + it.entry.Video.Title
		m.sync()
		return m, nil
	case key.Matches(msg, m.keys.remove) && selected:
		return m, m.run("Removed "+it.entry.Video.Title, func(ctx context.Context) error {
			_, err := m.deps.Playlists.RemoveVideo(ctx, id, it.entry.Video.ID)
			return err
		})
	case key.Matches(msg, m.keys.refresh):
		return m, m.openPlaylist(id)
	}

	var cmd tea.Cmd
	m.entries, cmd = m.entries.Update(msg)
	return m, cmd
}

func (m *Model) handleUploadKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.clear) {
		n := m.deps.Uploads.ClearFinished()
		m.status = fmt.Sprintf("Cleared %d finished uploads", n)
		m.sync()
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case VideosView:
		m.videos, cmd = m.videos.Update(msg)
	case SearchView:
		if m.query.Focused() {
			m.query, cmd = m.query.Update(msg)
		} else {
			m.results, cmd = m.results.Update(msg)
		}
	case PlaylistsView:
		m.playlists, cmd = m.playlists.Update(msg)
	case PlaylistView:
		m.entries, cmd = m.entries.Update(msg)
	}
	return m, cmd
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	switch m.view {
	case VideosView:
		b.WriteString(m.videos.View())
	case SearchView:
		b.WriteString(m.renderSearch())
	case PlaylistsView:
		b.WriteString(m.playlists.View())
	case PlaylistView:
		b.WriteString(m.renderPlaylist())
	case UploadsView:
		b.WriteString(m.renderUploads())
	}

	b.WriteString("\n")
	switch {
	case m.err != nil:
		b.WriteString(styles.err.Render("Error: " + m.err.Error()))
	case m.status != "":
		b.WriteString(styles.ok.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(m.contextKeys()))
	return b.String()
}

func (m *Model) renderTabs() string {
	tabs := []ViewState{VideosView, SearchView, PlaylistsView, UploadsView}
	out := make([]string, len(tabs))
	for i, v := range tabs {
		label := fmt.Sprintf("%d %s", i+1, v)
		if m.view == v || (v == PlaylistsView && m.view == PlaylistView) {
			out[i] = styles.active.Render(label)
		} else {
			out[i] = styles.tab.Render(label)
		}
	}
	return strings.Join(out, " ")
}

func (m *Model) renderSearch() string {
	res := m.deps.Search.Snapshot()
	var b strings.Builder
	b.WriteString(m.query.View())
	b.WriteString("\n")
	switch {
	case res.Loading():
		b.WriteString(styles.help.Render("Searching..."))
	case res.Err() != nil:
		b.WriteString(styles.warn.Render(res.Err().Error()))
	case res.Empty() && m.query.Value() != "":
		b.WriteString(styles.help.Render("No results"))
	}
	b.WriteString("\n")
	b.WriteString(m.results.View())
	return b.String()
}

func (m *Model) renderPlaylist() string {
	if m.current == nil {
		return styles.help.Render("Loading playlist...")
	}
	if len(m.current.Videos) == 0 {
		return styles.title.Render(m.current.Title) + "\n" + styles.help.Render("This playlist is empty")
	}
	return m.entries.View()
}

func (m *Model) renderUploads() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Uploads"))
	b.WriteString("\n")
	if len(m.uploads) == 0 {
		b.WriteString(styles.help.Render("No uploads"))
		return b.String()
	}
	for _, t := range m.uploads {
		title := t.Title
		if title == "" {
			title = t.FileName
		}
		status := string(t.Status)
		switch t.Status {
		case models.UploadCompleted:
			status = styles.ok.Render(status)
		case models.UploadError:
			status = styles.err.Render(status + ": " + t.Error)
		}
		fmt.Fprintf(&b, "%s\n%s %3.0f%% %s\n\n", title, progressBar(t.Progress, 30), t.Progress, status)
	}
	return b.String()
}

func (m *Model) contextKeys() []key.Binding {
	k := m.keys
	switch m.view {
	case VideosView:
		return []key.Binding{k.like, k.dislike, k.favorite, k.later, k.addTo, k.more, k.next, k.quit}
	case SearchView:
		if m.query.Focused() {
			return []key.Binding{k.enter, k.back}
		}
		return []key.Binding{k.search, k.enter, k.like, k.addTo, k.next, k.quit}
	case PlaylistsView:
		if m.moving() {
			drop := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "drop here"))
			return []key.Binding{drop, k.back}
		}
		return []key.Binding{k.enter, k.more, k.refresh, k.next, k.quit}
	case PlaylistView:
		if m.reordering() {
			drop := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "drop"))
			return []key.Binding{k.up, k.down, drop, k.back}
		}
		return []key.Binding{k.grab, k.remove, k.like, k.back, k.quit}
	case UploadsView:
		return []key.Binding{k.clear, k.next, k.quit}
	}
	return k.ShortHelp()
}
