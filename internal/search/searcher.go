package search

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

const (
	DefaultDebounce  = 300 * time.Millisecond
	DefaultMinLength = 2
	DefaultRecent    = 10
	DefaultPageSize  = 20
)

type VideoSearcher interface {
	Search(ctx context.Context, q models.SearchQuery) (*models.Page[models.Video], error)
}

type PlaylistSearcher interface {
	Search(ctx context.Context, q models.SearchQuery) (*models.Page[models.Playlist], error)
}

// HistoryStore persists terms; [repositories.SearchHistoryRepository] implements it.
type HistoryStore interface {
	Add(ctx context.Context, term string) error
	List(ctx context.Context, limit int) ([]string, error)
	Remove(ctx context.Context, term string) error
	Clear(ctx context.Context) error
}

// EntityResults holds one entity type's results.
type EntityResults[T any] struct {
	Items      []T
	Pagination models.Pagination
	Loading    bool
	Err        error
}

// Item is one row of the combined view.
type Item struct {
	Type     models.SearchType
	Video    *models.Video
	Playlist *models.Playlist
}

func (i Item) Title() string {
	if i.Video != nil {
		return i.Video.Title
	}
	if i.Playlist != nil {
		return i.Playlist.Title
	}
	return ""
}

// Results is a copy of the searcher's state.
type Results struct {
	Params    Params
	Videos    EntityResults[models.Video]
	Playlists EntityResults[models.Playlist]
}

// Loading is true while either entity search is running.
func (r Results) Loading() bool { return r.Videos.Loading || r.Playlists.Loading }

// Err joins the errors of both entity searches.
func (r Results) Err() error { return errors.Join(r.Videos.Err, r.Playlists.Err) }

// All lists videos then playlists.
func (r Results) All() []Item {
	out := make([]Item, 0, len(r.Videos.Items)+len(r.Playlists.Items))
	for i := range r.Videos.Items {
		out = append(out, Item{Type: models.SearchVideos, Video: &r.Videos.Items[i]})
	}
	for i := range r.Playlists.Items {
		out = append(out, Item{Type: models.SearchPlaylists, Playlist: &r.Playlists.Items[i]})
	}
	return out
}

// Empty reports whether no results are held.
func (r Results) Empty() bool { return len(r.Videos.Items) == 0 && len(r.Playlists.Items) == 0 }

// Options configure a [Searcher]. Zero values take the package defaults.
type Options struct {
	Debounce    time.Duration
	MinLength   int
	RecentLimit int
	PageSize    int
	Logger      *log.Logger
}

// OptionsFromConfig maps [shared.SearchConfig] onto [Options].
func OptionsFromConfig(cfg shared.SearchConfig) Options {
	return Options{Debounce: cfg.Debounce(), MinLength: cfg.MinLength, RecentLimit: cfg.RecentLimit}
}

// Searcher orchestrates searches. It is safe for concurrent use.
type Searcher struct {
	videos    VideoSearcher
	playlists PlaylistSearcher
	history   HistoryStore
	opts      Options
	logger    *log.Logger
	debounce  *Debouncer

	subMu sync.Mutex
	subs  map[int]func()
	next  int

	mu      sync.Mutex
	results Results
	seq     int
	cancel  context.CancelFunc
}

// New builds a searcher. history may be nil.
func New(videos VideoSearcher, playlists PlaylistSearcher, history HistoryStore, opts Options) *Searcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultMinLength
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = DefaultRecent
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewDiscardLogger()
	}
	return &Searcher{
		videos:    videos,
		playlists: playlists,
		history:   history,
		opts:      opts,
		logger:    shared.WithLogger(opts.Logger, "component", "search"),
		debounce:  NewDebouncer(opts.Debounce),
		subs:      make(map[int]func()),
	}
}

func (s *Searcher) Subscribe(fn func()) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.next
	s.next++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Searcher) notify() {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *Searcher) Snapshot() Results {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.results
	out.Videos.Items = slices.Clone(s.results.Videos.Items)
	out.Playlists.Items = slices.Clone(s.results.Playlists.Items)
	return out
}

// Input records p and schedules a search after the debounce delay. Short terms clear at once.
func (s *Searcher) Input(ctx context.Context, p Params) {
	if s.tooShort(p) {
		s.debounce.Stop()
		s.clear(p)
		return
	}
	s.mu.Lock()
	s.results.Params = p
	s.mu.Unlock()
	s.notify()
	s.debounce.Trigger(func() {
		if err := s.Run(ctx, p); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Debug("search failed", "q", p.Query, "err", err)
		}
	})
}

func (s *Searcher) tooShort(p Params) bool {
	return utf8.RuneCountInString(p.term()) < s.opts.MinLength
}

// Clear cancels any running search and empties the results.
func (s *Searcher) Clear() {
	s.debounce.Stop()
	s.clear(Params{})
}

func (s *Searcher) clear(p Params) {
	s.mu.Lock()
	s.seq++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.results = Results{Params: p}
	s.mu.Unlock()
	s.notify()
}

// Run searches immediately, superseding any search in flight.
func (s *Searcher) Run(ctx context.Context, p Params) error {
	if s.tooShort(p) {
		s.clear(p)
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	seq := s.seq
	s.cancel = cancel
	wantVideos, wantPlaylists := p.wants(models.SearchVideos), p.wants(models.SearchPlaylists)
	s.results = Results{
		Params:    p,
		Videos:    EntityResults[models.Video]{Loading: wantVideos},
		Playlists: EntityResults[models.Playlist]{Loading: wantPlaylists},
	}
	s.mu.Unlock()
	s.notify()

	q := p.query(s.opts.PageSize)
	var wg sync.WaitGroup
	if wantVideos {
		wg.Add(1)
		go func() {
			defer wg.Done()
			page, err := s.videos.Search(runCtx, q)
			s.apply(runCtx, seq, func(r *Results) {
				r.Videos = entity(page, err)
			})
		}()
	}
	if wantPlaylists {
		wg.Add(1)
		go func() {
			defer wg.Done()
			page, err := s.playlists.Search(runCtx, q)
			s.apply(runCtx, seq, func(r *Results) {
				r.Playlists = entity(page, err)
			})
		}()
	}
	wg.Wait()

	if runCtx.Err() != nil {
		return context.Canceled
	}
	s.remember(ctx, p.term())

	s.mu.Lock()
	if s.seq == seq {
		s.cancel = nil
	}
	err := s.results.Err()
	s.mu.Unlock()
	return err
}

func entity[T any](page *models.Page[T], err error) EntityResults[T] {
	if err != nil {
		return EntityResults[T]{Err: err}
	}
	return EntityResults[T]{Items: page.Items, Pagination: page.Pagination}
}

// apply updates results unless seq was superseded or ctx ended.
func (s *Searcher) apply(ctx context.Context, seq int, fn func(*Results)) {
	s.mu.Lock()
	if seq != s.seq || ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	fn(&s.results)
	s.mu.Unlock()
	s.notify()
}

func (s *Searcher) remember(ctx context.Context, term string) {
	if s.history == nil {
		return
	}
	if err := s.history.Add(context.WithoutCancel(ctx), term); err != nil {
		s.logger.Warn("failed to save search history", "err", err)
	}
}

// History lists saved terms, most recent first.
func (s *Searcher) History(ctx context.Context) ([]string, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.List(ctx, 0)
}

// Recent lists at most the configured number of recent terms for suggestions.
func (s *Searcher) Recent(ctx context.Context) ([]string, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.List(ctx, s.opts.RecentLimit)
}

func (s *Searcher) RemoveHistory(ctx context.Context, term string) error {
	if s.history == nil {
		return nil
	}
	return s.history.Remove(ctx, term)
}

func (s *Searcher) ClearHistory(ctx context.Context) error {
	if s.history == nil {
		return nil
	}
	return s.history.Clear(ctx)
}

// Close stops the debouncer and cancels any running search.
func (s *Searcher) Close() {
	s.Clear()
}
