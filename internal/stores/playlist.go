package stores

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

// PlaylistAPI is the part of [services.PlaylistService] the store uses.
type PlaylistAPI interface {
	List(ctx context.Context, p models.ListParams) (*models.Page[models.Playlist], error)
	UserPlaylists(ctx context.Context, userID string, p models.ListParams) (*models.Page[models.Playlist], error)
	Get(ctx context.Context, id string) (*models.Playlist, error)
	Create(ctx context.Context, in models.PlaylistInput) (*models.Playlist, error)
	Update(ctx context.Context, id string, u models.PlaylistUpdate) (*models.Playlist, error)
	Delete(ctx context.Context, id string) error
	AddVideo(ctx context.Context, playlistID, videoID string) (*models.Playlist, error)
	RemoveVideo(ctx context.Context, playlistID, videoID string) (*models.Playlist, error)
	Reorder(ctx context.Context, playlistID string, positions []models.PositionUpdate) (*models.Playlist, error)
	SpecialList(ctx context.Context, list models.SpecialList, p models.ListParams) (*models.Page[models.Video], error)
	AddToSpecial(ctx context.Context, list models.SpecialList, videoID string) error
	RemoveFromSpecial(ctx context.Context, list models.SpecialList, videoID string) error
}

// specialPageSize is the page size used to pull a whole favorites or watch-later list.
const specialPageSize = 100

// PlaylistState is a copy of the store's state.
type PlaylistState struct {
	Playlists     List[models.Playlist]
	Current       *models.Playlist
	CurrentStatus Status
	CurrentErr    error
	Favorites     map[string]bool
	WatchLater    map[string]bool
	Drag          DragState
}

// InList reports whether videoID is in the favorites or watch-later set.
func (s PlaylistState) InList(list models.SpecialList, videoID string) bool {
	switch list {
	case models.Favorites:
		return s.Favorites[videoID]
	case models.WatchLater:
		return s.WatchLater[videoID]
	}
	return false
}

// PlaylistStore owns the playlist list, the open playlist, the special lists and drag-and-drop.
type PlaylistStore struct {
	subscribers
	api  PlaylistAPI
	drag *DragMachine

	mu         sync.Mutex
	state      PlaylistState
	currentSeq int
}

func NewPlaylistStore(api PlaylistAPI) *PlaylistStore {
	s := &PlaylistStore{
		api: api,
		state: PlaylistState{
			Playlists:     List[models.Playlist]{Status: StatusIdle},
			CurrentStatus: StatusIdle,
			Favorites:     map[string]bool{},
			WatchLater:    map[string]bool{},
		},
	}
	s.drag = NewDragMachine(dropActions{s}, s.notify)
	return s
}

func (s *PlaylistStore) Snapshot() PlaylistState {
	s.mu.Lock()
	out := s.state
	out.Playlists = s.state.Playlists.clone()
	if s.state.Current != nil {
		p := s.state.Current.Clone()
		out.Current = &p
	}
	out.Favorites = copySet(s.state.Favorites)
	out.WatchLater = copySet(s.state.WatchLater)
	s.mu.Unlock()
	out.Drag = s.drag.State()
	return out
}

func copySet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *PlaylistStore) fetch(ctx context.Context, p models.ListParams) (*models.Page[models.Playlist], error) {
	if p.UserID != "" {
		return s.api.UserPlaylists(ctx, p.UserID, p)
	}
	return s.api.List(ctx, p)
}

// Load replaces the playlist list. Set p.UserID to list one user's playlists.
func (s *PlaylistStore) Load(ctx context.Context, p models.ListParams) error {
	return loadList(ctx, &s.mu, &s.state.Playlists, p, s.fetch, s.notify)
}

func (s *PlaylistStore) LoadMore(ctx context.Context) error {
	return loadMore(ctx, &s.mu, &s.state.Playlists, s.fetch, s.notify)
}

// Open loads id with its videos as the current playlist.
func (s *PlaylistStore) Open(ctx context.Context, id string) error {
	s.mu.Lock()
	s.currentSeq++
	seq := s.currentSeq
	prevStatus, prevErr := s.state.CurrentStatus, s.state.CurrentErr
	s.state.CurrentStatus, s.state.CurrentErr = StatusLoading, nil
	s.mu.Unlock()
	s.notify()

	p, err := s.api.Get(ctx, id)

	s.mu.Lock()
	if seq != s.currentSeq {
		s.mu.Unlock()
		return context.Canceled
	}
	stop, err := cancelled(ctx, err)
	switch {
	case stop:
		s.state.CurrentStatus, s.state.CurrentErr = prevStatus, prevErr
	case err != nil:
		s.state.CurrentStatus, s.state.CurrentErr = StatusFailure, err
	default:
		s.state.Current, s.state.CurrentStatus = p, StatusSuccess
	}
	s.mu.Unlock()
	s.notify()
	return err
}

// apply stores a server playlist everywhere it is shown. Callers hold mu.
func (s *PlaylistStore) apply(p *models.Playlist) {
	if s.state.Current != nil && s.state.Current.ID == p.ID {
		cp := p.Clone()
		s.state.Current = &cp
	}
	for i := range s.state.Playlists.Items {
		if s.state.Playlists.Items[i].ID == p.ID {
			row := p.Clone()
			row.Videos = nil
			s.state.Playlists.Items[i] = row
		}
	}
}

// commit runs a playlist mutation and applies its result unless ctx ended first.
func (s *PlaylistStore) commit(ctx context.Context, call func() (*models.Playlist, error), after func(*models.Playlist)) (*models.Playlist, error) {
	p, err := call()
	if stop, cerr := cancelled(ctx, err); stop || err != nil {
		return nil, cerr
	}
	s.mu.Lock()
	s.apply(p)
	if after != nil {
		after(p)
	}
	s.mu.Unlock()
	s.notify()
	return p, nil
}

// Create adds a playlist and puts it at the head of the loaded list.
func (s *PlaylistStore) Create(ctx context.Context, in models.PlaylistInput) (*models.Playlist, error) {
	return s.commit(ctx, func() (*models.Playlist, error) { return s.api.Create(ctx, in) }, func(p *models.Playlist) {
		row := p.Clone()
		row.Videos = nil
		s.state.Playlists.Items = append([]models.Playlist{row}, s.state.Playlists.Items...)
		s.state.Playlists.Pagination.Total++
	})
}

func (s *PlaylistStore) Update(ctx context.Context, id string, u models.PlaylistUpdate) (*models.Playlist, error) {
	return s.commit(ctx, func() (*models.Playlist, error) { return s.api.Update(ctx, id, u) }, nil)
}

func (s *PlaylistStore) Delete(ctx context.Context, id string) error {
	err := s.api.Delete(ctx, id)
	if stop, cerr := cancelled(ctx, err); stop || err != nil {
		return cerr
	}
	s.mu.Lock()
	s.state.Playlists.Items = slices.DeleteFunc(s.state.Playlists.Items, func(p models.Playlist) bool { return p.ID == id })
	if s.state.Current != nil && s.state.Current.ID == id {
		s.state.Current, s.state.CurrentStatus = nil, StatusIdle
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *PlaylistStore) AddVideo(ctx context.Context, playlistID, videoID string) (*models.Playlist, error) {
	return s.commit(ctx, func() (*models.Playlist, error) { return s.api.AddVideo(ctx, playlistID, videoID) }, nil)
}

func (s *PlaylistStore) RemoveVideo(ctx context.Context, playlistID, videoID string) (*models.Playlist, error) {
	return s.commit(ctx, func() (*models.Playlist, error) { return s.api.RemoveVideo(ctx, playlistID, videoID) }, nil)
}

// Reorder sends the full ordering of videos and replaces the open playlist's videos with the
// server's response. videos must hold exactly the open playlist's current entries.
func (s *PlaylistStore) Reorder(ctx context.Context, playlistID string, videos []models.PlaylistVideo) (*models.Playlist, error) {
	s.mu.Lock()
	cur := s.state.Current
	if cur == nil || cur.ID != playlistID {
		s.mu.Unlock()
		return nil, shared.ErrPlaylistNotLoaded
	}
	if !sameMembers(cur.VideoIDs(), videos) {
		s.mu.Unlock()
		return nil, shared.ErrReorderMismatch
	}
	s.mu.Unlock()

	positions := make([]models.PositionUpdate, len(videos))
	for i, v := range videos {
		positions[i] = models.PositionUpdate{VideoID: v.Video.ID, Position: i}
	}
	return s.commit(ctx, func() (*models.Playlist, error) { return s.api.Reorder(ctx, playlistID, positions) }, nil)
}

// Move reorders the open playlist by moving the entry at from to index to.
func (s *PlaylistStore) Move(ctx context.Context, playlistID string, from, to int) (*models.Playlist, error) {
	s.mu.Lock()
	cur := s.state.Current
	if cur == nil || cur.ID != playlistID {
		s.mu.Unlock()
		return nil, shared.ErrPlaylistNotLoaded
	}
	videos := slices.Clone(cur.Videos)
	s.mu.Unlock()

	if from < 0 || from >= len(videos) || to < 0 || to >= len(videos) {
		return nil, fmt.Errorf("%w: move %d to %d in a playlist of %d", shared.ErrInvalidArgument, from, to, len(videos))
	}
	v := videos[from]
	videos = slices.Delete(videos, from, from+1)
	videos = slices.Insert(videos, to, v)
	return s.Reorder(ctx, playlistID, videos)
}

// sameMembers reports whether videos holds exactly ids, counting duplicates.
func sameMembers(ids []string, videos []models.PlaylistVideo) bool {
	if len(ids) != len(videos) {
		return false
	}
	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		counts[id]++
	}
	for _, v := range videos {
		counts[v.Video.ID]--
		if counts[v.Video.ID] < 0 {
			return false
		}
	}
	return true
}

func (s *PlaylistStore) set(list models.SpecialList) (map[string]bool, error) {
	switch list {
	case models.Favorites:
		return s.state.Favorites, nil
	case models.WatchLater:
		return s.state.WatchLater, nil
	}
	return nil, fmt.Errorf("%w: unknown list %q", shared.ErrInvalidArgument, list)
}

// LoadList pulls every page of a special list into its id set.
func (s *PlaylistStore) LoadList(ctx context.Context, list models.SpecialList) ([]models.Video, error) {
	if !list.Valid() {
		return nil, fmt.Errorf("%w: unknown list %q", shared.ErrInvalidArgument, list)
	}
	var all []models.Video
	p := models.ListParams{Page: 1, Limit: specialPageSize}
	for {
		page, err := s.api.SpecialList(ctx, list, p)
		if stop, cerr := cancelled(ctx, err); stop || err != nil {
			return nil, cerr
		}
		all = append(all, page.Items...)
		if !page.Pagination.HasMore || len(page.Items) == 0 {
			break
		}
		p.Page = page.Pagination.Next()
	}

	ids := make(map[string]bool, len(all))
	for _, v := range all {
		ids[v.ID] = true
	}
	s.mu.Lock()
	if list == models.Favorites {
		s.state.Favorites = ids
	} else {
		s.state.WatchLater = ids
	}
	s.mu.Unlock()
	s.notify()
	return all, nil
}

// AddToList adds videoID to a special list. The request is sent even when the id is already present.
func (s *PlaylistStore) AddToList(ctx context.Context, list models.SpecialList, videoID string) error {
	return s.special(ctx, list, videoID, true)
}

func (s *PlaylistStore) RemoveFromList(ctx context.Context, list models.SpecialList, videoID string) error {
	return s.special(ctx, list, videoID, false)
}

// ToggleList adds videoID when absent and removes it when present.
func (s *PlaylistStore) ToggleList(ctx context.Context, list models.SpecialList, videoID string) (bool, error) {
	s.mu.Lock()
	present := s.state.InList(list, videoID)
	s.mu.Unlock()
	if err := s.special(ctx, list, videoID, !present); err != nil {
		return present, err
	}
	return !present, nil
}

func (s *PlaylistStore) special(ctx context.Context, list models.SpecialList, videoID string, add bool) error {
	var err error
	if add {
		err = s.api.AddToSpecial(ctx, list, videoID)
	} else {
		err = s.api.RemoveFromSpecial(ctx, list, videoID)
	}
	if stop, cerr := cancelled(ctx, err); stop || err != nil {
		return cerr
	}
	s.mu.Lock()
	set, err := s.set(list)
	if err == nil {
		if add {
			set[videoID] = true
		} else {
			delete(set, videoID)
		}
	}
	s.mu.Unlock()
	s.notify()
	return err
}

// BeginDrag starts dragging a video.
func (s *PlaylistStore) BeginDrag(item DragItem, t DragType) error { return s.drag.Begin(item, t) }

// SetDropTarget points the current drag at target.
func (s *PlaylistStore) SetDropTarget(target DropTarget) error { return s.drag.SetTarget(target) }

func (s *PlaylistStore) CancelDrag() error { return s.drag.Cancel() }

// Drop resolves the drag: move-to-playlist adds the video, reorder-in-playlist moves it.
func (s *PlaylistStore) Drop(ctx context.Context) error { return s.drag.Drop(ctx) }

// dropActions adapts the store to [DropActions].
type dropActions struct{ s *PlaylistStore }

func (a dropActions) AddVideo(ctx context.Context, playlistID, videoID string) error {
	_, err := a.s.AddVideo(ctx, playlistID, videoID)
	return err
}

func (a dropActions) Move(ctx context.Context, playlistID string, from, to int) error {
	_, err := a.s.Move(ctx, playlistID, from, to)
	return err
}
