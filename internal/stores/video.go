package stores

import (
	"context"
	"sync"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

// VideoAPI is the part of [services.VideoService] the store uses.
type VideoAPI interface {
	List(ctx context.Context, p models.ListParams) (*models.Page[models.Video], error)
	UserVideos(ctx context.Context, userID string, p models.ListParams) (*models.Page[models.Video], error)
	Trending(ctx context.Context, p models.ListParams) (*models.Page[models.Video], error)
	Get(ctx context.Context, id string) (*models.Video, error)
	Categories(ctx context.Context) ([]models.Category, error)
	Update(ctx context.Context, id string, u models.VideoUpdate) (*models.Video, error)
	Delete(ctx context.Context, id string) error
	RecordView(ctx context.Context, id string) error
	Like(ctx context.Context, id string) (*models.ReactionState, error)
	Dislike(ctx context.Context, id string) (*models.ReactionState, error)
}

// PendingReaction is phase one of a reaction toggle.
type PendingReaction struct {
	VideoID    string
	Reaction   models.Reaction
	Before     models.ReactionState
	Optimistic models.ReactionState

	shown bool
}

// VideoState is a copy of the store's state.
type VideoState struct {
	Videos        List[models.Video]
	Trending      List[models.Video]
	Current       *models.Video
	CurrentStatus Status
	CurrentErr    error
	Categories    []models.Category
	Pending       map[string]PendingReaction
}

// Video finds id in the current video or either list.
func (s VideoState) Video(id string) (models.Video, bool) {
	if s.Current != nil && s.Current.ID == id {
		return *s.Current, true
	}
	for _, l := range []List[models.Video]{s.Videos, s.Trending} {
		for _, v := range l.Items {
			if v.ID == id {
				return v, true
			}
		}
	}
	return models.Video{}, false
}

// VideoStore owns browse lists, the open video and reaction state.
type VideoStore struct {
	subscribers
	api VideoAPI

	mu    sync.Mutex
	state VideoState
	// currentSeq drops stale Open responses.
	currentSeq int
}

func NewVideoStore(api VideoAPI) *VideoStore {
	return &VideoStore{
		api: api,
		state: VideoState{
			Videos:        List[models.Video]{Status: StatusIdle},
			Trending:      List[models.Video]{Status: StatusIdle},
			CurrentStatus: StatusIdle,
			Pending:       make(map[string]PendingReaction),
		},
	}
}

func (s *VideoStore) Snapshot() VideoState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.state
	out.Videos = s.state.Videos.clone()
	out.Trending = s.state.Trending.clone()
	if s.state.Current != nil {
		v := *s.state.Current
		out.Current = &v
	}
	out.Categories = append([]models.Category(nil), s.state.Categories...)
	out.Pending = make(map[string]PendingReaction, len(s.state.Pending))
	for k, v := range s.state.Pending {
		out.Pending[k] = v
	}
	return out
}

func (s *VideoStore) fetchVideos(ctx context.Context, p models.ListParams) (*models.Page[models.Video], error) {
	if p.UserID != "" {
		return s.api.UserVideos(ctx, p.UserID, p)
	}
	return s.api.List(ctx, p)
}

// Load replaces the browse list with the first page for p. Set p.UserID to list one uploader's videos.
func (s *VideoStore) Load(ctx context.Context, p models.ListParams) error {
	return loadList(ctx, &s.mu, &s.state.Videos, p, s.fetchVideos, s.notify)
}

// LoadMore appends the next browse page.
func (s *VideoStore) LoadMore(ctx context.Context) error {
	return loadMore(ctx, &s.mu, &s.state.Videos, s.fetchVideos, s.notify)
}

func (s *VideoStore) LoadTrending(ctx context.Context, p models.ListParams) error {
	return loadList(ctx, &s.mu, &s.state.Trending, p, s.api.Trending, s.notify)
}

func (s *VideoStore) LoadMoreTrending(ctx context.Context) error {
	return loadMore(ctx, &s.mu, &s.state.Trending, s.api.Trending, s.notify)
}

// LoadCategories fetches the category list once per call.
func (s *VideoStore) LoadCategories(ctx context.Context) error {
	cats, err := s.api.Categories(ctx)
	if stop, cerr := cancelled(ctx, err); stop || err != nil {
		return cerr
	}
	s.mu.Lock()
	s.state.Categories = cats
	s.mu.Unlock()
	s.notify()
	return nil
}

// Open loads id as the current video.
func (s *VideoStore) Open(ctx context.Context, id string) error {
	s.mu.Lock()
	s.currentSeq++
	seq := s.currentSeq
	prevStatus, prevErr := s.state.CurrentStatus, s.state.CurrentErr
	s.state.CurrentStatus, s.state.CurrentErr = StatusLoading, nil
	s.mu.Unlock()
	s.notify()

	v, err := s.api.Get(ctx, id)

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
		if p, ok := s.state.Pending[v.ID]; ok && p.shown {
			*v = v.WithReactions(p.Optimistic)
		}
		s.state.Current, s.state.CurrentStatus = v, StatusSuccess
	}
	s.mu.Unlock()
	s.notify()
	return err
}

// Close clears the current video.
func (s *VideoStore) Close() {
	s.mu.Lock()
	s.currentSeq++
	s.state.Current, s.state.CurrentStatus, s.state.CurrentErr = nil, StatusIdle, nil
	s.mu.Unlock()
	s.notify()
}

// RecordView counts a view of id. The counter shown locally is bumped once the server accepts it.
func (s *VideoStore) RecordView(ctx context.Context, id string) error {
	err := s.api.RecordView(ctx, id)
	if stop, cerr := cancelled(ctx, err); stop || err != nil {
		return cerr
	}
	s.mu.Lock()
	s.eachVideo(id, func(v *models.Video) { v.Views++ })
	s.mu.Unlock()
	s.notify()
	return nil
}

// Update applies u and replaces every copy of the video with the server's version.
func (s *VideoStore) Update(ctx context.Context, id string, u models.VideoUpdate) (*models.Video, error) {
	v, err := s.api.Update(ctx, id, u)
	if stop, cerr := cancelled(ctx, err); stop || err != nil {
		return nil, cerr
	}
	s.mu.Lock()
	s.eachVideo(id, func(dst *models.Video) { *dst = *v })
	s.mu.Unlock()
	s.notify()
	return v, nil
}

// Delete removes the video from every list and closes it if open.
func (s *VideoStore) Delete(ctx context.Context, id string) error {
	err := s.api.Delete(ctx, id)
	if stop, cerr := cancelled(ctx, err); stop || err != nil {
		return cerr
	}
	s.mu.Lock()
	for _, l := range []*List[models.Video]{&s.state.Videos, &s.state.Trending} {
		kept := l.Items[:0]
		for _, v := range l.Items {
			if v.ID != id {
				kept = append(kept, v)
			}
		}
		l.Items = kept
	}
	if s.state.Current != nil && s.state.Current.ID == id {
		s.state.Current, s.state.CurrentStatus = nil, StatusIdle
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// eachVideo applies fn to every copy of id. Callers hold mu.
func (s *VideoStore) eachVideo(id string, fn func(*models.Video)) bool {
	found := false
	if s.state.Current != nil && s.state.Current.ID == id {
		fn(s.state.Current)
		found = true
	}
	for _, l := range []*List[models.Video]{&s.state.Videos, &s.state.Trending} {
		for i := range l.Items {
			if l.Items[i].ID == id {
				fn(&l.Items[i])
				found = true
			}
		}
	}
	return found
}

func (s *VideoStore) setReactions(id string, st models.ReactionState) {
	s.eachVideo(id, func(v *models.Video) { *v = v.WithReactions(st) })
}

// Like toggles a like on id.
func (s *VideoStore) Like(ctx context.Context, id string) (models.ReactionState, error) {
	return s.toggle(ctx, id, models.ReactionLike, s.api.Like)
}

// Dislike toggles a dislike on id.
func (s *VideoStore) Dislike(ctx context.Context, id string) (models.ReactionState, error) {
	return s.toggle(ctx, id, models.ReactionDislike, s.api.Dislike)
}

func (s *VideoStore) toggle(ctx context.Context, id string, r models.Reaction, send func(context.Context, string) (*models.ReactionState, error)) (models.ReactionState, error) {
	pending, err := s.beginReaction(id, r)
	if err != nil {
		return models.ReactionState{}, err
	}
	s.notify()

	st, err := send(ctx, id)
	_, err = cancelled(ctx, err)
	if err != nil {
		s.rollbackReaction(pending)
		return pending.Before, err
	}
	s.confirmReaction(id, *st)
	return *st, nil
}

// beginReaction is phase one: snapshot the counts and show the optimistic toggle.
func (s *VideoStore) beginReaction(id string, r models.Reaction) (PendingReaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.state.Pending[id]; busy {
		return PendingReaction{}, shared.ErrActionInFlight
	}
	v, ok := s.state.Video(id)
	p := PendingReaction{VideoID: id, Reaction: r}
	if ok {
		p.shown = true
		p.Before = v.Reactions()
		p.Optimistic = p.Before.Toggle(r)
		s.setReactions(id, p.Optimistic)
	}
	s.state.Pending[id] = p
	return p, nil
}

// confirmReaction is phase two on success: server counts overwrite whatever is shown.
func (s *VideoStore) confirmReaction(id string, st models.ReactionState) {
	s.mu.Lock()
	delete(s.state.Pending, id)
	s.setReactions(id, st)
	s.mu.Unlock()
	s.notify()
}

// rollbackReaction is phase two on failure or cancellation.
func (s *VideoStore) rollbackReaction(p PendingReaction) {
	s.mu.Lock()
	delete(s.state.Pending, p.VideoID)
	if p.shown {
		s.setReactions(p.VideoID, p.Before)
	}
	s.mu.Unlock()
	s.notify()
}
