package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/vidx/internal/api"
	"github.com/desertthunder/vidx/internal/cache"
	"github.com/desertthunder/vidx/internal/models"
)

// PlaylistService covers /playlists, /users/:id/playlists and /users/playlists/:type.
type PlaylistService struct {
	base
	client *api.Client
}

func NewPlaylistService(client *api.Client, store cache.Store, ttl cache.TTLs, logger *log.Logger) *PlaylistService {
	return &PlaylistService{base: newBase(store, ttl, logger, "playlists"), client: client}
}

func (s *PlaylistService) page(ctx context.Context, k cache.Key, tier cache.Tier, path string, q url.Values) (*models.Page[models.Playlist], error) {
	return cache.Fetch(ctx, s.cache, k, s.ttl.For(tier), func(ctx context.Context) (*models.Page[models.Playlist], error) {
		var page models.Page[models.Playlist]
		if err := s.client.Get(ctx, path, q, &page); err != nil {
			return nil, err
		}
		return &page, nil
	})
}

// List returns one page of public playlists.
func (s *PlaylistService) List(ctx context.Context, p models.ListParams) (*models.Page[models.Playlist], error) {
	q := listQuery(p)
	return s.page(ctx, cache.NewKey(cache.Playlists, "list", q), cache.List, "/playlists", q)
}

// UserPlaylists lists playlists owned by userID.
func (s *PlaylistService) UserPlaylists(ctx context.Context, userID string, p models.ListParams) (*models.Page[models.Playlist], error) {
	if err := requireID("userId", userID); err != nil {
		return nil, err
	}
	q := listQuery(p)
	return s.page(ctx, cache.NewKey(cache.Playlists, "user:"+userID, q), cache.List, "/users/"+escape(userID)+"/playlists", q)
}

// Search returns matching playlists.
func (s *PlaylistService) Search(ctx context.Context, sq models.SearchQuery) (*models.Page[models.Playlist], error) {
	q := searchQuery(sq)
	return s.page(ctx, cache.NewKey(cache.Playlists, "search", q), cache.Search, "/playlists/search", q)
}

// Get returns a playlist with its ordered videos.
func (s *PlaylistService) Get(ctx context.Context, id string) (*models.Playlist, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	return cache.Fetch(ctx, s.cache, cache.NewKey(cache.Playlists, id, nil), s.ttl.Detail, func(ctx context.Context) (*models.Playlist, error) {
		var p models.Playlist
		if err := s.client.Get(ctx, "/playlists/"+escape(id), nil, &p); err != nil {
			return nil, err
		}
		return &p, nil
	})
}

func (s *PlaylistService) Create(ctx context.Context, in models.PlaylistInput) (*models.Playlist, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := ValidatePlaylistInput(in); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "POST", "/playlists", in)
}

func (s *PlaylistService) Update(ctx context.Context, id string, u models.PlaylistUpdate) (*models.Playlist, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	if err := ValidatePlaylistUpdate(u); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "PATCH", "/playlists/"+escape(id), u)
}

func (s *PlaylistService) Delete(ctx context.Context, id string) error {
	if err := requireID("id", id); err != nil {
		return err
	}
	if err := s.client.Delete(ctx, "/playlists/"+escape(id), nil); err != nil {
		return err
	}
	s.invalidate(ctx, cache.Playlists)
	return nil
}

// AddVideo appends videoID and returns the updated playlist.
func (s *PlaylistService) AddVideo(ctx context.Context, playlistID, videoID string) (*models.Playlist, error) {
	if err := requireID("playlistId", playlistID); err != nil {
		return nil, err
	}
	if err := requireID("videoId", videoID); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "POST", "/playlists/"+escape(playlistID)+"/videos", map[string]string{"videoId": videoID})
}

// RemoveVideo removes the first entry of videoID and returns the updated playlist.
func (s *PlaylistService) RemoveVideo(ctx context.Context, playlistID, videoID string) (*models.Playlist, error) {
	if err := requireID("playlistId", playlistID); err != nil {
		return nil, err
	}
	if err := requireID("videoId", videoID); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "DELETE", "/playlists/"+escape(playlistID)+"/videos/"+escape(videoID), nil)
}

// Reorder sends the complete ordering and returns the server's canonical playlist.
func (s *PlaylistService) Reorder(ctx context.Context, playlistID string, positions []models.PositionUpdate) (*models.Playlist, error) {
	if err := requireID("playlistId", playlistID); err != nil {
		return nil, err
	}
	if err := ValidatePositions(positions); err != nil {
		return nil, err
	}
	body := map[string]any{"videos": positions}
	return s.mutate(ctx, "PUT", "/playlists/"+escape(playlistID)+"/reorder", body)
}

// SpecialList returns the videos in the caller's favorites or watch-later list.
func (s *PlaylistService) SpecialList(ctx context.Context, list models.SpecialList, p models.ListParams) (*models.Page[models.Video], error) {
	if !list.Valid() {
		return nil, api.ValidationError(map[string]string{"type": fmt.Sprintf("unknown list %q", list)})
	}
	q := listQuery(p)
	return cache.Fetch(ctx, s.cache, cache.NewKey(cache.Playlists, "special:"+string(list), q), s.ttl.List, func(ctx context.Context) (*models.Page[models.Video], error) {
		var page models.Page[models.Video]
		if err := s.client.Get(ctx, "/users/playlists/"+string(list), q, &page); err != nil {
			return nil, err
		}
		return &page, nil
	})
}

// AddToSpecial adds videoID to list. Adding a present video still calls the server.
func (s *PlaylistService) AddToSpecial(ctx context.Context, list models.SpecialList, videoID string) error {
	if err := s.checkSpecial(list, videoID); err != nil {
		return err
	}
	if err := s.client.Post(ctx, "/users/playlists/"+string(list)+"/videos", map[string]string{"videoId": videoID}, nil); err != nil {
		return err
	}
	s.invalidate(ctx, cache.Playlists)
	return nil
}

func (s *PlaylistService) RemoveFromSpecial(ctx context.Context, list models.SpecialList, videoID string) error {
	if err := s.checkSpecial(list, videoID); err != nil {
		return err
	}
	if err := s.client.Delete(ctx, "/users/playlists/"+string(list)+"/videos/"+escape(videoID), nil); err != nil {
		return err
	}
	s.invalidate(ctx, cache.Playlists)
	return nil
}

func (s *PlaylistService) checkSpecial(list models.SpecialList, videoID string) error {
	if !list.Valid() {
		return api.ValidationError(map[string]string{"type": fmt.Sprintf("unknown list %q", list)})
	}
	return requireID("videoId", videoID)
}

func (s *PlaylistService) mutate(ctx context.Context, method, path string, body any) (*models.Playlist, error) {
	var p models.Playlist
	if err := s.client.Do(ctx, method, path, body, &p); err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.Playlists)
	return &p, nil
}
