package services

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/vidx/internal/api"
	"github.com/desertthunder/vidx/internal/cache"
	"github.com/desertthunder/vidx/internal/models"
)

// VideoUpload is a validated-before-send upload request.
type VideoUpload struct {
	Metadata    models.VideoMetadata
	FileName    string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// NewFileUpload describes the file at path for upload.
func NewFileUpload(path string, meta models.VideoMetadata) (VideoUpload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return VideoUpload{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return VideoUpload{}, api.ValidationError(map[string]string{"file": "is a directory"})
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return VideoUpload{
		Metadata:    meta,
		FileName:    filepath.Base(path),
		Size:        info.Size(),
		ContentType: ContentTypeFor(path),
		Open:        func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// VideoService covers the /videos endpoints.
type VideoService struct {
	base
	client *api.Client
	rules  UploadRules
}

func NewVideoService(client *api.Client, store cache.Store, ttl cache.TTLs, rules UploadRules, logger *log.Logger) *VideoService {
	return &VideoService{base: newBase(store, ttl, logger, "videos"), client: client, rules: rules}
}

func (s *VideoService) page(ctx context.Context, k cache.Key, tier cache.Tier, path string, q url.Values) (*models.Page[models.Video], error) {
	return cache.Fetch(ctx, s.cache, k, s.ttl.For(tier), func(ctx context.Context) (*models.Page[models.Video], error) {
		var page models.Page[models.Video]
		if err := s.client.Get(ctx, path, q, &page); err != nil {
			return nil, err
		}
		return &page, nil
	})
}

// List returns one page of videos.
func (s *VideoService) List(ctx context.Context, p models.ListParams) (*models.Page[models.Video], error) {
	q := listQuery(p)
	return s.page(ctx, cache.NewKey(cache.Videos, "list", q), cache.List, "/videos", q)
}

// UserVideos lists videos uploaded by userID.
func (s *VideoService) UserVideos(ctx context.Context, userID string, p models.ListParams) (*models.Page[models.Video], error) {
	if err := requireID("userId", userID); err != nil {
		return nil, err
	}
	q := listQuery(p)
	return s.page(ctx, cache.NewKey(cache.Videos, "user:"+userID, q), cache.List, "/users/"+escape(userID)+"/videos", q)
}

// Trending returns the trending list.
func (s *VideoService) Trending(ctx context.Context, p models.ListParams) (*models.Page[models.Video], error) {
	q := listQuery(p)
	return s.page(ctx, cache.NewKey(cache.Videos, "trending", q), cache.List, "/videos/trending", q)
}

// Search returns matching videos. The caller enforces the minimum term length.
func (s *VideoService) Search(ctx context.Context, sq models.SearchQuery) (*models.Page[models.Video], error) {
	q := searchQuery(sq)
	return s.page(ctx, cache.NewKey(cache.Videos, "search", q), cache.Search, "/videos/search", q)
}

// Get returns one video.
func (s *VideoService) Get(ctx context.Context, id string) (*models.Video, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	return cache.Fetch(ctx, s.cache, cache.NewKey(cache.Videos, id, nil), s.ttl.Detail, func(ctx context.Context) (*models.Video, error) {
		var v models.Video
		if err := s.client.Get(ctx, "/videos/"+escape(id), nil, &v); err != nil {
			return nil, err
		}
		return &v, nil
	})
}

// Categories returns the browse categories.
func (s *VideoService) Categories(ctx context.Context) ([]models.Category, error) {
	return cache.Fetch(ctx, s.cache, cache.NewKey(cache.Categories, "all", nil), s.ttl.Static, func(ctx context.Context) ([]models.Category, error) {
		var cats []models.Category
		if err := s.client.Get(ctx, "/videos/categories", nil, &cats); err != nil {
			return nil, err
		}
		return cats, nil
	})
}

// History returns the caller's watch history.
func (s *VideoService) History(ctx context.Context, p models.ListParams) (*models.Page[models.HistoryEntry], error) {
	q := listQuery(p)
	return cache.Fetch(ctx, s.cache, cache.NewKey(cache.History, "me", q), s.ttl.Volatile, func(ctx context.Context) (*models.Page[models.HistoryEntry], error) {
		var page models.Page[models.HistoryEntry]
		if err := s.client.Get(ctx, "/users/me/history", q, &page); err != nil {
			return nil, err
		}
		return &page, nil
	})
}

// ClearHistory deletes the caller's watch history.
func (s *VideoService) ClearHistory(ctx context.Context) error {
	if err := s.client.Delete(ctx, "/users/me/history", nil); err != nil {
		return err
	}
	s.invalidate(ctx, cache.History)
	return nil
}

// Status polls the server-side processing state. Never cached.
func (s *VideoService) Status(ctx context.Context, id string) (*models.ProcessingStatus, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	var st models.ProcessingStatus
	if err := s.client.Get(ctx, "/videos/"+escape(id)+"/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Upload validates u and streams it, reporting progress through onProgress.
func (s *VideoService) Upload(ctx context.Context, u VideoUpload, onProgress api.ProgressFunc) (*models.Video, error) {
	if u.ContentType == "" {
		u.ContentType = ContentTypeFor(u.FileName)
	}
	f := fieldErrors{}
	for field, msg := range validationFields(ValidateVideoMetadata(u.Metadata)) {
		f.add(field, "%s", msg)
	}
	for field, msg := range validationFields(ValidateVideoFile(u.FileName, u.Size, u.ContentType, s.rules)) {
		f.add(field, "%s", msg)
	}
	if err := f.err(); err != nil {
		return nil, err
	}

	fields := map[string]string{"title": strings.TrimSpace(u.Metadata.Title)}
	if u.Metadata.Description != "" {
		fields["description"] = u.Metadata.Description
	}
	if u.Metadata.Visibility != "" {
		fields["visibility"] = string(u.Metadata.Visibility)
	}
	if u.Metadata.Category != "" {
		fields["category"] = u.Metadata.Category
	}
	if len(u.Metadata.Tags) > 0 {
		fields["tags"] = strings.Join(u.Metadata.Tags, ",")
	}

	file := api.UploadFile{Name: u.FileName, ContentType: u.ContentType, Size: u.Size, Open: u.Open}
	var v models.Video
	if err := s.client.Upload(ctx, "/videos", fields, file, onProgress, &v); err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.Videos, cache.History)
	s.logger.Info("uploaded video", "id", v.ID, "file", u.FileName)
	return &v, nil
}

// Update applies a partial update.
func (s *VideoService) Update(ctx context.Context, id string, u models.VideoUpdate) (*models.Video, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	if err := ValidateVideoUpdate(u); err != nil {
		return nil, err
	}
	var v models.Video
	if err := s.client.Patch(ctx, "/videos/"+escape(id), u, &v); err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.Videos, cache.History)
	return &v, nil
}

func (s *VideoService) Delete(ctx context.Context, id string) error {
	if err := requireID("id", id); err != nil {
		return err
	}
	if err := s.client.Delete(ctx, "/videos/"+escape(id), nil); err != nil {
		return err
	}
	s.invalidate(ctx, cache.Videos, cache.History, cache.Playlists)
	return nil
}

// RecordView counts a view. Only the watch history is invalidated; counters may lag by one TTL.
func (s *VideoService) RecordView(ctx context.Context, id string) error {
	if err := requireID("id", id); err != nil {
		return err
	}
	if err := s.client.Post(ctx, "/videos/"+escape(id)+"/view", nil, nil); err != nil {
		return err
	}
	s.invalidate(ctx, cache.History)
	return nil
}

// Like toggles a like and returns the server's counts.
func (s *VideoService) Like(ctx context.Context, id string) (*models.ReactionState, error) {
	return s.react(ctx, id, "like")
}

// Dislike toggles a dislike and returns the server's counts.
func (s *VideoService) Dislike(ctx context.Context, id string) (*models.ReactionState, error) {
	return s.react(ctx, id, "dislike")
}

func (s *VideoService) react(ctx context.Context, id, action string) (*models.ReactionState, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	var st models.ReactionState
	if err := s.client.Post(ctx, "/videos/"+escape(id)+"/"+action, nil, &st); err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.Videos)
	return &st, nil
}

// StreamURL builds the playback URL. It is handed to a player, never fetched as JSON.
func (s *VideoService) StreamURL(id, quality string) string {
	q := url.Values{}
	if quality != "" {
		q.Set("quality", quality)
	}
	return s.client.URL("/videos/"+escape(id)+"/stream", q)
}

// ThumbnailURL builds the thumbnail URL for size (small, medium, large).
func (s *VideoService) ThumbnailURL(id, size string) string {
	q := url.Values{}
	if size != "" {
		q.Set("size", size)
	}
	return s.client.URL("/videos/"+escape(id)+"/thumbnail", q)
}

func validationFields(err error) map[string]string {
	if apiErr, ok := api.AsError(err); ok {
		return apiErr.Fields
	}
	return nil
}
