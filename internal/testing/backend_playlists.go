package testing

import (
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/desertthunder/vidx/internal/models"
)

// compact renumbers positions 0..N-1 in slice order.
func compact(p *models.Playlist) {
	for i := range p.Videos {
		p.Videos[i].Position = i
	}
	p.VideoCount = len(p.Videos)
}

func (b *Backend) playlistFor(p *models.Playlist, withVideos bool) models.Playlist {
	out := p.Clone()
	if acc, ok := b.accounts[p.UserID]; ok {
		out.User = summary(acc.user)
	}
	if !withVideos {
		out.Videos = nil
	}
	return out
}

func (b *Backend) visiblePlaylists(uid string, keep func(*models.Playlist) bool) []models.Playlist {
	var out []models.Playlist
	for _, id := range sortedKeys(b.playlists) {
		p := b.playlists[id]
		if p.IsPrivate && p.UserID != uid {
			continue
		}
		if keep == nil || keep(p) {
			out = append(out, b.playlistFor(p, false))
		}
	}
	return out
}

// SeedPlaylist stores a playlist owned by userID containing videoIDs in order.
func (b *Backend) SeedPlaylist(userID, title string, videoIDs ...string) models.Playlist {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := &models.Playlist{
		ID:        b.nextID("p"),
		Title:     title,
		UserID:    userID,
		CreatedAt: b.now().UTC(),
		UpdatedAt: b.now().UTC(),
	}
	for _, vid := range videoIDs {
		if v, ok := b.videos[vid]; ok {
			p.Videos = append(p.Videos, models.PlaylistVideo{Video: *v, AddedAt: b.now().UTC()})
		}
	}
	compact(p)
	b.playlists[p.ID] = p
	return p.Clone()
}

func (b *Backend) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	uid := b.userFor(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	writeData(w, http.StatusOK, paginate(r, b.visiblePlaylists(uid, nil)))
}

func (b *Backend) handleSearchPlaylists(w http.ResponseWriter, r *http.Request) {
	uid := b.userFor(r)
	term := strings.ToLower(r.URL.Query().Get("q"))
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.visiblePlaylists(uid, func(p *models.Playlist) bool {
		return strings.Contains(strings.ToLower(p.Title), term) || strings.Contains(strings.ToLower(p.Description), term)
	})
	writeData(w, http.StatusOK, paginate(r, items))
}

func (b *Backend) handleUserPlaylists(w http.ResponseWriter, r *http.Request) {
	uid := b.userFor(r)
	owner := chi.URLParam(r, "id")
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.visiblePlaylists(uid, func(p *models.Playlist) bool { return p.UserID == owner })
	writeData(w, http.StatusOK, paginate(r, items))
}

func (b *Backend) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	uid := b.userFor(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.playlists[chi.URLParam(r, "id")]
	if !ok || (p.IsPrivate && p.UserID != uid) {
		writeError(w, http.StatusNotFound, "playlist not found", nil)
		return
	}
	writeData(w, http.StatusOK, b.playlistFor(p, true))
}

func (b *Backend) handleCreatePlaylist(w http.ResponseWriter, r *http.Request, uid string) {
	var in models.PlaylistInput
	if !decodeBody(r, &in) {
		writeError(w, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if len(strings.TrimSpace(in.Title)) < 3 {
		writeError(w, http.StatusBadRequest, "validation failed", map[string]string{"title": "must be at least 3 characters"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p := &models.Playlist{
		ID:          b.nextID("p"),
		Title:       in.Title,
		Description: in.Description,
		IsPrivate:   in.IsPrivate,
		UserID:      uid,
		CreatedAt:   b.now().UTC(),
		UpdatedAt:   b.now().UTC(),
	}
	b.playlists[p.ID] = p
	writeData(w, http.StatusCreated, b.playlistFor(p, true))
}

func (b *Backend) ownedPlaylist(w http.ResponseWriter, r *http.Request, uid string) *models.Playlist {
	p, ok := b.playlists[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "playlist not found", nil)
		return nil
	}
	if p.UserID != uid {
		writeError(w, http.StatusForbidden, "not the owner", nil)
		return nil
	}
	return p
}

func (b *Backend) handleUpdatePlaylist(w http.ResponseWriter, r *http.Request, uid string) {
	var in models.PlaylistUpdate
	if !decodeBody(r, &in) {
		writeError(w, http.StatusBadRequest, "invalid body", nil)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.ownedPlaylist(w, r, uid)
	if p == nil {
		return
	}
	if in.Title != nil {
		p.Title = *in.Title
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.IsPrivate != nil {
		p.IsPrivate = *in.IsPrivate
	}
	p.UpdatedAt = b.now().UTC()
	writeData(w, http.StatusOK, b.playlistFor(p, true))
}

func (b *Backend) handleDeletePlaylist(w http.ResponseWriter, r *http.Request, uid string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.ownedPlaylist(w, r, uid)
	if p == nil {
		return
	}
	delete(b.playlists, p.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleAddPlaylistVideo(w http.ResponseWriter, r *http.Request, uid string) {
	var in struct {
		VideoID string `json:"videoId"`
	}
	if !decodeBody(r, &in) || in.VideoID == "" {
		writeError(w, http.StatusBadRequest, "validation failed", map[string]string{"videoId": "is required"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.ownedPlaylist(w, r, uid)
	if p == nil {
		return
	}
	v, ok := b.videos[in.VideoID]
	if !ok {
		writeError(w, http.StatusNotFound, "video not found", nil)
		return
	}
	p.Videos = append(p.Videos, models.PlaylistVideo{Video: *v, AddedAt: b.now().UTC()})
	compact(p)
	p.UpdatedAt = b.now().UTC()
	writeData(w, http.StatusOK, b.playlistFor(p, true))
}

func (b *Backend) handleRemovePlaylistVideo(w http.ResponseWriter, r *http.Request, uid string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.ownedPlaylist(w, r, uid)
	if p == nil {
		return
	}
	vid := chi.URLParam(r, "videoId")
	idx := slices.IndexFunc(p.Videos, func(pv models.PlaylistVideo) bool { return pv.Video.ID == vid })
	if idx < 0 {
		writeError(w, http.StatusNotFound, "video not in playlist", nil)
		return
	}
	p.Videos = slices.Delete(p.Videos, idx, idx+1)
	compact(p)
	p.UpdatedAt = b.now().UTC()
	writeData(w, http.StatusOK, b.playlistFor(p, true))
}

// handleReorder accepts only a complete dense ordering of the current membership.
func (b *Backend) handleReorder(w http.ResponseWriter, r *http.Request, uid string) {
	var in struct {
		Videos []models.PositionUpdate `json:"videos"`
	}
	if !decodeBody(r, &in) {
		writeError(w, http.StatusBadRequest, "invalid body", nil)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.ownedPlaylist(w, r, uid)
	if p == nil {
		return
	}
	if len(in.Videos) != len(p.Videos) {
		writeError(w, http.StatusBadRequest, "reorder must include every video", map[string]string{"videos": "length mismatch"})
		return
	}

	slots := make([]*models.PlaylistVideo, len(in.Videos))
	pool := slices.Clone(p.Videos)
	for _, u := range in.Videos {
		if u.Position < 0 || u.Position >= len(slots) || slots[u.Position] != nil {
			writeError(w, http.StatusBadRequest, "positions must be 0..N-1 without gaps", map[string]string{"videos": "invalid position"})
			return
		}
		idx := slices.IndexFunc(pool, func(pv models.PlaylistVideo) bool { return pv.Video.ID == u.VideoID })
		if idx < 0 {
			writeError(w, http.StatusBadRequest, "reorder membership differs from playlist", map[string]string{"videos": "unknown video " + u.VideoID})
			return
		}
		pv := pool[idx]
		slots[u.Position] = &pv
		pool = slices.Delete(pool, idx, idx+1)
	}

	videos := make([]models.PlaylistVideo, len(slots))
	for i, pv := range slots {
		videos[i] = *pv
	}
	p.Videos = videos
	compact(p)
	p.UpdatedAt = b.now().UTC()
	writeData(w, http.StatusOK, b.playlistFor(p, true))
}

func specialType(w http.ResponseWriter, r *http.Request) (models.SpecialList, bool) {
	list := models.SpecialList(chi.URLParam(r, "type"))
	if !list.Valid() {
		writeError(w, http.StatusNotFound, "unknown list", nil)
		return "", false
	}
	return list, true
}

func (b *Backend) handleSpecialList(w http.ResponseWriter, r *http.Request, uid string) {
	list, ok := specialType(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var items []models.Video
	for _, id := range b.special[uid][list] {
		if v, ok := b.videos[id]; ok {
			items = append(items, b.videoFor(v, uid))
		}
	}
	writeData(w, http.StatusOK, paginate(r, items))
}

func (b *Backend) handleSpecialAdd(w http.ResponseWriter, r *http.Request, uid string) {
	list, ok := specialType(w, r)
	if !ok {
		return
	}
	var in struct {
		VideoID string `json:"videoId"`
	}
	if !decodeBody(r, &in) || in.VideoID == "" {
		writeError(w, http.StatusBadRequest, "validation failed", map[string]string{"videoId": "is required"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.videos[in.VideoID]; !ok {
		writeError(w, http.StatusNotFound, "video not found", nil)
		return
	}
	if b.special[uid] == nil {
		b.special[uid] = make(map[models.SpecialList][]string)
	}
	if !slices.Contains(b.special[uid][list], in.VideoID) {
		b.special[uid][list] = append(b.special[uid][list], in.VideoID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleSpecialRemove(w http.ResponseWriter, r *http.Request, uid string) {
	list, ok := specialType(w, r)
	if !ok {
		return
	}
	vid := chi.URLParam(r, "videoId")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.special[uid] != nil {
		b.special[uid][list] = slices.DeleteFunc(b.special[uid][list], func(id string) bool { return id == vid })
	}
	w.WriteHeader(http.StatusNoContent)
}
