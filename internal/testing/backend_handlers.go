package testing

import (
	"io"
	"net/http"
	"slices"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/desertthunder/vidx/internal/models"
)

func (b *Backend) authResponse(w http.ResponseWriter, status int, acc *account) {
	access, refresh := b.issue(acc.user.ID)
	writeData(w, status, models.AuthResponse{User: acc.user, AccessToken: access, RefreshToken: refresh})
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in models.Registration
	if !decodeBody(r, &in) {
		writeError(w, http.StatusBadRequest, "invalid body", nil)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, acc := range b.accounts {
		if strings.EqualFold(acc.user.Email, in.Email) {
			writeError(w, http.StatusConflict, "email already registered", map[string]string{"email": "already registered"})
			return
		}
		if strings.EqualFold(acc.user.Username, in.Username) {
			writeError(w, http.StatusConflict, "username taken", map[string]string{"username": "already taken"})
			return
		}
	}
	acc := &account{
		user: models.User{
			ID:          b.nextID("u"),
			Username:    in.Username,
			Email:       in.Email,
			DisplayName: in.DisplayName,
			Role:        models.RoleUser,
			CreatedAt:   b.now().UTC(),
		},
		password: in.Password,
	}
	b.accounts[acc.user.ID] = acc
	b.authResponse(w, http.StatusCreated, acc)
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in models.Credentials
	if !decodeBody(r, &in) {
		writeError(w, http.StatusBadRequest, "invalid body", nil)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, acc := range b.accounts {
		if (strings.EqualFold(acc.user.Email, in.Login) || acc.user.Username == in.Login) && acc.password == in.Password {
			b.authResponse(w, http.StatusOK, acc)
			return
		}
	}
	writeError(w, http.StatusUnauthorized, "invalid credentials", nil)
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decodeBody(r, &in) {
		writeError(w, http.StatusBadRequest, "invalid body", nil)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	uid, ok := b.refresh[in.RefreshToken]
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}
	delete(b.refresh, in.RefreshToken)
	b.authResponse(w, http.StatusOK, b.accounts[uid])
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	decodeBody(r, &in)
	b.mu.Lock()
	delete(b.refresh, in.RefreshToken)
	b.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleMe(w http.ResponseWriter, _ *http.Request, uid string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeData(w, http.StatusOK, b.accounts[uid].user)
}

func (b *Backend) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token string `json:"token"`
	}
	decodeBody(r, &in)
	b.mu.Lock()
	defer b.mu.Unlock()
	// verification tokens are the user id in this fake
	acc, ok := b.accounts[in.Token]
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid verification token", nil)
		return
	}
	acc.user.EmailVerified = true
	writeData(w, http.StatusOK, map[string]bool{"verified": true})
}

func (b *Backend) handleAccepted(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (b *Backend) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in models.PasswordReset
	decodeBody(r, &in)
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[in.Token]
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid reset token", nil)
		return
	}
	acc.password = in.Password
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleChangePassword(w http.ResponseWriter, r *http.Request, uid string) {
	var in models.PasswordChange
	decodeBody(r, &in)
	b.mu.Lock()
	defer b.mu.Unlock()
	acc := b.accounts[uid]
	if acc.password != in.CurrentPassword {
		writeError(w, http.StatusBadRequest, "current password is incorrect", map[string]string{"currentPassword": "is incorrect"})
		return
	}
	acc.password = in.NewPassword
	w.WriteHeader(http.StatusNoContent)
}

// videoFor returns a copy of v decorated with uid's reaction.
func (b *Backend) videoFor(v *models.Video, uid string) models.Video {
	out := *v
	out.UserReaction = b.reactions[v.ID][uid]
	if acc, ok := b.accounts[v.UserID]; ok {
		out.User = summary(acc.user)
	}
	return out
}

func (b *Backend) visibleVideos(uid string, keep func(*models.Video) bool) []models.Video {
	var out []models.Video
	for _, id := range b.videoOrder {
		v, ok := b.videos[id]
		if !ok || (v.Visibility != models.VisibilityPublic && v.UserID != uid) {
			continue
		}
		if keep == nil || keep(v) {
			out = append(out, b.videoFor(v, uid))
		}
	}
	return out
}

func (b *Backend) handleListVideos(w http.ResponseWriter, r *http.Request) {
	uid := b.userFor(r)
	category := r.URL.Query().Get("category")
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.visibleVideos(uid, func(v *models.Video) bool { return category == "" || v.Category == category })
	writeData(w, http.StatusOK, paginate(r, items))
}

func (b *Backend) handleTrending(w http.ResponseWriter, r *http.Request) {
	uid := b.userFor(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.visibleVideos(uid, nil)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Views > items[j].Views })
	writeData(w, http.StatusOK, paginate(r, items))
}

func (b *Backend) handleSearchVideos(w http.ResponseWriter, r *http.Request) {
	uid := b.userFor(r)
	term := strings.ToLower(r.URL.Query().Get("q"))
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.visibleVideos(uid, func(v *models.Video) bool {
		return strings.Contains(strings.ToLower(v.Title), term) || strings.Contains(strings.ToLower(v.Description), term)
	})
	writeData(w, http.StatusOK, paginate(r, items))
}

func (b *Backend) handleCategories(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeData(w, http.StatusOK, b.categories)
}

func (b *Backend) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	uid := b.userFor(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.videos[chi.URLParam(r, "id")]
	if !ok || (v.Visibility == models.VisibilityPrivate && v.UserID != uid) {
		writeError(w, http.StatusNotFound, "video not found", nil)
		return
	}
	writeData(w, http.StatusOK, b.videoFor(v, uid))
}

func (b *Backend) handleUserVideos(w http.ResponseWriter, r *http.Request) {
	uid := b.userFor(r)
	owner := chi.URLParam(r, "id")
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.accounts[owner]; !ok {
		writeError(w, http.StatusNotFound, "user not found", nil)
		return
	}
	items := b.visibleVideos(uid, func(v *models.Video) bool { return v.UserID == owner })
	writeData(w, http.StatusOK, paginate(r, items))
}

func (b *Backend) handleUploadVideo(w http.ResponseWriter, r *http.Request, uid string) {
	b.mu.Lock()
	verified := b.accounts[uid].user.EmailVerified
	b.mu.Unlock()
	if !verified {
		writeError(w, http.StatusForbidden, "email verification required", nil)
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart body", nil)
		return
	}
	fields := map[string]string{}
	var fileName string
	var size int64
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed multipart body", nil)
			return
		}
		if part.FileName() != "" {
			fileName = part.FileName()
			size, _ = io.Copy(io.Discard, part)
			continue
		}
		data, _ := io.ReadAll(part)
		fields[part.FormName()] = string(data)
	}
	if fileName == "" || size == 0 {
		writeError(w, http.StatusBadRequest, "missing video file", map[string]string{"video": "is required"})
		return
	}

	v := models.Video{
		Title:       fields["title"],
		Description: fields["description"],
		UserID:      uid,
		Visibility:  models.Visibility(fields["visibility"]),
		Category:    fields["category"],
		Status:      models.VideoProcessing,
	}
	if fields["tags"] != "" {
		v.Tags = strings.Split(fields["tags"], ",")
	}
	v = b.SeedVideo(v)
	b.mu.Lock()
	out := b.videoFor(b.videos[v.ID], uid)
	b.mu.Unlock()
	writeData(w, http.StatusCreated, out)
}

func (b *Backend) ownedVideo(w http.ResponseWriter, r *http.Request, uid string) *models.Video {
	v, ok := b.videos[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "video not found", nil)
		return nil
	}
	if v.UserID != uid {
		writeError(w, http.StatusForbidden, "not the owner", nil)
		return nil
	}
	return v
}

func (b *Backend) handleUpdateVideo(w http.ResponseWriter, r *http.Request, uid string) {
	var in models.VideoUpdate
	if !decodeBody(r, &in) {
		writeError(w, http.StatusBadRequest, "invalid body", nil)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	v := b.ownedVideo(w, r, uid)
	if v == nil {
		return
	}
	if in.Title != nil {
		v.Title = *in.Title
	}
	if in.Description != nil {
		v.Description = *in.Description
	}
	if in.Visibility != nil {
		v.Visibility = *in.Visibility
	}
	if in.Category != nil {
		v.Category = *in.Category
	}
	if in.Tags != nil {
		v.Tags = in.Tags
	}
	writeData(w, http.StatusOK, b.videoFor(v, uid))
}

func (b *Backend) handleDeleteVideo(w http.ResponseWriter, r *http.Request, uid string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := b.ownedVideo(w, r, uid)
	if v == nil {
		return
	}
	delete(b.videos, v.ID)
	b.videoOrder = slices.DeleteFunc(b.videoOrder, func(id string) bool { return id == v.ID })
	for _, p := range b.playlists {
		p.Videos = slices.DeleteFunc(p.Videos, func(pv models.PlaylistVideo) bool { return pv.Video.ID == v.ID })
		compact(p)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleView(w http.ResponseWriter, r *http.Request) {
	uid := b.userFor(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.videos[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "video not found", nil)
		return
	}
	v.Views++
	if uid != "" {
		entries := slices.DeleteFunc(b.history[uid], func(e models.HistoryEntry) bool { return e.Video.ID == v.ID })
		b.history[uid] = append([]models.HistoryEntry{{Video: *v, WatchedAt: b.now().UTC()}}, entries...)
	}
	writeData(w, http.StatusOK, map[string]int64{"views": v.Views})
}

func (b *Backend) handleReaction(r models.Reaction) func(http.ResponseWriter, *http.Request, string) {
	return func(w http.ResponseWriter, req *http.Request, uid string) {
		b.mu.Lock()
		defer b.mu.Unlock()
		v, ok := b.videos[chi.URLParam(req, "id")]
		if !ok {
			writeError(w, http.StatusNotFound, "video not found", nil)
			return
		}
		if b.reactions[v.ID] == nil {
			b.reactions[v.ID] = make(map[string]models.Reaction)
		}
		st := models.ReactionState{Likes: v.Likes, Dislikes: v.Dislikes, UserReaction: b.reactions[v.ID][uid]}.Toggle(r)
		v.Likes, v.Dislikes = st.Likes, st.Dislikes
		b.reactions[v.ID][uid] = st.UserReaction
		writeData(w, http.StatusOK, st)
	}
}

func (b *Backend) handleStatus(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.videos[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "video not found", nil)
		return
	}
	st := models.ProcessingStatus{VideoID: v.ID, Status: v.Status}
	switch v.Status {
	case models.VideoReady:
		st.Progress = 100
	case models.VideoProcessing:
		st.Progress = 50
	}
	writeData(w, http.StatusOK, st)
}

func (b *Backend) handleHistory(w http.ResponseWriter, r *http.Request, uid string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeData(w, http.StatusOK, paginate(r, b.history[uid]))
}

func (b *Backend) handleClearHistory(w http.ResponseWriter, _ *http.Request, uid string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.history, uid)
	w.WriteHeader(http.StatusNoContent)
}
