package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/desertthunder/vidx/internal/models"
)

const backendSecret = "fake-backend-secret"

type account struct {
	user     models.User
	password string
}

// Event is a realtime message pushed over /events.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Backend is an in-memory implementation of the REST contract vidx talks to.
//
// Every route counts its calls and can be made to fail or block, so tests can assert exactly how
// many network requests a client-side operation produced.
type Backend struct {
	Server *httptest.Server

	mu         sync.Mutex
	seq        int
	now        func() time.Time
	accounts   map[string]*account // by user id
	access     map[string]string   // access token -> user id
	refresh    map[string]string   // refresh token -> user id
	videos     map[string]*models.Video
	videoOrder []string
	reactions  map[string]map[string]models.Reaction // video id -> user id -> reaction
	playlists  map[string]*models.Playlist
	special    map[string]map[models.SpecialList][]string
	history    map[string][]models.HistoryEntry
	categories []models.Category

	calls    map[string]int
	failures map[string][]int
	blocks   map[string]chan struct{}
	accessTTL time.Duration

	wsMu  sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewBackend starts the fake on an httptest server that is closed with t.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		now:       time.Now,
		accounts:  make(map[string]*account),
		access:    make(map[string]string),
		refresh:   make(map[string]string),
		videos:    make(map[string]*models.Video),
		reactions: make(map[string]map[string]models.Reaction),
		playlists: make(map[string]*models.Playlist),
		special:   make(map[string]map[models.SpecialList][]string),
		history:   make(map[string][]models.HistoryEntry),
		calls:     make(map[string]int),
		failures:  make(map[string][]int),
		blocks:    make(map[string]chan struct{}),
		conns:     make(map[*websocket.Conn]struct{}),
		accessTTL: 15 * time.Minute,
		categories: []models.Category{
			{ID: "c1", Name: "Music", Slug: "music"},
			{ID: "c2", Name: "Gaming", Slug: "gaming"},
			{ID: "c3", Name: "Education", Slug: "education"},
		},
	}
	b.Server = httptest.NewServer(b.Router())
	t.Cleanup(b.Close)
	return b
}

// URL is the API base URL.
func (b *Backend) URL() string { return b.Server.URL }

func (b *Backend) Close() {
	b.mu.Lock()
	for _, ch := range b.blocks {
		select {
		case <-ch:
		default:
			close(ch)
		}
	}
	b.mu.Unlock()

	b.wsMu.Lock()
	for c := range b.conns {
		c.Close()
	}
	b.wsMu.Unlock()
	b.Server.Close()
}

// Router builds the chi routes of the fake.
func (b *Backend) Router() chi.Router {
	r := chi.NewRouter()

	b.route(r, http.MethodPost, "/auth/register", b.handleRegister)
	b.route(r, http.MethodPost, "/auth/login", b.handleLogin)
	b.route(r, http.MethodPost, "/auth/refresh", b.handleRefresh)
	b.route(r, http.MethodPost, "/auth/logout", b.handleLogout)
	b.route(r, http.MethodGet, "/auth/me", b.authed(b.handleMe))
	b.route(r, http.MethodPost, "/auth/verify-email", b.handleVerifyEmail)
	b.route(r, http.MethodPost, "/auth/resend-verification", b.handleAccepted)
	b.route(r, http.MethodPost, "/auth/forgot-password", b.handleAccepted)
	b.route(r, http.MethodPost, "/auth/reset-password", b.handleResetPassword)
	b.route(r, http.MethodPost, "/auth/change-password", b.authed(b.handleChangePassword))

	b.route(r, http.MethodGet, "/videos", b.handleListVideos)
	b.route(r, http.MethodPost, "/videos", b.authed(b.handleUploadVideo))
	b.route(r, http.MethodGet, "/videos/trending", b.handleTrending)
	b.route(r, http.MethodGet, "/videos/search", b.handleSearchVideos)
	b.route(r, http.MethodGet, "/videos/categories", b.handleCategories)
	b.route(r, http.MethodGet, "/videos/{id}", b.handleGetVideo)
	b.route(r, http.MethodPatch, "/videos/{id}", b.authed(b.handleUpdateVideo))
	b.route(r, http.MethodDelete, "/videos/{id}", b.authed(b.handleDeleteVideo))
	b.route(r, http.MethodPost, "/videos/{id}/view", b.handleView)
	b.route(r, http.MethodPost, "/videos/{id}/like", b.authed(b.handleReaction(models.ReactionLike)))
	b.route(r, http.MethodPost, "/videos/{id}/dislike", b.authed(b.handleReaction(models.ReactionDislike)))
	b.route(r, http.MethodGet, "/videos/{id}/status", b.handleStatus)

	b.route(r, http.MethodGet, "/playlists", b.handleListPlaylists)
	b.route(r, http.MethodPost, "/playlists", b.authed(b.handleCreatePlaylist))
	b.route(r, http.MethodGet, "/playlists/search", b.handleSearchPlaylists)
	b.route(r, http.MethodGet, "/playlists/{id}", b.handleGetPlaylist)
	b.route(r, http.MethodPatch, "/playlists/{id}", b.authed(b.handleUpdatePlaylist))
	b.route(r, http.MethodDelete, "/playlists/{id}", b.authed(b.handleDeletePlaylist))
	b.route(r, http.MethodPost, "/playlists/{id}/videos", b.authed(b.handleAddPlaylistVideo))
	b.route(r, http.MethodDelete, "/playlists/{id}/videos/{videoId}", b.authed(b.handleRemovePlaylistVideo))
	b.route(r, http.MethodPut, "/playlists/{id}/reorder", b.authed(b.handleReorder))

	b.route(r, http.MethodGet, "/users/me/history", b.authed(b.handleHistory))
	b.route(r, http.MethodDelete, "/users/me/history", b.authed(b.handleClearHistory))
	b.route(r, http.MethodGet, "/users/playlists/{type}", b.authed(b.handleSpecialList))
	b.route(r, http.MethodPost, "/users/playlists/{type}/videos", b.authed(b.handleSpecialAdd))
	b.route(r, http.MethodDelete, "/users/playlists/{type}/videos/{videoId}", b.authed(b.handleSpecialRemove))
	b.route(r, http.MethodGet, "/users/{id}/videos", b.handleUserVideos)
	b.route(r, http.MethodGet, "/users/{id}/playlists", b.handleUserPlaylists)

	r.Get("/events", b.handleEvents)
	return r
}

// route registers h under "METHOD pattern", the name used by [Backend.Calls], [Backend.FailNext] and [Backend.Block].
func (b *Backend) route(r chi.Router, method, pattern string, h http.HandlerFunc) {
	name := method + " " + pattern
	r.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		b.calls[name]++
		var status int
		if queue := b.failures[name]; len(queue) > 0 {
			status, b.failures[name] = queue[0], queue[1:]
		}
		block := b.blocks[name]
		b.mu.Unlock()

		if block != nil {
			select {
			case <-block:
			case <-req.Context().Done():
				return
			}
		}
		if status != 0 {
			writeError(w, status, "injected failure", nil)
			return
		}
		h(w, req)
	}))
}

// Calls returns how many requests hit route, e.g. "GET /videos/search".
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// TotalCalls counts every request the fake served.
func (b *Backend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		n += c
	}
	return n
}

// FailNext makes the next request on route answer with status.
func (b *Backend) FailNext(route string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = append(b.failures[route], status)
}

// Block holds requests on route until the returned release func is called.
func (b *Backend) Block(route string) (release func()) {
	ch := make(chan struct{})
	b.mu.Lock()
	b.blocks[route] = ch
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.blocks, route)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// SetAccessTTL changes the lifetime of newly issued access tokens.
func (b *Backend) SetAccessTTL(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accessTTL = d
}

func (b *Backend) nextID(prefix string) string {
	b.seq++
	return fmt.Sprintf("%s%d", prefix, b.seq)
}

// SeedUser creates an account directly.
func (b *Backend) SeedUser(username, email, password string, verified bool) models.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := models.User{
		ID:            b.nextID("u"),
		Username:      username,
		Email:         email,
		Role:          models.RoleCreator,
		EmailVerified: verified,
		CreatedAt:     b.now().UTC(),
	}
	b.accounts[u.ID] = &account{user: u, password: password}
	return u
}

// IssueTokens returns a fresh pair for userID as if it had logged in.
func (b *Backend) IssueTokens(userID string) (access, refresh string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issue(userID)
}

func (b *Backend) issue(userID string) (string, string) {
	b.seq++
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        strconv.Itoa(b.seq),
		ExpiresAt: jwt.NewNumericDate(b.now().Add(b.accessTTL)),
		IssuedAt:  jwt.NewNumericDate(b.now()),
	}
	access, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(backendSecret))
	refresh := fmt.Sprintf("refresh-%s-%d", userID, b.seq)
	b.access[access] = userID
	b.refresh[refresh] = userID
	return access, refresh
}

// ExpireAccessTokens invalidates every issued access token; refresh tokens keep working.
func (b *Backend) ExpireAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access = make(map[string]string)
}

// RevokeRefreshTokens invalidates every refresh token.
func (b *Backend) RevokeRefreshTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh = make(map[string]string)
}

// SeedVideo stores v, filling id, status, visibility and timestamps when empty.
func (b *Backend) SeedVideo(v models.Video) models.Video {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v.ID == "" {
		v.ID = b.nextID("v")
	}
	if v.Status == "" {
		v.Status = models.VideoReady
	}
	if v.Visibility == "" {
		v.Visibility = models.VisibilityPublic
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = b.now().UTC()
	}
	v.UserReaction = ""
	b.videos[v.ID] = &v
	b.videoOrder = append(b.videoOrder, v.ID)
	return v
}

// Video returns the server-side copy of a video.
func (b *Backend) Video(id string) (models.Video, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.videos[id]
	if !ok {
		return models.Video{}, false
	}
	return *v, true
}

// SetCounts overwrites a video's counters, simulating reactions from other sessions.
func (b *Backend) SetCounts(videoID string, likes, dislikes int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.videos[videoID]; ok {
		v.Likes, v.Dislikes = likes, dislikes
	}
}

// Playlist returns the server-side copy of a playlist.
func (b *Backend) Playlist(id string) (models.Playlist, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.playlists[id]
	if !ok {
		return models.Playlist{}, false
	}
	return p.Clone(), true
}

// SpecialIDs returns the video ids in userID's special list.
func (b *Backend) SpecialIDs(userID string, list models.SpecialList) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.special[userID][list]...)
}

// CompleteProcessing marks a video ready and pushes video.processed to connected listeners.
func (b *Backend) CompleteProcessing(videoID string) {
	b.mu.Lock()
	if v, ok := b.videos[videoID]; ok {
		v.Status = models.VideoReady
	}
	b.mu.Unlock()
	b.Publish(Event{Type: "video.processed", Payload: map[string]string{"videoId": videoID}})
}

// FailProcessing marks a video failed and pushes video.failed.
func (b *Backend) FailProcessing(videoID, reason string) {
	b.mu.Lock()
	if v, ok := b.videos[videoID]; ok {
		v.Status = models.VideoFailed
	}
	b.mu.Unlock()
	b.Publish(Event{Type: "video.failed", Payload: map[string]string{"videoId": videoID, "error": reason}})
}

// Listeners counts connected /events websockets.
func (b *Backend) Listeners() int {
	b.wsMu.Lock()
	defer b.wsMu.Unlock()
	return len(b.conns)
}

// DropListeners closes every open event connection from the server side.
func (b *Backend) DropListeners() {
	b.wsMu.Lock()
	defer b.wsMu.Unlock()
	for c := range b.conns {
		c.Close()
		delete(b.conns, c)
	}
}

// Publish sends ev to every connected listener.
func (b *Backend) Publish(ev Event) {
	data, _ := json.Marshal(ev)
	b.wsMu.Lock()
	defer b.wsMu.Unlock()
	for c := range b.conns {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			c.Close()
			delete(b.conns, c)
		}
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func (b *Backend) handleEvents(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	_, ok := b.access[r.URL.Query().Get("token")]
	b.mu.Unlock()
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token", nil)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	b.wsMu.Lock()
	b.conns[conn] = struct{}{}
	b.wsMu.Unlock()

	go func() {
		defer func() {
			b.wsMu.Lock()
			delete(b.conns, conn)
			b.wsMu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, status int, msg string, fields map[string]string) {
	body := map[string]any{"message": msg}
	if len(fields) > 0 {
		body["fields"] = fields
	}
	writeJSON(w, status, map[string]any{"error": body})
}

func decodeBody(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}

// authed rejects requests without a live access token and passes the user id on.
func (b *Backend) authed(h func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := b.userFor(r)
		if uid == "" {
			writeError(w, http.StatusUnauthorized, "invalid or expired token", nil)
			return
		}
		h(w, r, uid)
	}
}

func (b *Backend) userFor(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.access[token]
}

func pageParams(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	return page, limit
}

func paginate[T any](r *http.Request, items []T) models.Page[T] {
	page, limit := pageParams(r)
	start := (page - 1) * limit
	if start > len(items) {
		start = len(items)
	}
	end := min(start+limit, len(items))
	out := append([]T{}, items[start:end]...)
	return models.Page[T]{
		Items:      out,
		Pagination: models.Pagination{Page: page, Limit: limit, Total: len(items), HasMore: end < len(items)},
	}
}

func summary(u models.User) *models.UserSummary {
	return &models.UserSummary{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL}
}

// sortedKeys returns map keys in a stable order for deterministic listings.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
