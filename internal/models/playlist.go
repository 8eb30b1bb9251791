package models

import "time"

// PlaylistVideo is a playlist entry. Positions are dense 0..N-1; the same video may appear twice.
type PlaylistVideo struct {
	Video    Video     `json:"video"`
	Position int       `json:"position"`
	AddedAt  time.Time `json:"addedAt"`
}

type Playlist struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	UserID      string          `json:"userId"`
	User        *UserSummary    `json:"user,omitempty"`
	IsPrivate   bool            `json:"isPrivate"`
	Videos      []PlaylistVideo `json:"videos,omitempty"`
	VideoCount  int             `json:"videoCount"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Clone returns a copy whose Videos slice can be modified independently.
func (p Playlist) Clone() Playlist {
	if p.Videos != nil {
		p.Videos = append([]PlaylistVideo(nil), p.Videos...)
	}
	return p
}

// Positions lists entry positions in slice order.
func (p Playlist) Positions() []int {
	out := make([]int, len(p.Videos))
	for i, v := range p.Videos {
		out[i] = v.Position
	}
	return out
}

// VideoIDs lists entry video ids in slice order.
func (p Playlist) VideoIDs() []string {
	out := make([]string, len(p.Videos))
	for i, v := range p.Videos {
		out[i] = v.Video.ID
	}
	return out
}

// HasDensePositions reports whether entry i carries position i for every entry.
func HasDensePositions(videos []PlaylistVideo) bool {
	for i, v := range videos {
		if v.Position != i {
			return false
		}
	}
	return true
}

// PlaylistInput is the create form.
type PlaylistInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	IsPrivate   bool   `json:"isPrivate"`
}

// PlaylistUpdate is a partial update; nil fields are left untouched.
type PlaylistUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	IsPrivate   *bool   `json:"isPrivate,omitempty"`
}

// PositionUpdate is one entry of a reorder request.
type PositionUpdate struct {
	VideoID  string `json:"videoId"`
	Position int    `json:"position"`
}

// SpecialList names a per-user list served under /users/playlists/:type.
type SpecialList string

const (
	Favorites  SpecialList = "favorites"
	WatchLater SpecialList = "watch-later"
)

func (s SpecialList) Valid() bool {
	return s == Favorites || s == WatchLater
}
