package models

import "time"

// Reaction is the caller's own reaction to a video. The zero value means none.
type Reaction string

const (
	ReactionNone    Reaction = ""
	ReactionLike    Reaction = "like"
	ReactionDislike Reaction = "dislike"
)

type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
)

// VideoStatus is the server-side processing state of a video.
type VideoStatus string

const (
	VideoUploading  VideoStatus = "uploading"
	VideoProcessing VideoStatus = "processing"
	VideoReady      VideoStatus = "ready"
	VideoFailed     VideoStatus = "failed"
)

// UserSummary is the owner reference embedded in videos and playlists.
type UserSummary struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Video is a video as returned by list and detail endpoints.
type Video struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	UserID       string       `json:"userId"`
	User         *UserSummary `json:"user,omitempty"`
	Duration     int          `json:"duration"` // seconds
	Views        int64        `json:"views"`
	Likes        int64        `json:"likes"`
	Dislikes     int64        `json:"dislikes"`
	UserReaction Reaction     `json:"userReaction,omitempty"`
	Visibility   Visibility   `json:"visibility"`
	Status       VideoStatus  `json:"status,omitempty"`
	ThumbnailURL string       `json:"thumbnailUrl,omitempty"`
	Category     string       `json:"category,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// Reactions returns the engagement slice a like/dislike may change.
func (v Video) Reactions() ReactionState {
	return ReactionState{Likes: v.Likes, Dislikes: v.Dislikes, UserReaction: v.UserReaction}
}

// WithReactions returns a copy of v carrying s.
func (v Video) WithReactions(s ReactionState) Video {
	v.Likes, v.Dislikes, v.UserReaction = s.Likes, s.Dislikes, s.UserReaction
	return v
}

// ReactionState is the server's answer to /like and /dislike, and the snapshot an optimistic toggle rolls back to.
type ReactionState struct {
	Likes        int64    `json:"likes"`
	Dislikes     int64    `json:"dislikes"`
	UserReaction Reaction `json:"userReaction,omitempty"`
}

// Toggle applies a local like/dislike toggle: repeating the current reaction clears it, switching moves the count.
func (s ReactionState) Toggle(r Reaction) ReactionState {
	switch s.UserReaction {
	case ReactionLike:
		s.Likes--
	case ReactionDislike:
		s.Dislikes--
	}
	if s.UserReaction == r {
		s.UserReaction = ReactionNone
		return s
	}
	switch r {
	case ReactionLike:
		s.Likes++
	case ReactionDislike:
		s.Dislikes++
	}
	s.UserReaction = r
	return s
}

// VideoMetadata is the form sent with an upload.
type VideoMetadata struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Visibility  Visibility `json:"visibility,omitempty"`
	Category    string     `json:"category,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
}

// VideoUpdate is a partial update; nil fields are left untouched.
type VideoUpdate struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Visibility  *Visibility `json:"visibility,omitempty"`
	Category    *string     `json:"category,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
}

// Category is a browse category. Categories change rarely and are cached for an hour.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ProcessingStatus is returned by /videos/:id/status.
type ProcessingStatus struct {
	VideoID  string      `json:"videoId"`
	Status   VideoStatus `json:"status"`
	Progress int         `json:"progress"`
	Error    string      `json:"error,omitempty"`
}

// HistoryEntry is one row of the caller's watch history.
type HistoryEntry struct {
	Video     Video     `json:"video"`
	WatchedAt time.Time `json:"watchedAt"`
}
