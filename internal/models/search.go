package models

// SearchType selects which entity searches run.
type SearchType string

const (
	SearchAll       SearchType = "all"
	SearchVideos    SearchType = "videos"
	SearchPlaylists SearchType = "playlists"
)

// SearchQuery is the full parameter set of a search, mirrored in navigable URL state.
type SearchQuery struct {
	Query    string     `json:"q"`
	Type     SearchType `json:"type,omitempty"`
	Sort     string     `json:"sort,omitempty"`     // relevance, date, views, rating
	Duration string     `json:"duration,omitempty"` // short, medium, long
	Uploaded string     `json:"uploaded,omitempty"` // hour, today, week, month, year
	Page     int        `json:"page,omitempty"`
	Limit    int        `json:"limit,omitempty"`
}
