package search

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/vidx/internal/models"
)

// Params are the search term and filters shared with the URL.
type Params struct {
	Query    string
	Type     models.SearchType
	Sort     string
	Duration string
	Uploaded string
	Page     int
}

// Values encodes p as q, type, sort, duration, uploaded and page. Empty values are omitted.
func (p Params) Values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("q", p.Query)
	if p.Type != models.SearchAll {
		set("type", string(p.Type))
	}
	set("sort", p.Sort)
	set("duration", p.Duration)
	set("uploaded", p.Uploaded)
	if p.Page > 1 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	return v
}

// ParamsFromValues decodes what [Params.Values] produces. Unknown types fall back to all.
func ParamsFromValues(v url.Values) Params {
	p := Params{
		Query:    v.Get("q"),
		Type:     models.SearchType(v.Get("type")),
		Sort:     v.Get("sort"),
		Duration: v.Get("duration"),
		Uploaded: v.Get("uploaded"),
	}
	switch p.Type {
	case models.SearchVideos, models.SearchPlaylists:
	default:
		p.Type = models.SearchAll
	}
	if n, err := strconv.Atoi(v.Get("page")); err == nil && n > 0 {
		p.Page = n
	}
	return p
}

// ParseParams reads a query string such as "q=cats&type=videos".
func ParseParams(raw string) (Params, error) {
	v, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return Params{}, err
	}
	return ParamsFromValues(v), nil
}

func (p Params) term() string {
	return strings.TrimSpace(p.Query)
}

func (p Params) query(limit int) models.SearchQuery {
	return models.SearchQuery{
		Query:    p.term(),
		Type:     p.Type,
		Sort:     p.Sort,
		Duration: p.Duration,
		Uploaded: p.Uploaded,
		Page:     p.Page,
		Limit:    limit,
	}
}

func (p Params) wants(t models.SearchType) bool {
	return p.Type == "" || p.Type == models.SearchAll || p.Type == t
}
