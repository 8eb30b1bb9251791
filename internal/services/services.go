package services

import (
	"context"
	"net/url"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/vidx/internal/cache"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

// base carries what every service needs to read through and invalidate the cache.
type base struct {
	cache  cache.Store
	ttl    cache.TTLs
	logger *log.Logger
}

func newBase(store cache.Store, ttl cache.TTLs, logger *log.Logger, name string) base {
	if logger == nil {
		logger = shared.NewDiscardLogger()
	}
	if ttl == (cache.TTLs{}) {
		ttl = cache.DefaultTTLs()
	}
	return base{cache: store, ttl: ttl, logger: shared.WithLogger(logger, "service", name)}
}

// invalidate drops every listed namespace. A cache failure is logged and never fails the mutation.
func (b base) invalidate(ctx context.Context, namespaces ...cache.Namespace) {
	if b.cache == nil {
		return
	}
	for _, ns := range namespaces {
		if err := b.cache.InvalidateNamespace(context.WithoutCancel(ctx), ns); err != nil {
			b.logger.Warn("cache invalidation failed", "namespace", ns, "err", err)
		}
	}
}

func listQuery(p models.ListParams) url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Sort != "" {
		q.Set("sort", p.Sort)
	}
	if p.Category != "" {
		q.Set("category", p.Category)
	}
	if p.UserID != "" {
		q.Set("userId", p.UserID)
	}
	return q
}

func searchQuery(s models.SearchQuery) url.Values {
	q := url.Values{}
	q.Set("q", s.Query)
	if s.Sort != "" {
		q.Set("sort", s.Sort)
	}
	if s.Duration != "" {
		q.Set("duration", s.Duration)
	}
	if s.Uploaded != "" {
		q.Set("uploaded", s.Uploaded)
	}
	if s.Page > 0 {
		q.Set("page", strconv.Itoa(s.Page))
	}
	if s.Limit > 0 {
		q.Set("limit", strconv.Itoa(s.Limit))
	}
	return q
}

func escape(id string) string {
	return url.PathEscape(id)
}
