package stores

import (
	"context"
	"slices"
	"sync"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

// Status is the state of a fetch flow.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// subscribers is embedded by every store.
type subscribers struct {
	subMu sync.Mutex
	next  int
	fns   map[int]func()
}

// Subscribe registers fn to run after every state change and returns a func that removes it.
func (s *subscribers) Subscribe(fn func()) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func())
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.fns, id)
	}
}

func (s *subscribers) notify() {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// List is one paginated collection.
type List[T any] struct {
	Items       []T
	Pagination  models.Pagination
	Params      models.ListParams
	Status      Status
	LoadingMore bool
	Err         error

	seq int
}

func (l List[T]) clone() List[T] {
	l.Items = slices.Clone(l.Items)
	return l
}

// CanLoadMore reports whether LoadMore would fetch a page.
func (l List[T]) CanLoadMore() bool {
	return l.Status == StatusSuccess && l.Pagination.HasMore && !l.LoadingMore
}

type pageFunc[T any] func(context.Context, models.ListParams) (*models.Page[T], error)

// cancelled reports whether ctx ended; its error wins over whatever the call returned.
func cancelled(ctx context.Context, err error) (bool, error) {
	if ctx.Err() != nil {
		return true, ctx.Err()
	}
	return false, err
}

// loadList replaces l with the first page for p. mu guards l; notify runs unlocked.
func loadList[T any](ctx context.Context, mu *sync.Mutex, l *List[T], p models.ListParams, fetch pageFunc[T], notify func()) error {
	mu.Lock()
	prev := *l
	l.seq++
	seq := l.seq
	l.Status, l.Err, l.Params = StatusLoading, nil, p
	mu.Unlock()
	notify()

	page, err := fetch(ctx, p)

	mu.Lock()
	if l.seq != seq {
		mu.Unlock()
		return context.Canceled
	}
	if stop, cerr := cancelled(ctx, err); stop {
		// a load-more running when this load began was superseded by the seq bump
		prev.seq = l.seq
		prev.LoadingMore = false
		*l = prev
		mu.Unlock()
		notify()
		return cerr
	}
	if err != nil {
		l.Status, l.Err = StatusFailure, err
	} else {
		l.Status = StatusSuccess
		l.Items = page.Items
		l.Pagination = page.Pagination
	}
	l.LoadingMore = false
	mu.Unlock()
	notify()
	return err
}

// loadMore appends the next page. Overlapping calls fail with [shared.ErrLoadInFlight].
func loadMore[T any](ctx context.Context, mu *sync.Mutex, l *List[T], fetch pageFunc[T], notify func()) error {
	mu.Lock()
	switch {
	case l.LoadingMore:
		mu.Unlock()
		return shared.ErrLoadInFlight
	case l.Status != StatusSuccess:
		mu.Unlock()
		return shared.ErrInvalidTransition
	case !l.Pagination.HasMore:
		mu.Unlock()
		return shared.ErrNoMorePages
	}
	l.LoadingMore = true
	seq := l.seq
	p := l.Params
	p.Page = l.Pagination.Next()
	mu.Unlock()
	notify()

	page, err := fetch(ctx, p)

	mu.Lock()
	if l.seq != seq {
		mu.Unlock()
		return context.Canceled
	}
	l.LoadingMore = false
	stop, err := cancelled(ctx, err)
	switch {
	case stop:
	case err != nil:
		l.Err = err
	default:
		l.Err = nil
		l.Items = append(l.Items, page.Items...)
		l.Pagination = page.Pagination
	}
	mu.Unlock()
	notify()
	return err
}
