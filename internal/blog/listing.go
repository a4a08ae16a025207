package blog

import (
	"context"
	"sync"

	"github.com/bryan-buckman/spacetraveling/internal/model"
)

// Pager fetches the page behind a pagination cursor.
type Pager interface {
	NextPage(ctx context.Context, pageURL string) (model.PostPage, error)
}

// Listing is the transient state of a post listing that grows as the reader
// asks for more posts.
type Listing struct {
	pager Pager

	mu      sync.Mutex
	page    model.PostPage
	loading bool
}

// NewListing starts a listing from its first page.
func NewListing(pager Pager, first model.PostPage) *Listing {
	return &Listing{pager: pager, page: first}
}

// LoadMore fetches the next page and appends it. Only one load runs at a
// time; a concurrent call returns ErrLoadInProgress without a request.
func (l *Listing) LoadMore(ctx context.Context) (int, error) {
	l.mu.Lock()
	if l.loading {
		l.mu.Unlock()
		return 0, ErrLoadInProgress
	}
	if !l.page.HasMore() {
		l.mu.Unlock()
		return 0, ErrNoMorePages
	}
	cursor := l.page.NextPage
	l.loading = true
	l.mu.Unlock()

	next, err := l.pager.NextPage(ctx, cursor)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = false
	if err != nil {
		return 0, err
	}
	return l.page.Append(next), nil
}

// Page returns a snapshot of the loaded entries and the current cursor.
func (l *Listing) Page() model.PostPage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return model.PostPage{
		NextPage: l.page.NextPage,
		Results:  append([]model.PostSummary(nil), l.page.Results...),
	}
}

// HasMore reports whether LoadMore can fetch another page.
func (l *Listing) HasMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.page.HasMore()
}
