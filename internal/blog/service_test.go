package blog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bryan-buckman/spacetraveling/internal/model"
	"github.com/bryan-buckman/spacetraveling/internal/prismic"
	"github.com/bryan-buckman/spacetraveling/internal/prismic/prismictest"
	"github.com/bryan-buckman/spacetraveling/internal/richtext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAPI struct {
	query    func(ctx context.Context, predicates []prismic.Predicate, opts prismic.QueryOptions) (*prismic.Response, error)
	getByUID func(ctx context.Context, docType, uid string) (*prismic.Document, error)
	page     func(ctx context.Context, pageURL string) (*prismic.Response, error)
}

func (m *mockAPI) Query(ctx context.Context, predicates []prismic.Predicate, opts prismic.QueryOptions) (*prismic.Response, error) {
	if m.query != nil {
		return m.query(ctx, predicates, opts)
	}
	return &prismic.Response{Results: []prismic.Document{}}, nil
}

func (m *mockAPI) GetByUID(ctx context.Context, docType, uid string) (*prismic.Document, error) {
	if m.getByUID != nil {
		return m.getByUID(ctx, docType, uid)
	}
	return nil, prismic.ErrNotFound
}

func (m *mockAPI) Page(ctx context.Context, pageURL string) (*prismic.Response, error) {
	if m.page != nil {
		return m.page(ctx, pageURL)
	}
	return &prismic.Response{Results: []prismic.Document{}}, nil
}

func doc(uid string, data map[string]any) prismic.Document {
	raw, err := json.Marshal(data)
	if err != nil {
		panic(err)
	}
	return prismic.Document{UID: uid, Type: "posts", Data: raw}
}

func summaryDoc(uid string) prismic.Document {
	return doc(uid, map[string]any{"title": "T " + uid, "subtitle": "S " + uid, "author": "A " + uid})
}

func uids(page model.PostPage) []string {
	out := make([]string, len(page.Results))
	for i, s := range page.Results {
		out[i] = s.UID
	}
	return out
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func TestService_Home(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		api := &mockAPI{
			query: func(_ context.Context, predicates []prismic.Predicate, opts prismic.QueryOptions) (*prismic.Response, error) {
				assert.Equal(t, []prismic.Predicate{prismic.At("document.type", "posts")}, predicates)
				assert.Equal(t, 5, opts.PageSize)
				return &prismic.Response{NextPage: "url2", Results: []prismic.Document{summaryDoc("a")}}, nil
			},
		}
		svc := NewService(api, Options{PageSize: 5}, nil)
		page, err := svc.Home(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "url2", page.NextPage)
		require.Len(t, page.Results, 1)
		assert.Equal(t, model.PostSummary{UID: "a", Title: "T a", Subtitle: "S a", Author: "A a"}, page.Results[0])
	})

	t.Run("default page size", func(t *testing.T) {
		api := &mockAPI{
			query: func(_ context.Context, _ []prismic.Predicate, opts prismic.QueryOptions) (*prismic.Response, error) {
				assert.Equal(t, DefaultPageSize, opts.PageSize)
				return &prismic.Response{Results: []prismic.Document{}}, nil
			},
		}
		page, err := NewService(api, Options{}, nil).Home(context.Background())
		require.NoError(t, err)
		assert.False(t, page.HasMore())
		assert.Empty(t, page.Results)
	})

	t.Run("api error propagates", func(t *testing.T) {
		boom := &prismic.FetchError{URL: "x", StatusCode: http.StatusBadGateway}
		api := &mockAPI{
			query: func(context.Context, []prismic.Predicate, prismic.QueryOptions) (*prismic.Response, error) {
				return nil, boom
			},
		}
		_, err := NewService(api, Options{}, nil).Home(context.Background())
		var fetchErr *prismic.FetchError
		assert.ErrorAs(t, err, &fetchErr)
	})

	t.Run("bad document data", func(t *testing.T) {
		api := &mockAPI{
			query: func(context.Context, []prismic.Predicate, prismic.QueryOptions) (*prismic.Response, error) {
				return &prismic.Response{Results: []prismic.Document{{UID: "a", Data: json.RawMessage(`"nope"`)}}}, nil
			},
		}
		_, err := NewService(api, Options{}, nil).Home(context.Background())
		var parseErr *prismic.ParseError
		assert.ErrorAs(t, err, &parseErr)
	})
}

func TestService_StaticPaths(t *testing.T) {
	api := &mockAPI{
		query: func(_ context.Context, _ []prismic.Predicate, opts prismic.QueryOptions) (*prismic.Response, error) {
			assert.Equal(t, 100, opts.PageSize)
			assert.Equal(t, []string{"posts.uid"}, opts.Fetch)
			return &prismic.Response{Results: []prismic.Document{{UID: "a"}, {UID: ""}, {UID: "b"}}}, nil
		},
	}
	got, err := NewService(api, Options{StaticPathsLimit: 500}, nil).StaticPaths(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestService_Post(t *testing.T) {
	t.Run("loaded", func(t *testing.T) {
		published := time.Date(2021, time.March, 15, 0, 0, 0, 0, time.UTC)
		d := doc("hello", map[string]any{
			"title":    "Hello",
			"subtitle": "Sub",
			"author":   "Ana",
			"banner":   map[string]any{"url": "https://img/banner.png"},
			"content": []map[string]any{
				{"heading": "Intro", "body": []map[string]any{{"type": "paragraph", "text": "hi there", "spans": []any{}}}},
			},
		})
		d.FirstPublicationDate = &prismic.Time{Time: published}
		api := &mockAPI{
			getByUID: func(_ context.Context, docType, uid string) (*prismic.Document, error) {
				assert.Equal(t, "posts", docType)
				assert.Equal(t, "hello", uid)
				return &d, nil
			},
		}
		res, err := NewService(api, Options{}, nil).Post(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, model.Loaded, res.State)
		require.NotNil(t, res.Post)
		assert.Equal(t, "Hello", res.Post.Title)
		assert.Equal(t, "https://img/banner.png", res.Post.BannerURL)
		assert.Equal(t, "Ana", res.Post.Author)
		assert.True(t, res.Post.FirstPublicationDate.Equal(published))
		require.Len(t, res.Post.Content, 1)
		assert.Equal(t, "Intro", res.Post.Content[0].Heading)
		assert.Equal(t, "hi there", res.Post.Content[0].Body[0].Text)
	})

	t.Run("not found", func(t *testing.T) {
		api := &mockAPI{}
		res, err := NewService(api, Options{}, nil).Post(context.Background(), "missing")
		require.NoError(t, err)
		assert.Equal(t, model.NotFound, res.State)
		assert.Nil(t, res.Post)
	})

	t.Run("fetch error", func(t *testing.T) {
		api := &mockAPI{
			getByUID: func(context.Context, string, string) (*prismic.Document, error) {
				return nil, errors.New("connection reset")
			},
		}
		_, err := NewService(api, Options{}, nil).Post(context.Background(), "x")
		assert.ErrorContains(t, err, "connection reset")
	})
}

func TestReadingTime(t *testing.T) {
	body := func(n int) richtext.Document {
		return richtext.Document{{Type: richtext.TypeParagraph, Text: words(n)}}
	}
	tests := []struct {
		name    string
		content []model.ContentBlock
		want    int
	}{
		{"empty", nil, 0},
		{"exactly 200", []model.ContentBlock{{Heading: "", Body: body(200)}}, 1},
		{"201 words", []model.ContentBlock{{Heading: "one", Body: body(200)}}, 2},
		{"intro plus 199", []model.ContentBlock{{Heading: "Intro", Body: body(199)}}, 1},
		{"several blocks", []model.ContentBlock{
			{Heading: "Two words", Body: body(150)},
			{Heading: "Three more words", Body: richtext.Document{
				{Type: richtext.TypeParagraph, Text: words(100)},
				{Type: richtext.TypeImage, URL: "https://img/x.png"},
				{Type: richtext.TypeListItem, Text: "  spaced\tout\nwords  "},
			}},
		}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReadingTime(&model.PostDetail{Content: tt.content}))
		})
	}
	assert.Zero(t, ReadingTime(nil))
}

func TestWordCount(t *testing.T) {
	post := &model.PostDetail{Content: []model.ContentBlock{
		{Heading: "Intro", Body: richtext.Document{
			{Type: richtext.TypeParagraph, Text: "a b"},
			{Type: richtext.TypeParagraph, Text: "c"},
		}},
	}}
	assert.Equal(t, 4, WordCount(post))
}

type pagerFunc func(ctx context.Context, pageURL string) (model.PostPage, error)

func (f pagerFunc) NextPage(ctx context.Context, pageURL string) (model.PostPage, error) {
	return f(ctx, pageURL)
}

func TestListing_LoadMore(t *testing.T) {
	pages := map[string]model.PostPage{
		"url2": {NextPage: "url3", Results: []model.PostSummary{{UID: "b"}, {UID: "c"}}},
		"url3": {Results: []model.PostSummary{{UID: "d"}}},
	}
	var requested []string
	pager := pagerFunc(func(_ context.Context, u string) (model.PostPage, error) {
		requested = append(requested, u)
		return pages[u], nil
	})
	l := NewListing(pager, model.PostPage{NextPage: "url2", Results: []model.PostSummary{{UID: "a"}}})

	n, err := l.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "b", "c"}, uids(l.Page()))
	assert.True(t, l.HasMore())

	n, err = l.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"a", "b", "c", "d"}, uids(l.Page()))
	assert.False(t, l.HasMore())

	_, err = l.LoadMore(context.Background())
	assert.ErrorIs(t, err, ErrNoMorePages)
	assert.Equal(t, []string{"url2", "url3"}, requested)
}

func TestListing_LoadMoreError(t *testing.T) {
	fail := true
	pager := pagerFunc(func(context.Context, string) (model.PostPage, error) {
		if fail {
			return model.PostPage{}, errors.New("timeout")
		}
		return model.PostPage{Results: []model.PostSummary{{UID: "b"}}}, nil
	})
	l := NewListing(pager, model.PostPage{NextPage: "url2", Results: []model.PostSummary{{UID: "a"}}})

	_, err := l.LoadMore(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, uids(l.Page()))
	assert.Equal(t, "url2", l.Page().NextPage, "cursor kept for retry")

	fail = false
	_, err = l.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, uids(l.Page()))
}

func TestListing_LoadMoreInFlightGuard(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	pager := pagerFunc(func(context.Context, string) (model.PostPage, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		close(started)
		<-release
		return model.PostPage{Results: []model.PostSummary{{UID: "b"}}}, nil
	})
	l := NewListing(pager, model.PostPage{NextPage: "url2", Results: []model.PostSummary{{UID: "a"}}})

	done := make(chan error, 1)
	go func() {
		_, err := l.LoadMore(context.Background())
		done <- err
	}()
	<-started

	_, err := l.LoadMore(context.Background())
	assert.ErrorIs(t, err, ErrLoadInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"a", "b"}, uids(l.Page()))
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
}

func TestListing_PageIsSnapshot(t *testing.T) {
	l := NewListing(pagerFunc(nil), model.PostPage{Results: []model.PostSummary{{UID: "a"}}})
	snap := l.Page()
	snap.Results[0].UID = "changed"
	assert.Equal(t, []string{"a"}, uids(l.Page()))
}

func TestService_ListingEndToEnd(t *testing.T) {
	srv := prismictest.NewServer(t,
		prismictest.Post{UID: "a", Title: "First"},
		prismictest.Post{UID: "b", Title: "Second"},
	)
	client, err := prismic.New(srv.Endpoint(), "")
	require.NoError(t, err)
	svc := NewService(client, Options{PageSize: 1}, nil)
	ctx := context.Background()

	listing, err := svc.Listing(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, uids(listing.Page()))
	require.True(t, listing.HasMore())

	n, err := listing.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"a", "b"}, uids(listing.Page()))
	assert.False(t, listing.HasMore())
}
