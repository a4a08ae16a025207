package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func summaries(uids ...string) []PostSummary {
	out := make([]PostSummary, len(uids))
	for i, uid := range uids {
		out[i] = PostSummary{UID: uid}
	}
	return out
}

func uidsOf(p PostPage) []string {
	out := make([]string, len(p.Results))
	for i, s := range p.Results {
		out[i] = s.UID
	}
	return out
}

func TestPostPage_Append(t *testing.T) {
	page := PostPage{NextPage: "url2", Results: summaries("a", "b")}

	n := page.Append(PostPage{NextPage: "url3", Results: summaries("c", "d", "e")})
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, uidsOf(page))
	assert.Equal(t, "url3", page.NextPage)
	assert.True(t, page.HasMore())

	n = page.Append(PostPage{Results: summaries("a")})
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "a"}, uidsOf(page), "no de-duplication")
	assert.False(t, page.HasMore())
}

func TestPostPage_AppendEmpty(t *testing.T) {
	page := PostPage{NextPage: "url2", Results: summaries("a")}
	assert.Zero(t, page.Append(PostPage{}))
	assert.Equal(t, []string{"a"}, uidsOf(page))
	assert.False(t, page.HasMore())
}

func TestPostPage_AppendPreservesPrefix(t *testing.T) {
	page := PostPage{}
	var want []string
	for i, batch := range [][]string{{"a"}, {"b", "c"}, {}, {"d"}} {
		before := uidsOf(page)
		n := page.Append(PostPage{NextPage: "next", Results: summaries(batch...)})
		assert.Equal(t, len(batch), n, "batch %d", i)
		assert.Equal(t, len(before)+len(batch), len(page.Results))
		assert.Equal(t, before, uidsOf(page)[:len(before)])
		want = append(want, batch...)
	}
	assert.Equal(t, want, uidsOf(page))
}

func TestPostState_String(t *testing.T) {
	assert.Equal(t, "not_yet_loaded", NotYetLoaded.String())
	assert.Equal(t, "loaded", Loaded.String())
	assert.Equal(t, "not_found", NotFound.String())
	assert.Equal(t, "unknown", PostState(42).String())
}

func TestPostPath(t *testing.T) {
	assert.Equal(t, "/post/hello-world", PostPath("hello-world"))
}

func TestListingPath(t *testing.T) {
	assert.Equal(t, "/", ListingPath(0))
	assert.Equal(t, "/", ListingPath(-1))
	assert.Equal(t, "/page/3", ListingPath(3))
}
