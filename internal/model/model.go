// Package model defines shared data structures.
package model

import (
	"strconv"
	"time"

	"github.com/bryan-buckman/spacetraveling/internal/richtext"
)

// DocumentType is the CMS custom type holding blog posts.
const DocumentType = "posts"

// PostSummary is a listing entry.
type PostSummary struct {
	UID                  string     `json:"uid"`
	FirstPublicationDate *time.Time `json:"first_publication_date"` // nullable for unpublished previews
	Title                string     `json:"title"`
	Subtitle             string     `json:"subtitle"`
	Author               string     `json:"author"`
}

// PostPage is one or more pages of listing entries plus the cursor to the
// next page.
type PostPage struct {
	NextPage string        `json:"next_page"`
	Results  []PostSummary `json:"results"`
}

// Append adds next's results after the existing ones and takes over its
// cursor. Existing entries are never reordered or removed. Returns the number
// of entries added.
func (p *PostPage) Append(next PostPage) int {
	p.Results = append(p.Results, next.Results...)
	p.NextPage = next.NextPage
	return len(next.Results)
}

// HasMore reports whether another page can be loaded.
func (p PostPage) HasMore() bool {
	return p.NextPage != ""
}

// ContentBlock is a section of a post: a plain heading and a rich-text body.
type ContentBlock struct {
	Heading string            `json:"heading"`
	Body    richtext.Document `json:"body"`
}

// PostDetail is a full post.
type PostDetail struct {
	UID                  string
	FirstPublicationDate *time.Time
	Title                string
	Subtitle             string
	BannerURL            string
	Author               string
	Content              []ContentBlock
}

// PostState is the outcome of resolving a post page.
type PostState int

const (
	// NotYetLoaded means generation is still running; show a placeholder.
	NotYetLoaded PostState = iota
	// Loaded means the post was found.
	Loaded
	// NotFound means the CMS has no post with that UID.
	NotFound
)

func (s PostState) String() string {
	switch s {
	case NotYetLoaded:
		return "not_yet_loaded"
	case Loaded:
		return "loaded"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// PostResult pairs a state with the post when Loaded.
type PostResult struct {
	State PostState
	Post  *PostDetail
}

// Page is a generated document kept in the page store.
type Page struct {
	Path        string
	Status      int
	ContentType string
	Body        []byte
	GeneratedAt time.Time
}

// Paths of generated pages.
const (
	PathHome = "/"
	PathFeed = "/feed.xml"
)

// PostPath returns the route of a post.
func PostPath(uid string) string {
	return "/post/" + uid
}

// ListingPath returns the route of the listing after n load-more steps.
// Zero is the home page.
func ListingPath(n int) string {
	if n <= 0 {
		return PathHome
	}
	return "/page/" + strconv.Itoa(n)
}

// Settings key constants.
const (
	SettingLastBuild = "last_build_at"
)
