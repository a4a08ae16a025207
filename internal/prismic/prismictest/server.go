// Package prismictest runs an in-process fake of the Prismic content API for
// tests.
package prismictest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bryan-buckman/spacetraveling/internal/richtext"
)

// MasterRef is the ref served by the fake API root.
const MasterRef = "master-ref"

// Content is one repeatable content group of a post.
type Content struct {
	Heading string            `json:"heading"`
	Body    richtext.Document `json:"body"`
}

// Post is a "posts" document.
type Post struct {
	UID         string
	PublishedAt time.Time
	Title       string
	Subtitle    string
	Author      string
	BannerURL   string
	Content     []Content
}

// Server is a fake content API. Posts are returned in insertion order.
type Server struct {
	*httptest.Server

	// Token, when set, is required on every request.
	Token string

	mu         sync.Mutex
	posts      []Post
	requests   []*url.URL
	failStatus int
	rawBody    string
}

// NewServer starts a fake API closed at test cleanup.
func NewServer(t testing.TB, posts ...Post) *Server {
	t.Helper()
	s := &Server{posts: posts}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v2", s.handleRoot)
	mux.HandleFunc("GET /api/v2/documents/search", s.handleSearch)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Endpoint is the API root to hand to prismic.New.
func (s *Server) Endpoint() string {
	return s.URL + "/api/v2"
}

// AddPost appends a post.
func (s *Server) AddPost(p Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, p)
}

// FailWith makes search requests answer with status. Zero restores normal
// behaviour.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = status
}

// RespondRaw makes search requests answer 200 with body verbatim. An empty
// body restores normal behaviour.
func (s *Server) RespondRaw(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawBody = body
}

// Requests returns the URLs of all search requests received so far.
func (s *Server) Requests() []*url.URL {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*url.URL(nil), s.requests...)
}

func (s *Server) authorized(r *http.Request) bool {
	return s.Token == "" || r.URL.Query().Get("access_token") == s.Token
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, `{"error":"invalid access token"}`, http.StatusUnauthorized)
		return
	}
	writeJSON(w, map[string]any{
		"refs": []map[string]any{
			{"id": "master", "ref": MasterRef, "label": "Master", "isMasterRef": true},
		},
	})
}

var atPredicate = regexp.MustCompile(`at\(([^,]+),\s*"([^"]*)"\)`)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cp := *r.URL
	s.requests = append(s.requests, &cp)
	failStatus, rawBody := s.failStatus, s.rawBody
	posts := append([]Post(nil), s.posts...)
	s.mu.Unlock()

	if !s.authorized(r) {
		http.Error(w, `{"error":"invalid access token"}`, http.StatusUnauthorized)
		return
	}
	if failStatus != 0 {
		http.Error(w, `{"error":"failure"}`, failStatus)
		return
	}
	if rawBody != "" {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(rawBody))
		return
	}

	q := r.URL.Query()
	if q.Get("ref") != MasterRef {
		http.Error(w, `{"error":"unknown ref"}`, http.StatusBadRequest)
		return
	}

	matched := posts[:0:0]
	for _, p := range posts {
		if matches(p, q.Get("q")) {
			matched = append(matched, p)
		}
	}

	pageSize := intParam(q, "pageSize", 20)
	page := intParam(q, "page", 1)
	total := len(matched)
	totalPages := (total + pageSize - 1) / pageSize
	from := (page - 1) * pageSize
	to := from + pageSize
	if from > total {
		from = total
	}
	if to > total {
		to = total
	}

	results := make([]map[string]any, 0, to-from)
	for _, p := range matched[from:to] {
		results = append(results, document(p, q.Get("fetch") != ""))
	}

	var next any
	if page < totalPages {
		nq := url.Values{}
		for k, v := range q {
			nq[k] = v
		}
		nq.Set("page", strconv.Itoa(page+1))
		next = s.URL + r.URL.Path + "?" + nq.Encode()
	}

	writeJSON(w, map[string]any{
		"page":               page,
		"results_per_page":   pageSize,
		"results_size":       len(results),
		"total_results_size": total,
		"total_pages":        totalPages,
		"next_page":          next,
		"prev_page":          nil,
		"results":            results,
	})
}

func matches(p Post, q string) bool {
	for _, m := range atPredicate.FindAllStringSubmatch(q, -1) {
		switch m[1] {
		case "document.type":
			if m[2] != "posts" {
				return false
			}
		case "my.posts.uid":
			if m[2] != p.UID {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func document(p Post, idOnly bool) map[string]any {
	doc := map[string]any{
		"id":                     "id-" + p.UID,
		"uid":                    p.UID,
		"type":                   "posts",
		"first_publication_date": nil,
		"last_publication_date":  nil,
	}
	if !p.PublishedAt.IsZero() {
		doc["first_publication_date"] = p.PublishedAt.Format("2006-01-02T15:04:05-0700")
		doc["last_publication_date"] = p.PublishedAt.Format("2006-01-02T15:04:05-0700")
	}
	if idOnly {
		doc["data"] = map[string]any{}
		return doc
	}
	content := p.Content
	if content == nil {
		content = []Content{}
	}
	doc["data"] = map[string]any{
		"title":    p.Title,
		"subtitle": p.Subtitle,
		"author":   p.Author,
		"banner":   map[string]any{"url": p.BannerURL},
		"content":  content,
	}
	return doc
}

func intParam(q url.Values, key string, fallback int) int {
	n, err := strconv.Atoi(q.Get(key))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
