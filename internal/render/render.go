// Package render turns view models into HTML pages.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path"

	"github.com/bryan-buckman/spacetraveling/internal/blog"
	"github.com/bryan-buckman/spacetraveling/internal/format"
	"github.com/bryan-buckman/spacetraveling/internal/model"
	"github.com/bryan-buckman/spacetraveling/internal/richtext"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Page views.
const (
	ViewHome     = "home.html"
	ViewPost     = "post.html"
	ViewLoading  = "loading.html"
	ViewNotFound = "notfound.html"
	ViewError    = "error.html"
)

var views = []string{ViewHome, ViewPost, ViewLoading, ViewNotFound, ViewError}

// Site holds the values every page shares.
type Site struct {
	Title   string
	BaseURL string
}

// Renderer executes the page templates.
type Renderer struct {
	site      Site
	rich      richtext.Renderer
	templates map[string]*template.Template
}

// New parses the embedded templates. A nil rich renderer uses the default
// HTML renderer.
func New(site Site, rich richtext.Renderer) (*Renderer, error) {
	if rich == nil {
		rich = &richtext.HTMLRenderer{}
	}
	r := &Renderer{site: site, rich: rich, templates: make(map[string]*template.Template, len(views))}

	base, err := template.New("").Funcs(template.FuncMap{
		"formatDate":  format.DatePtr,
		"readingTime": blog.ReadingTime,
		"richText":    r.richText,
		"postPath":    model.PostPath,
	}).ParseFS(templatesFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	for _, name := range views {
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		tmpl, err := clone.ParseFS(templatesFS, path.Join("templates", name))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

func (r *Renderer) richText(doc richtext.Document) template.HTML {
	// The renderer escapes text and attributes itself.
	return template.HTML(r.rich.HTML(doc))
}

// Execute writes view name with data. The site values are available to the
// template as .Site.
func (r *Renderer) Execute(w io.Writer, name string, data map[string]any) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("unknown view %q", name)
	}
	if data == nil {
		data = map[string]any{}
	}
	data["Site"] = r.site
	return tmpl.ExecuteTemplate(w, "layout", data)
}

func (r *Renderer) bytes(name string, data map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Execute(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// Home renders the listing. morePath is the target of the load-more link,
// shown only when the page has a next cursor and morePath is not empty.
func (r *Renderer) Home(page model.PostPage, morePath string) ([]byte, error) {
	return r.bytes(ViewHome, map[string]any{
		"Title":    "Home | " + r.site.Title,
		"Page":     page,
		"MorePath": morePath,
	})
}

// Post renders a loaded post.
func (r *Renderer) Post(post *model.PostDetail) ([]byte, error) {
	if post == nil {
		return nil, fmt.Errorf("render %s: nil post", ViewPost)
	}
	return r.bytes(ViewPost, map[string]any{
		"Title": post.Title + " | " + r.site.Title,
		"Post":  post,
	})
}

// Loading renders the placeholder shown while a post is generated. The page
// refreshes itself after refreshSeconds.
func (r *Renderer) Loading(refreshSeconds int) ([]byte, error) {
	if refreshSeconds < 1 {
		refreshSeconds = 1
	}
	return r.bytes(ViewLoading, map[string]any{
		"Title":   "Carregando... | " + r.site.Title,
		"Refresh": refreshSeconds,
	})
}

// NotFound renders the page for a missing post or route.
func (r *Renderer) NotFound() ([]byte, error) {
	return r.bytes(ViewNotFound, map[string]any{
		"Title": "Página não encontrada | " + r.site.Title,
	})
}

// Error renders a generic failure page. message is shown to the reader and
// must not carry internal details.
func (r *Renderer) Error(status int, message string) ([]byte, error) {
	return r.bytes(ViewError, map[string]any{
		"Title":      http.StatusText(status) + " | " + r.site.Title,
		"Status":     status,
		"StatusText": http.StatusText(status),
		"Message":    message,
	})
}

// Static returns the embedded assets (logo and stylesheet) rooted at their
// file names.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
