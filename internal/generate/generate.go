// Package generate builds the blog's pages ahead of time and on first request.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/bryan-buckman/spacetraveling/internal/blog"
	"github.com/bryan-buckman/spacetraveling/internal/database"
	"github.com/bryan-buckman/spacetraveling/internal/feed"
	"github.com/bryan-buckman/spacetraveling/internal/model"
	"github.com/bryan-buckman/spacetraveling/internal/render"
)

// Content types of generated pages.
const (
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeRSS  = "application/rss+xml; charset=utf-8"
)

// Defaults used when Options leave a field zero.
const (
	DefaultMaxPages        = 50
	DefaultGenerateTimeout = 30 * time.Second
)

// Parallel post renders during a build.
const (
	maxConcurrencyPostgres = 8
	maxConcurrencySQLite   = 2
)

// ErrPageOutOfRange is returned for a listing page past the end of the
// cursor chain or past the configured maximum.
var ErrPageOutOfRange = errors.New("listing page out of range")

// Blog is the content the generator renders.
type Blog interface {
	Listing(ctx context.Context) (*blog.Listing, error)
	StaticPaths(ctx context.Context) ([]string, error)
	Post(ctx context.Context, uid string) (model.PostResult, error)
}

var _ Blog = (*blog.Service)(nil)

// Options tune the generator.
type Options struct {
	// MaxPages caps the number of load-more steps a listing page may take.
	MaxPages int
	// GenerateTimeout bounds a generation, which runs detached from the
	// request that started it.
	GenerateTimeout time.Duration
	Feed            feed.Site
}

// Outcome is the result of resolving a post page.
type Outcome struct {
	State model.PostState
	// Page is nil when State is NotYetLoaded.
	Page *model.Page
}

// Report summarizes a build.
type Report struct {
	Paths    []string
	Missing  []string
	Duration time.Duration
}

// Generator renders pages and keeps them in the page store.
type Generator struct {
	blog     Blog
	renderer *render.Renderer
	store    database.Store
	opts     Options
	logger   *slog.Logger

	group singleflight.Group
}

// New creates a generator.
func New(b Blog, renderer *render.Renderer, store database.Store, opts Options, logger *slog.Logger) *Generator {
	if opts.MaxPages < 1 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = DefaultGenerateTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{blog: b, renderer: renderer, store: store, opts: opts, logger: logger}
}

// MaxPages returns the highest listing page number served.
func (g *Generator) MaxPages() int {
	return g.opts.MaxPages
}

// Build regenerates every page that is known ahead of time: the listing
// pages, the feed and the posts returned by the static paths query. Nothing
// is written to the store until every page has rendered, and the stored pages
// are then replaced in one transaction. Static paths with no post are
// reported in Missing and not stored.
func (g *Generator) Build(ctx context.Context) (*Report, error) {
	start := time.Now()

	listing, err := g.blog.Listing(ctx)
	if err != nil {
		return nil, fmt.Errorf("build listing: %w", err)
	}
	var pages []*model.Page
	for n := 0; ; n++ {
		page, err := g.listingPage(listing.Page(), n)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
		if !listing.HasMore() || n >= g.opts.MaxPages {
			break
		}
		if _, err := listing.LoadMore(ctx); err != nil {
			return nil, fmt.Errorf("build listing page %d: %w", n+1, err)
		}
	}

	feedPage, err := g.feedPage(listing.Page())
	if err != nil {
		return nil, err
	}
	pages = append(pages, feedPage)

	uids, err := g.blog.StaticPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("build static paths: %w", err)
	}

	report := &Report{}
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	if g.store.SupportsHighConcurrency() {
		eg.SetLimit(maxConcurrencyPostgres)
	} else {
		eg.SetLimit(maxConcurrencySQLite)
	}
	for _, uid := range uids {
		eg.Go(func() error {
			outcome, err := g.renderPost(egCtx, uid)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if outcome.State == model.NotFound {
				report.Missing = append(report.Missing, uid)
				return nil
			}
			pages = append(pages, outcome.Page)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("build posts: %w", err)
	}

	if err := g.store.ReplacePages(pages); err != nil {
		return nil, fmt.Errorf("replace pages: %w", err)
	}
	for _, page := range pages {
		report.Paths = append(report.Paths, page.Path)
	}
	if err := g.store.SetSetting(model.SettingLastBuild, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("record build: %w", err)
	}

	report.Duration = time.Since(start)
	g.logger.Info("build complete",
		"pages", len(report.Paths),
		"missing", len(report.Missing),
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

// ListingPage returns the listing after n load-more steps, from the store
// when present and generated and stored otherwise.
func (g *Generator) ListingPage(ctx context.Context, n int) (*model.Page, error) {
	if n < 0 || n > g.opts.MaxPages {
		return nil, ErrPageOutOfRange
	}
	return g.cached(ctx, model.ListingPath(n), func(ctx context.Context) (*model.Page, error) {
		listing, err := g.blog.Listing(ctx)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			if _, err := listing.LoadMore(ctx); err != nil {
				if errors.Is(err, blog.ErrNoMorePages) {
					return nil, ErrPageOutOfRange
				}
				return nil, err
			}
		}
		return g.listingPage(listing.Page(), n)
	})
}

// Feed returns the RSS document listing every post reachable within
// MaxPages load-more steps.
func (g *Generator) Feed(ctx context.Context) (*model.Page, error) {
	return g.cached(ctx, model.PathFeed, func(ctx context.Context) (*model.Page, error) {
		listing, err := g.blog.Listing(ctx)
		if err != nil {
			return nil, err
		}
		for n := 0; listing.HasMore() && n < g.opts.MaxPages; n++ {
			if _, err := listing.LoadMore(ctx); err != nil {
				return nil, err
			}
		}
		return g.feedPage(listing.Page())
	})
}

// Post generates one post page. Found posts are stored with status 200.
// Missing ones get a 404 page that is not stored, so a post published later
// is generated on its first request.
func (g *Generator) Post(ctx context.Context, uid string) (Outcome, error) {
	outcome, err := g.renderPost(ctx, uid)
	if err != nil {
		return Outcome{}, err
	}
	if outcome.State != model.Loaded {
		return outcome, nil
	}
	if err := g.store.SavePage(outcome.Page); err != nil {
		return Outcome{}, fmt.Errorf("save %s: %w", outcome.Page.Path, err)
	}
	return outcome, nil
}

// Resolve returns the stored page for uid. When there is none it starts
// generation, or joins one already running, and waits up to wait for it. A
// generation still running after wait yields NotYetLoaded and keeps going in
// the background.
func (g *Generator) Resolve(ctx context.Context, uid string, wait time.Duration) (Outcome, error) {
	path := model.PostPath(uid)
	page, err := g.store.GetPage(path)
	if err == nil {
		return Outcome{State: model.Loaded, Page: page}, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return Outcome{}, fmt.Errorf("lookup %s: %w", path, err)
	}

	detached := context.WithoutCancel(ctx)
	ch := g.group.DoChan(path, func() (any, error) {
		genCtx, cancel := context.WithTimeout(detached, g.opts.GenerateTimeout)
		defer cancel()
		outcome, err := g.Post(genCtx, uid)
		if err != nil {
			g.logger.Error("generate post", "uid", uid, "error", err)
			return nil, err
		}
		g.logger.Info("generated post", "uid", uid, "state", outcome.State.String())
		return outcome, nil
	})

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case res := <-ch:
		if res.Err != nil {
			return Outcome{}, res.Err
		}
		return res.Val.(Outcome), nil
	case <-timer.C:
		return Outcome{State: model.NotYetLoaded}, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (g *Generator) cached(ctx context.Context, path string, generate func(context.Context) (*model.Page, error)) (*model.Page, error) {
	page, err := g.store.GetPage(path)
	if err == nil {
		return page, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("lookup %s: %w", path, err)
	}
	detached := context.WithoutCancel(ctx)
	v, err, _ := g.group.Do(path, func() (any, error) {
		genCtx, cancel := context.WithTimeout(detached, g.opts.GenerateTimeout)
		defer cancel()
		page, err := generate(genCtx)
		if err != nil {
			return nil, err
		}
		if err := g.store.SavePage(page); err != nil {
			return nil, fmt.Errorf("save %s: %w", path, err)
		}
		return page, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Page), nil
}

func (g *Generator) listingPage(page model.PostPage, n int) (*model.Page, error) {
	morePath := ""
	if n < g.opts.MaxPages {
		morePath = model.ListingPath(n + 1)
	}
	body, err := g.renderer.Home(page, morePath)
	if err != nil {
		return nil, err
	}
	return &model.Page{Path: model.ListingPath(n), Status: http.StatusOK, ContentType: ContentTypeHTML, Body: body}, nil
}

func (g *Generator) feedPage(page model.PostPage) (*model.Page, error) {
	body, err := feed.Export(g.opts.Feed, page.Results)
	if err != nil {
		return nil, err
	}
	return &model.Page{Path: model.PathFeed, Status: http.StatusOK, ContentType: ContentTypeRSS, Body: body}, nil
}

func (g *Generator) renderPost(ctx context.Context, uid string) (Outcome, error) {
	result, err := g.blog.Post(ctx, uid)
	if err != nil {
		return Outcome{}, err
	}
	page := &model.Page{Path: model.PostPath(uid), ContentType: ContentTypeHTML}
	switch result.State {
	case model.Loaded:
		page.Status = http.StatusOK
		page.Body, err = g.renderer.Post(result.Post)
	case model.NotFound:
		page.Status = http.StatusNotFound
		page.Body, err = g.renderer.NotFound()
	default:
		return Outcome{}, fmt.Errorf("post %q: unexpected state %s", uid, result.State)
	}
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{State: result.State, Page: page}, nil
}
