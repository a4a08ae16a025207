// Package blog maps content-API documents into the blog's view models.
package blog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bryan-buckman/spacetraveling/internal/model"
	"github.com/bryan-buckman/spacetraveling/internal/prismic"
)

// Defaults used when Options leave a field zero.
const (
	DefaultPageSize         = 10
	DefaultStaticPathsLimit = 100
	maxStaticPathsLimit     = 100
)

// ContentAPI is the subset of the content-API client the service needs.
type ContentAPI interface {
	Query(ctx context.Context, predicates []prismic.Predicate, opts prismic.QueryOptions) (*prismic.Response, error)
	GetByUID(ctx context.Context, docType, uid string) (*prismic.Document, error)
	Page(ctx context.Context, pageURL string) (*prismic.Response, error)
}

var _ ContentAPI = (*prismic.Client)(nil)

// Options tune the service.
type Options struct {
	PageSize         int
	StaticPathsLimit int
}

// Service reads posts from the content API.
type Service struct {
	api        ContentAPI
	pageSize   int
	pathsLimit int
	logger     *slog.Logger
}

var _ Pager = (*Service)(nil)

// NewService creates a service over api.
func NewService(api ContentAPI, opts Options, logger *slog.Logger) *Service {
	if opts.PageSize < 1 {
		opts.PageSize = DefaultPageSize
	}
	if opts.StaticPathsLimit < 1 || opts.StaticPathsLimit > maxStaticPathsLimit {
		opts.StaticPathsLimit = DefaultStaticPathsLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		api:        api,
		pageSize:   opts.PageSize,
		pathsLimit: opts.StaticPathsLimit,
		logger:     logger,
	}
}

type summaryData struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Author   string `json:"author"`
}

type postData struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Author   string `json:"author"`
	Banner   struct {
		URL string `json:"url"`
	} `json:"banner"`
	Content []model.ContentBlock `json:"content"`
}

func postsOnly() []prismic.Predicate {
	return []prismic.Predicate{prismic.At("document.type", model.DocumentType)}
}

// Home returns the first page of the listing.
func (s *Service) Home(ctx context.Context) (model.PostPage, error) {
	resp, err := s.api.Query(ctx, postsOnly(), prismic.QueryOptions{PageSize: s.pageSize})
	if err != nil {
		return model.PostPage{}, fmt.Errorf("query posts: %w", err)
	}
	return toPostPage(resp)
}

// NextPage returns the listing page behind a next_page cursor.
func (s *Service) NextPage(ctx context.Context, pageURL string) (model.PostPage, error) {
	resp, err := s.api.Page(ctx, pageURL)
	if err != nil {
		return model.PostPage{}, fmt.Errorf("next page: %w", err)
	}
	return toPostPage(resp)
}

// Listing starts a listing at the first page.
func (s *Service) Listing(ctx context.Context) (*Listing, error) {
	first, err := s.Home(ctx)
	if err != nil {
		return nil, err
	}
	return NewListing(s, first), nil
}

// StaticPaths returns the UIDs of the posts to generate ahead of time.
func (s *Service) StaticPaths(ctx context.Context) ([]string, error) {
	resp, err := s.api.Query(ctx, postsOnly(), prismic.QueryOptions{
		PageSize: s.pathsLimit,
		Fetch:    []string{model.DocumentType + ".uid"},
	})
	if err != nil {
		return nil, fmt.Errorf("query post uids: %w", err)
	}
	uids := make([]string, 0, len(resp.Results))
	for _, doc := range resp.Results {
		if doc.UID == "" {
			continue
		}
		uids = append(uids, doc.UID)
	}
	return uids, nil
}

// Post fetches one post. A UID with no document yields State NotFound and a
// nil error.
func (s *Service) Post(ctx context.Context, uid string) (model.PostResult, error) {
	doc, err := s.api.GetByUID(ctx, model.DocumentType, uid)
	if errors.Is(err, prismic.ErrNotFound) {
		s.logger.Info("post not found", "uid", uid)
		return model.PostResult{State: model.NotFound}, nil
	}
	if err != nil {
		return model.PostResult{}, fmt.Errorf("get post %q: %w", uid, err)
	}

	var data postData
	if err := doc.DecodeData(&data); err != nil {
		return model.PostResult{}, err
	}
	post := &model.PostDetail{
		UID:                  doc.UID,
		FirstPublicationDate: doc.FirstPublicationDate.Ptr(),
		Title:                data.Title,
		Subtitle:             data.Subtitle,
		BannerURL:            data.Banner.URL,
		Author:               data.Author,
		Content:              data.Content,
	}
	return model.PostResult{State: model.Loaded, Post: post}, nil
}

func toPostPage(resp *prismic.Response) (model.PostPage, error) {
	page := model.PostPage{
		NextPage: resp.NextPage,
		Results:  make([]model.PostSummary, 0, len(resp.Results)),
	}
	for i := range resp.Results {
		doc := &resp.Results[i]
		var data summaryData
		if err := doc.DecodeData(&data); err != nil {
			return model.PostPage{}, err
		}
		page.Results = append(page.Results, model.PostSummary{
			UID:                  doc.UID,
			FirstPublicationDate: doc.FirstPublicationDate.Ptr(),
			Title:                data.Title,
			Subtitle:             data.Subtitle,
			Author:               data.Author,
		})
	}
	return page, nil
}
