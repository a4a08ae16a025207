// Package prismic is a small client for the Prismic content API (v2).
package prismic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds a single API request when no HTTP client is given.
const DefaultTimeout = 10 * time.Second

// Predicate is a query predicate such as [at(document.type, "posts")].
type Predicate string

// At matches documents whose field at path equals value.
func At(path, value string) Predicate {
	return Predicate(fmt.Sprintf("[at(%s, %q)]", path, value))
}

// QueryOptions tune a search request. Zero values are omitted.
type QueryOptions struct {
	PageSize  int
	Page      int
	Fetch     []string
	Orderings []string
}

// Client queries a single repository. It holds no mutable state and is safe
// for concurrent use.
type Client struct {
	endpoint    *url.URL
	accessToken string
	httpClient  *http.Client
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client for the API root at endpoint, e.g.
// "https://my-repo.cdn.prismic.io/api/v2".
func New(endpoint, accessToken string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("endpoint %q must be an absolute http(s) url", endpoint)
	}
	c := &Client{
		endpoint:    u,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the API root URL.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// MasterRef fetches the API root and returns the current master ref.
func (c *Client) MasterRef(ctx context.Context) (string, error) {
	u := *c.endpoint
	q := url.Values{}
	c.addToken(q)
	u.RawQuery = q.Encode()

	var root apiRoot
	if err := c.get(ctx, &u, &root); err != nil {
		return "", err
	}
	for _, r := range root.Refs {
		if r.IsMasterRef {
			return r.Ref, nil
		}
	}
	return "", &ParseError{URL: c.endpoint.String(), Err: errors.New("no master ref")}
}

// Query searches the master ref for documents matching all predicates.
func (c *Client) Query(ctx context.Context, predicates []Predicate, opts QueryOptions) (*Response, error) {
	ref, err := c.MasterRef(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("ref", ref)
	if len(predicates) > 0 {
		parts := make([]string, len(predicates))
		for i, p := range predicates {
			parts[i] = string(p)
		}
		q.Set("q", "["+strings.Join(parts, "")+"]")
	}
	if opts.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(opts.PageSize))
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if len(opts.Fetch) > 0 {
		q.Set("fetch", strings.Join(opts.Fetch, ","))
	}
	if len(opts.Orderings) > 0 {
		q.Set("orderings", "["+strings.Join(opts.Orderings, ",")+"]")
	}
	c.addToken(q)

	u := c.endpoint.JoinPath("documents", "search")
	u.RawQuery = q.Encode()
	return c.search(ctx, u)
}

// GetByUID returns the document of docType whose uid is uid, or ErrNotFound.
func (c *Client) GetByUID(ctx context.Context, docType, uid string) (*Document, error) {
	resp, err := c.Query(ctx, []Predicate{At("my."+docType+".uid", uid)}, QueryOptions{PageSize: 1})
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("%s %q: %w", docType, uid, ErrNotFound)
	}
	return &resp.Results[0], nil
}

// Page fetches a pagination URL previously returned as next_page or
// prev_page. URLs on another host are rejected before any request is made so
// the access token never leaves the API host.
func (c *Client) Page(ctx context.Context, pageURL string) (*Response, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	if !strings.EqualFold(u.Scheme, c.endpoint.Scheme) || !strings.EqualFold(u.Host, c.endpoint.Host) {
		return nil, fmt.Errorf("%s: %w", u.Host, ErrForeignCursor)
	}
	q := u.Query()
	if q.Get("access_token") == "" {
		c.addToken(q)
		u.RawQuery = q.Encode()
	}
	return c.search(ctx, u)
}

func (c *Client) search(ctx context.Context, u *url.URL) (*Response, error) {
	var resp Response
	if err := c.get(ctx, u, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		return nil, &ParseError{URL: redact(u), Err: errors.New("response has no results")}
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, u *url.URL, out any) error {
	safe := redact(u)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &FetchError{URL: safe, Err: scrub(err, safe)}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{URL: safe, Err: scrub(err, safe)}
	}
	defer res.Body.Close()

	c.logger.Debug("content api request",
		"url", safe,
		"status", res.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &FetchError{URL: safe, StatusCode: res.StatusCode}
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &ParseError{URL: safe, Err: err}
	}
	return nil
}

func (c *Client) addToken(q url.Values) {
	if c.accessToken != "" {
		q.Set("access_token", c.accessToken)
	}
}

// redact strips the access token from u for logs and errors.
func redact(u *url.URL) string {
	cp := *u
	q := cp.Query()
	if q.Has("access_token") {
		q.Set("access_token", "REDACTED")
		cp.RawQuery = q.Encode()
	}
	return cp.String()
}

// scrub swaps the request URL carried by a *url.Error for safe.
func scrub(err error, safe string) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		uerr.URL = safe
	}
	return err
}
