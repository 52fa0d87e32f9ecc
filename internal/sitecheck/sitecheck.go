// Package sitecheck crawls a running site. It reads the sitemap, fetches
// every listed page, follows internal links and assets one level deep and
// optionally submits the reading forms with sample details.
package sitecheck

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/meradin/pkg/logger"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWorkers = 4
	defaultTimeout = 15 * time.Second
	maxPageBytes   = 2 << 20
)

// Result is the outcome of one request.
type Result struct {
	Method string
	Path   string
	Status int
	Err    error
}

// OK reports whether the request succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Report holds every result of a run, sorted by method and path.
type Report struct {
	Results []Result
}

// Failed returns the results that did not pass.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Err returns ErrFailed when any result failed.
func (r Report) Err() error {
	if n := len(r.Failed()); n > 0 {
		return fmt.Errorf("%w: %d of %d requests", ErrFailed, n, len(r.Results))
	}
	return nil
}

// Checker crawls one site.
type Checker struct {
	base    *url.URL
	client  *http.Client
	workers int
	forms   bool
	log     logger.Logger

	mu      sync.Mutex
	results []Result
	seen    map[string]bool
}

// Option applies a configuration option to the Checker.
type Option func(*Checker)

// WithHTTPClient sets the client used for every request.
func WithHTTPClient(c *http.Client) Option {
	return func(ch *Checker) {
		if c != nil {
			ch.client = c
		}
	}
}

// WithWorkers bounds the number of concurrent requests.
func WithWorkers(n int) Option {
	return func(ch *Checker) {
		if n > 0 {
			ch.workers = n
		}
	}
}

// WithForms enables sample form submissions. They call the scoring API.
func WithForms(enabled bool) Option {
	return func(ch *Checker) {
		ch.forms = enabled
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(ch *Checker) {
		if l != nil {
			ch.log = l
		}
	}
}

// New creates a checker for the site at base (e.g. "http://localhost:8080").
func New(base string, opts ...Option) (*Checker, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBaseURL, base)
	}
	c := &Checker{
		base:    u,
		client:  &http.Client{Timeout: defaultTimeout},
		workers: defaultWorkers,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Named("sitecheck")
	}
	return c, nil
}

type urlSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// Run crawls the site. The returned error is set only when the crawl could
// not start or ctx ended; page failures are in the report.
func (c *Checker) Run(ctx context.Context) (Report, error) {
	c.mu.Lock()
	c.results = nil
	c.seen = map[string]bool{}
	c.mu.Unlock()
	defer c.client.CloseIdleConnections()

	pages, err := c.sitemap(ctx)
	if err != nil {
		return Report{}, err
	}
	c.log.Info(ctx, "sitemap read", logger.Int("pages", len(pages)))

	links, err := c.fetchAll(ctx, pages, true)
	if err != nil {
		return Report{}, err
	}
	if _, err := c.fetchAll(ctx, links, false); err != nil {
		return Report{}, err
	}
	if c.forms {
		if err := c.submitForms(ctx); err != nil {
			return Report{}, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]Result(nil), c.results...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Method != out[j].Method {
			return out[i].Method < out[j].Method
		}
		return out[i].Path < out[j].Path
	})
	return Report{Results: out}, nil
}

// sitemap returns the paths listed in /sitemap.xml. Locations are reduced
// to their path so a site configured with its public URL can be checked
// at any address.
func (c *Checker) sitemap(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve("/sitemap.xml"), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSitemap, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSitemap, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %w %d", ErrSitemap, ErrStatus, resp.StatusCode)
	}
	var set urlSet
	if err := xml.NewDecoder(io.LimitReader(resp.Body, maxPageBytes)).Decode(&set); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSitemap, err)
	}
	paths := make([]string, 0, len(set.URLs))
	for _, u := range set.URLs {
		loc, err := url.Parse(strings.TrimSpace(u.Loc))
		if err != nil {
			return nil, fmt.Errorf("%w: bad loc %q: %w", ErrSitemap, u.Loc, err)
		}
		p := loc.EscapedPath()
		if p == "" {
			p = "/"
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// fetchAll GETs every path not fetched before. With collect set, internal
// links found on HTML pages are returned.
func (c *Checker) fetchAll(ctx context.Context, paths []string, collect bool) ([]string, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	var (
		mu    sync.Mutex
		found = map[string]bool{}
	)
	for _, p := range paths {
		if !c.claim(http.MethodGet, p) {
			continue
		}
		g.Go(func() error {
			links, res := c.fetch(gctx, p, collect)
			c.record(res)
			mu.Lock()
			for _, l := range links {
				found[l] = true
			}
			mu.Unlock()
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(found))
	for l := range found {
		out = append(out, l)
	}
	sort.Strings(out)
	return out, nil
}

func (c *Checker) fetch(ctx context.Context, path string, collect bool) ([]string, Result) {
	res := Result{Method: http.MethodGet, Path: path}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(path), nil)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrFetch, err)
		return nil, res
	}
	resp, err := c.client.Do(req)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrFetch, err)
		return nil, res
	}
	defer resp.Body.Close()
	res.Status = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		res.Err = fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPageBytes))
		return nil, res
	}
	if !collect || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPageBytes))
		return nil, res
	}
	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		res.Err = fmt.Errorf("%w: parse %s: %w", ErrFetch, path, err)
		return nil, res
	}
	return c.links(doc), res
}

// links returns the internal targets of anchors, stylesheets, icons and
// scripts in doc, without fragments or queries.
func (c *Checker) links(doc *html.Node) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			var key string
			switch n.Data {
			case "a":
				key = "href"
			case "link":
				if rel := attr(n, "rel"); rel == "stylesheet" || strings.Contains(rel, "icon") {
					key = "href"
				}
			case "script", "img":
				key = "src"
			}
			if key != "" {
				if p, ok := c.internal(attr(n, key)); ok {
					out = append(out, p)
				}
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)
	return out
}

func (c *Checker) internal(ref string) (string, bool) {
	if ref == "" || strings.HasPrefix(ref, "#") {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host != "" && u.Host != c.base.Host {
		return "", false
	}
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if !strings.HasPrefix(p, "/") {
		return "", false
	}
	return p, true
}

func (c *Checker) resolve(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + path
	u.RawPath = ""
	return u.String()
}

func (c *Checker) claim(method, path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := method + " " + path
	if c.seen[key] {
		return false
	}
	c.seen[key] = true
	return true
}

func (c *Checker) record(res Result) {
	c.mu.Lock()
	c.results = append(c.results, res)
	c.mu.Unlock()
	if res.Err != nil {
		c.log.Warn(context.Background(), "check failed",
			logger.String("method", res.Method),
			logger.String("path", res.Path),
			logger.Int("status", res.Status),
			logger.Error(res.Err))
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
