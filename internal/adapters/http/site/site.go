// Package site renders the public pages and handles the HTML forms.
package site

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/meradin/internal/domain/birth"
	"github.com/okian/meradin/internal/domain/content"
	"github.com/okian/meradin/internal/domain/reading"
	"github.com/okian/meradin/internal/domain/share"
	"github.com/okian/meradin/pkg/logger"
)

// Error constants
var (
	ErrTemplates = errors.New("parse site templates failed")
	ErrRender    = errors.New("render page failed")
)

const defaultSiteURL = "https://meradinkaisajayega.online"

// Dependencies are the reading operations behind the forms.
type Dependencies interface {
	Now() time.Time
	Today(ctx context.Context, p birth.Person) (reading.Today, error)
	Compatibility(ctx context.Context, a, b birth.Person) (reading.Compatibility, error)
	MoonSign(ctx context.Context, q birth.MoonQuery) (reading.MoonSign, error)
}

// Limiter decides whether a form submission may proceed.
type Limiter interface {
	Allow(r *http.Request) bool
}

// Site holds the parsed templates and everything the handlers share.
type Site struct {
	deps    Dependencies
	catalog *content.Catalog
	pages   *renderer
	share   share.Builder
	limiter Limiter
	siteURL string
	log     logger.Logger
}

// Option applies a configuration option to the Site.
type Option func(*Site)

// WithSiteURL sets the absolute base URL used for canonical links and the
// sitemap.
func WithSiteURL(u string) Option {
	return func(s *Site) {
		if u != "" {
			s.siteURL = strings.TrimRight(u, "/")
		}
	}
}

// WithShareHost sets the host named in share messages.
func WithShareHost(host string) Option {
	return func(s *Site) {
		if host != "" {
			s.share = share.New(host)
		}
	}
}

// WithLimiter rate limits form submissions.
func WithLimiter(l Limiter) Option {
	return func(s *Site) {
		if l != nil {
			s.limiter = l
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Site) {
		if l != nil {
			s.log = l
		}
	}
}

// New parses the embedded templates. catalog must be a loaded content
// catalog.
func New(deps Dependencies, catalog *content.Catalog, opts ...Option) (*Site, error) {
	if deps == nil || catalog == nil {
		return nil, fmt.Errorf("%w: dependencies and catalog are required", ErrTemplates)
	}
	s := &Site{
		deps:    deps,
		catalog: catalog,
		siteURL: defaultSiteURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.share.Host == "" {
		s.share = share.New(strings.TrimPrefix(strings.TrimPrefix(s.siteURL, "https://"), "http://"))
	}
	if s.log == nil {
		s.log = logger.Named("site")
	}

	pages, err := newRenderer()
	if err != nil {
		return nil, err
	}
	s.pages = pages
	return s, nil
}

// Register attaches the site routes to mux.
func (s *Site) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.HandleFunc("GET /{$}", s.handleTodayForm)
	mux.HandleFunc("POST /{$}", s.handleTodaySubmit)
	mux.HandleFunc("GET /compatibility", s.handleCompatibilityForm)
	mux.HandleFunc("POST /compatibility", s.handleCompatibilitySubmit)
	mux.HandleFunc("GET /moon-signs", s.handleMoonSignsPage)
	mux.HandleFunc("POST /moon-signs", s.handleMoonSignSubmit)
	mux.HandleFunc("GET /zodiac", s.handleZodiacPage)

	mux.HandleFunc("GET /sitemap.xml", s.handleSitemap)
	mux.HandleFunc("GET /robots.txt", s.handleRobots)
	mux.Handle("GET /static/", http.StripPrefix("/static/", staticHandler()))
	mux.HandleFunc("GET /favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/static/favicon.svg", http.StatusMovedPermanently)
	})

	mux.HandleFunc("/", s.handleNotFound)
}
