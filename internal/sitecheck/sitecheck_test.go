package sitecheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/meradin/internal/adapters/http/site"
	"github.com/okian/meradin/internal/domain/birth"
	"github.com/okian/meradin/internal/domain/content"
	"github.com/okian/meradin/internal/domain/reading"
	"github.com/okian/meradin/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	goleak.VerifyTestMain(m)
}

const sitemapXML = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://public.example/</loc></url>
  <url><loc>https://public.example/about</loc></url>
</urlset>`

func brokenSite() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, sitemapXML)
	})
	page := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, body)
		}
	}
	mux.HandleFunc("GET /{$}", page(`<html><head><link rel="stylesheet" href="/static/site.css"></head>
<body><a href="/about#team">About</a> <a href="/gone">Gone</a> <a href="https://wa.me/?text=x">Share</a>
<a href="mailto:x@example.com">Mail</a> <a href="#top">Top</a></body></html>`))
	mux.HandleFunc("GET /about", page(`<html><body><a href="/">Home</a></body></html>`))
	mux.HandleFunc("GET /static/site.css", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		fmt.Fprint(w, "body{}")
	})
	return mux
}

type paths []string

func summarize(r Report) (ok, failed paths) {
	for _, res := range r.Results {
		key := res.Method + " " + res.Path
		if res.OK() {
			ok = append(ok, key)
		} else {
			failed = append(failed, key)
		}
	}
	return ok, failed
}

func TestChecker(t *testing.T) {
	Convey("Given a site with one broken link", t, func() {
		srv := httptest.NewServer(brokenSite())
		defer srv.Close()

		c, err := New(srv.URL+"/", WithWorkers(2))
		So(err, ShouldBeNil)

		Convey("When the crawl runs", func() {
			report, err := c.Run(context.Background())
			So(err, ShouldBeNil)
			ok, failed := summarize(report)

			Convey("Then sitemap pages and internal links are fetched once", func() {
				want := paths{"GET /", "GET /about", "GET /static/site.css"}
				So(cmp.Diff(want, ok), ShouldBeEmpty)
			})

			Convey("Then the broken link fails the report", func() {
				So(cmp.Diff(paths{"GET /gone"}, failed), ShouldBeEmpty)
				So(errors.Is(report.Failed()[0].Err, ErrStatus), ShouldBeTrue)
				So(report.Failed()[0].Status, ShouldEqual, http.StatusNotFound)
				So(errors.Is(report.Err(), ErrFailed), ShouldBeTrue)
			})
		})
	})

	Convey("Given a site without a sitemap", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		c, err := New(srv.URL)
		So(err, ShouldBeNil)

		Convey("Then the crawl cannot start", func() {
			_, err := c.Run(context.Background())
			So(errors.Is(err, ErrSitemap), ShouldBeTrue)
		})
	})

	Convey("Given bad base URLs", t, func() {
		for _, base := range []string{"", "localhost:8080", "ftp://example.com", "http://"} {
			_, err := New(base)
			So(errors.Is(err, ErrBaseURL), ShouldBeTrue)
		}
	})
}

type fakeReadings struct{}

func (fakeReadings) Now() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }

func (fakeReadings) Today(_ context.Context, p birth.Person) (reading.Today, error) {
	return reading.Today{Date: "2026-10-18", Name: p.Name, MoonSign: "Leo", AlignmentScore: 6}, nil
}

func (fakeReadings) Compatibility(context.Context, birth.Person, birth.Person) (reading.Compatibility, error) {
	return reading.Compatibility{Score: 80}, nil
}

func (fakeReadings) MoonSign(context.Context, birth.MoonQuery) (reading.MoonSign, error) {
	return reading.MoonSign{MoonSign: "Leo", Approximate: true}, nil
}

func TestCheckerAgainstSite(t *testing.T) {
	Convey("Given the real site configured with its public URL", t, func() {
		catalog, err := content.Load()
		So(err, ShouldBeNil)
		s, err := site.New(fakeReadings{}, catalog, site.WithSiteURL("https://meradinkaisajayega.online"))
		So(err, ShouldBeNil)
		mux := http.NewServeMux()
		s.Register(context.Background(), mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		c, err := New(srv.URL, WithForms(true))
		So(err, ShouldBeNil)

		Convey("When the crawl runs with form checks", func() {
			report, err := c.Run(context.Background())
			So(err, ShouldBeNil)
			_, failed := summarize(report)

			Convey("Then every page, asset and form passes", func() {
				So(failed, ShouldBeEmpty)
				So(report.Err(), ShouldBeNil)
				ok, _ := summarize(report)
				So(ok, ShouldContain, "GET /zodiac")
				So(ok, ShouldContain, "GET /static/site.css")
				So(ok, ShouldContain, "POST /compatibility")
				So(ok, ShouldContain, "POST /moon-signs")
			})
		})
	})
}
