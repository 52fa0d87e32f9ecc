package site

import (
	"encoding/xml"
	"fmt"
	"net/http"
)

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// publicPages are listed in the sitemap in this order.
var publicPages = []struct {
	path       string
	changeFreq string
	priority   string
}{
	{"/", "daily", "1.0"},
	{"/compatibility", "weekly", "0.8"},
	{"/moon-signs", "monthly", "0.8"},
	{"/zodiac", "monthly", "0.7"},
}

func (s *Site) handleSitemap(w http.ResponseWriter, _ *http.Request) {
	today := s.deps.Now().Format("2006-01-02")
	set := urlSet{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, p := range publicPages {
		set.URLs = append(set.URLs, sitemapURL{Loc: s.siteURL + p.path, LastMod: today, ChangeFreq: p.changeFreq, Priority: p.priority})
	}
	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(out)
}

func (s *Site) handleRobots(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "User-agent: *\nAllow: /\nDisallow: /api/\n\nSitemap: %s/sitemap.xml\n", s.siteURL)
}
