package site

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/okian/meradin/internal/domain/birth"
	"github.com/okian/meradin/internal/domain/content"
	"github.com/okian/meradin/internal/domain/stars"
	"github.com/okian/meradin/pkg/logger"
	"github.com/okian/meradin/pkg/metrics"
)

// Page template names; each maps to templates/<name>.html.
const (
	pageToday         = "today"
	pageCompatibility = "compatibility"
	pageMoonSigns     = "moon_signs"
	pageZodiac        = "zodiac"
	pageNotFound      = "not_found"
)

var pageNames = []string{pageToday, pageCompatibility, pageMoonSigns, pageZodiac, pageNotFound}

// personForm is the value of the "person" template.
type personForm struct {
	Label   string
	Prefix  string
	Person  birth.Person
	Errors  birth.FieldErrors
	MaxDate string
}

func newPersonForm(label, prefix string, p birth.Person, errs birth.FieldErrors, maxDate string) personForm {
	return personForm{Label: label, Prefix: prefix, Person: p, Errors: errs, MaxDate: maxDate}
}

type renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"join":       strings.Join,
	"personForm": newPersonForm,
	"starPath":   func() string { return stars.Path },
	"starFill":   starFill,
}

// starFill returns the SVG fill for one star; half stars point at their
// gradient.
func starFill(s stars.Star) string {
	switch s.Fill {
	case stars.Full:
		return "#92400e"
	case stars.Half:
		return "url(#" + s.GradientID + ")"
	default:
		return "#d6d3d1"
	}
}

func newRenderer() (*renderer, error) {
	tfs, err := fs.Sub(embedded, "templates")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplates, err)
	}
	base, err := template.New("site").Funcs(funcs).ParseFS(tfs, "layout.html", "partials.html")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplates, err)
	}
	r := &renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.Must(base.Clone()).ParseFS(tfs, name+".html")
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrTemplates, name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Meta is the per-page head metadata.
type Meta struct {
	Title              string
	Description        string
	Keywords           string
	Path               string
	TwitterDescription string
}

type navItem struct {
	Label      string
	Href       string
	ComingSoon bool
}

var navItems = []navItem{
	{Label: "Today's Alignment", Href: "/"},
	{Label: "Compatibility Finder", Href: "/compatibility"},
	{Label: "Moon Signs Guide", Href: "/moon-signs"},
	{Label: "Zodiac Overview", Href: "/zodiac"},
	{Label: "Weekly Outlook", Href: "/weekly", ComingSoon: true},
}

// pageData is the value every page template receives.
type pageData struct {
	Meta      Meta
	SiteName  string
	SiteURL   string
	Canonical string
	OGImage   string
	Nav       []navItem
	JSONLD    template.JS
	Catalog   *content.Catalog
	MaxDate   string
	Body      any
}

func (s *Site) data(meta Meta, body any) pageData {
	d := pageData{
		Meta:      meta,
		SiteName:  siteName,
		SiteURL:   s.siteURL,
		Canonical: s.siteURL + meta.Path,
		OGImage:   s.siteURL + "/static/og-image.png",
		Nav:       navItems,
		Catalog:   s.catalog,
		MaxDate:   s.deps.Now().Format("2006-01-02"),
		Body:      body,
	}
	if meta.Path == "/" {
		d.Canonical = s.siteURL
	}
	return d
}

// render buffers the page and only then writes status and body.
func (s *Site) render(w http.ResponseWriter, r *http.Request, status int, page string, d pageData) {
	t, ok := s.pages.pages[page]
	if !ok {
		s.log.Error(r.Context(), "unknown page", logger.String("page", page))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", d); err != nil {
		s.log.Error(r.Context(), "render failed", logger.String("page", page), logger.Error(fmt.Errorf("%w: %w", ErrRender, err)))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if r.Method == http.MethodGet && status == http.StatusOK {
		metrics.RecordPageView(page)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type faqSchema struct {
	Context    string        `json:"@context"`
	Type       string        `json:"@type"`
	MainEntity []faqQuestion `json:"mainEntity"`
}

type faqQuestion struct {
	Type           string    `json:"@type"`
	Name           string    `json:"name"`
	AcceptedAnswer faqAnswer `json:"acceptedAnswer"`
}

type faqAnswer struct {
	Type string `json:"@type"`
	Text string `json:"text"`
}

// faqJSONLD builds a schema.org FAQPage document. json.Marshal escapes
// '<' and '>' so the result is safe inside a script element.
func faqJSONLD(items []content.FAQ) template.JS {
	doc := faqSchema{Context: "https://schema.org", Type: "FAQPage"}
	for _, it := range items {
		doc.MainEntity = append(doc.MainEntity, faqQuestion{
			Type:           "Question",
			Name:           it.Question,
			AcceptedAnswer: faqAnswer{Type: "Answer", Text: it.Answer},
		})
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return ""
	}
	return template.JS(b) //nolint:gosec // marshalled JSON, HTML-escaped by encoding/json
}
