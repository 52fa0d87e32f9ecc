// Package content holds the informational catalog behind the zodiac and
// moon-signs pages: sign profiles, element and modality groups, FAQs and
// Markdown prose. The catalog is embedded and decoded once at start.
package content

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// SignCount is the number of entries every sign list must hold.
const SignCount = 12

const summaryLines = 4

var (
	elements   = []string{"Fire", "Earth", "Air", "Water"}
	modalities = []string{"Cardinal", "Fixed", "Mutable"}
)

// Sign is one zodiac sign profile.
type Sign struct {
	Name      string `yaml:"name"`
	Degrees   string `yaml:"degrees"`
	Element   string `yaml:"element"`
	Modality  string `yaml:"modality"`
	Planet    string `yaml:"planet"`
	Theme     string `yaml:"theme"`
	Elemental string `yaml:"elemental"`
	Strength  string `yaml:"strength"`
	Shadow    string `yaml:"shadow"`
}

// Slug returns the lower-case anchor name of the sign.
func (s Sign) Slug() string { return slug(s.Name) }

// ElementGroup describes one of the four elements.
type ElementGroup struct {
	Element     string   `yaml:"element"`
	Description string   `yaml:"description"`
	Signs       []string `yaml:"signs"`
}

// ModalityGroup describes one of the three modalities.
type ModalityGroup struct {
	Modality    string   `yaml:"modality"`
	Description string   `yaml:"description"`
	Signs       []string `yaml:"signs"`
}

// MoonSign is the profile of the Moon placed in one sign.
type MoonSign struct {
	Name     string       `yaml:"name"`
	Summary  []string     `yaml:"summary"`
	Sections MoonSections `yaml:"sections"`
}

// Slug returns the lower-case anchor name of the placement.
func (m MoonSign) Slug() string { return slug(m.Name) }

// MoonSections are the expandable parts of a moon-sign profile.
type MoonSections struct {
	Emotional    string `yaml:"emotional"`
	Reaction     string `yaml:"reaction"`
	Comfort      string `yaml:"comfort"`
	Relationship string `yaml:"relationship"`
}

// FAQ is one question and answer.
type FAQ struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

// Link is an internal cross-link.
type Link struct {
	Href  string `yaml:"href"`
	Label string `yaml:"label"`
}

// Card is a titled paragraph with an optional link.
type Card struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
	Link  *Link  `yaml:"link"`
}

// Catalog is the decoded content.
type Catalog struct {
	Prose           map[string]string `yaml:"prose"`
	ZodiacSigns     []Sign            `yaml:"zodiac_signs"`
	ElementGroups   []ElementGroup    `yaml:"element_groups"`
	ModalityGroups  []ModalityGroup   `yaml:"modality_groups"`
	Placements      []Card            `yaml:"placements"`
	ZodiacFAQ       []FAQ             `yaml:"zodiac_faq"`
	ZodiacFAQSchema []FAQ             `yaml:"zodiac_faq_schema"`
	MoonSigns       []MoonSign        `yaml:"moon_signs"`
	MoonConnections []Card            `yaml:"moon_connections"`
	MoonFAQ         []FAQ             `yaml:"moon_faq"`
	MoonFAQSchema   []FAQ             `yaml:"moon_faq_schema"`

	html map[string]template.HTML
}

// Load decodes and validates the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(catalogYAML)
}

// Parse decodes data, fills derived group members, validates the result
// and renders the prose blocks.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	c.deriveGroups()
	if err := c.validate(); err != nil {
		return nil, err
	}
	if err := c.render(); err != nil {
		return nil, err
	}
	return &c, nil
}

// HTML returns the rendered prose block named key, or "" when absent.
func (c *Catalog) HTML(key string) template.HTML {
	return c.html[key]
}

// MoonSign returns the profile for name, matched case-insensitively.
func (c *Catalog) MoonSign(name string) (MoonSign, bool) {
	for _, m := range c.MoonSigns {
		if strings.EqualFold(m.Name, strings.TrimSpace(name)) {
			return m, true
		}
	}
	return MoonSign{}, false
}

// Sign returns the zodiac profile for name, matched case-insensitively.
func (c *Catalog) Sign(name string) (Sign, bool) {
	for _, s := range c.ZodiacSigns {
		if strings.EqualFold(s.Name, strings.TrimSpace(name)) {
			return s, true
		}
	}
	return Sign{}, false
}

func (c *Catalog) deriveGroups() {
	for i, g := range c.ElementGroups {
		if len(g.Signs) > 0 {
			continue
		}
		for _, s := range c.ZodiacSigns {
			if s.Element == g.Element {
				c.ElementGroups[i].Signs = append(c.ElementGroups[i].Signs, s.Name)
			}
		}
	}
	for i, g := range c.ModalityGroups {
		if len(g.Signs) > 0 {
			continue
		}
		for _, s := range c.ZodiacSigns {
			if s.Modality == g.Modality {
				c.ModalityGroups[i].Signs = append(c.ModalityGroups[i].Signs, s.Name)
			}
		}
	}
}

func (c *Catalog) validate() error {
	if len(c.ZodiacSigns) != SignCount {
		return fmt.Errorf("%w: %d zodiac signs, want %d", ErrInvalidCatalog, len(c.ZodiacSigns), SignCount)
	}
	if len(c.MoonSigns) != SignCount {
		return fmt.Errorf("%w: %d moon signs, want %d", ErrInvalidCatalog, len(c.MoonSigns), SignCount)
	}
	seen := make(map[string]bool, SignCount)
	for _, s := range c.ZodiacSigns {
		if seen[s.Name] {
			return fmt.Errorf("%w: duplicate zodiac sign %q", ErrInvalidCatalog, s.Name)
		}
		seen[s.Name] = true
		if !slices.Contains(elements, s.Element) {
			return fmt.Errorf("%w: %s has unknown element %q", ErrInvalidCatalog, s.Name, s.Element)
		}
		if !slices.Contains(modalities, s.Modality) {
			return fmt.Errorf("%w: %s has unknown modality %q", ErrInvalidCatalog, s.Name, s.Modality)
		}
	}
	moon := make(map[string]bool, SignCount)
	for _, m := range c.MoonSigns {
		if moon[m.Name] {
			return fmt.Errorf("%w: duplicate moon sign %q", ErrInvalidCatalog, m.Name)
		}
		if !seen[m.Name] {
			return fmt.Errorf("%w: moon sign %q is not a zodiac sign", ErrInvalidCatalog, m.Name)
		}
		if len(m.Summary) != summaryLines {
			return fmt.Errorf("%w: moon sign %q has %d summary lines, want %d", ErrInvalidCatalog, m.Name, len(m.Summary), summaryLines)
		}
		moon[m.Name] = true
	}
	for _, g := range c.ElementGroups {
		if !slices.Contains(elements, g.Element) {
			return fmt.Errorf("%w: unknown element group %q", ErrInvalidCatalog, g.Element)
		}
		if err := knownSigns(seen, g.Signs); err != nil {
			return err
		}
	}
	for _, g := range c.ModalityGroups {
		if !slices.Contains(modalities, g.Modality) {
			return fmt.Errorf("%w: unknown modality group %q", ErrInvalidCatalog, g.Modality)
		}
		if err := knownSigns(seen, g.Signs); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) render() error {
	md := goldmark.New()
	c.html = make(map[string]template.HTML, len(c.Prose))
	for key, src := range c.Prose {
		var buf bytes.Buffer
		if err := md.Convert([]byte(src), &buf); err != nil {
			return fmt.Errorf("%w: prose %s: %w", ErrRender, key, err)
		}
		// Raw HTML is omitted unless goldmark runs with WithUnsafe.
		c.html[key] = template.HTML(buf.String()) //nolint:gosec // catalog is embedded
	}
	return nil
}

func knownSigns(known map[string]bool, names []string) error {
	for _, n := range names {
		if !known[n] {
			return fmt.Errorf("%w: group lists unknown sign %q", ErrInvalidCatalog, n)
		}
	}
	return nil
}

func slug(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "-"))
}
