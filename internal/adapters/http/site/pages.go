package site

import (
	"errors"
	"net/http"
	"time"

	"github.com/okian/meradin/internal/adapters/upstream"
	"github.com/okian/meradin/internal/domain/birth"
	"github.com/okian/meradin/internal/domain/content"
	"github.com/okian/meradin/internal/domain/share"
	"github.com/okian/meradin/internal/domain/stars"
	"github.com/okian/meradin/pkg/logger"
	"github.com/okian/meradin/pkg/metrics"
)

const (
	siteName = "Mera Din Kaisa Jayega"

	// resultDateLayout is how reading dates are shown.
	resultDateLayout = "Monday, January 2, 2006"

	maxFormBytes = 16 << 10

	msgRateLimited = "Too many requests. Please wait a moment and try again."
	msgBadForm     = "We could not read the form. Please try again."
)

// Submission outcomes recorded in form metrics.
const (
	outcomeOK            = "ok"
	outcomeInvalid       = "invalid"
	outcomeUpstreamError = "upstream_error"
	outcomeRateLimited   = "rate_limited"
)

var (
	metaToday = Meta{
		Title:       siteName,
		Description: "Discover how your day will be",
		Path:        "/",
	}
	metaCompatibility = Meta{
		Title:              "Compatibility Finder | Emotional Alignment Score",
		Description:        "Compare Moon sign placements for two people and receive a compatibility score based on their birth details. Enter date, time, and place of birth.",
		Keywords:           "astrology compatibility, moon sign compatibility, birth chart comparison, relationship alignment, compatibility score",
		Path:               "/compatibility",
		TwitterDescription: "Compare Moon sign placements for two people and receive a compatibility score based on their birth details.",
	}
	metaMoonSigns = Meta{
		Title:              "Moon Signs Explained | Emotional Astrology Guide",
		Description:        "Find your Moon sign and explore all 12 placements — emotional patterns, reaction styles, and relationship tone. Free Moon sign calculator included.",
		Keywords:           "moon sign, moon sign calculator, moon in aries, moon sign guide, emotional astrology, birth chart moon, mera din",
		Path:               "/moon-signs",
		TwitterDescription: "Find your Moon sign and explore all 12 placements — emotional patterns, reaction styles, and relationship tone.",
	}
	metaZodiac = Meta{
		Title:       "Zodiac Overview | 12 Signs, Elements & Modalities",
		Description: "A structured reference for the 12-sign zodiac — elements, modalities, tropical vs sidereal systems, and how sign placements underpin alignment and compatibility.",
		Keywords:    "zodiac signs, 12 zodiac signs, zodiac elements, zodiac modalities, tropical zodiac, sidereal zodiac, aries to pisces, zodiac overview",
		Path:        "/zodiac",
	}
	metaNotFound = Meta{
		Title:       "Page not found | " + siteName,
		Description: "The page you are looking for does not exist.",
	}
)

type todayView struct {
	Form   birth.Person
	Error  string
	Result *todayResult
}

type todayResult struct {
	Date     string
	Name     string
	MoonSign string
	Score    string
	Stars    stars.Widget
	Lines    []string
	ShareURL string
}

type compatibilityView struct {
	A, B             birth.Person
	ErrorsA, ErrorsB birth.FieldErrors
	Error            string
	Result           *compatibilityResult
}

// Ready reports whether both people are filled in enough to submit; the
// submit button is styled as muted until then.
func (v compatibilityView) Ready() bool {
	return birth.IsPersonComplete(v.A) && birth.IsPersonComplete(v.B)
}

type compatibilityResult struct {
	NameA, NameB string
	Score        string
	Stars        stars.Widget
	Lines        []string
	ShareURL     string
}

type moonView struct {
	Form   birth.MoonQuery
	Errors birth.FieldErrors
	Error  string
	Result *moonResult
}

type moonResult struct {
	Sign        string
	Approximate bool
	Profile     *content.MoonSign
	Zodiac      *content.Sign
}

func (s *Site) handleTodayForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pageToday, s.data(metaToday, todayView{}))
}

func (s *Site) handleTodaySubmit(w http.ResponseWriter, r *http.Request) {
	const form = upstream.EndpointToday
	view := todayView{}
	if err := parseForm(w, r); err != nil {
		view.Error = msgBadForm
		s.formDone(form, outcomeInvalid)
		s.render(w, r, http.StatusBadRequest, pageToday, s.data(metaToday, view))
		return
	}
	view.Form = personFrom(r, "")

	if !s.admit(r, form) {
		view.Error = msgRateLimited
		s.render(w, r, http.StatusTooManyRequests, pageToday, s.data(metaToday, view))
		return
	}
	if err := birth.ValidateToday(view.Form, s.deps.Now()); err != nil {
		view.Error = err.Error()
		metrics.RecordValidationError(form, "form")
		s.formDone(form, outcomeInvalid)
		s.render(w, r, http.StatusUnprocessableEntity, pageToday, s.data(metaToday, view))
		return
	}

	res, err := s.deps.Today(r.Context(), view.Form)
	if err != nil {
		s.upstreamFailed(r, form, err)
		view.Error = upstream.MsgTodayFailed
		s.render(w, r, http.StatusBadGateway, pageToday, s.data(metaToday, view))
		return
	}

	s.formDone(form, outcomeOK)
	metrics.RecordShareLink(form)
	view.Result = &todayResult{
		Date:     displayDate(res.Date),
		Name:     res.Name,
		MoonSign: res.MoonSign,
		Score:    stars.FormatScore(res.AlignmentScore),
		Stars:    stars.Alignment("alignment", res.AlignmentScore),
		Lines:    res.ContextLines,
		ShareURL: share.WhatsAppURL(s.share.TodayMessage(res)),
	}
	s.render(w, r, http.StatusOK, pageToday, s.data(metaToday, view))
}

func (s *Site) handleCompatibilityForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pageCompatibility, s.data(metaCompatibility, compatibilityView{}))
}

func (s *Site) handleCompatibilitySubmit(w http.ResponseWriter, r *http.Request) {
	const form = upstream.EndpointCompatibility
	view := compatibilityView{}
	if err := parseForm(w, r); err != nil {
		view.Error = msgBadForm
		s.formDone(form, outcomeInvalid)
		s.render(w, r, http.StatusBadRequest, pageCompatibility, s.data(metaCompatibility, view))
		return
	}
	view.A, view.B = personFrom(r, "a_"), personFrom(r, "b_")

	if !s.admit(r, form) {
		view.Error = msgRateLimited
		s.render(w, r, http.StatusTooManyRequests, pageCompatibility, s.data(metaCompatibility, view))
		return
	}
	now := s.deps.Now()
	view.ErrorsA, view.ErrorsB = birth.ValidatePerson(view.A, now), birth.ValidatePerson(view.B, now)
	if len(view.ErrorsA) > 0 || len(view.ErrorsB) > 0 {
		for _, errs := range []birth.FieldErrors{view.ErrorsA, view.ErrorsB} {
			for f := range errs {
				metrics.RecordValidationError(form, string(f))
			}
		}
		s.formDone(form, outcomeInvalid)
		s.render(w, r, http.StatusUnprocessableEntity, pageCompatibility, s.data(metaCompatibility, view))
		return
	}

	res, err := s.deps.Compatibility(r.Context(), view.A, view.B)
	if err != nil {
		s.upstreamFailed(r, form, err)
		view.Error = upstream.UserMessage(err, upstream.MsgCompatibilityFailed)
		s.render(w, r, http.StatusBadGateway, pageCompatibility, s.data(metaCompatibility, view))
		return
	}

	s.formDone(form, outcomeOK)
	metrics.RecordShareLink(form)
	a, b := birth.Normalize(view.A), birth.Normalize(view.B)
	view.Result = &compatibilityResult{
		NameA:    a.Name,
		NameB:    b.Name,
		Score:    stars.FormatScore(res.Score),
		Stars:    stars.Compatibility("compat", res.Score),
		Lines:    res.SummaryLines,
		ShareURL: share.WhatsAppURL(s.share.CompatibilityMessage(a.Name, b.Name, res)),
	}
	s.render(w, r, http.StatusOK, pageCompatibility, s.data(metaCompatibility, view))
}

func (s *Site) moonData(view moonView) pageData {
	d := s.data(metaMoonSigns, view)
	d.JSONLD = faqJSONLD(s.catalog.MoonFAQSchema)
	return d
}

func (s *Site) handleMoonSignsPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pageMoonSigns, s.moonData(moonView{}))
}

func (s *Site) handleMoonSignSubmit(w http.ResponseWriter, r *http.Request) {
	const form = upstream.EndpointMoonSign
	view := moonView{}
	if err := parseForm(w, r); err != nil {
		view.Error = msgBadForm
		s.formDone(form, outcomeInvalid)
		s.render(w, r, http.StatusBadRequest, pageMoonSigns, s.moonData(view))
		return
	}
	view.Form = birth.MoonQuery{
		DOB:          r.PostFormValue("dob"),
		TOB:          r.PostFormValue("tob"),
		PlaceOfBirth: r.PostFormValue("place_of_birth"),
	}

	if !s.admit(r, form) {
		view.Error = msgRateLimited
		s.render(w, r, http.StatusTooManyRequests, pageMoonSigns, s.moonData(view))
		return
	}
	if errs := birth.ValidateMoonQuery(view.Form, s.deps.Now()); len(errs) > 0 {
		view.Errors = errs
		for f := range errs {
			metrics.RecordValidationError(form, string(f))
		}
		s.formDone(form, outcomeInvalid)
		s.render(w, r, http.StatusUnprocessableEntity, pageMoonSigns, s.moonData(view))
		return
	}

	res, err := s.deps.MoonSign(r.Context(), view.Form)
	if err != nil {
		s.upstreamFailed(r, form, err)
		view.Error = upstream.UserMessage(err, upstream.MsgMoonSignFailed)
		s.render(w, r, http.StatusBadGateway, pageMoonSigns, s.moonData(view))
		return
	}

	s.formDone(form, outcomeOK)
	view.Result = &moonResult{Sign: res.MoonSign, Approximate: res.Approximate}
	if profile, ok := s.catalog.MoonSign(res.MoonSign); ok {
		view.Result.Profile = &profile
	}
	if sign, ok := s.catalog.Sign(res.MoonSign); ok {
		view.Result.Zodiac = &sign
	}
	s.render(w, r, http.StatusOK, pageMoonSigns, s.moonData(view))
}

func (s *Site) handleZodiacPage(w http.ResponseWriter, r *http.Request) {
	d := s.data(metaZodiac, nil)
	d.JSONLD = faqJSONLD(s.catalog.ZodiacFAQSchema)
	s.render(w, r, http.StatusOK, pageZodiac, d)
}

func (s *Site) handleNotFound(w http.ResponseWriter, r *http.Request) {
	meta := metaNotFound
	meta.Path = r.URL.Path
	s.render(w, r, http.StatusNotFound, pageNotFound, s.data(meta, nil))
}

func (s *Site) admit(r *http.Request, form string) bool {
	if s.limiter == nil || s.limiter.Allow(r) {
		return true
	}
	metrics.RecordRateLimited(r.URL.Path)
	s.formDone(form, outcomeRateLimited)
	return false
}

func (s *Site) formDone(form, outcome string) {
	metrics.RecordFormSubmission(form, outcome)
}

func (s *Site) upstreamFailed(r *http.Request, form string, err error) {
	s.formDone(form, outcomeUpstreamError)
	var apiErr *upstream.APIError
	fields := []logger.Field{logger.String("form", form), logger.Error(err)}
	if errors.As(err, &apiErr) {
		fields = append(fields, logger.Int("status", apiErr.Status))
	}
	s.log.Warn(r.Context(), "reading failed", fields...)
}

func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	return r.ParseForm()
}

func personFrom(r *http.Request, prefix string) birth.Person {
	return birth.Person{
		Name:         r.PostFormValue(prefix + "name"),
		DOB:          r.PostFormValue(prefix + "dob"),
		TOB:          r.PostFormValue(prefix + "tob"),
		PlaceOfBirth: r.PostFormValue(prefix + "place_of_birth"),
	}
}

// displayDate formats an API date ("2006-01-02") for reading. Unparseable
// values are shown as received.
func displayDate(raw string) string {
	d, err := time.Parse(birth.DateLayout, raw)
	if err != nil {
		return raw
	}
	return d.Format(resultDateLayout)
}
