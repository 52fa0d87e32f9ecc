package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/meradin/internal/adapters/upstream"
	"github.com/okian/meradin/internal/domain/birth"
	"github.com/okian/meradin/pkg/logger"
	"github.com/okian/meradin/pkg/metrics"
)

const (
	maxBodyBytes = 16 << 10

	// MsgFixFields accompanies per-field validation errors.
	MsgFixFields = "Please correct the highlighted fields."
)

// Submission outcomes recorded in form metrics.
const (
	OutcomeOK            = "ok"
	OutcomeInvalid       = "invalid"
	OutcomeUpstreamError = "upstream_error"
	OutcomeRateLimited   = "rate_limited"
)

// ReadingHandler serves the JSON versions of the three reading forms.
type ReadingHandler struct {
	deps    Dependencies
	limiter *Limiter
	log     logger.Logger
}

// NewReadingHandler creates a new reading handler.
func NewReadingHandler(deps Dependencies) *ReadingHandler {
	return &ReadingHandler{deps: deps, log: logger.Named("api")}
}

type compatibilityRequest struct {
	PersonA birth.Person `json:"person_a"`
	PersonB birth.Person `json:"person_b"`
}

// HandleToday handles POST /api/v1/today.
func (h *ReadingHandler) HandleToday(w http.ResponseWriter, r *http.Request) {
	const form = upstream.EndpointToday
	if !h.admit(w, r, form) {
		return
	}
	var p birth.Person
	if !h.decode(w, r, form, &p) {
		return
	}
	if err := birth.ValidateToday(p, h.deps.Now()); err != nil {
		metrics.RecordFormSubmission(form, OutcomeInvalid)
		metrics.RecordValidationError(form, "form")
		writeError(w, http.StatusUnprocessableEntity, CodeValidationFailed, err)
		return
	}
	res, err := h.deps.Today(r.Context(), p)
	if err != nil {
		// The daily form never surfaces the server's detail.
		h.upstreamFailed(w, r, form, err, upstream.MsgTodayFailed)
		return
	}
	metrics.RecordFormSubmission(form, OutcomeOK)
	writeJSON(w, http.StatusOK, res)
}

// HandleCompatibility handles POST /api/v1/compatibility.
func (h *ReadingHandler) HandleCompatibility(w http.ResponseWriter, r *http.Request) {
	const form = upstream.EndpointCompatibility
	if !h.admit(w, r, form) {
		return
	}
	var req compatibilityRequest
	if !h.decode(w, r, form, &req) {
		return
	}
	now := h.deps.Now()
	fields := birth.FieldErrors{}
	for prefix, p := range map[string]birth.Person{"person_a": req.PersonA, "person_b": req.PersonB} {
		for f, msg := range birth.ValidatePerson(p, now) {
			fields[birth.Field(prefix+"."+string(f))] = msg
			metrics.RecordValidationError(form, string(f))
		}
	}
	if len(fields) > 0 {
		metrics.RecordFormSubmission(form, OutcomeInvalid)
		writeFieldErrors(w, MsgFixFields, fields)
		return
	}
	res, err := h.deps.Compatibility(r.Context(), req.PersonA, req.PersonB)
	if err != nil {
		h.upstreamFailed(w, r, form, err, upstream.UserMessage(err, upstream.MsgCompatibilityFailed))
		return
	}
	metrics.RecordFormSubmission(form, OutcomeOK)
	writeJSON(w, http.StatusOK, res)
}

// HandleMoonSign handles POST /api/v1/moon-sign.
func (h *ReadingHandler) HandleMoonSign(w http.ResponseWriter, r *http.Request) {
	const form = upstream.EndpointMoonSign
	if !h.admit(w, r, form) {
		return
	}
	var q birth.MoonQuery
	if !h.decode(w, r, form, &q) {
		return
	}
	if fields := birth.ValidateMoonQuery(q, h.deps.Now()); len(fields) > 0 {
		for f := range fields {
			metrics.RecordValidationError(form, string(f))
		}
		metrics.RecordFormSubmission(form, OutcomeInvalid)
		writeFieldErrors(w, MsgFixFields, fields)
		return
	}
	res, err := h.deps.MoonSign(r.Context(), q)
	if err != nil {
		h.upstreamFailed(w, r, form, err, upstream.UserMessage(err, upstream.MsgMoonSignFailed))
		return
	}
	metrics.RecordFormSubmission(form, OutcomeOK)
	writeJSON(w, http.StatusOK, res)
}

func (h *ReadingHandler) admit(w http.ResponseWriter, r *http.Request, form string) bool {
	if h.limiter.Allow(r) {
		return true
	}
	metrics.RecordRateLimited(r.URL.Path)
	metrics.RecordFormSubmission(form, OutcomeRateLimited)
	w.Header().Set("Retry-After", "1")
	writeError(w, http.StatusTooManyRequests, CodeRateLimited, errors.New(MsgRateLimited))
	return false
}

func (h *ReadingHandler) decode(w http.ResponseWriter, r *http.Request, form string, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		metrics.RecordFormSubmission(form, OutcomeInvalid)
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return false
	}
	return true
}

func (h *ReadingHandler) upstreamFailed(w http.ResponseWriter, r *http.Request, form string, err error, msg string) {
	metrics.RecordFormSubmission(form, OutcomeUpstreamError)
	h.log.Warn(r.Context(), "reading failed", logger.String("form", form), logger.Error(err))

	status, code := http.StatusBadGateway, CodeUpstreamFailed
	if errors.Is(err, upstream.ErrNotConfigured) {
		status, code = http.StatusServiceUnavailable, CodeNotConfigured
	}
	writeError(w, status, code, errors.New(msg))
}
