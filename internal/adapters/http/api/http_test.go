package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/meradin/internal/adapters/http/api"
	"github.com/okian/meradin/internal/adapters/upstream"
	"github.com/okian/meradin/internal/domain/birth"
	"github.com/okian/meradin/internal/domain/reading"
	"github.com/okian/meradin/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// mockDeps is an in-memory stand-in for the reading service.
type mockDeps struct {
	configured bool
	err        error
	calls      int
	lastA      birth.Person
}

func (m *mockDeps) Configured() bool { return m.configured }

func (m *mockDeps) Now() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }

func (m *mockDeps) Today(_ context.Context, p birth.Person) (reading.Today, error) {
	m.calls++
	if m.err != nil {
		return reading.Today{}, m.err
	}
	return reading.Today{Date: "2026-10-18", Name: p.Name, MoonSign: "Leo", AlignmentScore: 8, ContextLines: []string{"A steady day."}}, nil
}

func (m *mockDeps) Compatibility(_ context.Context, a, _ birth.Person) (reading.Compatibility, error) {
	m.calls++
	m.lastA = a
	if m.err != nil {
		return reading.Compatibility{}, m.err
	}
	return reading.Compatibility{Score: 64, SummaryLines: []string{"Warm."}}, nil
}

func (m *mockDeps) MoonSign(_ context.Context, _ birth.MoonQuery) (reading.MoonSign, error) {
	m.calls++
	if m.err != nil {
		return reading.MoonSign{}, m.err
	}
	return reading.MoonSign{MoonSign: "Pisces"}, nil
}

type mockStats struct{}

func (mockStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "cache_entries": 3}
}

type denyAll struct{}

func (denyAll) Require(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
}

type allowAll struct{ checks *int }

func (a allowAll) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*a.checks++
		next.ServeHTTP(w, r)
	})
}

func newMux(deps api.Dependencies, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, mockStats{}, opts...).Register(context.Background(), mux)
	return mux
}

func post(mux http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

type errBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

func decodeErr(rec *httptest.ResponseRecorder) errBody {
	var out errBody
	_ = json.NewDecoder(rec.Body).Decode(&out)
	return out
}

const validPerson = `{"name":"Asha","dob":"1990-05-14","tob":"06:30","place_of_birth":"Pune"}`

func TestOpsEndpoints(t *testing.T) {
	Convey("Given the API server", t, func() {
		mux := newMux(&mockDeps{configured: true})

		Convey("When GET /healthz", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			Convey("Then status ok is reported with the upstream flag", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				So(rec.Body.String(), ShouldContainSubstring, `"status":"ok"`)
				So(rec.Body.String(), ShouldContainSubstring, `"upstream_configured":true`)
			})
		})

		Convey("When GET /metrics", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Convey("Then the private registry is exposed", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "meradin_site_")
			})
		})

		Convey("When GET /stats", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

			Convey("Then service stats and metric totals are merged", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var stats map[string]interface{}
				So(json.NewDecoder(rec.Body).Decode(&stats), ShouldBeNil)
				So(stats["cache_entries"], ShouldEqual, 3.0)
				So(stats, ShouldContainKey, "metrics")
			})
		})
	})

	Convey("Given an authenticator", t, func() {
		mux := newMux(&mockDeps{}, api.WithAuthenticator(denyAll{}))

		Convey("Then /stats and /metrics are protected but /healthz is not", func() {
			for _, path := range []string{"/stats", "/metrics"} {
				rec := httptest.NewRecorder()
				mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
				So(rec.Code, ShouldEqual, http.StatusUnauthorized)
			}
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			So(rec.Code, ShouldEqual, http.StatusOK)
		})
	})

	Convey("Given an authenticator behind an ops limiter with a burst of one", t, func() {
		checks := 0
		mux := newMux(&mockDeps{},
			api.WithAuthenticator(allowAll{checks: &checks}),
			api.WithOpsLimiter(api.NewLimiter(0.001, 1)))

		Convey("When a client requests /stats twice", func() {
			first := httptest.NewRecorder()
			mux.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/stats", nil))
			second := httptest.NewRecorder()
			mux.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/stats", nil))

			Convey("Then the second is rejected before credentials are checked", func() {
				So(first.Code, ShouldEqual, http.StatusOK)
				So(second.Code, ShouldEqual, http.StatusTooManyRequests)
				So(second.Header().Get("Retry-After"), ShouldEqual, "1")
				So(decodeErr(second).Message, ShouldEqual, api.MsgRateLimited)
				So(checks, ShouldEqual, 1)
			})
		})

		Convey("Then /healthz is not limited", func() {
			for i := 0; i < 3; i++ {
				rec := httptest.NewRecorder()
				mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
				So(rec.Code, ShouldEqual, http.StatusOK)
			}
		})
	})
}

func TestTodayEndpoint(t *testing.T) {
	Convey("Given the today endpoint", t, func() {
		deps := &mockDeps{configured: true}
		mux := newMux(deps)

		Convey("When valid details are posted", func() {
			rec := post(mux, "/api/v1/today", validPerson)

			Convey("Then the reading is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var got reading.Today
				So(json.NewDecoder(rec.Body).Decode(&got), ShouldBeNil)
				So(got.AlignmentScore, ShouldEqual, 8.0)
				So(got.Name, ShouldEqual, "Asha")
			})
		})

		Convey("When a field is blank", func() {
			rec := post(mux, "/api/v1/today", `{"name":"Asha","dob":"1990-05-14","tob":"","place_of_birth":"Pune"}`)

			Convey("Then the single form message is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
				body := decodeErr(rec)
				So(body.Code, ShouldEqual, api.CodeValidationFailed)
				So(body.Message, ShouldEqual, birth.MsgAllRequired)
				So(deps.calls, ShouldEqual, 0)
			})
		})

		Convey("When the body is not JSON", func() {
			rec := post(mux, "/api/v1/today", `{"name":`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeErr(rec).Code, ShouldEqual, api.CodeInvalidRequest)
		})

		Convey("When the body has unknown fields", func() {
			rec := post(mux, "/api/v1/today", `{"name":"Asha","zodiac":"Leo"}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the scoring API fails with a detail", func() {
			deps.err = &upstream.APIError{Status: 400, Detail: "Unknown place"}
			rec := post(mux, "/api/v1/today", validPerson)

			Convey("Then the generic daily message hides the detail", func() {
				So(rec.Code, ShouldEqual, http.StatusBadGateway)
				So(decodeErr(rec).Message, ShouldEqual, upstream.MsgTodayFailed)
			})
		})

		Convey("When the scoring API is not configured", func() {
			deps.err = upstream.ErrNotConfigured
			rec := post(mux, "/api/v1/today", validPerson)
			So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(decodeErr(rec).Code, ShouldEqual, api.CodeNotConfigured)
		})

		Convey("When GET is used", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/today", nil))
			So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestCompatibilityEndpoint(t *testing.T) {
	Convey("Given the compatibility endpoint", t, func() {
		deps := &mockDeps{configured: true}
		mux := newMux(deps)

		Convey("When both people are valid", func() {
			rec := post(mux, "/api/v1/compatibility", `{"person_a":`+validPerson+`,"person_b":`+validPerson+`}`)

			Convey("Then the score is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, `"compatibility_score":64`)
				So(deps.lastA.Name, ShouldEqual, "Asha")
			})
		})

		Convey("When person B is incomplete", func() {
			rec := post(mux, "/api/v1/compatibility", `{"person_a":`+validPerson+`,"person_b":{"name":"Al","dob":"","tob":"06:30","place_of_birth":"Goa"}}`)

			Convey("Then errors are keyed by person and field", func() {
				So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
				body := decodeErr(rec)
				So(body.Message, ShouldEqual, api.MsgFixFields)
				So(body.Fields["person_b.name"], ShouldEqual, birth.MsgNameShort)
				So(body.Fields["person_b.dob"], ShouldEqual, birth.MsgDOBRequired)
				So(body.Fields, ShouldNotContainKey, "person_a.name")
				So(deps.calls, ShouldEqual, 0)
			})
		})

		Convey("When the scoring API returns a detail", func() {
			deps.err = &upstream.APIError{Status: 422, Detail: "Place not found"}
			rec := post(mux, "/api/v1/compatibility", `{"person_a":`+validPerson+`,"person_b":`+validPerson+`}`)

			Convey("Then the detail is surfaced", func() {
				So(rec.Code, ShouldEqual, http.StatusBadGateway)
				So(decodeErr(rec).Message, ShouldEqual, "Place not found")
			})
		})
	})
}

func TestMoonSignEndpoint(t *testing.T) {
	Convey("Given the moon sign endpoint", t, func() {
		deps := &mockDeps{configured: true}
		mux := newMux(deps)

		Convey("When the time is omitted", func() {
			rec := post(mux, "/api/v1/moon-sign", `{"dob":"1990-05-14","place_of_birth":"Pune"}`)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"moon_sign":"Pisces"`)
		})

		Convey("When the place is too short", func() {
			rec := post(mux, "/api/v1/moon-sign", `{"dob":"1990-05-14","place_of_birth":"Pu"}`)
			So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(decodeErr(rec).Fields["place_of_birth"], ShouldEqual, birth.MsgPlaceTooShort)
		})

		Convey("When the scoring API fails without detail", func() {
			deps.err = upstream.ErrRequest
			rec := post(mux, "/api/v1/moon-sign", `{"dob":"1990-05-14","place_of_birth":"Pune"}`)
			So(decodeErr(rec).Message, ShouldEqual, upstream.MsgMoonSignFailed)
		})
	})
}

func TestRateLimiting(t *testing.T) {
	Convey("Given a limiter with a burst of two", t, func() {
		deps := &mockDeps{configured: true}
		mux := newMux(deps, api.WithLimiter(api.NewLimiter(0.001, 2)))

		Convey("When a client posts three times", func() {
			first := post(mux, "/api/v1/today", validPerson)
			second := post(mux, "/api/v1/today", validPerson)
			third := post(mux, "/api/v1/today", validPerson)

			Convey("Then the third is rejected with the wait message", func() {
				So(first.Code, ShouldEqual, http.StatusOK)
				So(second.Code, ShouldEqual, http.StatusOK)
				So(third.Code, ShouldEqual, http.StatusTooManyRequests)
				So(decodeErr(third).Message, ShouldEqual, api.MsgRateLimited)
				So(deps.calls, ShouldEqual, 2)
			})
		})
	})

	Convey("Given a disabled limiter", t, func() {
		l := api.NewLimiter(0, 0)
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		for i := 0; i < 50; i++ {
			So(l.Allow(req), ShouldBeTrue)
		}
		So(l.Clients(), ShouldEqual, 0)
	})

	Convey("Given two clients", t, func() {
		l := api.NewLimiter(0.001, 1)
		a := httptest.NewRequest(http.MethodPost, "/", nil)
		a.RemoteAddr = "10.0.0.1:1234"
		b := httptest.NewRequest(http.MethodPost, "/", nil)
		b.RemoteAddr = "10.0.0.2:1234"

		Convey("Then each has its own bucket", func() {
			So(l.Allow(a), ShouldBeTrue)
			So(l.Allow(a), ShouldBeFalse)
			So(l.Allow(b), ShouldBeTrue)
			So(l.Clients(), ShouldEqual, 2)
		})
	})
}

func TestRequestLogger(t *testing.T) {
	Convey("Given the request logger", t, func() {
		var seen string
		h := api.RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = logger.RequestID(r.Context())
			w.WriteHeader(http.StatusTeapot)
		}))

		Convey("When no request id is sent", func() {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			Convey("Then a new one is generated and echoed", func() {
				So(seen, ShouldNotBeEmpty)
				So(rec.Header().Get(api.RequestIDHeader), ShouldEqual, seen)
				So(rec.Code, ShouldEqual, http.StatusTeapot)
			})
		})

		Convey("When a valid id is sent", func() {
			const id = "6f1c2a4e-8a4b-4d0c-9a57-1d2f3e4a5b6c"
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(api.RequestIDHeader, id)
			h.ServeHTTP(httptest.NewRecorder(), req)
			So(seen, ShouldEqual, id)
		})

		Convey("When a garbage id is sent", func() {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(api.RequestIDHeader, "<script>")
			h.ServeHTTP(httptest.NewRecorder(), req)
			So(seen, ShouldNotEqual, "<script>")
		})
	})
}
