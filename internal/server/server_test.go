package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gramin-sahayak/sahayak-go/internal/assist"
)

// fakeService is an answerer with canned responses.
type fakeService struct {
	answer    assist.Answer
	answerErr error
	status    assist.Status
}

func (f *fakeService) AnswerQuestion(_ context.Context, question, language string, _ bool) (assist.Answer, error) {
	if f.answerErr != nil {
		return assist.Answer{}, f.answerErr
	}
	return f.answer, nil
}

func (f *fakeService) ExplainScheme(_ context.Context, name string) (string, error) {
	return "योजना: " + name, nil
}

func (f *fakeService) ExplainTerm(_ context.Context, term string) (string, error) {
	return "शब्द: " + term, nil
}

func (f *fakeService) Status() assist.Status { return f.status }

// newTestServer builds a Server with a fresh registry and no listener.
func newTestServer(t *testing.T, svc answerer, mutate func(*Config)) *Server {
	t.Helper()
	cfg := &Config{RateLimit: 1000, RateBurst: 1000}
	if mutate != nil {
		mutate(cfg)
	}
	s, err := New(svc, cfg, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(s.stopRL)
	return s
}

func TestHandleAsk(t *testing.T) {
	t.Parallel()

	svc := &fakeService{answer: assist.Answer{
		Answer:     "मुद्रा योजना लोन देती है।\n\n📚 स्रोत: schemes.pdf",
		Sources:    []string{"schemes.pdf"},
		Confidence: 0.78,
	}}
	s := newTestServer(t, svc, nil)

	body := `{"question":"मुद्रा योजना क्या है?","language":"hindi"}`
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var got assist.Answer
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Confidence != 0.78 {
		t.Errorf("confidence = %v", got.Confidence)
	}
	if len(got.Sources) != 1 || got.Sources[0] != "schemes.pdf" {
		t.Errorf("sources = %v", got.Sources)
	}
}

func TestHandleAskValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeService{}, nil)

	cases := []struct {
		name string
		body string
	}{
		{"empty question", `{"question":"  "}`},
		{"invalid json", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandleAskInternalError(t *testing.T) {
	t.Parallel()

	svc := &fakeService{answerErr: errors.New("boom")}
	s := newTestServer(t, svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"q"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHandleExplainEndpoints(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeService{}, nil)

	cases := []struct {
		path, body, want string
	}{
		{"/api/explain-scheme", `{"scheme_name":"मुद्रा योजना"}`, "योजना: मुद्रा योजना"},
		{"/api/explain-term", `{"term":"ब्याज"}`, "शब्द: ब्याज"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body))
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", tc.path, rec.Code)
		}
		var got explanationResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if got.Explanation != tc.want {
			t.Errorf("%s explanation = %q, want %q", tc.path, got.Explanation, tc.want)
		}
	}

	// Missing fields are rejected.
	req := httptest.NewRequest(http.MethodPost, "/api/explain-scheme", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty scheme_name status = %d, want 400", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	t.Parallel()

	svc := &fakeService{status: assist.Status{
		RAGStatus:      "indexed",
		LLMAvailable:   true,
		TotalDocuments: 42,
		ServiceHealthy: true,
	}}
	s := newTestServer(t, svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got assist.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.TotalDocuments != 42 || !got.ServiceHealthy {
		t.Errorf("status = %+v", got)
	}
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeService{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestAuthRequired(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeService{}, func(c *Config) { c.APIKey = "secret" })

	// No token: 401.
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"q"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); !strings.Contains(got, "Bearer") {
		t.Errorf("WWW-Authenticate = %q", got)
	}

	// Wrong token: 401.
	req = httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"q"}`))
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d, want 401", rec.Code)
	}

	// Correct token: 200.
	req = httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"q"}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token status = %d, want 200", rec.Code)
	}

	// Health endpoint stays open.
	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200 without auth", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeService{}, func(c *Config) {
		c.RateLimit = 1
		c.RateBurst = 2
	})

	var rejected bool
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"q"}`))
		req.RemoteAddr = "10.1.2.3:5555"
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			rejected = true
			if got := rec.Header().Get("Retry-After"); got != "1" {
				t.Errorf("Retry-After = %q", got)
			}
		}
	}
	if !rejected {
		t.Error("expected at least one 429 after exceeding the burst")
	}

	// A different IP gets its own bucket.
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"q"}`))
	req.RemoteAddr = "10.9.9.9:5555"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("fresh IP status = %d, want 200", rec.Code)
	}
}

// stubPinger is a Pinger with a fixed result.
type stubPinger struct {
	name string
	err  error
}

func (p *stubPinger) Ping(context.Context) error { return p.err }
func (p *stubPinger) Name() string               { return p.name }

func TestHandleReady(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeService{}, func(c *Config) {
		c.Pingers = []Pinger{
			&stubPinger{name: "encoder"},
			&stubPinger{name: "groq"},
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got readyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if !got.Ready || len(got.Checks) != 2 {
		t.Errorf("ready response = %+v", got)
	}
}

func TestHandleReadyFailingDependency(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeService{}, func(c *Config) {
		c.Pingers = []Pinger{
			&stubPinger{name: "encoder"},
			&stubPinger{name: "groq", err: errors.New("no key")},
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var got readyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Ready {
		t.Error("ready should be false")
	}
	if got.Checks[1].OK || got.Checks[1].Error == "" {
		t.Errorf("failing check = %+v", got.Checks[1])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeService{}, nil)

	// Generate one request so counters have samples.
	ask := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"q"}`))
	s.Handler().ServeHTTP(httptest.NewRecorder(), ask)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "sahayak_ask_requests_total") {
		t.Error("metrics output missing ask counter")
	}
}
