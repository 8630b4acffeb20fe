package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dunamismax/normalflow/internal/domain"
	"github.com/dunamismax/normalflow/internal/provision"
	"github.com/dunamismax/normalflow/internal/ratelimit"
	"github.com/dunamismax/normalflow/internal/webhook"
)

type stubProvisioner struct {
	result provision.Result
	ctxErr error
}

func (p *stubProvisioner) Ensure(ctx context.Context) provision.Result {
	p.ctxErr = ctx.Err()
	return p.result
}

type stubLimiter struct {
	decision ratelimit.Decision
	err      error
	routes   []string
	subjects []string
}

func (l *stubLimiter) Allow(_ context.Context, route, subject string) (ratelimit.Decision, error) {
	l.routes = append(l.routes, route)
	l.subjects = append(l.subjects, subject)
	return l.decision, l.err
}

type captureNotifier struct {
	mu      sync.Mutex
	events  []string
	payload []any
	err     error
}

func (n *captureNotifier) Send(_ context.Context, _, event string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	n.payload = append(n.payload, payload)
	return n.err
}

func newTestServer(p repositoryProvisioner, opts Options) *Server {
	return NewServer(log.New(io.Discard, "", 0), p, opts)
}

func postProvision(t *testing.T, h http.Handler, header http.Header) (*httptest.ResponseRecorder, domain.ProvisionResult) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/download-repo", nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body domain.ProvisionResult
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return rec, body
}

func TestProvisionSuccess(t *testing.T) {
	p := &stubProvisioner{result: provision.Result{
		State:      provision.StateCloneSucceeded,
		Message:    provision.MessageDownloaded,
		RepoPath:   "/srv/BumpToNormalMap",
		OutputPath: "/srv/output",
		Stdout:     "done",
	}}
	rec, body := postProvision(t, newTestServer(p, Options{}).Handler(), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !body.Success || body.Message != provision.MessageDownloaded {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Path != "/srv/BumpToNormalMap" || body.OutputPath != "/srv/output" || body.Stdout != "done" {
		t.Fatalf("unexpected paths %+v", body)
	}
	if body.Error != "" {
		t.Fatalf("expected no error field, got %q", body.Error)
	}
	if rec.Header().Get(HeaderRequestID) == "" {
		t.Fatal("expected request id header")
	}
}

func TestProvisionAlreadyPresentOmitsStdout(t *testing.T) {
	p := &stubProvisioner{result: provision.Result{
		State:      provision.StateAlreadyPresent,
		Message:    provision.MessageAlreadyExists,
		RepoPath:   "/srv/BumpToNormalMap",
		OutputPath: "/srv/output",
	}}
	srv := newTestServer(p, Options{})
	req := httptest.NewRequest(http.MethodPost, "/download-repo", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "stdout") {
		t.Fatalf("expected stdout to be omitted, got %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"outputPath":"/srv/output"`) {
		t.Fatalf("expected camelCase outputPath, got %s", rec.Body.String())
	}
}

func TestProvisionFailureReturns500(t *testing.T) {
	p := &stubProvisioner{result: provision.Result{
		State: provision.StateCloneFailed,
		Err:   errors.New("git clone failed: exit status 128"),
	}}
	rec, body := postProvision(t, newTestServer(p, Options{}).Handler(), nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body.Success {
		t.Fatal("expected success=false")
	}
	if body.Error != "git clone failed: exit status 128" {
		t.Fatalf("unexpected error %q", body.Error)
	}
}

func TestProvisionIgnoresClientCancellation(t *testing.T) {
	p := &stubProvisioner{result: provision.Result{State: provision.StateAlreadyPresent}}
	srv := newTestServer(p, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/download-repo", nil).WithContext(ctx)
	srv.Handler().ServeHTTP(httptest.NewRecorder(), req)

	if p.ctxErr != nil {
		t.Fatalf("expected provisioner context to outlive the request, got %v", p.ctxErr)
	}
}

func TestProvisionRejectsGet(t *testing.T) {
	srv := newTestServer(&stubProvisioner{}, Options{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download-repo", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestRateLimitRejects(t *testing.T) {
	limiter := &stubLimiter{decision: ratelimit.Decision{Allowed: false, RetryAfter: 1200 * time.Millisecond}}
	p := &stubProvisioner{result: provision.Result{State: provision.StateAlreadyPresent}}
	srv := newTestServer(p, Options{RateLimiter: limiter})

	req := httptest.NewRequest(http.MethodPost, "/download-repo", nil)
	req.Header.Set("X-User-ID", "alice")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After 1, got %q", rec.Header().Get("Retry-After"))
	}
	if len(limiter.subjects) != 1 || limiter.subjects[0] != "alice" || limiter.routes[0] != "/download-repo" {
		t.Fatalf("unexpected buckets routes=%v subjects=%v", limiter.routes, limiter.subjects)
	}
}

func TestRateLimitKeysAnonymousCallersByAddress(t *testing.T) {
	limiter := &stubLimiter{decision: ratelimit.Decision{Allowed: false, RetryAfter: 3 * time.Second}}
	srv := newTestServer(&stubProvisioner{}, Options{RateLimiter: limiter})

	req := httptest.NewRequest(http.MethodPost, "/download-repo", nil)
	req.RemoteAddr = "198.51.100.7:52100"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if len(limiter.subjects) != 1 || limiter.subjects[0] != "198.51.100.7" {
		t.Fatalf("unexpected subjects %v", limiter.subjects)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["success"] != false || body["error"] != "rate limit exceeded" || body["retryAfter"] != float64(3) {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("redis down")}
	p := &stubProvisioner{result: provision.Result{State: provision.StateAlreadyPresent}}
	rec, body := postProvision(t, newTestServer(p, Options{RateLimiter: limiter}).Handler(), nil)

	if rec.Code != http.StatusOK || !body.Success {
		t.Fatalf("expected request to pass through, got %d %+v", rec.Code, body)
	}
}

func TestRateLimitSkipsHealthz(t *testing.T) {
	limiter := &stubLimiter{decision: ratelimit.Decision{Allowed: false}}
	srv := newTestServer(&stubProvisioner{}, Options{RateLimiter: limiter})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(limiter.subjects) != 0 {
		t.Fatal("expected healthz to bypass the limiter")
	}
}

func TestProvisionNotifiesWebhook(t *testing.T) {
	n := &captureNotifier{err: errors.New("receiver down")}
	p := &stubProvisioner{result: provision.Result{
		State: provision.StateCloneFailed,
		Err:   errors.New("boom"),
	}}
	srv := newTestServer(p, Options{Notifier: n, WebhookURL: "http://hooks.invalid"})

	req := httptest.NewRequest(http.MethodPost, "/download-repo", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	srv.Wait()

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected webhook failure to leave the 500 untouched, got %d", rec.Code)
	}
	if len(n.events) != 1 || n.events[0] != webhook.EventProvisionFailed {
		t.Fatalf("unexpected events %v", n.events)
	}
	payload := n.payload[0].(webhook.ProvisionEvent)
	if payload.RequestID != "req-42" || payload.Error != "boom" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestMetricsEndpointReportsProvisioning(t *testing.T) {
	p := &stubProvisioner{result: provision.Result{State: provision.StateAlreadyPresent}}
	srv := newTestServer(p, Options{})
	h := srv.Handler()
	postProvision(t, h, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `normalflow_provision_total{state="already_present"} 1`) {
		t.Fatalf("expected provision counter in metrics output")
	}
	if !strings.Contains(body, `normalflow_api_requests_total{method="POST",route="/download-repo",status="200"} 1`) {
		t.Fatalf("expected request counter in metrics output")
	}
}

func TestRouteLabel(t *testing.T) {
	cases := map[string]string{
		"/download-repo": "/download-repo",
		"/healthz":       "/healthz",
		"/metrics":       "/metrics",
		"/v1/whatever":   "other",
	}
	for path, want := range cases {
		if got := routeLabel(path); got != want {
			t.Fatalf("routeLabel(%q) = %q, want %q", path, got, want)
		}
	}
}
