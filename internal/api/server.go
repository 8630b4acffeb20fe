package api

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/dunamismax/normalflow/internal/domain"
	"github.com/dunamismax/normalflow/internal/provision"
	"github.com/dunamismax/normalflow/internal/webhook"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Server struct {
	logger                *log.Logger
	provisioner           repositoryProvisioner
	rateLimiter           RateLimiter
	rateLimitUserIDHeader string
	notifier              notifier
	webhookURL            string
	metrics               *metrics
	tracer                trace.Tracer
	mux                   *http.ServeMux
	notifications         sync.WaitGroup
}

type repositoryProvisioner interface {
	Ensure(ctx context.Context) provision.Result
}

type notifier interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

type Options struct {
	RateLimiter           RateLimiter
	RateLimitUserIDHeader string
	Notifier              notifier
	WebhookURL            string
}

func NewServer(logger *log.Logger, provisioner repositoryProvisioner, opts Options) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	header := opts.RateLimitUserIDHeader
	if header == "" {
		header = "X-User-ID"
	}

	s := &Server{
		logger:                logger,
		provisioner:           provisioner,
		rateLimiter:           opts.RateLimiter,
		rateLimitUserIDHeader: header,
		notifier:              opts.Notifier,
		webhookURL:            opts.WebhookURL,
		metrics:               newMetrics(),
		tracer:                otel.Tracer("normalflow/api"),
		mux:                   http.NewServeMux(),
	}
	s.routes()
	return s
}

// Handler wraps the routes with request id, tracing, metrics and rate
// limiting, outermost first.
func (s *Server) Handler() http.Handler {
	return withRequestID(s.withTracing(s.metrics.withHTTPMetrics(s.withRateLimit(s.mux))))
}

// Wait blocks until in-flight webhook notifications are done.
func (s *Server) Wait() {
	s.notifications.Wait()
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("POST /download-repo", s.handleProvision)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProvision(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFromContext(r.Context())

	// A disconnecting client must not abort a clone that already started.
	ctx := context.WithoutCancel(r.Context())
	result := s.provisioner.Ensure(ctx)
	s.metrics.observeProvision(result)
	s.notify(ctx, requestID, result)

	if !result.Success() {
		errText := "repository provisioning failed"
		if result.Err != nil {
			errText = result.Err.Error()
		}
		s.logger.Printf("provision failed request_id=%s err=%s", requestID, errText)
		writeJSON(w, http.StatusInternalServerError, domain.ProvisionResult{
			Success: false,
			Error:   errText,
		})
		return
	}

	s.logger.Printf("provision ok request_id=%s state=%s path=%s", requestID, result.State, result.RepoPath)
	writeJSON(w, http.StatusOK, domain.ProvisionResult{
		Success:    true,
		Message:    result.Message,
		Path:       result.RepoPath,
		OutputPath: result.OutputPath,
		Stdout:     result.Stdout,
	})
}

// notify posts the provisioning event in the background; delivery never
// affects the HTTP response.
func (s *Server) notify(ctx context.Context, requestID string, result provision.Result) {
	if s.notifier == nil || s.webhookURL == "" {
		return
	}

	event, payload := webhook.NewProvisionEvent(requestID, result, time.Now())
	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		if err := s.notifier.Send(ctx, s.webhookURL, event, payload); err != nil {
			s.logger.Printf("webhook delivery failed request_id=%s event=%s err=%v", requestID, event, err)
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
