package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dhi-engine/dhi/pkg/attestation"
	"github.com/dhi-engine/dhi/pkg/gateway"
	"github.com/dhi-engine/dhi/pkg/governance"
	"github.com/dhi-engine/dhi/pkg/interceptor"
	"github.com/dhi-engine/dhi/pkg/observability"
	"github.com/dhi-engine/dhi/pkg/orchestrator"
)

// LLMFactory builds a gateway client from per-request options. The LLM
// client is stateless and constructed per request.
type LLMFactory func(gateway.Options) (gateway.Client, error)

// Service holds the shared collaborators behind the HTTP handlers. The
// manifest store and recorder are the only cross-request mutable state.
type Service struct {
	pipeline    *governance.Pipeline
	verifier    interceptor.Verifier
	store       *attestation.Store
	recorder    orchestrator.Recorder
	llmDefaults gateway.Options
	newLLM      LLMFactory
	logger      *slog.Logger
}

// Config assembles a Service.
type Config struct {
	Pipeline    *governance.Pipeline
	Verifier    interceptor.Verifier
	Store       *attestation.Store
	Recorder    orchestrator.Recorder
	LLMDefaults gateway.Options
	NewLLM      LLMFactory
}

// NewService wires the handler set. NewLLM defaults to the production
// completion client.
func NewService(cfg Config) *Service {
	factory := cfg.NewLLM
	if factory == nil {
		factory = func(opts gateway.Options) (gateway.Client, error) {
			return gateway.NewCompletionClient(opts)
		}
	}
	store := cfg.Store
	if store == nil {
		store = attestation.NewStore()
	}
	return &Service{
		pipeline:    cfg.Pipeline,
		verifier:    cfg.Verifier,
		store:       store,
		recorder:    cfg.Recorder,
		llmDefaults: cfg.LLMDefaults,
		newLLM:      factory,
		logger:      slog.Default().With("component", "api"),
	}
}

// Routes builds the endpoint mux.
func (s *Service) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /verify", s.handleVerify)
	mux.HandleFunc("POST /intercept", s.handleIntercept)
	mux.HandleFunc("POST /orchestrate", s.handleOrchestrate)
	mux.HandleFunc("GET /manifest/{request_id}", s.handleManifest)
	return mux
}

// Handler wraps the routes with request-id stamping and throttling.
func (s *Service) Handler(throttle *Throttle) http.Handler {
	return Wrap(throttle, s.Routes())
}

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Observe wraps a handler with RED metric recording.
func Observe(obs *observability.Provider, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		status := "ok"
		if recorder.status >= 400 {
			status = "error"
		}
		obs.RecordRequest(r.Context(), r.URL.Path, status,
			float64(time.Since(start).Milliseconds()))
	})
}

// ListenAndServe runs the HTTP server until ctx is cancelled.
func (s *Service) ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
