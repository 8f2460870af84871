// Package server exposes the query pipeline over HTTP: the chat query
// endpoint (plain JSON or a single SSE artifact), supported languages,
// feedback capture, health and readiness probes, and Prometheus
// metrics, with per-client rate limiting in front.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/feedback"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/observability"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/pipeline"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/protocol"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/ratelimit"
)

// QueryPipeline is the processing entrypoint the server fronts.
type QueryPipeline interface {
	Process(ctx context.Context, req *pipeline.Request) (*protocol.Answer, error)
}

// Options carries the server's collaborators. Pipeline and Config are
// required; everything else degrades to a sensible default or disables
// the corresponding endpoint behavior.
type Options struct {
	Config   *config.Config
	Pipeline QueryPipeline

	// Feedback persists user feedback; nil returns 503 on submit.
	Feedback feedback.Store

	// ReadyChecks run on /health/ready, keyed by dependency name.
	ReadyChecks []ReadyCheck

	// Metrics serves GET /metrics. Defaults to the Prometheus handler.
	Metrics http.Handler

	Recorder observability.Recorder
	Tracer   trace.Tracer
}

// Server is the HTTP front of the pipeline.
type Server struct {
	cfg      *config.Config
	pipeline QueryPipeline
	feedback feedback.Store
	checks   []ReadyCheck
	metrics  http.Handler
	recorder observability.Recorder
	tracer   trace.Tracer
	limiter  *ratelimit.Limiter

	httpServer *http.Server
	done       chan struct{}
	runErr     error
}

// New builds a Server. The rate limiter is constructed here from
// configuration so every transport shares one bucket table.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}

	recorder := opts.Recorder
	if recorder == nil {
		recorder = observability.NoopRecorder{}
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.MetricsHandler()
	}

	var limiter *ratelimit.Limiter
	if opts.Config.Server.RateLimit.IsEnabled() {
		limiter = ratelimit.NewLimiter(opts.Config.Server.RateLimit)
	}

	return &Server{
		cfg:      opts.Config,
		pipeline: opts.Pipeline,
		feedback: opts.Feedback,
		checks:   opts.ReadyChecks,
		metrics:  metrics,
		recorder: recorder,
		tracer:   opts.Tracer,
		limiter:  limiter,
		done:     make(chan struct{}),
	}, nil
}

// Addr is the listen address from configuration.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
}

// Start begins serving in the background. Use Wait to block until the
// listener exits and Stop to shut down gracefully.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	tls := s.cfg.Server.TLS
	useTLS := tls != nil && config.BoolValue(tls.Enabled, false)

	slog.Info("HTTP server starting", "addr", s.Addr(), "tls", useTLS)

	go func() {
		defer close(s.done)
		var err error
		if useTLS {
			err = s.httpServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.runErr = err
			slog.Error("HTTP server exited", "error", err)
		}
	}()

	return nil
}

// Wait blocks until the listener exits, returning its terminal error.
func (s *Server) Wait() error {
	<-s.done
	return s.runErr
}

// Stop drains in-flight requests within the configured shutdown
// timeout, then releases the limiter's janitor.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.httpServer.Shutdown(sctx)
	if s.limiter != nil {
		s.limiter.Close()
	}
	slog.Info("HTTP server stopped")
	return err
}
