package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"pegvault/crypto"
	"pegvault/native/stable"
	"pegvault/observability"
	"pegvault/services/stabled/ledger"
	"pegvault/services/stabled/storage"
)

// Config defines HTTP server parameters.
type Config struct {
	ListenAddress string
	// MaxOracleAge bounds the age of client supplied oracle samples. Zero disables the check.
	MaxOracleAge time.Duration
	RateLimit    RateLimit
}

// Ledger is the protocol state the server reads and submits batches to.
type Ledger interface {
	Snapshot() stable.State
	Head() (string, uint64)
	Now() int64
	Submit(ctx context.Context, signer crypto.Address, instrs []stable.Instruction) (ledger.Commit, error)
}

// Journal exposes the commit journal and quote audit trail.
type Journal interface {
	RecordQuote(ctx context.Context, rec *storage.QuoteRecord) error
	GetQuote(ctx context.Context, id string) (storage.QuoteRecord, error)
	GetCommit(ctx context.Context, commitID string) (storage.CommitRecord, error)
	ListCommits(ctx context.Context, limit int) ([]storage.CommitRecord, error)
}

// Server hosts the stabled HTTP API.
type Server struct {
	cfg     Config
	ledger  Ledger
	journal Journal
	auth    *Authenticator
	limiter *RateLimiter
	logger  *slog.Logger
	tracer  trace.Tracer
	newID   func() string
}

// New constructs a new HTTP server.
func New(cfg Config, l Ledger, journal Journal, auth *Authenticator, logger *slog.Logger) (*Server, error) {
	if l == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if auth == nil {
		return nil, fmt.Errorf("authenticator required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":7081"
	}
	return &Server{
		cfg:     cfg,
		ledger:  l,
		journal: journal,
		auth:    auth,
		limiter: NewRateLimiter(cfg.RateLimit),
		logger:  logger,
		tracer:  otel.Tracer("pegvault/services/stabled/server"),
		newID:   uuid.NewString,
	}, nil
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.instrument)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(v chi.Router) {
		v.Use(s.limiter.Middleware("v1"))
		v.Get("/config", s.handleConfig)
		v.Get("/vaults/{mint}", s.handleVault)
		v.Get("/benefactors/{authority}", s.handleBenefactor)
		v.Get("/operators/{authority}", s.handleOperator)
		v.Post("/quotes/mint", s.handleMintQuote)
		v.Post("/quotes/redeem", s.handleRedeemQuote)
		v.Get("/quotes/{id}", s.handleGetQuote)
		v.Post("/limits/check", s.handleLimitCheck)
		v.Get("/commits", s.handleListCommits)
		v.Get("/commits/{id}", s.handleGetCommit)
		v.With(s.auth.Middleware).Post("/batches", s.handleBatch)
	})
	return otelhttp.NewHandler(r, "stabled")
}

// Run starts the HTTP server and blocks until context cancellation.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.logger.Info("http server listening", "listen", s.cfg.ListenAddress)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		duration := time.Since(start)
		observability.HTTP().Observe(route, r.Method, recorder.status, duration)
		s.logger.Debug("request served",
			"method", r.Method,
			"path", route,
			"status", recorder.status,
			"duration_ms", duration.Milliseconds())
	})
}
