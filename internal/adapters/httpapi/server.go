package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/andrescamacho/fleetdispatch/internal/infrastructure/config"
)

// Server is the HTTP API surface of the dispatch core
type Server struct {
	http   *http.Server
	logger *zap.Logger
}

// NewRouter builds the chi router with all routes and middleware
func NewRouter(handlers *Handlers, registry *prometheus.Registry, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Post("/faults", handlers.ReportFault)
	r.Get("/faults", handlers.ListFaults)
	r.Post("/dispatch/run", handlers.RunDispatch)
	r.Post("/gps", handlers.IngestGPS)
	r.Get("/routes/calculate", handlers.CalculateRoute)
	r.Get("/vehicles", handlers.ListVehicles)
	r.Get("/healthz", handlers.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return r
}

// NewServer builds the router and wraps it in an http.Server
func NewServer(cfg config.ServerConfig, handlers *Handlers, registry *prometheus.Registry, logger *zap.Logger) *Server {
	r := NewRouter(handlers, registry, logger)

	return &Server{
		http: &http.Server{
			Addr:         cfg.Address,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout(),
			WriteTimeout: cfg.WriteTimeout(),
		},
		logger: logger,
	}
}

// Start serves until Shutdown; it returns http.ErrServerClosed on clean exit
func (s *Server) Start() error {
	s.logger.Info("http api listening", zap.String("address", s.http.Addr))
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// requestLogger logs one line per request
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
