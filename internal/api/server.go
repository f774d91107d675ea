package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/bl4ck0w1/vaultlynx/internal/reporting"
	"github.com/bl4ck0w1/vaultlynx/internal/session"
	"github.com/bl4ck0w1/vaultlynx/pkg/models"
	"github.com/bl4ck0w1/vaultlynx/pkg/utils"
)

const shutdownTimeout = 10 * time.Second

// Session is the part of session.Session the API drives.
type Session interface {
	Load(ctx context.Context, name string, raw []byte) (*session.Handle, error)
	Snapshot() session.Snapshot
	Clear()
	Subscribe(buffer int) (<-chan session.Event, func())
	GetStats() map[string]interface{}
}

type Server struct {
	cfg      models.APIConfig
	session  Session
	reports  *reporting.ReportGenerator
	metrics  *utils.MetricsCollector
	logger   *logrus.Logger
	router   chi.Router
	upgrader websocket.Upgrader
}

func NewServer(cfg models.APIConfig, sess Session, reports *reporting.ReportGenerator, metrics *utils.MetricsCollector, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = models.DefaultConfig().API.MaxUploadBytes
	}
	s := &Server{
		cfg:      cfg,
		session:  sess,
		reports:  reports,
		metrics:  metrics,
		logger:   logger,
		upgrader: newUpgrader(cfg.AllowedOrigins),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/vault", s.handleUpload)
		r.Get("/session", s.handleSession)
		r.Delete("/session", s.handleClear)
		r.Get("/results", s.handleResults)
		r.Get("/report", s.handleReport)
		r.Get("/events", s.handleEvents)
	})
	return r
}

func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("address", s.cfg.Address).Info("API server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down API server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}

func requestLogger(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Debug("request handled")
		})
	}
}
