// Package server exposes document building over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ukaji3/xlbuild-go/internal/config"
	"github.com/ukaji3/xlbuild-go/pkg/logger"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Server is the HTTP export service.
type Server struct {
	cfg     config.HTTPConfig
	opts    xlbuild.Options
	log     logger.Logger
	limiter *BuildLimiter
	router  *chi.Mux
}

// New returns a Server building documents with opts.
func New(cfg config.HTTPConfig, opts xlbuild.Options, log logger.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		opts:    opts,
		log:     log,
		limiter: NewBuildLimiter(cfg.MaxConcurrentBuilds, cfg.AcquireTimeout),
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.logRequests)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/documents", s.handleBuild)
	})
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on the configured address until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("starting server", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// ErrorResponse is the JSON body of an error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int, code string) {
	requestID := middleware.GetReqID(r.Context())
	s.log.Error("request error",
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("code", code),
		zap.String("request_id", requestID),
		zap.Error(err),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:     err.Error(),
		Code:      code,
		RequestID: requestID,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":       "ok",
		"active":       s.limiter.Active(),
		"available":    s.limiter.Available(),
		"max_builds":   s.cfg.MaxConcurrentBuilds,
		"default_mode": s.opts.Mode,
	})
}

// handleBuild builds the document posted as JSON and streams it back as xlsx.
// The optional mode query parameter overrides the construction strategy.
func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.limiter.Acquire(ctx); err != nil {
		if errors.Is(err, ErrTooManyBuilds) {
			w.Header().Set("Retry-After", "1")
			s.respondError(w, r, err, http.StatusTooManyRequests, "too_many_builds")
			return
		}
		s.respondError(w, r, err, http.StatusServiceUnavailable, "canceled")
		return
	}
	defer s.limiter.Release()

	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	doc, err := models.DecodeDocument(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, err, http.StatusRequestEntityTooLarge, "too_large")
			return
		}
		s.respondError(w, r, err, http.StatusBadRequest, "invalid_json")
		return
	}

	opts := s.opts
	if mode := r.URL.Query().Get("mode"); mode != "" {
		opts.Mode = xlbuild.Mode(mode)
	}

	b, err := xlbuild.New(doc, opts)
	if err != nil {
		if errors.Is(err, xlbuild.ErrInvalidDocument) || errors.Is(err, xlbuild.ErrInvalidMode) {
			s.respondError(w, r, err, http.StatusBadRequest, "invalid_document")
			return
		}
		s.respondError(w, r, err, http.StatusInternalServerError, "build_failed")
		return
	}
	defer b.Close()

	// a posted document is always built, whatever its noStart flag says
	if err := b.Start(ctx); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError, "build_failed")
		return
	}
	rc, err := b.ToStream(ctx)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError, "build_failed")
		return
	}
	defer rc.Close()

	id := uuid.NewString()
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName(doc, id)))
	w.Header().Set("X-Build-Strategy", string(b.Strategy()))
	w.Header().Set("X-Document-ID", id)
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, rc)
	if err != nil {
		// headers are gone; all that is left is to log
		s.log.Error("stream document", zap.String("document_id", id), zap.Error(err))
		return
	}
	s.log.Debug("document built",
		zap.String("document_id", id),
		zap.String("strategy", string(b.Strategy())),
		zap.Int64("bytes", n),
	)
}

func fileName(doc models.Document, id string) string {
	name := filepath.Base(doc.Name)
	if doc.Name == "" || name == "." || name == "/" {
		name = "document-" + id
	}
	if !strings.EqualFold(filepath.Ext(name), ".xlsx") {
		name += ".xlsx"
	}
	return name
}
