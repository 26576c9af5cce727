package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/vbonduro/sitecheck/internal/metrics"
	"github.com/vbonduro/sitecheck/internal/service"
)

type Server struct {
	service *service.InspectionService
	metrics *metrics.Metrics
	mux     *http.ServeMux
	logger  *slog.Logger
}

func NewServer(svc *service.InspectionService, m *metrics.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		service: svc,
		metrics: m,
		mux:     http.NewServeMux(),
		logger:  logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /checklist", s.handleChecklist)

	s.mux.HandleFunc("GET /properties", s.handleListProperties)
	s.mux.HandleFunc("GET /properties/{id}/inspection", s.handleGetInspection)
	s.mux.HandleFunc("GET /properties/{id}/progress", s.handleGetProgress)
	s.mux.HandleFunc("GET /properties/{id}/completion", s.handleGetCompletion)
	s.mux.HandleFunc("GET /properties/{id}/report.xlsx", s.handleGetReport)

	s.mux.HandleFunc("GET /properties/{id}/items/{itemID}", s.handleGetItem)
	s.mux.HandleFunc("POST /properties/{id}/items/{itemID}/evaluations", s.handleAddEvaluation)
	s.mux.HandleFunc("DELETE /properties/{id}/items/{itemID}/evaluations/{index}", s.handleRemoveEvaluation)
	s.mux.HandleFunc("POST /properties/{id}/items/{itemID}/evaluations/{evaluationID}/photo", s.handleUploadPhoto)
	s.mux.HandleFunc("GET /properties/{id}/items/{itemID}/evaluations/{evaluationID}/photo", s.handleGetPhoto)
	s.mux.HandleFunc("PUT /properties/{id}/items/{itemID}/survey", s.handleSetItemSurvey)
	s.mux.HandleFunc("PUT /properties/{id}/items/{itemID}/options/{label}", s.handleSetOption)
	s.mux.HandleFunc("DELETE /properties/{id}/items/{itemID}/options/{label}", s.handleClearOption)

	s.mux.HandleFunc("PUT /properties/{id}/categories/{categoryID}/survey", s.handleSetCategorySurvey)
	s.mux.HandleFunc("PUT /properties/{id}/groups/{groupID}/existence", s.handleSetGroupExistence)
	s.mux.HandleFunc("PUT /properties/{id}/groups/{groupID}/finish-materials", s.handleSetFinishMaterials)
	s.mux.HandleFunc("PUT /properties/{id}/maintenance/{maintenanceID}", s.handleSetMaintenance)

	s.mux.Handle("GET /metrics", s.metrics.Handler())
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.metrics.Middleware(s.mux))).ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then drains open requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
