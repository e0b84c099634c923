package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"onthefly/internal/analytics"
	"onthefly/internal/commentary"
	"onthefly/internal/config"
	"onthefly/internal/logging"
	"onthefly/internal/store"
)

// bodyOverhead covers the JSON envelope and data URL prefix around a
// base64-encoded frame.
const bodyOverhead = 64 << 10

// commentaryGenerator is satisfied by *commentary.Generator.
type commentaryGenerator interface {
	Generate(ctx context.Context, req commentary.FrameRequest) (*commentary.Commentary, error)
}

type apiServer struct {
	bind      string
	token     string
	maxBody   int64
	logger    *slog.Logger
	generator commentaryGenerator
	store     store.Store
	analytics *analytics.Service
	embedder  commentary.Embedder
	dashboard dashboardSettings
	status    func(context.Context) Status

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Server.Bind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:      bind,
		token:     cfg.Server.APIToken,
		maxBody:   maxBodyBytes(cfg.Server.MaxFrameBytes),
		logger:    logger,
		generator: d.generator,
		store:     d.store,
		analytics: d.analytics,
		embedder:  d.embedder,
		dashboard: dashboardFromConfig(cfg),
		status:    d.Status,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       secondsOr(cfg.Server.ReadTimeoutSeconds, 15*time.Second),
		WriteTimeout:      secondsOr(cfg.Server.WriteTimeoutSeconds, 30*time.Second),
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// routes builds the router. Frame and read endpoints are served both at the
// root and under /api so the dashboard and scripted clients can share them.
func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/", s.handleDashboard)
	r.Get("/dashboard.js", s.handleDashboardScript)
	if s.dashboard.VideoPath != "" {
		r.Get("/video", s.handleVideo)
	}

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(s.token))
		r.Use(s.limitBody)

		r.Post("/commentaries", s.handleCreateCommentary)
		r.Post("/api/commentaries", s.handleCreateCommentary)
		r.Get("/api/commentaries", s.handleListCommentaries)
		r.Get("/analytics", s.handleAnalytics)
		r.Get("/api/analytics", s.handleAnalytics)
		r.Get("/api/search", s.handleSearch)
		r.Get("/api/status", s.handleStatus)
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr returns the bound listener address, which differs from bind when the
// port is 0.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// requestLogger tags the request context with chi's request id and logs each
// request at debug level.
func (s *apiServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := middleware.GetReqID(ctx); id != "" {
			ctx = logging.WithRequestID(ctx, id)
		}
		ctx = logging.WithSource(ctx, "api")
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		logging.WithContext(ctx, s.log()).Debug("request served",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Int("bytes", ww.BytesWritten()),
			logging.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *apiServer) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.maxBody > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}

// maxBodyBytes sizes the request limit for a base64 frame of maxFrame bytes.
func maxBodyBytes(maxFrame int) int64 {
	if maxFrame <= 0 {
		return 0
	}
	return int64(maxFrame)*4/3 + bodyOverhead
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
