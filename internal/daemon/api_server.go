package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"srmsync/internal/api"
	"srmsync/internal/config"
	"srmsync/internal/logging"
)

const defaultSessionLimit = 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	server *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Daemon.APIBind)
	if bind == "" {
		return nil
	}
	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.Daemon.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes(token string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, s.logRequests, authMiddleware(token))

	r.Get("/api/status", s.handleStatus)
	r.Get("/api/sessions", s.handleSessions)
	r.Get("/api/games", s.handleGames)
	r.Post("/api/sync", s.handleSync)
	if reg := s.daemon.deps.Registry; reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	return r
}

// serve listens until ctx is done.
func (s *apiServer) serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *apiServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("duration", time.Since(start)),
			logging.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, statusPayload(status))
}

func (s *apiServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultSessionLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	sessions, err := s.daemon.Sessions(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionListResponse{Sessions: api.FromSessions(sessions)})
}

func (s *apiServer) handleGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.daemon.Games(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.GameListResponse{Games: games})
}

func (s *apiServer) handleSync(w http.ResponseWriter, _ *http.Request) {
	queued := s.daemon.RequestSync("http")
	s.writeJSON(w, http.StatusAccepted, map[string]bool{"queued": queued})
}

// statusPayload converts a daemon status for the HTTP and IPC layers.
func statusPayload(status Status) api.DaemonStatus {
	payload := api.DaemonStatus{
		Running:        status.Running,
		PID:            status.PID,
		SyncInProgress: status.SyncInProgress,
		SyncQueued:     status.SyncQueued,
		TrackedGames:   api.TrackedGames(status.Tracked),
		LockFilePath:   status.LockFilePath,
		HistoryPath:    status.HistoryPath,
		LibraryPath:    status.LibraryPath,
		Dependencies:   make([]api.DependencyStatus, len(status.Dependencies)),
	}
	if !status.StartedAt.IsZero() {
		payload.StartedAt = status.StartedAt.UTC().Format(time.RFC3339)
	}
	if status.LastReport != nil {
		last := api.FromReport(*status.LastReport)
		payload.LastSession = &last
	}
	for i, dep := range status.Dependencies {
		payload.Dependencies[i] = api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return payload
}

// StatusPayload returns the wire form of the current status.
func (d *Daemon) StatusPayload(ctx context.Context) api.DaemonStatus {
	return statusPayload(d.Status(ctx))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
