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

	"showseed/internal/config"
	"showseed/internal/jobs"
	"showseed/internal/logging"
)

// apiServer serves read-only job state as JSON. It is nil when api.bind is
// empty; every method tolerates a nil receiver.
type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler

	listener net.Listener
	server   *http.Server
}

type jobsResponse struct {
	Jobs []jobs.View `json:"jobs"`
}

type jobResponse struct {
	Job jobs.View `json:"job"`
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.API.Bind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("GET /api/jobs", srv.handleJobs)
	mux.HandleFunc("GET /api/jobs/{key}", srv.handleJob)

	srv.handler = requireToken(cfg.API.Token, mux)
	return srv, nil
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
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.server = server

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownServer(server)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownServer(s.server)
	s.server = nil
	s.listener = nil
}

func shutdownServer(server *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

// Addr is the bound listen address, or "" before start.
func (s *apiServer) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status())
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	views := s.daemon.ListJobs()
	if phase := strings.TrimSpace(r.URL.Query().Get("phase")); phase != "" {
		filtered := views[:0]
		for _, v := range views {
			if strings.EqualFold(string(v.Phase), phase) {
				filtered = append(filtered, v)
			}
		}
		views = filtered
	}
	s.writeJSON(w, http.StatusOK, jobsResponse{Jobs: views})
}

func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	for _, v := range s.daemon.ListJobs() {
		if v.Key == key {
			s.writeJSON(w, http.StatusOK, jobResponse{Job: v})
			return
		}
	}
	s.writeError(w, http.StatusNotFound, "job not found")
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
