package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mikanarr/internal/config"
	"mikanarr/internal/logging"
	"mikanarr/internal/store"
)

// taskReader is the part of the store the status API reads.
type taskReader interface {
	ListTasks(ctx context.Context, statuses ...store.TaskStatus) ([]store.TaskRecord, error)
	GetTask(ctx context.Context, taskID string) (store.TaskRecord, error)
	ListSeen(ctx context.Context, limit int) ([]store.SeenResource, error)
}

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	status func(context.Context) Status
	tasks  taskReader

	listener net.Listener
	server   *http.Server
}

type statusResponse struct {
	Running      bool       `json:"running"`
	Feeds        int        `json:"feeds"`
	ActiveTasks  int        `json:"active_tasks"`
	DatabasePath string     `json:"database_path"`
	LockFilePath string     `json:"lock_file_path"`
	LastCycle    *cycleInfo `json:"last_cycle,omitempty"`
}

type cycleInfo struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	DurationMS    int64     `json:"duration_ms"`
	Entries       int       `json:"entries"`
	Filtered      int       `json:"filtered"`
	Seen          int       `json:"seen"`
	Duplicates    int       `json:"duplicates"`
	SourceErrors  int       `json:"source_errors"`
	ExtractErrors int       `json:"extract_errors"`
	Resources     int       `json:"resources"`
}

type taskListResponse struct {
	Tasks []store.TaskRecord `json:"tasks"`
}

type seenListResponse struct {
	Seen []store.SeenResource `json:"seen"`
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.API.Bind)
	if bind == "" {
		return nil
	}
	return &apiServer{
		bind:   bind,
		token:  cfg.API.Token,
		logger: logging.NewComponentLogger(logger, "api-server"),
		status: d.Status,
		tasks:  d.store,
	}
}

func (s *apiServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(s.token, s.handleStatus))
	mux.HandleFunc("/api/tasks", authMiddleware(s.token, s.handleTasks))
	mux.HandleFunc("/api/tasks/", authMiddleware(s.token, s.handleTask))
	mux.HandleFunc("/api/seen", authMiddleware(s.token, s.handleSeen))
	return mux
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
	s.server = &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
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

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.status(r.Context())
	payload := statusResponse{
		Running:      status.Running,
		Feeds:        status.Feeds,
		ActiveTasks:  status.ActiveTasks,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
	}
	if last := status.LastCycle; last.CycleID != "" {
		payload.LastCycle = &cycleInfo{
			ID:            last.CycleID,
			StartedAt:     last.StartedAt,
			DurationMS:    last.Duration.Milliseconds(),
			Entries:       last.Entries,
			Filtered:      last.Filtered,
			Seen:          last.Seen,
			Duplicates:    last.Duplicates,
			SourceErrors:  last.SourceErrors,
			ExtractErrors: last.ExtractErrors,
			Resources:     last.Resources,
		}
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var statuses []store.TaskStatus
	for _, value := range r.URL.Query()["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		statuses = append(statuses, store.TaskStatus(trimmed))
	}

	tasks, err := s.tasks.ListTasks(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, taskListResponse{Tasks: tasks})
}

func (s *apiServer) handleTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	task, err := s.tasks.GetTask(r.Context(), id)
	if errors.Is(err, store.ErrTaskNotFound) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

func (s *apiServer) handleSeen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	seen, err := s.tasks.ListSeen(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, seenListResponse{Seen: seen})
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
