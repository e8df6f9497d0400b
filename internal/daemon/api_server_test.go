package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"mikanarr/internal/feed"
	"mikanarr/internal/logging"
	"mikanarr/internal/monitor"
	"mikanarr/internal/store"
	"mikanarr/internal/testsupport"
)

func newTestAPI(t *testing.T, token string) (*apiServer, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	records := testsupport.MustOpenStore(t, cfg)
	srv := &apiServer{
		token:  token,
		logger: logging.NewNop(),
		tasks:  records,
		status: func(context.Context) Status {
			return Status{Running: true, Feeds: 2, LastCycle: monitor.Report{CycleID: "c1", Entries: 7, Resources: 3}}
		},
	}
	return srv, records
}

func TestAPIServerHandleStatus(t *testing.T) {
	srv, _ := newTestAPI(t, "")

	w := httptest.NewRecorder()
	srv.handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Running || resp.Feeds != 2 {
		t.Fatalf("unexpected status %+v", resp)
	}
	if resp.LastCycle == nil || resp.LastCycle.Entries != 7 || resp.LastCycle.Resources != 3 {
		t.Fatalf("unexpected last cycle %+v", resp.LastCycle)
	}
}

func TestAPIServerHandleTasks(t *testing.T) {
	srv, records := newTestAPI(t, "")
	ctx := context.Background()
	for _, rec := range []store.TaskRecord{
		{TaskID: "t1", SavePath: "/Anime/A", Resource: feed.ResourceInfo{Title: "a-01"}},
		{TaskID: "t2", SavePath: "/Anime/B", Status: store.TaskCompleted, Resource: feed.ResourceInfo{Title: "b-01"}},
	} {
		if err := records.RecordTask(ctx, rec); err != nil {
			t.Fatalf("RecordTask: %v", err)
		}
	}

	w := httptest.NewRecorder()
	srv.handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tasks?status=completed", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp taskListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Tasks) != 1 || resp.Tasks[0].TaskID != "t2" {
		t.Fatalf("unexpected tasks %+v", resp.Tasks)
	}

	w = httptest.NewRecorder()
	srv.handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tasks/t1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var task store.TaskRecord
	if err := json.Unmarshal(w.Body.Bytes(), &task); err != nil {
		t.Fatalf("failed to decode task: %v", err)
	}
	if task.Resource.Title != "a-01" || task.Status != store.TaskDownloading {
		t.Fatalf("unexpected task %+v", task)
	}

	w = httptest.NewRecorder()
	srv.handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tasks/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAPIServerHandleSeen(t *testing.T) {
	srv, records := newTestAPI(t, "")
	if err := records.MarkSeen(context.Background(), "a-01", "b-01"); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}

	w := httptest.NewRecorder()
	srv.handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/seen?limit=1", nil))
	var resp seenListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Seen) != 1 {
		t.Fatalf("expected limit to apply, got %+v", resp.Seen)
	}

	w = httptest.NewRecorder()
	srv.handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/seen?limit=zero", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAPIServerRequiresToken(t *testing.T) {
	srv, _ := newTestAPI(t, "secret")
	handler := srv.handler()

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "wrong", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "basic scheme", header: "Basic secret", want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer secret", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestAPIServerRejectsWrites(t *testing.T) {
	srv, _ := newTestAPI(t, "")
	w := httptest.NewRecorder()
	srv.handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/tasks", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}
