package todoist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smixs/t-tasker/task"
)

func newTestClient(srv *httptest.Server) *Client {
	c := New("test-token", time.Second)
	c.BaseURL = srv.URL
	c.SyncURL = srv.URL
	c.HTTP = srv.Client()
	return c
}

func TestCreateTask(t *testing.T) {
	var gotAuth, gotRequestID string
	var gotBody CreateTaskRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/tasks" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-Id")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(Task{ID: "42", Content: gotBody.Content, Priority: gotBody.Priority})
	}))
	defer srv.Close()

	c := newTestClient(srv)
	created, err := c.CreateTask(context.Background(), CreateTaskRequest{
		Content:   "Купить молоко",
		Priority:  2,
		DueString: "tomorrow",
		Labels:    []string{"покупки"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID != "42" {
		t.Fatalf("unexpected task id %q", created.ID)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotRequestID == "" {
		t.Error("missing idempotency key on create")
	}
	if gotBody.DueString != "tomorrow" || len(gotBody.Labels) != 1 {
		t.Errorf("unexpected body: %#v", gotBody)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		check  func(error) bool
		name   string
	}{
		{http.StatusUnauthorized, func(err error) bool { return errors.Is(err, ErrInvalidToken) }, "401"},
		{http.StatusForbidden, func(err error) bool { return errors.Is(err, ErrQuotaExceeded) }, "403"},
		{http.StatusNotFound, func(err error) bool { return errors.Is(err, ErrNotFound) }, "404"},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		c := newTestClient(srv)
		_, err := c.CreateTask(context.Background(), CreateTaskRequest{Content: "x"})
		if !tc.check(err) {
			t.Errorf("%s: got %v", tc.name, err)
		}
		srv.Close()
	}
}

func TestRemoteRateLimitCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.CreateTask(context.Background(), CreateTaskRequest{Content: "x"})
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rle.RetryAfter != 2*time.Minute {
		t.Fatalf("RetryAfter = %s, want 2m", rle.RetryAfter)
	}
}

func TestGetTasksFilterAndLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("filter"); got != "today" {
			t.Errorf("filter = %q", got)
		}
		json.NewEncoder(w).Encode([]Task{{ID: "1"}, {ID: "2"}, {ID: "3"}})
	}))
	defer srv.Close()

	c := newTestClient(srv)
	tasks, err := c.GetTasks(context.Background(), "today", "", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("limit not applied, got %d tasks", len(tasks))
	}
}

func TestProjectsCached(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode([]Project{{ID: "p1", Name: "Work"}})
	}))
	defer srv.Close()

	c := newTestClient(srv)
	for i := 0; i < 3; i++ {
		if _, err := c.Projects(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls)
	}

	c.InvalidateCache()
	if _, err := c.Projects(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("cache invalidation did not refetch, calls = %d", calls)
	}
}

func TestProjectByName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Project{{ID: "p1", Name: "Работа"}})
	}))
	defer srv.Close()

	c := newTestClient(srv)
	p, ok, err := c.ProjectByName(context.Background(), "работа")
	if err != nil || !ok {
		t.Fatalf("expected case-insensitive hit, ok=%v err=%v", ok, err)
	}
	if p.ID != "p1" {
		t.Fatalf("unexpected project: %#v", p)
	}
	if _, ok, _ := c.ProjectByName(context.Background(), "Хобби"); ok {
		t.Fatal("unexpected hit for unknown project")
	}
}

func TestLocalRateLimiterWindow(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl := newRateLimiter(3, 15*time.Minute)
	rl.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		if err := rl.acquire(); err != nil {
			t.Fatalf("request %d refused: %v", i, err)
		}
	}

	err := rl.acquire()
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rle.RetryAfter != 15*time.Minute {
		t.Fatalf("RetryAfter = %s, want 15m", rle.RetryAfter)
	}

	// The window slides: once the oldest request ages out, the budget
	// frees up again.
	clock = clock.Add(15*time.Minute + time.Second)
	if err := rl.acquire(); err != nil {
		t.Fatalf("request after window refused: %v", err)
	}
}

func TestRequestFromRecord(t *testing.T) {
	rec := task.Record{
		Content:   "Встреча",
		Priority:  3,
		DueString: "tomorrow at 14:00",
		Duration:  30,
		Labels:    []string{"встреча"},
	}
	req := RequestFromRecord(rec)
	if req.Duration != 30 || req.DurationUnit != "minute" {
		t.Fatalf("duration mapping: %#v", req)
	}
	if req.Content != rec.Content || req.DueString != rec.DueString {
		t.Fatalf("field mapping: %#v", req)
	}

	noDuration := RequestFromRecord(task.Record{Content: "x"})
	if noDuration.DurationUnit != "" {
		t.Fatal("duration unit must be empty without a duration")
	}
}

func TestCloseAndDeleteTask(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	if err := c.CloseTask(context.Background(), "42"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.DeleteTask(context.Background(), "42"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	want := []string{"POST /tasks/42/close", "DELETE /tasks/42"}
	for i, p := range want {
		if paths[i] != p {
			t.Fatalf("request %d = %q, want %q", i, paths[i], p)
		}
	}
}
