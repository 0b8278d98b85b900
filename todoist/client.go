// Package todoist is a REST v2 client covering the slice of the API the
// bot needs: task CRUD, project and label lookup, and token validation.
// All mutating calls carry an idempotency key so a retried request never
// duplicates a task.
package todoist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smixs/t-tasker/task"
)

const (
	defaultBaseURL = "https://api.todoist.com/rest/v2"
	defaultSyncURL = "https://api.todoist.com/sync/v9"

	// Request budget documented by Todoist for REST clients.
	rateLimitMax    = 450
	rateLimitWindow = 15 * time.Minute

	cacheTTL = 5 * time.Minute
)

type Client struct {
	BaseURL string
	SyncURL string
	Token   string
	HTTP    *http.Client
	Logger  *slog.Logger

	limiter *rateLimiter

	cacheMu     sync.Mutex
	projects    []Project
	labels      []Label
	cacheExpiry time.Time
}

func New(token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: defaultBaseURL,
		SyncURL: defaultSyncURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: timeout},
		limiter: newRateLimiter(rateLimitMax, rateLimitWindow),
	}
}

// Task is the subset of the REST task object the bot reads back.
type Task struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Content     string    `json:"content"`
	Description string    `json:"description"`
	Priority    int       `json:"priority"`
	Labels      []string  `json:"labels"`
	URL         string    `json:"url"`
	Due         *Due      `json:"due,omitempty"`
	Duration    *Duration `json:"duration,omitempty"`
}

type Due struct {
	String      string `json:"string"`
	Date        string `json:"date"`
	Datetime    string `json:"datetime,omitempty"`
	IsRecurring bool   `json:"is_recurring"`
}

type Duration struct {
	Amount int    `json:"amount"`
	Unit   string `json:"unit"`
}

type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User is the account summary returned by token validation.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// CreateTaskRequest mirrors the POST /tasks body. Zero fields are
// omitted on the wire.
type CreateTaskRequest struct {
	Content      string   `json:"content"`
	Description  string   `json:"description,omitempty"`
	ProjectID    string   `json:"project_id,omitempty"`
	Labels       []string `json:"labels,omitempty"`
	Priority     int      `json:"priority,omitempty"`
	DueString    string   `json:"due_string,omitempty"`
	Duration     int      `json:"duration,omitempty"`
	DurationUnit string   `json:"duration_unit,omitempty"`
}

// RequestFromRecord maps an extracted record onto the wire shape. The
// project is carried by name in the record; the caller resolves it to an
// id first when one is set.
func RequestFromRecord(rec task.Record) CreateTaskRequest {
	req := CreateTaskRequest{
		Content:     rec.Content,
		Description: rec.Description,
		Labels:      rec.Labels,
		Priority:    rec.Priority,
		DueString:   rec.DueString,
	}
	if rec.Duration > 0 {
		req.Duration = rec.Duration
		req.DurationUnit = "minute"
	}
	return req
}

// UpdateTaskRequest mirrors POST /tasks/{id}. Only non-zero fields are
// sent, so a partial update leaves the rest of the task untouched.
type UpdateTaskRequest struct {
	Content     string   `json:"content,omitempty"`
	Description string   `json:"description,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	Priority    int      `json:"priority,omitempty"`
	DueString   string   `json:"due_string,omitempty"`
}

// ValidateToken checks the token against the sync user endpoint and
// returns the account it belongs to.
func (c *Client) ValidateToken(ctx context.Context) (User, error) {
	raw, err := c.do(ctx, http.MethodGet, c.SyncURL+"/user", nil, false)
	if err != nil {
		return User{}, err
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return User{}, fmt.Errorf("todoist: decode user: %w", err)
	}
	return u, nil
}

func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (Task, error) {
	if err := c.limiter.acquire(); err != nil {
		return Task{}, err
	}
	raw, err := c.do(ctx, http.MethodPost, c.BaseURL+"/tasks", req, true)
	if err != nil {
		return Task{}, err
	}
	var t Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return Task{}, fmt.Errorf("todoist: decode task: %w", err)
	}
	if c.Logger != nil {
		c.Logger.Info("todoist_task_created", "task_id", t.ID, "priority", t.Priority)
	}
	return t, nil
}

// GetTasks lists active tasks. filter uses Todoist's filter query syntax
// ("today", "p1", "overdue | today"). limit of 0 means no truncation.
func (c *Client) GetTasks(ctx context.Context, filter, projectID string, limit int) ([]Task, error) {
	if err := c.limiter.acquire(); err != nil {
		return nil, err
	}
	q := url.Values{}
	if filter != "" {
		q.Set("filter", filter)
	}
	if projectID != "" {
		q.Set("project_id", projectID)
	}
	endpoint := c.BaseURL + "/tasks"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	raw, err := c.do(ctx, http.MethodGet, endpoint, nil, false)
	if err != nil {
		return nil, err
	}
	var tasks []Task
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, fmt.Errorf("todoist: decode tasks: %w", err)
	}
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

func (c *Client) UpdateTask(ctx context.Context, id string, req UpdateTaskRequest) (Task, error) {
	if err := c.limiter.acquire(); err != nil {
		return Task{}, err
	}
	raw, err := c.do(ctx, http.MethodPost, c.BaseURL+"/tasks/"+id, req, true)
	if err != nil {
		return Task{}, err
	}
	var t Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return Task{}, fmt.Errorf("todoist: decode task: %w", err)
	}
	return t, nil
}

// CloseTask marks a task complete.
func (c *Client) CloseTask(ctx context.Context, id string) error {
	if err := c.limiter.acquire(); err != nil {
		return err
	}
	_, err := c.do(ctx, http.MethodPost, c.BaseURL+"/tasks/"+id+"/close", nil, true)
	return err
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	if err := c.limiter.acquire(); err != nil {
		return err
	}
	_, err := c.do(ctx, http.MethodDelete, c.BaseURL+"/tasks/"+id, nil, true)
	return err
}

// Projects returns all projects, served from a short-lived cache.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	c.cacheMu.Lock()
	if c.projects != nil && time.Now().Before(c.cacheExpiry) {
		cached := c.projects
		c.cacheMu.Unlock()
		return cached, nil
	}
	c.cacheMu.Unlock()

	if err := c.limiter.acquire(); err != nil {
		return nil, err
	}
	raw, err := c.do(ctx, http.MethodGet, c.BaseURL+"/projects", nil, false)
	if err != nil {
		return nil, err
	}
	var projects []Project
	if err := json.Unmarshal(raw, &projects); err != nil {
		return nil, fmt.Errorf("todoist: decode projects: %w", err)
	}

	c.cacheMu.Lock()
	c.projects = projects
	c.cacheExpiry = time.Now().Add(cacheTTL)
	c.cacheMu.Unlock()
	return projects, nil
}

// Labels returns all personal labels, served from the same cache window
// as Projects.
func (c *Client) Labels(ctx context.Context) ([]Label, error) {
	c.cacheMu.Lock()
	if c.labels != nil && time.Now().Before(c.cacheExpiry) {
		cached := c.labels
		c.cacheMu.Unlock()
		return cached, nil
	}
	c.cacheMu.Unlock()

	if err := c.limiter.acquire(); err != nil {
		return nil, err
	}
	raw, err := c.do(ctx, http.MethodGet, c.BaseURL+"/labels", nil, false)
	if err != nil {
		return nil, err
	}
	var labels []Label
	if err := json.Unmarshal(raw, &labels); err != nil {
		return nil, fmt.Errorf("todoist: decode labels: %w", err)
	}

	c.cacheMu.Lock()
	c.labels = labels
	c.cacheExpiry = time.Now().Add(cacheTTL)
	c.cacheMu.Unlock()
	return labels, nil
}

// ProjectByName resolves a project case-insensitively. A miss is not an
// error; the task just lands in the inbox.
func (c *Client) ProjectByName(ctx context.Context, name string) (Project, bool, error) {
	projects, err := c.Projects(ctx)
	if err != nil {
		return Project{}, false, err
	}
	for _, p := range projects {
		if strings.EqualFold(p.Name, name) {
			return p, true, nil
		}
	}
	return Project{}, false, nil
}

// InvalidateCache drops the cached projects and labels.
func (c *Client) InvalidateCache() {
	c.cacheMu.Lock()
	c.projects = nil
	c.labels = nil
	c.cacheExpiry = time.Time{}
	c.cacheMu.Unlock()
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, idempotent bool) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotent {
		req.Header.Set("X-Request-Id", uuid.NewString())
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("todoist: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("todoist: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrInvalidToken
	case resp.StatusCode == http.StatusForbidden:
		return nil, ErrQuotaExceeded
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := 60 * time.Second
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, &RateLimitError{RetryAfter: retryAfter}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return raw, nil
}
