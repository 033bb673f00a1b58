// Package rest implements the task store adapter against the remote REST
// API, including the schema probe that lets metrics degrade gracefully
// when the backing table is missing expected columns.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tasklabs/taskmate/internal/store"
	"github.com/tasklabs/taskmate/internal/task"
)

// Options configure the client. BaseURL is required; Realtime gates the
// websocket feed.
type Options struct {
	BaseURL  string
	APIKey   string
	Realtime bool
	Timeout  time.Duration
}

type Client struct {
	baseURL  string
	apiKey   string
	realtime bool
	httpc    *http.Client
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		apiKey:   opts.APIKey,
		realtime: opts.Realtime,
		httpc:    &http.Client{Timeout: timeout},
	}
}

// RealtimeAvailable reports whether the push feed can be used. When false
// the synchronization core falls back to manual or polled refresh.
func (c *Client) RealtimeAvailable() bool {
	return c.realtime && c.baseURL != ""
}

func (c *Client) List(ctx context.Context, crit task.Criteria) ([]task.Task, error) {
	q := url.Values{}
	if crit.Status != "" {
		q.Set("status", string(crit.Status))
	}
	if crit.Search != "" {
		q.Set("search", crit.Search)
	}
	if crit.Order.Column != "" {
		q.Set("order", string(crit.Order.Column))
	}
	if crit.Order.Ascending {
		q.Set("dir", "asc")
	}

	var tasks []task.Task
	if err := c.do(ctx, http.MethodGet, "/tasks", q, nil, &tasks, http.StatusOK); err != nil {
		return nil, store.Queryf("list tasks", err)
	}
	for i := range tasks {
		normalize(&tasks[i])
	}
	return tasks, nil
}

func (c *Client) Get(ctx context.Context, id string) (*task.Task, error) {
	if id == "" {
		return nil, store.Validationf("get task: id is required")
	}

	var t task.Task
	err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, nil, &t, http.StatusOK)
	if err != nil {
		var se *statusError
		if asStatus(err, &se) && se.code == http.StatusNotFound {
			return nil, nil
		}
		return nil, store.Queryf(fmt.Sprintf("get task %s", id), err)
	}
	normalize(&t)
	return &t, nil
}

func (c *Client) Create(ctx context.Context, in task.CreateInput) (*task.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, store.Validationf("create task: title is required")
	}
	if in.Status == "" {
		in.Status = task.StatusTodo
	}

	var t task.Task
	if err := c.do(ctx, http.MethodPost, "/tasks", nil, in, &t, http.StatusCreated); err != nil {
		return nil, store.Queryf("create task", err)
	}
	normalize(&t)
	return &t, nil
}

func (c *Client) Update(ctx context.Context, id string, p task.Patch) (*task.Task, error) {
	if id == "" {
		return nil, store.Validationf("update task: id is required")
	}
	if p.IsEmpty() {
		return nil, store.Validationf("update task: patch must contain at least one field")
	}

	var t task.Task
	if err := c.do(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(id), nil, p, &t, http.StatusOK); err != nil {
		return nil, store.Queryf(fmt.Sprintf("update task %s", id), err)
	}
	normalize(&t)
	return &t, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	if id == "" {
		return store.Validationf("delete task: id is required")
	}

	err := c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil, nil, http.StatusNoContent)
	if err != nil {
		var se *statusError
		// Deleting an already-absent id counts as success.
		if asStatus(err, &se) && se.code == http.StatusNotFound {
			return nil
		}
		return store.Queryf(fmt.Sprintf("delete task %s", id), err)
	}
	return nil
}

// Metrics probes the remote schema first: a missing status or due_date
// column degrades that portion of the result to zero/empty instead of
// failing the whole call.
func (c *Client) Metrics(ctx context.Context) (task.Metrics, error) {
	m := task.EmptyMetrics()

	var cols struct {
		Columns []string `json:"columns"`
	}
	if err := c.do(ctx, http.MethodGet, "/columns", nil, nil, &cols, http.StatusOK); err != nil {
		return m, store.Queryf("probe task columns", err)
	}

	hasStatus := contains(cols.Columns, "status")
	hasDue := contains(cols.Columns, "due_date")

	if hasStatus {
		q := url.Values{}
		q.Set("select", "status")
		var rows []struct {
			Status string `json:"status"`
		}
		if err := c.do(ctx, http.MethodGet, "/tasks", q, nil, &rows, http.StatusOK); err != nil {
			log.Printf("[rest] metrics: status histogram failed, continuing with empty: %v", err)
		} else {
			for _, r := range rows {
				m.StatusCounts[task.NormalizeStatus(r.Status)]++
			}
		}
	} else {
		log.Printf("[rest] metrics: tasks table has no status column, statusCounts empty")
	}

	if hasDue {
		today := task.Today().String()

		q := url.Values{}
		q.Set("due", today)
		if n, err := c.count(ctx, q); err != nil {
			log.Printf("[rest] metrics: due-today count failed, defaulting to 0: %v", err)
		} else {
			m.DueToday = n
		}

		q = url.Values{}
		q.Set("due_before", today)
		if hasStatus {
			q.Set("exclude_status", string(task.StatusDone))
		}
		if n, err := c.count(ctx, q); err != nil {
			log.Printf("[rest] metrics: overdue count failed, defaulting to 0: %v", err)
		} else {
			m.Overdue = n
		}
	} else {
		log.Printf("[rest] metrics: tasks table has no due_date column, dueToday/overdue default to 0")
	}

	return m, nil
}

func (c *Client) count(ctx context.Context, q url.Values) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/tasks/count", q, nil, &out, http.StatusOK); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// statusError carries a non-2xx response so callers can branch on the code.
type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string {
	if e.msg != "" {
		return fmt.Sprintf("http %d: %s", e.code, e.msg)
	}
	return fmt.Sprintf("http %d", e.code)
}

func asStatus(err error, target **statusError) bool {
	se, ok := err.(*statusError)
	if ok {
		*target = se
	}
	return ok
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any, wantStatus int) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(data, &apiErr)
		return &statusError{code: resp.StatusCode, msg: apiErr.Error}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// normalize enforces the closed Task shape at the adapter boundary so
// loosely-typed rows never leak into the core.
func normalize(t *task.Task) {
	t.Status = task.NormalizeStatus(string(t.Status))
	t.Title = strings.TrimSpace(t.Title)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
