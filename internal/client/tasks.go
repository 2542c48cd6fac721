package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/BuzzLyutic/taskmaster/internal/model"
)

func (c *Client) List(ctx context.Context, userID string) ([]model.Task, error) {
	q := url.Values{}
	q.Set("user_id", userID)

	var tasks []model.Task
	err := c.do(ctx, c.authed, http.MethodGet, "/api/tasks?"+q.Encode(), nil, &tasks)
	return tasks, err
}

type createRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// Create posts t. The server assigns id, status, created_at and owner.
func (c *Client) Create(ctx context.Context, t model.Task) (model.Task, error) {
	req := createRequest{Title: t.Title, Description: t.Description, DueDate: t.DueDate}

	var out model.Task
	err := c.do(ctx, c.authed, http.MethodPost, "/api/tasks", req, &out)
	return out, err
}

type updateRequest struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      model.Status `json:"status"`
}

// Update sends the mutable fields of t. The row is addressed by id; the
// server scopes it to the token's owner.
func (c *Client) Update(ctx context.Context, t model.Task) (model.Task, error) {
	var out model.Task
	err := c.do(ctx, c.authed, http.MethodPut, "/api/tasks/"+url.PathEscape(t.ID),
		updateRequest{Title: t.Title, Description: t.Description, Status: t.Status}, &out)
	return out, err
}

func (c *Client) Delete(ctx context.Context, _ string, id string) error {
	return c.do(ctx, c.authed, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil)
}
