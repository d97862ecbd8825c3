package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fieldops-backend/models"
)

// Client is a typed HTTP client for the work order API. It is the transport
// half of the local-first cache; the reconciliation logic lives in Manager.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults. BaseURL should include the API
// base path, e.g. "http://localhost:8081/api/v1".
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// APIError wraps non-2xx responses with the server's error taxonomy kind.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
	Field      string
	Retryable  bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d kind=%s message=%s", e.StatusCode, e.Kind, e.Message)
}

type envelope struct {
	Status     string             `json:"status"`
	Code       int                `json:"code"`
	Message    string             `json:"message,omitempty"`
	Data       json.RawMessage    `json:"data,omitempty"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
	Error      *models.APIError   `json:"error,omitempty"`
}

// ListOptions mirrors the listing endpoint's query parameters.
type ListOptions struct {
	Status           string
	TaskType         string
	MaintenanceType  string
	Priority         string
	Location         string
	Assignee         string
	ProjectID        string
	PointID          string
	Search           string
	IncludeCancelled bool
	Page             int
	Limit            int
	SortBy           string
	SortDesc         bool
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set("status", o.Status)
	set("task_type", o.TaskType)
	set("maintenance_type", o.MaintenanceType)
	set("priority", o.Priority)
	set("location", o.Location)
	set("assignee", o.Assignee)
	set("project_id", o.ProjectID)
	set("point_id", o.PointID)
	set("q", o.Search)
	if o.IncludeCancelled {
		q.Set("include_cancelled", "true")
	}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	set("sort_by", o.SortBy)
	if o.SortDesc {
		q.Set("sort_dir", "desc")
	}
	return q
}

// CreateWorkOrder creates a work order.
func (c *Client) CreateWorkOrder(ctx context.Context, req *models.CreateWorkOrderRequest) (*models.WorkOrder, error) {
	var wo models.WorkOrder
	if err := c.do(ctx, http.MethodPost, "/workorders", nil, req, &wo); err != nil {
		return nil, err
	}
	return &wo, nil
}

// GetWorkOrder fetches one work order.
func (c *Client) GetWorkOrder(ctx context.Context, id string) (*models.WorkOrder, error) {
	var wo models.WorkOrder
	if err := c.do(ctx, http.MethodGet, "/workorders/"+url.PathEscape(id), nil, nil, &wo); err != nil {
		return nil, err
	}
	return &wo, nil
}

// ListWorkOrders fetches a page of work orders.
func (c *Client) ListWorkOrders(ctx context.Context, opts ListOptions) ([]*models.WorkOrder, *models.Pagination, error) {
	var items []*models.WorkOrder
	pagination, err := c.doList(ctx, "/workorders", opts.query(), &items)
	if err != nil {
		return nil, nil, err
	}
	return items, pagination, nil
}

// UpdateWorkOrder applies a whitelisted patch.
func (c *Client) UpdateWorkOrder(ctx context.Context, id string, req *models.UpdateWorkOrderRequest) (*models.WorkOrder, error) {
	var wo models.WorkOrder
	if err := c.do(ctx, http.MethodPatch, "/workorders/"+url.PathEscape(id), nil, req, &wo); err != nil {
		return nil, err
	}
	return &wo, nil
}

// CancelWorkOrder soft deletes a work order.
func (c *Client) CancelWorkOrder(ctx context.Context, id string) (*models.WorkOrder, error) {
	var wo models.WorkOrder
	if err := c.do(ctx, http.MethodDelete, "/workorders/"+url.PathEscape(id), nil, nil, &wo); err != nil {
		return nil, err
	}
	return &wo, nil
}

// CompleteStage marks a stage complete with evidence.
func (c *Client) CompleteStage(ctx context.Context, id string, req *models.CompleteStageRequest) (*models.WorkOrder, error) {
	var wo models.WorkOrder
	if err := c.do(ctx, http.MethodPost, "/workorders/"+url.PathEscape(id)+"/stages/complete", nil, req, &wo); err != nil {
		return nil, err
	}
	return &wo, nil
}

// RequestSupport flags a work order for support.
func (c *Client) RequestSupport(ctx context.Context, id string, req *models.RequestSupportRequest) (*models.WorkOrder, error) {
	var wo models.WorkOrder
	if err := c.do(ctx, http.MethodPost, "/workorders/"+url.PathEscape(id)+"/support", nil, req, &wo); err != nil {
		return nil, err
	}
	return &wo, nil
}

// RegisterReport records the report reference.
func (c *Client) RegisterReport(ctx context.Context, id string, req *models.RegisterReportRequest) (*models.WorkOrder, error) {
	var wo models.WorkOrder
	if err := c.do(ctx, http.MethodPost, "/workorders/"+url.PathEscape(id)+"/report", nil, req, &wo); err != nil {
		return nil, err
	}
	return &wo, nil
}

// History fetches a page of audit records, newest first.
func (c *Client) History(ctx context.Context, id string, page, limit int) ([]*models.AuditRecord, *models.Pagination, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var items []*models.AuditRecord
	pagination, err := c.doList(ctx, "/workorders/"+url.PathEscape(id)+"/history", q, &items)
	if err != nil {
		return nil, nil, err
	}
	return items, pagination, nil
}

// ListSupportRequests fetches the support-request projection.
func (c *Client) ListSupportRequests(ctx context.Context) ([]*models.WorkOrder, error) {
	var items []*models.WorkOrder
	if _, err := c.doList(ctx, "/support-requests", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	env, err := c.roundTrip(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

func (c *Client) doList(ctx context.Context, path string, query url.Values, out interface{}) (*models.Pagination, error) {
	env, err := c.roundTrip(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode response data: %w", err)
		}
	}
	return env.Pagination, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body interface{}) (*envelope, error) {
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: c.Timeout}
	}

	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: string(raw)}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: env.Message}
		if env.Error != nil {
			apiErr.Kind = env.Error.Type
			apiErr.Message = env.Error.Details
			apiErr.Field = env.Error.Field
			apiErr.Retryable = env.Error.Retryable
		}
		return nil, apiErr
	}
	return &env, nil
}
