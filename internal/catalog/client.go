// Package catalog talks to the catalog gateway, which owns partition
// documents and the stock notification log.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"aurelia/internal/domain"
)

// Client is a typed client for the catalog gateway API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithTimeout sets the HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.HTTPClient.Timeout = d }
}

// WithHTTPClient swaps the underlying transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// NewClient creates a gateway client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return 0, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "call gateway")
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, errors.Wrap(err, "decode response")
		}
	}
	return resp.StatusCode, nil
}

// FetchPartition reads a whole partition document by category.
func (c *Client) FetchPartition(ctx context.Context, category string) (*domain.PartitionDoc, error) {
	var doc domain.PartitionDoc
	path := "/api/v1/partition?category=" + url.QueryEscape(category)
	status, err := c.do(ctx, http.MethodGet, path, nil, &doc)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch partition %s", category)
	}
	if status == http.StatusNotFound {
		return nil, domain.ErrPartitionNotFound
	}
	if status != http.StatusOK {
		return nil, errors.Errorf("fetch partition %s: status %d", category, status)
	}
	return &doc, nil
}

// UpdateStock writes a whole partition back with one product's stock mutated.
// A version mismatch at the gateway comes back as ErrConflict so the caller
// can re-read and retry.
func (c *Client) UpdateStock(ctx context.Context, req domain.StockUpdateRequest) error {
	var out domain.StockUpdateResponse
	status, err := c.do(ctx, http.MethodPost, "/api/v1/update-stock", req, &out)
	if err != nil {
		return errors.Wrapf(err, "update stock %s", req.ProductID)
	}
	switch {
	case status == http.StatusConflict:
		return domain.ErrConflict
	case status == http.StatusNotFound:
		return domain.ErrPartitionNotFound
	case status >= 400 || !out.Success:
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(status)
		}
		return errors.Errorf("update stock %s: %s", req.ProductID, msg)
	}
	return nil
}

type alertEnvelope struct {
	Action       string             `json:"action"`
	Notification *domain.StockAlert `json:"notification,omitempty"`
	ID           string             `json:"id,omitempty"`
}

// PushAlert appends a stock alert to the gateway's capped notification log.
func (c *Client) PushAlert(ctx context.Context, alert domain.StockAlert) error {
	env := alertEnvelope{Action: "add", Notification: &alert}
	var out domain.StockUpdateResponse
	status, err := c.do(ctx, http.MethodPost, "/api/v1/alerts", env, &out)
	if err != nil {
		return errors.Wrap(err, "push alert")
	}
	if status >= 400 || !out.Success {
		return errors.Errorf("push alert: status %d %s", status, out.Error)
	}
	return nil
}

// Alerts lists the notification log, newest first.
func (c *Client) Alerts(ctx context.Context) ([]domain.StockAlert, error) {
	var out []domain.StockAlert
	status, err := c.do(ctx, http.MethodGet, "/api/v1/alerts", nil, &out)
	if err != nil {
		return nil, errors.Wrap(err, "list alerts")
	}
	if status != http.StatusOK {
		return nil, errors.Errorf("list alerts: status %d", status)
	}
	return out, nil
}

// MarkAlertRead flags one notification as read.
func (c *Client) MarkAlertRead(ctx context.Context, id string) error {
	env := alertEnvelope{Action: "markRead", ID: id}
	var out domain.StockUpdateResponse
	status, err := c.do(ctx, http.MethodPost, "/api/v1/alerts", env, &out)
	if err != nil {
		return errors.Wrap(err, "mark alert read")
	}
	if status >= 400 || !out.Success {
		return errors.Errorf("mark alert read: status %d %s", status, out.Error)
	}
	return nil
}

// MarkAllAlertsRead flags every notification as read.
func (c *Client) MarkAllAlertsRead(ctx context.Context) error {
	env := alertEnvelope{Action: "markAllRead"}
	var out domain.StockUpdateResponse
	status, err := c.do(ctx, http.MethodPost, "/api/v1/alerts", env, &out)
	if err != nil {
		return errors.Wrap(err, "mark all alerts read")
	}
	if status >= 400 || !out.Success {
		return errors.Errorf("mark all alerts read: status %d %s", status, out.Error)
	}
	return nil
}

// Restock replaces or creates a partition document wholesale. Used by the
// admin surface to load stock.
func (c *Client) Restock(ctx context.Context, doc domain.PartitionDoc) error {
	var out domain.StockUpdateResponse
	status, err := c.do(ctx, http.MethodPost, "/api/v1/partition", doc, &out)
	if err != nil {
		return errors.Wrapf(err, "restock %s", doc.Category)
	}
	if status >= 400 || !out.Success {
		return errors.Errorf("restock %s: status %d %s", doc.Category, status, out.Error)
	}
	return nil
}
