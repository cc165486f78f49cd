// Package apiclient talks to the upstream notification REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/geonotify/backend/internal/config"
	"github.com/geonotify/backend/internal/metrics"
	"github.com/geonotify/backend/internal/models"
)

// ErrNotFound is returned when the upstream API answers 404.
var ErrNotFound = errors.New("not found")

// StatusError is an unexpected upstream status code.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: upstream returned %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client defines the upstream operations used by the dashboard.
type Client interface {
	// ListNotifications returns every notification.
	ListNotifications(ctx context.Context) ([]models.Notification, error)

	// GetNotification returns one notification by ID.
	GetNotification(ctx context.Context, id string) (*models.Notification, error)

	// CreateNotification posts a new notification.
	CreateNotification(ctx context.Context, payload *models.NotificationPayload) (*models.Notification, error)

	// UpdateNotification replaces the notification with the given ID.
	UpdateNotification(ctx context.Context, id string, payload *models.NotificationPayload) (*models.Notification, error)

	// DeleteNotification removes a notification.
	DeleteNotification(ctx context.Context, id string) error

	// ListRoles returns the roles a notification can target.
	ListRoles(ctx context.Context) ([]models.Role, error)
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewHTTPClient creates a client for the configured upstream API.
func NewHTTPClient(cfg *config.Config, logger *zap.Logger) (Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.APIBaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse API base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("API base URL %q must be absolute", cfg.APIBaseURL)
	}

	limit := rate.Inf
	if cfg.APIRateLimit > 0 {
		limit = rate.Limit(cfg.APIRateLimit)
	}
	burst := cfg.APIRateLimit
	if burst < 1 {
		burst = 1
	}

	return &HTTPClient{
		baseURL:    base,
		token:      cfg.APIToken,
		httpClient: &http.Client{Timeout: cfg.APITimeout},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}, nil
}

// ListNotifications returns every notification.
func (c *HTTPClient) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	var notifications []models.Notification
	if err := c.do(ctx, http.MethodGet, "/notification", nil, &notifications); err != nil {
		return nil, err
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	return notifications, nil
}

// GetNotification returns one notification by ID.
func (c *HTTPClient) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	if err := c.do(ctx, http.MethodGet, "/notification/"+url.PathEscape(id), nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateNotification posts a new notification.
func (c *HTTPClient) CreateNotification(ctx context.Context, payload *models.NotificationPayload) (*models.Notification, error) {
	var n models.Notification
	if err := c.do(ctx, http.MethodPost, "/notification", payload, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// UpdateNotification replaces the notification with the given ID.
func (c *HTTPClient) UpdateNotification(ctx context.Context, id string, payload *models.NotificationPayload) (*models.Notification, error) {
	var n models.Notification
	if err := c.do(ctx, http.MethodPut, "/notification/"+url.PathEscape(id), payload, &n); err != nil {
		return nil, err
	}
	if n.ID == "" {
		n.ID = id
	}
	return &n, nil
}

// DeleteNotification removes a notification.
func (c *HTTPClient) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/notification/"+url.PathEscape(id), nil, nil)
}

// ListRoles returns the roles a notification can target.
func (c *HTTPClient) ListRoles(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := c.do(ctx, http.MethodGet, "/role", nil, &roles); err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []models.Role{}
	}
	return roles, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	target := *c.baseURL
	target.Path = c.baseURL.Path + path

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamDurationMs.WithLabelValues(method).Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		c.logger.Error("Upstream request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.Debug("Upstream request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
