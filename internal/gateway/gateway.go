// Package gateway provides the API gateway that routes requests to handlers.
package gateway

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/url"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/geonotify/backend/internal/config"
	"github.com/geonotify/backend/internal/models"
)

// hopHeaders are connection-scoped and never forwarded.
var hopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// Gateway provides the API gateway functionality.
type Gateway struct {
	cfg        *config.Config
	logger     *zap.Logger
	target     *url.URL
	httpClient *http.Client
}

// NewGateway creates a new API gateway.
func NewGateway(cfg *config.Config, logger *zap.Logger) (*Gateway, error) {
	target, err := url.Parse(cfg.HandlerURL)
	if err != nil {
		return nil, err
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, errors.New("handler URL must be absolute")
	}

	return &Gateway{
		cfg:    cfg,
		logger: logger,
		target: target,
		httpClient: &http.Client{
			Timeout: cfg.APITimeout * 2,
		},
	}, nil
}

// RegisterRoutes registers the gateway routes on the given router group.
func (g *Gateway) RegisterRoutes(rg *gin.RouterGroup) {
	for _, prefix := range []string{"/drafts", "/notifications", "/roles"} {
		rg.Any(prefix, g.proxyToHandler)
		rg.Any(prefix+"/*path", g.proxyToHandler)
	}
}

// proxyToHandler forwards requests to the handler service.
func (g *Gateway) proxyToHandler(c *gin.Context) {
	targetURL := *g.target
	targetURL.Path = c.Request.URL.Path
	targetURL.RawQuery = c.Request.URL.RawQuery

	g.logger.Debug("Proxying request",
		zap.String("method", c.Request.Method),
		zap.String("target", targetURL.String()),
	)

	var bodyBytes []byte
	if c.Request.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(c.Request.Body)
		if err != nil {
			g.logger.Error("Failed to read request body", zap.Error(err))
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   "internal_error",
				Message: "failed to read request body",
			})
			return
		}
	}

	proxyReq, err := http.NewRequestWithContext(
		c.Request.Context(),
		c.Request.Method,
		targetURL.String(),
		bytes.NewReader(bodyBytes),
	)
	if err != nil {
		g.logger.Error("Failed to create proxy request", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: "failed to create proxy request",
		})
		return
	}

	copyHeaders(proxyReq.Header, c.Request.Header)
	if len(bodyBytes) > 0 && proxyReq.Header.Get("Content-Type") == "" {
		proxyReq.Header.Set("Content-Type", "application/json")
	}
	proxyReq.Header.Set("X-Forwarded-For", c.ClientIP())

	resp, err := g.httpClient.Do(proxyReq)
	if err != nil {
		g.logger.Error("Failed to proxy request", zap.Error(err))

		if errors.Is(err, syscall.ECONNREFUSED) {
			c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
				Error:   "service_unavailable",
				Message: "handler service is not available",
			})
			return
		}

		c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Error:   "proxy_error",
			Message: "failed to reach handler service",
		})
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		g.logger.Error("Failed to read response body", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: "failed to read response",
		})
		return
	}

	for key, values := range resp.Header {
		if hopHeaders[key] || key == "Content-Length" {
			continue
		}
		for _, value := range values {
			c.Writer.Header().Add(key, value)
		}
	}

	c.Data(resp.StatusCode, resp.Header.Get("Content-Type"), respBody)
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		if hopHeaders[key] {
			continue
		}
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}
