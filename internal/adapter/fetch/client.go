// Package fetch performs the single, unretried HTTP GET that every upstream
// source goes through.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/open-data-elt/internal/domain"
	"github.com/couchcryptid/open-data-elt/internal/observability"
)

const (
	maxBodyBytes  = 64 << 20
	maxErrorBytes = 512
)

// Client issues JSON GET requests with a bounded timeout.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a fetch client. The timeout bounds the whole request,
// body included.
func NewClient(timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// GetJSON fetches endpoint with params and returns the body verbatim.
// Network failures, non-2xx statuses and non-JSON bodies are reported as
// *domain.TransportError. Query values never appear in errors or logs, since
// they may carry credentials.
func (c *Client) GetJSON(ctx context.Context, source, endpoint string, params url.Values) (json.RawMessage, error) {
	start := time.Now()
	body, err := c.get(ctx, endpoint, params)
	c.metrics.FetchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	c.metrics.FetchRequests.WithLabelValues(source, observability.Outcome(err)).Inc()
	if err != nil {
		c.logger.Error("fetch failed", "source", source, "endpoint", endpoint, "error", err)
		return nil, err
	}
	c.logger.Info("fetched", "source", source, "bytes", len(body), "duration", time.Since(start))
	return body, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, &domain.TransportError{Endpoint: endpoint, Err: fmt.Errorf("parse url: %w", err)}
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &domain.TransportError{Endpoint: endpoint, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// *url.Error embeds the full URL, query included.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, &domain.TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.TransportError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Err:        errors.New(truncate(body)),
		}
	}
	if !json.Valid(body) {
		return nil, &domain.TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: errors.New("response body is not JSON")}
	}
	return body, nil
}

func truncate(body []byte) string {
	if len(body) > maxErrorBytes {
		return string(body[:maxErrorBytes]) + "..."
	}
	return string(body)
}
