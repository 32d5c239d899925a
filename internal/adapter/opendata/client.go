package opendata

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
)

// Source is the metrics and log label for open data requests.
const Source = "opendata"

// Getter performs one JSON GET.
type Getter interface {
	GetJSON(ctx context.Context, source, endpoint string, params url.Values) (json.RawMessage, error)
}

// Client fetches a rowstore dataset from a municipal open data portal.
type Client struct {
	getter Getter
	url    string
	logger *slog.Logger
}

// NewClient creates a client for the dataset at datasetURL.
func NewClient(getter Getter, datasetURL string, logger *slog.Logger) *Client {
	return &Client{getter: getter, url: datasetURL, logger: logger}
}

// URL returns the dataset URL recorded as the source of every raw record.
func (c *Client) URL() string {
	return c.url
}

// Dataset fetches the full dataset document verbatim.
func (c *Client) Dataset(ctx context.Context) (json.RawMessage, error) {
	body, err := c.getter.GetJSON(ctx, Source, c.url, nil)
	if err != nil {
		return nil, err
	}

	var head struct {
		ResultCount *int `json:"resultCount"`
	}
	if json.Unmarshal(body, &head) == nil && head.ResultCount != nil {
		c.logger.Info("fetched dataset", "url", c.url, "result_count", *head.ResultCount)
	}
	return body, nil
}
