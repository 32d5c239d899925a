package weatherapi

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/couchcryptid/open-data-elt/internal/domain"
)

// Source is the metrics and log label for WeatherAPI requests.
const Source = "weatherapi"

// Getter performs one JSON GET.
type Getter interface {
	GetJSON(ctx context.Context, source, endpoint string, params url.Values) (json.RawMessage, error)
}

// Client fetches daily weather history from WeatherAPI.com.
type Client struct {
	getter  Getter
	baseURL string
	apiKey  string
}

// NewClient creates a history client. An empty API key is a *domain.ConfigError.
// Plain http URLs are upgraded to https since the history endpoint expects TLS.
func NewClient(getter Getter, baseURL, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, &domain.ConfigError{Key: "API_KEY"}
	}
	if baseURL == "" {
		return nil, &domain.ConfigError{Key: "API_URL"}
	}
	if rest, ok := strings.CutPrefix(baseURL, "http://"); ok && isWeatherAPIHost(rest) {
		baseURL = "https://" + rest
	}
	return &Client{getter: getter, baseURL: baseURL, apiKey: apiKey}, nil
}

// History returns the raw history document for location on date (YYYY-MM-DD).
func (c *Client) History(ctx context.Context, location, date string) (json.RawMessage, error) {
	params := url.Values{
		"key": {c.apiKey},
		"q":   {location},
		"dt":  {date},
	}
	return c.getter.GetJSON(ctx, Source, c.baseURL, params)
}

// BaseURL returns the endpoint requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func isWeatherAPIHost(hostAndPath string) bool {
	host, _, _ := strings.Cut(hostAndPath, "/")
	return host == "api.weatherapi.com"
}
