// Package geocode resolves free-text locations to coordinates using the
// positionstack forward-geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "http://api.positionstack.com"
	defaultTimeout = 10 * time.Second
)

var (
	// ErrNotFound is returned when the service has no result for a query.
	ErrNotFound = errors.New("location not found")
	// ErrUnavailable wraps transport failures, non-2xx responses and
	// malformed bodies.
	ErrUnavailable = errors.New("geocoding service unavailable")
)

// Point is a resolved coordinate pair.
type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Geocoder resolves a location string to a Point.
type Geocoder interface {
	Lookup(ctx context.Context, query string) (Point, error)
}

// Client calls the positionstack forward endpoint.
type Client struct {
	httpClient *http.Client
	apiKey     string

	// Overridable for testing.
	baseURL string
}

// NewClient creates a geocoding client. An empty baseURL or zero timeout
// selects the defaults.
func NewClient(apiKey, baseURL string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("geocoding API key is required")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}, nil
}

// forwardResponse is the positionstack forward response. When nothing
// matches, data is sometimes `[]` and sometimes `[[]]`, so each entry is
// decoded lazily.
type forwardResponse struct {
	Data []json.RawMessage `json:"data"`
}

type forwardResult struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Lookup returns the first match for query. An empty query is ErrNotFound
// without a request.
func (c *Client) Lookup(ctx context.Context, query string) (p Point, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Point{}, ErrNotFound
	}

	params := url.Values{
		"access_key": {c.apiKey},
		"query":      {query},
		"limit":      {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/v1/forward?"+params.Encode(), nil)
	if err != nil {
		return Point{}, fmt.Errorf("%w: creating request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Point{}, fmt.Errorf("%w: sending request: %v", ErrUnavailable, stripKey(err, c.apiKey))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: closing body: %v", ErrUnavailable, closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Point{}, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var body forwardResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Point{}, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}

	if len(body.Data) == 0 {
		return Point{}, ErrNotFound
	}

	var first forwardResult
	if err := json.Unmarshal(body.Data[0], &first); err != nil {
		// `[[]]` decodes as an array, not an object.
		return Point{}, ErrNotFound
	}
	if first.Latitude == nil || first.Longitude == nil {
		return Point{}, ErrNotFound
	}

	p = Point{Lat: *first.Latitude, Lng: *first.Longitude}
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return Point{}, fmt.Errorf("%w: coordinates out of range", ErrUnavailable)
	}
	return p, nil
}

// stripKey keeps the access key out of logged transport errors, which
// include the request URL.
func stripKey(err error, key string) string {
	return strings.ReplaceAll(err.Error(), url.QueryEscape(key), "REDACTED")
}
