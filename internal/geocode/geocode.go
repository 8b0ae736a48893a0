// Package geocode resolves free-text addresses to coordinates through a
// Nominatim-compatible search endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"limstreat/internal/apperr"
	"limstreat/internal/models"
)

// Nominatim settings used when the config leaves them empty.
const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "limstreat-app"
	DefaultTimeout   = 8 * time.Second
)

// Client performs one search request per Resolve call. No retries.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// New returns a Client. Empty arguments take the package defaults.
func New(baseURL, userAgent string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		http:      &http.Client{Timeout: timeout},
	}
}

type place struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Resolve returns the first match for address. Any transport error, non-2xx status,
// malformed body or empty result is reported as apperr.GeocodeNotFound.
func (c *Client) Resolve(ctx context.Context, address string) (models.Coordinates, error) {
	coords, err := c.search(ctx, address)
	if err != nil {
		return models.Coordinates{}, apperr.Wrap(apperr.GeocodeNotFound,
			"주소를 찾지 못했어요. 더 구체적으로 입력해 주세요. (예: 도로명 + 건물번호)", err)
	}
	return coords, nil
}

func (c *Client) search(ctx context.Context, address string) (models.Coordinates, error) {
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return models.Coordinates{}, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Coordinates{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Coordinates{}, fmt.Errorf("geocoder returned %s", resp.Status)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return models.Coordinates{}, fmt.Errorf("decode geocoder response: %w", err)
	}
	if len(places) == 0 {
		return models.Coordinates{}, fmt.Errorf("no match for %q", address)
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("parse lat: %w", err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("parse lon: %w", err)
	}
	return models.Coordinates{Lat: lat, Lon: lon}, nil
}
