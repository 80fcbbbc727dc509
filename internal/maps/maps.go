// Package maps wraps the external geocoding provider. The HTTP client
// speaks the Nominatim search API, which both suggestions and geocoding
// ride on.
package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/example/ride-hail/internal/apperr"
	"github.com/example/ride-hail/internal/models"
)

type Client interface {
	Geocode(ctx context.Context, address string) (models.Coord, error)
	Suggestions(ctx context.Context, input string) ([]string, error)
}

type HTTPClient struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPClient(endpoint string) *HTTPClient {
	return &HTTPClient{Endpoint: endpoint, Client: &http.Client{Timeout: 3 * time.Second}}
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (c *HTTPClient) search(ctx context.Context, query string, limit int) ([]searchResult, error) {
	u := fmt.Sprintf("%s/search?q=%s&format=json&limit=%d", c.Endpoint, url.QueryEscape(query), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "geocoding provider unreachable")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.KindUpstream, "geocoding provider status %d", resp.StatusCode)
	}
	var out []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "bad geocoding response")
	}
	return out, nil
}

func (c *HTTPClient) Geocode(ctx context.Context, address string) (models.Coord, error) {
	res, err := c.search(ctx, address, 1)
	if err != nil {
		return models.Coord{}, err
	}
	if len(res) == 0 {
		return models.Coord{}, apperr.New(apperr.KindUpstream, "no geocoding result for %q", address)
	}
	lat, err1 := strconv.ParseFloat(res[0].Lat, 64)
	lon, err2 := strconv.ParseFloat(res[0].Lon, 64)
	if err1 != nil || err2 != nil {
		return models.Coord{}, apperr.New(apperr.KindUpstream, "malformed coordinates for %q", address)
	}
	return models.Coord{Lat: lat, Lon: lon}, nil
}

func (c *HTTPClient) Suggestions(ctx context.Context, input string) ([]string, error) {
	res, err := c.search(ctx, input, 5)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(res))
	for _, r := range res {
		out = append(out, r.DisplayName)
	}
	return out, nil
}
