package geocode

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"beacon/internal/config"
	"beacon/internal/domain/models"
	"beacon/internal/domain/services"
	"beacon/pkg/logger"
)

// Nominatim resolves city names through an OpenStreetMap Nominatim server.
// Requests are throttled to one per second as the public instance requires.
type Nominatim struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	logger     *logger.Logger
}

// NewNominatim creates a new Nominatim client
func NewNominatim(cfg config.GeocoderConfig, log *logger.Logger) *Nominatim {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "beacon/1.0"
	}

	return &Nominatim{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		logger:     log.WithComponent("geocoder"),
	}
}

// Geocode returns the best match for query. No match is services.ErrNotFound.
func (n *Nominatim) Geocode(ctx context.Context, query string) (*models.Coordinates, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read geocode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("geocoder returned invalid JSON")
	}

	first := gjson.GetBytes(body, "0")
	if !first.Exists() {
		return nil, fmt.Errorf("%w: no place named %q", services.ErrNotFound, query)
	}

	lat, latOK := coordinate(first.Get("lat"))
	lon, lonOK := coordinate(first.Get("lon"))
	if !latOK || !lonOK {
		return nil, fmt.Errorf("geocoder returned no coordinates for %q", query)
	}

	coords := &models.Coordinates{
		Latitude:  lat,
		Longitude: lon,
		Label:     first.Get("display_name").String(),
	}
	if !services.ValidCoordinates(coords.Latitude, coords.Longitude) {
		return nil, fmt.Errorf("geocoder returned invalid coordinates for %q", query)
	}

	n.logger.Debug().Str("query", query).Float64("lat", coords.Latitude).Float64("lng", coords.Longitude).Msg("geocoded")
	return coords, nil
}

// coordinate reads a lat/lon value; Nominatim sends them as strings
func coordinate(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Num, true
	case gjson.String:
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		return v, err == nil
	default:
		return 0, false
	}
}
