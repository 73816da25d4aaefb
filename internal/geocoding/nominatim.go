package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"itinerary-planner/internal/database"
	"itinerary-planner/internal/models"
	"itinerary-planner/internal/platform/obs"
)

const (
	serviceName = "nominatim"

	// DefaultBaseURL is the public Nominatim server
	DefaultBaseURL = "https://nominatim.openstreetmap.org"
	// DefaultUserAgent identifies the app, as Nominatim's usage policy requires
	DefaultUserAgent = "ItineraryPlanner/1.0"

	defaultSharedTimeout = 30 * time.Second
)

// GeocodingResult contains the result of a geocoding operation
type GeocodingResult struct {
	Coords      models.Coordinates
	DisplayName string
}

// Name returns the leading component of the display name
func (r *GeocodingResult) Name() string {
	return ShortName(r.DisplayName)
}

// Geocoder resolves a free-text query to its best match
type Geocoder interface {
	Search(ctx context.Context, query string) (*GeocodingResult, error)
}

type nominatimGeocoder struct {
	baseURL     string
	userAgent   string
	httpClient  *http.Client
	rateLimiter *time.Ticker
	cache       database.GeocodeCacheRepository
	inflight    singleflight.Group
}

type nominatimResponse struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NewNominatimGeocoder creates a Nominatim geocoder limited to one request per
// second. cache may be nil.
func NewNominatimGeocoder(baseURL, userAgent string, timeout time.Duration, cache database.GeocodeCacheRepository) Geocoder {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &nominatimGeocoder{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		rateLimiter: time.NewTicker(1 * time.Second),
		cache:       cache,
	}
}

// ShortName truncates a multi-part display name to its first component
func ShortName(displayName string) string {
	first, _, _ := strings.Cut(displayName, ",")
	return strings.TrimSpace(first)
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

func (g *nominatimGeocoder) Search(ctx context.Context, query string) (*GeocodingResult, error) {
	key := normalizeQuery(query)
	if key == "" {
		return nil, models.NewServiceError(serviceName, models.KindNotFound, "empty query")
	}

	if g.cache != nil {
		cached, err := g.cache.GetMany(ctx, []string{key})
		if err != nil {
			log.Printf("[GEOCODING] Cache read failed: query=%s err=%v", key, err)
		} else if entry, ok := cached[key]; ok {
			log.Printf("[GEOCODING] Cache hit: query=%s", key)
			return &GeocodingResult{Coords: entry.Coords, DisplayName: entry.DisplayName}, nil
		}
	}

	// The lookup is shared, so it runs detached from the caller that
	// started it. Each caller still stops waiting when its own ctx ends.
	ch := g.inflight.DoChan(key, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.sharedTimeout())
		defer cancel()
		return g.lookup(lookupCtx, key)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, models.NetworkFailure(serviceName, ctx.Err())
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		log.Printf("[GEOCODING] Shared in-flight lookup: query=%s", key)
	}

	result := *res.Val.(*GeocodingResult)
	return &result, nil
}

// sharedTimeout covers one rate limiter slot plus the HTTP request
func (g *nominatimGeocoder) sharedTimeout() time.Duration {
	if g.httpClient.Timeout <= 0 {
		return defaultSharedTimeout
	}
	return g.httpClient.Timeout + time.Second
}

func (g *nominatimGeocoder) lookup(ctx context.Context, query string) (_ *GeocodingResult, err error) {
	defer obs.Time(ctx, "nominatim.search")(&err)

	select {
	case <-g.rateLimiter.C:
	case <-ctx.Done():
		return nil, models.NetworkFailure(serviceName, ctx.Err())
	}

	queryURL := fmt.Sprintf("%s/search?q=%s&format=json&limit=1", g.baseURL, url.QueryEscape(query))
	log.Printf("[GEOCODING] Request: query=%s url=%s", query, queryURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		log.Printf("[ERROR] Failed to create geocoding request: query=%s err=%v", query, err)
		return nil, models.NewServiceError(serviceName, models.KindMalformed, "build request: %v", err)
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		log.Printf("[ERROR] Geocoding API request failed: query=%s err=%v", query, err)
		return nil, models.NetworkFailure(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Printf("[ERROR] Geocoding API error: query=%s status=%d body=%s", query, resp.StatusCode, string(body))
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return nil, models.NewServiceError(serviceName, models.KindNetwork, "HTTP %d", resp.StatusCode)
		}
		return nil, models.NewServiceError(serviceName, models.KindMalformed, "HTTP %d: %s", resp.StatusCode, string(body))
	}

	var results []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		log.Printf("[ERROR] Failed to decode geocoding response: query=%s err=%v", query, err)
		return nil, &models.ServiceError{Service: serviceName, Kind: models.KindMalformed, Reason: "decode response: " + err.Error(), Err: err}
	}

	if len(results) == 0 {
		log.Printf("[GEOCODING] No results found: query=%s", query)
		return nil, models.NewServiceError(serviceName, models.KindNotFound, "no results for %q", query)
	}

	best := results[0]
	lat, err := strconv.ParseFloat(strings.TrimSpace(best.Lat), 64)
	if err != nil {
		log.Printf("[ERROR] Invalid latitude in geocoding response: query=%s lat=%s err=%v", query, best.Lat, err)
		return nil, models.NewServiceError(serviceName, models.KindMalformed, "invalid latitude %q", best.Lat)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(best.Lon), 64)
	if err != nil {
		log.Printf("[ERROR] Invalid longitude in geocoding response: query=%s lng=%s err=%v", query, best.Lon, err)
		return nil, models.NewServiceError(serviceName, models.KindMalformed, "invalid longitude %q", best.Lon)
	}

	result := &GeocodingResult{
		Coords:      models.Coordinates{Lat: lat, Lng: lng},
		DisplayName: best.DisplayName,
	}
	if !result.Coords.Valid() {
		return nil, models.NewServiceError(serviceName, models.KindMalformed, "coordinates out of range: %s,%s", best.Lat, best.Lon)
	}

	log.Printf("[GEOCODING] Response: query=%s lat=%.6f lng=%.6f display_name=%s", query, lat, lng, best.DisplayName)

	if g.cache != nil {
		entry := models.GeocodeCacheEntry{Query: query, DisplayName: result.DisplayName, Coords: result.Coords}
		if err := g.cache.PutMany(ctx, []models.GeocodeCacheEntry{entry}); err != nil {
			log.Printf("[GEOCODING] Cache write failed: query=%s err=%v", query, err)
		}
	}
	return result, nil
}
