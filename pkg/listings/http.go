package listings

import (
	"context"
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"

	"github.com/AlsakaSoftware/ijar/pkg/httpclient"
	"github.com/AlsakaSoftware/ijar/pkg/models"
	"github.com/AlsakaSoftware/ijar/pkg/tracing"
)

// kmPerDegreeLat is the surface distance of one degree of latitude.
const kmPerDegreeLat = 111.32

// browserHeaders are sent on every upstream request. The source serves compressed,
// browser-targeted responses; the encodings listed here are all decoded by httpclient.
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Accept":          "application/json",
	"Accept-Language": "en-GB,en;q=0.9",
	"Accept-Encoding": "gzip, deflate, br",
}

// HTTPClient is the production listing source client.
type HTTPClient struct {
	http           *httpclient.Client
	baseURL        string
	logger         ectologger.Logger
	searchTimeout  time.Duration
	detailsTimeout time.Duration
	maxRetries     uint64
}

// HTTPClientConfig holds upstream source settings.
type HTTPClientConfig struct {
	BaseURL        string
	SearchTimeout  time.Duration
	DetailsTimeout time.Duration
	MaxRetries     int
}

// NewHTTPClient creates a listing source client against the given base URL.
func NewHTTPClient(cfg HTTPClientConfig, httpClient *httpclient.Client, logger ectologger.Logger) *HTTPClient {
	searchTimeout := cfg.SearchTimeout
	if searchTimeout <= 0 {
		searchTimeout = 30 * time.Second
	}
	detailsTimeout := cfg.DetailsTimeout
	if detailsTimeout <= 0 {
		detailsTimeout = 60 * time.Second
	}

	return &HTTPClient{
		http:           httpClient,
		baseURL:        cfg.BaseURL,
		logger:         logger,
		searchTimeout:  searchTimeout,
		detailsTimeout: detailsTimeout,
		maxRetries:     uint64(cfg.MaxRetries),
	}
}

type agentPayload struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Branch string `json:"branch"`
}

type propertyPayload struct {
	ID           string       `json:"id"`
	Address      string       `json:"address"`
	Area         string       `json:"area"`
	PriceDisplay string       `json:"price"`
	Bedrooms     int          `json:"bedrooms"`
	Bathrooms    int          `json:"bathrooms"`
	Images       []string     `json:"images"`
	URL          string       `json:"url"`
	Agent        agentPayload `json:"agent"`
	Latitude     float64      `json:"lat"`
	Longitude    float64      `json:"lng"`
}

func (p propertyPayload) toListing() models.Listing {
	return models.Listing{
		ExternalID:   p.ID,
		Address:      p.Address,
		Area:         p.Area,
		PriceDisplay: p.PriceDisplay,
		Bedrooms:     p.Bedrooms,
		Bathrooms:    p.Bathrooms,
		ImageURLs:    pq.StringArray(p.Images),
		SourceURL:    p.URL,
		AgentName:    p.Agent.Name,
		AgentPhone:   p.Agent.Phone,
		AgentBranch:  p.Agent.Branch,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
	}
}

type searchResponse struct {
	Properties []propertyPayload `json:"properties"`
	Total      int               `json:"total"`
}

type detailsResponse struct {
	Property struct {
		propertyPayload
		Photos []string `json:"photos"`
	} `json:"property"`
}

// Search returns one page of listings. Transient failures are retried with bounded
// exponential backoff; not-found and bad-request failures are returned immediately.
func (c *HTTPClient) Search(ctx context.Context, criteria SearchCriteria) (*SearchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "listings.HTTPClient.Search")
	defer span.End()

	searchURL := c.baseURL + "/api/properties/search?" + encodeCriteria(criteria)

	var result *SearchResult
	operation := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, c.searchTimeout)
		defer cancel()

		resp, err := c.http.Get(reqCtx, searchURL, browserHeaders)
		if err != nil {
			return transportError("search", err)
		}
		if resp.StatusCode != 200 {
			serr := statusError("search", resp.StatusCode)
			if serr.Class != ClassTransient {
				return backoff.Permanent(serr)
			}
			return serr
		}

		var payload searchResponse
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			return backoff.Permanent(&SourceError{Op: "search", Class: ClassBadRequest, Err: err})
		}

		page := criteria.Page
		if page < 1 {
			page = 1
		}
		pageSize := criteria.PageSize
		if pageSize < 1 {
			pageSize = len(payload.Properties)
		}

		listings := make([]models.Listing, 0, len(payload.Properties))
		for _, p := range payload.Properties {
			if p.ID == "" {
				continue
			}
			listings = append(listings, p.toListing())
		}

		result = &SearchResult{
			Listings: listings,
			Total:    payload.Total,
			HasMore:  page*pageSize < payload.Total,
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		c.logger.WithContext(ctx).WithError(err).Error("Upstream search failed")
		return nil, err
	}

	return result, nil
}

// GetDetails returns the full detail record for one listing. Callers tolerate per-listing
// failures, so there is no retry here.
func (c *HTTPClient) GetDetails(ctx context.Context, externalID string) (*models.EnrichedListing, error) {
	ctx, span := tracing.StartSpan(ctx, "listings.HTTPClient.GetDetails")
	defer span.End()

	reqCtx, cancel := context.WithTimeout(ctx, c.detailsTimeout)
	defer cancel()

	detailsURL := c.baseURL + "/api/properties/" + url.PathEscape(externalID)
	resp, err := c.http.Get(reqCtx, detailsURL, browserHeaders)
	if err != nil {
		return nil, transportError("details", err)
	}
	if resp.StatusCode != 200 {
		return nil, statusError("details", resp.StatusCode)
	}

	var payload detailsResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &SourceError{Op: "details", Class: ClassBadRequest, Err: err}
	}
	if payload.Property.ID == "" {
		// Some deployments return the record bare rather than wrapped.
		if err := json.Unmarshal(resp.Body, &payload.Property); err != nil {
			return nil, &SourceError{Op: "details", Class: ClassBadRequest, Err: err}
		}
	}

	listing := payload.Property.toListing()
	if listing.ExternalID == "" {
		listing.ExternalID = externalID
	}
	if len(payload.Property.Photos) > 0 {
		listing.ImageURLs = pq.StringArray(payload.Property.Photos)
	}

	return &models.EnrichedListing{Listing: listing, HD: true}, nil
}

// encodeCriteria encodes criteria as upstream query parameters. The source searches a
// rectangular viewport, so the radius is converted into a bounding box around the anchor.
func encodeCriteria(criteria SearchCriteria) string {
	values := url.Values{}

	if criteria.LocationID != "" {
		values.Set("locationId", criteria.LocationID)
	} else {
		minLat, maxLat, minLng, maxLng := boundingBox(criteria.Latitude, criteria.Longitude, criteria.RadiusKm)
		values.Set("minLat", formatCoord(minLat))
		values.Set("maxLat", formatCoord(maxLat))
		values.Set("minLng", formatCoord(minLng))
		values.Set("maxLng", formatCoord(maxLng))
	}

	setIntParam(values, "minPrice", criteria.MinPrice)
	setIntParam(values, "maxPrice", criteria.MaxPrice)
	setIntParam(values, "minBedrooms", criteria.MinBedrooms)
	setIntParam(values, "maxBedrooms", criteria.MaxBedrooms)
	setIntParam(values, "minBathrooms", criteria.MinBathrooms)
	setIntParam(values, "maxBathrooms", criteria.MaxBathrooms)

	if criteria.Furnishing != models.FurnishingAny {
		values.Set("furnishing", criteria.Furnishing)
	}

	page := criteria.Page
	if page < 1 {
		page = 1
	}
	values.Set("page", strconv.Itoa(page))
	if criteria.PageSize > 0 {
		values.Set("pageSize", strconv.Itoa(criteria.PageSize))
	}

	return values.Encode()
}

// boundingBox converts a circular radius in km to a lat/lng rectangle around the anchor.
func boundingBox(lat, lng, radiusKm float64) (minLat, maxLat, minLng, maxLng float64) {
	if radiusKm <= 0 {
		radiusKm = 1
	}

	deltaLat := radiusKm / kmPerDegreeLat

	// Longitude degrees shrink with latitude; clamp near the poles.
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	deltaLng := radiusKm / (kmPerDegreeLat * cosLat)

	return lat - deltaLat, lat + deltaLat, lng - deltaLng, lng + deltaLng
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func setIntParam(values url.Values, key string, v *int) {
	if v != nil {
		values.Set(key, strconv.Itoa(*v))
	}
}
