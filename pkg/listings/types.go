// Package listings wraps the upstream rental-search API behind a stable client
// interface. The wire format is a collaborator detail: swapping providers means swapping
// the HTTP implementation, nothing upstream of it.
package listings

import (
	"context"

	"github.com/AlsakaSoftware/ijar/pkg/models"
)

// SearchCriteria describes one page of an upstream search.
type SearchCriteria struct {
	Latitude     float64
	Longitude    float64
	LocationID   string
	RadiusKm     float64
	MinPrice     *int
	MaxPrice     *int
	MinBedrooms  *int
	MaxBedrooms  *int
	MinBathrooms *int
	MaxBathrooms *int
	Furnishing   string
	Page         int
	PageSize     int
}

// CriteriaFromQuery builds search criteria for one page of a saved query.
func CriteriaFromQuery(q models.SavedQuery, page, pageSize int) SearchCriteria {
	criteria := SearchCriteria{
		Latitude:     q.Latitude,
		Longitude:    q.Longitude,
		RadiusKm:     q.RadiusKm,
		MinPrice:     q.MinPrice,
		MaxPrice:     q.MaxPrice,
		MinBedrooms:  q.MinBedrooms,
		MaxBedrooms:  q.MaxBedrooms,
		MinBathrooms: q.MinBathrooms,
		MaxBathrooms: q.MaxBathrooms,
		Furnishing:   q.Furnishing,
		Page:         page,
		PageSize:     pageSize,
	}
	if q.LocationID != nil {
		criteria.LocationID = *q.LocationID
	}
	return criteria
}

// SearchResult is one page of search results.
type SearchResult struct {
	Listings []models.Listing
	Total    int
	HasMore  bool
}

// Client is the upstream listing source.
type Client interface {
	// Search returns one page of listings matching the criteria.
	Search(ctx context.Context, criteria SearchCriteria) (*SearchResult, error)

	// GetDetails returns the full detail record for a listing: high-resolution photo
	// URLs and the authoritative bathroom count.
	GetDetails(ctx context.Context, externalID string) (*models.EnrichedListing, error)
}
