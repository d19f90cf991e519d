package models

import (
	"time"

	"github.com/google/uuid"
)

// Furnishing filter values accepted by the upstream source.
const (
	FurnishingAny         = ""
	FurnishingFurnished   = "furnished"
	FurnishingUnfurnished = "unfurnished"
	FurnishingPartly      = "partly_furnished"
)

// SavedQuery is a user's standing search. The pipeline only ever reads active queries;
// creation and deactivation belong to the client collaborator.
type SavedQuery struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	UserID       uuid.NullUUID `db:"user_id" json:"user_id"`
	Name         string        `db:"name" json:"name"`
	Latitude     float64       `db:"latitude" json:"latitude"`
	Longitude    float64       `db:"longitude" json:"longitude"`
	LocationID   *string       `db:"location_id" json:"location_id,omitempty"`
	MinPrice     *int          `db:"min_price" json:"min_price,omitempty"`
	MaxPrice     *int          `db:"max_price" json:"max_price,omitempty"`
	MinBedrooms  *int          `db:"min_bedrooms" json:"min_bedrooms,omitempty"`
	MaxBedrooms  *int          `db:"max_bedrooms" json:"max_bedrooms,omitempty"`
	MinBathrooms *int          `db:"min_bathrooms" json:"min_bathrooms,omitempty"`
	MaxBathrooms *int          `db:"max_bathrooms" json:"max_bathrooms,omitempty"`
	Furnishing   string        `db:"furnishing" json:"furnishing"`
	RadiusKm     float64       `db:"radius_km" json:"radius_km"`
	Active       bool          `db:"active" json:"active"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// QueryListingLink records that a query surfaced a listing. The (query, listing) pair is
// the dedup key: once linked, the listing is never "new" for that query again.
type QueryListingLink struct {
	QueryID      uuid.UUID `db:"query_id" json:"query_id"`
	ListingID    int64     `db:"listing_id" json:"listing_id"`
	DiscoveredAt time.Time `db:"discovered_at" json:"discovered_at"`
}
