package models

import (
	"time"

	"github.com/lib/pq"
)

// Listing is the canonical record of one rental unit, keyed by the upstream source's
// listing ID. Exactly one row exists per external ID; sightings from any query update the
// mutable fields through an upsert.
type Listing struct {
	ID           int64          `db:"id" json:"id"`
	ExternalID   string         `db:"external_id" json:"external_id"`
	Address      string         `db:"address" json:"address"`
	Area         string         `db:"area" json:"area"`
	PriceDisplay string         `db:"price_display" json:"price_display"`
	Bedrooms     int            `db:"bedrooms" json:"bedrooms"`
	Bathrooms    int            `db:"bathrooms" json:"bathrooms"`
	ImageURLs    pq.StringArray `db:"image_urls" json:"image_urls"`
	SourceURL    string         `db:"source_url" json:"source_url"`
	AgentName    string         `db:"agent_name" json:"agent_name"`
	AgentPhone   string         `db:"agent_phone" json:"agent_phone"`
	AgentBranch  string         `db:"agent_branch" json:"agent_branch"`
	Latitude     float64        `db:"latitude" json:"latitude"`
	Longitude    float64        `db:"longitude" json:"longitude"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// EnrichedListing is a Listing whose images and bathroom count were replaced with
// detail-fetch data. It is transient: produced by the enrichment stage, consumed by
// persistence, never stored as its own entity. HD is false when the detail fetch failed
// and the thumbnail data was kept.
type EnrichedListing struct {
	Listing
	HD bool `json:"hd"`
}
