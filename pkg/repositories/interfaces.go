package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/AlsakaSoftware/ijar/pkg/models"
)

// SavedQueries reads the saved searches the pipeline monitors.
type SavedQueries interface {
	// ListActive returns every query with active = true.
	ListActive(ctx context.Context) ([]models.SavedQuery, error)

	// ListActiveByUser returns the active queries owned by one user.
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]models.SavedQuery, error)
}

// Listings owns the canonical listing rows.
type Listings interface {
	// Upsert inserts or updates a listing keyed on its external ID and returns the
	// canonical row ID. Mutable fields (price, images) are refreshed on conflict.
	Upsert(ctx context.Context, listing *models.Listing) (int64, error)
}

// Links owns the per-(query, listing) discovery records used for dedup.
type Links interface {
	// Exists reports whether the query has already surfaced the listing.
	Exists(ctx context.Context, queryID uuid.UUID, externalID string) (bool, error)

	// FilterNew returns the subset of listings not yet linked to the query, preserving
	// input order. "New" is always scoped per query.
	FilterNew(ctx context.Context, queryID uuid.UUID, listings []models.Listing) ([]models.Listing, error)

	// Link records that the query surfaced the listing. Repeat calls are no-ops.
	Link(ctx context.Context, queryID uuid.UUID, listingID int64) error
}

// DeviceTokens owns push-delivery endpoints.
type DeviceTokens interface {
	// ListByUser returns the user's registered device tokens.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.DeviceToken, error)

	// Delete removes a token that the delivery provider reported as permanently invalid.
	Delete(ctx context.Context, userID uuid.UUID, token string) error
}
