package repositories

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/pkg/errors"

	"github.com/AlsakaSoftware/ijar/pkg/database"
	"github.com/AlsakaSoftware/ijar/pkg/models"
	"github.com/AlsakaSoftware/ijar/pkg/tracing"
)

const listingsTable = "listings"

// ListingRepository handles canonical listing persistence
type ListingRepository struct {
	*Repository
}

// NewListingRepository creates a new listing repository
func NewListingRepository(db database.DB, logger ectologger.Logger) *ListingRepository {
	return &ListingRepository{
		Repository: NewRepository(db, logger),
	}
}

// Upsert inserts or updates a listing keyed on external_id and returns the canonical row
// ID. The unique key guarantees one row per external ID no matter how many queries or
// runs surface the same unit.
func (r *ListingRepository) Upsert(ctx context.Context, listing *models.Listing) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "ListingRepository.Upsert")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto(listingsTable).
		Cols("external_id", "address", "area", "price_display", "bedrooms", "bathrooms",
			"image_urls", "source_url", "agent_name", "agent_phone", "agent_branch",
			"latitude", "longitude", "created_at", "updated_at").
		Values(listing.ExternalID, listing.Address, listing.Area, listing.PriceDisplay,
			listing.Bedrooms, listing.Bathrooms, listing.ImageURLs, listing.SourceURL,
			listing.AgentName, listing.AgentPhone, listing.AgentBranch,
			listing.Latitude, listing.Longitude,
			sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()"))

	ub := ib.OnConflict("external_id")
	ub.Set(
		ub.Assign("address", database.Excluded("address")),
		ub.Assign("area", database.Excluded("area")),
		ub.Assign("price_display", database.Excluded("price_display")),
		ub.Assign("bedrooms", database.Excluded("bedrooms")),
		ub.Assign("bathrooms", database.Excluded("bathrooms")),
		ub.Assign("image_urls", database.Excluded("image_urls")),
		ub.Assign("source_url", database.Excluded("source_url")),
		ub.Assign("agent_name", database.Excluded("agent_name")),
		ub.Assign("agent_phone", database.Excluded("agent_phone")),
		ub.Assign("agent_branch", database.Excluded("agent_branch")),
		ub.Assign("latitude", database.Excluded("latitude")),
		ub.Assign("longitude", database.Excluded("longitude")),
		ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
	)
	ib.SQL("RETURNING id")

	query, args := ib.Build()
	var id int64
	if err := r.DB().QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"external_id": listing.ExternalID,
		}).Error("failed to upsert listing")
		return 0, errors.Wrap(err, "failed to upsert listing")
	}

	listing.ID = id
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"external_id": listing.ExternalID,
		"listing_id":  id,
	}).Debugf("Upserted %s", listingsTable)
	return id, nil
}
