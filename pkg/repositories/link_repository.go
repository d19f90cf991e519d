package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/pkg/errors"

	"github.com/AlsakaSoftware/ijar/pkg/database"
	"github.com/AlsakaSoftware/ijar/pkg/models"
	"github.com/AlsakaSoftware/ijar/pkg/tracing"
)

const linksTable = "query_listing_links"

// LinkRepository handles the per-(query, listing) discovery records
type LinkRepository struct {
	*Repository
}

// NewLinkRepository creates a new link repository
func NewLinkRepository(db database.DB, logger ectologger.Logger) *LinkRepository {
	return &LinkRepository{
		Repository: NewRepository(db, logger),
	}
}

// Exists reports whether the query has already surfaced the listing with the given
// external ID.
func (r *LinkRepository) Exists(ctx context.Context, queryID uuid.UUID, externalID string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "LinkRepository.Exists")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("1").
		From(linksTable).
		Join(listingsTable, "listings.id = query_listing_links.listing_id").
		Where(
			sb.Equal("query_listing_links.query_id", queryID),
			sb.Equal("listings.external_id", externalID),
		).
		Limit(1)

	query, args := sb.Build()
	var one int
	err := r.DB().GetContext(ctx, &one, query, args...)
	if stderrors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"query_id":    queryID,
			"external_id": externalID,
		}).Error("failed to check link existence")
		return false, errors.Wrap(err, "failed to check link existence")
	}
	return true, nil
}

// FilterNew returns the listings not yet linked to the query, preserving input order.
// A listing linked to a different query is still new for this one.
func (r *LinkRepository) FilterNew(ctx context.Context, queryID uuid.UUID, listings []models.Listing) ([]models.Listing, error) {
	ctx, span := tracing.StartSpan(ctx, "LinkRepository.FilterNew")
	defer span.End()

	if len(listings) == 0 {
		return nil, nil
	}

	externalIDs := make([]any, 0, len(listings))
	for _, l := range listings {
		externalIDs = append(externalIDs, l.ExternalID)
	}

	sb := database.NewSelectBuilder()
	sb.Select("listings.external_id").
		From(linksTable).
		Join(listingsTable, "listings.id = query_listing_links.listing_id").
		Where(
			sb.Equal("query_listing_links.query_id", queryID),
			sb.In("listings.external_id", externalIDs...),
		)

	query, args := sb.Build()
	var linked []string
	if err := r.DB().SelectContext(ctx, &linked, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"query_id": queryID,
		}).Error("failed to load existing links")
		return nil, errors.Wrap(err, "failed to load existing links")
	}

	seen := make(map[string]struct{}, len(linked))
	for _, id := range linked {
		seen[id] = struct{}{}
	}

	fresh := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		if _, ok := seen[l.ExternalID]; !ok {
			fresh = append(fresh, l)
		}
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"query_id": queryID,
		"checked":  len(listings),
		"new":      len(fresh),
	}).Debug("Filtered new listings")
	return fresh, nil
}

// Link records that the query surfaced the listing. The unique (query_id, listing_id)
// pair makes repeat calls no-ops rather than errors.
func (r *LinkRepository) Link(ctx context.Context, queryID uuid.UUID, listingID int64) error {
	ctx, span := tracing.StartSpan(ctx, "LinkRepository.Link")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto(linksTable).
		Cols("query_id", "listing_id", "discovered_at").
		Values(queryID, listingID, sqlbuilder.Raw("NOW()")).
		OnConflictDoNothing()

	query, args := ib.Build()
	if _, err := r.DB().ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"query_id":   queryID,
			"listing_id": listingID,
		}).Error("failed to link listing to query")
		return errors.Wrap(err, "failed to link listing to query")
	}

	return nil
}
