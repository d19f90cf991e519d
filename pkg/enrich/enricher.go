// Package enrich upgrades freshly-discovered listings with detail-fetch data: HD photo
// URLs and the authoritative bathroom count.
package enrich

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/AlsakaSoftware/ijar/pkg/listings"
	"github.com/AlsakaSoftware/ijar/pkg/models"
	"github.com/AlsakaSoftware/ijar/pkg/ratelimit"
	"github.com/AlsakaSoftware/ijar/pkg/tracing"
)

// Config holds enrichment settings.
type Config struct {
	// Enabled toggles HD enrichment. When off, listings pass through with their
	// thumbnail data.
	Enabled bool

	// MaxImages caps how many image URLs are kept per listing.
	MaxImages int
}

// Enricher fetches detail records for a batch of listings. Calls are strictly
// sequential with a limiter-controlled delay between requests: the upstream blocks
// clients that burst detail fetches, so serialization here is a correctness constraint,
// not an optimization.
type Enricher struct {
	source  listings.Client
	limiter ratelimit.Limiter
	logger  ectologger.Logger
	config  Config
}

// NewEnricher creates a new enricher.
func NewEnricher(source listings.Client, limiter ratelimit.Limiter, config Config, logger ectologger.Logger) *Enricher {
	if config.MaxImages <= 0 {
		config.MaxImages = 20
	}
	return &Enricher{
		source:  source,
		limiter: limiter,
		logger:  logger,
		config:  config,
	}
}

// Enrich returns one enriched listing per input, in input order. A failed detail fetch
// keeps that listing's thumbnail data and never aborts the batch. Callers bound the cost
// of this stage by capping the input before calling it.
func (e *Enricher) Enrich(ctx context.Context, batch []models.Listing) []models.EnrichedListing {
	ctx, span := tracing.StartSpan(ctx, "Enricher.Enrich")
	defer span.End()

	enriched := make([]models.EnrichedListing, 0, len(batch))

	for i, listing := range batch {
		listing.ImageURLs = capImages(listing.ImageURLs, e.config.MaxImages)

		if !e.config.Enabled {
			enriched = append(enriched, models.EnrichedListing{Listing: listing})
			continue
		}

		if err := e.limiter.Wait(ctx); err != nil {
			// Run is shutting down; keep thumbnails for the remainder.
			e.logger.WithContext(ctx).WithError(err).Warn("Enrichment interrupted, keeping thumbnail data")
			for _, rest := range batch[i:] {
				rest.ImageURLs = capImages(rest.ImageURLs, e.config.MaxImages)
				enriched = append(enriched, models.EnrichedListing{Listing: rest})
			}
			return enriched
		}

		details, err := e.source.GetDetails(ctx, listing.ExternalID)
		if err != nil {
			e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"external_id": listing.ExternalID,
			}).Warn("Detail fetch failed, keeping thumbnail data")
			enriched = append(enriched, models.EnrichedListing{Listing: listing})
			continue
		}

		upgraded := listing
		if len(details.ImageURLs) > 0 {
			upgraded.ImageURLs = capImages(details.ImageURLs, e.config.MaxImages)
		}
		if details.Bathrooms > 0 {
			upgraded.Bathrooms = details.Bathrooms
		}

		enriched = append(enriched, models.EnrichedListing{Listing: upgraded, HD: true})
	}

	return enriched
}

func capImages(urls []string, max int) []string {
	if len(urls) <= max {
		return urls
	}
	return urls[:max]
}
