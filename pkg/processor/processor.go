// Package processor runs the ingestion pipeline for a single saved query:
// search, dedup filter, cap, enrich, persist, link.
package processor

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/AlsakaSoftware/ijar/pkg/listings"
	"github.com/AlsakaSoftware/ijar/pkg/models"
	"github.com/AlsakaSoftware/ijar/pkg/repositories"
	"github.com/AlsakaSoftware/ijar/pkg/tracing"
)

// Enricher upgrades a capped batch of listings with detail-fetch data.
type Enricher interface {
	Enrich(ctx context.Context, batch []models.Listing) []models.EnrichedListing
}

// Result is the outcome of processing one saved query. Errors are accumulated per
// listing; a non-empty error list does not mean the query failed outright.
type Result struct {
	NewCount int
	Errors   []string
}

// Config holds per-query processing settings.
type Config struct {
	// PageSize is the upstream search page size. Only the first page is processed.
	PageSize int

	// MaxNewPerQuery caps how many new listings are enriched and persisted per run.
	// Listings beyond the cap stay unlinked and surface as new on the next run.
	MaxNewPerQuery int
}

// QueryProcessor orchestrates the pipeline for one saved query.
type QueryProcessor struct {
	source      listings.Client
	listingRepo repositories.Listings
	linkRepo    repositories.Links
	enricher    Enricher
	logger      ectologger.Logger
	config      Config
}

// NewQueryProcessor creates a new per-query processor.
func NewQueryProcessor(
	source listings.Client,
	listingRepo repositories.Listings,
	linkRepo repositories.Links,
	enricher Enricher,
	config Config,
	logger ectologger.Logger,
) *QueryProcessor {
	if config.PageSize <= 0 {
		config.PageSize = 25
	}
	if config.MaxNewPerQuery <= 0 {
		config.MaxNewPerQuery = 7
	}
	return &QueryProcessor{
		source:      source,
		listingRepo: listingRepo,
		linkRepo:    linkRepo,
		enricher:    enricher,
		logger:      logger,
		config:      config,
	}
}

// Process runs search → dedup → cap → enrich → persist → link for one query. A search
// failure aborts this query only; per-listing persistence failures are collected and
// processing continues with the next listing.
func (p *QueryProcessor) Process(ctx context.Context, query models.SavedQuery) Result {
	ctx, span := tracing.StartSpan(ctx, "QueryProcessor.Process")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"query_id":   query.ID,
		"query_name": query.Name,
	})

	criteria := listings.CriteriaFromQuery(query, 1, p.config.PageSize)
	searchResult, err := p.source.Search(ctx, criteria)
	if err != nil {
		log.WithError(err).Error("Search failed for query")
		return Result{Errors: []string{"search: " + err.Error()}}
	}

	fresh, err := p.linkRepo.FilterNew(ctx, query.ID, searchResult.Listings)
	if err != nil {
		log.WithError(err).Error("Dedup filter failed for query")
		return Result{Errors: []string{"filter: " + err.Error()}}
	}

	if len(fresh) == 0 {
		log.Debug("No new listings for query")
		return Result{}
	}

	// Upstream sorts newest first, so capping keeps the newest listings. The remainder
	// stays unlinked and is picked up on a later run.
	if len(fresh) > p.config.MaxNewPerQuery {
		log.Infof("Capping %d new listings to %d", len(fresh), p.config.MaxNewPerQuery)
		fresh = fresh[:p.config.MaxNewPerQuery]
	}

	result := Result{}
	for _, enriched := range p.enricher.Enrich(ctx, fresh) {
		listing := enriched.Listing

		id, err := p.listingRepo.Upsert(ctx, &listing)
		if err != nil {
			result.Errors = append(result.Errors, "upsert "+listing.ExternalID+": "+err.Error())
			continue
		}

		if err := p.linkRepo.Link(ctx, query.ID, id); err != nil {
			result.Errors = append(result.Errors, "link "+listing.ExternalID+": "+err.Error())
			continue
		}

		result.NewCount++
	}

	log.WithFields(map[string]any{
		"new_count":   result.NewCount,
		"error_count": len(result.Errors),
	}).Info("Processed query")
	return result
}
