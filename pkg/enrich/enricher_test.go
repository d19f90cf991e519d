package enrich

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlsakaSoftware/ijar/pkg/listings"
	"github.com/AlsakaSoftware/ijar/pkg/models"
	"github.com/AlsakaSoftware/ijar/pkg/ratelimit"
)

type fakeSource struct {
	details map[string]*models.EnrichedListing
	errs    map[string]error
	calls   []string
}

func (f *fakeSource) Search(ctx context.Context, criteria listings.SearchCriteria) (*listings.SearchResult, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeSource) GetDetails(ctx context.Context, externalID string) (*models.EnrichedListing, error) {
	f.calls = append(f.calls, externalID)
	if err, ok := f.errs[externalID]; ok {
		return nil, err
	}
	if details, ok := f.details[externalID]; ok {
		return details, nil
	}
	return nil, fmt.Errorf("unknown listing %s", externalID)
}

type countingLimiter struct {
	waits int
	err   error
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.waits++
	return l.err
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func thumbnails(n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://cdn.example.com/thumb/%d.jpg", i)
	}
	return urls
}

func TestEnrichPreservesOrderAndLength(t *testing.T) {
	source := &fakeSource{details: map[string]*models.EnrichedListing{
		"a": {Listing: models.Listing{ExternalID: "a", ImageURLs: []string{"hd-a"}, Bathrooms: 2}, HD: true},
		"b": {Listing: models.Listing{ExternalID: "b", ImageURLs: []string{"hd-b"}, Bathrooms: 1}, HD: true},
	}}
	limiter := &countingLimiter{}
	enricher := NewEnricher(source, limiter, Config{Enabled: true}, testLogger())

	batch := []models.Listing{
		{ExternalID: "a", ImageURLs: []string{"thumb-a"}},
		{ExternalID: "b", ImageURLs: []string{"thumb-b"}},
	}

	enriched := enricher.Enrich(context.Background(), batch)

	require.Len(t, enriched, 2)
	assert.Equal(t, "a", enriched[0].ExternalID)
	assert.Equal(t, "b", enriched[1].ExternalID)
	assert.True(t, enriched[0].HD)
	assert.True(t, enriched[1].HD)
	assert.Equal(t, []string{"hd-a"}, []string(enriched[0].ImageURLs))
	assert.Equal(t, 2, enriched[0].Bathrooms)
	assert.Equal(t, 2, limiter.waits)
}

func TestEnrichFailedFetchKeepsThumbnails(t *testing.T) {
	source := &fakeSource{
		details: map[string]*models.EnrichedListing{
			"ok": {Listing: models.Listing{ExternalID: "ok", ImageURLs: []string{"hd"}}, HD: true},
		},
		errs: map[string]error{"broken": fmt.Errorf("detail fetch blew up")},
	}
	enricher := NewEnricher(source, &countingLimiter{}, Config{Enabled: true}, testLogger())

	batch := []models.Listing{
		{ExternalID: "broken", ImageURLs: []string{"thumb-1", "thumb-2"}},
		{ExternalID: "ok", ImageURLs: []string{"thumb-3"}},
	}

	enriched := enricher.Enrich(context.Background(), batch)

	require.Len(t, enriched, 2)
	assert.False(t, enriched[0].HD)
	assert.Equal(t, []string{"thumb-1", "thumb-2"}, []string(enriched[0].ImageURLs))
	assert.True(t, enriched[1].HD)
}

func TestEnrichCapsImages(t *testing.T) {
	source := &fakeSource{details: map[string]*models.EnrichedListing{
		"a": {Listing: models.Listing{ExternalID: "a", ImageURLs: thumbnails(30)}, HD: true},
	}}
	enricher := NewEnricher(source, &countingLimiter{}, Config{Enabled: true, MaxImages: 5}, testLogger())

	enriched := enricher.Enrich(context.Background(), []models.Listing{
		{ExternalID: "a", ImageURLs: thumbnails(12)},
	})

	require.Len(t, enriched, 1)
	assert.Len(t, enriched[0].ImageURLs, 5)
}

func TestEnrichCapsImagesWhenDisabled(t *testing.T) {
	source := &fakeSource{}
	enricher := NewEnricher(source, &countingLimiter{}, Config{Enabled: false, MaxImages: 3}, testLogger())

	enriched := enricher.Enrich(context.Background(), []models.Listing{
		{ExternalID: "a", ImageURLs: thumbnails(10)},
	})

	require.Len(t, enriched, 1)
	assert.False(t, enriched[0].HD)
	assert.Len(t, enriched[0].ImageURLs, 3)
	assert.Empty(t, source.calls)
}

func TestEnrichKeepsEmptyImageListOnEmptyDetails(t *testing.T) {
	source := &fakeSource{details: map[string]*models.EnrichedListing{
		"a": {Listing: models.Listing{ExternalID: "a"}, HD: true},
	}}
	enricher := NewEnricher(source, &countingLimiter{}, Config{Enabled: true}, testLogger())

	enriched := enricher.Enrich(context.Background(), []models.Listing{
		{ExternalID: "a", ImageURLs: []string{"thumb"}},
	})

	require.Len(t, enriched, 1)
	assert.Equal(t, []string{"thumb"}, []string(enriched[0].ImageURLs))
}

func TestEnrichStopsOnCancelledContext(t *testing.T) {
	source := &fakeSource{details: map[string]*models.EnrichedListing{
		"a": {Listing: models.Listing{ExternalID: "a", ImageURLs: []string{"hd"}}, HD: true},
	}}
	limiter := &countingLimiter{err: context.Canceled}
	enricher := NewEnricher(source, limiter, Config{Enabled: true, MaxImages: 2}, testLogger())

	batch := []models.Listing{
		{ExternalID: "a", ImageURLs: thumbnails(4)},
		{ExternalID: "b", ImageURLs: thumbnails(4)},
	}

	enriched := enricher.Enrich(context.Background(), batch)

	require.Len(t, enriched, 2)
	assert.Empty(t, source.calls)
	for _, e := range enriched {
		assert.False(t, e.HD)
		assert.Len(t, e.ImageURLs, 2)
	}
}

func TestEnrichDelaysBetweenFetches(t *testing.T) {
	source := &fakeSource{details: map[string]*models.EnrichedListing{
		"a": {Listing: models.Listing{ExternalID: "a"}, HD: true},
		"b": {Listing: models.Listing{ExternalID: "b"}, HD: true},
		"c": {Listing: models.Listing{ExternalID: "c"}, HD: true},
	}}

	var slept []time.Duration
	limiter := ratelimit.NewFixedDelayWithSleep(2*time.Second, func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})
	enricher := NewEnricher(source, limiter, Config{Enabled: true}, testLogger())

	enricher.Enrich(context.Background(), []models.Listing{
		{ExternalID: "a"}, {ExternalID: "b"}, {ExternalID: "c"},
	})

	// First fetch goes straight through; only the fetches after it pay the delay.
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, slept)
}
