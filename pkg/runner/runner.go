// Package runner drives a full monitoring run: it loads the active saved queries,
// groups them by owning user, processes users in fixed-size concurrent batches with a
// pause between batches, and triggers one summary notification per user with new
// listings.
package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/AlsakaSoftware/ijar/pkg/events"
	"github.com/AlsakaSoftware/ijar/pkg/models"
	"github.com/AlsakaSoftware/ijar/pkg/notify"
	"github.com/AlsakaSoftware/ijar/pkg/processor"
	"github.com/AlsakaSoftware/ijar/pkg/ratelimit"
	"github.com/AlsakaSoftware/ijar/pkg/redis"
	"github.com/AlsakaSoftware/ijar/pkg/repositories"
	"github.com/AlsakaSoftware/ijar/pkg/tracing"
)

// ErrRunInProgress is returned when another run holds the distributed run lock.
var ErrRunInProgress = errors.New("a monitoring run is already in progress")

const runLockKey = "monitor-run"

// QueryProcessor processes one saved query.
type QueryProcessor interface {
	Process(ctx context.Context, query models.SavedQuery) processor.Result
}

// Notifier sends one per-user summary notification.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, newCount, queryCount int, queryName string) notify.Result
}

// Config holds run scheduling settings.
type Config struct {
	// BatchSize is how many users are processed concurrently.
	BatchSize int

	// BatchPause is the throttle between batches, independent of the enrichment
	// stage's own per-request delay.
	BatchPause time.Duration

	// LockTTL bounds how long a crashed run can block the next one.
	LockTTL time.Duration
}

// Summary is the run-level outcome, used for logging and the run.completed event.
type Summary struct {
	Users       int
	Queries     int
	NewListings int
	Errors      []string
}

// Runner executes monitoring runs.
type Runner struct {
	queries   repositories.SavedQueries
	processor QueryProcessor
	notifier  Notifier        // nil when push delivery is disabled
	emitter   *events.Emitter // nil when event emission is disabled
	locker    *redis.Locker   // nil when no Redis is configured
	sleep     ratelimit.SleepFunc
	logger    ectologger.Logger
	config    Config
}

// NewRunner creates a new run scheduler. notifier, emitter and locker may be nil; the
// pipeline degrades to search-and-persist only.
func NewRunner(
	queries repositories.SavedQueries,
	queryProcessor QueryProcessor,
	notifier Notifier,
	emitter *events.Emitter,
	locker *redis.Locker,
	config Config,
	logger ectologger.Logger,
) *Runner {
	if config.BatchSize <= 0 {
		config.BatchSize = 3
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 30 * time.Minute
	}
	return &Runner{
		queries:   queries,
		processor: queryProcessor,
		notifier:  notifier,
		emitter:   emitter,
		locker:    locker,
		sleep:     ratelimit.Sleep,
		logger:    logger,
		config:    config,
	}
}

// SetSleep replaces the inter-batch sleep function. Tests use this to avoid real timers.
func (r *Runner) SetSleep(sleep ratelimit.SleepFunc) {
	r.sleep = sleep
}

type userWork struct {
	userID  uuid.UUID
	queries []models.SavedQuery
}

// Run executes one monitoring run. When userID is non-nil only that user's queries are
// processed (the on-demand "search now" path). The only fatal error is failing to load
// the active queries; everything downstream is isolated per query or per listing.
func (r *Runner) Run(ctx context.Context, userID *uuid.UUID) (*Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "Runner.Run")
	defer span.End()

	if r.locker != nil {
		lock, err := r.locker.Acquire(ctx, runLockKey, r.config.LockTTL)
		if errors.Is(err, redis.ErrLockNotAcquired) {
			r.logger.WithContext(ctx).Warn("Skipping run: another run is in progress")
			return nil, ErrRunInProgress
		}
		if err != nil {
			// Lock infrastructure trouble should not stop monitoring.
			r.logger.WithContext(ctx).WithError(err).Warn("Run lock unavailable, continuing without it")
		} else {
			defer func() {
				if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil {
					r.logger.WithError(releaseErr).Warn("Failed to release run lock")
				}
			}()
		}
	}

	var (
		active []models.SavedQuery
		err    error
	)
	if userID != nil {
		active, err = r.queries.ListActiveByUser(ctx, *userID)
	} else {
		active, err = r.queries.ListActive(ctx)
	}
	if err != nil {
		return nil, err
	}

	work := groupByUser(active)
	summary := &Summary{Users: len(work), Queries: len(active)}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"users":   len(work),
		"queries": len(active),
	}).Info("Starting monitoring run")

	var mu sync.Mutex
	for start := 0; start < len(work); start += r.config.BatchSize {
		end := start + r.config.BatchSize
		if end > len(work) {
			end = len(work)
		}

		var wg sync.WaitGroup
		for _, entry := range work[start:end] {
			wg.Add(1)
			go func(entry userWork) {
				defer wg.Done()
				newCount, errs := r.processUser(ctx, entry)

				mu.Lock()
				summary.NewListings += newCount
				summary.Errors = append(summary.Errors, errs...)
				mu.Unlock()
			}(entry)
		}
		wg.Wait()

		if end < len(work) {
			if err := r.sleep(ctx, r.config.BatchPause); err != nil {
				r.logger.WithContext(ctx).WithError(err).Warn("Run cancelled between batches")
				break
			}
		}
	}

	r.emitter.EmitRunCompleted(ctx, summary.NewListings, summary.Queries)

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"users":        summary.Users,
		"queries":      summary.Queries,
		"new_listings": summary.NewListings,
		"error_count":  len(summary.Errors),
	}).Info("Monitoring run complete")

	return summary, nil
}

// processUser runs one user's queries sequentially, so the per-user total is complete
// before the notification decision, and notifies once when anything new was found.
func (r *Runner) processUser(ctx context.Context, entry userWork) (int, []string) {
	total := 0
	contributing := 0
	contributingName := ""
	var errs []string

	for _, query := range entry.queries {
		result := r.processor.Process(ctx, query)
		total += result.NewCount
		errs = append(errs, result.Errors...)

		if result.NewCount > 0 {
			contributing++
			contributingName = query.Name
		}
	}

	if total == 0 {
		return total, errs
	}

	queryName := ""
	if contributing == 1 {
		queryName = contributingName
	}

	if r.notifier != nil {
		result := r.notifier.Notify(ctx, entry.userID, total, contributing, queryName)
		errs = append(errs, result.Errors...)
	}
	r.emitter.EmitPropertiesDiscovered(ctx, entry.userID, total, contributing)

	return total, errs
}

// groupByUser buckets queries by owner, preserving first-seen order. Queries without an
// owner cannot be attributed or notified and are dropped.
func groupByUser(queries []models.SavedQuery) []userWork {
	index := make(map[uuid.UUID]int)
	var work []userWork

	for _, query := range queries {
		if !query.UserID.Valid {
			continue
		}
		owner := query.UserID.UUID

		i, ok := index[owner]
		if !ok {
			i = len(work)
			index[owner] = i
			work = append(work, userWork{userID: owner})
		}
		work[i].queries = append(work[i].queries, query)
	}

	return work
}
