package runner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlsakaSoftware/ijar/pkg/models"
	"github.com/AlsakaSoftware/ijar/pkg/notify"
	"github.com/AlsakaSoftware/ijar/pkg/processor"
)

type fakeQueryRepo struct {
	queries []models.SavedQuery
	err     error

	byUserCalls []uuid.UUID
}

func (f *fakeQueryRepo) ListActive(ctx context.Context) ([]models.SavedQuery, error) {
	return f.queries, f.err
}

func (f *fakeQueryRepo) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]models.SavedQuery, error) {
	f.byUserCalls = append(f.byUserCalls, userID)
	var owned []models.SavedQuery
	for _, q := range f.queries {
		if q.UserID.Valid && q.UserID.UUID == userID {
			owned = append(owned, q)
		}
	}
	return owned, f.err
}

type fakeProcessor struct {
	mu      sync.Mutex
	results map[uuid.UUID]processor.Result
	order   []uuid.UUID
}

func (f *fakeProcessor) Process(ctx context.Context, query models.SavedQuery) processor.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = append(f.order, query.ID)
	return f.results[query.ID]
}

type notification struct {
	userID     uuid.UUID
	newCount   int
	queryCount int
	queryName  string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (f *fakeNotifier) Notify(ctx context.Context, userID uuid.UUID, newCount, queryCount int, queryName string) notify.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, notification{userID, newCount, queryCount, queryName})
	return notify.Result{Success: true}
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func ownedQuery(userID uuid.UUID, name string) models.SavedQuery {
	return models.SavedQuery{
		ID:     uuid.New(),
		UserID: uuid.NullUUID{UUID: userID, Valid: true},
		Name:   name,
		Active: true,
	}
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func newTestRunner(repo *fakeQueryRepo, proc *fakeProcessor, notifier Notifier, cfg Config) *Runner {
	r := NewRunner(repo, proc, notifier, nil, nil, cfg, testLogger())
	r.SetSleep(noSleep)
	return r
}

func TestRunNotifiesOncePerUserWithNewListings(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()

	q1 := ownedQuery(alice, "Shoreditch")
	q2 := ownedQuery(alice, "Hackney")
	q3 := ownedQuery(bob, "Camden")

	repo := &fakeQueryRepo{queries: []models.SavedQuery{q1, q2, q3}}
	proc := &fakeProcessor{results: map[uuid.UUID]processor.Result{
		q1.ID: {NewCount: 2},
		q2.ID: {NewCount: 1},
		q3.ID: {},
	}}
	notifier := &fakeNotifier{}
	r := newTestRunner(repo, proc, notifier, Config{})

	summary, err := r.Run(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Users)
	assert.Equal(t, 3, summary.Queries)
	assert.Equal(t, 3, summary.NewListings)

	// Alice gets one notification covering both queries; Bob found nothing and gets none.
	require.Len(t, notifier.sent, 1)
	sent := notifier.sent[0]
	assert.Equal(t, alice, sent.userID)
	assert.Equal(t, 3, sent.newCount)
	assert.Equal(t, 2, sent.queryCount)
	assert.Equal(t, "", sent.queryName)
}

func TestRunNamesSingleContributingQuery(t *testing.T) {
	alice := uuid.New()
	q1 := ownedQuery(alice, "Shoreditch")
	q2 := ownedQuery(alice, "Hackney")

	repo := &fakeQueryRepo{queries: []models.SavedQuery{q1, q2}}
	proc := &fakeProcessor{results: map[uuid.UUID]processor.Result{
		q1.ID: {},
		q2.ID: {NewCount: 2},
	}}
	notifier := &fakeNotifier{}
	r := newTestRunner(repo, proc, notifier, Config{})

	_, err := r.Run(context.Background(), nil)

	require.NoError(t, err)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, 1, notifier.sent[0].queryCount)
	assert.Equal(t, "Hackney", notifier.sent[0].queryName)
}

func TestRunDropsOwnerlessQueries(t *testing.T) {
	orphan := models.SavedQuery{ID: uuid.New(), Name: "No owner", Active: true}
	repo := &fakeQueryRepo{queries: []models.SavedQuery{orphan}}
	proc := &fakeProcessor{results: map[uuid.UUID]processor.Result{}}
	notifier := &fakeNotifier{}
	r := newTestRunner(repo, proc, notifier, Config{})

	summary, err := r.Run(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, 0, summary.Users)
	assert.Empty(t, proc.order)
	assert.Empty(t, notifier.sent)
}

func TestRunPausesBetweenBatches(t *testing.T) {
	repo := &fakeQueryRepo{}
	for i := 0; i < 5; i++ {
		repo.queries = append(repo.queries, ownedQuery(uuid.New(), fmt.Sprintf("q%d", i)))
	}
	proc := &fakeProcessor{results: map[uuid.UUID]processor.Result{}}

	r := NewRunner(repo, proc, nil, nil, nil, Config{BatchSize: 2, BatchPause: time.Second}, testLogger())
	var pauses []time.Duration
	r.SetSleep(func(ctx context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	})

	summary, err := r.Run(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, 5, summary.Users)
	assert.Len(t, proc.order, 5)
	// Three batches of 2+2+1 users means two pauses, none after the last batch.
	assert.Equal(t, []time.Duration{time.Second, time.Second}, pauses)
}

func TestRunStopsWhenCancelledBetweenBatches(t *testing.T) {
	repo := &fakeQueryRepo{}
	for i := 0; i < 4; i++ {
		repo.queries = append(repo.queries, ownedQuery(uuid.New(), fmt.Sprintf("q%d", i)))
	}
	proc := &fakeProcessor{results: map[uuid.UUID]processor.Result{}}

	r := NewRunner(repo, proc, nil, nil, nil, Config{BatchSize: 2}, testLogger())
	r.SetSleep(func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	})

	summary, err := r.Run(context.Background(), nil)

	require.NoError(t, err)
	assert.Len(t, proc.order, 2)
	assert.Equal(t, 4, summary.Users)
}

func TestRunSingleUserScope(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	repo := &fakeQueryRepo{queries: []models.SavedQuery{
		ownedQuery(alice, "Shoreditch"),
		ownedQuery(bob, "Camden"),
	}}
	proc := &fakeProcessor{results: map[uuid.UUID]processor.Result{}}
	r := newTestRunner(repo, proc, &fakeNotifier{}, Config{})

	summary, err := r.Run(context.Background(), &alice)

	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{alice}, repo.byUserCalls)
	assert.Equal(t, 1, summary.Users)
	assert.Len(t, proc.order, 1)
}

func TestRunQueryLoadFailureIsFatal(t *testing.T) {
	repo := &fakeQueryRepo{err: fmt.Errorf("connection refused")}
	r := newTestRunner(repo, &fakeProcessor{}, &fakeNotifier{}, Config{})

	summary, err := r.Run(context.Background(), nil)

	require.Error(t, err)
	assert.Nil(t, summary)
}

func TestRunCollectsProcessorErrors(t *testing.T) {
	alice := uuid.New()
	q := ownedQuery(alice, "Shoreditch")
	repo := &fakeQueryRepo{queries: []models.SavedQuery{q}}
	proc := &fakeProcessor{results: map[uuid.UUID]processor.Result{
		q.ID: {NewCount: 1, Errors: []string{"upsert x: boom"}},
	}}
	notifier := &fakeNotifier{}
	r := newTestRunner(repo, proc, notifier, Config{})

	summary, err := r.Run(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.NewListings)
	assert.Equal(t, []string{"upsert x: boom"}, summary.Errors)
	// Errors do not suppress the notification when listings were found.
	assert.Len(t, notifier.sent, 1)
}
