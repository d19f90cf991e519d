package notify

import (
	"context"
	"fmt"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlsakaSoftware/ijar/pkg/models"
	"github.com/AlsakaSoftware/ijar/pkg/push"
)

type fakeTokenRepo struct {
	tokens  []models.DeviceToken
	listErr error
	deleted []string
}

func (f *fakeTokenRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.DeviceToken, error) {
	return f.tokens, f.listErr
}

func (f *fakeTokenRepo) Delete(ctx context.Context, userID uuid.UUID, token string) error {
	f.deleted = append(f.deleted, token)
	return nil
}

type fakePusher struct {
	env  push.Environment
	errs map[string]error
	sent []push.Notification
}

func (f *fakePusher) Send(ctx context.Context, n push.Notification) error {
	if err, ok := f.errs[n.Token]; ok {
		return err
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakePusher) Shutdown() {}

func badToken(env push.Environment) error {
	return &push.DeliveryError{Environment: env, Reason: "BadDeviceToken", Class: push.ClassBadToken}
}

func unregistered(env push.Environment) error {
	return &push.DeliveryError{Environment: env, Reason: "Unregistered", Class: push.ClassPermanent}
}

func transient(env push.Environment) error {
	return &push.DeliveryError{Environment: env, Reason: "ServiceUnavailable", Class: push.ClassTransient}
}

func newTestDispatcher(tokens *fakeTokenRepo, primary, secondary *fakePusher) *Dispatcher {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewDispatcher(tokens, primary, secondary, logger)
}

func deviceTokens(tokens ...string) []models.DeviceToken {
	userID := uuid.New()
	out := make([]models.DeviceToken, 0, len(tokens))
	for _, token := range tokens {
		out = append(out, models.DeviceToken{UserID: userID, Token: token, Platform: "ios"})
	}
	return out
}

func TestNotifyDeliversToAllTokens(t *testing.T) {
	repo := &fakeTokenRepo{tokens: deviceTokens("t1", "t2")}
	primary := &fakePusher{env: push.EnvironmentProduction}
	secondary := &fakePusher{env: push.EnvironmentDevelopment}
	d := newTestDispatcher(repo, primary, secondary)

	result := d.Notify(context.Background(), uuid.New(), 3, 1, "Hackney")

	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)
	require.Len(t, primary.sent, 2)
	assert.Empty(t, secondary.sent)

	n := primary.sent[0]
	assert.Equal(t, "We found 3 new properties!", n.Title)
	assert.Equal(t, 3, n.Badge)
	assert.Equal(t, "new_properties", n.Data["type"])
	assert.Equal(t, 3, n.Data["count"])
	assert.Equal(t, "Hackney", n.Data["queryName"])
}

func TestNotifyNoTokensIsSuccessfulNoop(t *testing.T) {
	repo := &fakeTokenRepo{}
	primary := &fakePusher{env: push.EnvironmentProduction}
	secondary := &fakePusher{env: push.EnvironmentDevelopment}
	d := newTestDispatcher(repo, primary, secondary)

	result := d.Notify(context.Background(), uuid.New(), 1, 1, "")

	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)
	assert.Empty(t, primary.sent)
}

func TestNotifyTokenListFailure(t *testing.T) {
	repo := &fakeTokenRepo{listErr: fmt.Errorf("db gone")}
	d := newTestDispatcher(repo, &fakePusher{}, &fakePusher{})

	result := d.Notify(context.Background(), uuid.New(), 1, 1, "")

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "tokens:")
}

func TestNotifyBadTokenFallsBackToSecondary(t *testing.T) {
	repo := &fakeTokenRepo{tokens: deviceTokens("dev-build-token")}
	primary := &fakePusher{env: push.EnvironmentProduction, errs: map[string]error{
		"dev-build-token": badToken(push.EnvironmentProduction),
	}}
	secondary := &fakePusher{env: push.EnvironmentDevelopment}
	d := newTestDispatcher(repo, primary, secondary)

	result := d.Notify(context.Background(), uuid.New(), 1, 1, "")

	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)
	require.Len(t, secondary.sent, 1)
	assert.Empty(t, repo.deleted)
}

func TestNotifyBadInBothEnvironmentsPrunes(t *testing.T) {
	repo := &fakeTokenRepo{tokens: deviceTokens("stale")}
	primary := &fakePusher{env: push.EnvironmentProduction, errs: map[string]error{
		"stale": badToken(push.EnvironmentProduction),
	}}
	secondary := &fakePusher{env: push.EnvironmentDevelopment, errs: map[string]error{
		"stale": badToken(push.EnvironmentDevelopment),
	}}
	d := newTestDispatcher(repo, primary, secondary)

	result := d.Notify(context.Background(), uuid.New(), 1, 1, "")

	assert.False(t, result.Success)
	assert.Empty(t, result.Errors)
	assert.Equal(t, []string{"stale"}, repo.deleted)
}

func TestNotifyUnregisteredPrunesWithoutFallback(t *testing.T) {
	repo := &fakeTokenRepo{tokens: deviceTokens("dead")}
	primary := &fakePusher{env: push.EnvironmentProduction, errs: map[string]error{
		"dead": unregistered(push.EnvironmentProduction),
	}}
	secondary := &fakePusher{env: push.EnvironmentDevelopment}
	d := newTestDispatcher(repo, primary, secondary)

	result := d.Notify(context.Background(), uuid.New(), 1, 1, "")

	assert.False(t, result.Success)
	assert.Empty(t, result.Errors)
	assert.Empty(t, secondary.sent)
	assert.Equal(t, []string{"dead"}, repo.deleted)
}

func TestNotifyTransientFailureKeepsToken(t *testing.T) {
	repo := &fakeTokenRepo{tokens: deviceTokens("t1", "t2")}
	primary := &fakePusher{env: push.EnvironmentProduction, errs: map[string]error{
		"t1": transient(push.EnvironmentProduction),
	}}
	secondary := &fakePusher{env: push.EnvironmentDevelopment}
	d := newTestDispatcher(repo, primary, secondary)

	result := d.Notify(context.Background(), uuid.New(), 2, 1, "")

	// One delivery landed, so the user was notified.
	assert.True(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Empty(t, repo.deleted)
	assert.Empty(t, secondary.sent)
}

func TestNotifyTransientInSecondaryKeepsToken(t *testing.T) {
	repo := &fakeTokenRepo{tokens: deviceTokens("flaky")}
	primary := &fakePusher{env: push.EnvironmentProduction, errs: map[string]error{
		"flaky": badToken(push.EnvironmentProduction),
	}}
	secondary := &fakePusher{env: push.EnvironmentDevelopment, errs: map[string]error{
		"flaky": transient(push.EnvironmentDevelopment),
	}}
	d := newTestDispatcher(repo, primary, secondary)

	result := d.Notify(context.Background(), uuid.New(), 1, 1, "")

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Empty(t, repo.deleted)
}
