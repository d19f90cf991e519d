// Package notify resolves a user's device tokens, composes the summary message and
// delivers it with dual-environment fallback and permanent-failure pruning.
package notify

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/AlsakaSoftware/ijar/pkg/push"
	"github.com/AlsakaSoftware/ijar/pkg/repositories"
	"github.com/AlsakaSoftware/ijar/pkg/tracing"
)

// Result is the outcome of one notification attempt.
type Result struct {
	Success bool
	Errors  []string
}

// Dispatcher sends one summary push per user and prunes dead tokens.
type Dispatcher struct {
	tokens    repositories.DeviceTokens
	primary   push.Pusher
	secondary push.Pusher
	logger    ectologger.Logger
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher(tokens repositories.DeviceTokens, primary, secondary push.Pusher, logger ectologger.Logger) *Dispatcher {
	return &Dispatcher{
		tokens:    tokens,
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

// Shutdown releases the underlying push connections.
func (d *Dispatcher) Shutdown() {
	d.primary.Shutdown()
	d.secondary.Shutdown()
}

// Notify delivers the new-listings summary to every device the user has registered.
//
// Per token: attempt the primary environment; a bad-token failure there gets one retry
// in the secondary environment (the token may have been issued by the other build
// configuration). A token that is bad in both environments, or permanently dead
// (unregistered) in either, is deleted so it is never retried again. Transient failures
// keep the token and are surfaced in the error list.
//
// A user with no registered devices is a successful no-op.
func (d *Dispatcher) Notify(ctx context.Context, userID uuid.UUID, newCount, queryCount int, queryName string) Result {
	ctx, span := tracing.StartSpan(ctx, "Dispatcher.Notify")
	defer span.End()

	log := d.logger.WithContext(ctx).WithFields(map[string]any{
		"user_id":   userID,
		"new_count": newCount,
	})

	tokens, err := d.tokens.ListByUser(ctx, userID)
	if err != nil {
		log.WithError(err).Error("Failed to resolve device tokens")
		return Result{Errors: []string{"tokens: " + err.Error()}}
	}
	if len(tokens) == 0 {
		log.Debug("No device tokens registered, skipping notification")
		return Result{Success: true}
	}

	title, body := ComposeMessage(newCount, queryCount, queryName)
	data := map[string]any{
		"type":    "new_properties",
		"count":   newCount,
		"queries": queryCount,
	}
	if queryName != "" {
		data["queryName"] = queryName
	}

	delivered := 0
	var errs []string
	for _, deviceToken := range tokens {
		notification := push.Notification{
			Token: deviceToken.Token,
			Title: title,
			Body:  body,
			Badge: newCount,
			Data:  data,
		}

		err := d.primary.Send(ctx, notification)
		if err == nil {
			delivered++
			continue
		}

		if push.IsPermanent(err) {
			// Dead everywhere; expected steady-state churn, not a run error.
			log.WithError(err).Info("Pruning unregistered device token")
			d.prune(ctx, userID, deviceToken.Token, &errs)
			continue
		}

		if !push.IsBadToken(err) {
			errs = append(errs, err.Error())
			continue
		}

		err = d.secondary.Send(ctx, notification)
		switch {
		case err == nil:
			delivered++
		case push.IsBadToken(err), push.IsPermanent(err):
			log.WithError(err).Info("Pruning device token rejected by both environments")
			d.prune(ctx, userID, deviceToken.Token, &errs)
		default:
			errs = append(errs, err.Error())
		}
	}

	log.WithFields(map[string]any{
		"delivered":   delivered,
		"token_count": len(tokens),
	}).Info("Notification dispatch complete")

	return Result{Success: delivered > 0, Errors: errs}
}

func (d *Dispatcher) prune(ctx context.Context, userID uuid.UUID, token string, errs *[]string) {
	if err := d.tokens.Delete(ctx, userID, token); err != nil {
		*errs = append(*errs, "prune: "+err.Error())
	}
}
