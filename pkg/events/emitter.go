// Package events publishes run outcomes for downstream consumers (feed refresh,
// analytics collaborators). Emission is best-effort: a failed publish never affects the
// run itself.
package events

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/AlsakaSoftware/ijar/pkg/kafka"
	"github.com/AlsakaSoftware/ijar/pkg/tracing"
)

// Emitter publishes pipeline events. A nil Emitter is a valid no-op, so callers never
// branch on whether event emission is configured.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// Close flushes and closes the underlying producer.
func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	return e.producer.Close()
}

// EmitPropertiesDiscovered emits an event for one user's new listings in a run.
func (e *Emitter) EmitPropertiesDiscovered(ctx context.Context, userID uuid.UUID, newCount, queryCount int) {
	if e == nil {
		return
	}

	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitPropertiesDiscovered")
	defer span.End()

	event := &kafka.PropertyEvent{
		EventType:  "properties.discovered",
		UserID:     userID.String(),
		NewCount:   newCount,
		QueryCount: queryCount,
	}

	if err := e.producer.PublishPropertyEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit properties.discovered event")
	}
}

// EmitRunCompleted emits the run-level summary event.
func (e *Emitter) EmitRunCompleted(ctx context.Context, totalNew, queryCount int) {
	if e == nil {
		return
	}

	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunCompleted")
	defer span.End()

	event := &kafka.PropertyEvent{
		EventType:  "run.completed",
		NewCount:   totalNew,
		QueryCount: queryCount,
	}

	if err := e.producer.PublishPropertyEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit run.completed event")
	}
}
