package repositories

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/AlsakaSoftware/ijar/pkg/database"
	"github.com/AlsakaSoftware/ijar/pkg/models"
	"github.com/AlsakaSoftware/ijar/pkg/tracing"
)

const deviceTokensTable = "device_tokens"

var deviceTokenStruct = database.NewStruct(new(models.DeviceToken))

// DeviceTokenRepository handles push-delivery endpoints. Registration belongs to the
// client collaborator; the pipeline reads tokens and prunes the permanently invalid ones.
type DeviceTokenRepository struct {
	*Repository
}

// NewDeviceTokenRepository creates a new device token repository
func NewDeviceTokenRepository(db database.DB, logger ectologger.Logger) *DeviceTokenRepository {
	return &DeviceTokenRepository{
		Repository: NewRepository(db, logger),
	}
}

// ListByUser returns the user's registered device tokens.
func (r *DeviceTokenRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.DeviceToken, error) {
	ctx, span := tracing.StartSpan(ctx, "DeviceTokenRepository.ListByUser")
	defer span.End()

	sb := deviceTokenStruct.SelectFrom(deviceTokensTable)
	sb.Where(sb.Equal("user_id", userID))

	query, args := sb.Build()
	var tokens []models.DeviceToken
	if err := r.DB().SelectContext(ctx, &tokens, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"user_id": userID,
		}).Error("failed to list device tokens")
		return nil, errors.Wrap(err, "failed to list device tokens")
	}

	return tokens, nil
}

// Delete removes a token the delivery provider reported as permanently invalid. Deleting
// an already-removed token is a no-op.
func (r *DeviceTokenRepository) Delete(ctx context.Context, userID uuid.UUID, token string) error {
	ctx, span := tracing.StartSpan(ctx, "DeviceTokenRepository.Delete")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(deviceTokensTable).
		Where(db.Equal("user_id", userID), db.Equal("token", token))

	query, args := db.Build()
	if _, err := r.DB().ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"user_id": userID,
		}).Error("failed to delete device token")
		return errors.Wrap(err, "failed to delete device token")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"user_id": userID,
	}).Infof("Deleted invalid token from %s", deviceTokensTable)
	return nil
}
