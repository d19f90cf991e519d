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

const savedQueriesTable = "saved_queries"

var savedQueryStruct = database.NewStruct(new(models.SavedQuery))

// SavedQueryRepository reads the saved searches the pipeline monitors. Queries are
// created and deactivated by the client collaborator; the pipeline is read-only here.
type SavedQueryRepository struct {
	*Repository
}

// NewSavedQueryRepository creates a new saved query repository
func NewSavedQueryRepository(db database.DB, logger ectologger.Logger) *SavedQueryRepository {
	return &SavedQueryRepository{
		Repository: NewRepository(db, logger),
	}
}

// ListActive returns every query with active = true.
func (r *SavedQueryRepository) ListActive(ctx context.Context) ([]models.SavedQuery, error) {
	ctx, span := tracing.StartSpan(ctx, "SavedQueryRepository.ListActive")
	defer span.End()

	sb := savedQueryStruct.SelectFrom(savedQueriesTable)
	sb.Where(sb.Equal("active", true))
	sb.OrderBy("created_at")

	query, args := sb.Build()
	var queries []models.SavedQuery
	if err := r.DB().SelectContext(ctx, &queries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list active queries")
		return nil, errors.Wrap(err, "failed to list active queries")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"query_count": len(queries),
	}).Debugf("Listed active %s", savedQueriesTable)
	return queries, nil
}

// ListActiveByUser returns the active queries owned by one user.
func (r *SavedQueryRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]models.SavedQuery, error) {
	ctx, span := tracing.StartSpan(ctx, "SavedQueryRepository.ListActiveByUser")
	defer span.End()

	sb := savedQueryStruct.SelectFrom(savedQueriesTable)
	sb.Where(sb.Equal("active", true), sb.Equal("user_id", userID))
	sb.OrderBy("created_at")

	query, args := sb.Build()
	var queries []models.SavedQuery
	if err := r.DB().SelectContext(ctx, &queries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"user_id": userID,
		}).Error("failed to list active queries for user")
		return nil, errors.Wrap(err, "failed to list active queries for user")
	}

	return queries, nil
}
