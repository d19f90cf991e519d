// Package repositories is the persistence gateway: typed repositories over the
// relational store for listings, saved queries, query-listing links and device tokens.
package repositories

import (
	"github.com/Gobusters/ectologger"

	"github.com/AlsakaSoftware/ijar/pkg/database"
)

// Repository provides the shared database handle and logger for entity repositories.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new base repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// DB returns the database instance
func (r *Repository) DB() database.DB {
	return r.db
}
