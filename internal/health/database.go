package health

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lllypuk/sentinel/internal/domain/errs"
)

// DatabaseIndicatorName is the outcome name of the relational datastore probe.
const DatabaseIndicatorName = "database"

// DatabaseIndicator runs a constant, side-effect-free query against the primary
// relational store. The pool is owned by the caller.
type DatabaseIndicator struct {
	db *sql.DB
}

// NewDatabaseIndicator creates a new DatabaseIndicator.
func NewDatabaseIndicator(db *sql.DB) *DatabaseIndicator {
	return &DatabaseIndicator{db: db}
}

// Name implements Indicator.
func (d *DatabaseIndicator) Name() string {
	return DatabaseIndicatorName
}

// Check implements Indicator.
func (d *DatabaseIndicator) Check(ctx context.Context) Result {
	if d.db == nil {
		return Down(DatabaseIndicatorName,
			errs.Unavailable(DatabaseIndicatorName, errors.New("database pool not initialized")))
	}

	var one int
	if err := d.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return Down(DatabaseIndicatorName, errs.Unavailable(DatabaseIndicatorName, err))
	}

	return Up(DatabaseIndicatorName, nil)
}
