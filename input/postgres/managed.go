package postgres

import (
	"context"
	"database/sql"
)

// Settings only present on Amazon RDS / Aurora
const managedServiceSQL string = `
SELECT EXISTS (
  SELECT 1
    FROM pg_catalog.pg_settings
   WHERE name IN ('rds.superuser_reserved_connections', 'rds.extensions')
)`

func isManagedService(ctx context.Context, db *sql.DB) (bool, error) {
	var managed bool

	err := db.QueryRowContext(ctx, QueryMarkerSQL+managedServiceSQL).Scan(&managed)
	if err != nil {
		return false, err
	}

	return managed, nil
}
