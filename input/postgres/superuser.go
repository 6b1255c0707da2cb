package postgres

import (
	"context"
	"database/sql"
)

const connectedAsSuperUserSQL string = `SELECT current_setting('is_superuser') = 'on'`

func connectedAsSuperUser(ctx context.Context, db *sql.DB) (bool, error) {
	var enabled bool

	err := db.QueryRowContext(ctx, QueryMarkerSQL+connectedAsSuperUserSQL).Scan(&enabled)
	if err != nil {
		return false, err
	}

	return enabled, nil
}
