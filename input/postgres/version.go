package postgres

import (
	"context"
	"database/sql"
)

const serverVersionNumSQL string = `SELECT current_setting('server_version_num')::integer`

// GetServerVersionNum - Reads the numeric version of the connected server, e.g. 150004
func GetServerVersionNum(ctx context.Context, db *sql.DB) (int, error) {
	var versionNum int

	err := db.QueryRowContext(ctx, QueryMarkerSQL+serverVersionNumSQL).Scan(&versionNum)
	if err != nil {
		return 0, err
	}

	return versionNum, nil
}
