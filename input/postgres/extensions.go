package postgres

import (
	"context"
	"database/sql"

	"github.com/pgtelemetry/collector/state"
)

// Extensions that only work when their library is preloaded count as
// disabled when created in the database but missing from shared_preload_libraries
const extensionsSQL string = `
SELECT extname,
       extversion,
       extname NOT IN ('pg_stat_statements', 'pg_wait_sampling', 'pg_stat_monitor')
         OR extname = ANY(string_to_array(replace(current_setting('shared_preload_libraries'), ' ', ''), ','))
  FROM pg_catalog.pg_extension`

func GetExtensions(ctx context.Context, db *sql.DB) (map[string]state.ExtensionInfo, error) {
	rows, err := db.QueryContext(ctx, QueryMarkerSQL+extensionsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	extensions := make(map[string]state.ExtensionInfo)

	for rows.Next() {
		var e state.ExtensionInfo

		err := rows.Scan(&e.Name, &e.Version, &e.Enabled)
		if err != nil {
			return nil, err
		}

		extensions[e.Name] = e
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return extensions, nil
}
