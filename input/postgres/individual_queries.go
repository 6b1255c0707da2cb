package postgres

import (
	"database/sql"
	"fmt"

	"github.com/pgtelemetry/collector/state"
)

const individualQueriesSQLQueryIDFieldDefault = "NULL::bigint"

// Postgres 14+ (requires compute_query_id, NULL otherwise)
const individualQueriesSQLQueryIDFieldVersion14 = "psa.query_id"

const individualQueriesSQLBackendTypeFilterDefault = ""

// Postgres 13+ on self-managed servers: restrict to client backends
const individualQueriesSQLBackendTypeFilterVersion13 = "AND psa.backend_type = 'client backend'"

const individualQueriesSQL string = `
SELECT psa.pid,
       %s,
       LEFT(psa.query, $2),
       psa.state,
       psa.wait_event_type,
       psa.wait_event,
       psa.usename,
       psa.datname,
       to_char(psa.backend_start AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'),
       to_char(psa.xact_start AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'),
       to_char(psa.query_start AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'),
       to_char(psa.state_change AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'),
       psa.backend_type,
       to_char(now() AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
  FROM pg_catalog.pg_stat_activity psa
 WHERE psa.datname = ANY($1::text[])
   AND psa.query IS NOT NULL
   AND psa.query <> ''
   AND psa.state <> 'idle'
   AND psa.pid <> pg_backend_pid()
   %s
 ORDER BY psa.query_start
 LIMIT 100`

func individualQueriesTemplate(bucket versionBucket, managed bool) *queryTemplate {
	name := "individual_queries/all_backends"
	queryIDField := individualQueriesSQLQueryIDFieldDefault
	backendTypeFilter := individualQueriesSQLBackendTypeFilterDefault

	if !managed && bucket >= versionBucket13 {
		name = "individual_queries/client_backends"
		backendTypeFilter = individualQueriesSQLBackendTypeFilterVersion13
	}
	if bucket >= versionBucket14 {
		queryIDField = individualQueriesSQLQueryIDFieldVersion14
	}

	return &queryTemplate{
		Name:     name,
		SQL:      fmt.Sprintf(individualQueriesSQL, queryIDField, backendTypeFilter),
		bindArgs: databasesAndQueryLengthArgs,
		collect:  collectIndividualQueries,
	}
}

func collectIndividualQueries(rows *sql.Rows, result *CategoryResult) error {
	for rows.Next() {
		var row state.IndividualQuery

		err := rows.Scan(&row.PID, &row.QueryID, &row.QueryText, &row.State,
			&row.WaitEventType, &row.WaitEvent, &row.Usename, &row.DatabaseName,
			&row.BackendStart, &row.XactStart, &row.QueryStart, &row.StateChange,
			&row.BackendType, &row.CollectionTimestamp)
		if err != nil {
			return err
		}

		result.IndividualQueries = append(result.IndividualQueries, row)
	}

	return nil
}
