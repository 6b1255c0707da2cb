package postgres

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/pgtelemetry/collector/state"
)

// pg_stat_statements before 1.8 (Postgres 12)
const slowQueriesSQLTotalTimeFieldDefault = "total_time"

// pg_stat_statements 1.8+ (Postgres 13+)
const slowQueriesSQLTotalTimeFieldMinorVersion8 = "total_exec_time"

const slowQueriesSQL string = `
SELECT pss.queryid,
       LEFT(pss.query, $4),
       pd.datname,
       current_schema(),
       pss.calls,
       pss.%[1]s / NULLIF(pss.calls, 0) AS avg_elapsed_time_ms,
       pss.shared_blks_read::float8 / NULLIF(pss.calls, 0),
       pss.shared_blks_written::float8 / NULLIF(pss.calls, 0),
       CASE
         WHEN pss.query ILIKE 'SELECT%%' THEN 'SELECT'
         WHEN pss.query ILIKE 'INSERT%%' THEN 'INSERT'
         WHEN pss.query ILIKE 'UPDATE%%' THEN 'UPDATE'
         WHEN pss.query ILIKE 'DELETE%%' THEN 'DELETE'
         ELSE 'OTHER'
       END,
       to_char(now() AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'),
       NULL::text
  FROM pg_stat_statements pss
  JOIN pg_catalog.pg_database pd ON (pss.dbid = pd.oid)
 WHERE pd.datname = ANY($1::text[])
   AND pss.%[1]s / NULLIF(pss.calls, 0) >= $2
   AND pss.query NOT ILIKE 'EXPLAIN (FORMAT JSON%%'
   AND pss.query NOT LIKE '%[2]s%%'
 ORDER BY avg_elapsed_time_ms DESC
 LIMIT $3`

func slowQueriesTemplate(dialect StatementsDialect) *queryTemplate {
	totalTimeField := slowQueriesSQLTotalTimeFieldDefault
	if dialect == DialectTotalExecTime {
		totalTimeField = slowQueriesSQLTotalTimeFieldMinorVersion8
	}

	return &queryTemplate{
		Name: "slow_queries/" + dialect.String(),
		SQL:  fmt.Sprintf(slowQueriesSQL, totalTimeField, QueryMarkerSQL),
		bindArgs: func(params state.CommonParameters) []interface{} {
			return []interface{}{
				pq.Array(params.Databases),
				float64(params.ResponseTimeThresholdMs),
				params.CountThreshold,
				params.MaxQueryLength,
			}
		},
		collect: collectSlowQueries,
	}
}

func collectSlowQueries(rows *sql.Rows, result *CategoryResult) error {
	for rows.Next() {
		var row state.SlowQuery

		err := rows.Scan(&row.QueryID, &row.QueryText, &row.DatabaseName, &row.SchemaName,
			&row.ExecutionCount, &row.AvgElapsedTimeMs, &row.AvgDiskReads, &row.AvgDiskWrites,
			&row.StatementType, &row.CollectionTimestamp, &row.IndividualQuery)
		if err != nil {
			return err
		}

		result.SlowQueries = append(result.SlowQueries, row)
	}

	return nil
}
