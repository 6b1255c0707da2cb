package postgres

import (
	"database/sql"

	"github.com/pgtelemetry/collector/state"
)

// Managed services: wait state straight from pg_stat_activity, waiting since query start
const waitEventsActivitySQL string = `
SELECT psa.pid,
       psa.wait_event_type,
       psa.wait_event,
       EXTRACT(EPOCH FROM (now() - psa.query_start)) * 1000 AS wait_time_ms,
       psa.state,
       psa.usename,
       psa.datname,
       pss.queryid,
       LEFT(psa.query, $2),
       to_char(now() AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
  FROM pg_catalog.pg_stat_activity psa
  LEFT JOIN pg_stat_statements pss ON (psa.query = pss.query AND psa.datid = pss.dbid)
 WHERE psa.datname = ANY($1::text[])
   AND psa.wait_event IS NOT NULL
   AND psa.state <> 'idle'
   AND psa.pid <> pg_backend_pid()
 ORDER BY wait_time_ms DESC
 LIMIT 100`

// Self-managed servers: wait durations derived from pg_wait_sampling history
const waitEventsSamplingSQL string = `
WITH wait_history AS (
  SELECT ts AS event_time,
         pid,
         event_type,
         event,
         lag(ts) OVER (PARTITION BY pid ORDER BY ts) AS prev_time
    FROM pg_wait_sampling_history
   WHERE ts > now() - interval '5 minutes'
)
SELECT wh.pid,
       wh.event_type,
       wh.event,
       EXTRACT(EPOCH FROM (wh.event_time - COALESCE(wh.prev_time, wh.event_time))) * 1000 AS wait_time_ms,
       psa.state,
       psa.usename,
       psa.datname,
       pss.queryid,
       LEFT(psa.query, $2),
       to_char(now() AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
  FROM wait_history wh
  JOIN pg_catalog.pg_stat_activity psa ON (wh.pid = psa.pid)
  LEFT JOIN pg_stat_statements pss ON (psa.query = pss.query AND psa.datid = pss.dbid)
 WHERE psa.datname = ANY($1::text[])
   AND wh.event IS NOT NULL
 ORDER BY wait_time_ms DESC
 LIMIT 100`

func waitEventsTemplate(managed bool) *queryTemplate {
	template := &queryTemplate{
		Name:     "wait_events/pg_wait_sampling",
		SQL:      waitEventsSamplingSQL,
		bindArgs: databasesAndQueryLengthArgs,
		collect:  collectWaitEvents,
	}
	if managed {
		template.Name = "wait_events/pg_stat_activity"
		template.SQL = waitEventsActivitySQL
	}
	return template
}

func collectWaitEvents(rows *sql.Rows, result *CategoryResult) error {
	for rows.Next() {
		var row state.WaitEvent

		err := rows.Scan(&row.PID, &row.WaitEventType, &row.WaitEvent, &row.WaitTimeMs,
			&row.State, &row.Usename, &row.DatabaseName, &row.QueryID, &row.QueryText,
			&row.CollectionTimestamp)
		if err != nil {
			return err
		}

		result.WaitEvents = append(result.WaitEvents, row)
	}

	return nil
}
