package postgres

import (
	"database/sql"

	"github.com/pgtelemetry/collector/state"
)

const blockingSessionsSelectSQL string = `
SELECT blocking_pid,
       blocked_pid,
       LEFT(blocking_query, $2),
       LEFT(blocked_query, $2),
       blocking_database,
       blocked_database,
       blocking_user,
       blocked_user,
       blocking_duration_ms,
       blocked_duration_ms,
       lock_type,
       to_char(now() AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
  FROM blocking_tree
 LIMIT 100`

// Managed services: pg_blocking_pids() works without access to other roles' lock details
const blockingSessionsManagedSQL string = `
WITH blocking_tree AS (
  SELECT blockers.pid AS blocking_pid,
         blockers.query AS blocking_query,
         blockers.datname AS blocking_database,
         blockers.usename AS blocking_user,
         EXTRACT(EPOCH FROM (now() - blockers.query_start)) * 1000 AS blocking_duration_ms,
         blocked.pid AS blocked_pid,
         blocked.query AS blocked_query,
         blocked.datname AS blocked_database,
         blocked.usename AS blocked_user,
         EXTRACT(EPOCH FROM (now() - blocked.query_start)) * 1000 AS blocked_duration_ms,
         'Lock' AS lock_type
    FROM pg_catalog.pg_stat_activity blocked
    JOIN pg_catalog.pg_stat_activity blockers ON (blockers.pid = ANY(pg_catalog.pg_blocking_pids(blocked.pid)))
   WHERE blocked.datname = ANY($1::text[])
)` + blockingSessionsSelectSQL

// Postgres 14+: exact lock type from the conflicting pg_locks entries
const blockingSessionsLocksSQL string = `
WITH blocking_tree AS (
  SELECT blockers.pid AS blocking_pid,
         blockers.query AS blocking_query,
         blockers.datname AS blocking_database,
         blockers.usename AS blocking_user,
         EXTRACT(EPOCH FROM (now() - blockers.query_start)) * 1000 AS blocking_duration_ms,
         blocked.pid AS blocked_pid,
         blocked.query AS blocked_query,
         blocked.datname AS blocked_database,
         blocked.usename AS blocked_user,
         EXTRACT(EPOCH FROM (now() - blocked.query_start)) * 1000 AS blocked_duration_ms,
         blocked_locks.locktype AS lock_type
    FROM pg_catalog.pg_locks blocked_locks
    JOIN pg_catalog.pg_stat_activity blocked ON (blocked.pid = blocked_locks.pid)
    JOIN pg_catalog.pg_locks blocking_locks
      ON (blocking_locks.locktype = blocked_locks.locktype
          AND blocking_locks.database IS NOT DISTINCT FROM blocked_locks.database
          AND blocking_locks.relation IS NOT DISTINCT FROM blocked_locks.relation
          AND blocking_locks.page IS NOT DISTINCT FROM blocked_locks.page
          AND blocking_locks.tuple IS NOT DISTINCT FROM blocked_locks.tuple
          AND blocking_locks.virtualxid IS NOT DISTINCT FROM blocked_locks.virtualxid
          AND blocking_locks.transactionid IS NOT DISTINCT FROM blocked_locks.transactionid
          AND blocking_locks.classid IS NOT DISTINCT FROM blocked_locks.classid
          AND blocking_locks.objid IS NOT DISTINCT FROM blocked_locks.objid
          AND blocking_locks.objsubid IS NOT DISTINCT FROM blocked_locks.objsubid
          AND blocking_locks.pid <> blocked_locks.pid)
    JOIN pg_catalog.pg_stat_activity blockers ON (blockers.pid = blocking_locks.pid)
   WHERE NOT blocked_locks.granted
     AND blocking_locks.granted
     AND blocked.datname = ANY($1::text[])
)` + blockingSessionsSelectSQL

// Postgres 12 and 13
const blockingSessionsLegacySQL string = `
WITH blocking_tree AS (
  SELECT blockers.pid AS blocking_pid,
         blockers.query AS blocking_query,
         blockers.datname AS blocking_database,
         blockers.usename AS blocking_user,
         EXTRACT(EPOCH FROM (now() - blockers.query_start)) * 1000 AS blocking_duration_ms,
         blocked.pid AS blocked_pid,
         blocked.query AS blocked_query,
         blocked.datname AS blocked_database,
         blocked.usename AS blocked_user,
         EXTRACT(EPOCH FROM (now() - blocked.query_start)) * 1000 AS blocked_duration_ms,
         'Lock' AS lock_type
    FROM (
      SELECT DISTINCT kl.pid AS blocking_pid, bl.pid AS blocked_pid
        FROM pg_catalog.pg_locks bl
        JOIN pg_catalog.pg_locks kl
          ON (kl.locktype = bl.locktype
              AND kl.database IS NOT DISTINCT FROM bl.database
              AND kl.relation IS NOT DISTINCT FROM bl.relation
              AND kl.page IS NOT DISTINCT FROM bl.page
              AND kl.tuple IS NOT DISTINCT FROM bl.tuple
              AND kl.virtualxid IS NOT DISTINCT FROM bl.virtualxid
              AND kl.transactionid IS NOT DISTINCT FROM bl.transactionid
              AND kl.classid IS NOT DISTINCT FROM bl.classid
              AND kl.objid IS NOT DISTINCT FROM bl.objid
              AND kl.objsubid IS NOT DISTINCT FROM bl.objsubid
              AND kl.pid <> bl.pid)
       WHERE NOT bl.granted AND kl.granted
    ) pairs
    JOIN pg_catalog.pg_stat_activity blockers ON (blockers.pid = pairs.blocking_pid)
    JOIN pg_catalog.pg_stat_activity blocked ON (blocked.pid = pairs.blocked_pid)
   WHERE blockers.datname = ANY($1::text[])
)` + blockingSessionsSelectSQL

func blockingSessionsTemplate(bucket versionBucket, managed bool) *queryTemplate {
	template := &queryTemplate{
		Name:     "blocking_sessions/v12",
		SQL:      blockingSessionsLegacySQL,
		bindArgs: databasesAndQueryLengthArgs,
		collect:  collectBlockingSessions,
	}
	if managed {
		template.Name = "blocking_sessions/managed"
		template.SQL = blockingSessionsManagedSQL
	} else if bucket >= versionBucket14 {
		template.Name = "blocking_sessions/v14"
		template.SQL = blockingSessionsLocksSQL
	}
	return template
}

func collectBlockingSessions(rows *sql.Rows, result *CategoryResult) error {
	for rows.Next() {
		var row state.BlockingSession

		err := rows.Scan(&row.BlockingPID, &row.BlockedPID, &row.BlockingQuery, &row.BlockedQuery,
			&row.BlockingDatabase, &row.BlockedDatabase, &row.BlockingUser, &row.BlockedUser,
			&row.BlockingDurationMs, &row.BlockedDurationMs, &row.LockType, &row.CollectionTimestamp)
		if err != nil {
			return err
		}

		result.BlockingSessions = append(result.BlockingSessions, row)
	}

	return nil
}
