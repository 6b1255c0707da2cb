package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/pgtelemetry/collector/state"
)

// query_id only exists in pg_stat_activity on 14+, reading it through jsonb
// works on all supported versions (NULL when the column is missing)
const activeSessionsSQL string = `
SELECT psa.pid,
       psa.usename,
       psa.datname,
       (to_jsonb(psa.*) ->> 'query_id')::bigint,
       psa.state,
       psa.wait_event_type,
       psa.wait_event,
       LEFT(psa.query, $2),
       psa.backend_type
  FROM pg_catalog.pg_stat_activity psa
 WHERE psa.pid <> pg_backend_pid()
   AND psa.state IS NOT NULL
   AND psa.state <> 'idle'
   AND psa.datname = ANY($1::text[])`

// BackendSource reads active backends from pg_stat_activity for session sampling
type BackendSource struct {
	db             *sql.DB
	databases      []string
	maxQueryLength int
}

func NewBackendSource(db *sql.DB, databases []string, maxQueryLength int) *BackendSource {
	return &BackendSource{db: db, databases: databases, maxQueryLength: maxQueryLength}
}

// ActiveSessions - One sample per non-idle backend, excluding our own connection
func (s *BackendSource) ActiveSessions(ctx context.Context, sampleTime time.Time) ([]state.ASHSample, error) {
	rows, err := s.db.QueryContext(ctx, QueryMarkerSQL+activeSessionsSQL, pq.Array(s.databases), s.maxQueryLength)
	if err != nil {
		return nil, classifyError("active session sample", err)
	}
	defer rows.Close()

	var samples []state.ASHSample
	for rows.Next() {
		sample := state.ASHSample{SampleTime: sampleTime}

		err = rows.Scan(&sample.PID, &sample.User, &sample.Database, &sample.QueryID,
			&sample.State, &sample.WaitEventType, &sample.WaitEvent, &sample.QueryText,
			&sample.BackendType)
		if err != nil {
			return nil, err
		}

		samples = append(samples, sample)
	}

	if err = rows.Err(); err != nil {
		return nil, classifyError("active session sample", err)
	}

	return samples, nil
}
