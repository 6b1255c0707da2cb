package transform

import (
	"github.com/pgtelemetry/collector/state"
)

type ashKey struct {
	database      string
	state         string
	waitEventType string
	waitEvent     string
}

func transformActivity(b *gaugeBuilder, metrics state.UnifiedMetrics) {
	for _, event := range metrics.WaitEvents {
		b.addDouble("postgresql.wait_event.time", "ms", "Time spent in the wait event", event.WaitTimeMs, attributes(
			"db.name", event.DatabaseName,
			"db.query.id", event.QueryID,
			"postgresql.wait_event.type", event.WaitEventType,
			"postgresql.wait_event.name", event.WaitEvent,
		))
	}

	for _, session := range metrics.BlockingSessions {
		attrs := attributes(
			"db.name", session.BlockedDatabase,
			"postgresql.lock.type", session.LockType,
		)
		b.addDouble("postgresql.blocking.blocked_duration", "ms", "How long the blocked query has been running", session.BlockedDurationMs, attrs)
		b.addDouble("postgresql.blocking.blocking_duration", "ms", "How long the blocking query has been running", session.BlockingDurationMs, attrs)
	}
	b.addInt("postgresql.blocking.sessions", "{session}", "Number of blocked sessions", int64(len(metrics.BlockingSessions)), nil)
	b.addInt("postgresql.individual_queries", "{query}", "Number of running queries collected", int64(len(metrics.IndividualQueries)), nil)

	// Session history is reported aggregated, individual samples are too fine grained for metrics
	if len(metrics.ActiveSessionHistory) > 0 {
		counts := make(map[ashKey]int64)
		var keys []ashKey
		for _, sample := range metrics.ActiveSessionHistory {
			key := ashKey{sample.Database.String, sample.State.String, sample.WaitEventType.String, sample.WaitEvent.String}
			if _, ok := counts[key]; !ok {
				keys = append(keys, key)
			}
			counts[key]++
		}
		for _, key := range keys {
			b.addInt("postgresql.ash.samples", "{sample}", "Active session samples since the previous collection", counts[key], attributes(
				"db.name", key.database,
				"postgresql.session.state", key.state,
				"postgresql.wait_event.type", key.waitEventType,
				"postgresql.wait_event.name", key.waitEvent,
			))
		}
	}
}
