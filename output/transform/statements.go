package transform

import (
	"github.com/pgtelemetry/collector/state"
)

func transformStatements(b *gaugeBuilder, slowQueries []state.SlowQuery) {
	for _, query := range slowQueries {
		attrs := attributes(
			"db.name", query.DatabaseName,
			"db.query.id", query.QueryID,
			"db.statement.type", query.StatementType,
			"db.query.text", query.QueryText,
		)
		b.addDouble("postgresql.query.avg_elapsed_time", "ms", "Mean execution time of the statement", query.AvgElapsedTimeMs, attrs)
		if query.ExecutionCount.Valid {
			b.addInt("postgresql.query.execution_count", "{call}", "Number of times the statement was executed", query.ExecutionCount.Int64, attrs)
		}
		b.addDouble("postgresql.query.avg_disk_reads", "{block}", "Mean shared blocks read per execution", query.AvgDiskReads, attrs)
		b.addDouble("postgresql.query.avg_disk_writes", "{block}", "Mean shared blocks written per execution", query.AvgDiskWrites, attrs)
	}
}
