package postgres

import (
	"context"
	"database/sql"

	"github.com/pgtelemetry/collector/state"
	"github.com/pgtelemetry/collector/util"
)

// CategoryResult - Typed records returned by one category query
type CategoryResult struct {
	Category          state.MetricCategory
	Template          string
	SlowQueries       []state.SlowQuery
	WaitEvents        []state.WaitEvent
	BlockingSessions  []state.BlockingSession
	IndividualQueries []state.IndividualQuery
}

// Len - Number of records, regardless of category
func (r CategoryResult) Len() int {
	return len(r.SlowQueries) + len(r.WaitEvents) + len(r.BlockingSessions) + len(r.IndividualQueries)
}

// MergeInto - Copies the records into the snapshot
func (r CategoryResult) MergeInto(metrics *state.UnifiedMetrics) {
	metrics.SlowQueries = append(metrics.SlowQueries, r.SlowQueries...)
	metrics.WaitEvents = append(metrics.WaitEvents, r.WaitEvents...)
	metrics.BlockingSessions = append(metrics.BlockingSessions, r.BlockingSessions...)
	metrics.IndividualQueries = append(metrics.IndividualQueries, r.IndividualQueries...)
}

// Dispatcher runs category queries against one instance's connection pool.
// It is safe for concurrent use, each query gets its own pooled connection.
type Dispatcher struct {
	db     *sql.DB
	logger *util.Logger
}

func NewDispatcher(db *sql.DB, logger *util.Logger) *Dispatcher {
	return &Dispatcher{db: db, logger: logger}
}

// Execute resolves and runs the query for the category.
//
// Returns *state.UnsupportedVersionError when no query exists for the server
// version, and *state.QueryError (wrapping *state.TimeoutError on timeouts)
// when the query fails. In both cases the returned result is empty.
func (d *Dispatcher) Execute(ctx context.Context, category state.MetricCategory, caps state.Capabilities, params state.CommonParameters) (CategoryResult, error) {
	result := CategoryResult{Category: category}

	template, err := resolveTemplate(category, caps)
	if err != nil {
		return result, err
	}
	result.Template = template.Name

	d.logger.PrintVerbose("Running %s query", template.Name)

	rows, err := d.db.QueryContext(ctx, QueryMarkerSQL+template.SQL, template.bindArgs(params)...)
	if err != nil {
		return CategoryResult{Category: category, Template: template.Name}, &state.QueryError{Category: category, Err: classifyError(template.Name, err)}
	}
	defer rows.Close()

	err = template.collect(rows, &result)
	if err == nil {
		err = rows.Err()
	}
	if err != nil {
		return CategoryResult{Category: category, Template: template.Name}, &state.QueryError{Category: category, Err: classifyError(template.Name, err)}
	}

	if category == state.CategorySlowQueries {
		anonymizeAlterStatements(result.SlowQueries)
	}

	return result, nil
}

// Query texts of ALTER statements can carry secrets (e.g. ALTER ROLE ... PASSWORD)
func anonymizeAlterStatements(slowQueries []state.SlowQuery) {
	for idx := range slowQueries {
		text := slowQueries[idx].QueryText
		if text.Valid && util.ContainsAlter(text.String) {
			slowQueries[idx].QueryText.String = util.AnonymizeQueryText(text.String)
		}
	}
}
