package postgres

import (
	"github.com/pgtelemetry/collector/state"
)

// StatementsDialect - Which pg_stat_statements column names a server uses
type StatementsDialect int

const (
	// DialectUnsupported - Servers older than 12, rejected at dispatch time
	DialectUnsupported StatementsDialect = iota
	// DialectTotalTime - Postgres 12 ("total_time" family)
	DialectTotalTime
	// DialectTotalExecTime - Postgres 13+ ("total_exec_time" family)
	DialectTotalExecTime
)

func (d StatementsDialect) String() string {
	switch d {
	case DialectTotalTime:
		return "total_time"
	case DialectTotalExecTime:
		return "total_exec_time"
	}
	return "unsupported"
}

// SelectDialect - Dialect for the given major version
func SelectDialect(version int) StatementsDialect {
	if version >= state.PostgresVersion13 {
		return DialectTotalExecTime
	}
	if version == state.PostgresVersion12 {
		return DialectTotalTime
	}
	return DialectUnsupported
}

// IsEligible - Whether the category may run against a server with the given capabilities.
//
// This only narrows which categories run; version support is enforced by the dispatcher.
func IsEligible(category state.MetricCategory, caps state.Capabilities) bool {
	switch category {
	case state.CategorySlowQueries:
		return caps.HasExtension(state.ExtensionPgStatStatements)
	case state.CategoryWaitEvents:
		// Managed services expose wait state through pg_stat_activity directly
		return caps.HasExtension(state.ExtensionPgStatStatements) &&
			(caps.HasExtension(state.ExtensionPgWaitSampling) || caps.IsManaged)
	case state.CategoryBlockingSessions:
		// Versions before 12 stay eligible so dispatch reports them as unsupported
		if caps.Version < state.PostgresVersion14 {
			return true
		}
		return caps.HasExtension(state.ExtensionPgStatStatements)
	case state.CategoryIndividualQueries:
		return caps.HasExtension(state.ExtensionPgStatMonitor) || caps.IsManaged
	}
	return false
}

// IneligibleReason - Human readable explanation for why IsEligible returned false
func IneligibleReason(category state.MetricCategory, caps state.Capabilities) string {
	switch category {
	case state.CategorySlowQueries:
		return "pg_stat_statements is not installed"
	case state.CategoryWaitEvents:
		if !caps.HasExtension(state.ExtensionPgStatStatements) {
			return "pg_stat_statements is not installed"
		}
		return "pg_wait_sampling is not installed"
	case state.CategoryBlockingSessions:
		return "pg_stat_statements is not installed"
	case state.CategoryIndividualQueries:
		return "pg_stat_monitor is not installed"
	}
	return "unknown category"
}

// EligibleCategories - All categories that may run this cycle, in reporting order
func EligibleCategories(caps state.Capabilities) []state.MetricCategory {
	categories := []state.MetricCategory{}
	for _, category := range state.AllCategories {
		if IsEligible(category, caps) {
			categories = append(categories, category)
		}
	}
	return categories
}
