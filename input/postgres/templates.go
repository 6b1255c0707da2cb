package postgres

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/pgtelemetry/collector/state"
)

// First pg_stat_statements release with the total_exec_time column family
const minStatementsVersionTotalExecTime = "1.8"

type versionBucket int

const (
	versionBucketUnsupported versionBucket = iota
	versionBucket12
	versionBucket13
	versionBucket14
)

func bucketForVersion(version int) versionBucket {
	switch {
	case version >= state.PostgresVersion14:
		return versionBucket14
	case version == state.PostgresVersion13:
		return versionBucket13
	case version == state.PostgresVersion12:
		return versionBucket12
	}
	return versionBucketUnsupported
}

// Representative major version of a bucket, used to pick the statements dialect
func (b versionBucket) version() int {
	switch b {
	case versionBucket12:
		return state.PostgresVersion12
	case versionBucket13:
		return state.PostgresVersion13
	case versionBucket14:
		return state.PostgresVersion14
	}
	return 0
}

// queryTemplate - One parameterized query for a (category, version bucket, managed) combination.
// All user controlled values are bound as parameters, never formatted into SQL.
type queryTemplate struct {
	Name     string
	SQL      string
	bindArgs func(params state.CommonParameters) []interface{}
	collect  func(rows *sql.Rows, result *CategoryResult) error
}

type templateKey struct {
	category state.MetricCategory
	bucket   versionBucket
	managed  bool
}

var queryTemplates = buildQueryTemplates()

func buildQueryTemplates() map[templateKey]*queryTemplate {
	templates := make(map[templateKey]*queryTemplate)

	for _, bucket := range []versionBucket{versionBucket12, versionBucket13, versionBucket14} {
		for _, managed := range []bool{false, true} {
			templates[templateKey{state.CategorySlowQueries, bucket, managed}] = slowQueriesTemplate(SelectDialect(bucket.version()))
			templates[templateKey{state.CategoryWaitEvents, bucket, managed}] = waitEventsTemplate(managed)
			templates[templateKey{state.CategoryBlockingSessions, bucket, managed}] = blockingSessionsTemplate(bucket, managed)
			templates[templateKey{state.CategoryIndividualQueries, bucket, managed}] = individualQueriesTemplate(bucket, managed)
		}
	}

	return templates
}

func resolveTemplate(category state.MetricCategory, caps state.Capabilities) (*queryTemplate, error) {
	key := templateKey{category: category, bucket: bucketForVersion(caps.Version), managed: caps.IsManaged}
	template, ok := queryTemplates[key]
	if !ok {
		return nil, &state.UnsupportedVersionError{Category: category, Version: caps.Version}
	}

	// total_exec_time only exists from pg_stat_statements 1.8 onwards, an
	// extension that wasn't updated after a major upgrade still has total_time
	if category == state.CategorySlowQueries && SelectDialect(caps.Version) == DialectTotalExecTime {
		pgss := caps.Extensions[state.ExtensionPgStatStatements]
		if !pgss.AtLeast(minStatementsVersionTotalExecTime) {
			return nil, &state.UnsupportedVersionError{
				Category:    category,
				Version:     caps.Version,
				Requirement: fmt.Sprintf("pg_stat_statements %s or newer required, %q installed, run ALTER EXTENSION pg_stat_statements UPDATE", minStatementsVersionTotalExecTime, pgss.Version),
			}
		}
	}

	return template, nil
}

// TemplateName - Name of the query that would run for the category, e.g. "slow_queries/total_exec_time"
func TemplateName(category state.MetricCategory, caps state.Capabilities) (string, error) {
	template, err := resolveTemplate(category, caps)
	if err != nil {
		return "", err
	}
	return template.Name, nil
}

func databasesAndQueryLengthArgs(params state.CommonParameters) []interface{} {
	return []interface{}{pq.Array(params.Databases), params.MaxQueryLength}
}
