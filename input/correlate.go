package input

import (
	"github.com/pgtelemetry/collector/state"
	"github.com/pgtelemetry/collector/util"
)

// correlateWithSlowQueries approximates per-session detail on managed
// services: only running queries whose normalized text equals the normalized
// text of a collected slow query are kept, and they take over its query ID.
//
// Without slow queries there is nothing to correlate against, the running
// queries are kept as they are and a warning is returned.
func correlateWithSlowQueries(individual []state.IndividualQuery, slowQueries []state.SlowQuery, normalizer *util.NormalizedQueryCache) ([]state.IndividualQuery, string) {
	if len(slowQueries) == 0 {
		return individual, "no slow queries to correlate running queries with, reporting them uncorrelated"
	}

	byText := make(map[string]state.SlowQuery, len(slowQueries))
	for _, slow := range slowQueries {
		if !slow.QueryText.Valid {
			continue
		}
		key := slow.DatabaseName.String + "\x00" + normalizer.Normalize(slow.QueryText.String)
		if _, exists := byText[key]; !exists {
			byText[key] = slow
		}
	}

	correlated := []state.IndividualQuery{}
	for _, query := range individual {
		if !query.QueryText.Valid {
			continue
		}
		slow, ok := byText[query.DatabaseName.String+"\x00"+normalizer.Normalize(query.QueryText.String)]
		if !ok {
			continue
		}
		if !query.QueryID.Valid {
			query.QueryID = slow.QueryID
		}
		correlated = append(correlated, query)
	}

	return correlated, ""
}
