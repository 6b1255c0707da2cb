package input

import (
	"testing"

	"github.com/guregu/null/v5"
	"github.com/kylelemons/godebug/pretty"

	"github.com/pgtelemetry/collector/state"
	"github.com/pgtelemetry/collector/util"
)

func individualQuery(pid int64, database string, text string) state.IndividualQuery {
	return state.IndividualQuery{PID: null.IntFrom(pid), DatabaseName: null.StringFrom(database), QueryText: null.StringFrom(text)}
}

func TestCorrelateWithSlowQueries(t *testing.T) {
	slowQueries := []state.SlowQuery{
		{QueryID: null.IntFrom(1), DatabaseName: null.StringFrom("app"), QueryText: null.StringFrom("SELECT * FROM users WHERE email = $1")},
		{QueryID: null.IntFrom(2), DatabaseName: null.StringFrom("app"), QueryText: null.StringFrom("UPDATE orders SET state = $1 WHERE id = $2")},
		{QueryID: null.IntFrom(3), DatabaseName: null.StringFrom("app")},
	}
	individual := []state.IndividualQuery{
		individualQuery(10, "app", "select * from users   where email = 'jane@example.com'"),
		individualQuery(11, "app", "UPDATE orders SET state = 'shipped' WHERE id = 4711;"),
		individualQuery(12, "reporting", "SELECT * FROM users WHERE email = 'x'"),
		individualQuery(13, "app", "SELECT pg_sleep(10)"),
		{PID: null.IntFrom(14), DatabaseName: null.StringFrom("app")},
	}

	expected := []state.IndividualQuery{individual[0], individual[1]}
	expected[0].QueryID = null.IntFrom(1)
	expected[1].QueryID = null.IntFrom(2)

	actual, warning := correlateWithSlowQueries(individual, slowQueries, util.NewNormalizedQueryCache(10))
	if warning != "" {
		t.Errorf("Unexpected warning: %s", warning)
	}
	if diff := pretty.Compare(expected, actual); diff != "" {
		t.Errorf("Unexpected correlation: (-want +got)\n%s", diff)
	}
}

func TestCorrelateWithoutSlowQueries(t *testing.T) {
	individual := []state.IndividualQuery{individualQuery(10, "app", "SELECT 1")}

	actual, warning := correlateWithSlowQueries(individual, nil, nil)
	if warning == "" {
		t.Errorf("Expected a warning when there is nothing to correlate with")
	}
	if len(actual) != 1 {
		t.Errorf("Expected running queries to be kept, got %d", len(actual))
	}
}

func TestCorrelateKeepsExistingQueryID(t *testing.T) {
	slowQueries := []state.SlowQuery{
		{QueryID: null.IntFrom(1), DatabaseName: null.StringFrom("app"), QueryText: null.StringFrom("SELECT $1")},
	}
	query := individualQuery(10, "app", "SELECT 5")
	query.QueryID = null.IntFrom(99)

	actual, _ := correlateWithSlowQueries([]state.IndividualQuery{query}, slowQueries, nil)
	if len(actual) != 1 || actual[0].QueryID.Int64 != 99 {
		t.Errorf("Expected query ID 99 to be kept, got %s", pretty.Sprint(actual))
	}
}
