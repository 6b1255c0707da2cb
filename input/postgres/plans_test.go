package postgres

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/guregu/null/v5"
	"github.com/kylelemons/godebug/pretty"
	"github.com/lib/pq"

	"github.com/pgtelemetry/collector/state"
	"github.com/pgtelemetry/collector/util"
)

const seqScanPlan = `[{"Plan": {"Node Type": "Seq Scan", "Relation Name": "users", "Total Cost": 35.5, "Plan Rows": 10}, "Planning Time": 0.05}]`
const indexScanPlan = `[{"Plan": {"Node Type": "Index Scan", "Index Name": "users_pkey", "Relation Name": "users", "Total Cost": 8.3, "Plan Rows": 1}}]`

func expectExplain(mock sqlmock.Sqlmock, plan string) {
	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL statement_timeout = 5000`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`EXPLAIN \(FORMAT JSON\) SELECT \* FROM users`).
		WillReturnRows(sqlmock.NewRows([]string{"QUERY PLAN"}).AddRow(plan))
	mock.ExpectRollback()
}

func runningQuery(pid int64, queryID int64, text string) state.IndividualQuery {
	return state.IndividualQuery{
		PID:          null.IntFrom(pid),
		QueryID:      null.IntFrom(queryID),
		QueryText:    null.StringFrom(text),
		DatabaseName: null.StringFrom("app"),
	}
}

func TestPlanCollectorDetectsChange(t *testing.T) {
	db, mock := mockDB(t)

	caps := state.NewCapabilities(150004, true, false, nil)
	cache := state.NewPlanRegressionCache(100)
	collector := NewPlanCollector(db, util.NewNopLogger(), cache, util.NewNormalizedQueryCache(100), 5*time.Second, "app")
	queries := []state.IndividualQuery{runningQuery(100, 42, "SELECT * FROM users WHERE id = 1")}

	expectExplain(mock, seqScanPlan)
	plans, changes, warnings := collector.Collect(context.Background(), caps, queries, time.Now())
	if len(plans) != 1 || len(changes) != 0 || len(warnings) != 0 {
		t.Fatalf("First cycle: expected 1 plan, no changes, no warnings; actual %d/%d/%s", len(plans), len(changes), pretty.Sprint(warnings))
	}
	if plans[0].TotalCost.Float64 != 35.5 || plans[0].PlanningTimeMs.Float64 != 0.05 {
		t.Errorf("Unexpected plan costs: %s", pretty.Sprint(plans[0]))
	}
	if plans[0].ExecutionTimeMs.Valid {
		t.Errorf("Expected no execution time for a plain EXPLAIN; actual %v", plans[0].ExecutionTimeMs.Float64)
	}

	firstHash, found := cache.GetPreviousHash("app/42")
	if !found {
		t.Fatalf("Expected the plan hash to be cached")
	}
	if firstHash != plans[0].PlanHash.String {
		t.Errorf("Cached hash: expected %s; actual %s", plans[0].PlanHash.String, firstHash)
	}

	expectExplain(mock, indexScanPlan)
	plans, changes, _ = collector.Collect(context.Background(), caps, queries, time.Now())
	if len(plans) != 1 || len(changes) != 1 {
		t.Fatalf("Second cycle: expected 1 plan and 1 change; actual %d/%d", len(plans), len(changes))
	}
	expected := []string{"app/42", firstHash, plans[0].PlanHash.String}
	actual := []string{changes[0].QueryIdentity, changes[0].PreviousHash, changes[0].NewHash}
	if diff := pretty.Compare(expected, actual); diff != "" {
		t.Errorf("Plan change: diff (-want +got):\n%s", diff)
	}
	if changes[0].PreviousCost != 35.5 || changes[0].NewCost != 8.3 {
		t.Errorf("Plan change costs: expected 35.5 -> 8.3; actual %v -> %v", changes[0].PreviousCost, changes[0].NewCost)
	}

	expectationsMet(t, mock)
}

func TestPlanCollectorSkips(t *testing.T) {
	db, mock := mockDB(t)

	caps := state.NewCapabilities(150004, true, false, nil)
	collector := NewPlanCollector(db, util.NewNopLogger(), state.NewPlanRegressionCache(100), nil, 5*time.Second, "app")

	otherDatabase := runningQuery(103, 45, "SELECT * FROM accounts")
	otherDatabase.DatabaseName = null.StringFrom("reporting")

	queries := []state.IndividualQuery{
		runningQuery(100, 42, "VACUUM users"),
		runningQuery(101, 43, "SELECT 1; SELECT 2"),
		runningQuery(102, 44, "SELECT * FROM users WHERE id = $1"),
		otherDatabase,
		{PID: null.IntFrom(104)},
	}

	plans, changes, warnings := collector.Collect(context.Background(), caps, queries, time.Now())
	if len(plans) != 0 || len(changes) != 0 {
		t.Errorf("Expected nothing to be explained; actual %d plans, %d changes", len(plans), len(changes))
	}
	if len(warnings) != 3 {
		t.Errorf("Expected 3 warnings; actual %s", pretty.Sprint(warnings))
	}

	expectationsMet(t, mock)
}

func TestPlanCollectorGenericPlan(t *testing.T) {
	db, mock := mockDB(t)

	caps := state.NewCapabilities(160002, true, false, nil)
	collector := NewPlanCollector(db, util.NewNopLogger(), state.NewPlanRegressionCache(100), nil, 5*time.Second, "app")

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL statement_timeout`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`EXPLAIN \(GENERIC_PLAN, FORMAT JSON\) SELECT`).
		WillReturnRows(sqlmock.NewRows([]string{"QUERY PLAN"}).AddRow(indexScanPlan))
	mock.ExpectRollback()

	queries := []state.IndividualQuery{runningQuery(102, 44, "SELECT * FROM users WHERE id = $1")}
	plans, _, warnings := collector.Collect(context.Background(), caps, queries, time.Now())
	if len(plans) != 1 {
		t.Errorf("Expected 1 generic plan; actual %d", len(plans))
	}
	if len(warnings) != 0 {
		t.Errorf("Expected no warnings; actual %s", pretty.Sprint(warnings))
	}

	expectationsMet(t, mock)
}

func TestPlanCollectorTimeout(t *testing.T) {
	db, mock := mockDB(t)

	caps := state.NewCapabilities(150004, true, false, nil)
	collector := NewPlanCollector(db, util.NewNopLogger(), state.NewPlanRegressionCache(100), nil, 5*time.Second, "app")

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL statement_timeout`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`EXPLAIN`).
		WillReturnError(&pq.Error{Code: "57014", Message: "canceling statement due to statement timeout"})
	mock.ExpectRollback()
	expectExplain(mock, seqScanPlan)

	queries := []state.IndividualQuery{
		runningQuery(100, 41, "SELECT * FROM orders"),
		runningQuery(101, 42, "SELECT * FROM users"),
	}
	plans, _, warnings := collector.Collect(context.Background(), caps, queries, time.Now())
	if len(plans) != 1 {
		t.Errorf("Expected the second query to still be explained; actual %d plans", len(plans))
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "timed out") {
		t.Errorf("Expected one timeout warning; actual %s", pretty.Sprint(warnings))
	}

	expectationsMet(t, mock)
}

func TestPlanCollectorLimit(t *testing.T) {
	db, mock := mockDB(t)

	caps := state.NewCapabilities(150004, true, false, nil)
	collector := NewPlanCollector(db, util.NewNopLogger(), state.NewPlanRegressionCache(100), nil, 5*time.Second, "app")

	var queries []state.IndividualQuery
	for i := 0; i < 15; i++ {
		queries = append(queries, runningQuery(int64(100+i), int64(i), "SELECT * FROM users"))
	}
	// Same query running in two backends is only explained once
	queries = append([]state.IndividualQuery{runningQuery(99, 0, "SELECT * FROM users")}, queries...)

	for i := 0; i < MaxPlansPerCycle; i++ {
		expectExplain(mock, seqScanPlan)
	}

	plans, _, _ := collector.Collect(context.Background(), caps, queries, time.Now())
	if len(plans) != MaxPlansPerCycle {
		t.Errorf("Expected %d plans; actual %d", MaxPlansPerCycle, len(plans))
	}

	expectationsMet(t, mock)
}

var planIdentityTests = []struct {
	queryID  null.Int
	text     string
	expected string
}{
	{null.IntFrom(42), "SELECT 1", "app/42"},
	{null.Int{}, "SELECT * FROM t WHERE a = 5;", "app/select * from t where a = ?"},
}

func TestPlanIdentity(t *testing.T) {
	for _, test := range planIdentityTests {
		actual := PlanIdentity("app", test.queryID, test.text, nil)
		if actual != test.expected {
			t.Errorf("PlanIdentity(%s): expected %s; actual %s", test.text, test.expected, actual)
		}
	}
}
