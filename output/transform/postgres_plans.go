package transform

import (
	"github.com/pgtelemetry/collector/state"
)

func transformPlans(b *gaugeBuilder, plans []state.ExecutionPlan, changes []state.PlanChangeEvent) {
	for _, plan := range plans {
		attrs := attributes(
			"db.name", plan.DatabaseName,
			"db.query.id", plan.QueryID,
			"postgresql.plan.hash", plan.PlanHash,
		)
		b.addDouble("postgresql.plan.total_cost", "1", "Estimated total cost of the plan", plan.TotalCost, attrs)
		b.addDouble("postgresql.plan.planning_time", "ms", "Planning time", plan.PlanningTimeMs, attrs)
	}
	b.addInt("postgresql.plan.changes", "{change}", "Queries whose plan changed since an earlier collection", int64(len(changes)), nil)
}
