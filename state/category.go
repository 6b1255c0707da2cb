package state

// MetricCategory - A class of metrics collected by one query per cycle
type MetricCategory string

const (
	CategorySlowQueries       MetricCategory = "slow_queries"
	CategoryWaitEvents        MetricCategory = "wait_events"
	CategoryBlockingSessions  MetricCategory = "blocking_sessions"
	CategoryIndividualQueries MetricCategory = "individual_queries"
)

// AllCategories - Every dispatchable category, in reporting order
var AllCategories = []MetricCategory{
	CategorySlowQueries,
	CategoryWaitEvents,
	CategoryBlockingSessions,
	CategoryIndividualQueries,
}
