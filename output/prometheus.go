package output

import (
	"bytes"
	"strconv"

	"github.com/guregu/null/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/pgtelemetry/collector/state"
)

const prometheusNamespace = "pgtelemetry"

// PrometheusAdapter renders the snapshot in the Prometheus text exposition format,
// for use with a textfile collector or a push gateway
type PrometheusAdapter struct{}

func NewPrometheusAdapter() *PrometheusAdapter {
	return &PrometheusAdapter{}
}

func (a *PrometheusAdapter) Name() string {
	return "prometheus"
}

type prometheusGauges struct {
	slowQueryAvgElapsed  *prometheus.GaugeVec
	slowQueryExecutions  *prometheus.GaugeVec
	slowQueryDiskReads   *prometheus.GaugeVec
	slowQueryDiskWrites  *prometheus.GaugeVec
	waitEventTime        *prometheus.GaugeVec
	blockingSessions     *prometheus.GaugeVec
	individualQueries    *prometheus.GaugeVec
	planTotalCost        *prometheus.GaugeVec
	planChanges          *prometheus.GaugeVec
	ashSamples           *prometheus.GaugeVec
	collectionDuration   *prometheus.GaugeVec
	collectionErrors     *prometheus.GaugeVec
	collectorMemoryBytes *prometheus.GaugeVec
}

func newGaugeVec(registry *prometheus.Registry, name string, help string, labels ...string) *prometheus.GaugeVec {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: prometheusNamespace,
		Name:      name,
		Help:      help,
	}, labels)
	registry.MustRegister(vec)
	return vec
}

func newPrometheusGauges(registry *prometheus.Registry) prometheusGauges {
	queryLabels := []string{"instance", "database", "query_id", "statement_type"}
	return prometheusGauges{
		slowQueryAvgElapsed:  newGaugeVec(registry, "query_avg_elapsed_time_ms", "Mean execution time of the statement in milliseconds", queryLabels...),
		slowQueryExecutions:  newGaugeVec(registry, "query_execution_count", "Number of times the statement was executed", queryLabels...),
		slowQueryDiskReads:   newGaugeVec(registry, "query_avg_disk_reads", "Mean shared blocks read per execution", queryLabels...),
		slowQueryDiskWrites:  newGaugeVec(registry, "query_avg_disk_writes", "Mean shared blocks written per execution", queryLabels...),
		waitEventTime:        newGaugeVec(registry, "wait_event_time_ms", "Time spent in the wait event in milliseconds", "instance", "database", "query_id", "wait_event_type", "wait_event"),
		blockingSessions:     newGaugeVec(registry, "blocking_sessions", "Number of blocked sessions", "instance"),
		individualQueries:    newGaugeVec(registry, "individual_queries", "Number of running queries collected", "instance"),
		planTotalCost:        newGaugeVec(registry, "plan_total_cost", "Planner total cost of the collected plan", "instance", "database", "query_id", "plan_hash"),
		planChanges:          newGaugeVec(registry, "plan_changes", "Number of plan changes detected this cycle", "instance"),
		ashSamples:           newGaugeVec(registry, "ash_samples", "Active session samples since the previous collection", "instance", "database", "state", "wait_event_type", "wait_event"),
		collectionDuration:   newGaugeVec(registry, "collection_duration_ms", "Duration of the collection cycle in milliseconds", "instance"),
		collectionErrors:     newGaugeVec(registry, "collection_errors", "Number of metric categories that failed this cycle", "instance"),
		collectorMemoryBytes: newGaugeVec(registry, "collector_memory_rss_bytes", "Resident memory of the collector process", "instance"),
	}
}

func setIfValid(vec *prometheus.GaugeVec, value null.Float, labels ...string) {
	if value.Valid {
		vec.WithLabelValues(labels...).Set(value.Float64)
	}
}

func queryIDLabel(queryID null.Int) string {
	if !queryID.Valid {
		return ""
	}
	return strconv.FormatInt(queryID.Int64, 10)
}

func (a *PrometheusAdapter) Serialize(snapshot state.MultiInstanceSnapshot) ([]byte, string, error) {
	registry := prometheus.NewRegistry()
	gauges := newPrometheusGauges(registry)

	for _, instance := range snapshot.InstanceNames() {
		metrics := snapshot.PerInstance[instance]

		for _, query := range metrics.SlowQueries {
			labels := []string{instance, query.DatabaseName.String, queryIDLabel(query.QueryID), query.StatementType.String}
			setIfValid(gauges.slowQueryAvgElapsed, query.AvgElapsedTimeMs, labels...)
			if query.ExecutionCount.Valid {
				gauges.slowQueryExecutions.WithLabelValues(labels...).Set(float64(query.ExecutionCount.Int64))
			}
			setIfValid(gauges.slowQueryDiskReads, query.AvgDiskReads, labels...)
			setIfValid(gauges.slowQueryDiskWrites, query.AvgDiskWrites, labels...)
		}

		for _, event := range metrics.WaitEvents {
			if event.WaitTimeMs.Valid {
				gauges.waitEventTime.WithLabelValues(instance, event.DatabaseName.String, queryIDLabel(event.QueryID), event.WaitEventType.String, event.WaitEvent.String).Add(event.WaitTimeMs.Float64)
			}
		}

		gauges.blockingSessions.WithLabelValues(instance).Set(float64(len(metrics.BlockingSessions)))
		gauges.individualQueries.WithLabelValues(instance).Set(float64(len(metrics.IndividualQueries)))

		for _, plan := range metrics.ExecutionPlans {
			setIfValid(gauges.planTotalCost, plan.TotalCost, instance, plan.DatabaseName.String, queryIDLabel(plan.QueryID), plan.PlanHash.String)
		}
		gauges.planChanges.WithLabelValues(instance).Set(float64(len(metrics.PlanChanges)))

		for _, sample := range metrics.ActiveSessionHistory {
			gauges.ashSamples.WithLabelValues(instance, sample.Database.String, sample.State.String, sample.WaitEventType.String, sample.WaitEvent.String).Inc()
		}

		gauges.collectionDuration.WithLabelValues(instance).Set(float64(metrics.Metadata.CollectionDurationMs))
		gauges.collectionErrors.WithLabelValues(instance).Set(float64(len(metrics.Metadata.Errors)))
		gauges.collectorMemoryBytes.WithLabelValues(instance).Set(float64(metrics.Metadata.CollectorStats.MemoryRssBytes))
	}

	families, err := registry.Gather()
	if err != nil {
		return nil, "", err
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, format)
	for _, family := range families {
		err = encoder.Encode(family)
		if err != nil {
			return nil, "", err
		}
	}

	return buf.Bytes(), string(format), nil
}
