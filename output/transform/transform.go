package transform

import (
	collectormetrics "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"

	"github.com/pgtelemetry/collector/state"
	"github.com/pgtelemetry/collector/util"
)

const (
	ScopeName    = "github.com/pgtelemetry/collector"
	ScopeVersion = util.CollectorVersion
)

// SnapshotToOTLP - One resource per instance, with a gauge per measured value
func SnapshotToOTLP(s state.MultiInstanceSnapshot) *collectormetrics.ExportMetricsServiceRequest {
	request := &collectormetrics.ExportMetricsServiceRequest{}

	for _, instance := range s.InstanceNames() {
		metrics := s.PerInstance[instance]
		timestamp := uint64(metrics.Metadata.CollectedAt.UnixNano())

		b := newGaugeBuilder(timestamp)
		transformStatements(b, metrics.SlowQueries)
		transformActivity(b, metrics)
		transformPlans(b, metrics.ExecutionPlans, metrics.PlanChanges)
		transformCollectorStats(b, metrics.Metadata)

		request.ResourceMetrics = append(request.ResourceMetrics, &metricspb.ResourceMetrics{
			Resource: &resourcepb.Resource{
				Attributes: []*commonpb.KeyValue{
					stringAttribute("service.name", "pgtelemetry"),
					stringAttribute("db.system", "postgresql"),
					stringAttribute("postgresql.instance", instance),
				},
			},
			ScopeMetrics: []*metricspb.ScopeMetrics{{
				Scope:   &commonpb.InstrumentationScope{Name: ScopeName, Version: ScopeVersion},
				Metrics: b.metrics(),
			}},
		})
	}

	return request
}
