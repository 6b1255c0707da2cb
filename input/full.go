package input

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pgtelemetry/collector/config"
	"github.com/pgtelemetry/collector/input/postgres"
	"github.com/pgtelemetry/collector/sampler"
	"github.com/pgtelemetry/collector/state"
	"github.com/pgtelemetry/collector/util"
)

// Collector runs collection cycles for one instance. It holds the state that
// outlives a cycle: connection pool, plan cache and session sampler.
// Capabilities are never kept between cycles.
type Collector struct {
	server     config.ServerConfig
	logger     *util.Logger
	detector   *postgres.CapabilityDetector
	dispatcher *postgres.Dispatcher
	plans      *postgres.PlanCollector
	normalizer *util.NormalizedQueryCache
	ash        *sampler.ActiveSessionSampler

	// Next unread session sample, each sample is reported in exactly one cycle
	ashCursor sampler.Cursor
}

// NewCollector - ash may be nil when session sampling is disabled for the instance
func NewCollector(server config.ServerConfig, db *sql.DB, logger *util.Logger, ash *sampler.ActiveSessionSampler) *Collector {
	normalizer := util.NewNormalizedQueryCache(server.PlanCacheSize)
	planCache := state.NewPlanRegressionCache(server.PlanCacheSize)

	return &Collector{
		server:     server,
		logger:     logger,
		detector:   postgres.NewCapabilityDetector(db, logger),
		dispatcher: postgres.NewDispatcher(db, logger),
		plans:      postgres.NewPlanCollector(db, logger, planCache, normalizer, time.Duration(server.PlanTimeoutMs)*time.Millisecond, server.GetDbName()),
		normalizer: normalizer,
		ash:        ash,
	}
}

func (c *Collector) Name() string {
	return c.server.SectionName
}

func (c *Collector) categoryEnabled(category state.MetricCategory) bool {
	switch category {
	case state.CategorySlowQueries:
		return c.server.EnableSlowQueries
	case state.CategoryWaitEvents:
		return c.server.EnableWaitEvents
	case state.CategoryBlockingSessions:
		return c.server.EnableBlockingSessions
	case state.CategoryIndividualQueries:
		return c.server.EnableIndividualQueries
	}
	return false
}

// CollectAllMetrics - Runs one collection cycle for the instance.
//
// Only a failure to detect capabilities fails the cycle (*state.CollectorError).
// Failing categories are reported in the metadata and leave their slice empty,
// plan collection failures are reported as warnings.
func (c *Collector) CollectAllMetrics(ctx context.Context) (state.UnifiedMetrics, error) {
	start := time.Now()

	metrics := state.UnifiedMetrics{
		SlowQueries:       []state.SlowQuery{},
		WaitEvents:        []state.WaitEvent{},
		BlockingSessions:  []state.BlockingSession{},
		IndividualQueries: []state.IndividualQuery{},
		ExecutionPlans:    []state.ExecutionPlan{},
		Metadata: state.CollectionMetadata{
			CollectionID:      uuid.NewString(),
			InstanceName:      c.server.SectionName,
			CollectedAt:       start,
			Errors:            []string{},
			Warnings:          []string{},
			SkippedCategories: make(map[state.MetricCategory]string),
		},
	}

	caps, err := c.detector.Detect(ctx)
	if err != nil {
		return metrics, &state.CollectorError{Instance: c.server.SectionName, Err: err}
	}
	metrics.Metadata.Capabilities = &caps

	params := state.NewCommonParameters(c.logger, c.server, caps)
	if params.CountThreshold != c.server.QueryMonitoringCountThreshold {
		metrics.Metadata.Warnings = append(metrics.Metadata.Warnings, fmt.Sprintf("query_monitoring_count_threshold clamped to %d", params.CountThreshold))
	}
	if params.ResponseTimeThresholdMs != c.server.QueryMonitoringResponseTimeThreshold {
		metrics.Metadata.Warnings = append(metrics.Metadata.Warnings, fmt.Sprintf("query_monitoring_response_time_threshold clamped to %d", params.ResponseTimeThresholdMs))
	}

	var categories []state.MetricCategory
	for _, category := range state.AllCategories {
		if !c.categoryEnabled(category) {
			metrics.Metadata.SkippedCategories[category] = "disabled in configuration"
		} else if !postgres.IsEligible(category, caps) {
			metrics.Metadata.SkippedCategories[category] = postgres.IneligibleReason(category, caps)
		} else {
			categories = append(categories, category)
		}
	}

	results, errs := c.dispatchAll(ctx, categories, caps, params)
	for idx, category := range categories {
		if errs[idx] != nil {
			c.logger.PrintWarning("Skipping %s this cycle: %s", category, errs[idx])
			metrics.Metadata.Errors = append(metrics.Metadata.Errors, errs[idx].Error())
			continue
		}
		c.logger.PrintVerbose("Collected %d %s records", results[idx].Len(), category)
		results[idx].MergeInto(&metrics)
	}

	if caps.IsManaged && len(metrics.IndividualQueries) > 0 {
		var warning string
		metrics.IndividualQueries, warning = correlateWithSlowQueries(metrics.IndividualQueries, metrics.SlowQueries, c.normalizer)
		if warning != "" {
			c.logger.PrintVerbose("%s", warning)
			metrics.Metadata.Warnings = append(metrics.Metadata.Warnings, warning)
		}
	}

	if c.server.EnableExecutionPlans && len(metrics.IndividualQueries) > 0 {
		plans, changes, warnings := c.plans.Collect(ctx, caps, metrics.IndividualQueries, start)
		metrics.ExecutionPlans = append(metrics.ExecutionPlans, plans...)
		metrics.PlanChanges = changes
		metrics.Metadata.Warnings = append(metrics.Metadata.Warnings, warnings...)
	}

	if c.ash != nil {
		metrics.ActiveSessionHistory, c.ashCursor = c.ash.SamplesSince(c.ashCursor)
	}

	metrics.Metadata.CollectorStats = collectorStats(ctx, c.ash)
	metrics.Metadata.CollectionDurationMs = time.Since(start).Milliseconds()

	return metrics, nil
}

// dispatchAll runs the category queries concurrently, bounded by the pool
// size. A failing category never cancels its siblings.
func (c *Collector) dispatchAll(ctx context.Context, categories []state.MetricCategory, caps state.Capabilities, params state.CommonParameters) ([]postgres.CategoryResult, []error) {
	results := make([]postgres.CategoryResult, len(categories))
	errs := make([]error, len(categories))

	var group errgroup.Group
	if c.server.MaxConnections > 0 {
		group.SetLimit(c.server.MaxConnections)
	}

	for idx, category := range categories {
		group.Go(func() error {
			results[idx], errs[idx] = c.dispatcher.Execute(ctx, category, caps, params)
			return nil
		})
	}
	group.Wait()

	return results, errs
}
