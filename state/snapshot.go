package state

import (
	"sort"
	"time"
)

// CollectionMetadata - Self-observability for one instance and one cycle
type CollectionMetadata struct {
	CollectionID         string        `json:"collection_id"`
	InstanceName         string        `json:"instance_name"`
	CollectedAt          time.Time     `json:"collected_at"`
	CollectionDurationMs int64         `json:"collection_duration_ms"`
	Errors               []string      `json:"errors"`
	Warnings             []string      `json:"warnings"`
	Capabilities         *Capabilities `json:"capabilities,omitempty"`

	// Categories that did not run this cycle, with the reason
	SkippedCategories map[MetricCategory]string `json:"skipped_categories,omitempty"`

	CollectorStats CollectorStats `json:"collector_stats"`
}

// CollectorStats - Footprint of the collector process itself at the end of the cycle
type CollectorStats struct {
	GoVersion                string `json:"go_version"`
	ActiveGoroutines         int32  `json:"active_goroutines"`
	MemoryHeapAllocatedBytes uint64 `json:"memory_heap_allocated_bytes"`
	MemoryHeapObjects        uint64 `json:"memory_heap_objects"`
	MemorySystemBytes        uint64 `json:"memory_system_bytes"`
	MemoryRssBytes           uint64 `json:"memory_rss_bytes"`
	ASHBufferSamples         int    `json:"ash_buffer_samples"`
	ASHBufferBytes           uint64 `json:"ash_buffer_bytes"`
}

// UnifiedMetrics - Everything collected for one instance in one cycle.
//
// Built by the orchestrator and handed off to output adapters; not modified after that.
type UnifiedMetrics struct {
	SlowQueries          []SlowQuery        `json:"slow_queries"`
	WaitEvents           []WaitEvent        `json:"wait_events"`
	BlockingSessions     []BlockingSession  `json:"blocking_sessions"`
	IndividualQueries    []IndividualQuery  `json:"individual_queries"`
	ExecutionPlans       []ExecutionPlan    `json:"execution_plans"`
	PlanChanges          []PlanChangeEvent  `json:"plan_changes,omitempty"`
	ActiveSessionHistory []ASHSample        `json:"active_session_history,omitempty"`
	Metadata             CollectionMetadata `json:"metadata"`
}

// MultiInstanceSnapshot - Results of one cycle across all instances.
//
// Instances that failed this cycle have no entry.
type MultiInstanceSnapshot struct {
	PerInstance map[string]UnifiedMetrics `json:"per_instance"`
	CollectedAt time.Time                 `json:"collected_at"`
}

// InstanceNames - Names of instances with data this cycle, sorted
func (s MultiInstanceSnapshot) InstanceNames() []string {
	names := make([]string, 0, len(s.PerInstance))
	for name := range s.PerInstance {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
