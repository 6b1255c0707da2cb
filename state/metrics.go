package state

import (
	"encoding/json"
	"time"

	"github.com/guregu/null/v5"
)

// Metric records are flat and every field is optional: a column that was NULL
// (or not part of the query for this server version) is omitted on output,
// never reported as zero. Field names follow the on-host integration's naming.

type SlowQuery struct {
	QueryID             null.Int    `json:"query_id,omitzero"`
	QueryText           null.String `json:"query_text,omitzero"`
	DatabaseName        null.String `json:"database_name,omitzero"`
	SchemaName          null.String `json:"schema_name,omitzero"`
	ExecutionCount      null.Int    `json:"execution_count,omitzero"`
	AvgElapsedTimeMs    null.Float  `json:"avg_elapsed_time_ms,omitzero"`
	AvgDiskReads        null.Float  `json:"avg_disk_reads,omitzero"`
	AvgDiskWrites       null.Float  `json:"avg_disk_writes,omitzero"`
	StatementType       null.String `json:"statement_type,omitzero"`
	CollectionTimestamp null.String `json:"collection_timestamp,omitzero"`
	IndividualQuery     null.String `json:"individual_query,omitzero"`
}

type WaitEvent struct {
	PID                 null.Int    `json:"pid,omitzero"`
	WaitEventType       null.String `json:"wait_event_type,omitzero"`
	WaitEvent           null.String `json:"wait_event,omitzero"`
	WaitTimeMs          null.Float  `json:"wait_time_ms,omitzero"`
	State               null.String `json:"state,omitzero"`
	Usename             null.String `json:"usename,omitzero"`
	DatabaseName        null.String `json:"database_name,omitzero"`
	QueryID             null.Int    `json:"query_id,omitzero"`
	QueryText           null.String `json:"query_text,omitzero"`
	CollectionTimestamp null.String `json:"collection_timestamp,omitzero"`
}

type BlockingSession struct {
	BlockingPID         null.Int    `json:"blocking_pid,omitzero"`
	BlockedPID          null.Int    `json:"blocked_pid,omitzero"`
	BlockingQuery       null.String `json:"blocking_query,omitzero"`
	BlockedQuery        null.String `json:"blocked_query,omitzero"`
	BlockingDatabase    null.String `json:"blocking_database,omitzero"`
	BlockedDatabase     null.String `json:"blocked_database,omitzero"`
	BlockingUser        null.String `json:"blocking_user,omitzero"`
	BlockedUser         null.String `json:"blocked_user,omitzero"`
	BlockingDurationMs  null.Float  `json:"blocking_duration_ms,omitzero"`
	BlockedDurationMs   null.Float  `json:"blocked_duration_ms,omitzero"`
	LockType            null.String `json:"lock_type,omitzero"`
	CollectionTimestamp null.String `json:"collection_timestamp,omitzero"`
}

type IndividualQuery struct {
	PID                 null.Int    `json:"pid,omitzero"`
	QueryID             null.Int    `json:"query_id,omitzero"`
	QueryText           null.String `json:"query_text,omitzero"`
	State               null.String `json:"state,omitzero"`
	WaitEventType       null.String `json:"wait_event_type,omitzero"`
	WaitEvent           null.String `json:"wait_event,omitzero"`
	Usename             null.String `json:"usename,omitzero"`
	DatabaseName        null.String `json:"database_name,omitzero"`
	BackendStart        null.String `json:"backend_start,omitzero"`
	XactStart           null.String `json:"xact_start,omitzero"`
	QueryStart          null.String `json:"query_start,omitzero"`
	StateChange         null.String `json:"state_change,omitzero"`
	BackendType         null.String `json:"backend_type,omitzero"`
	CollectionTimestamp null.String `json:"collection_timestamp,omitzero"`
}

type ExecutionPlan struct {
	QueryID             null.Int        `json:"query_id,omitzero"`
	QueryText           null.String     `json:"query_text,omitzero"`
	DatabaseName        null.String     `json:"database_name,omitzero"`
	Plan                json.RawMessage `json:"plan,omitempty"`
	PlanHash            null.String     `json:"plan_hash,omitzero"`
	TotalCost           null.Float      `json:"total_cost,omitzero"`
	PlanningTimeMs      null.Float      `json:"planning_time_ms,omitzero"`
	ExecutionTimeMs     null.Float      `json:"execution_time_ms,omitzero"`
	CollectionTimestamp null.String     `json:"collection_timestamp,omitzero"`
}

// PlanChangeEvent - The structural plan of a query differs from the one seen in an earlier cycle
type PlanChangeEvent struct {
	QueryIdentity string      `json:"query_identity"`
	QueryID       null.Int    `json:"query_id,omitzero"`
	DatabaseName  null.String `json:"database_name,omitzero"`
	PreviousHash  string      `json:"previous_hash"`
	NewHash       string      `json:"new_hash"`
	PreviousCost  float64     `json:"previous_cost"`
	NewCost       float64     `json:"new_cost"`
	DetectedAt    time.Time   `json:"detected_at"`
}
