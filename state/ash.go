package state

import (
	"time"

	"github.com/guregu/null/v5"
)

// EstimatedASHSampleBytes - Heuristic in-memory cost of one sample, used for the memory ceiling
const EstimatedASHSampleBytes = 700

// ASHSample - One active session observed at SampleTime
type ASHSample struct {
	SampleTime    time.Time   `json:"sample_time"`
	PID           int64       `json:"pid"`
	User          null.String `json:"usename,omitzero"`
	Database      null.String `json:"database_name,omitzero"`
	QueryID       null.Int    `json:"query_id,omitzero"`
	State         null.String `json:"state,omitzero"`
	WaitEventType null.String `json:"wait_event_type,omitzero"`
	WaitEvent     null.String `json:"wait_event,omitzero"`
	QueryText     null.String `json:"query_text,omitzero"`
	BackendType   null.String `json:"backend_type,omitzero"`
}
