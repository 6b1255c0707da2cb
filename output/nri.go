package output

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/pgtelemetry/collector/state"
)

const (
	nriIntegrationName    = "com.newrelic.postgresql"
	nriIntegrationVersion = "2.0.0"
	nriProtocolVersion    = "4"
	nriEntityType         = "pg-instance"
)

type nriPayload struct {
	Name               string      `json:"name"`
	ProtocolVersion    string      `json:"protocol_version"`
	IntegrationVersion string      `json:"integration_version"`
	Data               []nriEntity `json:"data"`
}

type nriEntity struct {
	Entity    nriEntityInfo            `json:"entity"`
	Metrics   []map[string]interface{} `json:"metrics"`
	Inventory map[string]interface{}   `json:"inventory"`
	Events    []interface{}            `json:"events"`
}

type nriEntityInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// NRIAdapter writes the on-host integration JSON format, one entity per
// instance and one metric set per record
type NRIAdapter struct{}

func NewNRIAdapter() *NRIAdapter {
	return &NRIAdapter{}
}

func (a *NRIAdapter) Name() string {
	return "nri"
}

func (a *NRIAdapter) Serialize(snapshot state.MultiInstanceSnapshot) ([]byte, string, error) {
	payload := nriPayload{
		Name:               nriIntegrationName,
		ProtocolVersion:    nriProtocolVersion,
		IntegrationVersion: nriIntegrationVersion,
		Data:               []nriEntity{},
	}

	for _, instance := range snapshot.InstanceNames() {
		metrics := snapshot.PerInstance[instance]
		entity := nriEntity{
			Entity:    nriEntityInfo{Name: instance, Type: nriEntityType},
			Metrics:   []map[string]interface{}{},
			Inventory: map[string]interface{}{},
			Events:    []interface{}{},
		}

		sets := []struct {
			eventType string
			records   interface{}
		}{
			{"PostgresSlowQueries", metrics.SlowQueries},
			{"PostgresWaitEvents", metrics.WaitEvents},
			{"PostgresBlockingSessions", metrics.BlockingSessions},
			{"PostgresIndividualQueries", metrics.IndividualQueries},
			{"PostgresExecutionPlanMetrics", executionPlanMetrics(metrics.ExecutionPlans)},
			{"PostgresPlanChanges", metrics.PlanChanges},
			{"PostgresActiveSessionHistory", metrics.ActiveSessionHistory},
		}
		for _, set := range sets {
			metricSets, err := toMetricSets(set.eventType, instance, set.records)
			if err != nil {
				return nil, "", errors.Wrapf(err, "failed to convert %s for %s", set.eventType, instance)
			}
			entity.Metrics = append(entity.Metrics, metricSets...)
		}

		entity.Metrics = append(entity.Metrics, map[string]interface{}{
			"event_type":             "PostgresCollectionMetadata",
			"entityName":             instance,
			"collection_id":          metrics.Metadata.CollectionID,
			"collection_duration_ms": metrics.Metadata.CollectionDurationMs,
			"error_count":            len(metrics.Metadata.Errors),
			"warning_count":          len(metrics.Metadata.Warnings),
			"skipped_category_count": len(metrics.Metadata.SkippedCategories),
		})

		payload.Data = append(payload.Data, entity)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, "", err
	}

	return data, "application/json", nil
}

// The plan tree itself is too large for an attribute, only its summary is reported
func executionPlanMetrics(plans []state.ExecutionPlan) []state.ExecutionPlan {
	result := make([]state.ExecutionPlan, len(plans))
	for idx, plan := range plans {
		plan.Plan = nil
		result[idx] = plan
	}
	return result
}

// toMetricSets converts records into flat metric sets through their JSON form,
// so absent fields stay absent. Query IDs are attributes, reported as strings.
func toMetricSets(eventType string, entityName string, records interface{}) ([]map[string]interface{}, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}

	var sets []map[string]interface{}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	err = decoder.Decode(&sets)
	if err != nil {
		return nil, err
	}

	for _, set := range sets {
		set["event_type"] = eventType
		set["entityName"] = entityName
		if queryID, ok := set["query_id"].(json.Number); ok {
			set["query_id"] = queryID.String()
		}
	}

	return sets, nil
}
