package transform

import (
	"strconv"

	"github.com/guregu/null/v5"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
)

func stringAttribute(key string, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{Key: key, Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}}}
}

// attributes - Key/value pairs, absent values are left out
func attributes(pairs ...interface{}) []*commonpb.KeyValue {
	var result []*commonpb.KeyValue
	for i := 0; i+1 < len(pairs); i += 2 {
		key := pairs[i].(string)
		switch value := pairs[i+1].(type) {
		case string:
			result = append(result, stringAttribute(key, value))
		case null.String:
			if value.Valid {
				result = append(result, stringAttribute(key, value.String))
			}
		case null.Int:
			if value.Valid {
				result = append(result, stringAttribute(key, strconv.FormatInt(value.Int64, 10)))
			}
		}
	}
	return result
}

// gaugeBuilder collects data points per metric name, keeping first-seen order
type gaugeBuilder struct {
	timestamp uint64
	order     []string
	byName    map[string]*metricspb.Metric
}

func newGaugeBuilder(timestamp uint64) *gaugeBuilder {
	return &gaugeBuilder{timestamp: timestamp, byName: make(map[string]*metricspb.Metric)}
}

func (b *gaugeBuilder) metric(name string, unit string, description string) *metricspb.Gauge {
	m, ok := b.byName[name]
	if !ok {
		m = &metricspb.Metric{
			Name:        name,
			Unit:        unit,
			Description: description,
			Data:        &metricspb.Metric_Gauge{Gauge: &metricspb.Gauge{}},
		}
		b.byName[name] = m
		b.order = append(b.order, name)
	}
	return m.GetGauge()
}

func (b *gaugeBuilder) addDouble(name string, unit string, description string, value null.Float, attrs []*commonpb.KeyValue) {
	if !value.Valid {
		return
	}
	gauge := b.metric(name, unit, description)
	gauge.DataPoints = append(gauge.DataPoints, &metricspb.NumberDataPoint{
		Attributes:   attrs,
		TimeUnixNano: b.timestamp,
		Value:        &metricspb.NumberDataPoint_AsDouble{AsDouble: value.Float64},
	})
}

func (b *gaugeBuilder) addInt(name string, unit string, description string, value int64, attrs []*commonpb.KeyValue) {
	gauge := b.metric(name, unit, description)
	gauge.DataPoints = append(gauge.DataPoints, &metricspb.NumberDataPoint{
		Attributes:   attrs,
		TimeUnixNano: b.timestamp,
		Value:        &metricspb.NumberDataPoint_AsInt{AsInt: value},
	})
}

func (b *gaugeBuilder) metrics() []*metricspb.Metric {
	result := make([]*metricspb.Metric, 0, len(b.order))
	for _, name := range b.order {
		result = append(result, b.byName[name])
	}
	return result
}
