package output

import (
	"fmt"
	"sort"

	"github.com/pgtelemetry/collector/state"
	"github.com/pgtelemetry/collector/util"
)

// Adapter turns a snapshot into one wire format
type Adapter interface {
	Name() string
	Serialize(snapshot state.MultiInstanceSnapshot) (data []byte, contentType string, err error)
}

// Payload - Serialized output of one adapter for one cycle
type Payload struct {
	Adapter     string
	ContentType string
	Extension   string
	Data        []byte
}

type adapterFactory struct {
	extension string
	create    func() Adapter
}

var adapterRegistry = map[string]adapterFactory{
	"nri":        {"json", func() Adapter { return NewNRIAdapter() }},
	"otlp":       {"pb", func() Adapter { return NewOTLPAdapter() }},
	"msgpack":    {"msgpack", func() Adapter { return NewMsgpackAdapter() }},
	"prometheus": {"prom", func() Adapter { return NewPrometheusAdapter() }},
}

// AdapterNames - Names accepted by NewAdapters, sorted
func AdapterNames() []string {
	names := make([]string, 0, len(adapterRegistry))
	for name := range adapterRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewAdapters - Adapters in the given order; unknown names are an error
func NewAdapters(names []string) ([]Adapter, error) {
	adapters := []Adapter{}
	for _, name := range names {
		factory, ok := adapterRegistry[name]
		if !ok {
			return nil, fmt.Errorf("unknown output %q (known: %v)", name, AdapterNames())
		}
		adapters = append(adapters, factory.create())
	}
	return adapters, nil
}

func fileExtension(adapterName string) string {
	if factory, ok := adapterRegistry[adapterName]; ok {
		return factory.extension
	}
	return "bin"
}

// SerializeAll runs every adapter. A failing adapter is logged and skipped,
// the others still produce their payload.
func SerializeAll(logger *util.Logger, adapters []Adapter, snapshot state.MultiInstanceSnapshot) ([]Payload, []error) {
	var payloads []Payload
	var errs []error

	for _, adapter := range adapters {
		data, contentType, err := adapter.Serialize(snapshot)
		if err != nil {
			logger.PrintWarning("Output %s failed: %s", adapter.Name(), err)
			errs = append(errs, fmt.Errorf("output %s: %w", adapter.Name(), err))
			continue
		}
		payloads = append(payloads, Payload{
			Adapter:     adapter.Name(),
			ContentType: contentType,
			Extension:   fileExtension(adapter.Name()),
			Data:        data,
		})
	}

	return payloads, errs
}
