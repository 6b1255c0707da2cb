package transform

import (
	"github.com/pgtelemetry/collector/state"
)

func transformCollectorStats(b *gaugeBuilder, metadata state.CollectionMetadata) {
	b.addInt("pgtelemetry.collection.duration", "ms", "Duration of the collection cycle", metadata.CollectionDurationMs, nil)
	b.addInt("pgtelemetry.collection.errors", "{error}", "Categories that failed this cycle", int64(len(metadata.Errors)), nil)
	b.addInt("pgtelemetry.collection.warnings", "{warning}", "Warnings recorded this cycle", int64(len(metadata.Warnings)), nil)
	b.addInt("pgtelemetry.collector.memory.rss", "By", "Resident memory of the collector process", int64(metadata.CollectorStats.MemoryRssBytes), nil)
	b.addInt("pgtelemetry.collector.memory.heap", "By", "Allocated heap of the collector process", int64(metadata.CollectorStats.MemoryHeapAllocatedBytes), nil)
	b.addInt("pgtelemetry.ash.buffer.samples", "{sample}", "Samples held in the session history buffer", int64(metadata.CollectorStats.ASHBufferSamples), nil)
}
