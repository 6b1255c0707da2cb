package input

import (
	"context"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/pgtelemetry/collector/sampler"
	"github.com/pgtelemetry/collector/state"
)

func memoryRssBytes(ctx context.Context) uint64 {
	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return 0
	}

	mem, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0
	}

	return mem.RSS
}

// collectorStats - Process footprint, plus the instance's session history buffer if sampling is on
func collectorStats(ctx context.Context, ash *sampler.ActiveSessionSampler) state.CollectorStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := state.CollectorStats{
		GoVersion:                runtime.Version(),
		ActiveGoroutines:         int32(runtime.NumGoroutine()),
		MemoryHeapAllocatedBytes: memStats.HeapAlloc,
		MemoryHeapObjects:        memStats.HeapObjects,
		MemorySystemBytes:        memStats.Sys,
		MemoryRssBytes:           memoryRssBytes(ctx),
	}
	if ash != nil {
		stats.ASHBufferSamples = ash.Len()
		stats.ASHBufferBytes = ash.EstimatedMemoryBytes()
	}

	return stats
}
