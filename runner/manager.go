package runner

import (
	"context"
	"sync"
	"time"

	"github.com/pgtelemetry/collector/state"
	"github.com/pgtelemetry/collector/util"
)

// InstanceCollector runs one collection cycle for one instance
type InstanceCollector interface {
	Name() string
	CollectAllMetrics(ctx context.Context) (state.UnifiedMetrics, error)
}

// Manager collects from all configured instances concurrently
type Manager struct {
	collectors []InstanceCollector
	logger     *util.Logger
}

func NewManager(logger *util.Logger, collectors []InstanceCollector) *Manager {
	return &Manager{collectors: collectors, logger: logger}
}

// CollectAll - Runs a cycle on every instance. Instances that fail are logged
// and left out of the snapshot, they never affect the other instances.
func (m *Manager) CollectAll(ctx context.Context) state.MultiInstanceSnapshot {
	var wg sync.WaitGroup
	var mutex sync.Mutex

	snapshot := state.MultiInstanceSnapshot{
		PerInstance: make(map[string]state.UnifiedMetrics, len(m.collectors)),
		CollectedAt: time.Now(),
	}

	for idx := range m.collectors {
		collector := m.collectors[idx]

		wg.Add(1)
		go func() {
			defer wg.Done()
			prefixedLogger := m.logger.WithPrefix(collector.Name())

			metrics, err := collector.CollectAllMetrics(ctx)
			if err != nil {
				prefixedLogger.PrintError("Could not collect metrics: %s", err)
				return
			}

			mutex.Lock()
			snapshot.PerInstance[collector.Name()] = metrics
			mutex.Unlock()
		}()
	}

	wg.Wait()

	return snapshot
}
