package runner

import (
	"context"
	"database/sql"
	"time"

	"github.com/pgtelemetry/collector/config"
	"github.com/pgtelemetry/collector/input"
	"github.com/pgtelemetry/collector/input/postgres"
	"github.com/pgtelemetry/collector/sampler"
	"github.com/pgtelemetry/collector/util"
)

// instance holds the long-lived resources of one configured server
type instance struct {
	config    config.ServerConfig
	db        *sql.DB
	ash       *sampler.ActiveSessionSampler
	collector *input.Collector
}

func samplerConfig(server config.ServerConfig) sampler.Config {
	return sampler.Config{
		Interval:       time.Duration(server.AshSampleIntervalSeconds) * time.Second,
		Retention:      time.Duration(server.AshRetentionSeconds) * time.Second,
		MaxMemoryBytes: uint64(server.AshMaxMemoryMB) * 1024 * 1024,
		MaxSamples:     server.GetAshMaxSamples(),
	}
}

func setupInstance(ctx context.Context, logger *util.Logger, server config.ServerConfig) (*instance, error) {
	prefixedLogger := logger.WithPrefix(server.SectionName)

	db, err := postgres.EstablishConnection(ctx, prefixedLogger, server)
	if err != nil {
		return nil, err
	}

	var ash *sampler.ActiveSessionSampler
	if server.EnableAsh {
		source := postgres.NewBackendSource(db, server.GetDatabases(), server.MaxQueryLength)
		ash = sampler.New(source, prefixedLogger, nil, samplerConfig(server))
		err = ash.Start(ctx)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	return &instance{
		config:    server,
		db:        db,
		ash:       ash,
		collector: input.NewCollector(server, db, prefixedLogger, ash),
	}, nil
}

func (i *instance) close(logger *util.Logger) {
	if i.ash != nil {
		if err := i.ash.Stop(); err != nil {
			logger.PrintVerbose("Could not stop session sampler: %s", err)
		}
	}
	if err := i.db.Close(); err != nil {
		logger.PrintVerbose("Could not close connection: %s", err)
	}
}

func setupInstances(ctx context.Context, logger *util.Logger, servers []config.ServerConfig) []*instance {
	var instances []*instance
	for _, server := range servers {
		inst, err := setupInstance(ctx, logger, server)
		if err != nil {
			logger.WithPrefix(server.SectionName).PrintError("Could not set up instance, skipping: %s", err)
			continue
		}
		instances = append(instances, inst)
	}
	return instances
}

func closeInstances(logger *util.Logger, instances []*instance) {
	for _, inst := range instances {
		inst.close(logger.WithPrefix(inst.config.SectionName))
	}
}

func collectorsFor(instances []*instance) []InstanceCollector {
	collectors := make([]InstanceCollector, len(instances))
	for idx, inst := range instances {
		collectors[idx] = inst.collector
	}
	return collectors
}
