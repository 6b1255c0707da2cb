package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/pgtelemetry/collector/config"
	"github.com/pgtelemetry/collector/output"
	"github.com/pgtelemetry/collector/scheduler"
	"github.com/pgtelemetry/collector/util"
)

type Options struct {
	ConfigFilename string

	// Run a single cycle and exit
	Once bool

	// Run a single cycle and print the payloads instead of delivering them
	DryRun bool

	// Overrides the outputs setting of the config file when set
	Outputs []string

	// Destination of dry run output, defaults to os.Stdout
	Stdout io.Writer
}

// pipeline is everything a cycle needs besides the instances, derived from the config
type pipeline struct {
	group    scheduler.Group
	adapters []output.Adapter
	sinks    []output.Sink
}

func buildPipeline(logger *util.Logger, conf config.Config, opts Options) (pipeline, error) {
	var p pipeline
	var err error

	p.group, err = scheduler.NewGroup(conf.CollectionSchedule)
	if err != nil {
		return p, err
	}

	outputs := conf.Outputs
	if len(opts.Outputs) > 0 {
		outputs = opts.Outputs
	}
	p.adapters, err = output.NewAdapters(outputs)
	if err != nil {
		return p, err
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	if opts.DryRun {
		p.sinks = []output.Sink{&output.WriterSink{W: stdout}}
		return p, nil
	}

	if conf.OutputDirectory != "" {
		sink, err := output.NewDirectorySink(logger, conf.OutputDirectory)
		if err != nil {
			return p, fmt.Errorf("could not prepare output directory: %w", err)
		}
		p.sinks = append(p.sinks, sink)
	}
	if conf.OutputURL != "" {
		p.sinks = append(p.sinks, output.NewHTTPSink(logger, conf.OutputURL))
	}
	if len(p.sinks) == 0 {
		logger.PrintWarning("No output_directory or output_url configured, writing payloads to stdout")
		p.sinks = []output.Sink{&output.WriterSink{W: stdout}}
	}

	return p, nil
}

func runCycle(ctx context.Context, logger *util.Logger, manager *Manager, p pipeline) error {
	snapshot := manager.CollectAll(ctx)
	logger.PrintInfo("Collected metrics from %d of %d instances", len(snapshot.PerInstance), len(manager.collectors))

	if len(snapshot.PerInstance) == 0 && len(manager.collectors) > 0 {
		return errors.New("no instance could be collected")
	}

	return output.Emit(ctx, logger, p.adapters, p.sinks, snapshot)
}

// active is a running schedule over a set of instances
type active struct {
	instances []*instance
	cancel    context.CancelFunc
	done      <-chan struct{}
}

func start(ctx context.Context, logger *util.Logger, conf config.Config, p pipeline) *active {
	a := &active{instances: setupInstances(ctx, logger, conf.Servers)}
	manager := NewManager(logger, collectorsFor(a.instances))

	var runCtx context.Context
	runCtx, a.cancel = context.WithCancel(ctx)
	a.done = p.group.Schedule(runCtx, func(ctx context.Context) {
		if err := runCycle(ctx, logger, manager, p); err != nil {
			logger.PrintError("Collection cycle failed: %s", err)
		}
	}, logger, "collection of all instances")

	logger.PrintInfo("Monitoring %d instances", len(a.instances))

	return a
}

func (a *active) stop(logger *util.Logger) {
	a.cancel()
	<-a.done
	closeInstances(logger, a.instances)
}

// RunOnce - Collects a single cycle from all instances and emits it
func RunOnce(ctx context.Context, logger *util.Logger, opts Options) error {
	conf, err := config.Read(logger, opts.ConfigFilename)
	if err != nil {
		return err
	}

	p, err := buildPipeline(logger, conf, opts)
	if err != nil {
		return err
	}

	instances := setupInstances(ctx, logger, conf.Servers)
	defer closeInstances(logger, instances)

	return runCycle(ctx, logger, NewManager(logger, collectorsFor(instances)), p)
}

// Run - Collects on the configured schedule until ctx is cancelled.
//
// A value on reload, or a change to the config file, re-reads the config and
// rebuilds the instances. An invalid new config is logged and the previous one kept.
func Run(ctx context.Context, logger *util.Logger, opts Options, reload <-chan struct{}) error {
	conf, err := config.Read(logger, opts.ConfigFilename)
	if err != nil {
		return err
	}

	p, err := buildPipeline(logger, conf, opts)
	if err != nil {
		return err
	}

	fileChanged := watchConfigFile(ctx, logger, opts.ConfigFilename)

	current := start(ctx, logger, conf, p)
	for {
		select {
		case <-ctx.Done():
			current.stop(logger)
			return nil
		case <-reload:
			logger.PrintInfo("Reloading configuration")
		case <-fileChanged:
			logger.PrintInfo("Config file %s changed, reloading configuration", opts.ConfigFilename)
		}

		newConf, err := config.Read(logger, opts.ConfigFilename)
		if err != nil {
			logger.PrintError("Config Error, keeping previous configuration: %s", err)
			continue
		}
		newPipeline, err := buildPipeline(logger, newConf, opts)
		if err != nil {
			logger.PrintError("Config Error, keeping previous configuration: %s", err)
			continue
		}

		current.stop(logger)
		current = start(ctx, logger, newConf, newPipeline)
	}
}

// watchConfigFile signals writes to the config file. The directory is watched
// since editors often replace the file instead of writing to it.
func watchConfigFile(ctx context.Context, logger *util.Logger, filename string) <-chan struct{} {
	changed := make(chan struct{}, 1)
	if filename == "" {
		return changed
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.PrintWarning("Could not watch config file, use SIGHUP to reload: %s", err)
		return changed
	}

	absFilename, err := filepath.Abs(filename)
	if err != nil {
		absFilename = filename
	}
	err = watcher.Add(filepath.Dir(absFilename))
	if err != nil {
		logger.PrintWarning("Could not watch config file, use SIGHUP to reload: %s", err)
		watcher.Close()
		return changed
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != absFilename || !event.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				select {
				case changed <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.PrintVerbose("Config file watcher error: %s", err)
			}
		}
	}()

	return changed
}
