package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	flag "github.com/ogier/pflag"

	"github.com/pgtelemetry/collector/output"
	"github.com/pgtelemetry/collector/runner"
	"github.com/pgtelemetry/collector/util"
)

const defaultConfigFile = "/etc/pgtelemetry-collector.conf"

func main() {
	var opts runner.Options
	var outputs string
	var showVersion bool
	var reloadRun bool
	var verbose bool
	var quiet bool
	var jsonLogs bool

	flag.StringVarP(&opts.ConfigFilename, "config", "c", defaultConfigFile, "Specify alternative path for config file")
	flag.BoolVar(&opts.Once, "once", false, "Run a single collection cycle and exit")
	flag.BoolVar(&opts.DryRun, "dry-run", false, "Run a single collection cycle and print the payloads to stdout instead of delivering them")
	flag.StringVar(&outputs, "output", "", "Comma separated outputs to use instead of the config file setting ("+strings.Join(output.AdapterNames(), ", ")+")")
	flag.BoolVarP(&verbose, "verbose", "v", false, "Outputs additional debugging information, use this if you're encountering errors or other problems")
	flag.BoolVarP(&quiet, "quiet", "q", false, "Only outputs error messages to the logs and hides informational and warning messages")
	flag.BoolVar(&jsonLogs, "json-logs", false, "Write logs as JSON lines")
	flag.BoolVar(&showVersion, "version", false, "Shows current version of the collector and exits")
	flag.BoolVar(&reloadRun, "reload", false, "Reloads the configuration of the running collector process (by sending SIGHUP)")
	flag.Parse()

	if showVersion {
		fmt.Println(util.CollectorNameAndVersion)
		return
	}

	if reloadRun {
		pid, err := util.Reload()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Successfully reloaded collector (PID %d)\n", pid)
		return
	}

	if outputs != "" {
		for _, name := range strings.Split(outputs, ",") {
			opts.Outputs = append(opts.Outputs, strings.TrimSpace(name))
		}
	}

	logger := util.NewLogger(os.Stderr, jsonLogs, verbose, quiet)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reload := make(chan struct{}, 1)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigs {
			if sig == syscall.SIGHUP {
				select {
				case reload <- struct{}{}:
				default:
				}
				continue
			}
			logger.PrintInfo("Received %s, exiting", sig)
			cancel()
			return
		}
	}()

	var err error
	if opts.Once || opts.DryRun {
		err = runner.RunOnce(ctx, logger, opts)
	} else {
		logger.PrintInfo("Running %s", util.CollectorNameAndVersion)
		err = runner.Run(ctx, logger, opts, reload)
	}
	signal.Stop(sigs)

	if err != nil {
		logger.PrintError("Error: %s", err)
		os.Exit(1)
	}
}
