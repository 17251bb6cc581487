// Copyright 2024 The Docker Tidy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/GoogleCloudPlatform/docker-tidy/internal/dockerhost"
	"github.com/GoogleCloudPlatform/docker-tidy/internal/version"
	"github.com/GoogleCloudPlatform/docker-tidy/pkg/tidy"
)

// host is a container host the commands act on.
type host interface {
	tidy.Inventory
	tidy.Sink
	Close() error
}

// hostFactory connects to a host with the given per-call timeout.
type hostFactory func(timeout time.Duration) (host, error)

func newHost(timeout time.Duration) (host, error) {
	h, err := dockerhost.New(timeout)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// runner is one of the cleaner's entry points.
type runner func(c *tidy.Cleaner, ctx context.Context, policy *tidy.Policy) (*tidy.Report, error)

type rootOptions struct {
	configFile string
	verbose    int
	quiet      int
}

func newRootCommand(hosts hostFactory) *cobra.Command {
	v := viper.New()
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "docker-tidy",
		Short:         "Remove stale containers, images and volumes from a Docker host",
		Version:       version.HumanVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(v, opts.configFile)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "Config file path (replaces the per-user config file)")
	flags.Bool("dry-run", false, "Only log what would be done")
	flags.IntP("timeout", "t", 60, "HTTP timeout in seconds for Docker API calls")
	flags.String("log-level", "warning", "Log level (debug, info, warning, error, critical)")
	flags.Bool("log-json", false, "Log as JSON instead of human readable lines")
	flags.Int("concurrency", 1, "Number of parallel API calls; 1 keeps the removal order")
	flags.String("metrics-file", "", "Write Prometheus metrics of the run to this file")
	flags.StringP("output", "o", tidy.FormatText, "Report format (text, json, yaml)")
	flags.Bool("fail-on-error", false, "Exit non-zero when any removal or stop failed")
	flags.CountVarP(&opts.verbose, "verbose", "v", "Increase log verbosity, repeatable")
	flags.CountVarP(&opts.quiet, "quiet", "q", "Decrease log verbosity, repeatable")

	bindFlags(v, flags, map[string]string{
		"dry_run":       "dry-run",
		"http_timeout":  "timeout",
		"logging.level": "log-level",
		"logging.json":  "log-json",
		"concurrency":   "concurrency",
		"metrics_file":  "metrics-file",
		"output":        "output",
		"fail_on_error": "fail-on-error",
	})

	cmd.AddCommand(newGCCommand(v, opts, hosts))
	cmd.AddCommand(newStopCommand(v, opts, hosts))
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.HumanVersion)
			return err
		},
	}
}

// bindFlags binds config keys to flags. A flag only wins over the
// environment and config files when it was set explicitly.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %s", name, err))
		}
	}
}

// execute builds everything a run needs from the merged configuration, runs
// it and renders the report.
func execute(cmd *cobra.Command, v *viper.Viper, opts *rootOptions, hosts hostFactory, run runner) error {
	cfg, err := loadSettings(v, opts.verbose, opts.quiet)
	if err != nil {
		return err
	}

	logger, err := tidy.NewLogger(cfg.LogLevel, cfg.LogJSON, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return invalidArgument("invalid logging configuration", err)
	}

	policy, err := tidy.NewPolicy(&cfg.Policy, time.Now())
	if err != nil {
		return invalidArgument("invalid policy", err)
	}

	h, err := hosts(cfg.Timeout)
	if err != nil {
		return invalidArgument("failed to set up docker client", err)
	}
	defer h.Close()

	reg := prometheus.NewRegistry()
	cleaner, err := tidy.NewCleaner(h, h, logger, tidy.NewMetrics(reg), cfg.Concurrency)
	if err != nil {
		return internalError("failed to create cleaner", err)
	}

	report, err := run(cleaner, cmd.Context(), policy)
	if err != nil {
		return err
	}

	if err := tidy.WriteReport(cmd.OutOrStdout(), report, cfg.Output); err != nil {
		return errors.Wrapf(err, "failed to write %s report", cfg.Output)
	}

	if cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, reg); err != nil {
			return errors.Wrapf(err, "failed to write metrics to %s", cfg.MetricsFile)
		}
	}

	if cfg.FailOnError && report.Failed() > 0 {
		return fmt.Errorf("%w: %d failed", errItemFailures, report.Failed())
	}
	return nil
}
