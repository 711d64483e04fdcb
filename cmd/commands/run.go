/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/numaproj/panestate"
	"github.com/numaproj/panestate/pkg/config"
	"github.com/numaproj/panestate/pkg/dataflow"
	"github.com/numaproj/panestate/pkg/event"
	"github.com/numaproj/panestate/pkg/metrics"
	"github.com/numaproj/panestate/pkg/queries"
	"github.com/numaproj/panestate/pkg/shared/logging"
	"github.com/numaproj/panestate/pkg/sources/generator"
	"github.com/numaproj/panestate/pkg/state"
	"github.com/numaproj/panestate/pkg/state/backends"
	"github.com/numaproj/panestate/pkg/window/operators"
)

func NewRunCommand() *cobra.Command {
	var configFile string
	command := &cobra.Command{
		Use:   "run",
		Short: "Run a window query over the generated stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.LoadRunConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger := logging.NewLogger().Named("run").With("query", conf.Query, "backend", conf.Backend)
			version := panestate.GetVersion()
			logger.Infow("Starting run", "version", version.Version)
			metrics.BuildInfo.WithLabelValues("run", version.Version, version.Platform).Set(1)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = logging.WithLogger(ctx, logger)
			summary, err := run(ctx, conf)
			if err != nil {
				logger.Errorw("Run failed", zap.Error(err))
				return err
			}
			summary.print(cmd)
			return nil
		},
	}
	command.Flags().StringVar(&configFile, "config", "", "Path of the run configuration file")
	command.Flags().String("query", "window-count", "Query to run")
	command.Flags().String("backend", string(state.KindMemory), "State backend: memory, log, lsm or lsm-merge")
	command.Flags().Int("workers", 1, "Number of workers")
	command.Flags().String("data-dir", ".", "Directory for the files of the on-disk backends")
	return command
}

// run wires the generator, the pipeline and the metrics server.
func run(ctx context.Context, conf *config.RunConfig) (*runSummary, error) {
	log := logging.FromContext(ctx)
	q, err := queries.Lookup(conf.Query)
	if err != nil {
		return nil, err
	}
	bc, err := conf.BackendConfig()
	if err != nil {
		return nil, err
	}
	if err := queries.Check(conf.Query, bc.Kind); err != nil {
		return nil, err
	}
	gen, err := generator.New(ctx, generator.Config{
		Rate:     conf.Generator.Rate,
		Keys:     conf.Generator.Keys,
		Duration: conf.Generator.Duration,
		Epoch:    conf.Generator.Epoch,
		Throttle: conf.Generator.Throttle,
		Seed:     conf.Generator.Seed,
	})
	if err != nil {
		return nil, err
	}
	summary := newRunSummary()
	pipeline, err := dataflow.NewPipeline(conf.Workers, conf.WindowConfig(),
		func(ctx context.Context, worker int) (state.Backend, error) {
			return backends.New(ctx, bc, fmt.Sprintf("%s-%d", conf.Query, worker))
		},
		q.Build,
		dataflow.WithOutput(summary.output),
	)
	if err != nil {
		return nil, err
	}
	if conf.Metrics.Enabled {
		shutdown, err := metrics.NewMetricsServer(
			metrics.WithPort(conf.Metrics.Port),
			metrics.WithHealthCheckers(ctx, pipeline),
		).Start(ctx)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warnw("Failed to stop metrics server", zap.Error(err))
			}
		}()
	}

	start := time.Now()
	batches := make(chan event.Batch, 64)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gen.Run(gCtx, batches)
	})
	g.Go(func() error {
		err := pipeline.Run(gCtx, batches)
		if err != nil {
			// unblock the generator
			for range batches {
			}
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	summary.elapsed = time.Since(start)
	log.Infow("Run finished", zap.Duration("elapsed", summary.elapsed), zap.Int("windows", len(summary.windows)), zap.Uint64("results", summary.results))
	return summary, nil
}

// runSummary counts the results of every window.
type runSummary struct {
	sync.Mutex
	windows map[uint64]uint64
	results uint64
	elapsed time.Duration
}

func newRunSummary() *runSummary {
	return &runSummary{windows: make(map[uint64]uint64)}
}

func (s *runSummary) output(_ context.Context, _ int, results []operators.Result) error {
	s.Lock()
	defer s.Unlock()
	for _, r := range results {
		s.windows[r.WindowEnd]++
	}
	s.results += uint64(len(results))
	return nil
}

func (s *runSummary) print(cmd *cobra.Command) {
	ends := make([]uint64, 0, len(s.windows))
	for w := range s.windows {
		ends = append(ends, w)
	}
	sort.Slice(ends, func(i, j int) bool { return ends[i] < ends[j] })
	out := cmd.OutOrStdout()
	for _, w := range ends {
		fmt.Fprintf(out, "window %v: %d results\n", time.Duration(w), s.windows[w])
	}
	fmt.Fprintf(out, "%d windows, %d results in %v\n", len(ends), s.results, s.elapsed)
}
