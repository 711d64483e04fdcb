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

package dataflow

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/numaproj/panestate/pkg/event"
	"github.com/numaproj/panestate/pkg/shared/logging"
	"github.com/numaproj/panestate/pkg/state"
	"github.com/numaproj/panestate/pkg/window"
	"github.com/numaproj/panestate/pkg/window/operators"
)

// OpenStateFunc opens the backend of a worker.
type OpenStateFunc func(ctx context.Context, worker int) (state.Backend, error)

// OperatorFunc builds an operator from its parameters.
type OperatorFunc func(ctx context.Context, p operators.Params) (operators.Operator, error)

// Pipeline partitions a stream of batches over a set of workers.
type Pipeline struct {
	workers int
	window  window.Config
	open    OpenStateFunc
	build   OperatorFunc
	output  Output
	buffer  int
	// failure holds the error that stopped the pipeline.
	failure atomic.Error
}

type Option func(*Pipeline)

// WithBuffer sets the number of batches queued per worker.
func WithBuffer(n int) Option {
	return func(p *Pipeline) {
		p.buffer = n
	}
}

// WithOutput sets the function results are handed to. It is called from
// every worker goroutine.
func WithOutput(o Output) Option {
	return func(p *Pipeline) {
		p.output = o
	}
}

// NewPipeline returns a pipeline of workers running the operator built by build.
func NewPipeline(workers int, cfg window.Config, open OpenStateFunc, build OperatorFunc, opts ...Option) (*Pipeline, error) {
	if workers <= 0 {
		return nil, errors.Newf("worker count must be positive, got %d", workers)
	}
	p := &Pipeline{
		workers: workers,
		window:  cfg,
		open:    open,
		build:   build,
		buffer:  16,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// IsHealthy reports the error that stopped the pipeline, if any.
func (p *Pipeline) IsHealthy(context.Context) error {
	return p.failure.Load()
}

// Run consumes batches until the channel is closed, then flushes every
// outstanding window. It stops at the first error.
func (p *Pipeline) Run(ctx context.Context, batches <-chan event.Batch) (err error) {
	log := logging.FromContext(ctx)
	defer func() {
		if err != nil {
			p.failure.Store(err)
		}
	}()
	handles := make([]*state.Handle, 0, p.workers)
	defer func() {
		for _, h := range handles {
			err = multierr.Append(err, h.Close())
		}
	}()
	workers := make([]*Worker, p.workers)
	for i := range workers {
		backend, err := p.open(ctx, i)
		if err != nil {
			return errors.Wrapf(err, "opening state of worker %d", i)
		}
		h := state.NewHandle(backend, "worker"+strconv.Itoa(i))
		handles = append(handles, h)
		worker := strconv.Itoa(i)
		workers[i], err = NewWorker(ctx, i, func(ctx context.Context, n operators.Notifier) (operators.Operator, error) {
			return p.build(ctx, operators.Params{Window: p.window, State: h, Notifier: n, Worker: worker})
		}, p.output)
		if err != nil {
			return err
		}
	}
	log.Infow("Starting pipeline", zap.Int("workers", p.workers), zap.Uint64("slide", p.window.Slide), zap.Uint64("sliceCount", p.window.SliceCount))

	g, gCtx := errgroup.WithContext(ctx)
	inputs := make([]chan event.Batch, p.workers)
	for i := range inputs {
		inputs[i] = make(chan event.Batch, p.buffer)
		w, in := workers[i], inputs[i]
		g.Go(func() error {
			for b := range in {
				if err := w.Push(gCtx, b.Epoch, b.Events); err != nil {
					return err
				}
			}
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			return w.Close(gCtx)
		})
	}
	g.Go(func() error {
		defer func() {
			for _, in := range inputs {
				close(in)
			}
		}()
		partitioner := NewPartitioner(p.workers)
		for {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			case b, ok := <-batches:
				if !ok {
					return nil
				}
				// every worker sees every epoch so that its frontier advances
				for i, events := range partitioner.Split(b.Events) {
					select {
					case inputs[i] <- event.Batch{Epoch: b.Epoch, Events: events}:
					case <-gCtx.Done():
						return gCtx.Err()
					}
				}
			}
		}
	})
	return g.Wait()
}
