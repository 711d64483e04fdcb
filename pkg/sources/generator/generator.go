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

// Package generator produces a synthetic stream of bids: every event carries
// an auction key drawn uniformly from a fixed range and an event time that
// advances at a constant rate.
package generator

import (
	"context"
	"math/rand"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/numaproj/panestate/pkg/event"
	"github.com/numaproj/panestate/pkg/shared/logging"
)

// Config describes the generated stream.
type Config struct {
	// Rate is events per second of event time.
	Rate uint64
	Keys uint64
	// Duration is the event time covered by the stream.
	Duration time.Duration
	// Epoch is the event time covered by one batch.
	Epoch time.Duration
	// Throttle caps the wall-clock event rate, zero for unlimited.
	Throttle float64
	Seed     int64
}

// Generator emits the batches of the stream.
type Generator struct {
	cfg     Config
	step    uint64
	rng     *rand.Rand
	limiter *rate.Limiter
	log     *zap.SugaredLogger
}

// New returns a Generator for cfg.
func New(ctx context.Context, cfg Config) (*Generator, error) {
	if cfg.Rate == 0 || cfg.Keys == 0 || cfg.Epoch <= 0 {
		return nil, errors.Newf("rate, keys and epoch must be positive, got %d, %d and %v", cfg.Rate, cfg.Keys, cfg.Epoch)
	}
	step := uint64(time.Second) / cfg.Rate
	if step == 0 {
		return nil, errors.Newf("rate %d is above one event per nanosecond", cfg.Rate)
	}
	g := &Generator{
		cfg:  cfg,
		step: step,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
		log:  logging.FromContext(ctx).Named("generator"),
	}
	if cfg.Throttle > 0 {
		burst := int(uint64(cfg.Epoch)/step) + 1
		if int(cfg.Throttle) > burst {
			burst = int(cfg.Throttle)
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.Throttle), burst)
	}
	return g, nil
}

// Run sends one batch per epoch to out and closes it at the end of the
// stream. The epoch of a batch is the latest event time it may hold, so
// every event time is at most its epoch.
func (g *Generator) Run(ctx context.Context, out chan<- event.Batch) error {
	defer close(out)
	epoch := uint64(g.cfg.Epoch)
	end := uint64(g.cfg.Duration)
	var ts, events uint64
	for start := uint64(0); start < end; start += epoch {
		limit := start + epoch
		if limit > end {
			limit = end
		}
		var batch []event.Event
		for ; ts < limit; ts += g.step {
			batch = append(batch, event.Event{Key: g.rng.Uint64() % g.cfg.Keys, Timestamp: ts})
		}
		if g.limiter != nil && len(batch) > 0 {
			if err := g.limiter.WaitN(ctx, len(batch)); err != nil {
				return errors.Wrap(err, "throttling generator")
			}
		}
		select {
		case out <- event.Batch{Epoch: limit - 1, Events: batch}:
		case <-ctx.Done():
			return ctx.Err()
		}
		events += uint64(len(batch))
		generatorEventCount.Add(float64(len(batch)))
		generatorBatchCount.Inc()
	}
	g.log.Infow("Generator done", zap.Uint64("events", events), zap.Duration("eventTime", g.cfg.Duration))
	return nil
}
