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

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/numaproj/panestate/pkg/event"
	"github.com/numaproj/panestate/pkg/shared/logging"
	"github.com/numaproj/panestate/pkg/window/operators"
)

// Output receives the results of every fired window of a worker.
type Output func(ctx context.Context, worker int, results []operators.Result) error

// BuildFunc creates the operator of a worker with the given notifier.
type BuildFunc func(ctx context.Context, n operators.Notifier) (operators.Operator, error)

// Worker drives one operator: it delivers notifications once the epoch
// passes them and hands data batches to the operator.
type Worker struct {
	id       int
	op       operators.Operator
	notes    *Notificator
	output   Output
	frontier uint64
	log      *zap.SugaredLogger
}

// NewWorker builds the operator of worker id.
func NewWorker(ctx context.Context, id int, build BuildFunc, output Output) (*Worker, error) {
	notes := NewNotificator()
	op, err := build(ctx, notes)
	if err != nil {
		return nil, errors.Wrapf(err, "building operator of worker %d", id)
	}
	return &Worker{
		id:     id,
		op:     op,
		notes:  notes,
		output: output,
		log:    logging.FromContext(ctx).With("worker", id, "query", op.Name()),
	}, nil
}

// Push delivers the notifications before epoch and then the batch.
func (w *Worker) Push(ctx context.Context, epoch uint64, events []event.Event) error {
	if err := w.Advance(ctx, epoch); err != nil {
		return err
	}
	return w.op.OnData(ctx, epoch, events)
}

// Advance delivers every notification before frontier. The frontier never moves back.
func (w *Worker) Advance(ctx context.Context, frontier uint64) error {
	if frontier < w.frontier {
		return errors.AssertionFailedf("worker %d: frontier moved back from %d to %d", w.id, w.frontier, frontier)
	}
	w.frontier = frontier
	return w.deliver(ctx, w.notes.Due(frontier))
}

// Close delivers every outstanding notification, as if the stream ended.
func (w *Worker) Close(ctx context.Context) error {
	due := w.notes.All()
	w.log.Infow("Flushing outstanding windows", zap.Int("windows", len(due)))
	return w.deliver(ctx, due)
}

func (w *Worker) deliver(ctx context.Context, due []uint64) error {
	for _, t := range due {
		results, err := w.op.OnNotify(ctx, t)
		if err != nil {
			return errors.Wrapf(err, "worker %d: firing window %d", w.id, t)
		}
		if w.output != nil && len(results) > 0 {
			if err := w.output(ctx, w.id, results); err != nil {
				return err
			}
		}
	}
	return nil
}
