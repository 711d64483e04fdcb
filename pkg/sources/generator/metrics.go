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

package generator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// generatorEventCount is the number of events produced by the generator
var generatorEventCount = promauto.NewCounter(prometheus.CounterOpts{
	Subsystem: "generator",
	Name:      "events_total",
	Help:      "Total number of events generated",
})

// generatorBatchCount is the number of epoch batches produced by the generator
var generatorBatchCount = promauto.NewCounter(prometheus.CounterOpts{
	Subsystem: "generator",
	Name:      "batches_total",
	Help:      "Total number of epoch batches generated",
})
