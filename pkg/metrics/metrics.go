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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelVersion   = "version"
	LabelPlatform  = "platform"
	LabelComponent = "component"
	LabelQuery     = "query"
	LabelWorker    = "worker"
	LabelBackend   = "backend"
	LabelOperation = "op"
	LabelReason    = "reason"
	LabelErrorKind = "kind"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "A metric with a constant value '1', labeled by binary version, platform, and component",
	}, []string{LabelComponent, LabelVersion, LabelPlatform})
)

// State primitive metrics
var (
	// StateOperations counts primitive operations by backend and operation.
	StateOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "state",
		Name:      "operations_total",
		Help:      "Total number of state primitive operations",
	}, []string{LabelBackend, LabelOperation})

	// StateErrors counts failed primitive operations.
	StateErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "state",
		Name:      "errors_total",
		Help:      "Total number of failed state primitive operations",
	}, []string{LabelBackend, LabelOperation})
)

// Window operator metrics
var (
	// EventsIngested is the number of events handed to an operator.
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "window",
		Name:      "events_total",
		Help:      "Total number of events ingested",
	}, []string{LabelQuery, LabelWorker})

	// WindowsFired is the number of windows closed by a notification.
	WindowsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "window",
		Name:      "fired_total",
		Help:      "Total number of windows fired",
	}, []string{LabelQuery, LabelWorker})

	// ResultsEmitted is the number of output records.
	ResultsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "window",
		Name:      "results_total",
		Help:      "Total number of results emitted",
	}, []string{LabelQuery, LabelWorker})

	// MissingEntries counts panes or slices that were absent when read or purged.
	MissingEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "window",
		Name:      "missing_entries_total",
		Help:      "Total number of missing panes or slices observed at fire or purge time",
	}, []string{LabelQuery, LabelReason})

	// PendingWindows is the size of the pending-fire set of lagging windows.
	PendingWindows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "window",
		Name:      "pending_windows",
		Help:      "Number of lagging windows waiting to be fired",
	}, []string{LabelQuery, LabelWorker})

	// FireProcessingTime is the time spent aggregating and purging one window.
	FireProcessingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "window",
		Name:      "fire_processing_time",
		Help:      "Processing time of a window notification (1 to 1200000 microseconds)",
		Buckets:   prometheus.ExponentialBucketsRange(1, 1200000, 5),
	}, []string{LabelQuery})
)
