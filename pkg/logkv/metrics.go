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

package logkv

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/numaproj/panestate/pkg/metrics"
)

const (
	labelStore     = "store"
	labelErrorKind = metrics.LabelErrorKind
)

var logEntriesCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "logkv",
	Name:      "entries_total",
	Help:      "Total number of records appended to the log",
}, []string{labelStore})

var logEntriesBytes = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "logkv",
	Name:      "entries_bytes_total",
	Help:      "Total number of bytes appended to the log",
}, []string{labelStore})

var inPlaceUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "logkv",
	Name:      "in_place_updates_total",
	Help:      "Total number of updates applied in the mutable page without appending",
}, []string{labelStore})

var pendingOperations = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "logkv",
	Name:      "pending_operations",
	Help:      "Number of operations waiting on disk reads",
}, []string{labelStore})

var logSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "logkv",
	Name:      "log_size_bytes",
	Help:      "Tail address of the log",
}, []string{labelStore})

var evictedPages = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "logkv",
	Name:      "evicted_pages_total",
	Help:      "Total number of pages evicted from memory",
}, []string{labelStore})

var logErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "logkv",
	Name:      "errors",
	Help:      "Errors encountered",
}, []string{labelStore, labelErrorKind})

var pageFlushTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Subsystem: "logkv",
	Name:      "page_flush_time",
	Help:      "Time taken to write a page to disk (1 to 60000 milliseconds)",
	Buckets:   prometheus.ExponentialBucketsRange(1, 60000, 5),
}, []string{labelStore})
