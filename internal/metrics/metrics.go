// Copyright 2025 Complyd Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics provides Prometheus metrics for Complyd.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsAppended tracks appended ledger events by category and outcome
	EventsAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complyd_events_appended_total",
			Help: "Total number of events appended to the ledger",
		},
		[]string{"category", "outcome"},
	)

	// AppendDuration tracks the duration of durable appends in seconds
	AppendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "complyd_append_duration_seconds",
			Help:    "Duration of durable ledger appends in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// VerifyRuns tracks integrity verification runs by result
	VerifyRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complyd_verify_runs_total",
			Help: "Total number of ledger integrity verification runs",
		},
		[]string{"result"},
	)

	// RetentionItems tracks disposed items by policy and action
	RetentionItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complyd_retention_items_total",
			Help: "Total number of items processed by retention policies",
		},
		[]string{"policy", "data_type", "action"},
	)

	// RetentionBytesFreed tracks bytes freed by retention runs
	RetentionBytesFreed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "complyd_retention_bytes_freed_total",
			Help: "Total number of bytes freed by retention policies",
		},
	)

	// OperationDuration tracks the duration of HTTP operations in seconds
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "complyd_operation_duration_seconds",
			Help:    "Duration of operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)

	// OperationTotal tracks the total number of HTTP operations
	OperationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complyd_operations_total",
			Help: "Total number of operations",
		},
		[]string{"operation", "status"},
	)

	// ErrorRate tracks error rate by operation type
	ErrorRate = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complyd_errors_total",
			Help: "Total number of errors",
		},
		[]string{"operation", "error_type"},
	)
)

// RecordOperation records an operation with duration and status
func RecordOperation(operation, status string, duration float64) {
	OperationDuration.WithLabelValues(operation, status).Observe(duration)
	OperationTotal.WithLabelValues(operation, status).Inc()
}

// RecordError records an error
func RecordError(operation, errorType string) {
	ErrorRate.WithLabelValues(operation, errorType).Inc()
}

// RecordRetention records one policy execution outcome
func RecordRetention(policy, dataType, action string, items int, bytesFreed int64) {
	RetentionItems.WithLabelValues(policy, dataType, action).Add(float64(items))
	RetentionBytesFreed.Add(float64(bytesFreed))
}
