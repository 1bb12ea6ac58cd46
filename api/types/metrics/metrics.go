/*
 * Copyright 2024 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package metrics

import (
	"sync/atomic"
)

// ExecutionMetrics holds counters for automation executions.
// ExecutionMetrics 执行统计
type ExecutionMetrics struct {
	Current   int64 `json:"current"`   // Number of paths currently walking
	Started   int64 `json:"started"`   // Total number of started executions
	Completed int64 `json:"completed"` // Number of paths that reached a terminal node
	Failed    int64 `json:"failed"`    // Number of paths that terminated with a failure
	Suspended int64 `json:"suspended"` // Number of paths parked on a delay
	Resumed   int64 `json:"resumed"`   // Number of continuations resumed
	Cancelled int64 `json:"cancelled"` // Number of cancelled executions
}

// NewExecutionMetrics creates a new instance of ExecutionMetrics.
func NewExecutionMetrics() *ExecutionMetrics {
	return &ExecutionMetrics{}
}

func (m *ExecutionMetrics) IncrementCurrent() {
	atomic.AddInt64(&m.Current, 1)
}

func (m *ExecutionMetrics) DecrementCurrent() {
	atomic.AddInt64(&m.Current, -1)
}

func (m *ExecutionMetrics) IncrementStarted() {
	atomic.AddInt64(&m.Started, 1)
}

func (m *ExecutionMetrics) IncrementCompleted() {
	atomic.AddInt64(&m.Completed, 1)
}

func (m *ExecutionMetrics) IncrementFailed() {
	atomic.AddInt64(&m.Failed, 1)
}

func (m *ExecutionMetrics) IncrementSuspended() {
	atomic.AddInt64(&m.Suspended, 1)
}

func (m *ExecutionMetrics) IncrementResumed() {
	atomic.AddInt64(&m.Resumed, 1)
}

func (m *ExecutionMetrics) IncrementCancelled() {
	atomic.AddInt64(&m.Cancelled, 1)
}

// Get returns a copy of the current metrics.
func (m *ExecutionMetrics) Get() ExecutionMetrics {
	return ExecutionMetrics{
		Current:   atomic.LoadInt64(&m.Current),
		Started:   atomic.LoadInt64(&m.Started),
		Completed: atomic.LoadInt64(&m.Completed),
		Failed:    atomic.LoadInt64(&m.Failed),
		Suspended: atomic.LoadInt64(&m.Suspended),
		Resumed:   atomic.LoadInt64(&m.Resumed),
		Cancelled: atomic.LoadInt64(&m.Cancelled),
	}
}

// Reset resets all metrics to zero.
func (m *ExecutionMetrics) Reset() {
	atomic.StoreInt64(&m.Current, 0)
	atomic.StoreInt64(&m.Started, 0)
	atomic.StoreInt64(&m.Completed, 0)
	atomic.StoreInt64(&m.Failed, 0)
	atomic.StoreInt64(&m.Suspended, 0)
	atomic.StoreInt64(&m.Resumed, 0)
	atomic.StoreInt64(&m.Cancelled, 0)
}
