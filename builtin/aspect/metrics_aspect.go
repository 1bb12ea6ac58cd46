/*
 * Copyright 2023 The RuleGo Authors.
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

package aspect

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/mailist-com/automation/api/types"
)

var _ types.AfterAspect = (*Metrics)(nil)

// NodeCounters 单个节点类型的统计
type NodeCounters struct {
	Executed  int64 `json:"executed"`
	Failed    int64 `json:"failed"`
	Suspended int64 `json:"suspended"`
}

// Metrics 按节点类型(type/subtype)统计执行结果
type Metrics struct {
	counters sync.Map
}

// NewMetrics 创建统计切面
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (a *Metrics) Order() int {
	return 20
}

func (a *Metrics) After(ctx types.NodeContext, exec *types.ExecutionContext, result types.Result) types.Result {
	c := a.get(ctx.Self().ComponentType())
	atomic.AddInt64(&c.Executed, 1)
	if result.Err != nil {
		atomic.AddInt64(&c.Failed, 1)
	} else if result.Suspend != nil {
		atomic.AddInt64(&c.Suspended, 1)
	}
	return result
}

func (a *Metrics) get(componentType string) *NodeCounters {
	if v, ok := a.counters.Load(componentType); ok {
		return v.(*NodeCounters)
	}
	v, _ := a.counters.LoadOrStore(componentType, &NodeCounters{})
	return v.(*NodeCounters)
}

// Snapshot 返回当前统计的副本
func (a *Metrics) Snapshot() map[string]NodeCounters {
	result := make(map[string]NodeCounters)
	a.counters.Range(func(key, value interface{}) bool {
		c := value.(*NodeCounters)
		result[key.(string)] = NodeCounters{
			Executed:  atomic.LoadInt64(&c.Executed),
			Failed:    atomic.LoadInt64(&c.Failed),
			Suspended: atomic.LoadInt64(&c.Suspended),
		}
		return true
	})
	return result
}

// Types 已统计的节点类型，按名称排序
func (a *Metrics) Types() []string {
	var keys []string
	a.counters.Range(func(key, _ interface{}) bool {
		keys = append(keys, key.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}

// Reset 清空统计
func (a *Metrics) Reset() {
	a.counters.Range(func(key, _ interface{}) bool {
		a.counters.Delete(key)
		return true
	})
}
