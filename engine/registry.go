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

package engine

import (
	"sort"
	"sync"

	"github.com/mailist-com/automation/api/types"
)

// Registry 执行注册表，记录正在运行或者挂起的执行
// 一个执行分支后有多条路径，paths 记录还没有结束的路径数，为0时从注册表移除
type Registry struct {
	executions map[string]*registryEntry
	sync.RWMutex
}

type registryEntry struct {
	exec   *types.ExecutionContext
	paths  int
	paused bool
}

// NewRegistry 创建执行注册表
func NewRegistry() *Registry {
	return &Registry{executions: make(map[string]*registryEntry)}
}

// Register 注册一个新执行，包含一条路径
func (r *Registry) Register(exec *types.ExecutionContext) {
	r.Lock()
	defer r.Unlock()
	r.executions[exec.ExecutionId] = &registryEntry{exec: exec.Copy(exec.PathId), paths: 1}
}

// Restore 进程重启后恢复挂起路径时重新注册，paths 为存储中该执行挂起的路径数，已经存在返回false
func (r *Registry) Restore(exec *types.ExecutionContext, paths int, paused bool) bool {
	r.Lock()
	defer r.Unlock()
	if _, ok := r.executions[exec.ExecutionId]; ok {
		return false
	}
	if paths < 1 {
		paths = 1
	}
	r.executions[exec.ExecutionId] = &registryEntry{exec: exec.Copy(exec.PathId), paths: paths, paused: paused}
	return true
}

// Get 获取执行上下文的快照
func (r *Registry) Get(executionId string) (*types.ExecutionContext, bool) {
	r.RLock()
	defer r.RUnlock()
	if e, ok := r.executions[executionId]; ok {
		return e.exec.Copy(e.exec.PathId), true
	}
	return nil, false
}

// Contains 执行是否还在注册表中
func (r *Registry) Contains(executionId string) bool {
	r.RLock()
	defer r.RUnlock()
	_, ok := r.executions[executionId]
	return ok
}

// Unregister 移除执行，返回是否存在
func (r *Registry) Unregister(executionId string) bool {
	r.Lock()
	defer r.Unlock()
	_, ok := r.executions[executionId]
	delete(r.executions, executionId)
	return ok
}

// ListActive 按开始时间排序的活跃执行列表
func (r *Registry) ListActive() []*types.ExecutionContext {
	r.RLock()
	result := make([]*types.ExecutionContext, 0, len(r.executions))
	for _, e := range r.executions {
		result = append(result, e.exec.Copy(e.exec.PathId))
	}
	r.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].ExecutionId < result[j].ExecutionId
		}
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result
}

// RequestPause 标记暂停，路径在下一个节点执行前停下
func (r *Registry) RequestPause(executionId string) bool {
	return r.setPaused(executionId, true)
}

// ClearPause 清除暂停标记
func (r *Registry) ClearPause(executionId string) bool {
	return r.setPaused(executionId, false)
}

func (r *Registry) setPaused(executionId string, paused bool) bool {
	r.Lock()
	defer r.Unlock()
	e, ok := r.executions[executionId]
	if ok {
		e.paused = paused
	}
	return ok
}

// IsPaused 是否已暂停
func (r *Registry) IsPaused(executionId string) bool {
	r.RLock()
	defer r.RUnlock()
	e, ok := r.executions[executionId]
	return ok && e.paused
}

// Track 记录路径当前状态，用于查询
func (r *Registry) Track(exec *types.ExecutionContext) {
	r.Lock()
	defer r.Unlock()
	if e, ok := r.executions[exec.ExecutionId]; ok {
		e.exec.PathId = exec.PathId
		e.exec.CurrentNodeId = exec.CurrentNodeId
	}
}

// AddPaths 分支时增加路径数
func (r *Registry) AddPaths(executionId string, n int) {
	r.Lock()
	defer r.Unlock()
	if e, ok := r.executions[executionId]; ok {
		e.paths += n
	}
}

// DonePath 一条路径结束，所有路径结束后移除执行并返回true
func (r *Registry) DonePath(executionId string) bool {
	r.Lock()
	defer r.Unlock()
	e, ok := r.executions[executionId]
	if !ok {
		return false
	}
	e.paths--
	if e.paths <= 0 {
		delete(r.executions, executionId)
		return true
	}
	return false
}

// Len 活跃执行数
func (r *Registry) Len() int {
	r.RLock()
	defer r.RUnlock()
	return len(r.executions)
}
