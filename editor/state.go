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

// Package editor 流程图编辑状态机：带线性撤销/重做历史的图存储，以及把编辑意图转换成补丁的变更服务。
//
// Package editor holds the versioned graph-editing state behind the visual editor.
// Editing is single-actor: FlowState and FlowAPI assume one goroutine mutates
// the graph at a time and do no locking.
package editor

import (
	"github.com/mailist-com/automation/api/types"
)

// PatchKind 补丁类型
type PatchKind string

const (
	PatchCreate PatchKind = "create"
	PatchUpdate PatchKind = "update"
	PatchDelete PatchKind = "delete"
)

// Patch 图补丁。create/update 合并节点和连接，delete 按key删除节点和连接。
// Selection、Transform、Name 不为空时在任何类型的补丁中都会被替换
type Patch struct {
	Nodes       map[string]*types.GraphNode
	Connections map[string]*types.GraphConnection
	Selection   *types.Selection
	Transform   *types.Transform
	Name        *string
}

// Listener 变更监听器，version 是变更计数器的值
type Listener func(version uint64, graph *types.FlowGraph)

// FlowState 流程图存储，持有完整快照组成的线性历史
type FlowState struct {
	history []*types.FlowGraph
	index   int
	version uint64
	// MaxHistory 历史快照上限，<=0 表示不限制
	MaxHistory int
	listeners  map[int]Listener
	nextId     int
}

// NewFlowState 创建流程图存储并初始化，graph 为空时使用空流程图
func NewFlowState(graph *types.FlowGraph) *FlowState {
	s := &FlowState{listeners: make(map[int]Listener)}
	s.Initialize(graph)
	return s
}

// Initialize 用单个快照替换历史，重置撤销/重做
func (s *FlowState) Initialize(graph *types.FlowGraph) {
	if graph == nil {
		graph = types.NewFlowGraph("")
	} else {
		graph = graph.Copy()
	}
	s.history = []*types.FlowGraph{graph}
	s.index = 0
	s.changed()
}

// Snapshot 当前流程图，只读，调用方不能原地修改
func (s *FlowState) Snapshot() *types.FlowGraph {
	return s.history[s.index]
}

// Apply 深拷贝当前快照并应用补丁，新快照入栈，丢弃当前位置之后的历史
func (s *FlowState) Apply(patch Patch, kind PatchKind) {
	next := s.Snapshot().Copy()
	switch kind {
	case PatchDelete:
		for id := range patch.Nodes {
			delete(next.Nodes, id)
		}
		for id := range patch.Connections {
			delete(next.Connections, id)
		}
	default:
		for id, n := range patch.Nodes {
			next.Nodes[id] = n.Copy()
		}
		for id, c := range patch.Connections {
			cc := *c
			next.Connections[id] = &cc
		}
	}
	if patch.Selection != nil {
		next.Selection = patch.Selection.Copy()
	}
	if patch.Transform != nil {
		next.Transform = *patch.Transform
	}
	if patch.Name != nil {
		next.Name = *patch.Name
	}

	s.history = append(s.history[:s.index+1], next)
	if s.MaxHistory > 0 && len(s.history) > s.MaxHistory {
		s.history = s.history[len(s.history)-s.MaxHistory:]
	}
	s.index = len(s.history) - 1
	s.changed()
}

// Undo 回退一步，已经是最早快照时无操作
func (s *FlowState) Undo() bool {
	if !s.CanUndo() {
		return false
	}
	s.index--
	s.changed()
	return true
}

// Redo 前进一步，没有可重做的快照时无操作
func (s *FlowState) Redo() bool {
	if !s.CanRedo() {
		return false
	}
	s.index++
	s.changed()
	return true
}

func (s *FlowState) CanUndo() bool {
	return s.index > 0
}

func (s *FlowState) CanRedo() bool {
	return s.index < len(s.history)-1
}

// Len 历史快照数量
func (s *FlowState) Len() int {
	return len(s.history)
}

// Index 当前快照位置
func (s *FlowState) Index() int {
	return s.index
}

// Version 变更计数器，每次 Initialize、Apply、Undo、Redo 成功后递增
func (s *FlowState) Version() uint64 {
	return s.version
}

// Subscribe 订阅变更，返回取消订阅函数
func (s *FlowState) Subscribe(listener Listener) func() {
	id := s.nextId
	s.nextId++
	s.listeners[id] = listener
	return func() {
		delete(s.listeners, id)
	}
}

func (s *FlowState) changed() {
	s.version++
	snapshot := s.Snapshot()
	for _, l := range s.listeners {
		l(s.version, snapshot)
	}
}
