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
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mailist-com/automation/api/types"
)

var (
	ErrTriggerNotFound  = errors.New("flow has no trigger node")
	ErrNodeNotFound     = errors.New("node not found")
	ErrUnknownNodeType  = errors.New("unknown node type")
	ErrOutputNotFound   = errors.New("output socket not found")
	ErrFlowNotFound     = errors.New("flow not found")
	ErrNodeInitFailed   = errors.New("node init failed")
	ErrComponentMissing = errors.New("node component not registered")
)

// FlowCtx 加载后的只读流程图以及初始化好的节点实例
// 执行只读访问，多条路径可以并发使用同一个FlowCtx
type FlowCtx struct {
	Key   string
	Graph *types.FlowGraph
	nodes map[string]types.Node
	// errs 节点加载错误，执行到该节点时路径失败
	errs map[string]error
	// inputOwner 输入端口ID -> 节点
	inputOwner map[string]*types.GraphNode
	// outgoing 输出端口ID -> 按ID排序的连线
	outgoing map[string][]*types.GraphConnection

	mu sync.Mutex
	// refs 正在使用的路径数
	refs int
	// retired 已从缓存移除，最后一条路径结束后销毁
	retired   bool
	destroyed bool
}

// NewFlowCtx 初始化流程图的所有节点
// 单个节点的错误不会导致整个流程加载失败，执行到该节点时才失败
func NewFlowCtx(config types.Config, key string, graph *types.FlowGraph) *FlowCtx {
	fc := &FlowCtx{
		Key:        key,
		Graph:      graph,
		nodes:      make(map[string]types.Node, len(graph.Nodes)),
		errs:       make(map[string]error),
		inputOwner: make(map[string]*types.GraphNode, len(graph.Nodes)),
		outgoing:   make(map[string][]*types.GraphConnection),
	}
	for id, node := range graph.Nodes {
		if node.InputSocketId != "" {
			fc.inputOwner[node.InputSocketId] = node
		}
		if err := fc.initNode(config, node); err != nil {
			fc.errs[id] = err
		}
	}
	for _, conn := range graph.Connections {
		fc.outgoing[conn.SourceSocketId] = append(fc.outgoing[conn.SourceSocketId], conn)
	}
	for _, list := range fc.outgoing {
		sort.Slice(list, func(i, j int) bool {
			return list[i].Id < list[j].Id
		})
	}
	return fc
}

func (fc *FlowCtx) initNode(config types.Config, node *types.GraphNode) error {
	key := node.ComponentType()
	if config.Catalog != nil {
		if _, ok := config.Catalog.Resolve(node.Type, node.Subtype); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownNodeType, key)
		}
	}
	if config.ComponentsRegistry == nil {
		return fmt.Errorf("%w: %s", ErrComponentMissing, key)
	}
	instance, err := config.ComponentsRegistry.NewNode(key)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrComponentMissing, key)
	}
	if err := instance.Init(config, node.Settings.Copy()); err != nil {
		return fmt.Errorf("%w: node %s (%s): %s", ErrNodeInitFailed, node.Id, key, err.Error())
	}
	fc.nodes[node.Id] = instance
	return nil
}

// Node 获取节点定义和实例
func (fc *FlowCtx) Node(nodeId string) (*types.GraphNode, types.Node, error) {
	def, ok := fc.Graph.Nodes[nodeId]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeId)
	}
	if err := fc.errs[nodeId]; err != nil {
		return def, nil, err
	}
	return def, fc.nodes[nodeId], nil
}

// Trigger 获取触发器节点，nodeId为空时取ID最小的触发器
func (fc *FlowCtx) Trigger(nodeId string) (*types.GraphNode, error) {
	triggers := fc.Graph.TriggerNodes()
	sort.Slice(triggers, func(i, j int) bool {
		return triggers[i].Id < triggers[j].Id
	})
	for _, t := range triggers {
		if nodeId == "" || t.Id == nodeId {
			return t, nil
		}
	}
	if nodeId != "" {
		return nil, fmt.Errorf("%w: %s", ErrTriggerNotFound, nodeId)
	}
	return nil, ErrTriggerNotFound
}

// MatchTriggers 返回匹配事件的触发器节点，按ID排序
func (fc *FlowCtx) MatchTriggers(event types.TriggerEvent) []*types.GraphNode {
	var result []*types.GraphNode
	for _, t := range fc.Graph.TriggerNodes() {
		if t.Subtype != event.Subtype {
			continue
		}
		if m, ok := fc.nodes[t.Id].(types.TriggerMatcher); ok && m.Matches(event) {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Id < result[j].Id
	})
	return result
}

// Next 根据节点结果计算下一批节点
// 结果没有指定输出端口时沿所有声明的输出端口继续
func (fc *FlowCtx) Next(node *types.GraphNode, result types.Result) ([]*types.GraphNode, error) {
	outputs := result.Outputs
	if outputs == nil {
		for _, s := range node.OutputSockets {
			outputs = append(outputs, s.Name)
		}
	}
	var next []*types.GraphNode
	for _, name := range outputs {
		socket, ok := node.OutputSocket(name)
		if !ok {
			return nil, fmt.Errorf("%w: node %s has no output %q", ErrOutputNotFound, node.Id, name)
		}
		for _, conn := range fc.outgoing[socket.Id] {
			target, ok := fc.inputOwner[conn.TargetSocketId]
			if !ok {
				return nil, fmt.Errorf("%w: connection %s targets unknown socket %s", ErrNodeNotFound, conn.Id, conn.TargetSocketId)
			}
			next = append(next, target)
		}
	}
	return next, nil
}

// Err 所有节点的初始化错误，按节点ID排序
func (fc *FlowCtx) Err() error {
	if len(fc.errs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(fc.errs))
	for id := range fc.errs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	errs := make([]error, 0, len(ids))
	for _, id := range ids {
		errs = append(errs, fc.errs[id])
	}
	return errors.Join(errs...)
}

func (fc *FlowCtx) acquire() {
	fc.mu.Lock()
	fc.refs++
	fc.mu.Unlock()
}

func (fc *FlowCtx) release() {
	fc.mu.Lock()
	fc.refs--
	destroy := fc.retired && fc.refs <= 0
	fc.mu.Unlock()
	if destroy {
		fc.Destroy()
	}
}

// retire 从缓存移除，没有路径在使用时立即销毁
func (fc *FlowCtx) retire() {
	fc.mu.Lock()
	fc.retired = true
	destroy := fc.refs <= 0
	fc.mu.Unlock()
	if destroy {
		fc.Destroy()
	}
}

// Destroy 销毁所有节点实例，只执行一次
func (fc *FlowCtx) Destroy() {
	fc.mu.Lock()
	if fc.destroyed {
		fc.mu.Unlock()
		return
	}
	fc.destroyed = true
	fc.mu.Unlock()
	for _, n := range fc.nodes {
		n.Destroy()
	}
}
