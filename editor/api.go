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

package editor

import (
	"sort"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/mailist-com/automation/api/types"
)

// FlowAPI 把编辑意图转换成图补丁，每个意图只产生一次 Apply，也就是一个撤销步骤。
// 不合法的界面事件（例如拖拽没有落在端口上）记录日志后忽略，不返回错误
type FlowAPI struct {
	state   *FlowState
	catalog types.Catalog
	logger  types.Logger
	// NewId 生成节点、端口、连接ID
	NewId func() string
}

// NewFlowAPI 创建编辑服务
func NewFlowAPI(state *FlowState, catalog types.Catalog, logger types.Logger) *FlowAPI {
	return &FlowAPI{
		state:   state,
		catalog: catalog,
		logger:  types.NewLogger(logger),
		NewId: func() string {
			return uuid.Must(uuid.NewV4()).String()
		},
	}
}

// State 图存储
func (x *FlowAPI) State() *FlowState {
	return x.state
}

// CreateNode 按 type/subtype 创建节点，分配端口，选中新节点。返回节点ID，子类型不存在返回空字符串
func (x *FlowAPI) CreateNode(typeSubtype string, position types.Position) string {
	def, ok := resolveKey(x.catalog, typeSubtype)
	if !ok {
		x.logger.Printf("editor: create node ignored, unknown node type %s", typeSubtype)
		return ""
	}
	node := &types.GraphNode{
		Id:         x.NewId(),
		Type:       def.Type,
		Subtype:    def.Subtype,
		Position:   position,
		Settings:   def.DefaultSettings.Copy(),
		IsComplete: false,
	}
	if node.Settings == nil {
		node.Settings = types.Configuration{}
	}
	if len(def.Inputs) > 0 {
		node.InputSocketId = x.NewId()
	}
	for _, key := range def.Outputs {
		node.OutputSockets = append(node.OutputSockets, types.Socket{Id: x.NewId(), Name: key})
	}
	x.state.Apply(Patch{
		Nodes:     map[string]*types.GraphNode{node.Id: node},
		Selection: &types.Selection{Nodes: []string{node.Id}},
	}, PatchCreate)
	return node.Id
}

// CreateConnection 连接输出端口和输入端口并选中新连接。返回连接ID，不合法时返回空字符串。
// 输出端口可以扇出到多个连接，输入端口最多只能有一个连接
func (x *FlowAPI) CreateConnection(sourceSocketId, targetSocketId string) string {
	if targetSocketId == "" {
		x.logger.Printf("editor: create connection ignored, no target socket")
		return ""
	}
	graph := x.state.Snapshot()
	if reason := checkConnection(graph, sourceSocketId, targetSocketId, ""); reason != "" {
		x.logger.Printf("editor: create connection %s -> %s ignored, %s", sourceSocketId, targetSocketId, reason)
		return ""
	}
	conn := &types.GraphConnection{Id: x.NewId(), SourceSocketId: sourceSocketId, TargetSocketId: targetSocketId}
	x.state.Apply(Patch{
		Connections: map[string]*types.GraphConnection{conn.Id: conn},
		Selection:   &types.Selection{Connections: []string{conn.Id}},
	}, PatchCreate)
	return conn.Id
}

// ReassignConnection 修改连接的目标端口
func (x *FlowAPI) ReassignConnection(connectionId, newTargetSocketId string) bool {
	if newTargetSocketId == "" {
		x.logger.Printf("editor: reassign connection %s ignored, no target socket", connectionId)
		return false
	}
	graph := x.state.Snapshot()
	conn, ok := graph.Connections[connectionId]
	if !ok {
		x.logger.Printf("editor: reassign connection ignored, connection %s not found", connectionId)
		return false
	}
	if conn.TargetSocketId == newTargetSocketId {
		return false
	}
	if reason := checkConnection(graph, conn.SourceSocketId, newTargetSocketId, connectionId); reason != "" {
		x.logger.Printf("editor: reassign connection %s ignored, %s", connectionId, reason)
		return false
	}
	updated := *conn
	updated.TargetSocketId = newTargetSocketId
	x.state.Apply(Patch{
		Connections: map[string]*types.GraphConnection{connectionId: &updated},
	}, PatchUpdate)
	return true
}

// MoveNodes 批量移动节点，整个批次只产生一个历史记录
func (x *FlowAPI) MoveNodes(positions map[string]types.Position) bool {
	graph := x.state.Snapshot()
	nodes := make(map[string]*types.GraphNode)
	for id, pos := range positions {
		node, ok := graph.Nodes[id]
		if !ok {
			x.logger.Printf("editor: move ignored for unknown node %s", id)
			continue
		}
		moved := *node
		moved.Position = pos
		nodes[id] = &moved
	}
	if len(nodes) == 0 {
		return false
	}
	x.state.Apply(Patch{Nodes: nodes}, PatchUpdate)
	return true
}

// ChangeSelection 替换选中元素
func (x *FlowAPI) ChangeSelection(nodeIds, connectionIds, groupIds []string) {
	x.state.Apply(Patch{
		Selection: &types.Selection{Nodes: nodeIds, Connections: connectionIds, Groups: groupIds},
	}, PatchUpdate)
}

// RemoveSelected 删除选中的节点和连接，以及连接到被删除节点端口上的所有连接
func (x *FlowAPI) RemoveSelected() bool {
	graph := x.state.Snapshot()
	if graph.Selection.IsEmpty() {
		return false
	}
	nodes := make(map[string]*types.GraphNode)
	connections := make(map[string]*types.GraphConnection)
	for _, id := range graph.Selection.Nodes {
		if node, ok := graph.Nodes[id]; ok {
			nodes[id] = node
		}
	}
	for _, id := range graph.Selection.Connections {
		if conn, ok := graph.Connections[id]; ok {
			connections[id] = conn
		}
	}
	//孤立连接清理
	for id, conn := range graph.Connections {
		for _, node := range nodes {
			if node.HasSocket(conn.SourceSocketId) || node.HasSocket(conn.TargetSocketId) {
				connections[id] = conn
				break
			}
		}
	}
	if len(nodes) == 0 && len(connections) == 0 {
		x.ChangeSelection(nil, nil, nil)
		return false
	}
	x.state.Apply(Patch{
		Nodes:       nodes,
		Connections: connections,
		Selection:   &types.Selection{},
	}, PatchDelete)
	return true
}

// RemoveConnection 删除以该输出端口为源的所有连接
func (x *FlowAPI) RemoveConnection(outputSocketId string) bool {
	conns := x.state.Snapshot().ConnectionsFrom(outputSocketId)
	if len(conns) == 0 {
		x.logger.Printf("editor: remove connection ignored, socket %s has no connection", outputSocketId)
		return false
	}
	connections := make(map[string]*types.GraphConnection, len(conns))
	for _, c := range conns {
		connections[c.Id] = c
	}
	x.state.Apply(Patch{Connections: connections}, PatchDelete)
	return true
}

// UpdateNodeSettings 合并节点配置并通过目录重新计算完整性
func (x *FlowAPI) UpdateNodeSettings(nodeId string, settings types.Configuration) bool {
	node, ok := x.state.Snapshot().Nodes[nodeId]
	if !ok {
		x.logger.Printf("editor: update settings ignored, node %s not found", nodeId)
		return false
	}
	updated := node.Copy()
	if updated.Settings == nil {
		updated.Settings = types.Configuration{}
	}
	for k, v := range settings.Copy() {
		updated.Settings[k] = v
	}
	updated.IsComplete = x.catalog.IsComplete(updated.Type, updated.Subtype, updated.Settings)
	x.state.Apply(Patch{Nodes: map[string]*types.GraphNode{nodeId: updated}}, PatchUpdate)
	return true
}

// SetTransform 更新视口
func (x *FlowAPI) SetTransform(transform types.Transform) {
	x.state.Apply(Patch{Transform: &transform}, PatchUpdate)
}

// Rename 重命名流程
func (x *FlowAPI) Rename(name string) {
	x.state.Apply(Patch{Name: &name}, PatchUpdate)
}

// checkConnection 检查连接是否合法，返回不合法原因。ignoreId 是正在修改的连接
func checkConnection(graph *types.FlowGraph, sourceSocketId, targetSocketId, ignoreId string) string {
	source, ok := graph.SocketOwner(sourceSocketId)
	if !ok {
		return "unknown source socket"
	}
	target, ok := graph.SocketOwner(targetSocketId)
	if !ok {
		return "unknown target socket"
	}
	if !graph.IsOutputSocket(sourceSocketId) {
		return "source is not an output socket"
	}
	if !graph.IsInputSocket(targetSocketId) {
		return "target is not an input socket"
	}
	if source.Id == target.Id {
		return "self loop"
	}
	if existing, ok := graph.ConnectionTo(targetSocketId); ok && existing.Id != ignoreId {
		return "input socket already connected"
	}
	return ""
}

func resolveKey(catalog types.Catalog, key string) (types.NodeTypeDefinition, bool) {
	nodeType, subtype, ok := strings.Cut(key, types.ComponentTypeSeparator)
	if !ok {
		return types.NodeTypeDefinition{}, false
	}
	return catalog.Resolve(types.NodeType(nodeType), subtype)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
