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

// Package types 定义自动化流程的图模型、执行上下文、组件接口以及外部协作者接口。
// Package types defines the automation graph model, execution context, component
// contracts and external collaborator interfaces shared by every other package.
package types

import (
	"github.com/mailist-com/automation/utils/maps"
)

// NodeType 节点大类
// NodeType is the coarse node kind. Routing semantics depend on it.
type NodeType string

const (
	Trigger   NodeType = "trigger"
	Action    NodeType = "action"
	Condition NodeType = "condition"
	Delay     NodeType = "delay"
	Goal      NodeType = "goal"
	End       NodeType = "end"
)

// IsValid 是否是已知节点类型
func (t NodeType) IsValid() bool {
	switch t {
	case Trigger, Action, Condition, Delay, Goal, End:
		return true
	}
	return false
}

// 输出端口名称，节点与节点连接的关系
// output socket keys
const (
	Input       = "input"
	Output      = "output"
	OutputIf    = "output-if"
	OutputElse  = "output-else"
	OutputError = "error"
	OutputA     = "output-a"
	OutputB     = "output-b"
	// OutputTimeout wait_for_event 超时输出
	OutputTimeout = "timeout"
)

// ComponentTypeSeparator 组件类型分隔符，组件类型格式：type/subtype
const ComponentTypeSeparator = "/"

// ComponentType 返回组件注册类型，例如：action/add_tag
func ComponentType(nodeType NodeType, subtype string) string {
	return string(nodeType) + ComponentTypeSeparator + subtype
}

// Configuration 节点配置
type Configuration map[string]interface{}

// Copy 深拷贝配置
func (c Configuration) Copy() Configuration {
	if c == nil {
		return nil
	}
	return Configuration(maps.DeepCopy(c))
}

// Position 节点在画布中的位置，仅用于编辑器
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Transform 画布视口
type Transform struct {
	Scale float64  `json:"scale"`
	Pos   Position `json:"position"`
}

// Selection 编辑器当前选中的元素
type Selection struct {
	Nodes       []string `json:"nodes"`
	Connections []string `json:"connections"`
	Groups      []string `json:"groups"`
}

// IsEmpty 是否没有选中任何元素
func (s Selection) IsEmpty() bool {
	return len(s.Nodes) == 0 && len(s.Connections) == 0 && len(s.Groups) == 0
}

// HasNode 节点是否被选中
func (s Selection) HasNode(id string) bool {
	return contains(s.Nodes, id)
}

// HasConnection 连接是否被选中
func (s Selection) HasConnection(id string) bool {
	return contains(s.Connections, id)
}

// Copy 拷贝
func (s Selection) Copy() Selection {
	return Selection{
		Nodes:       copyStrings(s.Nodes),
		Connections: copyStrings(s.Connections),
		Groups:      copyStrings(s.Groups),
	}
}

// Socket 节点输出端口
type Socket struct {
	Id string `json:"id"`
	// Name 端口key，例如：output、output-if、output-else
	Name string `json:"name"`
}

// GraphNode 流程图中的一个节点
// GraphNode is one step of an automation graph. It is a tagged union keyed by
// (Type, Subtype); behaviour lives in the component registered for that key.
type GraphNode struct {
	Id       string   `json:"id"`
	Type     NodeType `json:"type"`
	Subtype  string   `json:"subtype"`
	Position Position `json:"position"`
	// InputSocketId 输入端口ID，触发器节点为空
	InputSocketId string `json:"input,omitempty"`
	// OutputSockets 有序输出端口列表
	OutputSockets []Socket `json:"outputs"`
	// Settings 节点配置
	Settings   Configuration `json:"settings"`
	IsComplete bool          `json:"isComplete"`
}

// ComponentType 组件注册类型
func (n *GraphNode) ComponentType() string {
	return ComponentType(n.Type, n.Subtype)
}

// OutputSocket 按端口key查找输出端口
func (n *GraphNode) OutputSocket(name string) (Socket, bool) {
	for _, s := range n.OutputSockets {
		if s.Name == name {
			return s, true
		}
	}
	return Socket{}, false
}

// HasSocket 端口是否属于该节点
func (n *GraphNode) HasSocket(socketId string) bool {
	if socketId == "" {
		return false
	}
	if n.InputSocketId == socketId {
		return true
	}
	for _, s := range n.OutputSockets {
		if s.Id == socketId {
			return true
		}
	}
	return false
}

// Copy 深拷贝
func (n *GraphNode) Copy() *GraphNode {
	if n == nil {
		return nil
	}
	c := *n
	if n.OutputSockets != nil {
		c.OutputSockets = make([]Socket, len(n.OutputSockets))
		copy(c.OutputSockets, n.OutputSockets)
	}
	c.Settings = n.Settings.Copy()
	return &c
}

// GraphConnection 节点之间的连接：输出端口 -> 输入端口
type GraphConnection struct {
	Id             string `json:"id"`
	SourceSocketId string `json:"source"`
	TargetSocketId string `json:"target"`
}

// FlowGraph 流程图聚合根
type FlowGraph struct {
	Name        string                      `json:"name"`
	Nodes       map[string]*GraphNode       `json:"nodes"`
	Connections map[string]*GraphConnection `json:"connections"`
	Transform   Transform                   `json:"transform"`
	Selection   Selection                   `json:"selection"`
}

// NewFlowGraph 创建空流程图
func NewFlowGraph(name string) *FlowGraph {
	return &FlowGraph{
		Name:        name,
		Nodes:       make(map[string]*GraphNode),
		Connections: make(map[string]*GraphConnection),
		Transform:   Transform{Scale: 1},
	}
}

// Copy 深拷贝整个流程图
func (g *FlowGraph) Copy() *FlowGraph {
	if g == nil {
		return nil
	}
	c := &FlowGraph{
		Name:        g.Name,
		Nodes:       make(map[string]*GraphNode, len(g.Nodes)),
		Connections: make(map[string]*GraphConnection, len(g.Connections)),
		Transform:   g.Transform,
		Selection:   g.Selection.Copy(),
	}
	for id, n := range g.Nodes {
		c.Nodes[id] = n.Copy()
	}
	for id, conn := range g.Connections {
		cc := *conn
		c.Connections[id] = &cc
	}
	return c
}

// SocketOwner 查找端口所属节点
func (g *FlowGraph) SocketOwner(socketId string) (*GraphNode, bool) {
	for _, n := range g.Nodes {
		if n.HasSocket(socketId) {
			return n, true
		}
	}
	return nil, false
}

// IsInputSocket 端口是否是某个节点的输入端口
func (g *FlowGraph) IsInputSocket(socketId string) bool {
	for _, n := range g.Nodes {
		if socketId != "" && n.InputSocketId == socketId {
			return true
		}
	}
	return false
}

// IsOutputSocket 端口是否是某个节点的输出端口
func (g *FlowGraph) IsOutputSocket(socketId string) bool {
	for _, n := range g.Nodes {
		for _, s := range n.OutputSockets {
			if s.Id == socketId {
				return true
			}
		}
	}
	return false
}

// ConnectionsFrom 返回以该端口为源的所有连接
func (g *FlowGraph) ConnectionsFrom(socketId string) []*GraphConnection {
	var result []*GraphConnection
	for _, c := range g.Connections {
		if c.SourceSocketId == socketId {
			result = append(result, c)
		}
	}
	return result
}

// ConnectionTo 返回以该端口为目标的连接
func (g *FlowGraph) ConnectionTo(socketId string) (*GraphConnection, bool) {
	for _, c := range g.Connections {
		if c.TargetSocketId == socketId {
			return c, true
		}
	}
	return nil, false
}

// TriggerNodes 返回所有触发器节点
func (g *FlowGraph) TriggerNodes() []*GraphNode {
	var result []*GraphNode
	for _, n := range g.Nodes {
		if n.Type == Trigger {
			result = append(result, n)
		}
	}
	return result
}

func contains(list []string, target string) bool {
	for _, item := range list {
		if item == target {
			return true
		}
	}
	return false
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}
